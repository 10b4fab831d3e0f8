package store

import "github.com/MKhiriev/go-remind-sync/models"

// EntityStores bundles one [EntityStore] per syncable entity type. The sync
// engine dispatches operations through [EntityStores.ForType] so adding a new
// entity type is a matter of wiring one more store here.
type EntityStores struct {
	Reminders EntityStore
	Holidays  EntityStore
}

// ForType returns the store registered for the given entity type, or
// [ErrUnknownEntityType].
func (e EntityStores) ForType(entityType models.EntityType) (EntityStore, error) {
	switch entityType {
	case models.EntityTypeReminder:
		return e.Reminders, nil
	case models.EntityTypeHoliday:
		return e.Holidays, nil
	default:
		return nil, ErrUnknownEntityType
	}
}
