package store

import (
	"testing"

	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityStores_ForType(t *testing.T) {
	db, _ := newMockDB(t)
	stores := EntityStores{
		Reminders: NewReminderRepository(db, logger.Nop()),
		Holidays:  NewHolidayRepository(db, logger.Nop()),
	}

	reminderStore, err := stores.ForType(models.EntityTypeReminder)
	require.NoError(t, err)
	assert.Same(t, stores.Reminders, reminderStore)

	holidayStore, err := stores.ForType(models.EntityTypeHoliday)
	require.NoError(t, err)
	assert.Same(t, stores.Holidays, holidayStore)

	_, err = stores.ForType("spaceship")
	assert.ErrorIs(t, err, ErrUnknownEntityType)
}
