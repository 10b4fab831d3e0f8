package store

import (
	"context"

	"github.com/MKhiriev/go-remind-sync/internal/config"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
)

// Storages aggregates every persistence dependency the service layer needs.
type Storages struct {
	Ledger   SyncLedger
	Entities EntityStores
	Tx       TxManager
}

// NewStorages connects to PostgreSQL, runs pending migrations and wires the
// repositories over the shared connection pool.
func NewStorages(ctx context.Context, cfg *config.StructuredConfig, log *logger.Logger) (*Storages, error) {
	storeLogger := log.GetChildLogger()

	db, err := NewConnectPostgres(ctx, cfg.Storage.DB, storeLogger)
	if err != nil {
		return nil, err
	}

	if migrateErr := db.Migrate(); migrateErr != nil {
		return nil, migrateErr
	}

	return &Storages{
		Ledger: NewSyncRepository(db, cfg.Sync, storeLogger),
		Entities: EntityStores{
			Reminders: NewReminderRepository(db, storeLogger),
			Holidays:  NewHolidayRepository(db, storeLogger),
		},
		Tx: db,
	}, nil
}
