package service

import (
	"github.com/MKhiriev/go-remind-sync/internal/config"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/store"
)

// Services aggregates the business-logic dependencies the HTTP layer needs.
type Services struct {
	Sync     SyncProcessor
	Resolver ConflictResolver
	Ledger   LedgerReader
	Auth     TokenParser
}

// NewServices wires every service over the shared storages.
func NewServices(storages *store.Storages, cfg *config.StructuredConfig, log *logger.Logger) *Services {
	serviceLogger := log.GetChildLogger()
	syncService := NewSyncService(storages, cfg.Sync, serviceLogger)

	return &Services{
		Sync:     syncService,
		Resolver: NewResolveService(storages, serviceLogger),
		Ledger:   syncService,
		Auth:     NewAuthService(cfg.Auth, serviceLogger),
	}
}
