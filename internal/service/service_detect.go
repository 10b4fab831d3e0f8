// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/store"
	"github.com/MKhiriev/go-remind-sync/models"
)

// conflictDetector decides whether an incoming operation is safe to apply.
//
// The rule is plain optimistic concurrency: the most recent ledger row for
// the entity carries the effective version, and the incoming version must be
// strictly greater to pass. The detector never mutates the ledger.
type conflictDetector struct {
	ledger   store.SyncLedger
	entities store.EntityStores
	logger   *logger.Logger
}

func newConflictDetector(ledger store.SyncLedger, entities store.EntityStores, logger *logger.Logger) *conflictDetector {
	return &conflictDetector{
		ledger:   ledger,
		entities: entities,
		logger:   logger,
	}
}

// Detect returns a populated conflict descriptor when the operation's version
// is not strictly newer than the entity's effective version, and nil when the
// operation may be applied. An entity never seen by the ledger cannot
// conflict regardless of the incoming version.
func (d *conflictDetector) Detect(ctx context.Context, userID int64, op models.SyncOperation) (*models.ConflictData, error) {
	log := logger.FromContext(ctx)

	latest, err := d.ledger.LatestForEntity(ctx, userID, op.EntityType, op.EntityID)
	if err != nil {
		log.Err(err).
			Str("func", "conflictDetector.Detect").
			Str("entity_id", op.EntityID).
			Msg("failed to look up latest sync record")
		return nil, err
	}

	if latest == nil {
		return nil, nil
	}

	if latest.Version < op.Version {
		return nil, nil
	}

	conflict := &models.ConflictData{
		ServerVersion: latest.Version,
		ClientVersion: op.Version,
		ClientEntity:  op.EntityData,
	}

	serverEntity, fetchErr := d.fetchServerSnapshot(ctx, userID, op)
	if fetchErr != nil {
		return nil, fetchErr
	}
	conflict.ServerEntity = serverEntity

	log.Info().
		Str("func", "conflictDetector.Detect").
		Str("entity_id", op.EntityID).
		Int64("server_version", conflict.ServerVersion).
		Int64("client_version", conflict.ClientVersion).
		Msg("version conflict detected")

	return conflict, nil
}

// fetchServerSnapshot loads the current authoritative entity row for the
// conflict descriptor. An absent row is legitimate (the entity may have been
// deleted since) and yields a nil snapshot, not an error.
func (d *conflictDetector) fetchServerSnapshot(ctx context.Context, userID int64, op models.SyncOperation) (json.RawMessage, error) {
	entityStore, err := d.entities.ForType(op.EntityType)
	if err != nil {
		return nil, err
	}

	snapshot, getErr := entityStore.GetByID(ctx, userID, op.EntityID)
	if getErr != nil {
		if errors.Is(getErr, store.ErrEntityNotFound) {
			return nil, nil
		}
		return nil, getErr
	}

	return snapshot, nil
}
