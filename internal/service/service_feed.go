// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/store"
	"github.com/MKhiriev/go-remind-sync/models"
)

// syncedEntityTypes fixes the order in which the feed builder walks the
// entity stores.
var syncedEntityTypes = []models.EntityType{
	models.EntityTypeReminder,
	models.EntityTypeHoliday,
}

// feedBuilder computes the server→client delta since a watermark: changed
// rows per entity type plus deletion tombstones from the ledger.
type feedBuilder struct {
	ledger   store.SyncLedger
	entities store.EntityStores
	logger   *logger.Logger
}

func newFeedBuilder(ledger store.SyncLedger, entities store.EntityStores, logger *logger.Logger) *feedBuilder {
	return &feedBuilder{
		ledger:   ledger,
		entities: entities,
		logger:   logger,
	}
}

// Build assembles the update feed for everything changed strictly after
// since. When page parameters are supplied, each list is sliced independently
// and the pagination block reports the pre-slicing totals per list.
func (f *feedBuilder) Build(ctx context.Context, userID int64, since time.Time, page models.PageRequest) (models.ServerUpdates, error) {
	log := logger.FromContext(ctx)

	updates := models.ServerUpdates{
		Entities: make(map[models.EntityType][]json.RawMessage, len(syncedEntityTypes)),
	}

	paginated := page.Page > 0 && page.PageSize > 0
	totals := make(map[string]int, len(syncedEntityTypes)+1)

	for _, entityType := range syncedEntityTypes {
		entityStore, err := f.entities.ForType(entityType)
		if err != nil {
			return models.ServerUpdates{}, err
		}

		changed, changedErr := entityStore.ChangedSince(ctx, userID, since)
		if changedErr != nil {
			log.Err(changedErr).
				Str("func", "feedBuilder.Build").
				Str("entity_type", string(entityType)).
				Msg("failed to fetch changed entities")
			return models.ServerUpdates{}, changedErr
		}

		totals[string(entityType)] = len(changed)
		if paginated {
			changed = slicePage(changed, page)
		}
		updates.Entities[entityType] = changed
	}

	tombstones, deletedErr := f.ledger.DeletedSince(ctx, userID, since)
	if deletedErr != nil {
		log.Err(deletedErr).
			Str("func", "feedBuilder.Build").
			Msg("failed to fetch deletion tombstones")
		return models.ServerUpdates{}, deletedErr
	}

	totals["deleted_entities"] = len(tombstones)
	if paginated {
		tombstones = slicePage(tombstones, page)
		updates.Pagination = &models.Pagination{
			Page:     page.Page,
			PageSize: page.PageSize,
			Totals:   totals,
		}
	}
	updates.DeletedEntities = tombstones

	return updates, nil
}

// slicePage returns the requested 1-based page of items, or an empty slice
// when the page starts past the end.
func slicePage[T any](items []T, page models.PageRequest) []T {
	start := (page.Page - 1) * page.PageSize
	if start >= len(items) {
		return []T{}
	}

	end := start + page.PageSize
	if end > len(items) {
		end = len(items)
	}

	return items[start:end]
}
