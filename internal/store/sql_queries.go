// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MKhiriev/go-remind-sync/models"
	sq "github.com/Masterminds/squirrel"
)

const (
	insertSyncRecord = `INSERT INTO sync_records (
			id,
			user_id,
			device_id,
			entity_type,
			operation_type,
			entity_id,
			entity_data,
			version,
			status,
			conflict_data,
			error_message,
			sync_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	selectSyncRecordColumns = `id, user_id, device_id, entity_type, operation_type, entity_id,
		entity_data, version, status, conflict_data, resolution, resolved_at,
		error_message, sync_time, created_at, updated_at`

	// The id tiebreaker keeps the latest-row lookup deterministic when one
	// batch writes several rows for the same entity: all of them share a
	// sync_time, and ids are UUIDv7, generated in batch order.
	latestUserSyncRecordForEntity = `SELECT id, user_id, device_id, entity_type, operation_type, entity_id,
		entity_data, version, status, conflict_data, resolution, resolved_at,
		error_message, sync_time, created_at, updated_at
		FROM sync_records
		WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY sync_time DESC, id DESC
		LIMIT 1;`

	// Global entity types (holidays) are mutable by any user, so their
	// effective version spans the whole ledger, not one user's slice of it.
	latestGlobalSyncRecordForEntity = `SELECT id, user_id, device_id, entity_type, operation_type, entity_id,
		entity_data, version, status, conflict_data, resolution, resolved_at,
		error_message, sync_time, created_at, updated_at
		FROM sync_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY sync_time DESC, id DESC
		LIMIT 1;`

	getSyncRecordByID = `SELECT id, user_id, device_id, entity_type, operation_type, entity_id,
		entity_data, version, status, conflict_data, resolution, resolved_at,
		error_message, sync_time, created_at, updated_at
		FROM sync_records
		WHERE id = $1;`

	markSyncRecordCompleted = `UPDATE sync_records
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1;`

	markSyncRecordFailed = `UPDATE sync_records
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1;`

	markSyncRecordResolved = `UPDATE sync_records
		SET status = 'resolved', resolution = $2, resolved_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'conflict';`

	lastCompletedSyncTime = `SELECT MAX(sync_time)
		FROM sync_records
		WHERE user_id = $1 AND device_id = $2 AND status = 'completed';`

	// Transaction-scoped advisory lock keyed by user id: serializes phase 2
	// of concurrent batches from the same user's devices without blocking
	// other users.
	acquireUserSyncLock = `SELECT pg_advisory_xact_lock($1);`
)

// buildListRecordsQuery assembles the filtered ledger listing for
// GET /api/sync/records. Optional entity_type and status constraints are
// added only when set; results are newest first.
func buildListRecordsQuery(userID int64, filter models.RecordFilter) (string, []any, error) {
	builder := sq.Select(
		"id", "user_id", "device_id", "entity_type", "operation_type", "entity_id",
		"entity_data", "version", "status", "conflict_data", "resolution", "resolved_at",
		"error_message", "sync_time", "created_at", "updated_at",
	).
		From("sync_records").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("sync_time DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		PlaceholderFormat(sq.Dollar)

	if filter.EntityType != "" {
		builder = builder.Where(sq.Eq{"entity_type": string(filter.EntityType)})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}

// buildPartialUpdateQuery assembles an UPDATE statement containing only the
// columns present in setClauses, plus an updated_at bump. Used by the entity
// stores to implement partial update semantics: absent payload fields leave
// the stored row untouched.
func buildPartialUpdateQuery(table string, setClauses map[string]any, where sq.Eq) (string, []any, error) {
	if len(setClauses) == 0 {
		return "", nil, fmt.Errorf("%w: no columns to update", ErrBuildingSQLQuery)
	}

	builder := sq.Update(table).
		Set("updated_at", sq.Expr("NOW()")).
		Where(where).
		PlaceholderFormat(sq.Dollar)

	for column, value := range setClauses {
		builder = builder.Set(column, value)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}

// buildDeletedSinceQuery assembles the tombstone feed SELECT: completed
// delete rows with sync_time strictly after the watermark. The caller's own
// rows are included alongside deletions of global entity types by any user;
// without the latter a holiday deleted on another account would survive on
// this client forever.
func buildDeletedSinceQuery(userID int64, since time.Time) (string, []any, error) {
	scope := sq.Or{sq.Eq{"user_id": userID}}
	for _, entityType := range models.GlobalEntityTypes() {
		scope = append(scope, sq.Eq{"entity_type": string(entityType)})
	}

	builder := sq.Select("entity_type", "entity_id", "sync_time").
		From("sync_records").
		Where(scope).
		Where(sq.Eq{"operation_type": string(models.OperationDelete)}).
		Where(sq.Eq{"status": string(models.StatusCompleted)}).
		Where(sq.Gt{"sync_time": since}).
		OrderBy("sync_time").
		PlaceholderFormat(sq.Dollar)

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}

// buildChangedSinceQuery assembles the update-feed SELECT for an entity
// table: rows whose updated_at is strictly after the watermark, oldest
// first. userScoped tables are additionally narrowed to the caller.
func buildChangedSinceQuery(table string, columns []string, userScoped bool, userID int64, since time.Time) (string, []any, error) {
	builder := sq.Select(columns...).
		From(table).
		Where(sq.Gt{"updated_at": since}).
		OrderBy("updated_at").
		PlaceholderFormat(sq.Dollar)

	if userScoped {
		builder = builder.Where(sq.Eq{"user_id": userID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}

// marshalConflictData serializes conflict data for the jsonb column;
// nil stays NULL.
func marshalConflictData(conflict *models.ConflictData) (any, error) {
	if conflict == nil {
		return nil, nil
	}

	raw, err := json.Marshal(conflict)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return raw, nil
}
