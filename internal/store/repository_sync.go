// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-remind-sync/internal/config"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/models"
)

// defaultRecordsPageLimit bounds ledger listings when the config does not
// override it.
const defaultRecordsPageLimit = 100

// syncRepository is the PostgreSQL-backed implementation of [SyncLedger].
// It executes all ledger operations against the "sync_records" table.
//
// Read paths (LatestForEntity, GetByID, ListRecords, DeletedSince,
// LastSyncTime) use the embedded [*DB] connection; mutating paths accept the
// caller's transactional [Querier] so the batch processor controls atomicity.
type syncRepository struct {
	*DB
	recordsPageLimit uint64
	logger           *logger.Logger
}

// NewSyncRepository constructs a [SyncLedger] backed by the provided database
// connection and logger. cfg supplies the listing page limit.
func NewSyncRepository(db *DB, cfg config.Sync, logger *logger.Logger) SyncLedger {
	limit := uint64(defaultRecordsPageLimit)
	if cfg.RecordsPageLimit > 0 {
		limit = uint64(cfg.RecordsPageLimit)
	}

	return &syncRepository{
		DB:               db,
		recordsPageLimit: limit,
		logger:           logger,
	}
}

// InsertRecords bulk-inserts the batch's ledger rows under the caller's
// transaction handle.
//
// Routing strategy:
//   - Zero records → no-op.
//   - Exactly one record → plain INSERT (no statement preparation overhead).
//   - Two or more records → prepared statement executed per record.
func (s *syncRepository) InsertRecords(ctx context.Context, q Querier, records []*models.SyncRecord) error {
	log := logger.FromContext(ctx)

	if len(records) == 0 {
		log.Warn().
			Str("func", "syncRepository.InsertRecords").
			Msg("no sync records provided")
		return nil
	}

	if len(records) == 1 {
		return s.insertSingleRecord(ctx, q, records[0])
	}

	stmt, err := q.PrepareContext(ctx, insertSyncRecord)
	if err != nil {
		log.Err(err).
			Str("func", "syncRepository.InsertRecords").
			Int("records_count", len(records)).
			Msg("failed to prepare sync record insert statement")
		return fmt.Errorf("%w: %w", ErrPreparingStatement, err)
	}
	defer stmt.Close()

	for idx, record := range records {
		log.Debug().
			Str("func", "syncRepository.InsertRecords").
			Int("iteration", idx+1).
			Int("total", len(records)).
			Str("sync_record_id", record.ID).
			Msg("inserting sync record in transaction")

		conflictData, marshalErr := marshalConflictData(record.ConflictData)
		if marshalErr != nil {
			return marshalErr
		}

		_, execErr := stmt.ExecContext(ctx,
			record.ID,
			record.UserID,
			record.DeviceID,
			record.EntityType,
			record.OperationType,
			record.EntityID,
			[]byte(record.EntityData),
			record.Version,
			record.Status,
			conflictData,
			record.ErrorMessage,
			record.SyncTime,
		)
		if execErr != nil {
			log.Err(execErr).
				Str("func", "syncRepository.InsertRecords").
				Int("iteration", idx+1).
				Str("sync_record_id", record.ID).
				Msg("failed to execute prepared sync record insert")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
		}
	}

	return nil
}

func (s *syncRepository) insertSingleRecord(ctx context.Context, q Querier, record *models.SyncRecord) error {
	log := logger.FromContext(ctx)

	conflictData, marshalErr := marshalConflictData(record.ConflictData)
	if marshalErr != nil {
		return marshalErr
	}

	_, err := q.ExecContext(ctx, insertSyncRecord,
		record.ID,
		record.UserID,
		record.DeviceID,
		record.EntityType,
		record.OperationType,
		record.EntityID,
		[]byte(record.EntityData),
		record.Version,
		record.Status,
		conflictData,
		record.ErrorMessage,
		record.SyncTime,
	)
	if err != nil {
		log.Err(err).
			Str("func", "syncRepository.insertSingleRecord").
			Str("sync_record_id", record.ID).
			Msg("failed to insert sync record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// LatestForEntity returns the most recent ledger row for the entity, ordered
// by sync_time descending, or nil when no row exists. The version carried by
// the returned row is the entity's effective version for conflict detection.
// Rows of global entity types are matched regardless of which user wrote
// them; user-scoped types are narrowed to the caller.
func (s *syncRepository) LatestForEntity(ctx context.Context, userID int64, entityType models.EntityType, entityID string) (*models.SyncRecord, error) {
	log := logger.FromContext(ctx)

	query := latestUserSyncRecordForEntity
	args := []any{userID, entityType, entityID}
	if !entityType.UserScoped() {
		query = latestGlobalSyncRecordForEntity
		args = []any{entityType, entityID}
	}

	row := s.DB.QueryRowContext(ctx, query, args...)

	record, err := scanSyncRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		log.Err(err).
			Str("func", "syncRepository.LatestForEntity").
			Int64("user_id", userID).
			Str("entity_type", string(entityType)).
			Str("entity_id", entityID).
			Msg("failed to fetch latest sync record for entity")
		return nil, err
	}

	return record, nil
}

// GetByID fetches a single ledger row by id.
func (s *syncRepository) GetByID(ctx context.Context, recordID string) (*models.SyncRecord, error) {
	log := logger.FromContext(ctx)

	row := s.DB.QueryRowContext(ctx, getSyncRecordByID, recordID)

	record, err := scanSyncRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSyncRecordNotFound
		}

		log.Err(err).
			Str("func", "syncRepository.GetByID").
			Str("sync_record_id", recordID).
			Msg("failed to fetch sync record")
		return nil, err
	}

	return record, nil
}

// MarkCompleted transitions a pending record to completed within the
// caller's transaction.
func (s *syncRepository) MarkCompleted(ctx context.Context, q Querier, recordID string) error {
	log := logger.FromContext(ctx)

	if _, err := q.ExecContext(ctx, markSyncRecordCompleted, recordID); err != nil {
		log.Err(err).
			Str("func", "syncRepository.MarkCompleted").
			Str("sync_record_id", recordID).
			Msg("failed to mark sync record completed")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// MarkFailed transitions a record to failed and stores the error message
// within the caller's transaction.
func (s *syncRepository) MarkFailed(ctx context.Context, q Querier, recordID string, errorMessage string) error {
	log := logger.FromContext(ctx)

	if _, err := q.ExecContext(ctx, markSyncRecordFailed, recordID, errorMessage); err != nil {
		log.Err(err).
			Str("func", "syncRepository.MarkFailed").
			Str("sync_record_id", recordID).
			Msg("failed to mark sync record failed")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// MarkResolved transitions a conflicted record to resolved, recording the
// strategy and timestamp. The WHERE clause guards the conflict → resolved
// transition: a record in any other status is left untouched and
// [ErrSyncRecordNotFound] is returned.
func (s *syncRepository) MarkResolved(ctx context.Context, q Querier, recordID string, resolution models.Resolution, resolvedAt time.Time) error {
	log := logger.FromContext(ctx)

	result, err := q.ExecContext(ctx, markSyncRecordResolved, recordID, resolution, resolvedAt)
	if err != nil {
		log.Err(err).
			Str("func", "syncRepository.MarkResolved").
			Str("sync_record_id", recordID).
			Msg("failed to mark sync record resolved")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		log.Warn().
			Str("func", "syncRepository.MarkResolved").
			Str("sync_record_id", recordID).
			Msg("no conflicted sync record matched for resolution")
		return ErrSyncRecordNotFound
	}

	return nil
}

// ListRecords returns the caller's ledger rows narrowed by filter, newest
// first. The page limit is clamped to the configured maximum.
func (s *syncRepository) ListRecords(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.SyncRecord, error) {
	log := logger.FromContext(ctx)

	if filter.Limit == 0 || filter.Limit > s.recordsPageLimit {
		filter.Limit = s.recordsPageLimit
	}

	query, args, err := buildListRecordsQuery(userID, filter)
	if err != nil {
		log.Err(err).
			Str("func", "syncRepository.ListRecords").
			Int64("user_id", userID).
			Msg("failed to create query")
		return nil, err
	}

	rows, queryErr := s.DB.QueryContext(ctx, query, args...)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "syncRepository.ListRecords").
			Int64("user_id", userID).
			Msg("failed to execute query for listing sync records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	records := make([]models.SyncRecord, 0, filter.Limit)

	for rows.Next() {
		record, scanErr := scanSyncRecord(rows.Scan)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "syncRepository.ListRecords").
				Int64("user_id", userID).
				Msg("failed to scan sync record row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		records = append(records, *record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "syncRepository.ListRecords").
			Int64("user_id", userID).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return records, nil
}

// DeletedSince derives deletion tombstones from completed delete operations
// with sync_time strictly after since. Deletions of global entity types are
// included no matter which user issued them.
func (s *syncRepository) DeletedSince(ctx context.Context, userID int64, since time.Time) ([]models.Tombstone, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildDeletedSinceQuery(userID, since)
	if err != nil {
		log.Err(err).
			Str("func", "syncRepository.DeletedSince").
			Int64("user_id", userID).
			Msg("failed to create query")
		return nil, err
	}

	rows, queryErr := s.DB.QueryContext(ctx, query, args...)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "syncRepository.DeletedSince").
			Int64("user_id", userID).
			Msg("failed to execute query for deleted entities")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	tombstones := make([]models.Tombstone, 0, 10)

	for rows.Next() {
		var tombstone models.Tombstone

		scanErr := rows.Scan(&tombstone.EntityType, &tombstone.EntityID, &tombstone.SyncTime)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "syncRepository.DeletedSince").
				Int64("user_id", userID).
				Msg("failed to scan tombstone row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		tombstones = append(tombstones, tombstone)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "syncRepository.DeletedSince").
			Int64("user_id", userID).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return tombstones, nil
}

// LastSyncTime returns the latest completed sync timestamp for the device,
// or nil when the device has never synced successfully.
func (s *syncRepository) LastSyncTime(ctx context.Context, userID int64, deviceID string) (*time.Time, error) {
	log := logger.FromContext(ctx)

	var lastSync sql.NullTime

	err := s.DB.QueryRowContext(ctx, lastCompletedSyncTime, userID, deviceID).Scan(&lastSync)
	if err != nil {
		log.Err(err).
			Str("func", "syncRepository.LastSyncTime").
			Int64("user_id", userID).
			Str("device_id", deviceID).
			Msg("failed to fetch last sync time")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if !lastSync.Valid {
		return nil, nil
	}

	return &lastSync.Time, nil
}

// AcquireUserLock takes the per-user advisory lock for the lifetime of the
// caller's transaction.
func (s *syncRepository) AcquireUserLock(ctx context.Context, q Querier, userID int64) error {
	log := logger.FromContext(ctx)

	if _, err := q.ExecContext(ctx, acquireUserSyncLock, userID); err != nil {
		log.Err(err).
			Str("func", "syncRepository.AcquireUserLock").
			Int64("user_id", userID).
			Msg("failed to acquire user sync lock")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// scanSyncRecord maps one sync_records row onto a [models.SyncRecord],
// handling the nullable conflict/resolution columns.
func scanSyncRecord(scan func(dest ...any) error) (*models.SyncRecord, error) {
	var record models.SyncRecord
	var entityData, conflictData []byte
	var resolution, errorMessage sql.NullString
	var resolvedAt sql.NullTime

	err := scan(
		&record.ID,
		&record.UserID,
		&record.DeviceID,
		&record.EntityType,
		&record.OperationType,
		&record.EntityID,
		&entityData,
		&record.Version,
		&record.Status,
		&conflictData,
		&resolution,
		&resolvedAt,
		&errorMessage,
		&record.SyncTime,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(entityData) > 0 {
		record.EntityData = json.RawMessage(entityData)
	}

	if len(conflictData) > 0 {
		var conflict models.ConflictData
		if unmarshalErr := json.Unmarshal(conflictData, &conflict); unmarshalErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, unmarshalErr)
		}
		record.ConflictData = &conflict
	}

	if resolution.Valid {
		record.Resolution = models.Resolution(resolution.String)
	}
	if resolvedAt.Valid {
		record.ResolvedAt = &resolvedAt.Time
	}
	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}

	return &record, nil
}
