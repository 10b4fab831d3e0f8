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

	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/models"
	sq "github.com/Masterminds/squirrel"
)

const (
	insertReminder = `INSERT INTO reminders (id, user_id, title, notes, remind_at, done)
		VALUES ($1, $2, $3, $4, $5, $6);`

	deleteReminder = `DELETE FROM reminders WHERE user_id = $1 AND id = $2;`

	getReminderByID = `SELECT id, user_id, title, notes, remind_at, done, created_at, updated_at
		FROM reminders
		WHERE user_id = $1 AND id = $2;`
)

var reminderColumns = []string{"id", "user_id", "title", "notes", "remind_at", "done", "created_at", "updated_at"}

// reminderPayload is the client-facing wire shape of a reminder operation.
// Pointer fields distinguish "absent" from "zero" so updates stay partial.
type reminderPayload struct {
	Title    *string    `json:"title,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
	RemindAt *time.Time `json:"remind_at,omitempty"`
	Done     *bool      `json:"done,omitempty"`
}

// reminderRepository implements [EntityStore] for user-scoped reminders.
type reminderRepository struct {
	*DB
	logger *logger.Logger
}

// NewReminderRepository constructs the reminder [EntityStore].
func NewReminderRepository(db *DB, logger *logger.Logger) EntityStore {
	return &reminderRepository{DB: db, logger: logger}
}

// Insert creates the reminder row with the client-supplied id. A unique
// violation on the id maps to [ErrEntityAlreadyExists] so a retried create is
// reported as a per-operation failure instead of a duplicate row.
func (r *reminderRepository) Insert(ctx context.Context, q Querier, userID int64, entityID string, data json.RawMessage) error {
	log := logger.FromContext(ctx)

	payload, err := decodeReminderPayload(data)
	if err != nil {
		return err
	}
	if payload.Title == nil || *payload.Title == "" {
		return fmt.Errorf("%w: reminder title is required", ErrInvalidEntityPayload)
	}

	var notes string
	if payload.Notes != nil {
		notes = *payload.Notes
	}
	var done bool
	if payload.Done != nil {
		done = *payload.Done
	}

	_, execErr := q.ExecContext(ctx, insertReminder, entityID, userID, *payload.Title, notes, payload.RemindAt, done)
	if execErr != nil {
		if isUniqueViolation(execErr) {
			return ErrEntityAlreadyExists
		}

		log.Err(execErr).
			Str("func", "reminderRepository.Insert").
			Int64("user_id", userID).
			Str("entity_id", entityID).
			Msg("failed to insert reminder")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
	}

	return nil
}

// Update applies only the payload fields present in data. An update that
// matches no row returns [ErrEntityNotFound].
func (r *reminderRepository) Update(ctx context.Context, q Querier, userID int64, entityID string, data json.RawMessage) error {
	log := logger.FromContext(ctx)

	payload, err := decodeReminderPayload(data)
	if err != nil {
		return err
	}

	setClauses := map[string]any{}
	if payload.Title != nil {
		setClauses["title"] = *payload.Title
	}
	if payload.Notes != nil {
		setClauses["notes"] = *payload.Notes
	}
	if payload.RemindAt != nil {
		setClauses["remind_at"] = *payload.RemindAt
	}
	if payload.Done != nil {
		setClauses["done"] = *payload.Done
	}
	if len(setClauses) == 0 {
		return fmt.Errorf("%w: no reminder fields to update", ErrInvalidEntityPayload)
	}

	query, args, buildErr := buildPartialUpdateQuery("reminders", setClauses, sq.Eq{"user_id": userID, "id": entityID})
	if buildErr != nil {
		return buildErr
	}

	result, execErr := q.ExecContext(ctx, query, args...)
	if execErr != nil {
		log.Err(execErr).
			Str("func", "reminderRepository.Update").
			Int64("user_id", userID).
			Str("entity_id", entityID).
			Msg("failed to update reminder")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

// Delete removes the reminder row. Deleting an absent row returns
// [ErrEntityNotFound] so a stale delete is visible to the client.
func (r *reminderRepository) Delete(ctx context.Context, q Querier, userID int64, entityID string) error {
	log := logger.FromContext(ctx)

	result, execErr := q.ExecContext(ctx, deleteReminder, userID, entityID)
	if execErr != nil {
		log.Err(execErr).
			Str("func", "reminderRepository.Delete").
			Int64("user_id", userID).
			Str("entity_id", entityID).
			Msg("failed to delete reminder")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

// GetByID returns the serialized current reminder row.
func (r *reminderRepository) GetByID(ctx context.Context, userID int64, entityID string) (json.RawMessage, error) {
	log := logger.FromContext(ctx)

	row := r.DB.QueryRowContext(ctx, getReminderByID, userID, entityID)

	raw, err := scanReminderJSON(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		log.Err(err).
			Str("func", "reminderRepository.GetByID").
			Int64("user_id", userID).
			Str("entity_id", entityID).
			Msg("failed to fetch reminder")
		return nil, err
	}

	return raw, nil
}

// ChangedSince returns the caller's reminders modified strictly after since,
// oldest first, serialized for the update feed.
func (r *reminderRepository) ChangedSince(ctx context.Context, userID int64, since time.Time) ([]json.RawMessage, error) {
	log := logger.FromContext(ctx)

	query, args, buildErr := buildChangedSinceQuery("reminders", reminderColumns, true, userID, since)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := r.DB.QueryContext(ctx, query, args...)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "reminderRepository.ChangedSince").
			Int64("user_id", userID).
			Msg("failed to query changed reminders")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	changed := make([]json.RawMessage, 0, 10)

	for rows.Next() {
		raw, scanErr := scanReminderJSON(rows.Scan)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "reminderRepository.ChangedSince").
				Int64("user_id", userID).
				Msg("failed to scan reminder row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		changed = append(changed, raw)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "reminderRepository.ChangedSince").
			Int64("user_id", userID).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return changed, nil
}

func decodeReminderPayload(data json.RawMessage) (*reminderPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty reminder payload", ErrInvalidEntityPayload)
	}

	var payload reminderPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntityPayload, err)
	}

	return &payload, nil
}

func scanReminderJSON(scan func(dest ...any) error) (json.RawMessage, error) {
	var reminder models.Reminder
	var remindAt sql.NullTime

	err := scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.Title,
		&reminder.Notes,
		&remindAt,
		&reminder.Done,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if remindAt.Valid {
		reminder.RemindAt = &remindAt.Time
	}

	raw, marshalErr := json.Marshal(reminder)
	if marshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, marshalErr)
	}

	return raw, nil
}
