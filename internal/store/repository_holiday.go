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
	insertHoliday = `INSERT INTO holidays (id, name, date, country)
		VALUES ($1, $2, $3, $4);`

	deleteHoliday = `DELETE FROM holidays WHERE id = $1;`

	getHolidayByID = `SELECT id, name, date, country, created_at, updated_at
		FROM holidays
		WHERE id = $1;`
)

var holidayColumns = []string{"id", "name", "date", "country", "created_at", "updated_at"}

// holidayPayload is the client-facing wire shape of a holiday operation.
type holidayPayload struct {
	Name    *string    `json:"name,omitempty"`
	Date    *time.Time `json:"date,omitempty"`
	Country *string    `json:"country,omitempty"`
}

// holidayRepository implements [EntityStore] for holidays. Holidays are
// global rows shared by all users, so the userID argument is accepted for
// interface symmetry and ignored in the SQL.
type holidayRepository struct {
	*DB
	logger *logger.Logger
}

// NewHolidayRepository constructs the holiday [EntityStore].
func NewHolidayRepository(db *DB, logger *logger.Logger) EntityStore {
	return &holidayRepository{DB: db, logger: logger}
}

func (h *holidayRepository) Insert(ctx context.Context, q Querier, _ int64, entityID string, data json.RawMessage) error {
	log := logger.FromContext(ctx)

	payload, err := decodeHolidayPayload(data)
	if err != nil {
		return err
	}
	if payload.Name == nil || *payload.Name == "" {
		return fmt.Errorf("%w: holiday name is required", ErrInvalidEntityPayload)
	}
	if payload.Date == nil {
		return fmt.Errorf("%w: holiday date is required", ErrInvalidEntityPayload)
	}

	var country string
	if payload.Country != nil {
		country = *payload.Country
	}

	_, execErr := q.ExecContext(ctx, insertHoliday, entityID, *payload.Name, *payload.Date, country)
	if execErr != nil {
		if isUniqueViolation(execErr) {
			return ErrEntityAlreadyExists
		}

		log.Err(execErr).
			Str("func", "holidayRepository.Insert").
			Str("entity_id", entityID).
			Msg("failed to insert holiday")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
	}

	return nil
}

func (h *holidayRepository) Update(ctx context.Context, q Querier, _ int64, entityID string, data json.RawMessage) error {
	log := logger.FromContext(ctx)

	payload, err := decodeHolidayPayload(data)
	if err != nil {
		return err
	}

	setClauses := map[string]any{}
	if payload.Name != nil {
		setClauses["name"] = *payload.Name
	}
	if payload.Date != nil {
		setClauses["date"] = *payload.Date
	}
	if payload.Country != nil {
		setClauses["country"] = *payload.Country
	}
	if len(setClauses) == 0 {
		return fmt.Errorf("%w: no holiday fields to update", ErrInvalidEntityPayload)
	}

	query, args, buildErr := buildPartialUpdateQuery("holidays", setClauses, sq.Eq{"id": entityID})
	if buildErr != nil {
		return buildErr
	}

	result, execErr := q.ExecContext(ctx, query, args...)
	if execErr != nil {
		log.Err(execErr).
			Str("func", "holidayRepository.Update").
			Str("entity_id", entityID).
			Msg("failed to update holiday")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (h *holidayRepository) Delete(ctx context.Context, q Querier, _ int64, entityID string) error {
	log := logger.FromContext(ctx)

	result, execErr := q.ExecContext(ctx, deleteHoliday, entityID)
	if execErr != nil {
		log.Err(execErr).
			Str("func", "holidayRepository.Delete").
			Str("entity_id", entityID).
			Msg("failed to delete holiday")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (h *holidayRepository) GetByID(ctx context.Context, _ int64, entityID string) (json.RawMessage, error) {
	log := logger.FromContext(ctx)

	row := h.DB.QueryRowContext(ctx, getHolidayByID, entityID)

	raw, err := scanHolidayJSON(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}

		log.Err(err).
			Str("func", "holidayRepository.GetByID").
			Str("entity_id", entityID).
			Msg("failed to fetch holiday")
		return nil, err
	}

	return raw, nil
}

func (h *holidayRepository) ChangedSince(ctx context.Context, userID int64, since time.Time) ([]json.RawMessage, error) {
	log := logger.FromContext(ctx)

	query, args, buildErr := buildChangedSinceQuery("holidays", holidayColumns, false, userID, since)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := h.DB.QueryContext(ctx, query, args...)
	if queryErr != nil {
		log.Err(queryErr).
			Str("func", "holidayRepository.ChangedSince").
			Msg("failed to query changed holidays")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, queryErr)
	}
	defer rows.Close()

	changed := make([]json.RawMessage, 0, 10)

	for rows.Next() {
		raw, scanErr := scanHolidayJSON(rows.Scan)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "holidayRepository.ChangedSince").
				Msg("failed to scan holiday row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		changed = append(changed, raw)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "holidayRepository.ChangedSince").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return changed, nil
}

func decodeHolidayPayload(data json.RawMessage) (*holidayPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty holiday payload", ErrInvalidEntityPayload)
	}

	var payload holidayPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntityPayload, err)
	}

	return &payload, nil
}

func scanHolidayJSON(scan func(dest ...any) error) (json.RawMessage, error) {
	var holiday models.Holiday

	err := scan(
		&holiday.ID,
		&holiday.Name,
		&holiday.Date,
		&holiday.Country,
		&holiday.CreatedAt,
		&holiday.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	raw, marshalErr := json.Marshal(holiday)
	if marshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, marshalErr)
	}

	return raw, nil
}
