// Package store implements the persistence layer of the sync engine:
// the sync ledger, the per-entity stores, and the transaction manager the
// batch processor uses to apply a sync call atomically.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/MKhiriev/go-remind-sync/models"
)

// Querier is the subset of database operations shared by *sql.DB and
// *sql.Tx. Mutating store methods accept a Querier so the batch processor
// can run them under its own transaction handle, while read paths use the
// store's embedded connection directly.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// EntityStore is the per-entity-type persistence contract the sync engine
// dispatches to. Payloads cross this boundary as opaque JSON; each
// implementation owns the (de)serialization of its entity.
//
// Insert, Update and Delete run under the caller-supplied transactional
// handle. Update applies only the fields present in data (partial update
// semantics). Delete of an absent row returns [ErrEntityNotFound] so a stale
// delete is visible to the client instead of silently succeeding.
type EntityStore interface {
	Insert(ctx context.Context, q Querier, userID int64, entityID string, data json.RawMessage) error
	Update(ctx context.Context, q Querier, userID int64, entityID string, data json.RawMessage) error
	Delete(ctx context.Context, q Querier, userID int64, entityID string) error

	// GetByID returns the serialized current row, or ErrEntityNotFound.
	GetByID(ctx context.Context, userID int64, entityID string) (json.RawMessage, error)

	// ChangedSince returns serialized rows whose last-modified timestamp is
	// strictly after since, for the update feed.
	ChangedSince(ctx context.Context, userID int64, since time.Time) ([]json.RawMessage, error)
}

// SyncLedger is the durable, append-mostly record of every sync attempt.
// It is the source of truth for conflict detection and for the
// deleted-entity tombstone feed.
type SyncLedger interface {
	// InsertRecords bulk-inserts the full batch of ledger rows (pending and
	// conflict alike) under the caller's transaction handle.
	InsertRecords(ctx context.Context, q Querier, records []*models.SyncRecord) error

	// LatestForEntity returns the most recent ledger row for the entity,
	// ordered by sync_time descending, or nil when the entity has never been
	// seen. For user-scoped entity types only the caller's rows count; for
	// global types (holidays) any user's row carries the effective version.
	// Never mutates the ledger.
	LatestForEntity(ctx context.Context, userID int64, entityType models.EntityType, entityID string) (*models.SyncRecord, error)

	// GetByID fetches a single ledger row or returns ErrSyncRecordNotFound.
	GetByID(ctx context.Context, recordID string) (*models.SyncRecord, error)

	MarkCompleted(ctx context.Context, q Querier, recordID string) error
	MarkFailed(ctx context.Context, q Querier, recordID string, errorMessage string) error
	MarkResolved(ctx context.Context, q Querier, recordID string, resolution models.Resolution, resolvedAt time.Time) error

	// ListRecords returns the caller's ledger rows narrowed by filter,
	// newest first.
	ListRecords(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.SyncRecord, error)

	// DeletedSince returns tombstones derived from completed delete
	// operations with sync_time strictly after since: the caller's own
	// deletions plus any user's deletions of global entity types.
	DeletedSince(ctx context.Context, userID int64, since time.Time) ([]models.Tombstone, error)

	// LastSyncTime returns the latest completed sync timestamp for the
	// device, or nil when the device has never synced successfully.
	LastSyncTime(ctx context.Context, userID int64, deviceID string) (*time.Time, error)

	// AcquireUserLock takes a transaction-scoped advisory lock keyed by the
	// user, serializing concurrent batches from the same user's devices.
	AcquireUserLock(ctx context.Context, q Querier, userID int64) error
}

// TxManager runs fn inside a database transaction, committing on normal
// return and rolling back when fn returns an error.
type TxManager interface {
	ExecuteTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}
