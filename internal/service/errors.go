package service

import (
	"errors"

	"github.com/MKhiriev/go-remind-sync/internal/store"
)

// Call-level errors. Per-operation failures inside a batch are never
// surfaced this way; they land in the response's failed bucket instead.
var (
	// ErrValidation is wrapped by call-level request validation failures
	// (missing device id, missing sync record id and the like).
	ErrValidation = errors.New("validation error")

	// ErrBatchTooLarge is returned when a sync call carries more operations
	// than the configured maximum.
	ErrBatchTooLarge = errors.New("too many operations in sync batch")

	// ErrForbidden is returned when the sync record targeted by a resolution
	// call belongs to a different user.
	ErrForbidden = errors.New("sync record does not belong to caller")

	// ErrNotConflicted is returned when resolving a sync record whose status
	// is not "conflict". Resolved records are immutable audit history.
	ErrNotConflicted = errors.New("sync record is not in conflict status")

	// ErrInvalidResolution is returned for a resolution value outside
	// {server, client, merge}.
	ErrInvalidResolution = errors.New("unknown resolution strategy")

	// ErrMergedDataRequired is returned when a merge resolution arrives
	// without a merged payload.
	ErrMergedDataRequired = errors.New("merged_data is required for merge resolution")
)

// isOperationFailure reports whether err is a per-operation outcome (the
// operation lands in the failed bucket) rather than storage-level trouble
// that must abort the batch transaction.
func isOperationFailure(err error) bool {
	return errors.Is(err, store.ErrEntityNotFound) ||
		errors.Is(err, store.ErrEntityAlreadyExists) ||
		errors.Is(err, store.ErrInvalidEntityPayload) ||
		errors.Is(err, store.ErrUnknownEntityType)
}
