package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrEntityNotFound is returned when an update or delete targets an
	// entity row that does not exist. A delete of an absent row is a failure
	// signal so the client can detect a stale delete, not a success.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityAlreadyExists is returned when a create collides with an
	// existing row for the same client-supplied entity id.
	ErrEntityAlreadyExists = errors.New("entity already exists")

	// ErrInvalidEntityPayload is returned when an entity store cannot decode
	// the opaque payload the client supplied for its entity type.
	ErrInvalidEntityPayload = errors.New("invalid entity payload")

	// ErrSyncRecordNotFound is returned when a ledger lookup by id produces
	// no row.
	ErrSyncRecordNotFound = errors.New("sync record not found")

	// ErrUnknownEntityType is returned by the entity store registry when an
	// operation carries a tag no store is registered for.
	ErrUnknownEntityType = errors.New("unknown entity type")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. no columns to update).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrPreparingStatement is returned when a SQL statement cannot be
	// prepared (e.g. syntax error or connection issue).
	ErrPreparingStatement = errors.New("failed to prepare statement")

	// ErrExecutingStatement is returned when executing a prepared DML
	// statement (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row into a destination struct fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")
)
