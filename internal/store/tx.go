package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MKhiriev/go-remind-sync/internal/logger"
)

// ExecuteTx implements [TxManager] on the shared database handle.
//
// fn receives the open transaction and may run any number of ledger and
// entity store operations against it. A nil return commits; any error rolls
// the whole transaction back, so a sync batch is all-or-nothing at the
// storage-engine level.
func (db *DB) ExecuteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	log := logger.FromContext(ctx)

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "*DB.ExecuteTx").Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if db.errorClassificator.Classify(err) == Retryable {
			log.Warn().Str("func", "*DB.ExecuteTx").Msg("transaction failed with a retryable storage error")
		}
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		log.Err(commitErr).Str("func", "*DB.ExecuteTx").Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, commitErr)
	}

	return nil
}
