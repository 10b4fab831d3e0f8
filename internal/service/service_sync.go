// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MKhiriev/go-remind-sync/internal/config"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/store"
	"github.com/MKhiriev/go-remind-sync/internal/utils"
	"github.com/MKhiriev/go-remind-sync/models"
)

// SyncService is the batch sync processor. It owns the two-phase execution of
// a sync call:
//
// Phase 1 (no transaction): per-operation structural validation and conflict
// detection. Invalid operations land in the failed bucket without a ledger
// row; conflicting operations get a ledger row with status "conflict" and are
// never queued for application.
//
// Phase 2 (single transaction): per-user advisory lock, bulk ledger insert of
// the whole batch, then in-order dispatch of the queued operations to their
// entity stores with per-operation completed/failed bookkeeping. A storage
// abort rolls everything back and the batch is re-recorded as failed.
type SyncService struct {
	ledger   store.SyncLedger
	entities store.EntityStores
	tx       store.TxManager
	detector *conflictDetector
	feed     *feedBuilder
	uuid     *utils.UUIDGenerator

	maxBatchSize int
	logger       *logger.Logger
}

// NewSyncService wires the batch sync processor with its collaborators.
func NewSyncService(storages *store.Storages, cfg config.Sync, log *logger.Logger) *SyncService {
	return &SyncService{
		ledger:       storages.Ledger,
		entities:     storages.Entities,
		tx:           storages.Tx,
		detector:     newConflictDetector(storages.Ledger, storages.Entities, log),
		feed:         newFeedBuilder(storages.Ledger, storages.Entities, log),
		uuid:         utils.NewUUIDGenerator(),
		maxBatchSize: cfg.MaxBatchSize,
		logger:       log,
	}
}

// queuedOperation pairs an accepted operation with its pending ledger row for
// phase 2 dispatch.
type queuedOperation struct {
	op     models.SyncOperation
	record *models.SyncRecord
}

// Process executes one sync call and returns the per-operation outcome
// buckets plus the server update feed since the client's watermark.
//
// Per-operation failures never abort the call; only request-level validation
// problems and feed/storage errors surface as a returned error.
func (s *SyncService) Process(ctx context.Context, userID int64, request models.SyncRequest, page models.PageRequest) (*models.SyncResponse, error) {
	log := logger.FromContext(ctx)

	if request.DeviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", ErrValidation)
	}
	if s.maxBatchSize > 0 && len(request.Operations) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: got %d operations, limit is %d", ErrBatchTooLarge, len(request.Operations), s.maxBatchSize)
	}

	syncTime := time.Now().UTC()
	result := models.SyncResult{
		Success:   []models.OperationResult{},
		Failed:    []models.OperationResult{},
		Conflicts: []models.OperationResult{},
	}

	records, queued, err := s.triageOperations(ctx, userID, request, syncTime, &result)
	if err != nil {
		return nil, err
	}

	if len(records) > 0 {
		if applyErr := s.applyBatch(ctx, userID, records, queued, &result); applyErr != nil {
			return nil, applyErr
		}
	}

	updates, feedErr := s.feed.Build(ctx, userID, request.LastSyncTime, page)
	if feedErr != nil {
		log.Err(feedErr).
			Str("func", "SyncService.Process").
			Int64("user_id", userID).
			Msg("failed to build server update feed")

		if len(records) == 0 {
			return nil, feedErr
		}

		// The batch outcome is already durable. A call-level error here
		// would make the client re-submit operations that were applied, so
		// the committed results go out with an empty feed; the client can
		// tell it apart from "nothing changed" by the absent entity keys.
		return &models.SyncResponse{
			Results:  result,
			SyncTime: syncTime,
		}, nil
	}

	return &models.SyncResponse{
		Results:       result,
		ServerUpdates: updates,
		SyncTime:      syncTime,
	}, nil
}

// triageOperations runs phase 1: structural validation and conflict
// detection, producing the full ledger row batch and the subset queued for
// application. Runs before any transaction is opened.
func (s *SyncService) triageOperations(ctx context.Context, userID int64, request models.SyncRequest, syncTime time.Time, result *models.SyncResult) ([]*models.SyncRecord, []queuedOperation, error) {
	log := logger.FromContext(ctx)

	records := make([]*models.SyncRecord, 0, len(request.Operations))
	queued := make([]queuedOperation, 0, len(request.Operations))

	for _, op := range request.Operations {
		if validationMsg := validateOperation(op); validationMsg != "" {
			result.Failed = append(result.Failed, models.OperationResult{
				OperationID: op.Ref(),
				EntityType:  op.EntityType,
				EntityID:    op.EntityID,
				Error:       validationMsg,
			})
			continue
		}

		conflict, detectErr := s.detector.Detect(ctx, userID, op)
		if detectErr != nil {
			log.Err(detectErr).
				Str("func", "SyncService.triageOperations").
				Str("entity_id", op.EntityID).
				Msg("conflict detection failed")
			return nil, nil, detectErr
		}

		record := &models.SyncRecord{
			ID:            s.uuid.Generate(),
			UserID:        userID,
			DeviceID:      request.DeviceID,
			EntityType:    op.EntityType,
			OperationType: op.OperationType,
			EntityID:      op.EntityID,
			EntityData:    op.EntityData,
			Version:       op.Version,
			SyncTime:      syncTime,
		}

		if conflict != nil {
			record.Status = models.StatusConflict
			record.ConflictData = conflict
			records = append(records, record)

			result.Conflicts = append(result.Conflicts, models.OperationResult{
				OperationID:  op.Ref(),
				EntityType:   op.EntityType,
				EntityID:     op.EntityID,
				SyncRecordID: record.ID,
				ConflictData: conflict,
			})
			continue
		}

		record.Status = models.StatusPending
		records = append(records, record)
		queued = append(queued, queuedOperation{op: op, record: record})
	}

	return records, queued, nil
}

// applyBatch runs phase 2. The advisory lock, the ledger bulk insert, every
// entity mutation and every status update share one transaction. When that
// transaction aborts, the batch is re-recorded with its unfinished operations
// marked failed so the ledger still reflects the attempt.
func (s *SyncService) applyBatch(ctx context.Context, userID int64, records []*models.SyncRecord, queued []queuedOperation, result *models.SyncResult) error {
	log := logger.FromContext(ctx)

	// Outcomes are staged and merged into result only after the transaction
	// settles, so an abort can rewrite them wholesale.
	staged := models.SyncResult{}

	txErr := s.tx.ExecuteTx(ctx, func(tx *sql.Tx) error {
		if lockErr := s.ledger.AcquireUserLock(ctx, tx, userID); lockErr != nil {
			return lockErr
		}

		if insertErr := s.ledger.InsertRecords(ctx, tx, records); insertErr != nil {
			return insertErr
		}

		for _, item := range queued {
			outcome := models.OperationResult{
				OperationID:  item.op.Ref(),
				EntityType:   item.op.EntityType,
				EntityID:     item.op.EntityID,
				SyncRecordID: item.record.ID,
			}

			applyErr := s.applyOperation(ctx, tx, userID, item.op)
			if applyErr == nil {
				if markErr := s.ledger.MarkCompleted(ctx, tx, item.record.ID); markErr != nil {
					return markErr
				}
				item.record.Status = models.StatusCompleted
				staged.Success = append(staged.Success, outcome)
				continue
			}

			if !isOperationFailure(applyErr) {
				// Storage-level trouble, not a per-operation outcome:
				// abort the whole transaction.
				return applyErr
			}

			if markErr := s.ledger.MarkFailed(ctx, tx, item.record.ID, applyErr.Error()); markErr != nil {
				return markErr
			}
			item.record.Status = models.StatusFailed
			item.record.ErrorMessage = applyErr.Error()
			outcome.Error = applyErr.Error()
			staged.Failed = append(staged.Failed, outcome)
		}

		return nil
	})

	if txErr == nil {
		result.Success = append(result.Success, staged.Success...)
		result.Failed = append(result.Failed, staged.Failed...)
		return nil
	}

	log.Err(txErr).
		Str("func", "SyncService.applyBatch").
		Int64("user_id", userID).
		Int("records_count", len(records)).
		Msg("sync batch transaction aborted")

	s.recordAbortedBatch(ctx, txErr, records, queued, result)
	return nil
}

// recordAbortedBatch re-inserts the batch after a transaction abort: every
// operation that had not reached completed or failed is marked failed with
// the transaction-level error, and conflict rows keep their conflict status.
// Best effort; a second failure is logged and the response buckets still
// carry the failed outcomes.
func (s *SyncService) recordAbortedBatch(ctx context.Context, txErr error, records []*models.SyncRecord, queued []queuedOperation, result *models.SyncResult) {
	log := logger.FromContext(ctx)
	message := fmt.Sprintf("sync transaction aborted: %s", txErr)

	for _, record := range records {
		if record.Status == models.StatusPending || record.Status == models.StatusCompleted {
			record.Status = models.StatusFailed
			record.ErrorMessage = message
		}
	}

	reinsertErr := s.tx.ExecuteTx(ctx, func(tx *sql.Tx) error {
		return s.ledger.InsertRecords(ctx, tx, records)
	})
	if reinsertErr != nil {
		log.Err(reinsertErr).
			Str("func", "SyncService.recordAbortedBatch").
			Msg("failed to record aborted sync batch in ledger")
	}

	for _, item := range queued {
		result.Failed = append(result.Failed, models.OperationResult{
			OperationID:  item.op.Ref(),
			EntityType:   item.op.EntityType,
			EntityID:     item.op.EntityID,
			SyncRecordID: item.record.ID,
			Error:        message,
		})
	}
}

// applyOperation dispatches one accepted operation to the entity store owning
// its entity type.
func (s *SyncService) applyOperation(ctx context.Context, q store.Querier, userID int64, op models.SyncOperation) error {
	entityStore, err := s.entities.ForType(op.EntityType)
	if err != nil {
		return err
	}

	switch op.OperationType {
	case models.OperationCreate:
		return entityStore.Insert(ctx, q, userID, op.EntityID, op.EntityData)
	case models.OperationUpdate:
		return entityStore.Update(ctx, q, userID, op.EntityID, op.EntityData)
	case models.OperationDelete:
		return entityStore.Delete(ctx, q, userID, op.EntityID)
	default:
		return fmt.Errorf("unsupported operation type %q", op.OperationType)
	}
}

// ListRecords serves the filtered ledger listing for the caller.
func (s *SyncService) ListRecords(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.SyncRecord, error) {
	return s.ledger.ListRecords(ctx, userID, filter)
}

// LastSyncTime serves the device's latest completed sync timestamp.
func (s *SyncService) LastSyncTime(ctx context.Context, userID int64, deviceID string) (*time.Time, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", ErrValidation)
	}
	return s.ledger.LastSyncTime(ctx, userID, deviceID)
}

// validateOperation checks the structural requirements of a single incoming
// operation. A non-empty return is the failure reason; no ledger row is
// written for such operations.
func validateOperation(op models.SyncOperation) string {
	if op.EntityType == "" {
		return "missing required parameter: entity_type"
	}
	if !op.EntityType.Valid() {
		return fmt.Sprintf("unknown entity type %q", op.EntityType)
	}
	if op.OperationType == "" {
		return "missing required parameter: operation_type"
	}
	if !op.OperationType.Valid() {
		return fmt.Sprintf("unknown operation type %q", op.OperationType)
	}
	if op.EntityID == "" {
		return "missing required parameter: entity_id"
	}
	if op.Version <= 0 {
		return "version must be a positive integer"
	}
	if op.OperationType != models.OperationDelete && len(op.EntityData) == 0 {
		return "missing required parameter: entity_data"
	}
	return ""
}
