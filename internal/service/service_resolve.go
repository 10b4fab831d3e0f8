// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/store"
	"github.com/MKhiriev/go-remind-sync/internal/utils"
	"github.com/MKhiriev/go-remind-sync/models"
)

// ResolveService applies a resolution strategy to a conflicted sync record.
//
// The original record transitions to resolved and stays immutable afterwards;
// client and merge strategies additionally create a follow-up sync record for
// the corrective write, applied through the same entity store dispatch the
// batch processor uses. The whole resolution is one short transaction.
type ResolveService struct {
	ledger   store.SyncLedger
	entities store.EntityStores
	tx       store.TxManager
	uuid     *utils.UUIDGenerator
	logger   *logger.Logger
}

// NewResolveService wires the conflict resolver with its collaborators.
func NewResolveService(storages *store.Storages, log *logger.Logger) *ResolveService {
	return &ResolveService{
		ledger:   storages.Ledger,
		entities: storages.Entities,
		tx:       storages.Tx,
		uuid:     utils.NewUUIDGenerator(),
		logger:   log,
	}
}

// Resolve checks the resolution preconditions, marks the conflicted record
// resolved, and issues the corrective write when the strategy requires one.
//
// Precondition failures are distinct errors: the record must exist
// (store.ErrSyncRecordNotFound), belong to the caller (ErrForbidden), be in
// conflict status (ErrNotConflicted), and a merge must carry merged data
// (ErrMergedDataRequired).
func (s *ResolveService) Resolve(ctx context.Context, userID int64, request models.ResolveConflictRequest) (*models.ResolveResult, error) {
	log := logger.FromContext(ctx)

	if request.SyncRecordID == "" {
		return nil, fmt.Errorf("%w: sync_record_id is required", ErrValidation)
	}
	if !request.Resolution.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, request.Resolution)
	}

	record, err := s.ledger.GetByID(ctx, request.SyncRecordID)
	if err != nil {
		return nil, err
	}

	if record.UserID != userID {
		log.Warn().
			Str("func", "ResolveService.Resolve").
			Str("sync_record_id", record.ID).
			Int64("user_id", userID).
			Msg("resolution attempt on foreign sync record")
		return nil, ErrForbidden
	}
	if record.Status != models.StatusConflict || record.ConflictData == nil {
		return nil, ErrNotConflicted
	}
	if request.Resolution == models.ResolutionMerge && len(request.MergedData) == 0 {
		return nil, ErrMergedDataRequired
	}

	resolvedAt := time.Now().UTC()
	followUp := s.buildFollowUpRecord(record, request, resolvedAt)

	txErr := s.tx.ExecuteTx(ctx, func(tx *sql.Tx) error {
		if markErr := s.ledger.MarkResolved(ctx, tx, record.ID, request.Resolution, resolvedAt); markErr != nil {
			return markErr
		}

		if followUp == nil {
			// Server strategy: the authoritative data already stands,
			// no corrective write.
			return nil
		}

		if insertErr := s.ledger.InsertRecords(ctx, tx, []*models.SyncRecord{followUp}); insertErr != nil {
			return insertErr
		}

		if applyErr := s.applyFollowUp(ctx, tx, followUp); applyErr != nil {
			return applyErr
		}

		return s.ledger.MarkCompleted(ctx, tx, followUp.ID)
	})
	if txErr != nil {
		log.Err(txErr).
			Str("func", "ResolveService.Resolve").
			Str("sync_record_id", record.ID).
			Str("resolution", string(request.Resolution)).
			Msg("conflict resolution failed")
		return nil, txErr
	}

	result := &models.ResolveResult{
		EntityID:   record.EntityID,
		Resolution: request.Resolution,
		ResolvedAt: resolvedAt,
	}
	if followUp != nil {
		result.FollowUpRecordID = followUp.ID
	}

	return result, nil
}

// buildFollowUpRecord constructs the corrective-write ledger row for client
// and merge strategies, or nil for the server strategy.
//
// The follow-up version is the conflicting server version plus one, so future
// conflict detection sees the resolution as the newest write. A client
// resolution re-issues the original payload under the original operation
// type; a merge always lands as an update carrying the merged payload.
func (s *ResolveService) buildFollowUpRecord(record *models.SyncRecord, request models.ResolveConflictRequest, resolvedAt time.Time) *models.SyncRecord {
	if request.Resolution == models.ResolutionServer {
		return nil
	}

	followUp := &models.SyncRecord{
		ID:         s.uuid.Generate(),
		UserID:     record.UserID,
		DeviceID:   record.DeviceID,
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
		Version:    record.ConflictData.ServerVersion + 1,
		Status:     models.StatusPending,
		SyncTime:   resolvedAt,
	}

	switch request.Resolution {
	case models.ResolutionClient:
		followUp.OperationType = record.OperationType
		followUp.EntityData = record.EntityData
	case models.ResolutionMerge:
		followUp.OperationType = models.OperationUpdate
		followUp.EntityData = request.MergedData
	}

	return followUp
}

// applyFollowUp dispatches the corrective write through the entity stores.
func (s *ResolveService) applyFollowUp(ctx context.Context, q store.Querier, followUp *models.SyncRecord) error {
	entityStore, err := s.entities.ForType(followUp.EntityType)
	if err != nil {
		return err
	}

	switch followUp.OperationType {
	case models.OperationCreate:
		return entityStore.Insert(ctx, q, followUp.UserID, followUp.EntityID, followUp.EntityData)
	case models.OperationUpdate:
		return entityStore.Update(ctx, q, followUp.UserID, followUp.EntityID, followUp.EntityData)
	case models.OperationDelete:
		return entityStore.Delete(ctx, q, followUp.UserID, followUp.EntityID)
	default:
		return fmt.Errorf("unsupported operation type %q", followUp.OperationType)
	}
}
