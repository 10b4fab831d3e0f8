package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MKhiriev/go-remind-sync/internal/config"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/store"
	"github.com/MKhiriev/go-remind-sync/internal/store/mocks"
	"github.com/MKhiriev/go-remind-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type syncServiceMocks struct {
	ledger    *mocks.MockSyncLedger
	reminders *mocks.MockEntityStore
	holidays  *mocks.MockEntityStore
	tx        *mocks.MockTxManager
}

func newTestSyncService(t *testing.T, cfg config.Sync) (*SyncService, syncServiceMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := syncServiceMocks{
		ledger:    mocks.NewMockSyncLedger(ctrl),
		reminders: mocks.NewMockEntityStore(ctrl),
		holidays:  mocks.NewMockEntityStore(ctrl),
		tx:        mocks.NewMockTxManager(ctrl),
	}

	storages := &store.Storages{
		Ledger: m.ledger,
		Entities: store.EntityStores{
			Reminders: m.reminders,
			Holidays:  m.holidays,
		},
		Tx: m.tx,
	}

	return NewSyncService(storages, cfg, logger.Nop()), m
}

// expectEmptyFeed satisfies the update-feed expectations Process triggers at
// the end of every successful call.
func expectEmptyFeed(m syncServiceMocks) {
	m.reminders.EXPECT().ChangedSince(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	m.holidays.EXPECT().ChangedSince(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	m.ledger.EXPECT().DeletedSince(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
}

// passThroughTx makes the mocked transaction manager invoke the callback with
// a nil handle, so in-transaction expectations fire.
func passThroughTx(m syncServiceMocks) {
	m.tx.EXPECT().ExecuteTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(*sql.Tx) error) error {
			return fn(nil)
		})
}

func TestSyncService_Process_RequestValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing device id", func(t *testing.T) {
		svc, _ := newTestSyncService(t, config.Sync{})

		_, err := svc.Process(ctx, 1, models.SyncRequest{}, models.PageRequest{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("batch exceeds configured maximum", func(t *testing.T) {
		svc, _ := newTestSyncService(t, config.Sync{MaxBatchSize: 1})

		request := models.SyncRequest{
			DeviceID: "device-1",
			Operations: []models.SyncOperation{
				{EntityType: models.EntityTypeReminder, OperationType: models.OperationCreate, EntityID: "a", Version: 1},
				{EntityType: models.EntityTypeReminder, OperationType: models.OperationCreate, EntityID: "b", Version: 1},
			},
		}

		_, err := svc.Process(ctx, 1, request, models.PageRequest{})
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})
}

func TestSyncService_Process_InvalidOperationsFailWithoutLedgerRows(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestSyncService(t, config.Sync{})
	expectEmptyFeed(m)

	request := models.SyncRequest{
		DeviceID: "device-1",
		Operations: []models.SyncOperation{
			{OperationID: "op-1", EntityType: models.EntityTypeReminder, OperationType: models.OperationUpdate, Version: 1, EntityData: json.RawMessage(`{}`)},
			{OperationID: "op-2", EntityType: "unknown", OperationType: models.OperationCreate, EntityID: "x", Version: 1, EntityData: json.RawMessage(`{}`)},
			{OperationID: "op-3", EntityType: models.EntityTypeReminder, OperationType: models.OperationUpdate, EntityID: "r1", Version: 0, EntityData: json.RawMessage(`{}`)},
		},
	}

	response, err := svc.Process(ctx, 1, request, models.PageRequest{})
	require.NoError(t, err)

	require.Len(t, response.Results.Failed, 3)
	assert.Contains(t, response.Results.Failed[0].Error, "entity_id")
	assert.Contains(t, response.Results.Failed[1].Error, "unknown entity type")
	assert.Contains(t, response.Results.Failed[2].Error, "positive")
	assert.Empty(t, response.Results.Success)
	assert.Empty(t, response.Results.Conflicts)

	for _, failed := range response.Results.Failed {
		assert.Empty(t, failed.SyncRecordID)
	}
}

func TestSyncService_Process_AppliesAcceptedOperations(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)
	svc, m := newTestSyncService(t, config.Sync{})

	createData := json.RawMessage(`{"title":"buy milk"}`)
	request := models.SyncRequest{
		DeviceID: "device-1",
		Operations: []models.SyncOperation{
			{OperationID: "op-1", EntityType: models.EntityTypeReminder, OperationType: models.OperationCreate, EntityID: "r1", EntityData: createData, Version: 1},
			{OperationID: "op-2", EntityType: models.EntityTypeReminder, OperationType: models.OperationDelete, EntityID: "gone", Version: 1},
		},
	}

	m.ledger.EXPECT().LatestForEntity(gomock.Any(), userID, models.EntityTypeReminder, "r1").Return(nil, nil)
	m.ledger.EXPECT().LatestForEntity(gomock.Any(), userID, models.EntityTypeReminder, "gone").Return(nil, nil)

	passThroughTx(m)
	m.ledger.EXPECT().AcquireUserLock(gomock.Any(), gomock.Any(), userID).Return(nil)

	var inserted []*models.SyncRecord
	m.ledger.EXPECT().InsertRecords(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ store.Querier, records []*models.SyncRecord) error {
			inserted = records
			return nil
		})

	m.reminders.EXPECT().Insert(gomock.Any(), gomock.Any(), userID, "r1", createData).Return(nil)
	m.ledger.EXPECT().MarkCompleted(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	m.reminders.EXPECT().Delete(gomock.Any(), gomock.Any(), userID, "gone").Return(store.ErrEntityNotFound)
	m.ledger.EXPECT().MarkFailed(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	expectEmptyFeed(m)

	response, err := svc.Process(ctx, userID, request, models.PageRequest{})
	require.NoError(t, err)

	require.Len(t, inserted, 2)
	assert.Equal(t, models.StatusCompleted, inserted[0].Status)
	assert.Equal(t, models.StatusFailed, inserted[1].Status)
	assert.Equal(t, inserted[0].SyncTime, inserted[1].SyncTime)

	require.Len(t, response.Results.Success, 1)
	assert.Equal(t, "op-1", response.Results.Success[0].OperationID)
	assert.NotEmpty(t, response.Results.Success[0].SyncRecordID)

	require.Len(t, response.Results.Failed, 1)
	assert.Equal(t, "op-2", response.Results.Failed[0].OperationID)
	assert.Contains(t, response.Results.Failed[0].Error, "not found")

	assert.False(t, response.SyncTime.IsZero())
}

func TestSyncService_Process_ConflictsAreLedgeredNotApplied(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)
	svc, m := newTestSyncService(t, config.Sync{})

	request := models.SyncRequest{
		DeviceID: "device-1",
		Operations: []models.SyncOperation{
			{OperationID: "op-1", EntityType: models.EntityTypeReminder, OperationType: models.OperationUpdate, EntityID: "r1", EntityData: json.RawMessage(`{"title":"X"}`), Version: 2},
		},
	}

	m.ledger.EXPECT().LatestForEntity(gomock.Any(), userID, models.EntityTypeReminder, "r1").
		Return(&models.SyncRecord{EntityID: "r1", Version: 3}, nil)
	m.reminders.EXPECT().GetByID(gomock.Any(), userID, "r1").
		Return(json.RawMessage(`{"id":"r1"}`), nil)

	passThroughTx(m)
	m.ledger.EXPECT().AcquireUserLock(gomock.Any(), gomock.Any(), userID).Return(nil)

	var inserted []*models.SyncRecord
	m.ledger.EXPECT().InsertRecords(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ store.Querier, records []*models.SyncRecord) error {
			inserted = records
			return nil
		})

	expectEmptyFeed(m)

	response, err := svc.Process(ctx, userID, request, models.PageRequest{})
	require.NoError(t, err)

	require.Len(t, inserted, 1)
	assert.Equal(t, models.StatusConflict, inserted[0].Status)
	require.NotNil(t, inserted[0].ConflictData)
	assert.Equal(t, int64(3), inserted[0].ConflictData.ServerVersion)

	require.Len(t, response.Results.Conflicts, 1)
	conflict := response.Results.Conflicts[0]
	assert.Equal(t, "op-1", conflict.OperationID)
	assert.Equal(t, inserted[0].ID, conflict.SyncRecordID)
	require.NotNil(t, conflict.ConflictData)
	assert.Equal(t, int64(2), conflict.ConflictData.ClientVersion)

	assert.Empty(t, response.Results.Success)
	assert.Empty(t, response.Results.Failed)
}

func TestSyncService_Process_TransactionAbortFailsUnfinishedOperations(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)
	svc, m := newTestSyncService(t, config.Sync{})

	request := models.SyncRequest{
		DeviceID: "device-1",
		Operations: []models.SyncOperation{
			{OperationID: "op-1", EntityType: models.EntityTypeReminder, OperationType: models.OperationCreate, EntityID: "r1", EntityData: json.RawMessage(`{"title":"a"}`), Version: 1},
			{OperationID: "op-2", EntityType: models.EntityTypeReminder, OperationType: models.OperationCreate, EntityID: "r2", EntityData: json.RawMessage(`{"title":"b"}`), Version: 1},
		},
	}

	m.ledger.EXPECT().LatestForEntity(gomock.Any(), userID, models.EntityTypeReminder, "r1").Return(nil, nil)
	m.ledger.EXPECT().LatestForEntity(gomock.Any(), userID, models.EntityTypeReminder, "r2").Return(nil, nil)

	// The batch transaction aborts outright; the follow-up bookkeeping
	// transaction succeeds.
	m.tx.EXPECT().ExecuteTx(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	var rerecorded []*models.SyncRecord
	m.tx.EXPECT().ExecuteTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(*sql.Tx) error) error {
			return fn(nil)
		})
	m.ledger.EXPECT().InsertRecords(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ store.Querier, records []*models.SyncRecord) error {
			rerecorded = records
			return nil
		})

	expectEmptyFeed(m)

	response, err := svc.Process(ctx, userID, request, models.PageRequest{})
	require.NoError(t, err)

	require.Len(t, rerecorded, 2)
	for _, record := range rerecorded {
		assert.Equal(t, models.StatusFailed, record.Status)
		assert.Contains(t, record.ErrorMessage, "sync transaction aborted")
	}

	require.Len(t, response.Results.Failed, 2)
	for _, failed := range response.Results.Failed {
		assert.Contains(t, failed.Error, "sync transaction aborted")
	}
	assert.Empty(t, response.Results.Success)
}

func TestSyncService_Process_FeedFailureAfterCommitKeepsResults(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)

	t.Run("committed batch is returned with an empty feed", func(t *testing.T) {
		svc, m := newTestSyncService(t, config.Sync{})

		createData := json.RawMessage(`{"title":"buy milk"}`)
		request := models.SyncRequest{
			DeviceID: "device-1",
			Operations: []models.SyncOperation{
				{OperationID: "op-1", EntityType: models.EntityTypeReminder, OperationType: models.OperationCreate, EntityID: "r1", EntityData: createData, Version: 1},
			},
		}

		m.ledger.EXPECT().LatestForEntity(gomock.Any(), userID, models.EntityTypeReminder, "r1").Return(nil, nil)

		passThroughTx(m)
		m.ledger.EXPECT().AcquireUserLock(gomock.Any(), gomock.Any(), userID).Return(nil)
		m.ledger.EXPECT().InsertRecords(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		m.reminders.EXPECT().Insert(gomock.Any(), gomock.Any(), userID, "r1", createData).Return(nil)
		m.ledger.EXPECT().MarkCompleted(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		// The feed build fails after the batch transaction committed.
		m.reminders.EXPECT().ChangedSince(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, store.ErrExecutingQuery)

		response, err := svc.Process(ctx, userID, request, models.PageRequest{})
		require.NoError(t, err)

		require.Len(t, response.Results.Success, 1)
		assert.Equal(t, "op-1", response.Results.Success[0].OperationID)
		assert.Nil(t, response.ServerUpdates.Entities)
		assert.Empty(t, response.ServerUpdates.DeletedEntities)
		assert.False(t, response.SyncTime.IsZero())
	})

	t.Run("without durable mutations the feed error surfaces", func(t *testing.T) {
		svc, m := newTestSyncService(t, config.Sync{})

		m.reminders.EXPECT().ChangedSince(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, store.ErrExecutingQuery)

		_, err := svc.Process(ctx, userID, models.SyncRequest{DeviceID: "device-1"}, models.PageRequest{})
		assert.ErrorIs(t, err, store.ErrExecutingQuery)
	})
}

func TestSyncService_LastSyncTime(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestSyncService(t, config.Sync{})

	t.Run("missing device id", func(t *testing.T) {
		_, err := svc.LastSyncTime(ctx, 1, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("passes through to ledger", func(t *testing.T) {
		want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		m.ledger.EXPECT().LastSyncTime(gomock.Any(), int64(1), "device-1").Return(&want, nil)

		got, err := svc.LastSyncTime(ctx, 1, "device-1")
		require.NoError(t, err)
		assert.Equal(t, &want, got)
	})
}
