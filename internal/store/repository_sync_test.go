package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MKhiriev/go-remind-sync/internal/config"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var syncRecordColumns = []string{
	"id", "user_id", "device_id", "entity_type", "operation_type", "entity_id",
	"entity_data", "version", "status", "conflict_data", "resolution", "resolved_at",
	"error_message", "sync_time", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &DB{
		DB:                 conn,
		errorClassificator: NewPostgresErrorClassifier(),
		logger:             logger.Nop(),
	}, mock
}

func newTestSyncRepository(t *testing.T) (SyncLedger, *DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewSyncRepository(db, config.Sync{RecordsPageLimit: 50}, logger.Nop()), db, mock
}

func TestSyncRepository_InsertRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	record := func(id string) *models.SyncRecord {
		return &models.SyncRecord{
			ID:            id,
			UserID:        42,
			DeviceID:      "device-1",
			EntityType:    models.EntityTypeReminder,
			OperationType: models.OperationCreate,
			EntityID:      "r1",
			EntityData:    []byte(`{"title":"x"}`),
			Version:       1,
			Status:        models.StatusPending,
			SyncTime:      now,
		}
	}

	t.Run("single record uses plain insert", func(t *testing.T) {
		repo, db, mock := newTestSyncRepository(t)

		mock.ExpectExec("INSERT INTO sync_records").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.InsertRecords(ctx, db, []*models.SyncRecord{record("a")})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("multiple records go through a prepared statement", func(t *testing.T) {
		repo, db, mock := newTestSyncRepository(t)

		prepared := mock.ExpectPrepare("INSERT INTO sync_records")
		prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.InsertRecords(ctx, db, []*models.SyncRecord{record("a"), record("b")})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		repo, db, mock := newTestSyncRepository(t)

		err := repo.InsertRecords(ctx, db, nil)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSyncRepository_LatestForEntity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns the newest row", func(t *testing.T) {
		repo, _, mock := newTestSyncRepository(t)

		rows := sqlmock.NewRows(syncRecordColumns).AddRow(
			"rec-1", int64(42), "device-1", "reminder", "update", "r1",
			[]byte(`{"title":"x"}`), int64(3), "completed", nil, nil, nil,
			nil, now, now, now,
		)
		mock.ExpectQuery("SELECT id, user_id").
			WithArgs(int64(42), "reminder", "r1").
			WillReturnRows(rows)

		record, err := repo.LatestForEntity(ctx, 42, models.EntityTypeReminder, "r1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "rec-1", record.ID)
		assert.Equal(t, int64(3), record.Version)
		assert.Equal(t, models.StatusCompleted, record.Status)
		assert.Nil(t, record.ConflictData)
	})

	t.Run("unknown entity yields nil without error", func(t *testing.T) {
		repo, _, mock := newTestSyncRepository(t)

		mock.ExpectQuery("SELECT id, user_id").
			WithArgs(int64(42), "reminder", "never-seen").
			WillReturnRows(sqlmock.NewRows(syncRecordColumns))

		record, err := repo.LatestForEntity(ctx, 42, models.EntityTypeReminder, "never-seen")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("conflict data is decoded", func(t *testing.T) {
		repo, _, mock := newTestSyncRepository(t)

		rows := sqlmock.NewRows(syncRecordColumns).AddRow(
			"rec-1", int64(42), "device-1", "reminder", "update", "r1",
			[]byte(`{"title":"x"}`), int64(2), "conflict",
			[]byte(`{"server_version":3,"client_version":2}`), nil, nil,
			nil, now, now, now,
		)
		mock.ExpectQuery("SELECT id, user_id").
			WithArgs(int64(42), "reminder", "r1").
			WillReturnRows(rows)

		record, err := repo.LatestForEntity(ctx, 42, models.EntityTypeReminder, "r1")
		require.NoError(t, err)
		require.NotNil(t, record.ConflictData)
		assert.Equal(t, int64(3), record.ConflictData.ServerVersion)
		assert.Equal(t, int64(2), record.ConflictData.ClientVersion)
	})

	t.Run("holiday lookup spans all users", func(t *testing.T) {
		repo, _, mock := newTestSyncRepository(t)

		// User 1 wrote the latest holiday row; user 2's lookup must see it,
		// so the query carries no user_id argument.
		rows := sqlmock.NewRows(syncRecordColumns).AddRow(
			"rec-9", int64(1), "device-9", "holiday", "update", "h1",
			[]byte(`{"name":"May Day"}`), int64(5), "completed", nil, nil, nil,
			nil, now, now, now,
		)
		mock.ExpectQuery("SELECT id, user_id").
			WithArgs("holiday", "h1").
			WillReturnRows(rows)

		record, err := repo.LatestForEntity(ctx, 2, models.EntityTypeHoliday, "h1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, int64(1), record.UserID)
		assert.Equal(t, int64(5), record.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rows sharing a sync time are tie-broken by id", func(t *testing.T) {
		// One batch stamps every row with the same sync_time, so ordering
		// falls through to the id column (UUIDv7, generated in batch order).
		assert.Contains(t, latestUserSyncRecordForEntity, "ORDER BY sync_time DESC, id DESC")
		assert.Contains(t, latestGlobalSyncRecordForEntity, "ORDER BY sync_time DESC, id DESC")
	})
}

func TestSyncRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo, _, mock := newTestSyncRepository(t)

	mock.ExpectQuery("SELECT id, user_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(syncRecordColumns))

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrSyncRecordNotFound)
}

func TestSyncRepository_MarkResolved(t *testing.T) {
	ctx := context.Background()
	resolvedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("updates a conflicted record", func(t *testing.T) {
		repo, db, mock := newTestSyncRepository(t)

		mock.ExpectExec("UPDATE sync_records").
			WithArgs("rec-1", models.ResolutionClient, resolvedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkResolved(ctx, db, "rec-1", models.ResolutionClient, resolvedAt)
		assert.NoError(t, err)
	})

	t.Run("record outside conflict status is not matched", func(t *testing.T) {
		repo, db, mock := newTestSyncRepository(t)

		mock.ExpectExec("UPDATE sync_records").
			WithArgs("rec-1", models.ResolutionServer, resolvedAt).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkResolved(ctx, db, "rec-1", models.ResolutionServer, resolvedAt)
		assert.ErrorIs(t, err, ErrSyncRecordNotFound)
	})
}

func TestSyncRepository_DeletedSince(t *testing.T) {
	ctx := context.Background()
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	deletedAt := since.Add(2 * time.Hour)

	t.Run("includes own deletions and global ones by any user", func(t *testing.T) {
		repo, _, mock := newTestSyncRepository(t)

		// The holiday tombstone originates from another user's delete; the
		// query ORs the caller's scope with the global entity types so it
		// still reaches user 42's feed.
		rows := sqlmock.NewRows([]string{"entity_type", "entity_id", "sync_time"}).
			AddRow("reminder", "r9", deletedAt).
			AddRow("holiday", "h3", deletedAt)
		mock.ExpectQuery("WHERE \\(user_id = \\$1 OR entity_type = \\$2\\)").
			WithArgs(int64(42), "holiday", "delete", "completed", since).
			WillReturnRows(rows)

		tombstones, err := repo.DeletedSince(ctx, 42, since)
		require.NoError(t, err)
		require.Len(t, tombstones, 2)
		assert.Equal(t, models.EntityTypeReminder, tombstones[0].EntityType)
		assert.Equal(t, "r9", tombstones[0].EntityID)
		assert.Equal(t, deletedAt, tombstones[0].SyncTime)
		assert.Equal(t, models.EntityTypeHoliday, tombstones[1].EntityType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSyncRepository_LastSyncTime(t *testing.T) {
	ctx := context.Background()

	t.Run("never synced device yields nil", func(t *testing.T) {
		repo, _, mock := newTestSyncRepository(t)

		mock.ExpectQuery("SELECT MAX").
			WithArgs(int64(42), "device-1").
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

		lastSync, err := repo.LastSyncTime(ctx, 42, "device-1")
		require.NoError(t, err)
		assert.Nil(t, lastSync)
	})

	t.Run("returns the max completed sync time", func(t *testing.T) {
		repo, _, mock := newTestSyncRepository(t)
		want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT MAX").
			WithArgs(int64(42), "device-1").
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(want))

		lastSync, err := repo.LastSyncTime(ctx, 42, "device-1")
		require.NoError(t, err)
		require.NotNil(t, lastSync)
		assert.Equal(t, want, *lastSync)
	})
}

func TestSyncRepository_ListRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repo, _, mock := newTestSyncRepository(t)

	rows := sqlmock.NewRows(syncRecordColumns).AddRow(
		"rec-1", int64(42), "device-1", "reminder", "delete", "r1",
		nil, int64(4), "failed", nil, nil, nil,
		"entity not found", now, now, now,
	)
	mock.ExpectQuery("SELECT id, user_id").
		WillReturnRows(rows)

	records, err := repo.ListRecords(ctx, 42, models.RecordFilter{Status: models.StatusFailed})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Equal(t, "entity not found", records[0].ErrorMessage)
}
