package store

import (
	"testing"
	"time"

	"github.com/MKhiriev/go-remind-sync/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildListRecordsQuery(t *testing.T) {
	t.Run("user scope only", func(t *testing.T) {
		query, args, err := buildListRecordsQuery(42, models.RecordFilter{Limit: 10})
		require.NoError(t, err)

		assert.Contains(t, query, "FROM sync_records")
		assert.Contains(t, query, "user_id = $1")
		assert.Contains(t, query, "ORDER BY sync_time DESC")
		assert.Contains(t, query, "LIMIT 10")
		assert.Equal(t, []any{int64(42)}, args)
	})

	t.Run("entity type and status filters are appended", func(t *testing.T) {
		filter := models.RecordFilter{
			EntityType: models.EntityTypeReminder,
			Status:     models.StatusConflict,
			Limit:      25,
			Offset:     50,
		}

		query, args, err := buildListRecordsQuery(42, filter)
		require.NoError(t, err)

		assert.Contains(t, query, "entity_type = $2")
		assert.Contains(t, query, "status = $3")
		assert.Contains(t, query, "OFFSET 50")
		assert.Equal(t, []any{int64(42), "reminder", "conflict"}, args)
	})
}

func TestBuildPartialUpdateQuery(t *testing.T) {
	t.Run("sets only supplied columns plus updated_at", func(t *testing.T) {
		query, args, err := buildPartialUpdateQuery("reminders", map[string]any{"title": "x"}, sq.Eq{"id": "r1"})
		require.NoError(t, err)

		assert.Contains(t, query, "UPDATE reminders")
		assert.Contains(t, query, "updated_at = NOW()")
		assert.Contains(t, query, "title = $1")
		assert.Contains(t, query, "id = $2")
		assert.Equal(t, []any{"x", "r1"}, args)
	})

	t.Run("no columns is an error", func(t *testing.T) {
		_, _, err := buildPartialUpdateQuery("reminders", map[string]any{}, sq.Eq{"id": "r1"})
		assert.ErrorIs(t, err, ErrBuildingSQLQuery)
	})
}

func TestBuildDeletedSinceQuery(t *testing.T) {
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	query, args, err := buildDeletedSinceQuery(42, since)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM sync_records")
	assert.Contains(t, query, "(user_id = $1 OR entity_type = $2)")
	assert.Contains(t, query, "operation_type = $3")
	assert.Contains(t, query, "status = $4")
	assert.Contains(t, query, "sync_time > $5")
	assert.Contains(t, query, "ORDER BY sync_time")
	assert.Equal(t, []any{int64(42), "holiday", "delete", "completed", since}, args)
}

func TestBuildChangedSinceQuery(t *testing.T) {
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("user scoped table", func(t *testing.T) {
		query, args, err := buildChangedSinceQuery("reminders", []string{"id", "title"}, true, 42, since)
		require.NoError(t, err)

		assert.Contains(t, query, "FROM reminders")
		assert.Contains(t, query, "updated_at > $1")
		assert.Contains(t, query, "user_id = $2")
		assert.Contains(t, query, "ORDER BY updated_at")
		assert.Equal(t, []any{since, int64(42)}, args)
	})

	t.Run("global table skips the user filter", func(t *testing.T) {
		query, args, err := buildChangedSinceQuery("holidays", []string{"id", "name"}, false, 42, since)
		require.NoError(t, err)

		assert.NotContains(t, query, "user_id")
		assert.Equal(t, []any{since}, args)
	})
}
