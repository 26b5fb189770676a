package sweeper

import (
	"context"
	"testing"
	"time"

	"smartbin-backend/internal/models"
	"smartbin-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func seedDeleted(t *testing.T, st *store.MemoryStore, id string, autoDeleteAfter time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, models.CollectionDeleted, id, map[string]interface{}{
		"serial":          id,
		"status":          models.StatusDeleted,
		"autoDeleteAfter": autoDeleteAfter,
	}, false))
	require.NoError(t, st.Set(ctx, models.CollectionSerials, id, map[string]interface{}{
		"binId":    id,
		"archived": true,
	}, false))
}

func seedRestored(t *testing.T, st *store.MemoryStore, id string, restoredAt time.Time) {
	t.Helper()
	require.NoError(t, st.Set(context.Background(), models.CollectionArchive, id, map[string]interface{}{
		"serial":     id,
		"status":     models.StatusRestored,
		"restoredAt": restoredAt,
	}, false))
}

func TestSweepPurgesExpiredDeleted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	sw := New(st, Config{ReleaseSerials: true, Now: fixedClock})

	seedDeleted(t, st, "SDB-0001", fixedClock().Add(-time.Minute)) // expired
	seedDeleted(t, st, "SDB-0002", fixedClock().Add(time.Hour))    // not yet

	result, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PurgedDeleted)
	assert.Equal(t, 0, result.PurgedRestored)

	_, ok, err := st.Get(ctx, models.CollectionDeleted, "SDB-0001")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = st.Get(ctx, models.CollectionSerials, "SDB-0001")
	require.NoError(t, err)
	assert.False(t, ok, "expired purge must release the serial")

	_, ok, err = st.Get(ctx, models.CollectionDeleted, "SDB-0002")
	require.NoError(t, err)
	assert.True(t, ok, "unexpired records must survive the sweep")
}

func TestSweepDeadlineIsInclusive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	sw := New(st, Config{Now: fixedClock})

	seedDeleted(t, st, "SDB-0001", fixedClock()) // exactly at the deadline

	result, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PurgedDeleted)
}

func TestSweepKeepsSerialsWhenNotReleasing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	sw := New(st, Config{ReleaseSerials: false, Now: fixedClock})

	seedDeleted(t, st, "SDB-0001", fixedClock().Add(-time.Minute))

	_, err := sw.Sweep(ctx)
	require.NoError(t, err)

	_, ok, err := st.Get(ctx, models.CollectionSerials, "SDB-0001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepCleansRestoredAuditRecords(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	sw := New(st, Config{RestoredRetention: 24 * time.Hour, Now: fixedClock})

	seedRestored(t, st, "SDB-0001", fixedClock().Add(-25*time.Hour)) // past retention
	seedRestored(t, st, "SDB-0002", fixedClock().Add(-time.Hour))    // recent

	// Records still archived are never touched by the restored pass.
	require.NoError(t, st.Set(ctx, models.CollectionArchive, "SDB-0003", map[string]interface{}{
		"serial":     "SDB-0003",
		"status":     models.StatusArchived,
		"archivedAt": fixedClock().Add(-100 * 24 * time.Hour),
	}, false))

	result, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PurgedRestored)

	_, ok, err := st.Get(ctx, models.CollectionArchive, "SDB-0001")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = st.Get(ctx, models.CollectionArchive, "SDB-0002")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = st.Get(ctx, models.CollectionArchive, "SDB-0003")
	require.NoError(t, err)
	assert.True(t, ok, "archived records are not subject to restored retention")
}

func TestSweepSkipsRestoredWithoutTimestamp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	sw := New(st, Config{Now: fixedClock})

	require.NoError(t, st.Set(ctx, models.CollectionArchive, "SDB-0001", map[string]interface{}{
		"serial": "SDB-0001",
		"status": models.StatusRestored,
	}, false))

	result, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PurgedRestored)

	_, ok, err := st.Get(ctx, models.CollectionArchive, "SDB-0001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	st := store.NewMemoryStore()
	sw := New(st, Config{Now: fixedClock})
	seedDeleted(t, st, "SDB-0001", fixedClock().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sw.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepEmptyStore(t *testing.T) {
	st := store.NewMemoryStore()
	sw := New(st, Config{Now: fixedClock})

	result, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}
