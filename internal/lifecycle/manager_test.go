package lifecycle

import (
	"context"
	"testing"
	"time"

	"smartbin-backend/internal/models"
	"smartbin-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticIdentity map[string]string

func (s staticIdentity) DisplayName(ctx context.Context, actorID string) string {
	return s[actorID]
}

var testIdentity = staticIdentity{"user-1": "Olivia Operator", "user-2": "Ada Admin"}

func fixedClock() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	m := NewManager(st, testIdentity, Config{Now: fixedClock})
	return m, st
}

// seedBin creates an active bin document plus its serial reservation.
func seedBin(t *testing.T, st *store.MemoryStore, serial string) models.Bin {
	t.Helper()
	ctx := context.Background()
	bin := models.Bin{
		Serial:       serial,
		Name:         "Market Square",
		Capacity:     120,
		Threshold:    80,
		Location:     "Market Square, North Entrance",
		ImageURL:     "https://img.example/bin.png",
		SensorStatus: "online",
		Status:       models.StatusAvailable,
		CreatedAt:    fixedClock().Add(-48 * time.Hour),
		CreatedBy:    "user-1",
		FillLevel:    62.5,
		GeneralWaste: 40,
		WasteComposition: map[string]float64{
			"plastic": 12.5,
			"paper":   10,
		},
		Battery:      88,
		Connectivity: "lte",
	}
	require.NoError(t, st.Set(ctx, models.CollectionBins, serial, bin.Encode(), false))
	reservation := models.SerialReservation{BinID: serial, ReservedAt: bin.CreatedAt, CreatedBy: "user-1"}
	require.NoError(t, st.Set(ctx, models.CollectionSerials, serial, reservation.Encode(), false))
	return bin
}

// locationOf reports which lifecycle collections currently hold the bin.
func locationOf(t *testing.T, st *store.MemoryStore, binID string) []string {
	t.Helper()
	ctx := context.Background()
	var out []string
	for _, c := range []string{models.CollectionBins, models.CollectionArchive, models.CollectionDeleted} {
		_, ok, err := st.Get(ctx, c, binID)
		require.NoError(t, err)
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func TestArchiveMovesBinAtomically(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	archived, err := m.Archive(ctx, "SDB-0001", "Low usage", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, archived.Status)
	assert.Equal(t, "Low usage", archived.Reason)
	assert.Equal(t, "user-1", archived.ArchivedBy)
	assert.Equal(t, "Olivia Operator", archived.ArchivedByName)
	assert.Equal(t, fixedClock(), archived.ArchivedAt)

	assert.Equal(t, []string{models.CollectionArchive}, locationOf(t, st, "SDB-0001"))

	serialDoc, ok, err := st.Get(ctx, models.CollectionSerials, "SDB-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, true, serialDoc["archived"])
	assert.Equal(t, "SDB-0001", serialDoc["binId"], "marking archived must not clobber the reservation")
}

func TestArchiveUnknownBin(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Archive(context.Background(), "SDB-9999", "Low usage", "user-1", ArchiveOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveLastActiveBinGuard(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	_, err := m.Archive(ctx, "SDB-0001", "Low usage", "user-1", ArchiveOptions{KeepLastActive: true})
	assert.ErrorIs(t, err, ErrLastActiveBin)

	// With a second bin in service the guard passes.
	seedBin(t, st, "SDB-0002")
	_, err = m.Archive(ctx, "SDB-0001", "Low usage", "user-1", ArchiveOptions{KeepLastActive: true})
	assert.NoError(t, err)
}

func TestRestoreRoundTripPreservesConfiguration(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	original := seedBin(t, st, "SDB-0001")

	_, err := m.Archive(ctx, "SDB-0001", "Seasonal closure", "user-1", ArchiveOptions{})
	require.NoError(t, err)

	restored, err := m.Restore(ctx, "SDB-0001", "user-2")
	require.NoError(t, err)

	assert.Equal(t, original.Name, restored.Name)
	assert.Equal(t, original.Capacity, restored.Capacity)
	assert.Equal(t, original.Threshold, restored.Threshold)
	assert.Equal(t, original.Location, restored.Location)
	assert.Equal(t, original.ImageURL, restored.ImageURL)
	assert.Equal(t, original.CreatedAt, restored.CreatedAt)
	assert.Equal(t, original.CreatedBy, restored.CreatedBy)
	assert.Equal(t, models.StatusAvailable, restored.Status)
	require.NotNil(t, restored.RestoredAt)
	assert.Equal(t, fixedClock(), *restored.RestoredAt)
	assert.Equal(t, "user-2", restored.RestoredBy)

	// Non-emptying restore keeps the telemetry untouched.
	assert.Equal(t, original.FillLevel, restored.FillLevel)
	assert.Equal(t, original.WasteComposition, restored.WasteComposition)

	// The archive record stays behind as an audit trail.
	archDoc, ok, err := st.Get(ctx, models.CollectionArchive, "SDB-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusRestored, archDoc["status"])
	assert.Equal(t, "Ada Admin", archDoc["modifiedBy"])

	// And none of the archive-only fields leak into the live document.
	binDoc, _, err := st.Get(ctx, models.CollectionBins, "SDB-0001")
	require.NoError(t, err)
	for _, field := range []string{"archivedAt", "archivedBy", "archivedByName", "archiveReason", "reason"} {
		assert.NotContains(t, binDoc, field)
	}
}

func TestRestorePreservesUnknownTelemetryFields(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	// An ingestion service writes fields this backend knows nothing about.
	require.NoError(t, st.Set(ctx, models.CollectionBins, "SDB-0001", map[string]interface{}{
		"firmwareVersion": "2.4.1",
	}, true))

	_, err := m.Archive(ctx, "SDB-0001", "Maintenance", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.Restore(ctx, "SDB-0001", "user-1")
	require.NoError(t, err)

	binDoc, ok, err := st.Get(ctx, models.CollectionBins, "SDB-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2.4.1", binDoc["firmwareVersion"], "unknown fields must survive the move opaquely")
}

func TestRestoreAfterEmptyingResetsTelemetry(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	// Reason matching is case-insensitive.
	_, err := m.Archive(ctx, "SDB-0001", "emptying", "user-1", ArchiveOptions{})
	require.NoError(t, err)

	restored, err := m.Restore(ctx, "SDB-0001", "user-1")
	require.NoError(t, err)

	assert.Zero(t, restored.FillLevel)
	assert.Zero(t, restored.GeneralWaste)
	for k, v := range restored.WasteComposition {
		assert.Zerof(t, v, "waste_composition[%s] must be reset", k)
	}
	require.NotNil(t, restored.LastEmptiedAt)
	assert.Equal(t, fixedClock(), *restored.LastEmptiedAt)
	assert.Equal(t, "user-1", restored.EmptiedBy)
}

func TestRestoreGuardsState(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	_, err := m.Archive(ctx, "SDB-0001", "Low usage", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.Restore(ctx, "SDB-0001", "user-1")
	require.NoError(t, err)

	// Restoring again hits the stale restored audit record.
	_, err = m.Restore(ctx, "SDB-0001", "user-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A bin that moved on to deleted is an invalid transition, not missing.
	seedBin(t, st, "SDB-0002")
	_, err = m.Archive(ctx, "SDB-0002", "Low usage", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.SoftDelete(ctx, "SDB-0002", "user-1")
	require.NoError(t, err)
	_, err = m.Restore(ctx, "SDB-0002", "user-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A bin that exists nowhere is genuinely not found.
	_, err = m.Restore(ctx, "SDB-9999", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDeleteStampsRetentionDeadline(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := NewManager(st, testIdentity, Config{Now: fixedClock, DeletedRetention: 72 * time.Hour})
	seedBin(t, st, "SDB-0001")

	_, err := m.Archive(ctx, "SDB-0001", "Damaged", "user-1", ArchiveOptions{})
	require.NoError(t, err)

	deleted, err := m.SoftDelete(ctx, "SDB-0001", "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, deleted.Status)
	assert.Equal(t, "user-2", deleted.DeletedBy)
	assert.Equal(t, fixedClock().Add(72*time.Hour), deleted.AutoDeleteAfter)

	assert.Equal(t, []string{models.CollectionDeleted}, locationOf(t, st, "SDB-0001"))

	// The serial reservation survives a soft delete.
	_, ok, err := st.Get(ctx, models.CollectionSerials, "SDB-0001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSoftDeleteRequiresArchivedState(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	// Active bins cannot be soft-deleted directly.
	_, err := m.SoftDelete(ctx, "SDB-0001", "user-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.SoftDelete(ctx, "SDB-9999", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeReleasesSerial(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	_, err := m.Archive(ctx, "SDB-0001", "Damaged", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.SoftDelete(ctx, "SDB-0001", "user-1")
	require.NoError(t, err)

	require.NoError(t, m.Purge(ctx, "SDB-0001"))

	assert.Empty(t, locationOf(t, st, "SDB-0001"))
	_, ok, err := st.Get(ctx, models.CollectionSerials, "SDB-0001")
	require.NoError(t, err)
	assert.False(t, ok, "purge must release the serial for reuse")

	// Purging again is a no-op, not an error.
	assert.NoError(t, m.Purge(ctx, "SDB-0001"))
}

func TestPurgeKeepSerialPolicy(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := NewManager(st, testIdentity, Config{Now: fixedClock, KeepSerialOnPurge: true})
	seedBin(t, st, "SDB-0001")

	_, err := m.Archive(ctx, "SDB-0001", "Damaged", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.SoftDelete(ctx, "SDB-0001", "user-1")
	require.NoError(t, err)
	require.NoError(t, m.Purge(ctx, "SDB-0001"))

	_, ok, err := st.Get(ctx, models.CollectionSerials, "SDB-0001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBinOccupiesExactlyOneCollection(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	assert.Equal(t, []string{models.CollectionBins}, locationOf(t, st, "SDB-0001"))

	_, err := m.Archive(ctx, "SDB-0001", "Low usage", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{models.CollectionArchive}, locationOf(t, st, "SDB-0001"))

	_, err = m.Restore(ctx, "SDB-0001", "user-1")
	require.NoError(t, err)
	// The restored audit record does not count as a second location for the
	// live identity; the live document is back in bins.
	binDoc, ok, err := st.Get(ctx, models.CollectionBins, "SDB-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusAvailable, binDoc["status"])

	_, err = m.Archive(ctx, "SDB-0001", "Damaged", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.SoftDelete(ctx, "SDB-0001", "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{models.CollectionDeleted}, locationOf(t, st, "SDB-0001"))
}

func TestBatchRestoreReportsPerItemOutcomes(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	// SDB-0001: archived, eligible. SDB-0002: soft-deleted. SDB-0003: gone.
	seedBin(t, st, "SDB-0001")
	seedBin(t, st, "SDB-0002")
	_, err := m.Archive(ctx, "SDB-0001", "Low usage", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.Archive(ctx, "SDB-0002", "Low usage", "user-1", ArchiveOptions{})
	require.NoError(t, err)
	_, err = m.SoftDelete(ctx, "SDB-0002", "user-1")
	require.NoError(t, err)

	result, err := m.BatchRestore(ctx, []string{"SDB-0001", "SDB-0002", "SDB-0003"}, "user-2")
	require.NoError(t, err)

	assert.Equal(t, []string{"SDB-0001"}, result.Restored)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, SkippedBin{ID: "SDB-0002", Reason: SkipReasonInvalidTransition}, result.Skipped[0])
	assert.Equal(t, SkippedBin{ID: "SDB-0003", Reason: SkipReasonNotFound}, result.Skipped[1])

	// The eligible bin actually moved.
	_, ok, err := st.Get(ctx, models.CollectionBins, "SDB-0001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBatchSoftDeleteReportsPerItemOutcomes(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	seedBin(t, st, "SDB-0001")
	seedBin(t, st, "SDB-0002") // stays active: invalid transition
	_, err := m.Archive(ctx, "SDB-0001", "Damaged", "user-1", ArchiveOptions{})
	require.NoError(t, err)

	result, err := m.BatchSoftDelete(ctx, []string{"SDB-0001", "SDB-0002", "SDB-0003"}, "user-2")
	require.NoError(t, err)

	assert.Equal(t, []string{"SDB-0001"}, result.Deleted)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, SkippedBin{ID: "SDB-0002", Reason: SkipReasonInvalidTransition}, result.Skipped[0])
	assert.Equal(t, SkippedBin{ID: "SDB-0003", Reason: SkipReasonNotFound}, result.Skipped[1])

	assert.Equal(t, []string{models.CollectionDeleted}, locationOf(t, st, "SDB-0001"))
}

func TestBatchRestoreAllIneligibleCommitsNothing(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001") // active, not archived

	result, err := m.BatchRestore(ctx, []string{"SDB-0001", "SDB-0002"}, "user-1")
	require.NoError(t, err)
	assert.Empty(t, result.Restored)
	assert.Len(t, result.Skipped, 2)

	assert.Equal(t, []string{models.CollectionBins}, locationOf(t, st, "SDB-0001"))
}

func TestConfigureUpdatesBin(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	updated, err := m.Configure(ctx, "SDB-0001", BinConfig{
		Name:      "Market Square East",
		Capacity:  240,
		Threshold: 90,
		Location:  "Market Square, East Entrance",
		ImageURL:  "https://img.example/bin2.png",
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Market Square East", updated.Name)
	assert.Equal(t, 240, updated.Capacity)
	assert.Equal(t, 90, updated.Threshold)
	require.NotNil(t, updated.LastConfigured)
	assert.Equal(t, fixedClock(), *updated.LastConfigured)

	// Telemetry is untouched by configuration.
	assert.Equal(t, 62.5, updated.FillLevel)
}

func TestConfigureValidatesBounds(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")

	_, err := m.Configure(ctx, "SDB-0001", BinConfig{Name: "x", Capacity: 100, Threshold: 101}, "user-1")
	require.Error(t, err)

	_, err = m.Configure(ctx, "SDB-0001", BinConfig{Name: "x", Capacity: 0, Threshold: 50}, "user-1")
	require.Error(t, err)

	// Nothing persisted.
	binDoc, _, err := st.Get(ctx, models.CollectionBins, "SDB-0001")
	require.NoError(t, err)
	assert.Equal(t, "Market Square", binDoc["name"])
}

func TestConfigureArchivedBin(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")
	_, err := m.Archive(ctx, "SDB-0001", "Low usage", "user-1", ArchiveOptions{})
	require.NoError(t, err)

	_, err = m.Configure(ctx, "SDB-0001", BinConfig{Name: "x", Capacity: 100, Threshold: 50}, "user-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListBinsSkipsMalformedDocs(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	seedBin(t, st, "SDB-0001")
	require.NoError(t, st.Set(ctx, models.CollectionBins, "SDB-0002", map[string]interface{}{
		"name": "missing required fields",
	}, false))

	bins, err := m.ListBins(ctx)
	require.NoError(t, err)
	require.Len(t, bins, 1)
	assert.Equal(t, "SDB-0001", bins[0].Serial)
}
