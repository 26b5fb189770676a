package mirror

import (
	"sort"
	"sync"

	"smartbin-backend/internal/models"
)

// Entry is a bin plus its 1-based display position, reassigned after every
// sort so the UI column stays dense.
type Entry struct {
	Position int `json:"position"`
	models.Bin
}

// Mirror keeps a locally cached ordered view of the bins collection so the
// dashboard renders without a round trip per action. Lifecycle transitions
// are applied optimistically ahead of the authoritative update; Reconcile
// replaces the whole view and is idempotent, so re-applying the same
// authoritative snapshot is always safe.
type Mirror struct {
	mu      sync.RWMutex
	entries []Entry
}

func New() *Mirror {
	return &Mirror{}
}

// Reconcile replaces the cached view with the authoritative bins list.
func (m *Mirror) Reconcile(authoritative []models.Bin) {
	entries := order(authoritative)
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
}

// ApplyCreate optimistically inserts (or replaces) a bin.
func (m *Mirror) ApplyCreate(bin models.Bin) {
	m.upsert(bin)
}

// ApplyRestore optimistically brings a bin back into the view.
func (m *Mirror) ApplyRestore(bin models.Bin) {
	m.upsert(bin)
}

// ApplyArchive optimistically removes a bin from the view.
func (m *Mirror) ApplyArchive(serial string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bins := make([]models.Bin, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Serial != serial {
			bins = append(bins, e.Bin)
		}
	}
	m.entries = order(bins)
}

// ApplyConfigure optimistically replaces a bin's record in place.
func (m *Mirror) ApplyConfigure(bin models.Bin) {
	m.upsert(bin)
}

func (m *Mirror) upsert(bin models.Bin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bins := make([]models.Bin, 0, len(m.entries)+1)
	replaced := false
	for _, e := range m.entries {
		if e.Serial == bin.Serial {
			bins = append(bins, bin)
			replaced = true
			continue
		}
		bins = append(bins, e.Bin)
	}
	if !replaced {
		bins = append(bins, bin)
	}
	m.entries = order(bins)
}

// Snapshot returns a copy of the current ordered view.
func (m *Mirror) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// order sorts newest-first with the serial as a deterministic tie-break
// (creation timestamps can collide across inconsistent clock sources), then
// assigns dense 1-based positions.
func order(bins []models.Bin) []Entry {
	sorted := make([]models.Bin, len(bins))
	copy(sorted, bins)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].Serial < sorted[j].Serial
	})

	entries := make([]Entry, len(sorted))
	for i, bin := range sorted {
		entries[i] = Entry{Position: i + 1, Bin: bin}
	}
	return entries
}
