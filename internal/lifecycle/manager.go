package lifecycle

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"smartbin-backend/internal/models"
	"smartbin-backend/internal/store"
)

// DefaultDeletedRetention is how long a soft-deleted bin is kept before the
// sweeper may purge it permanently.
const DefaultDeletedRetention = 30 * 24 * time.Hour

// IdentityResolver turns an actor id into a display name for audit fields.
// A failed lookup must not block a lifecycle transition; implementations
// degrade to returning the raw id.
type IdentityResolver interface {
	DisplayName(ctx context.Context, actorID string) string
}

// Config carries the retention and policy knobs. Retention windows are
// always supplied by configuration, never baked into the move logic.
type Config struct {
	DeletedRetention time.Duration

	// KeepSerialOnPurge preserves the legacy behavior of never releasing a
	// serial reservation, for deployments with audit requirements.
	KeepSerialOnPurge bool

	// AllowDegradedFallback retries a move non-transactionally after the
	// store's conflict budget runs out. Best effort: it reintroduces the
	// race the transaction prevents, and is logged loudly when taken.
	AllowDegradedFallback bool

	Now func() time.Time
}

// Manager owns the four-collection state machine: a bin moves
// bins -> archive -> (bins | deleted) -> purged, each move a single atomic
// transaction spanning the bin, archive/deleted and serial documents.
type Manager struct {
	store    store.Store
	identity IdentityResolver
	cfg      Config
	now      func() time.Time
}

func NewManager(st store.Store, identity IdentityResolver, cfg Config) *Manager {
	if cfg.DeletedRetention <= 0 {
		cfg.DeletedRetention = DefaultDeletedRetention
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: st, identity: identity, cfg: cfg, now: now}
}

func (m *Manager) resolveName(ctx context.Context, actorID string) string {
	if m.identity == nil {
		return actorID
	}
	if name := m.identity.DisplayName(ctx, actorID); name != "" {
		return name
	}
	return actorID
}

// ArchiveOptions carries caller policy for Archive. The last-bin guard is a
// policy decision surfaced here rather than hard-coded in the manager.
type ArchiveOptions struct {
	KeepLastActive bool
}

// Archive moves an active bin to the archive collection, marks its serial
// reservation archived, and deletes the live document — all in one
// transaction.
func (m *Manager) Archive(ctx context.Context, binID, reason, actorID string, opts ArchiveOptions) (models.ArchivedBin, error) {
	if opts.KeepLastActive {
		bins, err := m.store.All(ctx, models.CollectionBins)
		if err != nil {
			return models.ArchivedBin{}, err
		}
		if len(bins) == 1 && bins[0].ID == binID {
			return models.ArchivedBin{}, ErrLastActiveBin
		}
	}

	// Actor-name resolution is an external lookup; it happens outside the
	// transaction and is never retried with it.
	actorName := m.resolveName(ctx, actorID)
	now := m.now()

	var archived map[string]interface{}
	err := m.runMove(ctx, func(tx store.Tx) error {
		bin, ok, err := tx.Get(models.CollectionBins, binID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		_, hasSerial, err := tx.Get(models.CollectionSerials, binID)
		if err != nil {
			return err
		}

		archived = store.CopyDoc(bin)
		archived["status"] = models.StatusArchived
		archived["reason"] = reason
		archived["archiveReason"] = reason
		archived["archivedAt"] = now
		archived["archivedBy"] = actorID
		archived["archivedByName"] = actorName

		tx.Set(models.CollectionArchive, binID, archived, false)
		tx.Delete(models.CollectionBins, binID)
		if hasSerial {
			tx.Set(models.CollectionSerials, binID, map[string]interface{}{"archived": true}, true)
		}
		return nil
	})
	if err != nil {
		return models.ArchivedBin{}, err
	}
	log.Printf("📦 Bin %s archived by %s (reason: %s)", binID, actorName, reason)
	return models.DecodeArchivedBin(binID, archived)
}

// Restore moves an archived bin back to active service. The archive record
// is not deleted: it stays behind with status "restored" as an audit trail.
// Restoring from an "Emptying" archive also resets the telemetry fields,
// modeling that the bin was physically emptied while out of service.
func (m *Manager) Restore(ctx context.Context, binID, actorID string) (models.Bin, error) {
	actorName := m.resolveName(ctx, actorID)
	now := m.now()

	var restored map[string]interface{}
	err := m.runMove(ctx, func(tx store.Tx) error {
		arch, ok, err := tx.Get(models.CollectionArchive, binID)
		if err != nil {
			return err
		}
		if !ok {
			return m.missingFrom(tx, models.CollectionArchive, binID)
		}
		if arch["status"] != models.StatusArchived {
			return ErrInvalidTransition
		}

		restored = restoredBinDoc(arch, binID, actorID, now)
		tx.Set(models.CollectionBins, binID, restored, false)
		tx.Set(models.CollectionArchive, binID, map[string]interface{}{
			"status":     models.StatusRestored,
			"restoredAt": now,
			"modifiedBy": actorName,
		}, true)
		return nil
	})
	if err != nil {
		return models.Bin{}, err
	}
	log.Printf("♻️  Bin %s restored by %s", binID, actorName)
	return models.DecodeBin(binID, restored)
}

// restoredBinDoc builds the bins document for a restore: the archive
// snapshot minus the archive-only fields, back in "Available" status.
func restoredBinDoc(arch map[string]interface{}, binID, actorID string, now time.Time) map[string]interface{} {
	emptied := isEmptyingReason(arch)

	bin := store.CopyDoc(arch)
	for _, field := range []string{
		"archivedAt", "archiveDate", "archiveReason", "archivedBy", "archivedByName", "reason", "status",
	} {
		delete(bin, field)
	}
	bin["status"] = models.StatusAvailable
	bin["restoredAt"] = now
	bin["restoredBy"] = actorID

	if emptied {
		bin["fill_level"] = 0.0
		bin["general_waste"] = 0.0
		if composition, ok := bin["waste_composition"].(map[string]interface{}); ok {
			for k := range composition {
				composition[k] = 0.0
			}
		}
		bin["lastEmptiedAt"] = now
		bin["emptiedBy"] = actorID
	}
	return bin
}

func isEmptyingReason(arch map[string]interface{}) bool {
	reason, _ := arch["reason"].(string)
	if reason == "" {
		reason, _ = arch["archiveReason"].(string)
	}
	return strings.EqualFold(reason, models.ReasonEmptying)
}

// SoftDelete moves an archived bin to the deleted collection with an
// absolute purge deadline. The serial reservation is left untouched; it is
// released on purge.
func (m *Manager) SoftDelete(ctx context.Context, binID, actorID string) (models.DeletedBin, error) {
	actorName := m.resolveName(ctx, actorID)
	now := m.now()

	var deleted map[string]interface{}
	err := m.runMove(ctx, func(tx store.Tx) error {
		arch, ok, err := tx.Get(models.CollectionArchive, binID)
		if err != nil {
			return err
		}
		if !ok {
			return m.missingFrom(tx, models.CollectionArchive, binID)
		}
		if arch["status"] != models.StatusArchived {
			return ErrInvalidTransition
		}

		deleted = store.CopyDoc(arch)
		deleted["status"] = models.StatusDeleted
		deleted["deletedAt"] = now
		deleted["deletedBy"] = actorID
		deleted["modifiedBy"] = actorName
		deleted["autoDeleteAfter"] = now.Add(m.cfg.DeletedRetention)

		tx.Set(models.CollectionDeleted, binID, deleted, false)
		tx.Delete(models.CollectionArchive, binID)
		return nil
	})
	if err != nil {
		return models.DeletedBin{}, err
	}
	log.Printf("🗑️  Bin %s soft-deleted by %s (purge after %s)", binID, actorName, now.Add(m.cfg.DeletedRetention).Format(time.RFC3339))
	return models.DecodeDeletedBin(binID, deleted)
}

// Purge permanently erases a soft-deleted bin. Deletes are idempotent, so
// purging an already-absent bin is not an error. Unless configured
// otherwise the serial reservation is released, making the serial reusable.
func (m *Manager) Purge(ctx context.Context, binID string) error {
	batch := m.store.Batch()
	batch.Delete(models.CollectionDeleted, binID)
	batch.Delete(models.CollectionArchive, binID)
	if !m.cfg.KeepSerialOnPurge {
		batch.Delete(models.CollectionSerials, binID)
	}
	if err := batch.Commit(ctx); err != nil {
		return err
	}
	log.Printf("🧹 Bin %s purged", binID)
	return nil
}

// missingFrom distinguishes a bin that already moved on (guard failure)
// from one that is gone entirely. A bin absent from the archive but present
// in deleted is an invalid transition, not a missing document.
func (m *Manager) missingFrom(tx store.Tx, collection, binID string) error {
	others := []string{models.CollectionBins, models.CollectionArchive, models.CollectionDeleted}
	for _, other := range others {
		if other == collection {
			continue
		}
		if _, ok, err := tx.Get(other, binID); err != nil {
			return err
		} else if ok {
			return ErrInvalidTransition
		}
	}
	return ErrNotFound
}

// runMove runs a cross-collection move transactionally, optionally falling
// back to a direct read-then-write when the conflict budget runs out.
func (m *Manager) runMove(ctx context.Context, fn func(tx store.Tx) error) error {
	err := m.store.RunTransaction(ctx, fn)
	if errors.Is(err, store.ErrConflict) && m.cfg.AllowDegradedFallback {
		log.Printf("⚠️  Transaction conflict budget exhausted, retrying non-transactionally (best effort)")
		direct := &directTx{ctx: ctx, store: m.store}
		if ferr := fn(direct); ferr != nil {
			return ferr
		}
		return direct.err
	}
	return err
}

// directTx applies operations immediately against the store, without
// snapshot isolation. Only used for the degraded fallback.
type directTx struct {
	ctx   context.Context
	store store.Store
	err   error
}

func (t *directTx) Get(collection, id string) (map[string]interface{}, bool, error) {
	return t.store.Get(t.ctx, collection, id)
}

func (t *directTx) Set(collection, id string, data map[string]interface{}, merge bool) {
	if t.err == nil {
		t.err = t.store.Set(t.ctx, collection, id, data, merge)
	}
}

func (t *directTx) Delete(collection, id string) {
	if t.err == nil {
		t.err = t.store.Delete(t.ctx, collection, id)
	}
}
