package sweeper

import (
	"context"
	"log"
	"time"

	"smartbin-backend/internal/models"
	"smartbin-backend/internal/store"
)

// DefaultRestoredRetention is how long a restored audit record stays in the
// archive collection before it is cleaned up.
const DefaultRestoredRetention = 24 * time.Hour

// Config supplies the retention windows. Each TTL class is one externally
// supplied value, never a literal inside the sweep logic.
type Config struct {
	RestoredRetention time.Duration

	// ReleaseSerials frees the serial reservation of each purged bin.
	ReleaseSerials bool

	Now func() time.Time
}

// Result is what a sweep accomplished. Counts are partial when individual
// deletions fail or the context is cancelled mid-batch.
type Result struct {
	PurgedDeleted  int `json:"purgedDeleted"`
	PurgedRestored int `json:"purgedRestored"`
}

// Sweeper permanently removes expired records: soft-deleted bins past their
// autoDeleteAfter deadline, and restored audit records past the restored
// retention window. Every deletion is independent and idempotent, so sweeps
// are safe to run concurrently from multiple workers.
type Sweeper struct {
	store store.Store
	cfg   Config
	now   func() time.Time
}

func New(st store.Store, cfg Config) *Sweeper {
	if cfg.RestoredRetention <= 0 {
		cfg.RestoredRetention = DefaultRestoredRetention
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: st, cfg: cfg, now: now}
}

// Sweep runs both retention passes. Individual deletion failures are logged
// and do not abort the remaining candidates.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var result Result
	now := s.now()

	expired, err := s.store.Where(ctx, models.CollectionDeleted, "autoDeleteAfter", "<=", now)
	if err != nil {
		return result, err
	}
	for _, doc := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.store.Delete(ctx, models.CollectionDeleted, doc.ID); err != nil {
			log.Printf("⚠️  Failed to purge deleted/%s: %v", doc.ID, err)
			continue
		}
		if s.cfg.ReleaseSerials {
			if err := s.store.Delete(ctx, models.CollectionSerials, doc.ID); err != nil {
				log.Printf("⚠️  Failed to release serial %s: %v", doc.ID, err)
			}
		}
		result.PurgedDeleted++
	}

	restored, err := s.store.Where(ctx, models.CollectionArchive, "status", "==", models.StatusRestored)
	if err != nil {
		return result, err
	}
	for _, doc := range restored {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		restoredAt, ok := doc.Data["restoredAt"].(time.Time)
		if !ok {
			log.Printf("⚠️  archive/%s has status restored but no restoredAt, skipping", doc.ID)
			continue
		}
		if now.Sub(restoredAt) < s.cfg.RestoredRetention {
			continue
		}
		if err := s.store.Delete(ctx, models.CollectionArchive, doc.ID); err != nil {
			log.Printf("⚠️  Failed to purge restored audit record archive/%s: %v", doc.ID, err)
			continue
		}
		result.PurgedRestored++
	}

	if result.PurgedDeleted > 0 || result.PurgedRestored > 0 {
		log.Printf("🧹 Sweep complete: %d deleted purged, %d restored audit records purged", result.PurgedDeleted, result.PurgedRestored)
	}
	return result, nil
}
