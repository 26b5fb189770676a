package lifecycle

import (
	"context"

	"smartbin-backend/internal/models"
	"smartbin-backend/internal/store"
)

// BatchRestoreResult reports per-item outcomes; a batch never fails
// atomically over guard violations.
type BatchRestoreResult struct {
	Restored []string     `json:"restored"`
	Skipped  []SkippedBin `json:"skipped"`
}

// BatchSoftDeleteResult mirrors BatchRestoreResult for soft deletes.
type BatchSoftDeleteResult struct {
	Deleted []string     `json:"deleted"`
	Skipped []SkippedBin `json:"skipped"`
}

// BatchRestore applies the restore state guard per item and commits all
// eligible moves in a single batched write. Items failing their guard are
// reported individually with the reason, never as a generic batch failure.
func (m *Manager) BatchRestore(ctx context.Context, binIDs []string, actorID string) (BatchRestoreResult, error) {
	result := BatchRestoreResult{Restored: []string{}, Skipped: []SkippedBin{}}
	actorName := m.resolveName(ctx, actorID)
	now := m.now()

	batch := m.store.Batch()
	for _, binID := range binIDs {
		arch, reason, err := m.guardArchived(ctx, binID)
		if err != nil {
			return result, err
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedBin{ID: binID, Reason: reason})
			continue
		}

		batch.Set(models.CollectionBins, binID, restoredBinDoc(arch, binID, actorID, now), false)
		batch.Set(models.CollectionArchive, binID, map[string]interface{}{
			"status":     models.StatusRestored,
			"restoredAt": now,
			"modifiedBy": actorName,
		}, true)
		result.Restored = append(result.Restored, binID)
	}

	if len(result.Restored) > 0 {
		if err := batch.Commit(ctx); err != nil {
			return BatchRestoreResult{Restored: []string{}, Skipped: result.Skipped}, err
		}
	}
	return result, nil
}

// BatchSoftDelete moves every still-archived item to the deleted collection
// in one batched write, skipping items whose state guard fails.
func (m *Manager) BatchSoftDelete(ctx context.Context, binIDs []string, actorID string) (BatchSoftDeleteResult, error) {
	result := BatchSoftDeleteResult{Deleted: []string{}, Skipped: []SkippedBin{}}
	actorName := m.resolveName(ctx, actorID)
	now := m.now()

	batch := m.store.Batch()
	for _, binID := range binIDs {
		arch, reason, err := m.guardArchived(ctx, binID)
		if err != nil {
			return result, err
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedBin{ID: binID, Reason: reason})
			continue
		}

		deleted := store.CopyDoc(arch)
		deleted["status"] = models.StatusDeleted
		deleted["deletedAt"] = now
		deleted["deletedBy"] = actorID
		deleted["modifiedBy"] = actorName
		deleted["autoDeleteAfter"] = now.Add(m.cfg.DeletedRetention)

		batch.Set(models.CollectionDeleted, binID, deleted, false)
		batch.Delete(models.CollectionArchive, binID)
		result.Deleted = append(result.Deleted, binID)
	}

	if len(result.Deleted) > 0 {
		if err := batch.Commit(ctx); err != nil {
			return BatchSoftDeleteResult{Deleted: []string{}, Skipped: result.Skipped}, err
		}
	}
	return result, nil
}

// guardArchived checks that a bin is currently Archived. Returns the
// archive document on success, or the skip reason when the guard fails.
func (m *Manager) guardArchived(ctx context.Context, binID string) (map[string]interface{}, string, error) {
	arch, ok, err := m.store.Get(ctx, models.CollectionArchive, binID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		// Distinguish already-moved from gone entirely.
		for _, other := range []string{models.CollectionBins, models.CollectionDeleted} {
			if _, found, err := m.store.Get(ctx, other, binID); err != nil {
				return nil, "", err
			} else if found {
				return nil, SkipReasonInvalidTransition, nil
			}
		}
		return nil, SkipReasonNotFound, nil
	}
	if arch["status"] != models.StatusArchived {
		return nil, SkipReasonInvalidTransition, nil
	}
	return arch, "", nil
}
