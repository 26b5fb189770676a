package lifecycle

import (
	"context"
	"log"

	"smartbin-backend/internal/models"
)

// ListBins returns every live bin. A malformed document is logged and
// skipped so one bad write cannot blank the whole dashboard.
func (m *Manager) ListBins(ctx context.Context) ([]models.Bin, error) {
	docs, err := m.store.All(ctx, models.CollectionBins)
	if err != nil {
		return nil, err
	}
	bins := make([]models.Bin, 0, len(docs))
	for _, doc := range docs {
		bin, err := models.DecodeBin(doc.ID, doc.Data)
		if err != nil {
			log.Printf("⚠️  Skipping malformed bin document: %v", err)
			continue
		}
		bins = append(bins, bin)
	}
	return bins, nil
}

// ListArchive returns the archive collection (both archived and restored
// audit records).
func (m *Manager) ListArchive(ctx context.Context) ([]models.ArchivedBin, error) {
	docs, err := m.store.All(ctx, models.CollectionArchive)
	if err != nil {
		return nil, err
	}
	archived := make([]models.ArchivedBin, 0, len(docs))
	for _, doc := range docs {
		arch, err := models.DecodeArchivedBin(doc.ID, doc.Data)
		if err != nil {
			log.Printf("⚠️  Skipping malformed archive document: %v", err)
			continue
		}
		archived = append(archived, arch)
	}
	return archived, nil
}

// ListDeleted returns the soft-deleted bins awaiting purge.
func (m *Manager) ListDeleted(ctx context.Context) ([]models.DeletedBin, error) {
	docs, err := m.store.All(ctx, models.CollectionDeleted)
	if err != nil {
		return nil, err
	}
	deleted := make([]models.DeletedBin, 0, len(docs))
	for _, doc := range docs {
		del, err := models.DecodeDeletedBin(doc.ID, doc.Data)
		if err != nil {
			log.Printf("⚠️  Skipping malformed deleted document: %v", err)
			continue
		}
		deleted = append(deleted, del)
	}
	return deleted, nil
}
