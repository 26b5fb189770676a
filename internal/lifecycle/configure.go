package lifecycle

import (
	"context"

	"smartbin-backend/internal/models"
	"smartbin-backend/internal/store"
)

// BinConfig is the set of fields an operator may change on a live bin.
type BinConfig struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Threshold int    `json:"threshold"`
	Location  string `json:"location"`
	ImageURL  string `json:"imageUrl"`
}

func (c *BinConfig) Validate() error {
	return models.ValidateBinConfig(c.Capacity, c.Threshold)
}

// Configure mutates an active bin in place, stamping lastConfigured.
// Validation runs before anything is persisted.
func (m *Manager) Configure(ctx context.Context, binID string, cfg BinConfig, actorID string) (models.Bin, error) {
	if err := cfg.Validate(); err != nil {
		return models.Bin{}, err
	}
	now := m.now()

	var updated map[string]interface{}
	err := m.store.RunTransaction(ctx, func(tx store.Tx) error {
		bin, ok, err := tx.Get(models.CollectionBins, binID)
		if err != nil {
			return err
		}
		if !ok {
			return m.missingFrom(tx, models.CollectionBins, binID)
		}

		changes := map[string]interface{}{
			"name":           cfg.Name,
			"capacity":       cfg.Capacity,
			"threshold":      cfg.Threshold,
			"location":       cfg.Location,
			"imageUrl":       cfg.ImageURL,
			"lastConfigured": now,
		}
		updated = store.CopyDoc(bin)
		for k, v := range changes {
			updated[k] = v
		}
		tx.Set(models.CollectionBins, binID, changes, true)
		return nil
	})
	if err != nil {
		return models.Bin{}, err
	}
	return models.DecodeBin(binID, updated)
}
