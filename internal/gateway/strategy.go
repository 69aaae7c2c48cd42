package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/models"
)

// SaveStrategy merge-upserts strategies/id. updated_at is always
// store-assigned. When data carries no version, the stored version is kept,
// or set to 1 if the document has none yet; it is never incremented.
func (g *Gateway) SaveStrategy(ctx context.Context, id string, data models.Document) error {
	log := g.log.WithField("strategy_id", id).WithField("op", "save_strategy")

	store, err := g.connected()
	if err != nil {
		log.Error("Persistence gateway not connected")
		return err
	}
	if id == "" {
		log.Error("Strategy id is empty")
		return fmt.Errorf("%w: empty strategy id", ErrInvalidInput)
	}

	doc := data.Clone()
	if doc == nil {
		doc = models.Document{}
	}
	doc[models.FieldUpdatedAt] = docstore.ServerTimestamp

	if _, ok := doc[models.FieldVersion]; !ok {
		needsDefault, err := g.missingVersion(ctx, store, id)
		if err != nil {
			log.WithError(err).Errorf("Failed to save strategy %s", id)
			return fmt.Errorf("%w: save strategy %s: %w", ErrOperationFailed, id, err)
		}
		if needsDefault {
			doc[models.FieldVersion] = 1
		}
	}

	if err := store.MergeSet(ctx, models.CollectionStrategies, id, doc); err != nil {
		log.WithError(err).Errorf("Failed to save strategy %s", id)
		return fmt.Errorf("%w: save strategy %s: %w", ErrOperationFailed, id, err)
	}

	log.Infof("Strategy %s saved", id)
	return nil
}

func (g *Gateway) missingVersion(ctx context.Context, store docstore.Store, id string) (bool, error) {
	existing, err := store.Get(ctx, models.CollectionStrategies, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := existing[models.FieldVersion]
	return !ok, nil
}

// GetStrategy returns the stored strategy document. A missing document is
// ErrNotFound, distinct from ErrNotConnected and ErrOperationFailed.
func (g *Gateway) GetStrategy(ctx context.Context, id string) (models.Document, error) {
	log := g.log.WithField("strategy_id", id).WithField("op", "get_strategy")

	store, err := g.connected()
	if err != nil {
		log.Error("Persistence gateway not connected")
		return nil, err
	}
	if id == "" {
		log.Error("Strategy id is empty")
		return nil, fmt.Errorf("%w: empty strategy id", ErrInvalidInput)
	}

	doc, err := store.Get(ctx, models.CollectionStrategies, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			log.Warnf("Strategy %s not found", id)
			return nil, ErrNotFound
		}
		log.WithError(err).Errorf("Failed to retrieve strategy %s", id)
		return nil, fmt.Errorf("%w: get strategy %s: %w", ErrOperationFailed, id, err)
	}
	return doc, nil
}
