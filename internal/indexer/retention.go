package indexer

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/metrics"
)

// enforceRetention trims the store down to the configured cap, oldest
// blocks first. It runs strictly after the scan's inserts are
// committed: a crash in between leaves the store merely over-cap, which
// the next cycle corrects, never missing data.
func (ix *Indexer) enforceRetention(ctx context.Context) error {
	count, err := ix.store.Count(ctx)
	if err != nil {
		return err
	}

	excess := count - ix.maxRecords
	if excess <= 0 {
		metrics.StoredRecords.Set(float64(count))
		return nil
	}

	ids, err := ix.store.OldestIDs(ctx, excess)
	if err != nil {
		return errors.Wrap(err, "selecting eviction candidates")
	}

	deleted, err := ix.store.DeleteByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "evicting oldest records")
	}

	metrics.RecordsEvicted.Add(float64(deleted))
	metrics.StoredRecords.Set(float64(count - deleted))
	ix.logger.Info("evicted oldest records",
		zap.Int64("deleted", deleted),
		zap.Int64("cap", ix.maxRecords))

	return nil
}
