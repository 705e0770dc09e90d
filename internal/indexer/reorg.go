package indexer

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/chain"
	"github.com/tokenlens/transfer-indexer/internal/metrics"
)

// rollbackReorg compares the stored frontier against the chain's
// current block at that height. On a hash mismatch, or when the block
// has vanished entirely, every record at or above the frontier is
// deleted before the scan may write anything new.
func (ix *Indexer) rollbackReorg(ctx context.Context) error {
	frontier, err := ix.store.Frontier(ctx)
	if err != nil {
		return err
	}
	if frontier == nil {
		// First run, nothing indexed yet.
		return nil
	}

	header, err := ix.chain.HeaderInfo(ctx, frontier.BlockNumber)
	switch {
	case errors.Is(err, chain.ErrBlockNotFound):
		// Frontier block no longer on the canonical chain.
	case err != nil:
		return err
	case header.Hash == frontier.BlockHash:
		return nil
	}

	deleted, err := ix.store.DeleteFromBlock(ctx, frontier.BlockNumber)
	if err != nil {
		return errors.Wrap(err, "rolling back diverged records")
	}

	metrics.ReorgsDetected.Inc()
	ix.logger.Warn("chain reorganization detected, rolled back",
		zap.Uint64("frontierBlock", frontier.BlockNumber),
		zap.String("storedHash", frontier.BlockHash),
		zap.Int64("deleted", deleted))

	return nil
}
