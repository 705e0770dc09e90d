// Package indexer implements the indexing engine: a recurring cycle of
// reorg rollback, backward chunked log scanning, and retention
// enforcement over a size-bounded window of token transfers.
package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tokenlens/transfer-indexer/internal/chain"
	"github.com/tokenlens/transfer-indexer/internal/config"
	"github.com/tokenlens/transfer-indexer/internal/database"
	"github.com/tokenlens/transfer-indexer/internal/metrics"
)

// ChainClient is the node capability surface the engine consumes,
// normally a chain.ClientWithBackoff so every call already carries the
// retry budget.
type ChainClient interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	HeaderInfo(ctx context.Context, number uint64) (*chain.HeaderInfo, error)
	TransferLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
}

// EventStore is the persistence surface the engine consumes, normally a
// *database.DB.
type EventStore interface {
	Frontier(ctx context.Context) (*database.Frontier, error)
	SaveTransfers(ctx context.Context, transfers []*database.Transfer) (int64, error)
	Count(ctx context.Context) (int64, error)
	OldestIDs(ctx context.Context, n int64) ([]uint64, error)
	DeleteByIDs(ctx context.Context, ids []uint64) (int64, error)
	DeleteFromBlock(ctx context.Context, block uint64) (int64, error)
}

type Indexer struct {
	chain  ChainClient
	store  EventStore
	logger *zap.Logger

	chunkSize         uint64
	maxRecords        int64
	confirmations     uint64
	headerConcurrency int
	pollInterval      time.Duration
	pace              *rate.Limiter

	// cycleMu serializes cycles: a rollback racing another cycle's
	// inserts would corrupt the frontier invariant.
	cycleMu sync.Mutex
}

func New(cfg *config.Indexer, chainClient ChainClient, store EventStore, log *zap.Logger) *Indexer {
	return &Indexer{
		chain:             chainClient,
		store:             store,
		logger:            log,
		chunkSize:         cfg.ChunkSize,
		maxRecords:        cfg.MaxRecords,
		confirmations:     cfg.Confirmations,
		headerConcurrency: cfg.HeaderConcurrency,
		pollInterval:      cfg.PollInterval(),
		pace:              rate.NewLimiter(rate.Every(cfg.ChunkPace()), 1),
	}
}

// Run executes indexing cycles on the poll interval until ctx is
// cancelled. A failed cycle is logged and waits for the next tick; it
// never brings the process down.
func (ix *Indexer) Run(ctx context.Context) error {
	ticker := time.NewTicker(ix.pollInterval)
	defer ticker.Stop()

	for {
		if err := ix.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			ix.logger.Error("indexing cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes one full cycle: rollback of a diverged suffix,
// backward scan down to the stored frontier, then retention
// enforcement. Cycles never interleave.
func (ix *Indexer) RunCycle(ctx context.Context) error {
	ix.cycleMu.Lock()
	defer ix.cycleMu.Unlock()

	metrics.CyclesTotal.Inc()

	if err := ix.rollbackReorg(ctx); err != nil {
		metrics.CycleErrors.Inc()
		return errors.Wrap(err, "reorg check")
	}

	inserted, err := ix.scan(ctx)
	if err != nil {
		metrics.CycleErrors.Inc()
		return errors.Wrap(err, "scan")
	}

	if err := ix.enforceRetention(ctx); err != nil {
		metrics.CycleErrors.Inc()
		return errors.Wrap(err, "retention")
	}

	// Gauge refresh is best effort: the cycle already succeeded.
	if frontier, err := ix.store.Frontier(ctx); err == nil && frontier != nil {
		metrics.FrontierBlock.Set(float64(frontier.BlockNumber))
	}

	if inserted > 0 {
		ix.logger.Info("indexing cycle complete", zap.Int64("inserted", inserted))
	}

	return nil
}
