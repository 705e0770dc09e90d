package indexer

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokenlens/transfer-indexer/internal/chain"
	"github.com/tokenlens/transfer-indexer/internal/database"
	"github.com/tokenlens/transfer-indexer/internal/metrics"
)

// scan walks block ranges backward from the safe head in fixed-size
// chunks, stopping once the per-cycle quota of new records is met or
// the window is exhausted down to the stored frontier. Scanning
// backward bounds the work to genuinely new data; the confirmation
// depth keeps shallow forks out of the store in the first place.
func (ix *Indexer) scan(ctx context.Context) (int64, error) {
	head, err := ix.chain.LatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if head < ix.confirmations {
		return 0, nil
	}
	safeHead := head - ix.confirmations

	frontier, err := ix.store.Frontier(ctx)
	if err != nil {
		return 0, err
	}

	var lastIndexed uint64
	if frontier != nil {
		lastIndexed = frontier.BlockNumber
	}

	if safeHead < lastIndexed {
		// Frontier above the safe head, e.g. after a deep manual
		// rollback on the node. Nothing to scan.
		ix.logger.Debug("safe head below stored frontier, skipping scan",
			zap.Uint64("safeHead", safeHead),
			zap.Uint64("frontier", lastIndexed))
		return 0, nil
	}

	low := lastIndexed + 1
	toBlock := safeHead

	var inserted int64
	for inserted < ix.maxRecords && toBlock >= low {
		fromBlock := low
		if toBlock >= ix.chunkSize && toBlock-ix.chunkSize+1 > low {
			fromBlock = toBlock - ix.chunkSize + 1
		}

		// Paces the eth_getLogs call rate across chunks.
		if err := ix.pace.Wait(ctx); err != nil {
			return inserted, err
		}

		logs, err := ix.chain.TransferLogs(ctx, fromBlock, toBlock)
		if err != nil {
			return inserted, err
		}

		records := ix.decodeChunk(ctx, logs)
		if len(records) > 0 {
			n, err := ix.store.SaveTransfers(ctx, records)
			if err != nil {
				return inserted, err
			}

			inserted += n
			metrics.TransfersInserted.Add(float64(n))
		}

		ix.logger.Debug("scanned chunk",
			zap.Uint64("fromBlock", fromBlock),
			zap.Uint64("toBlock", toBlock),
			zap.Int("logs", len(logs)),
			zap.Int64("inserted", inserted))

		if fromBlock == low {
			break
		}
		toBlock = fromBlock - 1
	}

	return inserted, nil
}

// decodeChunk turns raw logs into transfer records. A log that fails to
// decode, or whose block header cannot be resolved, is dropped on its
// own; the rest of the chunk proceeds.
func (ix *Indexer) decodeChunk(ctx context.Context, logs []types.Log) []*database.Transfer {
	if len(logs) == 0 {
		return nil
	}

	headers := ix.fetchHeaders(ctx, logs)

	records := make([]*database.Transfer, 0, len(logs))
	for i := range logs {
		lg := &logs[i]

		event, err := chain.ParseTransferLog(lg)
		if err != nil {
			metrics.LogsDropped.Inc()
			ix.logger.Warn("dropping undecodable log",
				zap.String("txHash", lg.TxHash.Hex()),
				zap.Uint("logIndex", lg.Index),
				zap.Error(err))
			continue
		}

		header, ok := headers[lg.BlockNumber]
		if !ok {
			metrics.LogsDropped.Inc()
			ix.logger.Warn("dropping log with unresolved block header",
				zap.String("txHash", lg.TxHash.Hex()),
				zap.Uint64("block", lg.BlockNumber))
			continue
		}

		records = append(records, &database.Transfer{
			TxHash:      lg.TxHash.Hex(),
			LogIndex:    lg.Index,
			BlockNumber: lg.BlockNumber,
			BlockHash:   header.Hash,
			FromAddress: event.From,
			ToAddress:   event.To,
			Amount:      event.Amount,
			Timestamp:   header.Timestamp,
		})
	}

	return records
}

// fetchHeaders resolves hash and timestamp for every distinct block in
// the chunk, concurrently, at most one lookup per block. The cache
// lives for one chunk only. A failed lookup leaves its block out of the
// map; the affected logs are dropped by the caller.
func (ix *Indexer) fetchHeaders(ctx context.Context, logs []types.Log) map[uint64]*chain.HeaderInfo {
	numbers := make(map[uint64]struct{})
	for i := range logs {
		numbers[logs[i].BlockNumber] = struct{}{}
	}

	headers := make(map[uint64]*chain.HeaderInfo, len(numbers))
	var mu sync.Mutex
	sem := make(chan struct{}, ix.headerConcurrency)
	eg, ctx := errgroup.WithContext(ctx)

	for number := range numbers {
		number := number
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			header, err := ix.chain.HeaderInfo(ctx, number)
			if err != nil {
				ix.logger.Warn("block header lookup failed",
					zap.Uint64("block", number),
					zap.Error(err))
				return nil
			}

			mu.Lock()
			headers[number] = header
			mu.Unlock()

			return nil
		})
	}

	// Lookups only report failures through the log; the group never
	// returns an error.
	_ = eg.Wait()

	return headers
}
