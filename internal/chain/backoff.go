package chain

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/config"
	"github.com/tokenlens/transfer-indexer/internal/metrics"
)

// RPC is the capability surface the retry layer wraps. *Client is the
// production implementation.
type RPC interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	HeaderInfo(ctx context.Context, number uint64) (*HeaderInfo, error)
	TransferLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
}

// ClientWithBackoff retries every RPC call with bounded exponential
// backoff and jitter. The jitter is multiplicative: retry_jitter_factor
// f scales each delay uniformly into [delay*(1-f), delay*(1+f)], it is
// not an additive term with a fixed ceiling. Block-not-found is
// permanent and surfaces immediately; exhausting the attempt budget
// re-raises the last error.
type ClientWithBackoff struct {
	rpc            RPC
	maxRetries     uint64
	initialDelay   time.Duration
	maxInterval    time.Duration
	jitterFactor   float64
	requestTimeout time.Duration
	logger         *zap.Logger
}

func NewClientWithBackoff(rpc RPC, cfg *config.Chain, log *zap.Logger) *ClientWithBackoff {
	return &ClientWithBackoff{
		rpc:            rpc,
		maxRetries:     cfg.MaxRetries,
		initialDelay:   cfg.RetryInitialDelay(),
		maxInterval:    cfg.RetryMaxInterval(),
		jitterFactor:   cfg.RetryJitterFactor,
		requestTimeout: cfg.RequestTimeout(),
		logger:         log,
	}
}

func (cwb *ClientWithBackoff) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return retryWithBackoff(ctx, cwb, "LatestBlockNumber", func(ctx context.Context) (uint64, error) {
		return cwb.rpc.LatestBlockNumber(ctx)
	})
}

func (cwb *ClientWithBackoff) HeaderInfo(ctx context.Context, number uint64) (*HeaderInfo, error) {
	return retryWithBackoff(ctx, cwb, "HeaderInfo", func(ctx context.Context) (*HeaderInfo, error) {
		return cwb.rpc.HeaderInfo(ctx, number)
	})
}

func (cwb *ClientWithBackoff) TransferLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	return retryWithBackoff(ctx, cwb, "TransferLogs", func(ctx context.Context) ([]types.Log, error) {
		return cwb.rpc.TransferLogs(ctx, fromBlock, toBlock)
	})
}

func retryWithBackoff[T any](
	ctx context.Context, cwb *ClientWithBackoff, name string, op func(ctx context.Context) (T, error),
) (T, error) {
	result, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			callCtx := ctx
			if cwb.requestTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, cwb.requestTimeout)
				defer cancel()
			}

			v, err := op(callCtx)
			if err != nil && errors.Is(err, ErrBlockNotFound) {
				return v, backoff.Permanent(err)
			}

			return v, err
		},
		cwb.newBackoff(ctx),
		func(err error, d time.Duration) {
			metrics.RPCRetries.Inc()
			cwb.logger.Warn("RPC call failed, will retry",
				zap.String("call", name),
				zap.Duration("delay", d),
				zap.Error(err))
		},
	)
	if err != nil {
		return result, errors.Wrapf(err, "%s failed", name)
	}

	return result, nil
}

func (cwb *ClientWithBackoff) newBackoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(cwb.initialDelay),
		backoff.WithRandomizationFactor(cwb.jitterFactor),
		backoff.WithMaxInterval(cwb.maxInterval),
		backoff.WithMaxElapsedTime(0),
	)

	// maxRetries counts attempts, the wrapper counts re-tries.
	return backoff.WithContext(backoff.WithMaxRetries(exp, cwb.maxRetries-1), ctx)
}
