package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/config"
)

// ErrBlockNotFound marks a block the node no longer (or does not yet)
// serve. Callers treat it as terminal, never as a transient failure.
var ErrBlockNotFound = errors.New("block not found")

// HeaderInfo is the subset of a block header the indexer needs.
type HeaderInfo struct {
	Hash      string
	Timestamp uint64
}

// Client is a thin wrapper over an EVM JSON-RPC node, bound to a single
// token contract. It carries no retry logic; see ClientWithBackoff.
type Client struct {
	eth      *ethclient.Client
	contract common.Address
	logger   *zap.Logger
}

func Dial(ctx context.Context, cfg *config.Chain, log *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, errors.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	eth, err := ethclient.DialContext(ctx, cfg.NodeURL)
	if err != nil {
		return nil, errors.Wrap(err, "dialing RPC node")
	}

	log.Info("connected to RPC node", zap.String("url", cfg.NodeURL))

	return &Client{
		eth:      eth,
		contract: common.HexToAddress(cfg.ContractAddress),
		logger:   log,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	number, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "eth_blockNumber")
	}

	return number, nil
}

func (c *Client) HeaderInfo(ctx context.Context, number uint64) (*HeaderInfo, error) {
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(ErrBlockNotFound, "block %d", number)
		}

		return nil, errors.Wrapf(err, "eth_getBlockByNumber %d", number)
	}

	return &HeaderInfo{
		Hash:      header.Hash().Hex(),
		Timestamp: header.Time,
	}, nil
}

// TransferLogs fetches the contract's Transfer logs for the inclusive
// block range [fromBlock, toBlock].
func (c *Client) TransferLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{TransferTopic}},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "eth_getLogs [%d, %d]", fromBlock, toBlock)
	}

	return logs, nil
}
