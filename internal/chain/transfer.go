package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// TransferTopic is the keccak hash of the canonical ERC-20 Transfer
// event signature.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// TransferEvent is a decoded Transfer(address indexed from, address
// indexed to, uint256 value) log. Addresses are lowercase hex; the
// amount is decimal-encoded to avoid any float precision loss.
type TransferEvent struct {
	From   string
	To     string
	Amount string
}

// ParseTransferLog decodes a single Transfer log. Both indexed address
// topics must be present and the data must hold exactly one uint256.
func ParseTransferLog(lg *types.Log) (*TransferEvent, error) {
	if lg.Removed {
		return nil, errors.New("log removed by reorg")
	}
	if len(lg.Topics) != 3 {
		return nil, errors.Errorf("expected 3 topics, got %d", len(lg.Topics))
	}
	if lg.Topics[0] != TransferTopic {
		return nil, errors.Errorf("unexpected event signature %s", lg.Topics[0].Hex())
	}
	if len(lg.Data) != common.HashLength {
		return nil, errors.Errorf("expected 32 data bytes, got %d", len(lg.Data))
	}

	return &TransferEvent{
		From:   NormalizeAddress(common.BytesToAddress(lg.Topics[1].Bytes())),
		To:     NormalizeAddress(common.BytesToAddress(lg.Topics[2].Bytes())),
		Amount: new(big.Int).SetBytes(lg.Data).String(),
	}, nil
}

// NormalizeAddress renders an address the way the store keys it:
// lowercase hex with the 0x prefix.
func NormalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
