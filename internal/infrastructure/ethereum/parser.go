package ethereum

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// TransferEventSignature is the keccak256 hash of Transfer(address,address,uint256)
var TransferEventSignature = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ErrNotERC20Transfer is returned for logs that are not ERC-20 Transfer events.
// ERC-721 shares the signature but indexes the token ID as a fourth topic.
var ErrNotERC20Transfer = errors.New("not an ERC-20 Transfer event")

// ParseTransferEvent parses a raw log into a TransferEvent
func ParseTransferEvent(log types.Log) (*entities.TransferEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != TransferEventSignature {
		return nil, ErrNotERC20Transfer
	}

	// Topics[1] = from, Topics[2] = to (both padded to 32 bytes)
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("%w: expected 3 topics, got %d", ErrNotERC20Transfer, len(log.Topics))
	}

	// Value is the only non-indexed parameter
	if len(log.Data) < 32 {
		return nil, fmt.Errorf("invalid data length: expected 32, got %d", len(log.Data))
	}
	value := new(big.Int).SetBytes(log.Data[:32])

	fromAddress := common.BytesToAddress(log.Topics[1].Bytes())
	toAddress := common.BytesToAddress(log.Topics[2].Bytes())

	return &entities.TransferEvent{
		TxHash:       log.TxHash.Hex(),
		LogIndex:     int(log.Index),
		BlockNumber:  log.BlockNumber,
		TokenAddress: strings.ToLower(log.Address.Hex()),
		FromAddress:  strings.ToLower(fromAddress.Hex()),
		ToAddress:    strings.ToLower(toAddress.Hex()),
		Value:        value,
	}, nil
}

// IsTransferEvent checks if a log is an ERC-20 Transfer event
func IsTransferEvent(log types.Log) bool {
	return len(log.Topics) == 3 && log.Topics[0] == TransferEventSignature
}
