package testutil

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// Common test addresses
const (
	USDTAddress        = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	USDCAddress        = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	SenderAddress      = "0x1111111111111111111111111111111111111111"
	AccountAddress     = "0x2222222222222222222222222222222222222222"
	DestinationAddress = "0x3333333333333333333333333333333333333333"
)

// Well-known development key, never funded on a real network
const (
	TestPrivateKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	TestPrivateKeyAddr = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

// transferTopic is keccak256("Transfer(address,address,uint256)")
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// USDT and USDC descriptors as resolved on mainnet
var (
	USDT = entities.TokenDescriptor{Address: USDTAddress, Symbol: "USDT", Decimals: 6, Name: "Tether USD"}
	USDC = entities.TokenDescriptor{Address: USDCAddress, Symbol: "USDC", Decimals: 6, Name: "USD Coin"}
)

// TxHash builds a distinct transaction hash from n
func TxHash(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}

// TransferLog builds an ERC-20 Transfer log of value from sender to recipient
func TransferLog(token, from, to string, value *big.Int, block uint64, txHash common.Hash) types.Log {
	return types.Log{
		Address: common.HexToAddress(token),
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(common.HexToAddress(from).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
		TxHash:      txHash,
	}
}

// IncomingLog builds a Transfer log of token to AccountAddress
func IncomingLog(token string, value int64, block uint64, txHash common.Hash) types.Log {
	return TransferLog(token, SenderAddress, AccountAddress, big.NewInt(value), block, txHash)
}

// CreateTestForward creates a test forward with default values
func CreateTestForward(opts ...ForwardOption) entities.Forward {
	f := entities.Forward{
		ID:            1,
		Network:       "Ethereum",
		TokenAddress:  USDTAddress,
		TokenSymbol:   "USDT",
		TokenDecimals: 6,
		Amount:        big.NewInt(1000000), // 1 USDT
		AmountString:  "1000000",
		FromAddress:   AccountAddress,
		ToAddress:     DestinationAddress,
		Trigger:       entities.TriggerEvent,
		SourceTxHash:  "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		ForwardTxHash: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Status:        entities.ForwardConfirmed,
		CreatedAt:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(&f)
	}

	return f
}

type ForwardOption func(*entities.Forward)

func WithID(id int64) ForwardOption {
	return func(f *entities.Forward) {
		f.ID = id
	}
}

func WithNetwork(network string) ForwardOption {
	return func(f *entities.Forward) {
		f.Network = network
	}
}

func WithToken(desc entities.TokenDescriptor) ForwardOption {
	return func(f *entities.Forward) {
		f.TokenAddress = desc.Address
		f.TokenSymbol = desc.Symbol
		f.TokenDecimals = int(desc.Decimals)
	}
}

func WithAmount(amount *big.Int) ForwardOption {
	return func(f *entities.Forward) {
		f.Amount = amount
		f.AmountString = amount.String()
	}
}

func WithStatus(status entities.ForwardStatus) ForwardOption {
	return func(f *entities.Forward) {
		f.Status = status
	}
}

func WithTrigger(trigger entities.ForwardTrigger) ForwardOption {
	return func(f *entities.Forward) {
		f.Trigger = trigger
		if trigger == entities.TriggerSweep {
			f.SourceTxHash = ""
		}
	}
}
