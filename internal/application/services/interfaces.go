package services

import (
	"context"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// ChainClient is the read side of a network connection used for scanning
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query geth.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, query geth.FilterQuery, ch chan<- types.Log) (geth.Subscription, error)
}

// MetadataResolver resolves a token's descriptor. It never fails.
type MetadataResolver interface {
	Resolve(ctx context.Context, tokenAddress string) entities.TokenDescriptor
}

// TokenTransactor reads balances of and sends transfers from the controlled account
type TokenTransactor interface {
	BalanceOf(ctx context.Context, token common.Address) (*big.Int, error)
	Transfer(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Notifier receives the outcome of every forward attempt
type Notifier interface {
	Notify(ctx context.Context, forward entities.Forward)
}

// LogHandler consumes one log delivered by a Scanner
type LogHandler func(ctx context.Context, log types.Log)

// Scanner delivers incoming Transfer logs for the monitored account.
// Start fixes the starting point; Run delivers logs until ctx is done or the
// scanner fails.
type Scanner interface {
	Start(ctx context.Context) error
	Run(ctx context.Context, handle LogHandler) error
}

// Session is one initialized connection to a network with the account's signer
type Session struct {
	Account  common.Address
	Chain    ChainClient
	Resolver MetadataResolver
	Tokens   TokenTransactor
	Close    func()
}

// Bootstrapper opens a Session for a network
type Bootstrapper func(ctx context.Context, network entities.NetworkConfig) (*Session, error)
