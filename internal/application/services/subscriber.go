package services

import (
	"context"
	"errors"
	"fmt"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	ethinfra "github.com/bimakw/token-forwarder/internal/infrastructure/ethereum"
)

const subscriptionBuffer = 128

// ErrSubscriptionClosed is returned when the node ends a log subscription without an error
var ErrSubscriptionClosed = errors.New("log subscription closed")

// SubscriptionScanner receives incoming Transfer logs pushed by a websocket endpoint.
// A dropped subscription ends Run with an error so the monitor restarts and resubscribes.
type SubscriptionScanner struct {
	chain   ChainClient
	account common.Address
	network string
	logger  *zap.Logger
	onBlock func(uint64)

	sub  geth.Subscription
	logs chan types.Log
}

// NewSubscriptionScanner creates a push-based scanner. onBlock, if set, is called
// with the block of every delivered log.
func NewSubscriptionScanner(chain ChainClient, account common.Address, network string, onBlock func(uint64), logger *zap.Logger) *SubscriptionScanner {
	return &SubscriptionScanner{
		chain:   chain,
		account: account,
		network: network,
		onBlock: onBlock,
		logger:  logger,
	}
}

// Start opens the subscription
func (s *SubscriptionScanner) Start(ctx context.Context) error {
	s.logs = make(chan types.Log, subscriptionBuffer)

	sub, err := s.chain.SubscribeFilterLogs(ctx, ethinfra.IncomingTransferQuery(s.account, nil, nil), s.logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to transfer logs: %w", err)
	}
	s.sub = sub

	s.logger.Info("Subscribed to incoming transfers")
	return nil
}

// Run delivers logs until ctx is done or the subscription fails
func (s *SubscriptionScanner) Run(ctx context.Context, handle LogHandler) error {
	if s.sub == nil {
		return errors.New("subscription not started")
	}
	defer s.sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.sub.Err():
			scanErrors.WithLabelValues(s.network).Inc()
			if err == nil {
				return ErrSubscriptionClosed
			}
			return fmt.Errorf("log subscription dropped: %w", err)
		case log := <-s.logs:
			if log.Removed {
				s.logger.Debug("Ignoring log removed by reorg", zap.String("tx_hash", log.TxHash.Hex()))
				continue
			}
			handle(ctx, log)
			lastCheckedBlock.WithLabelValues(s.network).Set(float64(log.BlockNumber))
			if s.onBlock != nil {
				s.onBlock(log.BlockNumber)
			}
		}
	}
}
