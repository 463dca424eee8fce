package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
	ethinfra "github.com/bimakw/token-forwarder/internal/infrastructure/ethereum"
)

// IncomingTransferHandler turns incoming Transfer logs into delayed forwards
type IncomingTransferHandler struct {
	account  string
	network  string
	dedup    *Deduplicator
	resolver MetadataResolver
	executor *TransferExecutor
	delay    time.Duration
	logger   *zap.Logger

	tasks   conc.WaitGroup
	pending atomic.Int64
}

// NewIncomingTransferHandler creates a handler for logs addressed to account
func NewIncomingTransferHandler(
	account common.Address,
	network string,
	dedup *Deduplicator,
	resolver MetadataResolver,
	executor *TransferExecutor,
	delay time.Duration,
	logger *zap.Logger,
) *IncomingTransferHandler {
	return &IncomingTransferHandler{
		account:  strings.ToLower(account.Hex()),
		network:  network,
		dedup:    dedup,
		resolver: resolver,
		executor: executor,
		delay:    delay,
		logger:   logger,
	}
}

// Handle schedules a forward for the log's token and returns without waiting for it.
// The forward runs after the delay unless ctx is cancelled first.
func (h *IncomingTransferHandler) Handle(ctx context.Context, log types.Log) {
	event, err := ethinfra.ParseTransferEvent(log)
	if err != nil {
		if errors.Is(err, ethinfra.ErrNotERC20Transfer) {
			h.logger.Debug("Ignoring non ERC-20 log", zap.String("tx_hash", log.TxHash.Hex()))
		} else {
			h.logger.Warn("Failed to parse transfer log",
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Error(err),
			)
		}
		return
	}

	if event.ToAddress != h.account {
		h.logger.Debug("Ignoring transfer to another address", zap.String("to", event.ToAddress))
		return
	}

	if !h.dedup.ShouldProcess(ctx, event.TxHash) {
		h.logger.Debug("Duplicate transfer, skipping", zap.String("tx_hash", event.TxHash))
		return
	}

	desc := h.resolver.Resolve(ctx, event.TokenAddress)

	h.logger.Info("Incoming transfer",
		zap.String("tx_hash", event.TxHash),
		zap.Uint64("block", event.BlockNumber),
		zap.String("token", event.TokenAddress),
		zap.String("symbol", desc.Symbol),
		zap.String("from", event.FromAddress),
		zap.String("amount", entities.FormatAmount(event.Value, desc.Decimals)),
		zap.Duration("forward_in", h.delay),
	)
	incomingTransfers.WithLabelValues(h.network).Inc()

	h.pending.Add(1)
	pendingForwards.WithLabelValues(h.network).Inc()

	h.tasks.Go(func() {
		defer func() {
			h.pending.Add(-1)
			pendingForwards.WithLabelValues(h.network).Dec()
		}()

		timer := time.NewTimer(h.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			h.logger.Info("Pending forward cancelled",
				zap.String("tx_hash", event.TxHash),
				zap.String("token", event.TokenAddress),
			)
			return
		case <-timer.C:
		}

		h.executor.Transfer(ctx, desc, entities.TriggerEvent, event.TxHash)
	})
}

// Pending returns the number of scheduled forwards not yet finished
func (h *IncomingTransferHandler) Pending() int64 {
	return h.pending.Load()
}

// Wait blocks until every scheduled forward has finished or been cancelled
func (h *IncomingTransferHandler) Wait() {
	h.tasks.Wait()
}
