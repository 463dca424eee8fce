package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
	"github.com/bimakw/token-forwarder/internal/domain/repositories"
)

var errReverted = errors.New("transaction reverted")

// TransferExecutor moves the account's full balance of a token to the destination
type TransferExecutor struct {
	tokens      TokenTransactor
	account     common.Address
	destination common.Address
	network     string
	history     repositories.ForwardRepository
	notifier    Notifier
	logger      *zap.Logger

	// per-token locks, removed once no forward holds or waits on them
	mu         sync.Mutex
	tokenLocks map[common.Address]*tokenLock
}

type tokenLock struct {
	sync.Mutex
	refs int
}

// NewTransferExecutor creates a new executor. history and notifier may be nil.
func NewTransferExecutor(
	tokens TokenTransactor,
	account common.Address,
	destination common.Address,
	network string,
	history repositories.ForwardRepository,
	notifier Notifier,
	logger *zap.Logger,
) *TransferExecutor {
	return &TransferExecutor{
		tokens:      tokens,
		account:     account,
		destination: destination,
		network:     network,
		history:     history,
		notifier:    notifier,
		logger:      logger,
		tokenLocks:  make(map[common.Address]*tokenLock),
	}
}

// Transfer forwards the current balance of the token. It returns true only when a
// transfer was confirmed on chain; a zero balance returns false without sending.
func (e *TransferExecutor) Transfer(ctx context.Context, desc entities.TokenDescriptor, trigger entities.ForwardTrigger, sourceTx string) bool {
	token := common.HexToAddress(desc.Address)
	logger := e.logger.With(
		zap.String("token", desc.Address),
		zap.String("symbol", desc.Symbol),
		zap.String("trigger", string(trigger)),
	)

	unlock := e.lock(token)
	defer unlock()

	balance, err := e.tokens.BalanceOf(ctx, token)
	if err != nil {
		logger.Warn("Failed to read token balance", zap.Error(err))
		forwardsTotal.WithLabelValues(e.network, string(trigger), "balance_error").Inc()
		return false
	}

	if balance.Sign() == 0 {
		logger.Info("Token balance is zero, nothing to forward")
		forwardsTotal.WithLabelValues(e.network, string(trigger), "empty").Inc()
		return false
	}

	record := &entities.Forward{
		Network:       e.network,
		TokenAddress:  strings.ToLower(desc.Address),
		TokenSymbol:   desc.Symbol,
		TokenDecimals: int(desc.Decimals),
		Amount:        new(big.Int).Set(balance),
		AmountString:  balance.String(),
		FromAddress:   strings.ToLower(e.account.Hex()),
		ToAddress:     strings.ToLower(e.destination.Hex()),
		Trigger:       trigger,
		SourceTxHash:  sourceTx,
		Status:        entities.ForwardPending,
	}
	e.recordStart(ctx, record, logger)

	logger.Info("Forwarding token balance",
		zap.String("amount", entities.FormatAmount(balance, desc.Decimals)),
		zap.String("destination", e.destination.Hex()),
	)

	start := time.Now()
	txHash, err := e.tokens.Transfer(ctx, token, e.destination, balance)
	if err != nil {
		e.finish(ctx, record, entities.ForwardFailed, err, logger)
		return false
	}
	record.ForwardTxHash = txHash.Hex()

	receipt, err := e.tokens.WaitMined(ctx, txHash)
	if err != nil {
		e.finish(ctx, record, entities.ForwardFailed, err, logger)
		return false
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.finish(ctx, record, entities.ForwardFailed, errReverted, logger)
		return false
	}

	forwardDuration.WithLabelValues(e.network).Observe(time.Since(start).Seconds())
	e.finish(ctx, record, entities.ForwardConfirmed, nil, logger)
	return true
}

// lock serializes forwards of one token and returns the matching unlock
func (e *TransferExecutor) lock(token common.Address) func() {
	e.mu.Lock()
	l, ok := e.tokenLocks[token]
	if !ok {
		l = &tokenLock{}
		e.tokenLocks[token] = l
	}
	l.refs++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.tokenLocks, token)
		}
		e.mu.Unlock()
	}
}

// heldLocks reports how many token locks are currently tracked
func (e *TransferExecutor) heldLocks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tokenLocks)
}

func (e *TransferExecutor) recordStart(ctx context.Context, record *entities.Forward, logger *zap.Logger) {
	if e.history == nil {
		return
	}
	if err := e.history.Create(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("Failed to record forward", zap.Error(err))
	}
}

// finish records the outcome. History and notification outlive a cancelled ctx so a
// forward that was sent is never left unrecorded.
func (e *TransferExecutor) finish(ctx context.Context, record *entities.Forward, status entities.ForwardStatus, cause error, logger *zap.Logger) {
	record.Status = status
	if cause != nil {
		record.Error = cause.Error()
	}

	forwardsTotal.WithLabelValues(e.network, string(record.Trigger), string(status)).Inc()

	if status == entities.ForwardConfirmed {
		logger.Info("Forward confirmed",
			zap.String("tx_hash", record.ForwardTxHash),
			zap.String("amount", record.FormattedAmount()),
		)
	} else {
		logger.Error("Forward failed",
			zap.String("tx_hash", record.ForwardTxHash),
			zap.Error(cause),
		)
	}

	detached := context.WithoutCancel(ctx)

	if e.history != nil && record.ID != 0 {
		if err := e.history.UpdateResult(detached, record.ID, status, record.ForwardTxHash, record.Error); err != nil {
			logger.Warn("Failed to update forward record", zap.Error(err))
		}
	}

	if e.notifier != nil {
		e.notifier.Notify(detached, *record)
	}
}
