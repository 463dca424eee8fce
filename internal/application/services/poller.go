package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	ethinfra "github.com/bimakw/token-forwarder/internal/infrastructure/ethereum"
)

// BlockRangePoller scans new blocks on a fixed interval. The cursor only moves
// after every log of a range has been handled.
type BlockRangePoller struct {
	chain    ChainClient
	fetcher  *ethinfra.Fetcher
	account  common.Address
	network  string
	interval time.Duration
	logger   *zap.Logger

	cursor   atomic.Uint64
	onCursor func(uint64)
}

// NewBlockRangePoller creates a poller. onCursor, if set, is called after every advance.
func NewBlockRangePoller(
	chain ChainClient,
	fetcher *ethinfra.Fetcher,
	account common.Address,
	network string,
	interval time.Duration,
	onCursor func(uint64),
	logger *zap.Logger,
) *BlockRangePoller {
	return &BlockRangePoller{
		chain:    chain,
		fetcher:  fetcher,
		account:  account,
		network:  network,
		interval: interval,
		onCursor: onCursor,
		logger:   logger,
	}
}

// Start sets the cursor to the current height. Earlier blocks are not scanned.
func (p *BlockRangePoller) Start(ctx context.Context) error {
	height, err := p.chain.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read starting block: %w", err)
	}
	p.advance(height)

	p.logger.Info("Polling from current block",
		zap.Uint64("block", height),
		zap.Duration("interval", p.interval),
	)
	return nil
}

// Run polls until ctx is done. Poll failures are logged and retried next tick.
func (p *BlockRangePoller) Run(ctx context.Context, handle LogHandler) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = p.Poll(ctx, handle)
		}
	}
}

// Poll scans (cursor, height] once
func (p *BlockRangePoller) Poll(ctx context.Context, handle LogHandler) error {
	height, err := p.chain.BlockNumber(ctx)
	if err != nil {
		p.fail("Failed to read block height", err)
		return err
	}

	cursor := p.Cursor()
	if height <= cursor {
		return nil
	}

	logs, err := p.fetcher.FetchIncoming(ctx, p.account, cursor+1, height)
	if err != nil {
		p.fail("Failed to fetch transfer logs", err,
			zap.Uint64("from_block", cursor+1),
			zap.Uint64("to_block", height),
		)
		return err
	}

	for _, log := range logs {
		handle(ctx, log)
	}

	p.advance(height)

	if len(logs) > 0 {
		p.logger.Debug("Scanned blocks",
			zap.Uint64("from_block", cursor+1),
			zap.Uint64("to_block", height),
			zap.Int("logs", len(logs)),
		)
	}
	return nil
}

// Cursor returns the last fully scanned block
func (p *BlockRangePoller) Cursor() uint64 {
	return p.cursor.Load()
}

func (p *BlockRangePoller) advance(height uint64) {
	p.cursor.Store(height)
	lastCheckedBlock.WithLabelValues(p.network).Set(float64(height))
	if p.onCursor != nil {
		p.onCursor(height)
	}
}

func (p *BlockRangePoller) fail(msg string, err error, fields ...zap.Field) {
	scanErrors.WithLabelValues(p.network).Inc()
	p.logger.Warn(msg, append(fields, zap.Error(err))...)
}
