package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/domain/repositories"
)

// Deduplicator ensures each transaction triggers at most one forward per network
type Deduplicator struct {
	store   repositories.SeenStore
	network string
	logger  *zap.Logger
}

// NewDeduplicator creates a deduplicator for one network
func NewDeduplicator(store repositories.SeenStore, network string, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		store:   store,
		network: network,
		logger:  logger,
	}
}

// ShouldProcess reports true exactly once per transaction ID. If the store fails the
// event is processed: forwarding an already-empty balance is a no-op, a missed
// transfer is not.
func (d *Deduplicator) ShouldProcess(ctx context.Context, txID string) bool {
	key := d.network + ":" + strings.ToLower(txID)

	first, err := d.store.MarkSeen(ctx, key)
	if err != nil {
		d.logger.Warn("Dedup store unavailable, processing event",
			zap.String("tx_hash", txID),
			zap.Error(err),
		)
		return true
	}

	if !first {
		duplicateTransfers.WithLabelValues(d.network).Inc()
	}
	return first
}
