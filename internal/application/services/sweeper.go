package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

const sweepResolveConcurrency = 4

// StartupSweeper forwards any balance already held of a fixed token list
type StartupSweeper struct {
	tokens   []string
	resolver MetadataResolver
	executor *TransferExecutor
	logger   *zap.Logger
}

// NewStartupSweeper creates a sweeper over normalized token addresses
func NewStartupSweeper(tokens []string, resolver MetadataResolver, executor *TransferExecutor, logger *zap.Logger) *StartupSweeper {
	return &StartupSweeper{
		tokens:   tokens,
		resolver: resolver,
		executor: executor,
		logger:   logger,
	}
}

// Sweep resolves every token concurrently, then forwards them one at a time in list
// order. It returns the number of confirmed forwards.
func (s *StartupSweeper) Sweep(ctx context.Context) int {
	if len(s.tokens) == 0 {
		return 0
	}

	descriptors := make([]entities.TokenDescriptor, len(s.tokens))

	var g errgroup.Group
	g.SetLimit(sweepResolveConcurrency)
	for i, token := range s.tokens {
		g.Go(func() error {
			descriptors[i] = s.resolver.Resolve(ctx, token)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Sweeping configured tokens", zap.Int("tokens", len(s.tokens)))

	forwarded := 0
	for _, desc := range descriptors {
		if ctx.Err() != nil {
			break
		}
		if s.executor.Transfer(ctx, desc, entities.TriggerSweep, "") {
			forwarded++
		}
	}

	s.logger.Info("Startup sweep finished",
		zap.Int("tokens", len(s.tokens)),
		zap.Int("forwarded", forwarded),
	)
	return forwarded
}
