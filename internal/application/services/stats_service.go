package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
	"github.com/bimakw/token-forwarder/internal/domain/repositories"
	"github.com/bimakw/token-forwarder/internal/infrastructure/cache"
)

const statsCacheTTL = 60 * time.Second

// StatsService provides aggregated forward statistics per token
type StatsService struct {
	forwardRepo repositories.ForwardRepository
	cache       *cache.RedisCache
	logger      *zap.Logger
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(
	forwardRepo repositories.ForwardRepository,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *StatsService {
	return &StatsService{
		forwardRepo: forwardRepo,
		cache:       cache,
		logger:      logger,
	}
}

// TokenStats is the API representation of a token's forward statistics
type TokenStats struct {
	TokenAddress    string `json:"token_address"`
	Network         string `json:"network,omitempty"`
	TotalForwards   int64  `json:"total_forwards"`
	Confirmed       int64  `json:"confirmed"`
	Failed          int64  `json:"failed"`
	Pending         int64  `json:"pending"`
	ConfirmedVolume string `json:"confirmed_volume"`
	RawVolume       string `json:"raw_confirmed_volume"`
	Forwards24h     int64  `json:"forwards_24h"`
	Volume24h       string `json:"volume_24h"`
	FirstForwardAt  string `json:"first_forward_at"`
	LastForwardAt   string `json:"last_forward_at"`
}

// TokenStatsResponse is the API response for token stats queries
type TokenStatsResponse struct {
	Data TokenStats `json:"data"`
}

// GetTokenStats returns forward statistics for a token, or nil when it was never forwarded
func (s *StatsService) GetTokenStats(ctx context.Context, tokenAddress string, network *string) (*TokenStatsResponse, error) {
	tokenAddress = strings.ToLower(tokenAddress)

	cacheKey := fmt.Sprintf("stats:%s", tokenAddress)
	if network != nil {
		cacheKey += ":" + strings.ToLower(*network)
	}

	var cached TokenStatsResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	stats, err := s.forwardRepo.GetTokenStats(ctx, tokenAddress, network)
	if err != nil {
		return nil, fmt.Errorf("failed to get token stats: %w", err)
	}
	if stats == nil || stats.TotalForwards == 0 {
		return nil, nil
	}

	decimals := uint8(stats.TokenDecimals)
	response := &TokenStatsResponse{
		Data: TokenStats{
			TokenAddress:    tokenAddress,
			TotalForwards:   stats.TotalForwards,
			Confirmed:       stats.Confirmed,
			Failed:          stats.Failed,
			Pending:         stats.Pending,
			ConfirmedVolume: formatVolume(stats.ConfirmedVolume, decimals),
			RawVolume:       stats.ConfirmedVolume,
			Forwards24h:     stats.Forwards24h,
			Volume24h:       formatVolume(stats.Volume24h, decimals),
		},
	}
	if network != nil {
		response.Data.Network = *network
	}
	if stats.FirstForwardAt != nil {
		response.Data.FirstForwardAt = stats.FirstForwardAt.UTC().Format(time.RFC3339)
	}
	if stats.LastForwardAt != nil {
		response.Data.LastForwardAt = stats.LastForwardAt.UTC().Format(time.RFC3339)
	}

	// Stats move with every forward, so they get a shorter TTL than history pages
	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, statsCacheTTL); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// formatVolume scales a raw NUMERIC sum; Postgres may render it with a trailing fraction
func formatVolume(raw string, decimals uint8) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return "0"
	}
	return entities.FormatAmount(amount, decimals)
}
