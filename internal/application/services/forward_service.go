package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
	"github.com/bimakw/token-forwarder/internal/domain/repositories"
	"github.com/bimakw/token-forwarder/internal/infrastructure/cache"
)

// ForwardService provides read access to forward history
type ForwardService struct {
	forwardRepo repositories.ForwardRepository
	cache       *cache.RedisCache
	logger      *zap.Logger
}

// NewForwardService creates a new forward service. cache may be nil.
func NewForwardService(
	forwardRepo repositories.ForwardRepository,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *ForwardService {
	return &ForwardService{
		forwardRepo: forwardRepo,
		cache:       cache,
		logger:      logger,
	}
}

// ForwardResponse is the API response for forward queries
type ForwardResponse struct {
	Forwards []ForwardDTO `json:"forwards"`
	Total    int64        `json:"total"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
	HasMore  bool         `json:"has_more"`
}

// ForwardDTO is the API representation of a forward
type ForwardDTO struct {
	ID            int64  `json:"id"`
	Network       string `json:"network"`
	TokenAddress  string `json:"token_address"`
	TokenSymbol   string `json:"token_symbol"`
	Amount        string `json:"amount"`
	RawAmount     string `json:"raw_amount"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
	Trigger       string `json:"trigger"`
	SourceTxHash  string `json:"source_tx_hash,omitempty"`
	ForwardTxHash string `json:"forward_tx_hash,omitempty"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toForwardDTO(f entities.Forward) ForwardDTO {
	raw := f.AmountString
	if f.Amount != nil {
		raw = f.Amount.String()
	}
	return ForwardDTO{
		ID:            f.ID,
		Network:       f.Network,
		TokenAddress:  f.TokenAddress,
		TokenSymbol:   f.TokenSymbol,
		Amount:        f.FormattedAmount(),
		RawAmount:     raw,
		FromAddress:   f.FromAddress,
		ToAddress:     f.ToAddress,
		Trigger:       string(f.Trigger),
		SourceTxHash:  f.SourceTxHash,
		ForwardTxHash: f.ForwardTxHash,
		Status:        string(f.Status),
		Error:         f.Error,
		CreatedAt:     f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GetForwards retrieves forwards based on filter
func (s *ForwardService) GetForwards(ctx context.Context, filter entities.ForwardFilter) (*ForwardResponse, error) {
	if filter.TokenAddress != nil {
		token := strings.ToLower(*filter.TokenAddress)
		filter.TokenAddress = &token
	}

	cacheKey := s.generateCacheKey(filter)

	var cached ForwardResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	forwards, err := s.forwardRepo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get forwards: %w", err)
	}

	total, err := s.forwardRepo.GetCount(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get forward count: %w", err)
	}

	dtos := make([]ForwardDTO, len(forwards))
	for i, f := range forwards {
		dtos[i] = toForwardDTO(f)
	}

	response := &ForwardResponse{
		Forwards: dtos,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
		HasMore:  int64(filter.Offset+len(forwards)) < total,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetForward retrieves a single forward, nil if it does not exist
func (s *ForwardService) GetForward(ctx context.Context, id int64) (*ForwardDTO, error) {
	f, err := s.forwardRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get forward: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	dto := toForwardDTO(*f)
	return &dto, nil
}

// generateCacheKey generates a unique cache key for the filter
func (s *ForwardService) generateCacheKey(filter entities.ForwardFilter) string {
	var parts []string

	if filter.Network != nil {
		parts = append(parts, "net:"+*filter.Network)
	}
	if filter.TokenAddress != nil {
		parts = append(parts, "token:"+*filter.TokenAddress)
	}
	if filter.Status != nil {
		parts = append(parts, "status:"+string(*filter.Status))
	}
	if filter.Trigger != nil {
		parts = append(parts, "trigger:"+string(*filter.Trigger))
	}

	parts = append(parts, fmt.Sprintf("l:%d:o:%d", filter.Limit, filter.Offset))

	key := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(key))
	return "forwards:" + hex.EncodeToString(hash[:8])
}
