package repositories

import (
	"context"
	"time"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// ForwardStatsResult holds aggregated forward statistics for a token
type ForwardStatsResult struct {
	TotalForwards   int64
	Confirmed       int64
	Failed          int64
	Pending         int64
	ConfirmedVolume string
	Forwards24h     int64
	Volume24h       string
	TokenDecimals   int
	FirstForwardAt  *time.Time
	LastForwardAt   *time.Time
}

// ForwardRepository defines the interface for forward history operations
type ForwardRepository interface {
	// Create stores a new forward and fills in its ID and timestamps
	Create(ctx context.Context, forward *entities.Forward) error

	// UpdateResult records the final status of a forward
	UpdateResult(ctx context.Context, id int64, status entities.ForwardStatus, forwardTxHash, errMsg string) error

	// GetByID retrieves a forward by ID, nil if it does not exist
	GetByID(ctx context.Context, id int64) (*entities.Forward, error)

	// GetByFilter retrieves forwards matching the given filter, newest first
	GetByFilter(ctx context.Context, filter entities.ForwardFilter) ([]entities.Forward, error)

	// GetCount returns the count of forwards matching the filter
	GetCount(ctx context.Context, filter entities.ForwardFilter) (int64, error)

	// GetTokenStats aggregates the forwards of a token, optionally on one network
	GetTokenStats(ctx context.Context, tokenAddress string, network *string) (*ForwardStatsResult, error)
}
