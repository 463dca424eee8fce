package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
	"github.com/bimakw/token-forwarder/internal/domain/repositories"
)

// Ensure ForwardRepo implements ForwardRepository
var _ repositories.ForwardRepository = (*ForwardRepo)(nil)

const forwardColumns = `id, network, token_address, token_symbol, token_decimals, amount::TEXT AS amount,
	from_address, to_address, trigger_kind, source_tx_hash, forward_tx_hash, status, error,
	created_at, updated_at`

// ForwardRepo implements ForwardRepository using PostgreSQL
type ForwardRepo struct {
	db *sqlx.DB
}

// NewForwardRepo creates a new forward repository
func NewForwardRepo(db *sqlx.DB) *ForwardRepo {
	return &ForwardRepo{db: db}
}

// Create inserts a forward and fills in its ID and timestamps
func (r *ForwardRepo) Create(ctx context.Context, f *entities.Forward) error {
	if f.Amount != nil {
		f.AmountString = f.Amount.String()
	}
	if f.AmountString == "" {
		f.AmountString = "0"
	}

	query := `
		INSERT INTO forwards (network, token_address, token_symbol, token_decimals, amount,
							  from_address, to_address, trigger_kind, source_tx_hash,
							  forward_tx_hash, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		f.Network,
		f.TokenAddress,
		f.TokenSymbol,
		f.TokenDecimals,
		f.AmountString,
		f.FromAddress,
		f.ToAddress,
		f.Trigger,
		f.SourceTxHash,
		f.ForwardTxHash,
		f.Status,
		f.Error,
	)
	if err := row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert forward: %w", err)
	}

	return nil
}

// UpdateResult records the outcome of a forward
func (r *ForwardRepo) UpdateResult(ctx context.Context, id int64, status entities.ForwardStatus, forwardTxHash, errMsg string) error {
	query := `
		UPDATE forwards
		SET status = $2, forward_tx_hash = $3, error = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, status, forwardTxHash, errMsg); err != nil {
		return fmt.Errorf("failed to update forward %d: %w", id, err)
	}
	return nil
}

// GetByID retrieves a forward by ID, nil if it does not exist
func (r *ForwardRepo) GetByID(ctx context.Context, id int64) (*entities.Forward, error) {
	query := `SELECT ` + forwardColumns + ` FROM forwards WHERE id = $1`

	var f entities.Forward
	if err := r.db.GetContext(ctx, &f, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get forward: %w", err)
	}

	parseAmount(&f)
	return &f, nil
}

// GetByFilter retrieves forwards matching the given filter
func (r *ForwardRepo) GetByFilter(ctx context.Context, filter entities.ForwardFilter) ([]entities.Forward, error) {
	query, args := buildFilterQuery(filter, false)

	var forwards []entities.Forward
	if err := r.db.SelectContext(ctx, &forwards, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get forwards: %w", err)
	}

	for i := range forwards {
		parseAmount(&forwards[i])
	}
	return forwards, nil
}

// GetCount returns the count of forwards matching the filter
func (r *ForwardRepo) GetCount(ctx context.Context, filter entities.ForwardFilter) (int64, error) {
	query, args := buildFilterQuery(filter, true)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to get forward count: %w", err)
	}

	return count, nil
}

// statsRow holds the result of the token stats query
type statsRow struct {
	TotalForwards   int64      `db:"total_forwards"`
	Confirmed       int64      `db:"confirmed"`
	Failed          int64      `db:"failed"`
	Pending         int64      `db:"pending"`
	ConfirmedVolume string     `db:"confirmed_volume"`
	Forwards24h     int64      `db:"forwards_24h"`
	Volume24h       string     `db:"volume_24h"`
	TokenDecimals   int        `db:"token_decimals"`
	FirstForward    *time.Time `db:"first_forward"`
	LastForward     *time.Time `db:"last_forward"`
}

// GetTokenStats returns aggregated forward statistics for a token
func (r *ForwardRepo) GetTokenStats(ctx context.Context, tokenAddress string, network *string) (*repositories.ForwardStatsResult, error) {
	query, args := buildStatsQuery(tokenAddress, network)

	var row statsRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get token stats: %w", err)
	}

	return &repositories.ForwardStatsResult{
		TotalForwards:   row.TotalForwards,
		Confirmed:       row.Confirmed,
		Failed:          row.Failed,
		Pending:         row.Pending,
		ConfirmedVolume: row.ConfirmedVolume,
		Forwards24h:     row.Forwards24h,
		Volume24h:       row.Volume24h,
		TokenDecimals:   row.TokenDecimals,
		FirstForwardAt:  row.FirstForward,
		LastForwardAt:   row.LastForward,
	}, nil
}

func buildStatsQuery(tokenAddress string, network *string) (string, []interface{}) {
	where := "WHERE token_address = $1"
	args := []interface{}{tokenAddress}
	if network != nil {
		where += " AND network = $2"
		args = append(args, *network)
	}

	query := `
		SELECT
			COUNT(*) AS total_forwards,
			COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COALESCE(SUM(amount) FILTER (WHERE status = 'confirmed'), 0)::TEXT AS confirmed_volume,
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '24 hours') AS forwards_24h,
			COALESCE(SUM(amount) FILTER (WHERE status = 'confirmed' AND created_at >= NOW() - INTERVAL '24 hours'), 0)::TEXT AS volume_24h,
			COALESCE(MAX(token_decimals), 18) AS token_decimals,
			MIN(created_at) AS first_forward,
			MAX(created_at) AS last_forward
		FROM forwards
		` + where

	return query, args
}

// buildFilterQuery builds the SQL query for filtering forwards
func buildFilterQuery(filter entities.ForwardFilter, countOnly bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.Network != nil {
		conditions = append(conditions, fmt.Sprintf("network = $%d", argIdx))
		args = append(args, *filter.Network)
		argIdx++
	}

	if filter.TokenAddress != nil {
		conditions = append(conditions, fmt.Sprintf("token_address = $%d", argIdx))
		args = append(args, *filter.TokenAddress)
		argIdx++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.Trigger != nil {
		conditions = append(conditions, fmt.Sprintf("trigger_kind = $%d", argIdx))
		args = append(args, *filter.Trigger)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	if countOnly {
		return fmt.Sprintf("SELECT COUNT(*) FROM forwards %s", whereClause), args
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM forwards
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, forwardColumns, whereClause, argIdx, argIdx+1)

	args = append(args, filter.Limit, filter.Offset)

	return query, args
}

func parseAmount(f *entities.Forward) {
	if amount, ok := new(big.Int).SetString(f.AmountString, 10); ok {
		f.Amount = amount
	}
}
