package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/config"
)

// PostgresDB wraps the sqlx database connection
type PostgresDB struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresDB creates a new PostgreSQL connection
func NewPostgresDB(cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)

	return &PostgresDB{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// DB returns the underlying sqlx.DB
func (p *PostgresDB) DB() *sqlx.DB {
	return p.db
}

// HealthCheck performs a health check on the database
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

const forwardsSchema = `
CREATE TABLE IF NOT EXISTS forwards (
	id              BIGSERIAL PRIMARY KEY,
	network         TEXT        NOT NULL,
	token_address   TEXT        NOT NULL,
	token_symbol    TEXT        NOT NULL,
	token_decimals  INTEGER     NOT NULL,
	amount          NUMERIC(78) NOT NULL,
	from_address    TEXT        NOT NULL,
	to_address      TEXT        NOT NULL,
	trigger_kind    TEXT        NOT NULL,
	source_tx_hash  TEXT        NOT NULL DEFAULT '',
	forward_tx_hash TEXT        NOT NULL DEFAULT '',
	status          TEXT        NOT NULL,
	error           TEXT        NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_forwards_network_created ON forwards (network, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_forwards_token ON forwards (token_address);
`

// EnsureSchema creates the forward history table if it does not exist
func (p *PostgresDB) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, forwardsSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
