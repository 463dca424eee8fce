package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// Scan modes
const (
	ScanModePoll      = "poll"
	ScanModeSubscribe = "subscribe"
)

// Dedup backends
const (
	DedupBackendMemory = "memory"
	DedupBackendRedis  = "redis"
)

var (
	ErrMissingPrivateKey = errors.New("PRIVATE_KEY is not set")
	ErrMissingRecipient  = errors.New("RECIPIENT_ADDRESS is not set")
	ErrInvalidRecipient  = errors.New("RECIPIENT_ADDRESS is not a valid address")
	ErrNoNetworks        = errors.New("no RPC URL configured, set at least one of RPC_URL, ARBITRUM_RPC_URL, BASE_RPC_URL, POLYGON_RPC_URL")
	ErrInvalidScanMode   = errors.New("FORWARDER_SCAN_MODE must be poll or subscribe")
	ErrInvalidDedup      = errors.New("FORWARDER_DEDUP_BACKEND must be memory or redis")
	ErrInvalidChainID    = errors.New("chain ID must not be negative")
)

// Config holds all configuration for the application
type Config struct {
	// Forwarding behaviour and signing credential
	Forwarder ForwarderConfig

	// One endpoint per supported network
	RPC RPCConfig

	// Ethereum client settings shared by every network
	Ethereum EthereumConfig

	// Forward history storage (optional for the forwarder)
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// HTTP servers
	API APIConfig

	// Outbound forward notifications
	Notify NotifyConfig

	// Logging configuration
	Log LogConfig
}

// ForwarderConfig holds the monitor and forwarding settings
type ForwarderConfig struct {
	PrivateKey          string        `envconfig:"PRIVATE_KEY"`
	RecipientAddress    string        `envconfig:"RECIPIENT_ADDRESS"`
	SweepTokens         []string      `envconfig:"CUSTOM_TOKENS"`
	PollInterval        time.Duration `envconfig:"FORWARDER_POLL_INTERVAL" default:"15s"`
	ForwardDelay        time.Duration `envconfig:"FORWARDER_FORWARD_DELAY" default:"60s"`
	RestartCooldown     time.Duration `envconfig:"FORWARDER_RESTART_COOLDOWN" default:"30s"`
	MaxRestartBackoff   time.Duration `envconfig:"FORWARDER_MAX_RESTART_BACKOFF" default:"5m"`
	MaxBlockRange       uint64        `envconfig:"FORWARDER_MAX_BLOCK_RANGE" default:"2000"`
	ScanMode            string        `envconfig:"FORWARDER_SCAN_MODE" default:"poll"`
	DedupBackend        string        `envconfig:"FORWARDER_DEDUP_BACKEND" default:"memory"`
	DedupWindow         time.Duration `envconfig:"FORWARDER_DEDUP_WINDOW" default:"24h"`
	DedupCapacity       int           `envconfig:"FORWARDER_DEDUP_CAPACITY" default:"100000"`
	ConfirmTimeout      time.Duration `envconfig:"FORWARDER_CONFIRM_TIMEOUT" default:"5m"`
	ReceiptPollInterval time.Duration `envconfig:"FORWARDER_RECEIPT_POLL_INTERVAL" default:"3s"`
	OpsPort             int           `envconfig:"FORWARDER_OPS_PORT" default:"8080"`
}

// RPCConfig holds the RPC endpoint of every supported network. Empty means disabled.
// A chain ID of 0 accepts whatever the node reports; any other value must match it.
type RPCConfig struct {
	Ethereum string `envconfig:"RPC_URL"`
	Arbitrum string `envconfig:"ARBITRUM_RPC_URL"`
	Base     string `envconfig:"BASE_RPC_URL"`
	Polygon  string `envconfig:"POLYGON_RPC_URL"`

	EthereumChainID int64 `envconfig:"RPC_CHAIN_ID" default:"0"`
	ArbitrumChainID int64 `envconfig:"ARBITRUM_CHAIN_ID" default:"0"`
	BaseChainID     int64 `envconfig:"BASE_CHAIN_ID" default:"0"`
	PolygonChainID  int64 `envconfig:"POLYGON_CHAIN_ID" default:"0"`
}

// EthereumConfig holds Ethereum node connection settings
type EthereumConfig struct {
	RequestTimeout time.Duration `envconfig:"ETH_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"ETH_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"ETH_RETRY_DELAY" default:"1s"`
	RateLimitRPS   float64       `envconfig:"ETH_RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst int           `envconfig:"ETH_RATE_LIMIT_BURST" default:"5"`
	GasLimitBuffer int           `envconfig:"ETH_GAS_LIMIT_BUFFER_PCT" default:"20"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Enabled         bool          `envconfig:"DB_ENABLED" default:"false"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"forwarder"`
	Password        string        `envconfig:"DB_PASSWORD" default:"forwarder"`
	Name            string        `envconfig:"DB_NAME" default:"token_forwarder"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds history API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// NotifyConfig holds the opt-in forward webhook. Only forward events are sent.
type NotifyConfig struct {
	WebhookURL string        `envconfig:"NOTIFY_WEBHOOK_URL" default:""`
	Timeout    time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"NOTIFY_MAX_RETRIES" default:"2"`
}

// Enabled reports whether a webhook is configured
func (c NotifyConfig) Enabled() bool {
	return strings.TrimSpace(c.WebhookURL) != ""
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
	File   string `envconfig:"LOG_FILE" default:""`
}

// Load loads configuration from a local .env file (if any) and environment variables.
// Variables already present in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the forwarder cannot start without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Forwarder.PrivateKey) == "" {
		return ErrMissingPrivateKey
	}
	recipient := strings.TrimSpace(c.Forwarder.RecipientAddress)
	if recipient == "" {
		return ErrMissingRecipient
	}
	if !common.IsHexAddress(recipient) {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}
	if len(c.Networks()) == 0 {
		return ErrNoNetworks
	}
	for _, id := range []int64{c.RPC.EthereumChainID, c.RPC.ArbitrumChainID, c.RPC.BaseChainID, c.RPC.PolygonChainID} {
		if id < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidChainID, id)
		}
	}
	switch c.Forwarder.ScanMode {
	case ScanModePoll, ScanModeSubscribe:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidScanMode, c.Forwarder.ScanMode)
	}
	switch c.Forwarder.DedupBackend {
	case DedupBackendMemory, DedupBackendRedis:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDedup, c.Forwarder.DedupBackend)
	}
	return nil
}

// Networks returns the configured networks in a stable order
func (c *Config) Networks() []entities.NetworkConfig {
	candidates := []entities.NetworkConfig{
		{Name: "Ethereum", RPCURL: c.RPC.Ethereum, ChainID: c.RPC.EthereumChainID},
		{Name: "Arbitrum", RPCURL: c.RPC.Arbitrum, ChainID: c.RPC.ArbitrumChainID},
		{Name: "Base", RPCURL: c.RPC.Base, ChainID: c.RPC.BaseChainID},
		{Name: "Polygon", RPCURL: c.RPC.Polygon, ChainID: c.RPC.PolygonChainID},
	}

	networks := make([]entities.NetworkConfig, 0, len(candidates))
	for _, n := range candidates {
		n.RPCURL = strings.TrimSpace(n.RPCURL)
		if n.RPCURL != "" {
			networks = append(networks, n)
		}
	}
	return networks
}

// SweepTokenAddresses normalizes CUSTOM_TOKENS. Entries that are not 0x-prefixed
// 20-byte hex addresses are returned separately so the caller can report them.
func (c *ForwarderConfig) SweepTokenAddresses() (valid []string, rejected []string) {
	seen := make(map[string]struct{}, len(c.SweepTokens))
	for _, raw := range c.SweepTokens {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" {
			continue
		}
		if len(addr) != 42 || !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
			rejected = append(rejected, raw)
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		valid = append(valid, addr)
	}
	return valid, rejected
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
