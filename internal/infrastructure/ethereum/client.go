package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// ErrChainIDMismatch is returned when the node serves a different chain than configured
var ErrChainIDMismatch = errors.New("chain ID mismatch")

// Client wraps the Ethereum client with retry logic and a per-endpoint rate limit
type Client struct {
	client  *ethclient.Client
	config  config.EthereumConfig
	network entities.NetworkConfig
	logger  *zap.Logger
	limiter *rate.Limiter
	chainID *big.Int
}

// NewClient dials the network's RPC endpoint and verifies its chain ID
func NewClient(ctx context.Context, network entities.NetworkConfig, cfg config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s node: %w", network.Name, err)
	}

	chainID, err := client.ChainID(dialCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if network.ChainID != 0 && chainID.Int64() != network.ChainID {
		client.Close()
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrChainIDMismatch, network.ChainID, chainID.Int64())
	}

	logger.Info("Connected to node",
		zap.String("network", network.Name),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &Client{
		client:  client,
		config:  cfg,
		network: network,
		logger:  logger,
		limiter: newLimiter(cfg),
		chainID: chainID,
	}, nil
}

func newLimiter(cfg config.EthereumConfig) *rate.Limiter {
	if cfg.RateLimitRPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
}

// Close closes the Ethereum client connection
func (c *Client) Close() {
	c.client.Close()
}

// ChainID returns the chain ID reported by the node at connect time
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// withRetry runs fn up to MaxRetries+1 times, waiting RetryDelay between attempts
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error

	for i := 0; i <= c.config.MaxRetries; i++ {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return fmt.Errorf("%s: %w", op, werr)
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		c.logger.Warn("RPC call failed, retrying",
			zap.String("network", c.network.Name),
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return fmt.Errorf("%s failed after %d retries: %w", op, c.config.MaxRetries, err)
}

// once runs a single rate-limited call
func (c *Client) once(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var blockNumber uint64
	err := c.withRetry(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		blockNumber, err = c.client.BlockNumber(ctx)
		return err
	})
	return blockNumber, err
}

// FilterLogs retrieves logs matching the filter query
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.withRetry(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.client.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

// SubscribeFilterLogs subscribes to logs matching the query. Requires a websocket endpoint.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if err := c.once(ctx); err != nil {
		return nil, err
	}
	return c.client.SubscribeFilterLogs(ctx, query, ch)
}

// CallContract executes a read-only call against the latest block. Not retried: a
// revert from a non-standard token is an answer, not a transient failure.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := c.once(ctx); err != nil {
		return nil, err
	}
	return c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// PendingNonceAt returns the next nonce for the account, including pending transactions
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.withRetry(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		var err error
		nonce, err = c.client.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

// EstimateGas estimates the gas needed for the call
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := c.once(ctx); err != nil {
		return 0, err
	}
	return c.client.EstimateGas(ctx, msg)
}

// HeaderByNumber returns a block header, latest if number is nil
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.withRetry(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		header, err = c.client.HeaderByNumber(ctx, number)
		return err
	})
	return header, err
}

// SuggestGasTipCap returns the node's priority fee suggestion
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip *big.Int
	err := c.withRetry(ctx, "eth_maxPriorityFeePerGas", func(ctx context.Context) error {
		var err error
		tip, err = c.client.SuggestGasTipCap(ctx)
		return err
	})
	return tip, err
}

// SuggestGasPrice returns the node's legacy gas price suggestion
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.withRetry(ctx, "eth_gasPrice", func(ctx context.Context) error {
		var err error
		price, err = c.client.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// SendTransaction broadcasts a signed transaction. Not retried: a resend of the same
// nonce is the caller's decision.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.once(ctx); err != nil {
		return err
	}
	return c.client.SendTransaction(ctx, tx)
}

// TransactionReceipt returns the receipt of a mined transaction, ethereum.NotFound while pending
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.once(ctx); err != nil {
		return nil, err
	}
	return c.client.TransactionReceipt(ctx, txHash)
}
