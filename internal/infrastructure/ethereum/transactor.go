package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ErrConfirmTimeout is returned when a sent transaction is not mined in time
var ErrConfirmTimeout = errors.New("timed out waiting for transaction receipt")

// TxBackend is the chain surface needed to read balances and send token transfers
type TxBackend interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TransactorConfig holds the transaction building settings
type TransactorConfig struct {
	ChainID             *big.Int
	GasLimitBufferPct   int
	ConfirmTimeout      time.Duration
	ReceiptPollInterval time.Duration
}

// Transactor reads token balances and sends ERC-20 transfers from the signer's account
type Transactor struct {
	backend TxBackend
	signer  *Signer
	config  TransactorConfig
	logger  *zap.Logger

	// serializes nonce acquisition through broadcast
	sendMu sync.Mutex
}

// NewTransactor creates a new transactor
func NewTransactor(backend TxBackend, signer *Signer, cfg TransactorConfig, logger *zap.Logger) *Transactor {
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = 3 * time.Second
	}
	return &Transactor{
		backend: backend,
		signer:  signer,
		config:  cfg,
		logger:  logger,
	}
}

// Account returns the sending account
func (t *Transactor) Account() common.Address {
	return t.signer.Address()
}

// BalanceOf returns the account's balance of token
func (t *Transactor) BalanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	result, err := t.backend.CallContract(ctx, token, EncodeBalanceOf(t.signer.Address()))
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	return DecodeUint256(result)
}

// Transfer signs and broadcasts transfer(to, amount) on token, returning the tx hash
func (t *Transactor) Transfer(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	from := t.signer.Address()
	data := EncodeTransfer(to, amount)

	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &token, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas = withBuffer(gas, t.config.GasLimitBufferPct)

	tx, err := t.buildTx(ctx, nonce, token, gas, data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := t.signer.SignTx(tx, t.config.ChainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	t.logger.Info("Transaction sent",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("token", token.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)

	return signed.Hash(), nil
}

// buildTx uses EIP-1559 fees when the chain reports a base fee, a legacy gas price otherwise
func (t *Transactor) buildTx(ctx context.Context, nonce uint64, token common.Address, gas uint64, data []byte) (*types.Transaction, error) {
	header, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	if header.BaseFee != nil {
		tip, err := t.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))

		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   t.config.ChainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &token,
			Value:     big.NewInt(0),
			Data:      data,
		}), nil
	}

	price, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &token,
		Value:    big.NewInt(0),
		Data:     data,
	}), nil
}

// WaitMined polls for the receipt until it appears or the confirm timeout elapses
func (t *Transactor) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if t.config.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ConfirmTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(t.config.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			t.logger.Debug("Receipt lookup failed",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrConfirmTimeout, txHash.Hex())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func withBuffer(gas uint64, pct int) uint64 {
	if pct <= 0 {
		return gas
	}
	return gas + gas*uint64(pct)/100
}
