package ethereum

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidPrivateKey is returned when the configured key cannot be parsed.
// A monitor that hits it halts instead of restarting.
var ErrInvalidPrivateKey = errors.New("invalid private key")

// Signer holds the controlled account's key
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex-encoded secp256k1 private key, with or without 0x prefix
func NewSigner(hexKey string) (*Signer, error) {
	trimmed := strings.TrimSpace(hexKey)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidPrivateKey)
	}

	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the account controlled by the key
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTx signs a transaction for the given chain
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
