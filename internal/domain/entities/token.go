package entities

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Fallback metadata for tokens that do not implement the optional ERC-20 getters
const (
	DefaultTokenSymbol   = "UNKNOWN"
	DefaultTokenDecimals = uint8(18)
	DefaultTokenName     = "Unknown Token"
)

// TokenDescriptor is the metadata of an ERC-20 token resolved for a single forward.
// It is not cached between operations.
type TokenDescriptor struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
}

// DefaultTokenDescriptor returns the all-defaults descriptor for an address
func DefaultTokenDescriptor(address string) TokenDescriptor {
	return TokenDescriptor{
		Address:  address,
		Symbol:   DefaultTokenSymbol,
		Decimals: DefaultTokenDecimals,
		Name:     DefaultTokenName,
	}
}

// FormatAmount renders a raw token amount using the token's decimals
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
