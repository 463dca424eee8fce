package entities

import (
	"math/big"
	"time"
)

// ForwardStatus is the outcome of a forwarding attempt
type ForwardStatus string

const (
	ForwardPending   ForwardStatus = "pending"
	ForwardConfirmed ForwardStatus = "confirmed"
	ForwardFailed    ForwardStatus = "failed"
)

// ForwardTrigger is what caused a forwarding attempt
type ForwardTrigger string

const (
	TriggerEvent ForwardTrigger = "event"
	TriggerSweep ForwardTrigger = "sweep"
)

// Forward records one attempt to move a token balance to the destination
type Forward struct {
	ID            int64          `db:"id"`
	Network       string         `db:"network"`
	TokenAddress  string         `db:"token_address"`
	TokenSymbol   string         `db:"token_symbol"`
	TokenDecimals int            `db:"token_decimals"`
	Amount        *big.Int       `db:"-"` // Handled separately due to NUMERIC type
	AmountString  string         `db:"amount"`
	FromAddress   string         `db:"from_address"`
	ToAddress     string         `db:"to_address"`
	Trigger       ForwardTrigger `db:"trigger_kind"`
	SourceTxHash  string         `db:"source_tx_hash"`
	ForwardTxHash string         `db:"forward_tx_hash"`
	Status        ForwardStatus  `db:"status"`
	Error         string         `db:"error"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// FormattedAmount returns the amount scaled by the token decimals
func (f *Forward) FormattedAmount() string {
	amount := f.Amount
	if amount == nil {
		amount, _ = new(big.Int).SetString(f.AmountString, 10)
	}
	return FormatAmount(amount, uint8(f.TokenDecimals))
}

// ForwardFilter contains filters for querying forward history
type ForwardFilter struct {
	Network      *string
	TokenAddress *string
	Status       *ForwardStatus
	Trigger      *ForwardTrigger
	Limit        int
	Offset       int
}

// DefaultForwardFilter returns a filter with sensible defaults
func DefaultForwardFilter() ForwardFilter {
	return ForwardFilter{
		Limit:  100,
		Offset: 0,
	}
}
