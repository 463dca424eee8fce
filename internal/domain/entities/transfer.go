package entities

import (
	"math/big"
)

// TransferEvent is an incoming ERC-20 Transfer log addressed to a monitored account
type TransferEvent struct {
	TxHash       string
	LogIndex     int
	BlockNumber  uint64
	TokenAddress string
	FromAddress  string
	ToAddress    string
	Value        *big.Int
}

