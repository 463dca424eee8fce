package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC-20 function selectors (first 4 bytes of keccak256 of the signature)
var (
	// name() -> 0x06fdde03
	nameSig = common.FromHex("0x06fdde03")
	// symbol() -> 0x95d89b41
	symbolSig = common.FromHex("0x95d89b41")
	// decimals() -> 0x313ce567
	decimalsSig = common.FromHex("0x313ce567")
	// balanceOf(address) -> 0x70a08231
	balanceOfSig = common.FromHex("0x70a08231")
	// transfer(address,uint256) -> 0xa9059cbb
	transferSig = common.FromHex("0xa9059cbb")
)

// EncodeBalanceOf builds the calldata for balanceOf(owner)
func EncodeBalanceOf(owner common.Address) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSig...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return data
}

// EncodeTransfer builds the calldata for transfer(to, amount)
func EncodeTransfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+64)
	data = append(data, transferSig...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// DecodeUint256 reads the first 32-byte word of a call result
func DecodeUint256(result []byte) (*big.Int, error) {
	if len(result) < 32 {
		return nil, fmt.Errorf("invalid uint256 response length: %d", len(result))
	}
	return new(big.Int).SetBytes(result[:32]), nil
}
