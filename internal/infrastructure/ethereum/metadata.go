/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// ContractCaller executes read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// MetadataFetcher resolves ERC-20 token metadata via eth_call
type MetadataFetcher struct {
	client ContractCaller
	logger *zap.Logger
}

// NewMetadataFetcher creates a new metadata fetcher
func NewMetadataFetcher(client ContractCaller, logger *zap.Logger) *MetadataFetcher {
	return &MetadataFetcher{
		client: client,
		logger: logger,
	}
}

// Resolve returns the token's descriptor. It never fails: each of symbol, decimals and
// name that cannot be read falls back to its default on its own.
func (f *MetadataFetcher) Resolve(ctx context.Context, tokenAddress string) entities.TokenDescriptor {
	desc := entities.DefaultTokenDescriptor(tokenAddress)
	addr := common.HexToAddress(tokenAddress)

	var g errgroup.Group

	g.Go(func() error {
		symbol, err := f.fetchString(ctx, addr, symbolSig)
		if err != nil {
			f.fallback(tokenAddress, "symbol", err)
			return nil
		}
		desc.Symbol = symbol
		return nil
	})

	g.Go(func() error {
		decimals, err := f.fetchDecimals(ctx, addr)
		if err != nil {
			f.fallback(tokenAddress, "decimals", err)
			return nil
		}
		desc.Decimals = decimals
		return nil
	})

	g.Go(func() error {
		name, err := f.fetchString(ctx, addr, nameSig)
		if err != nil {
			f.fallback(tokenAddress, "name", err)
			return nil
		}
		desc.Name = name
		return nil
	})

	// goroutines write disjoint fields and never return an error
	_ = g.Wait()

	return desc
}

func (f *MetadataFetcher) fallback(token, field string, err error) {
	f.logger.Warn("Failed to fetch token metadata, using fallback",
		zap.String("token", token),
		zap.String("field", field),
		zap.Error(err),
	)
}

// fetchString calls a string-returning getter such as name() or symbol()
func (f *MetadataFetcher) fetchString(ctx context.Context, addr common.Address, selector []byte) (string, error) {
	result, err := f.client.CallContract(ctx, addr, selector)
	if err != nil {
		return "", err
	}
	s, err := decodeStringOrBytes32(result)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("empty string")
	}
	return s, nil
}

// fetchDecimals fetches token decimals via eth_call
func (f *MetadataFetcher) fetchDecimals(ctx context.Context, addr common.Address) (uint8, error) {
	result, err := f.client.CallContract(ctx, addr, decimalsSig)
	if err != nil {
		return 0, err
	}

	value, err := DecodeUint256(result)
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() || value.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", value)
	}
	return uint8(value.Uint64()), nil
}

// decodeStringOrBytes32 decodes a response that could be either:
// 1. ABI-encoded string: offset (32 bytes) + length (32 bytes) + data (padded to 32 bytes)
// 2. bytes32: raw 32 bytes (e.g., MKR token)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data")
	}

	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	if len(data) >= 64 {
		offset := new(big.Int).SetBytes(data[:32])
		if offset.IsUint64() && offset.Uint64() == 32 {
			length := new(big.Int).SetBytes(data[32:64])
			if !length.IsUint64() || length.Uint64() > uint64(len(data)-64) {
				return "", fmt.Errorf("string length %s exceeds response", length)
			}
			strLen := int(length.Uint64())
			return strings.TrimRight(string(data[64:64+strLen]), "\x00"), nil
		}
	}

	result := bytes.TrimRight(data[:32], "\x00")
	if isPrintableASCII(result) {
		return string(result), nil
	}

	return "0x" + hex.EncodeToString(data[:32]), nil
}

// isPrintableASCII checks if all bytes are printable ASCII characters
func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}
