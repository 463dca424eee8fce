package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// LogFilterer is the log query surface of a chain client
type LogFilterer interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// Fetcher queries incoming Transfer logs for a block range, split into batches
type Fetcher struct {
	client    LogFilterer
	batchSize uint64
	logger    *zap.Logger
}

// NewFetcher creates a new incoming-transfer log fetcher. A batchSize of 0 queries
// each range in a single call.
func NewFetcher(client LogFilterer, batchSize uint64, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:    client,
		batchSize: batchSize,
		logger:    logger,
	}
}

// FetchIncoming returns Transfer logs addressed to account in [fromBlock, toBlock], in
// chain order. Either every batch succeeds or an error is returned and nothing is.
func (f *Fetcher) FetchIncoming(ctx context.Context, account common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	ranges := SplitBlockRange(fromBlock, toBlock, f.batchSize)

	var logs []types.Log
	for _, r := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		batch, err := f.client.FilterLogs(ctx, IncomingTransferQuery(account, BlockBig(r.From), BlockBig(r.To)))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch logs for blocks %d-%d: %w", r.From, r.To, err)
		}
		logs = append(logs, batch...)
	}

	f.logger.Debug("Fetched incoming transfer logs",
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock),
		zap.Int("batches", len(ranges)),
		zap.Int("log_count", len(logs)),
	)

	return logs, nil
}

// IncomingTransferQuery builds a filter for ERC-20 Transfer events whose recipient
// (third topic) is the given account, from any token contract.
// A nil fromBlock and toBlock is the form used for subscriptions.
func IncomingTransferQuery(account common.Address, fromBlock, toBlock *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Topics: [][]common.Hash{
			{TransferEventSignature},
			nil,
			{AddressTopic(account)},
		},
	}
}

// AddressTopic left-pads an address to a 32-byte topic
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// BlockBig converts a block height for use in a FilterQuery
func BlockBig(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}

// BlockRange represents an inclusive range of blocks to fetch
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitBlockRange splits an inclusive range into batches of at most batchSize blocks
func SplitBlockRange(fromBlock, toBlock, batchSize uint64) []BlockRange {
	if fromBlock > toBlock {
		return nil
	}
	if batchSize == 0 {
		return []BlockRange{{From: fromBlock, To: toBlock}}
	}

	var ranges []BlockRange
	for current := fromBlock; current <= toBlock; current += batchSize {
		end := current + batchSize - 1
		if end > toBlock || end < current {
			end = toBlock
		}
		ranges = append(ranges, BlockRange{From: current, To: end})
		if end == toBlock {
			break
		}
	}

	return ranges
}
