package ethereum

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

func TestSplitBlockRange(t *testing.T) {
	tests := []struct {
		name      string
		from      uint64
		to        uint64
		batchSize uint64
		expected  []BlockRange
	}{
		{
			name:      "single batch",
			from:      996,
			to:        1000,
			batchSize: 2000,
			expected:  []BlockRange{{From: 996, To: 1000}},
		},
		{
			name:      "exact multiple",
			from:      1,
			to:        20,
			batchSize: 10,
			expected:  []BlockRange{{From: 1, To: 10}, {From: 11, To: 20}},
		},
		{
			name:      "remainder",
			from:      1,
			to:        25,
			batchSize: 10,
			expected:  []BlockRange{{From: 1, To: 10}, {From: 11, To: 20}, {From: 21, To: 25}},
		},
		{
			name:      "single block",
			from:      7,
			to:        7,
			batchSize: 10,
			expected:  []BlockRange{{From: 7, To: 7}},
		},
		{
			name:      "unbounded batch",
			from:      1,
			to:        100000,
			batchSize: 0,
			expected:  []BlockRange{{From: 1, To: 100000}},
		},
		{
			name:      "inverted range",
			from:      10,
			to:        5,
			batchSize: 10,
			expected:  nil,
		},
		{
			name:      "near max uint64",
			from:      ^uint64(0) - 5,
			to:        ^uint64(0),
			batchSize: 4,
			expected:  []BlockRange{{From: ^uint64(0) - 5, To: ^uint64(0) - 2}, {From: ^uint64(0) - 1, To: ^uint64(0)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SplitBlockRange(tt.from, tt.to, tt.batchSize)

			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d ranges, got %d: %v", len(tt.expected), len(result), result)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("range %d: expected %+v, got %+v", i, tt.expected[i], result[i])
				}
			}
		})
	}
}

type fakeLogFilterer struct {
	queries []ethereum.FilterQuery
	failOn  int // 1-based call number that fails, 0 never
}

func (f *fakeLogFilterer) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	f.queries = append(f.queries, query)
	if f.failOn == len(f.queries) {
		return nil, errors.New("rpc unavailable")
	}
	return []types.Log{createValidTransferLog(query.FromBlock.Uint64(), 0)}, nil
}

func TestFetcher_FetchIncoming(t *testing.T) {
	client := &fakeLogFilterer{}
	fetcher := NewFetcher(client, 10, zap.NewNop())
	account := createValidTransferLog(0, 0).Topics[2]

	logs, err := fetcher.FetchIncoming(context.Background(), common.BytesToAddress(account.Bytes()), 1, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.queries) != 3 {
		t.Fatalf("expected 3 batched queries, got %d", len(client.queries))
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	for i, want := range []uint64{1, 11, 21} {
		if logs[i].BlockNumber != want {
			t.Errorf("log %d: expected block %d, got %d", i, want, logs[i].BlockNumber)
		}
	}
	for _, q := range client.queries {
		if q.Topics[2][0] != account {
			t.Errorf("query recipient topic mismatch: %s", q.Topics[2][0].Hex())
		}
	}
}

func TestFetcher_FetchIncoming_AllOrNothing(t *testing.T) {
	client := &fakeLogFilterer{failOn: 2}
	fetcher := NewFetcher(client, 10, zap.NewNop())

	logs, err := fetcher.FetchIncoming(context.Background(), common.BytesToAddress(createValidTransferLog(0, 0).Topics[2].Bytes()), 1, 25)
	if err == nil {
		t.Fatal("expected error when a batch fails")
	}
	if logs != nil {
		t.Errorf("expected no logs on partial failure, got %d", len(logs))
	}
	if len(client.queries) != 2 {
		t.Errorf("expected fetching to stop at the failing batch, got %d queries", len(client.queries))
	}
}
