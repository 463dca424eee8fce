package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/bimakw/token-forwarder/internal/infrastructure/cache"
	"github.com/bimakw/token-forwarder/internal/testutil"
)

func TestIncomingTransferHandler_ForwardsAfterDelay(t *testing.T) {
	tokens := testutil.NewMockTokenTransactor()
	tokens.SetBalance(testutil.USDTAddress, big.NewInt(1000000))

	delay := 50 * time.Millisecond
	handler := newTestHandler(tokens, cache.NewMemorySeenStore(time.Hour, 100), delay)

	start := time.Now()
	handler.Handle(context.Background(), testutil.IncomingLog(testutil.USDTAddress, 1000000, 997, testutil.TxHash(1)))

	if time.Since(start) >= delay {
		t.Error("expected Handle to return without waiting for the delay")
	}
	if handler.Pending() != 1 {
		t.Errorf("expected 1 pending forward, got %d", handler.Pending())
	}

	handler.Wait()

	sent := tokens.Transfers()
	if len(sent) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(sent))
	}
	if sent[0].At.Sub(start) < delay {
		t.Errorf("expected transfer after %v, was sent after %v", delay, sent[0].At.Sub(start))
	}
	if handler.Pending() != 0 {
		t.Errorf("expected no pending forwards, got %d", handler.Pending())
	}
}

func TestIncomingTransferHandler_DuplicateTx(t *testing.T) {
	tokens := testutil.NewMockTokenTransactor()
	tokens.SetBalance(testutil.USDTAddress, big.NewInt(1000000))
	handler := newTestHandler(tokens, testutil.NewMockSeenStore(), time.Millisecond)

	log := testutil.IncomingLog(testutil.USDTAddress, 1000000, 997, testutil.TxHash(1))
	handler.Handle(context.Background(), log)
	handler.Handle(context.Background(), log)
	handler.Wait()

	if len(tokens.Transfers()) != 1 {
		t.Errorf("expected 1 transfer for a duplicated event, got %d", len(tokens.Transfers()))
	}
}

func TestIncomingTransferHandler_CancelAbortsPending(t *testing.T) {
	tokens := testutil.NewMockTokenTransactor()
	tokens.SetBalance(testutil.USDTAddress, big.NewInt(1000000))
	handler := newTestHandler(tokens, testutil.NewMockSeenStore(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	handler.Handle(ctx, testutil.IncomingLog(testutil.USDTAddress, 1000000, 997, testutil.TxHash(1)))
	cancel()
	handler.Wait()

	if len(tokens.Transfers()) != 0 {
		t.Errorf("expected no transfer after cancellation, got %d", len(tokens.Transfers()))
	}
	if handler.Pending() != 0 {
		t.Errorf("expected pending to drain, got %d", handler.Pending())
	}
}

func TestIncomingTransferHandler_Ignores(t *testing.T) {
	outgoing := testutil.TransferLog(testutil.USDTAddress, testutil.AccountAddress, testutil.SenderAddress, big.NewInt(5), 997, testutil.TxHash(1))

	nft := testutil.IncomingLog(testutil.USDTAddress, 5, 997, testutil.TxHash(2))
	nft.Topics = append(nft.Topics, testutil.TxHash(42))
	nft.Data = nil

	store := testutil.NewMockSeenStore()
	tokens := testutil.NewMockTokenTransactor()
	tokens.SetBalance(testutil.USDTAddress, big.NewInt(5))
	handler := newTestHandler(tokens, store, time.Millisecond)

	handler.Handle(context.Background(), outgoing)
	handler.Handle(context.Background(), nft)
	handler.Wait()

	if len(tokens.Transfers()) != 0 {
		t.Errorf("expected no transfers, got %d", len(tokens.Transfers()))
	}
	if len(store.Keys()) != 0 {
		t.Errorf("expected ignored logs not to be marked seen, got %v", store.Keys())
	}
}

func TestIncomingTransferHandler_MultipleTokens(t *testing.T) {
	tokens := testutil.NewMockTokenTransactor()
	tokens.SetBalance(testutil.USDTAddress, big.NewInt(10))
	tokens.SetBalance(testutil.USDCAddress, big.NewInt(20))
	handler := newTestHandler(tokens, testutil.NewMockSeenStore(), time.Millisecond)

	handler.Handle(context.Background(), testutil.IncomingLog(testutil.USDTAddress, 10, 997, testutil.TxHash(1)))
	handler.Handle(context.Background(), testutil.IncomingLog(testutil.USDCAddress, 20, 998, testutil.TxHash(2)))
	handler.Wait()

	if len(tokens.Transfers()) != 2 {
		t.Errorf("expected 2 transfers, got %d", len(tokens.Transfers()))
	}
}
