package services

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/domain/repositories"
	"github.com/bimakw/token-forwarder/internal/testutil"
)

var (
	testAccount     = common.HexToAddress(testutil.AccountAddress)
	testDestination = common.HexToAddress(testutil.DestinationAddress)
)

// eventually polls cond until it holds or the timeout elapses
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func newTestExecutor(tokens *testutil.MockTokenTransactor, history repositories.ForwardRepository, notifier Notifier) *TransferExecutor {
	return NewTransferExecutor(tokens, testAccount, testDestination, "Ethereum", history, notifier, zap.NewNop())
}

func newTestHandler(tokens *testutil.MockTokenTransactor, store repositories.SeenStore, delay time.Duration) *IncomingTransferHandler {
	logger := zap.NewNop()
	return NewIncomingTransferHandler(
		testAccount,
		"Ethereum",
		NewDeduplicator(store, "Ethereum", logger),
		testutil.NewMockResolver(testutil.USDT, testutil.USDC),
		newTestExecutor(tokens, nil, nil),
		delay,
		logger,
	)
}
