package services

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
	"github.com/bimakw/token-forwarder/internal/testutil"
)

func TestStartupSweeper_Sweep(t *testing.T) {
	const daiAddress = "0x6b175474e89094c44da98b954eedeac495271d0f"

	tokens := testutil.NewMockTokenTransactor()
	tokens.SetBalance(testutil.USDTAddress, big.NewInt(100))
	tokens.SetBalance(daiAddress, big.NewInt(300))
	history := testutil.NewMockForwardRepository()
	resolver := testutil.NewMockResolver(testutil.USDT, testutil.USDC)

	sweeper := NewStartupSweeper(
		[]string{testutil.USDTAddress, testutil.USDCAddress, daiAddress},
		resolver,
		newTestExecutor(tokens, history, nil),
		zap.NewNop(),
	)

	if n := sweeper.Sweep(context.Background()); n != 2 {
		t.Errorf("expected 2 forwards, got %d", n)
	}

	sent := tokens.Transfers()
	if len(sent) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(sent))
	}
	if sent[0].Token != common.HexToAddress(testutil.USDTAddress) || sent[1].Token != common.HexToAddress(daiAddress) {
		t.Errorf("expected transfers in list order, got %s then %s", sent[0].Token.Hex(), sent[1].Token.Hex())
	}
	if resolver.CallCount() != 3 {
		t.Errorf("expected every token resolved once, got %d", resolver.CallCount())
	}

	records := history.Forwards()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Trigger != entities.TriggerSweep || r.SourceTxHash != "" {
			t.Errorf("expected sweep record without source tx, got %+v", r)
		}
	}
	if records[1].TokenSymbol != entities.DefaultTokenSymbol {
		t.Errorf("expected unresolved token to use fallback symbol, got %s", records[1].TokenSymbol)
	}
}

func TestStartupSweeper_Empty(t *testing.T) {
	resolver := testutil.NewMockResolver()
	sweeper := NewStartupSweeper(nil, resolver, newTestExecutor(testutil.NewMockTokenTransactor(), nil, nil), zap.NewNop())

	if n := sweeper.Sweep(context.Background()); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
	if resolver.CallCount() != 0 {
		t.Error("expected no resolution for an empty list")
	}
}

func TestStartupSweeper_StopsOnCancel(t *testing.T) {
	tokens := testutil.NewMockTokenTransactor()
	tokens.SetBalance(testutil.USDTAddress, big.NewInt(1))
	sweeper := NewStartupSweeper([]string{testutil.USDTAddress}, testutil.NewMockResolver(), newTestExecutor(tokens, nil, nil), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if n := sweeper.Sweep(ctx); n != 0 {
		t.Errorf("expected no forwards after cancel, got %d", n)
	}
	if len(tokens.Transfers()) != 0 {
		t.Error("expected no transfers after cancel")
	}
}
