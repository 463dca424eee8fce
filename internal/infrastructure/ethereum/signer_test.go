package ethereum

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Well-known development key, never funded on a real network
const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAccount    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewSigner(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "plain hex", key: testPrivateKey},
		{name: "0x prefix", key: "0x" + testPrivateKey},
		{name: "surrounding whitespace", key: "  " + testPrivateKey + "\n"},
		{name: "empty", key: "", wantErr: true},
		{name: "not hex", key: "not-a-key", wantErr: true},
		{name: "too short", key: testPrivateKey[:40], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewSigner(tt.key)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPrivateKey) {
					t.Fatalf("expected ErrInvalidPrivateKey, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if signer.Address() != common.HexToAddress(testAccount) {
				t.Errorf("expected address %s, got %s", testAccount, signer.Address().Hex())
			}
		})
	}
}

func TestNewSigner_ErrorDoesNotLeakKey(t *testing.T) {
	bad := testPrivateKey[:63] + "z"

	_, err := NewSigner(bad)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), testPrivateKey[:20]) {
		t.Errorf("error message contains key material: %v", err)
	}
}

func TestSigner_SignTx(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chainID := big.NewInt(1)
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("failed to recover sender: %v", err)
	}
	if sender != signer.Address() {
		t.Errorf("expected sender %s, got %s", signer.Address().Hex(), sender.Hex())
	}
}
