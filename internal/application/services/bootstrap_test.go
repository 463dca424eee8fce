package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/domain/entities"
	ethinfra "github.com/bimakw/token-forwarder/internal/infrastructure/ethereum"
)

func TestChainBootstrapper_MalformedKeyFailsBeforeDialing(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tests := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "not hex", key: "0xzzzz"},
		{name: "too short", key: "0x1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bootstrap := NewChainBootstrapper(tt.key, config.EthereumConfig{}, config.ForwarderConfig{}, zap.NewNop())

			session, err := bootstrap(context.Background(), entities.NetworkConfig{Name: "Ethereum", RPCURL: server.URL})
			if !errors.Is(err, ethinfra.ErrInvalidPrivateKey) {
				t.Errorf("expected ErrInvalidPrivateKey, got %v", err)
			}
			if session != nil {
				t.Error("expected nil session")
			}
		})
	}

	if hits.Load() != 0 {
		t.Errorf("expected no RPC traffic, got %d requests", hits.Load())
	}
}
