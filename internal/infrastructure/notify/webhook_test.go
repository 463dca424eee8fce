package notify

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

func testForward() entities.Forward {
	return entities.Forward{
		Network:       "Ethereum",
		TokenAddress:  "0xdac17f958d2ee523a2206206994597c13d831ec7",
		TokenSymbol:   "USDT",
		TokenDecimals: 6,
		Amount:        big.NewInt(1500000),
		FromAddress:   "0x2222222222222222222222222222222222222222",
		ToAddress:     "0x3333333333333333333333333333333333333333",
		Trigger:       entities.TriggerEvent,
		SourceTxHash:  "0xaaaa",
		ForwardTxHash: "0xbbbb",
		Status:        entities.ForwardConfirmed,
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var body []byte
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(config.NotifyConfig{WebhookURL: server.URL, Timeout: time.Second}, zap.NewNop())
	defer notifier.Close()

	if err := notifier.Send(context.Background(), NewForwardEvent(testForward())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(contentType, "application/json") {
		t.Errorf("expected JSON content type, got %q", contentType)
	}

	var event ForwardEvent
	if err := json.Unmarshal(body, &event); err != nil {
		t.Fatalf("failed to decode payload: %v (%s)", err, body)
	}
	if event.Amount != "1.5" {
		t.Errorf("expected formatted amount 1.5, got %s", event.Amount)
	}
	if event.RawAmount != "1500000" {
		t.Errorf("expected raw amount 1500000, got %s", event.RawAmount)
	}
	if event.Status != "confirmed" || event.Trigger != "event" {
		t.Errorf("unexpected status/trigger: %s/%s", event.Status, event.Trigger)
	}
	if event.ForwardTxHash != "0xbbbb" {
		t.Errorf("unexpected forward tx hash %s", event.ForwardTxHash)
	}
}

func TestWebhookNotifier_PayloadHasNoSecrets(t *testing.T) {
	data, err := json.Marshal(NewForwardEvent(testForward()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for key := range fields {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "key") || strings.Contains(lower, "secret") || strings.Contains(lower, "env") {
			t.Errorf("payload exposes field %q", key)
		}
	}
}

func TestWebhookNotifier_SendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(config.NotifyConfig{WebhookURL: server.URL, Timeout: time.Second}, zap.NewNop())
	defer notifier.Close()

	if err := notifier.Send(context.Background(), NewForwardEvent(testForward())); err == nil {
		t.Fatal("expected error for 400 response")
	}

	// Notify swallows the failure
	notifier.Notify(context.Background(), testForward())
}

func TestWebhookNotifier_Retries(t *testing.T) {
	tests := []struct {
		name         string
		firstAttempt func(w http.ResponseWriter)
		maxRetries   int
		wantErr      bool
		wantHits     int32
	}{
		{
			name: "dropped connection then success",
			firstAttempt: func(w http.ResponseWriter) {
				conn, _, err := w.(http.Hijacker).Hijack()
				if err == nil {
					conn.Close()
				}
			},
			maxRetries: 2,
			wantHits:   2,
		},
		{
			name:         "server error then success",
			firstAttempt: func(w http.ResponseWriter) { w.WriteHeader(http.StatusServiceUnavailable) },
			maxRetries:   2,
			wantHits:     2,
		},
		{
			name:         "client error is not retried",
			firstAttempt: func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadRequest) },
			maxRetries:   2,
			wantErr:      true,
			wantHits:     1,
		},
		{
			name:         "retries disabled",
			firstAttempt: func(w http.ResponseWriter) { w.WriteHeader(http.StatusServiceUnavailable) },
			maxRetries:   0,
			wantErr:      true,
			wantHits:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) == 1 {
					tt.firstAttempt(w)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			notifier := NewWebhookNotifier(config.NotifyConfig{
				WebhookURL: server.URL,
				Timeout:    time.Second,
				MaxRetries: tt.maxRetries,
			}, zap.NewNop())
			defer notifier.Close()

			err := notifier.Send(context.Background(), NewForwardEvent(testForward()))
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("expected %d attempts, got %d", tt.wantHits, got)
			}
		})
	}
}
