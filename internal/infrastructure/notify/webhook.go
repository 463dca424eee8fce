package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

// ForwardEvent is the webhook payload. It carries the outcome of a forward and
// nothing else: no keys, no configuration.
type ForwardEvent struct {
	Network       string `json:"network"`
	Token         string `json:"token"`
	Symbol        string `json:"symbol"`
	Amount        string `json:"amount"`
	RawAmount     string `json:"raw_amount"`
	From          string `json:"from"`
	To            string `json:"to"`
	Trigger       string `json:"trigger"`
	SourceTxHash  string `json:"source_tx_hash,omitempty"`
	ForwardTxHash string `json:"forward_tx_hash,omitempty"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// NewForwardEvent builds the payload for a forward
func NewForwardEvent(f entities.Forward) ForwardEvent {
	raw := f.AmountString
	if f.Amount != nil {
		raw = f.Amount.String()
	}
	return ForwardEvent{
		Network:       f.Network,
		Token:         f.TokenAddress,
		Symbol:        f.TokenSymbol,
		Amount:        f.FormattedAmount(),
		RawAmount:     raw,
		From:          f.FromAddress,
		To:            f.ToAddress,
		Trigger:       string(f.Trigger),
		SourceTxHash:  f.SourceTxHash,
		ForwardTxHash: f.ForwardTxHash,
		Status:        string(f.Status),
		Error:         f.Error,
		Timestamp:     time.Now().Unix(),
	}
}

// WebhookNotifier posts forward events as JSON to a configured URL
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(cfg config.NotifyConfig, logger *zap.Logger) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	// POST is not idempotent, so retries have to be enabled explicitly
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetAllowNonIdempotentRetry(true).
		AddRetryConditions(retryable).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "token-forwarder")

	return &WebhookNotifier{
		client: client,
		url:    cfg.WebhookURL,
		logger: logger,
	}
}

// retryable retries transport failures and server-side errors
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode() >= 500
}

// Close releases idle connections
func (n *WebhookNotifier) Close() error {
	return n.client.Close()
}

// Send posts a single event, failing on transport errors and non-2xx replies
func (n *WebhookNotifier) Send(ctx context.Context, event ForwardEvent) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	return nil
}

// Notify sends a forward event. Delivery failures are logged and never propagate.
func (n *WebhookNotifier) Notify(ctx context.Context, f entities.Forward) {
	if err := n.Send(ctx, NewForwardEvent(f)); err != nil {
		n.logger.Warn("Failed to deliver forward notification",
			zap.String("network", f.Network),
			zap.String("token", f.TokenAddress),
			zap.Error(err),
		)
	}
}
