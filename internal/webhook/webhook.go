package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/config"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

const userAgent = "ytfetch-webhook/1.0"

// Notifier posts download events to the configured webhook endpoints
type Notifier struct {
	client *http.Client
	urls   []string
	secret string
}

// NewNotifier creates a new webhook notifier
func NewNotifier(cfg config.WebhookConfig) *Notifier {
	return &Notifier{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		urls:   cfg.URLs,
		secret: cfg.Secret,
	}
}

// PublishDownloadEvent delivers the event to every endpoint once. Every endpoint is
// attempted even when an earlier one fails.
func (n *Notifier) PublishDownloadEvent(ctx context.Context, event *models.DownloadEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	deliveryID := uuid.New().String()

	var errs []error
	for _, url := range n.urls {
		if err := n.deliver(ctx, url, event.Event, deliveryID, payload); err != nil {
			metrics.RecordError("webhook", "delivery")
			errs = append(errs, fmt.Errorf("webhook %s: %w", url, err))
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) deliver(ctx context.Context, url, event, deliveryID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Delivery", deliveryID)

	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", generateSignature(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}

// generateSignature generates HMAC-SHA256 signature for webhook payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
