// Package notify delivers out-of-band alerts for layers flagged alert=true,
// grounded on the retrieved pack's resty-based outbound HTTP client.
package notify

import (
	"time"

	"github.com/go-resty/resty/v2"

	"elasticgrid/kernel"
	"elasticgrid/logger"
)

// WebhookNotifier POSTs a small JSON payload to a configured webhook URL
// whenever the engine emits an alert-flagged action. It implements
// kernel.Notifier; delivery failures are logged and swallowed, never
// propagated back into tick processing.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier builds a notifier with bounded timeout and retry,
// matching the teacher pack's resty client configuration.
func NewWebhookNotifier(url string) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{client: client, url: url}
}

type alertPayload struct {
	Side      string  `json:"side"`
	SessionID string  `json:"session_id"`
	Index     int     `json:"index"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Kind      string  `json:"kind"`
}

// Notify implements kernel.Notifier. A blank URL disables delivery
// entirely rather than erroring on every tick. Delivery runs in its own
// goroutine, so the caller never waits on the webhook.
func (n *WebhookNotifier) Notify(ev kernel.AlertEvent) {
	if n.url == "" {
		return
	}
	payload := alertPayload{
		Side:      string(ev.Side),
		SessionID: ev.SessionID,
		Index:     ev.Index,
		Price:     ev.Price,
		Volume:    ev.Volume,
		Kind:      string(ev.Kind),
	}
	go func() {
		resp, err := n.client.R().SetBody(payload).Post(n.url)
		if err != nil {
			logger.Warnf("notify: webhook delivery failed: %v", err)
			return
		}
		if resp.IsError() {
			logger.Warnf("notify: webhook responded with status %d", resp.StatusCode())
		}
	}()
}
