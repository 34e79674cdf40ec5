package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// maxErrorBodySize bounds how much of an error response is read back.
const maxErrorBodySize = 1024

// WebhookProvider POSTs the payload as JSON to a configured endpoint, with
// optional bearer authentication.
type WebhookProvider struct {
	enabled bool
	url     string
	token   string
	client  *http.Client
}

// NewWebhookProvider builds the webhook provider from settings.
func NewWebhookProvider(cfg *conf.WebhookSettings) *WebhookProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookProvider{
		enabled: cfg.Enabled,
		url:     cfg.URL,
		token:   cfg.BearerToken,
		client:  &http.Client{Timeout: timeout},
	}
}

func (w *WebhookProvider) Name() string    { return "webhook" }
func (w *WebhookProvider) Channel() string { return ChannelWebhook }
func (w *WebhookProvider) Enabled() bool   { return w.enabled }

func (w *WebhookProvider) ValidateConfig() error {
	if w.enabled && w.url == "" {
		return errors.Newf("webhook enabled but no URL configured").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Send posts the payload. Any non-2xx response is a delivery failure.
func (w *WebhookProvider) Send(ctx context.Context, p *Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("url", w.url).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return errors.Newf("webhook returned status %d: %s", resp.StatusCode, string(snippet)).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("status", resp.StatusCode).
			Build()
	}
	return nil
}
