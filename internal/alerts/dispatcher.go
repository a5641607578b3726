package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/findings"
	"github.com/gkchatty/gkchatty-local/internal/logger"
)

// Dispatcher fans findings out to webhook channels.
type Dispatcher struct {
	store  *Store
	client *http.Client

	// Optional channel from configuration, used alongside stored ones.
	defaultURL string
	defaultMin findings.Severity
}

// NewDispatcher creates a Dispatcher backed by the given channel store.
func NewDispatcher(store *Store, cfg config.AlertsConfig) *Dispatcher {
	min := findings.Severity(cfg.MinSeverity)
	if min == "" {
		min = findings.SeverityWarning
	}
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		defaultURL: cfg.WebhookURL,
		defaultMin: min,
	}
}

// payload is the webhook body.
type payload struct {
	Event   string           `json:"event"`
	Finding findings.Finding `json:"finding"`
}

// Notify delivers a finding to every channel whose severity floor it
// meets. Delivery failures are logged, not returned: an unreachable
// webhook must not fail the diagnostic run that filed the finding.
func (d *Dispatcher) Notify(ctx context.Context, f findings.Finding) {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(payload{Event: "finding", Finding: f})
	if err != nil {
		log.Error().Err(err).Msg("marshaling alert payload")
		return
	}

	if d.defaultURL != "" && f.Severity.Level() >= d.defaultMin.Level() {
		if err := d.send(ctx, d.defaultURL, body); err != nil {
			log.Warn().Err(err).Str("channel", "default").Msg("alert delivery failed")
		}
	}

	channels, err := d.store.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing alert channels")
		return
	}
	for _, ch := range channels {
		if !ch.Enabled || ch.WebhookURL == "" {
			continue
		}
		if f.Severity.Level() < ch.MinSeverity.Level() {
			continue
		}
		if err := d.send(ctx, ch.WebhookURL, body); err != nil {
			log.Warn().Err(err).Str("channel", ch.Name).Msg("alert delivery failed")
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
