package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLeadFailureRate AlertType = "lead_failure_rate"
	AlertDLQDepth        AlertType = "dlq_depth"
	AlertCostOverrun     AlertType = "cost_overrun"
	AlertStalledBatch    AlertType = "stalled_batch"
)

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots and posts alerts to the webhook.
type Alerter struct {
	cfg    Config
	client *http.Client
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg Config) *Alerter {
	if cfg.MinLeadsForRate <= 0 {
		cfg.MinLeadsForRate = 20
	}
	return &Alerter{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// Evaluate returns the alerts the snapshot triggers.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	add := func(t AlertType, severity, msg string, details map[string]any) {
		alerts = append(alerts, Alert{Type: t, Severity: severity, Message: msg, Details: details, Timestamp: snap.CollectedAt})
	}

	if a.cfg.FailureRateThreshold > 0 && snap.LeadsProcessed >= a.cfg.MinLeadsForRate &&
		snap.FailRate > a.cfg.FailureRateThreshold {
		add(AlertLeadFailureRate, "high", fmt.Sprintf(
			"Lead failure rate %.1f%% exceeds %.1f%% (%d of %d leads in last %dh)",
			snap.FailRate*100, a.cfg.FailureRateThreshold*100, snap.LeadsFailed, snap.LeadsProcessed, snap.LookbackHours,
		), map[string]any{"fail_rate": snap.FailRate, "threshold": a.cfg.FailureRateThreshold})
	}

	if a.cfg.DLQDepthThreshold > 0 && snap.DLQDepth > a.cfg.DLQDepthThreshold {
		add(AlertDLQDepth, "medium", fmt.Sprintf(
			"%d dead-lettered lead steps (threshold %d)", snap.DLQDepth, a.cfg.DLQDepthThreshold,
		), map[string]any{"depth": snap.DLQDepth, "threshold": a.cfg.DLQDepthThreshold})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.EnrichmentCost > a.cfg.CostThresholdUSD {
		add(AlertCostOverrun, "high", fmt.Sprintf(
			"Enrichment spend $%.2f exceeds $%.2f in last %dh", snap.EnrichmentCost, a.cfg.CostThresholdUSD, snap.LookbackHours,
		), map[string]any{"cost_usd": snap.EnrichmentCost, "threshold_usd": a.cfg.CostThresholdUSD})
	}

	if len(snap.Stalled) > 0 {
		add(AlertStalledBatch, "medium", fmt.Sprintf(
			"%d batch(es) stuck in processing: %s", len(snap.Stalled), strings.Join(snap.Stalled, ", "),
		), map[string]any{"batch_ids": snap.Stalled})
	}
	return alerts
}

// SendAlerts posts each alert and returns how many were delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if !a.cfg.Enabled() {
		return 0
	}
	sent := 0
	for _, alert := range alerts {
		if err := a.post(ctx, alert); err != nil {
			zap.L().Error("monitoring: alert not delivered", zap.String("type", string(alert.Type)), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
