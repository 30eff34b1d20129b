// Package monitoring evaluates a finished pipeline run against alert
// thresholds and delivers alerts to a webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStageFailure  AlertType = "stage_failure"
	AlertRejectionRate AlertType = "rejection_rate"
	AlertNoncompliance AlertType = "noncompliance"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	RunID     string         `json:"run_id"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a RunSnapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	retry   resilience.RetryConfig
	limiter *rate.Limiter
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	timeout := time.Duration(cfg.WebhookTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := resilience.DefaultRetryConfig().WithAttempts(cfg.WebhookMaxAttempts)
	retry.OnRetry = resilience.RetryLogger("monitoring.webhook")
	limit := rate.Inf
	if cfg.WebhookRatePerSec > 0 {
		limit = rate.Limit(cfg.WebhookRatePerSec)
	}
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap RunSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.FailedStage != "" {
		alerts = append(alerts, Alert{
			Type:     AlertStageFailure,
			Severity: "high",
			RunID:    snap.RunID,
			Message:  fmt.Sprintf("Stage %s failed: %s", snap.FailedStage, snap.Error),
			Details: map[string]any{
				"stage": snap.FailedStage,
				"error": snap.Error,
			},
			Timestamp: now,
		})
		// Later-stage metrics are stale when a stage fails.
		return alerts
	}

	if a.cfg.RejectionRateThreshold > 0 && snap.RejectionRate > a.cfg.RejectionRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRejectionRate,
			Severity: "medium",
			RunID:    snap.RunID,
			Message: fmt.Sprintf("Rejection rate %.1f%% exceeds threshold %.1f%%",
				snap.RejectionRate*100, a.cfg.RejectionRateThreshold*100),
			Details: map[string]any{
				"rejection_rate": snap.RejectionRate,
				"threshold":      a.cfg.RejectionRateThreshold,
			},
			Timestamp: now,
		})
	}

	if share := snap.NoncompliantShare(); a.cfg.NoncomplianceThreshold > 0 && share > a.cfg.NoncomplianceThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertNoncompliance,
			Severity: "medium",
			RunID:    snap.RunID,
			Message: fmt.Sprintf("%d of %d contracts are outside their bounds (%.1f%%, threshold %.1f%%)",
				snap.NonCompliantContracts, snap.ContractCount, share*100, a.cfg.NoncomplianceThreshold*100),
			Details: map[string]any{
				"noncompliant_contracts": snap.NonCompliantContracts,
				"contract_count":         snap.ContractCount,
				"threshold":              a.cfg.NoncomplianceThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "monitoring: rate limit wait")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	return eris.Wrap(resilience.CheckStatus(resp.StatusCode), "monitoring: webhook")
}
