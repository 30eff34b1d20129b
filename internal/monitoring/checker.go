package monitoring

import (
	"context"

	"go.uber.org/zap"
)

// Check evaluates snap and delivers any alerts. It returns the alerts raised
// and how many were delivered.
func (a *Alerter) Check(ctx context.Context, snap RunSnapshot) ([]Alert, int) {
	log := zap.L().With(zap.String("component", "monitoring"), zap.String("run_id", snap.RunID))

	alerts := a.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return nil, 0
	}
	for _, al := range alerts {
		log.Warn("monitoring: alert raised",
			zap.String("type", string(al.Type)),
			zap.String("message", al.Message),
		)
	}

	sent := a.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts, sent
}
