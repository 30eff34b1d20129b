package monitoring

import (
	"time"

	"github.com/sells-group/procurement-signals/internal/analysis"
	"github.com/sells-group/procurement-signals/internal/model"
)

// RunSnapshot is the outcome of one pipeline run as seen by the alerter.
type RunSnapshot struct {
	RunID                 string    `json:"run_id"`
	FailedStage           string    `json:"failed_stage,omitempty"`
	Error                 string    `json:"error,omitempty"`
	RejectionRate         float64   `json:"rejection_rate"`
	ContractCount         int       `json:"contract_count"`
	NonCompliantContracts int       `json:"noncompliant_contracts"`
	HighRiskKeys          int       `json:"high_risk_keys"`
	CollectedAt           time.Time `json:"collected_at"`
}

// NoncompliantShare is the fraction of contracts with at least one period
// outside their bounds.
func (s RunSnapshot) NoncompliantShare() float64 {
	if s.ContractCount == 0 {
		return 0
	}
	return float64(s.NonCompliantContracts) / float64(s.ContractCount)
}

// Collect builds a snapshot from the analyzer's KPI records. Unknown metrics
// are ignored; missing ones stay zero.
func Collect(runID string, kpis []model.KPIRecord) RunSnapshot {
	snap := RunSnapshot{RunID: runID, CollectedAt: time.Now().UTC()}
	for _, k := range kpis {
		switch k.Metric {
		case analysis.KPIRejectionRate:
			snap.RejectionRate = k.Value
		case analysis.KPIContractCount:
			snap.ContractCount = int(k.Value)
		case analysis.KPINonCompliantContracts:
			snap.NonCompliantContracts = int(k.Value)
		case analysis.KPIHighRiskKeys:
			snap.HighRiskKeys = int(k.Value)
		}
	}
	return snap
}

// Failed builds a snapshot for a run that stopped at stage.
func Failed(runID, stage string, err error) RunSnapshot {
	snap := RunSnapshot{RunID: runID, FailedStage: stage, CollectedAt: time.Now().UTC()}
	if err != nil {
		snap.Error = err.Error()
	}
	return snap
}
