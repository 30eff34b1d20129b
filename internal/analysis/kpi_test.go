package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-signals/internal/model"
)

func kpiMap(recs []model.KPIRecord) map[string]float64 {
	m := make(map[string]float64, len(recs))
	for _, r := range recs {
		m[r.Metric] = r.Value
	}
	return m
}

func TestComputeKPIs(t *testing.T) {
	in := Input{
		Annual: []model.ContractSummaryRecord{
			annualRow(acme, 2024, 120000, 3, model.FlagOverUpper),
			annualRow(acme, 2025, 100000, 2, model.FlagWithinBounds),
			annualRow(beta, 2025, 10, 1, model.FlagContractMismatch),
		},
		Monthly: []model.ContractSummaryRecord{
			monthlyRow(acme, 2024, 3, 10),
			monthlyRow(acme, 2025, 3, 20),
			monthlyRow(beta, 2025, 4, 5),
		},
		Risk: []model.RiskScoreRecord{
			{ContractKey: acme, Level: model.RiskLevelContract, CompositeScore: 80, RiskBand: model.RiskBandLow},
			{ContractKey: beta, Level: model.RiskLevelContract, CompositeScore: 30, RiskBand: model.RiskBandHigh, LowConfidence: true},
		},
		RejectionCount: 4,
	}

	recs := computeKPIs(in)
	require.Len(t, recs, 13)
	for _, r := range recs {
		assert.Equal(t, "2024..2025", r.Period, r.Metric)
	}

	got := kpiMap(recs)
	assert.InDelta(t, 220010, got[KPITotalSpend], 1e-9)
	assert.InDelta(t, 2, got[KPISupplierCount], 1e-9)
	assert.InDelta(t, 2, got[KPIContractCount], 1e-9)
	assert.InDelta(t, 2, got[KPINonCompliantContracts], 1e-9)
	assert.InDelta(t, 1, got[KPIOverUpperRows], 1e-9)
	assert.InDelta(t, 0, got[KPIUnderLowerRows], 1e-9)
	assert.InDelta(t, 1, got[KPIContractMismatchRows], 1e-9)
	assert.InDelta(t, 55, got[KPIAverageCompositeRisk], 1e-9)
	assert.InDelta(t, 1, got[KPIHighRiskKeys], 1e-9)
	assert.InDelta(t, 1, got[KPILowConfidenceKeys], 1e-9)
	assert.InDelta(t, 0.4, got[KPIRejectionRate], 1e-9)
	assert.InDelta(t, 0.5, got[KPIAvgSupplierStabilityScore], 1e-9)
	assert.InDelta(t, 0, got[KPIAnomalyRate], 1e-9)
}

func TestComputeKPIs_Empty(t *testing.T) {
	recs := computeKPIs(Input{})
	require.Len(t, recs, 13)
	for _, r := range recs {
		assert.Zero(t, r.Value, r.Metric)
		assert.Empty(t, r.Period)
	}
}

func TestAnomalyRate(t *testing.T) {
	var rows []model.ContractSummaryRecord
	for i, v := range []float64{10, 10, 10, 10, 1000} {
		rows = append(rows, monthlyRow(acme, 2025, i+1, v))
	}
	assert.InDelta(t, 0.2, anomalyRate(rows), 1e-9)
	assert.Zero(t, anomalyRate(nil))
}

func TestSupplierStability_AllFlat(t *testing.T) {
	rows := []model.ContractSummaryRecord{
		monthlyRow(acme, 2025, 1, 10),
		monthlyRow(acme, 2025, 2, 10),
		monthlyRow(beta, 2025, 1, 7),
	}
	assert.InDelta(t, 1, supplierStability(rows), 1e-9)
}

func TestReportingPeriod(t *testing.T) {
	assert.Equal(t, "2025", reportingPeriod([]model.ContractSummaryRecord{annualRow(acme, 2025, 1, 1, model.FlagWithinBounds)}))
	assert.Equal(t, "", reportingPeriod(nil))
}
