package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
)

func scenarioAnnual() []model.ContractSummaryRecord {
	return []model.ContractSummaryRecord{
		withBounds(annualRow(acme, 2025, 100, 2, model.FlagWithinBounds), 105, 50),
		withBounds(annualRow(beta, 2025, 55, 1, model.FlagWithinBounds), 200, 50),
		annualRow(gamma, 2025, 10, 1, model.FlagContractMismatch),
	}
}

func scenarioMetric(recs []model.ScenarioRecord, scenario, metric string) model.ScenarioRecord {
	for _, r := range recs {
		if r.Scenario == scenario && r.Metric == metric {
			return r
		}
	}
	return model.ScenarioRecord{}
}

func TestRunScenarios(t *testing.T) {
	annual := scenarioAnnual()
	recs := runScenarios(annual, []config.ScenarioConfig{
		{Label: "Baseline", SpendShiftPct: 0},
		{Label: "SpendUp10", SpendShiftPct: 10},
		{Label: "SpendDown10", SpendShiftPct: -10},
	})
	require.Len(t, recs, 18)

	tests := []struct {
		scenario, metric    string
		baseline, projected float64
	}{
		{"Baseline", KPITotalSpend, 165, 165},
		{"Baseline", KPIWithinBoundsRows, 2, 2},
		{"SpendUp10", KPITotalSpend, 165, 181.5},
		{"SpendUp10", KPIWithinBoundsRows, 2, 1},
		{"SpendUp10", KPIOverUpperRows, 0, 1},
		{"SpendUp10", KPIUnderLowerRows, 0, 0},
		{"SpendUp10", KPIContractMismatchRows, 1, 1},
		{"SpendUp10", KPINonCompliantContracts, 1, 2},
		{"SpendDown10", KPITotalSpend, 165, 148.5},
		{"SpendDown10", KPIWithinBoundsRows, 2, 1},
		{"SpendDown10", KPIUnderLowerRows, 0, 1},
		{"SpendDown10", KPIOverUpperRows, 0, 0},
		{"SpendDown10", KPINonCompliantContracts, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.scenario+"/"+tt.metric, func(t *testing.T) {
			r := scenarioMetric(recs, tt.scenario, tt.metric)
			assert.InDelta(t, tt.baseline, r.BaselineValue, 1e-9)
			assert.InDelta(t, tt.projected, r.ProjectedValue, 1e-9)
			assert.InDelta(t, tt.projected-tt.baseline, r.Delta, 1e-9)
		})
	}

	assert.Equal(t, scenarioAnnual(), annual, "baseline rows must not change")
}

func TestRunScenarios_None(t *testing.T) {
	assert.Empty(t, runScenarios(scenarioAnnual(), nil))
}

func TestConsolidation(t *testing.T) {
	var monthly []model.ContractSummaryRecord
	for _, p := range []struct {
		name  string
		spend float64
	}{{"A", 1000}, {"B", 100}, {"C", 101}, {"D", 1}, {"E", 2}} {
		monthly = append(monthly, monthlyRow(model.ContractKey{Provider: p.name, ContractTitle: "T", ContractNumber: "1"}, 2025, 1, p.spend))
	}

	r := consolidation(monthly)
	assert.Equal(t, ScenarioConsolidation, r.Scenario)
	assert.Equal(t, KPITotalSpend, r.Metric)
	assert.InDelta(t, 1204, r.BaselineValue, 1e-9)
	assert.InDelta(t, 1113.89, r.ProjectedValue, 1e-9)
	assert.InDelta(t, -90.11, r.Delta, 1e-9)
	assert.InDelta(t, -7.4842, r.SpendShiftPct, 1e-9)
}

func TestConsolidation_FewerThanThreeProviders(t *testing.T) {
	r := consolidation([]model.ContractSummaryRecord{
		monthlyRow(acme, 2025, 1, 100),
		monthlyRow(acme, 2025, 2, 20),
		monthlyRow(beta, 2025, 1, 30),
	})
	assert.InDelta(t, 150, r.BaselineValue, 1e-9)
	assert.InDelta(t, 150, r.ProjectedValue, 1e-9)
	assert.Zero(t, r.Delta)
	assert.Zero(t, r.SpendShiftPct)
}
