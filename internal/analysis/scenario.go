package analysis

import (
	"sort"

	"github.com/sells-group/procurement-signals/internal/aggregate"
	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/stats"
)

// ScenarioConsolidation labels the supplier consolidation scenario.
const ScenarioConsolidation = "Consolidation"

// consolidationSavings is the saving applied to each spend cluster, largest
// cluster first.
var consolidationSavings = []float64{0.08, 0.05, 0.02}

// runScenarios shifts annual spend by each scenario's percentage,
// reclassifies every row and reports the headline compliance metrics against
// the unshifted baseline.
func runScenarios(annual []model.ContractSummaryRecord, scenarios []config.ScenarioConfig) []model.ScenarioRecord {
	base := countCompliance(annual)

	var out []model.ScenarioRecord
	for _, sc := range scenarios {
		projected := countCompliance(aggregate.Reclassify(annual, sc.SpendShiftPct))
		metrics := []struct {
			name            string
			baseline, after float64
		}{
			{KPITotalSpend, base.totalSpend, projected.totalSpend},
			{KPIWithinBoundsRows, float64(base.within), float64(projected.within)},
			{KPIOverUpperRows, float64(base.over), float64(projected.over)},
			{KPIUnderLowerRows, float64(base.under), float64(projected.under)},
			{KPIContractMismatchRows, float64(base.mismatch), float64(projected.mismatch)},
			{KPINonCompliantContracts, float64(base.nonCompliant), float64(projected.nonCompliant)},
		}
		for _, m := range metrics {
			out = append(out, model.ScenarioRecord{
				Scenario:       sc.Label,
				SpendShiftPct:  sc.SpendShiftPct,
				Metric:         m.name,
				BaselineValue:  m.baseline,
				ProjectedValue: m.after,
				Delta:          stats.Round(m.after-m.baseline, 2),
			})
		}
	}
	return out
}

// consolidation clusters providers by total monthly spend into three groups
// and applies the tiered savings. With fewer than three providers no saving
// is projected.
func consolidation(monthly []model.ContractSummaryRecord) model.ScenarioRecord {
	byProvider := make(map[string]float64)
	for _, r := range monthly {
		byProvider[r.Provider] += r.TotalSpend
	}
	names := make([]string, 0, len(byProvider))
	for p := range byProvider {
		names = append(names, p)
	}
	sort.Strings(names)

	spend := make([]float64, len(names))
	baseline := 0.0
	for i, p := range names {
		spend[i] = byProvider[p]
		baseline += spend[i]
	}

	projected := baseline
	if len(names) >= len(consolidationSavings) {
		projected = 0
		for i, c := range kmeans1D(spend, len(consolidationSavings)) {
			projected += spend[i] * (1 - consolidationSavings[c])
		}
	}

	baseline = stats.Round(baseline, 2)
	projected = stats.Round(projected, 2)
	shift := 0.0
	if baseline > 0 {
		shift = stats.Round((projected-baseline)/baseline*100, 4)
	}
	return model.ScenarioRecord{
		Scenario:       ScenarioConsolidation,
		SpendShiftPct:  shift,
		Metric:         KPITotalSpend,
		BaselineValue:  baseline,
		ProjectedValue: projected,
		Delta:          stats.Round(projected-baseline, 2),
	}
}
