// Package analysis turns contract summaries and risk scores into spend
// forecasts, portfolio KPIs and what-if scenarios.
package analysis

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
)

const stageName = "analyze"

// Input is everything the analyzer reads from earlier stages.
type Input struct {
	Annual         []model.ContractSummaryRecord
	Monthly        []model.ContractSummaryRecord
	Risk           []model.RiskScoreRecord
	RejectionCount int
}

// Output holds the analyzer's datasets.
type Output struct {
	MonthlyForecasts []model.ForecastRecord
	AnnualForecasts  []model.ForecastRecord
	KPIs             []model.KPIRecord
	Scenarios        []model.ScenarioRecord
	Diagnostics      []model.Diagnostic
}

// ValidateConfig checks the settings Analyze depends on.
func ValidateConfig(cfg config.AnalysisConfig) error {
	switch cfg.Method {
	case MethodLinearTrend, MethodMovingAverage:
	default:
		return eris.Errorf("analysis: unknown method %q", cfg.Method)
	}
	if cfg.MinMonthlyPeriods < 2 || cfg.MinAnnualPeriods < 2 {
		return eris.New("analysis: minimum history must be at least 2 periods")
	}
	if cfg.MonthlyHorizon < 1 || cfg.AnnualHorizon < 1 {
		return eris.New("analysis: horizons must be >= 1")
	}
	if cfg.Method == MethodMovingAverage && cfg.MovingAverageWindow < 1 {
		return eris.New("analysis: moving_average_window must be >= 1")
	}
	return nil
}

// Analyze computes forecasts, KPIs and scenarios. Inputs are never modified.
// Keys that appear in only one of the summaries and risk scores are left out
// of key-level forecasts and reported as diagnostics.
func Analyze(in Input, cfg config.AnalysisConfig) (Output, error) {
	if err := ValidateConfig(cfg); err != nil {
		return Output{}, err
	}
	log := zap.L().With(zap.String("stage", stageName))

	var out Output
	eligible, diags := reconcile(in)
	out.Diagnostics = append(out.Diagnostics, diags...)
	out.Diagnostics = append(out.Diagnostics, inconsistentBounds(in.Annual)...)

	keyOf := func(k model.ContractKey) model.ContractKey { return k }
	aggregateKey := func(model.ContractKey) model.ContractKey {
		return model.ContractKey{Provider: model.AggregateKey}
	}

	monthly := filterRows(in.Monthly, eligible)
	annual := filterRows(in.Annual, eligible)

	recs, d := forecastSeries(buildSeries(monthly, model.Monthly, keyOf), model.Monthly, cfg.MinMonthlyPeriods, cfg.MonthlyHorizon, cfg)
	out.MonthlyForecasts = append(out.MonthlyForecasts, recs...)
	out.Diagnostics = append(out.Diagnostics, d...)
	recs, d = forecastSeries(buildSeries(in.Monthly, model.Monthly, aggregateKey), model.Monthly, cfg.MinMonthlyPeriods, cfg.MonthlyHorizon, cfg)
	out.MonthlyForecasts = append(out.MonthlyForecasts, recs...)
	out.Diagnostics = append(out.Diagnostics, d...)

	recs, d = forecastSeries(buildSeries(annual, model.Annual, keyOf), model.Annual, cfg.MinAnnualPeriods, cfg.AnnualHorizon, cfg)
	out.AnnualForecasts = append(out.AnnualForecasts, recs...)
	out.Diagnostics = append(out.Diagnostics, d...)
	recs, d = forecastSeries(buildSeries(in.Annual, model.Annual, aggregateKey), model.Annual, cfg.MinAnnualPeriods, cfg.AnnualHorizon, cfg)
	out.AnnualForecasts = append(out.AnnualForecasts, recs...)
	out.Diagnostics = append(out.Diagnostics, d...)

	out.KPIs = computeKPIs(in)
	out.Scenarios = runScenarios(in.Annual, cfg.Scenarios)
	if cfg.Consolidation {
		out.Scenarios = append(out.Scenarios, consolidation(in.Monthly))
	}

	log.Info("analysis: complete",
		zap.Int("eligible_keys", len(eligible)),
		zap.Int("monthly_forecasts", len(out.MonthlyForecasts)),
		zap.Int("annual_forecasts", len(out.AnnualForecasts)),
		zap.Int("kpis", len(out.KPIs)),
		zap.Int("scenario_rows", len(out.Scenarios)),
		zap.Int("diagnostics", len(out.Diagnostics)),
	)
	return out, nil
}

// reconcile matches summary keys with risk keys. Risk records at provider
// level match every contract of that provider.
func reconcile(in Input) (map[model.ContractKey]bool, []model.Diagnostic) {
	summaryKeys := make(map[model.ContractKey]bool)
	summaryProviders := make(map[string]bool)
	for _, rows := range [][]model.ContractSummaryRecord{in.Annual, in.Monthly} {
		for _, r := range rows {
			summaryKeys[r.ContractKey] = true
			summaryProviders[r.Provider] = true
		}
	}

	riskKeys := make(map[model.ContractKey]bool)
	riskProviders := make(map[string]bool)
	for _, r := range in.Risk {
		if r.Level == model.RiskLevelProvider {
			riskProviders[r.Provider] = true
		} else {
			riskKeys[r.ContractKey] = true
		}
	}

	eligible := make(map[model.ContractKey]bool)
	var diags []model.Diagnostic
	for _, k := range sortedKeys(summaryKeys) {
		if riskKeys[k] || riskProviders[k.Provider] {
			eligible[k] = true
			continue
		}
		diags = append(diags, model.Diagnostic{
			Stage:   stageName,
			Key:     k.String(),
			Kind:    model.DiagMissingRiskScore,
			Message: "contract has spend summaries but no risk score; excluded from forecasts",
		})
	}

	for _, r := range in.Risk {
		matched := summaryKeys[r.ContractKey]
		if r.Level == model.RiskLevelProvider {
			matched = summaryProviders[r.Provider]
		}
		if !matched {
			diags = append(diags, model.Diagnostic{
				Stage:   stageName,
				Key:     r.ContractKey.String(),
				Kind:    model.DiagMissingSummary,
				Message: fmt.Sprintf("%s risk score has no spend summary", r.Level),
			})
		}
	}
	return eligible, diags
}

// inconsistentBounds reports each contract whose configured bounds are
// inverted, once.
func inconsistentBounds(annual []model.ContractSummaryRecord) []model.Diagnostic {
	seen := make(map[model.ContractKey]bool)
	var diags []model.Diagnostic
	for _, r := range annual {
		if r.UpperBound == nil || r.LowerBound == nil || *r.UpperBound >= *r.LowerBound || seen[r.ContractKey] {
			continue
		}
		seen[r.ContractKey] = true
		diags = append(diags, model.Diagnostic{
			Stage:   stageName,
			Key:     r.ContractKey.String(),
			Kind:    model.DiagBoundsInconsistent,
			Message: fmt.Sprintf("upper bound %g is below lower bound %g", *r.UpperBound, *r.LowerBound),
		})
	}
	return diags
}

func filterRows(rows []model.ContractSummaryRecord, keep map[model.ContractKey]bool) []model.ContractSummaryRecord {
	out := make([]model.ContractSummaryRecord, 0, len(rows))
	for _, r := range rows {
		if keep[r.ContractKey] {
			out = append(out, r)
		}
	}
	return out
}

func sortedKeys(m map[model.ContractKey]bool) []model.ContractKey {
	keys := make([]model.ContractKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
