package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-signals/internal/model"
)

func identity(k model.ContractKey) model.ContractKey { return k }

func TestBuildSeries_FillsGapsWithZero(t *testing.T) {
	rows := []model.ContractSummaryRecord{
		monthlyRow(acme, 2024, 11, 10),
		monthlyRow(acme, 2025, 2, 40),
		monthlyRow(beta, 2025, 1, 5),
	}

	all := buildSeries(rows, model.Monthly, identity)
	require.Len(t, all, 2)

	assert.Equal(t, acme, all[0].key)
	assert.Equal(t, []float64{10, 0, 0, 40}, all[0].values)
	assert.Equal(t, 2, all[0].observed)
	assert.Equal(t, "2024-11", periodFromIndex(model.Monthly, all[0].start))

	assert.Equal(t, beta, all[1].key)
	assert.Equal(t, []float64{5}, all[1].values)
}

func TestPeriodFromIndex(t *testing.T) {
	assert.Equal(t, "2025-12", periodFromIndex(model.Monthly, periodIndex(model.Monthly, 2025, 12)))
	assert.Equal(t, "2026-01", periodFromIndex(model.Monthly, periodIndex(model.Monthly, 2025, 12)+1))
	assert.Equal(t, "2026", periodFromIndex(model.Annual, periodIndex(model.Annual, 2025, 0)+1))
}

func TestProject_LinearTrend(t *testing.T) {
	cfg := testConfig()
	got := project([]float64{10, 20, 30}, 2, cfg)
	require.Len(t, got, 2)
	assert.InDelta(t, 40, got[0].value, 1e-9)
	assert.InDelta(t, 50, got[1].value, 1e-9)
	assert.Equal(t, got[0].value, got[0].lower, "perfect fit has no interval")
	assert.Equal(t, got[0].value, got[0].upper)
}

func TestProject_LinearTrendTwoPoints(t *testing.T) {
	cfg := testConfig()
	got := project([]float64{100, 200}, 1, cfg)
	require.Len(t, got, 1)
	assert.InDelta(t, 300, got[0].value, 1e-9)
	// 1.96 * sample stddev of {100, 200} = 1.96 * 70.71
	assert.InDelta(t, 161.41, got[0].lower, 0.01)
	assert.InDelta(t, 438.59, got[0].upper, 0.01)
}

func TestProject_FloorsAtZero(t *testing.T) {
	cfg := testConfig()
	for _, p := range project([]float64{30, 20, 10}, 3, cfg) {
		assert.GreaterOrEqual(t, p.value, 0.0)
		assert.GreaterOrEqual(t, p.lower, 0.0)
		assert.LessOrEqual(t, p.lower, p.value)
		assert.LessOrEqual(t, p.value, p.upper)
	}
}

func TestProject_IntervalOrdering(t *testing.T) {
	cfg := testConfig()
	for _, p := range project([]float64{100, 140, 90, 160, 120}, 4, cfg) {
		assert.LessOrEqual(t, p.lower, p.value)
		assert.LessOrEqual(t, p.value, p.upper)
		assert.Greater(t, p.upper, p.lower)
	}
}

func TestProject_MovingAverage(t *testing.T) {
	cfg := testConfig()
	cfg.Method = MethodMovingAverage
	cfg.MovingAverageWindow = 3

	got := project([]float64{1, 2, 3, 4, 5, 6}, 2, cfg)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.InDelta(t, 5, p.value, 1e-9)
		assert.InDelta(t, 3.04, p.lower, 1e-9)
		assert.InDelta(t, 6.96, p.upper, 1e-9)
	}

	// Window larger than the history uses all of it.
	short := project([]float64{4, 6}, 1, cfg)
	assert.InDelta(t, 5, short[0].value, 1e-9)
}

func TestForecastSeries_InsufficientHistory(t *testing.T) {
	cfg := testConfig()
	rows := []model.ContractSummaryRecord{
		monthlyRow(acme, 2025, 1, 10),
		monthlyRow(acme, 2025, 5, 10),
	}

	recs, diags := forecastSeries(buildSeries(rows, model.Monthly, identity), model.Monthly, 3, 12, cfg)
	assert.Empty(t, recs)
	require.Len(t, diags, 1)
	assert.Equal(t, model.DiagInsufficientData, diags[0].Kind)
	assert.Equal(t, acme.String(), diags[0].Key)
	assert.Contains(t, diags[0].Message, "2 periods, need 3")
}

func TestForecastSeries_Annual(t *testing.T) {
	cfg := testConfig()
	rows := []model.ContractSummaryRecord{
		annualRow(acme, 2023, 100, 1, model.FlagWithinBounds),
		annualRow(acme, 2024, 200, 1, model.FlagWithinBounds),
	}

	recs, diags := forecastSeries(buildSeries(rows, model.Annual, identity), model.Annual, 2, 1, cfg)
	assert.Empty(t, diags)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, acme, r.ContractKey)
	assert.Equal(t, model.Annual, r.Granularity)
	assert.Equal(t, "2025", r.Period)
	assert.InDelta(t, 300, r.ForecastValue, 1e-9)
	assert.Equal(t, MethodLinearTrend, r.MethodUsed)
	assert.Equal(t, 2, r.HistoryPeriods)
}
