package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/stats"
)

// Forecast methods.
const (
	MethodLinearTrend   = "linear_trend"
	MethodMovingAverage = "moving_average"
)

// series is a contiguous run of period totals from the first to the last
// observed period. Periods with no rows are zero.
type series struct {
	key      model.ContractKey
	start    int // period index of values[0]
	values   []float64
	observed int
}

// periodIndex maps a summary row onto a monotonically increasing integer:
// the year for annual rows, year*12+month-1 for monthly rows.
func periodIndex(g model.Granularity, year, month int) int {
	if g == model.Monthly {
		return year*12 + month - 1
	}
	return year
}

func periodFromIndex(g model.Granularity, idx int) string {
	if g == model.Monthly {
		return model.PeriodLabel(idx/12, idx%12+1)
	}
	return model.PeriodLabel(idx, 0)
}

// buildSeries groups rows by key into gap-filled series sorted by key.
func buildSeries(rows []model.ContractSummaryRecord, g model.Granularity, keyOf func(model.ContractKey) model.ContractKey) []series {
	type acc struct {
		spend    map[int]float64
		min, max int
	}
	byKey := make(map[model.ContractKey]*acc)
	for _, r := range rows {
		k := keyOf(r.ContractKey)
		idx := periodIndex(g, r.Year, r.Month)
		a, ok := byKey[k]
		if !ok {
			a = &acc{spend: make(map[int]float64), min: idx, max: idx}
			byKey[k] = a
		}
		a.spend[idx] += r.TotalSpend
		a.min = min(a.min, idx)
		a.max = max(a.max, idx)
	}

	keys := make([]model.ContractKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]series, 0, len(keys))
	for _, k := range keys {
		a := byKey[k]
		s := series{key: k, start: a.min, observed: len(a.spend), values: make([]float64, a.max-a.min+1)}
		for idx, v := range a.spend {
			s.values[idx-a.min] = v
		}
		out = append(out, s)
	}
	return out
}

// projection is one forecast step.
type projection struct {
	value, lower, upper float64
}

// project extends values horizon steps with the configured method. Values
// and lower bounds are floored at zero.
func project(values []float64, horizon int, cfg config.AnalysisConfig) []projection {
	out := make([]projection, horizon)
	n := len(values)

	switch cfg.Method {
	case MethodMovingAverage:
		w := min(cfg.MovingAverageWindow, n)
		window := values[n-w:]
		m := stats.Mean(window)
		ci := cfg.ConfidenceZ * stats.StdDev(window)
		for h := range out {
			out[h] = bounded(m, ci)
		}
	default:
		fit := stats.LinearFit(values)
		se := fit.ResidualSE
		if n == 2 {
			// Two points fit exactly; use their spread instead.
			se = stats.StdDev(values)
		}
		ci := cfg.ConfidenceZ * se
		for h := range out {
			out[h] = bounded(fit.At(float64(n-1+h+1)), ci)
		}
	}
	return out
}

func bounded(v, ci float64) projection {
	return projection{
		value: stats.Round(math.Max(0, v), 2),
		lower: stats.Round(math.Max(0, v-ci), 2),
		upper: stats.Round(math.Max(0, v+ci), 2),
	}
}

// forecastSeries turns eligible series into forecast records and ineligible
// ones into InsufficientData diagnostics.
func forecastSeries(all []series, g model.Granularity, minPeriods, horizon int, cfg config.AnalysisConfig) ([]model.ForecastRecord, []model.Diagnostic) {
	var (
		recs  []model.ForecastRecord
		diags []model.Diagnostic
	)
	for _, s := range all {
		if s.observed < minPeriods {
			err := &model.InsufficientDataError{Key: keyLabel(s.key), Periods: s.observed, Required: minPeriods}
			diags = append(diags, model.Diagnostic{
				Stage:   stageName,
				Key:     keyLabel(s.key),
				Kind:    model.DiagInsufficientData,
				Message: fmt.Sprintf("%s forecast skipped: %s", g, err.Error()),
			})
			continue
		}
		last := s.start + len(s.values) - 1
		for h, p := range project(s.values, horizon, cfg) {
			recs = append(recs, model.ForecastRecord{
				ContractKey:    s.key,
				Granularity:    g,
				Period:         periodFromIndex(g, last+h+1),
				ForecastValue:  p.value,
				LowerCI:        p.lower,
				UpperCI:        p.upper,
				MethodUsed:     cfg.Method,
				HistoryPeriods: len(s.values),
			})
		}
	}
	return recs, diags
}

func keyLabel(k model.ContractKey) string {
	if k == (model.ContractKey{Provider: model.AggregateKey}) {
		return model.AggregateKey
	}
	return k.String()
}
