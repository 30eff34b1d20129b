// Package aggregate groups cleaned transactions by contract and period and
// classifies each period's spend against the contract's bounds.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/stats"
)

// Classify assigns a compliance flag. Missing or inverted bounds win over any
// spend comparison; spend equal to a bound is within bounds.
func Classify(spend float64, upper, lower *float64) model.ComplianceFlag {
	switch {
	case upper == nil || lower == nil || *upper < *lower:
		return model.FlagContractMismatch
	case spend > *upper:
		return model.FlagOverUpper
	case spend < *lower:
		return model.FlagUnderLower
	default:
		return model.FlagWithinBounds
	}
}

// Result holds the annual and monthly summaries, each sorted by key then
// period.
type Result struct {
	Annual  []model.ContractSummaryRecord
	Monthly []model.ContractSummaryRecord
}

type periodKey struct {
	key   model.ContractKey
	year  int
	month int
}

type bucket struct {
	spend float64
	count int
}

// Summarize sums spend per ContractKey per calendar year and per year-month.
// Only periods with at least one transaction produce a row. Monthly rows are
// compared against the annual bounds divided by MonthlyBoundDivisor.
func Summarize(txns []model.CleanedTransaction, bounds model.BoundsTable, cfg config.AggregateConfig) (Result, error) {
	if cfg.MonthlyBoundDivisor <= 0 {
		return Result{}, eris.New("aggregate: monthly_bound_divisor must be > 0")
	}

	annual := make(map[periodKey]*bucket)
	monthly := make(map[periodKey]*bucket)
	for _, t := range txns {
		add(annual, periodKey{key: t.ContractKey, year: t.Year}, t.Amount)
		add(monthly, periodKey{key: t.ContractKey, year: t.Year, month: t.Month}, t.Amount)
	}

	res := Result{
		Annual:  build(annual, bounds, 1),
		Monthly: build(monthly, bounds, cfg.MonthlyBoundDivisor),
	}

	mismatched := make(map[model.ContractKey]bool)
	for _, r := range res.Annual {
		if r.ComplianceFlag == model.FlagContractMismatch && !mismatched[r.ContractKey] {
			mismatched[r.ContractKey] = true
			if b, ok := bounds.Lookup(r.ContractKey); ok {
				zap.L().Warn("aggregate: contract bounds inconsistent",
					zap.Error(&model.ConfigurationError{Key: b.ContractKey, Reason: "bounds missing or upper < lower"}),
				)
			}
		}
	}

	zap.L().Info("aggregate: summaries built",
		zap.Int("annual_rows", len(res.Annual)),
		zap.Int("monthly_rows", len(res.Monthly)),
		zap.Int("mismatched_contracts", len(mismatched)),
	)
	return res, nil
}

func add(m map[periodKey]*bucket, k periodKey, amount float64) {
	b, ok := m[k]
	if !ok {
		b = &bucket{}
		m[k] = b
	}
	b.spend += amount
	b.count++
}

func build(m map[periodKey]*bucket, bounds model.BoundsTable, divisor float64) []model.ContractSummaryRecord {
	keys := make([]periodKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.key != b.key {
			return a.key.Less(b.key)
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.month < b.month
	})

	out := make([]model.ContractSummaryRecord, 0, len(keys))
	for _, k := range keys {
		b := m[k]
		spend := stats.Round(b.spend, 2)
		var upper, lower *float64
		if cb, ok := bounds.Lookup(k.key); ok {
			upper = scale(cb.UpperBound, divisor)
			lower = scale(cb.LowerBound, divisor)
		}
		out = append(out, model.ContractSummaryRecord{
			ContractKey:      k.key,
			Period:           model.PeriodLabel(k.year, k.month),
			Year:             k.year,
			Month:            k.month,
			TotalSpend:       spend,
			TransactionCount: b.count,
			UpperBound:       upper,
			LowerBound:       lower,
			ComplianceFlag:   Classify(spend, upper, lower),
		})
	}
	return out
}

func scale(v *float64, divisor float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v / divisor
	return &s
}

// Reclassify returns copies of rows with spend scaled by (1 + shiftPct/100)
// and flags recomputed. The input is not modified.
func Reclassify(rows []model.ContractSummaryRecord, shiftPct float64) []model.ContractSummaryRecord {
	factor := 1 + shiftPct/100
	out := make([]model.ContractSummaryRecord, len(rows))
	for i, r := range rows {
		r.TotalSpend *= factor
		r.ComplianceFlag = Classify(r.TotalSpend, r.UpperBound, r.LowerBound)
		out[i] = r
	}
	return out
}
