package analysis

import (
	"sort"

	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/stats"
)

// KPI metric names.
const (
	KPITotalSpend                = "TotalSpend"
	KPISupplierCount             = "SupplierCount"
	KPIContractCount             = "ContractCount"
	KPINonCompliantContracts     = "NonCompliantContracts"
	KPIOverUpperRows             = "OverUpperRows"
	KPIUnderLowerRows            = "UnderLowerRows"
	KPIContractMismatchRows      = "ContractMismatchRows"
	KPIWithinBoundsRows          = "WithinBoundsRows"
	KPIAverageCompositeRisk      = "AverageCompositeRisk"
	KPIHighRiskKeys              = "HighRiskKeys"
	KPILowConfidenceKeys         = "LowConfidenceKeys"
	KPIRejectionRate             = "RejectionRate"
	KPIAvgSupplierStabilityScore = "AvgSupplierStabilityScore"
	KPIAnomalyRate               = "AnomalyRate"
)

// iqrMultiplier is the Tukey fence used for AnomalyRate.
const iqrMultiplier = 1.5

// complianceCounts tallies annual rows by flag and counts contracts with at
// least one row outside WithinBounds.
type complianceCounts struct {
	totalSpend   float64
	within       int
	over         int
	under        int
	mismatch     int
	nonCompliant int
}

func countCompliance(annual []model.ContractSummaryRecord) complianceCounts {
	var c complianceCounts
	bad := make(map[model.ContractKey]bool)
	for _, r := range annual {
		c.totalSpend += r.TotalSpend
		switch r.ComplianceFlag {
		case model.FlagWithinBounds:
			c.within++
		case model.FlagOverUpper:
			c.over++
		case model.FlagUnderLower:
			c.under++
		default:
			c.mismatch++
		}
		if r.ComplianceFlag != model.FlagWithinBounds {
			bad[r.ContractKey] = true
		}
	}
	c.totalSpend = stats.Round(c.totalSpend, 2)
	c.nonCompliant = len(bad)
	return c
}

// reportingPeriod renders the span of annual periods as "first..last".
func reportingPeriod(annual []model.ContractSummaryRecord) string {
	if len(annual) == 0 {
		return ""
	}
	first, last := annual[0].Year, annual[0].Year
	for _, r := range annual {
		first = min(first, r.Year)
		last = max(last, r.Year)
	}
	if first == last {
		return model.PeriodLabel(first, 0)
	}
	return model.PeriodLabel(first, 0) + ".." + model.PeriodLabel(last, 0)
}

func computeKPIs(in Input) []model.KPIRecord {
	period := reportingPeriod(in.Annual)
	cc := countCompliance(in.Annual)

	providers := make(map[string]bool)
	contracts := make(map[model.ContractKey]bool)
	txnCount := 0
	for _, r := range in.Annual {
		providers[r.Provider] = true
		contracts[r.ContractKey] = true
		txnCount += r.TransactionCount
	}

	composites := make([]float64, 0, len(in.Risk))
	high, lowConf := 0, 0
	for _, r := range in.Risk {
		composites = append(composites, r.CompositeScore)
		if r.RiskBand == model.RiskBandHigh {
			high++
		}
		if r.LowConfidence {
			lowConf++
		}
	}

	rejectionRate := 0.0
	if denom := in.RejectionCount + txnCount; denom > 0 {
		rejectionRate = float64(in.RejectionCount) / float64(denom)
	}

	metrics := []struct {
		name  string
		value float64
	}{
		{KPITotalSpend, cc.totalSpend},
		{KPISupplierCount, float64(len(providers))},
		{KPIContractCount, float64(len(contracts))},
		{KPINonCompliantContracts, float64(cc.nonCompliant)},
		{KPIOverUpperRows, float64(cc.over)},
		{KPIUnderLowerRows, float64(cc.under)},
		{KPIContractMismatchRows, float64(cc.mismatch)},
		{KPIAverageCompositeRisk, stats.Mean(composites)},
		{KPIHighRiskKeys, float64(high)},
		{KPILowConfidenceKeys, float64(lowConf)},
		{KPIRejectionRate, rejectionRate},
		{KPIAvgSupplierStabilityScore, supplierStability(in.Monthly)},
		{KPIAnomalyRate, anomalyRate(in.Monthly)},
	}

	out := make([]model.KPIRecord, len(metrics))
	for i, m := range metrics {
		out[i] = model.KPIRecord{Metric: m.name, Value: stats.Round(m.value, 4), Period: period}
	}
	return out
}

// supplierStability is the mean over providers of 1 − std/max std, where std
// is the spread of the provider's monthly spend rows. A provider with a
// single row has zero spread.
func supplierStability(monthly []model.ContractSummaryRecord) float64 {
	byProvider := make(map[string][]float64)
	for _, r := range monthly {
		byProvider[r.Provider] = append(byProvider[r.Provider], r.TotalSpend)
	}
	if len(byProvider) == 0 {
		return 0
	}

	names := make([]string, 0, len(byProvider))
	for p := range byProvider {
		names = append(names, p)
	}
	sort.Strings(names)

	stds := make([]float64, len(names))
	maxStd := 0.0
	for i, p := range names {
		v := byProvider[p]
		stds[i] = stats.StdDev(v)
		maxStd = max(maxStd, stds[i])
	}
	if maxStd <= 0 {
		maxStd = 1
	}

	scores := make([]float64, len(stds))
	for i, s := range stds {
		scores[i] = 1 - s/maxStd
	}
	return stats.Mean(scores)
}

// anomalyRate is the share of monthly rows outside the Tukey fences.
func anomalyRate(monthly []model.ContractSummaryRecord) float64 {
	if len(monthly) == 0 {
		return 0
	}
	values := make([]float64, len(monthly))
	for i, r := range monthly {
		values[i] = r.TotalSpend
	}
	q1 := stats.Quantile(values, 0.25)
	q3 := stats.Quantile(values, 0.75)
	iqr := q3 - q1
	lo, hi := q1-iqrMultiplier*iqr, q3+iqrMultiplier*iqr

	outliers := 0
	for _, v := range values {
		if v < lo || v > hi {
			outliers++
		}
	}
	return float64(outliers) / float64(len(values))
}
