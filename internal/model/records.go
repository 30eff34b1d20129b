package model

import "fmt"

// RiskLevel selects whether risk is scored per contract or per provider.
type RiskLevel string

const (
	RiskLevelContract RiskLevel = "contract"
	RiskLevelProvider RiskLevel = "provider"
)

// RiskBand buckets a composite score for reporting.
type RiskBand string

const (
	RiskBandLow    RiskBand = "Low"
	RiskBandMedium RiskBand = "Medium"
	RiskBandHigh   RiskBand = "High"
)

// RiskScoreRecord is the scored risk for one contract (or provider). All
// scores are in [0,100]; higher is healthier.
type RiskScoreRecord struct {
	ContractKey
	Level            RiskLevel `csv:"level"`
	TransactionCount int       `csv:"transaction_count"`
	RejectedCount    int       `csv:"rejected_count"`
	QualityScore     float64   `csv:"quality_score"`
	ComplianceScore  float64   `csv:"compliance_score"`
	AnomalyScore     float64   `csv:"anomaly_score"`
	CompositeScore   float64   `csv:"composite_score"`
	RiskBand         RiskBand  `csv:"risk_band"`
	LowConfidence    bool      `csv:"low_confidence"`
}

// Granularity is the period size of a summary or forecast.
type Granularity string

const (
	Annual  Granularity = "annual"
	Monthly Granularity = "monthly"
)

// PeriodLabel renders an annual ("2025") or monthly ("2025-03") period.
func PeriodLabel(year, month int) string {
	if month == 0 {
		return fmt.Sprintf("%04d", year)
	}
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ContractSummaryRecord is the spend of one contract in one period.
type ContractSummaryRecord struct {
	ContractKey
	Period           string         `csv:"period"`
	Year             int            `csv:"year"`
	Month            int            `csv:"month"`
	TotalSpend       float64        `csv:"total_spend"`
	TransactionCount int            `csv:"transaction_count"`
	UpperBound       *float64       `csv:"contract_upper_bound"`
	LowerBound       *float64       `csv:"contract_lower_bound"`
	ComplianceFlag   ComplianceFlag `csv:"compliance_flag"`
}

// AggregateKey marks forecasts over the whole portfolio.
const AggregateKey = "ALL"

// ForecastRecord is a projected spend for one key and future period.
type ForecastRecord struct {
	ContractKey
	Granularity    Granularity `csv:"granularity"`
	Period         string      `csv:"period"`
	ForecastValue  float64     `csv:"forecast_value"`
	LowerCI        float64     `csv:"lower_ci"`
	UpperCI        float64     `csv:"upper_ci"`
	MethodUsed     string      `csv:"method_used"`
	HistoryPeriods int         `csv:"history_periods"`
}

// KPIRecord is one portfolio-level metric.
type KPIRecord struct {
	Metric string  `csv:"metric"`
	Value  float64 `csv:"value"`
	Period string  `csv:"period"`
}

// ScenarioRecord compares one metric under a scenario to the baseline.
type ScenarioRecord struct {
	Scenario       string  `csv:"scenario"`
	SpendShiftPct  float64 `csv:"spend_shift_pct"`
	Metric         string  `csv:"metric"`
	BaselineValue  float64 `csv:"baseline_value"`
	ProjectedValue float64 `csv:"projected_value"`
	Delta          float64 `csv:"delta"`
}

// DiagnosticKind classifies a non-fatal note emitted by a stage.
type DiagnosticKind string

const (
	DiagInsufficientData   DiagnosticKind = "InsufficientData"
	DiagMissingRiskScore   DiagnosticKind = "MissingRiskScore"
	DiagMissingSummary     DiagnosticKind = "MissingSummary"
	DiagBoundsInconsistent DiagnosticKind = "BoundsInconsistent"
)

// Diagnostic is a non-fatal note about a key that was excluded or degraded.
type Diagnostic struct {
	Stage   string         `csv:"stage"`
	Key     string         `csv:"key"`
	Kind    DiagnosticKind `csv:"kind"`
	Message string         `csv:"message"`
}
