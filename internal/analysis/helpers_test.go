package analysis

import (
	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
)

var (
	acme  = model.ContractKey{Provider: "AcmeCo", ContractTitle: "Supply Deal", ContractNumber: "C-100"}
	beta  = model.ContractKey{Provider: "Beta", ContractTitle: "Cleaning", ContractNumber: "B-7"}
	gamma = model.ContractKey{Provider: "Gamma", ContractTitle: "Audit", ContractNumber: "G-1"}
)

func ptr(v float64) *float64 { return &v }

func testConfig() config.AnalysisConfig {
	return config.Default().Analysis
}

func annualRow(k model.ContractKey, year int, spend float64, count int, flag model.ComplianceFlag) model.ContractSummaryRecord {
	return model.ContractSummaryRecord{
		ContractKey:      k,
		Period:           model.PeriodLabel(year, 0),
		Year:             year,
		TotalSpend:       spend,
		TransactionCount: count,
		ComplianceFlag:   flag,
	}
}

func monthlyRow(k model.ContractKey, year, month int, spend float64) model.ContractSummaryRecord {
	return model.ContractSummaryRecord{
		ContractKey:      k,
		Period:           model.PeriodLabel(year, month),
		Year:             year,
		Month:            month,
		TotalSpend:       spend,
		TransactionCount: 1,
		ComplianceFlag:   model.FlagContractMismatch,
	}
}

func withBounds(r model.ContractSummaryRecord, upper, lower float64) model.ContractSummaryRecord {
	r.UpperBound = ptr(upper)
	r.LowerBound = ptr(lower)
	return r
}
