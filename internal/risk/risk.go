// Package risk scores each contract (or provider) on data quality, contract
// compliance and amount anomalies, and combines them into a composite health
// score in [0,100]. Higher is healthier.
package risk

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/stats"
)

// Input is the cleaner's output as read back from disk.
type Input struct {
	Cleaned    []model.CleanedTransaction
	Rejections []model.Rejection
}

type group struct {
	key      model.ContractKey
	txns     []model.CleanedTransaction
	rejected int
}

type contractYear struct {
	key  model.ContractKey
	year int
}

// Score produces one RiskScoreRecord per key, sorted by key. The key is the
// full ContractKey at contract level, or the provider alone at provider
// level.
func Score(in Input, bounds model.BoundsTable, cfg config.RiskConfig) ([]model.RiskScoreRecord, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	level := model.RiskLevel(cfg.Level)

	groups := make(map[model.ContractKey]*group)
	for _, t := range in.Cleaned {
		k := groupKey(t.ContractKey, level)
		g, ok := groups[k]
		if !ok {
			g = &group{key: k}
			groups[k] = g
		}
		g.txns = append(g.txns, t)
	}

	unmatched := 0
	for _, r := range in.Rejections {
		if !r.Attributable() {
			continue
		}
		if g, ok := groups[groupKey(r.ContractKey, level)]; ok {
			g.rejected++
		} else {
			unmatched++
		}
	}

	keys := make([]model.ContractKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]model.RiskScoreRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, scoreGroup(groups[k], level, bounds, cfg))
	}

	zap.L().Info("risk: scoring complete",
		zap.String("level", cfg.Level),
		zap.Int("keys", len(out)),
		zap.Int("rejections_without_key", unmatched),
	)
	return out, nil
}

func groupKey(k model.ContractKey, level model.RiskLevel) model.ContractKey {
	if level == model.RiskLevelProvider {
		return model.ContractKey{Provider: k.Provider}
	}
	return k
}

func scoreGroup(g *group, level model.RiskLevel, bounds model.BoundsTable, cfg config.RiskConfig) model.RiskScoreRecord {
	amounts := make([]float64, len(g.txns))
	modified := 0
	spend := make(map[contractYear]float64)
	for i, t := range g.txns {
		amounts[i] = t.Amount
		modified += len(t.ModifiedFields)
		spend[contractYear{t.ContractKey, t.Year}] += t.Amount
	}

	quality := qualityScore(len(g.txns), g.rejected, modified, cfg)
	compliance := complianceScore(spend, g.txns, bounds, cfg)
	anomaly := anomalyScore(amounts, cfg)
	comp := composite(quality, compliance, anomaly, cfg.Weights)

	return model.RiskScoreRecord{
		ContractKey:      g.key,
		Level:            level,
		TransactionCount: len(g.txns),
		RejectedCount:    g.rejected,
		QualityScore:     stats.Round(quality, 2),
		ComplianceScore:  stats.Round(compliance, 2),
		AnomalyScore:     stats.Round(anomaly, 2),
		CompositeScore:   stats.Round(comp, 2),
		RiskBand:         Band(comp, cfg),
		LowConfidence:    len(g.txns) < cfg.MinTransactions,
	}
}

// complianceScore averages the per-year scores of every contract-year in the
// group, then subtracts the expiry penalties.
func complianceScore(spend map[contractYear]float64, txns []model.CleanedTransaction, bounds model.BoundsTable, cfg config.RiskConfig) float64 {
	cys := make([]contractYear, 0, len(spend))
	for cy := range spend {
		cys = append(cys, cy)
	}
	sort.Slice(cys, func(i, j int) bool {
		if cys[i].key != cys[j].key {
			return cys[i].key.Less(cys[j].key)
		}
		return cys[i].year < cys[j].year
	})

	scores := make([]float64, len(cys))
	for i, cy := range cys {
		b, _ := bounds.Lookup(cy.key)
		scores[i] = yearCompliance(spend[cy], b, cfg)
	}
	score := stats.Mean(scores)

	expired, soon := expiryShares(txns, bounds, cfg.ExpiringSoonDays)
	score -= cfg.ExpiredPenalty*expired + cfg.ExpiringSoonPenalty*soon
	return stats.Clamp(score, 0, 100)
}
