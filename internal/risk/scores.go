package risk

import (
	"math"
	"time"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/stats"
)

// neutralAnomaly is assigned when a group has too few points or no spread.
const neutralAnomaly = 50

// qualityScore is 100 × the kept share of the key's rows, less a penalty per
// field the cleaner had to normalise.
func qualityScore(kept, rejected, modifiedFields int, c config.RiskConfig) float64 {
	total := kept + rejected
	if total == 0 {
		return 0
	}
	score := 100 * (1 - float64(rejected)/float64(total))
	if kept > 0 {
		score -= c.ModifiedFieldPenalty * float64(modifiedFields) / float64(kept)
	}
	return stats.Clamp(score, 0, 100)
}

// yearCompliance scores one year of spend against annual bounds. Inside the
// bounds the score runs from 50 on a bound to 100 at the midpoint; outside it
// falls from 50 towards 0 with the relative excess.
func yearCompliance(spend float64, b model.ContractBounds, c config.RiskConfig) float64 {
	if !b.Consistent() {
		return c.MismatchComplianceScore
	}
	upper, lower := *b.UpperBound, *b.LowerBound

	switch {
	case spend > upper:
		excess := 1.0
		if upper > 0 {
			excess = (spend - upper) / upper
		}
		return stats.Clamp(50*(1-excess), 0, 50)
	case spend < lower:
		excess := (lower - spend) / lower
		return stats.Clamp(50*(1-excess), 0, 50)
	}

	half := (upper - lower) / 2
	if half == 0 {
		return 50
	}
	headroom := math.Min(spend-lower, upper-spend)
	return 50 + 50*headroom/half
}

// expiryShares returns the share of txns dated after their contract's expiry
// and the share dated within soonDays before it.
func expiryShares(txns []model.CleanedTransaction, bounds model.BoundsTable, soonDays int) (expired, soon float64) {
	if len(txns) == 0 {
		return 0, 0
	}
	var nExpired, nSoon int
	window := time.Duration(soonDays) * 24 * time.Hour
	for _, t := range txns {
		b, ok := bounds.Lookup(t.ContractKey)
		if !ok || b.ExpiryDate == nil {
			continue
		}
		d := t.TransactionDate.Time
		switch {
		case d.After(*b.ExpiryDate):
			nExpired++
		case b.ExpiryDate.Sub(d) <= window:
			nSoon++
		}
	}
	n := float64(len(txns))
	return float64(nExpired) / n, float64(nSoon) / n
}

// anomalyScore is 100 × the share of amounts that are not flagged. An amount
// is flagged when its z-score exceeds OutlierZ or it falls outside the
// absolute high/low thresholds.
func anomalyScore(amounts []float64, c config.RiskConfig) float64 {
	if len(amounts) < 2 {
		return neutralAnomaly
	}
	mean := stats.Mean(amounts)
	sd := stats.StdDev(amounts)
	if sd == 0 {
		return neutralAnomaly
	}

	flagged := 0
	for _, a := range amounts {
		z := math.Abs(a-mean) / sd
		if z > c.OutlierZ || a > c.HighAmountThreshold || a < c.LowAmountThreshold {
			flagged++
		}
	}
	return stats.Clamp(100*(1-float64(flagged)/float64(len(amounts))), 0, 100)
}

// composite combines the sub-scores with the configured weights.
func composite(quality, compliance, anomaly float64, w config.RiskWeights) float64 {
	return stats.Clamp(w.Quality*quality+w.Compliance*compliance+w.Anomaly*anomaly, 0, 100)
}
