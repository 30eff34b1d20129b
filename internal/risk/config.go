package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
)

// weightTolerance is how far the weight sum may drift from 1.
const weightTolerance = 0.001

// ValidateConfig checks that a RiskConfig is internally consistent.
func ValidateConfig(c config.RiskConfig) error {
	var errs []string

	switch model.RiskLevel(c.Level) {
	case model.RiskLevelContract, model.RiskLevelProvider:
	default:
		errs = append(errs, fmt.Sprintf("level must be contract or provider, got %q", c.Level))
	}

	weights := []struct {
		name string
		v    float64
	}{
		{"quality", c.Weights.Quality},
		{"compliance", c.Weights.Compliance},
		{"anomaly", c.Weights.Anomaly},
	}
	for _, w := range weights {
		if w.v < 0 {
			errs = append(errs, fmt.Sprintf("weights.%s must be >= 0", w.name))
		}
	}
	if sum := c.Weights.Sum(); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1, got %.4f", sum))
	}
	if c.OutlierZ <= 0 {
		errs = append(errs, "outlier_z must be > 0")
	}
	if c.MediumBandThreshold > c.LowBandThreshold {
		errs = append(errs, "medium_band_threshold must be <= low_band_threshold")
	}

	if len(errs) > 0 {
		return eris.Errorf("risk: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Band maps a composite health score onto a reporting band.
func Band(composite float64, c config.RiskConfig) model.RiskBand {
	switch {
	case composite >= c.LowBandThreshold:
		return model.RiskBandLow
	case composite >= c.MediumBandThreshold:
		return model.RiskBandMedium
	default:
		return model.RiskBandHigh
	}
}
