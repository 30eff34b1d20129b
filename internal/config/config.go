package config

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Cleaner    CleanerConfig    `yaml:"cleaner" mapstructure:"cleaner"`
	Risk       RiskConfig       `yaml:"risk" mapstructure:"risk"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the stage inputs and outputs. Output file names are
// fixed; only the directory moves.
type PathsConfig struct {
	DataDir         string `yaml:"data_dir" mapstructure:"data_dir"`
	RawTransactions string `yaml:"raw_transactions" mapstructure:"raw_transactions"`
	Contracts       string `yaml:"contracts" mapstructure:"contracts"`
}

// Well-known output file names inside PathsConfig.DataDir.
const (
	CleanedFile         = "cleaned_transactions.csv"
	RejectionsFile      = "rejections.csv"
	RiskScoresFile      = "risk_scores.csv"
	AnnualSummaryFile   = "annual_summary.csv"
	MonthlySummaryFile  = "monthly_summary.csv"
	MonthlyForecastFile = "monthly_forecast.csv"
	AnnualForecastFile  = "annual_forecast.csv"
	KPIsFile            = "kpis.csv"
	ScenarioFile        = "scenario_model.csv"
	DiagnosticsFile     = "analysis_diagnostics.csv"
)

// Output returns the path of a well-known output file.
func (p PathsConfig) Output(name string) string {
	return filepath.Join(p.DataDir, name)
}

// CleanerConfig configures row validation and normalisation.
type CleanerConfig struct {
	MinDate                string             `yaml:"min_date" mapstructure:"min_date"`
	MaxDate                string             `yaml:"max_date" mapstructure:"max_date"`
	BaseCurrency           string             `yaml:"base_currency" mapstructure:"base_currency"`
	FXRates                map[string]float64 `yaml:"fx_rates" mapstructure:"fx_rates"`
	ProviderMatchThreshold float64            `yaml:"provider_match_threshold" mapstructure:"provider_match_threshold"`
}

// DateRange parses MinDate and MaxDate.
func (c CleanerConfig) DateRange() (time.Time, time.Time, error) {
	minDate, err := time.Parse("2006-01-02", c.MinDate)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "config: parse cleaner.min_date")
	}
	maxDate, err := time.Parse("2006-01-02", c.MaxDate)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "config: parse cleaner.max_date")
	}
	return minDate, maxDate, nil
}

// Rate returns the conversion rate for a currency code into the base currency.
// Viper lower-cases map keys, so lookups are case-insensitive.
func (c CleanerConfig) Rate(code string) (float64, bool) {
	if strings.EqualFold(code, c.BaseCurrency) {
		return 1, true
	}
	for k, v := range c.FXRates {
		if strings.EqualFold(k, code) {
			return v, true
		}
	}
	return 0, false
}

// RiskWeights are the composite score weights. They must sum to 1.
type RiskWeights struct {
	Quality    float64 `yaml:"quality" mapstructure:"quality"`
	Compliance float64 `yaml:"compliance" mapstructure:"compliance"`
	Anomaly    float64 `yaml:"anomaly" mapstructure:"anomaly"`
}

// Sum returns the total of all weights.
func (w RiskWeights) Sum() float64 {
	return w.Quality + w.Compliance + w.Anomaly
}

// RiskConfig configures the risk scorer.
type RiskConfig struct {
	Level                   string      `yaml:"level" mapstructure:"level"`
	Weights                 RiskWeights `yaml:"weights" mapstructure:"weights"`
	MinTransactions         int         `yaml:"min_transactions" mapstructure:"min_transactions"`
	ModifiedFieldPenalty    float64     `yaml:"modified_field_penalty" mapstructure:"modified_field_penalty"`
	MismatchComplianceScore float64     `yaml:"mismatch_compliance_score" mapstructure:"mismatch_compliance_score"`
	ExpiredPenalty          float64     `yaml:"expired_penalty" mapstructure:"expired_penalty"`
	ExpiringSoonPenalty     float64     `yaml:"expiring_soon_penalty" mapstructure:"expiring_soon_penalty"`
	ExpiringSoonDays        int         `yaml:"expiring_soon_days" mapstructure:"expiring_soon_days"`
	OutlierZ                float64     `yaml:"outlier_z" mapstructure:"outlier_z"`
	HighAmountThreshold     float64     `yaml:"high_amount_threshold" mapstructure:"high_amount_threshold"`
	LowAmountThreshold      float64     `yaml:"low_amount_threshold" mapstructure:"low_amount_threshold"`
	LowBandThreshold        float64     `yaml:"low_band_threshold" mapstructure:"low_band_threshold"`
	MediumBandThreshold     float64     `yaml:"medium_band_threshold" mapstructure:"medium_band_threshold"`
}

// AggregateConfig configures the contract aggregator.
type AggregateConfig struct {
	MonthlyBoundDivisor float64 `yaml:"monthly_bound_divisor" mapstructure:"monthly_bound_divisor"`
}

// ScenarioConfig is one spend perturbation applied by the analyzer.
type ScenarioConfig struct {
	Label         string  `yaml:"label" mapstructure:"label"`
	SpendShiftPct float64 `yaml:"spend_shift_pct" mapstructure:"spend_shift_pct"`
}

// AnalysisConfig configures forecasting, KPIs and scenarios.
type AnalysisConfig struct {
	Method              string           `yaml:"method" mapstructure:"method"`
	MinMonthlyPeriods   int              `yaml:"min_monthly_periods" mapstructure:"min_monthly_periods"`
	MinAnnualPeriods    int              `yaml:"min_annual_periods" mapstructure:"min_annual_periods"`
	MonthlyHorizon      int              `yaml:"monthly_horizon" mapstructure:"monthly_horizon"`
	AnnualHorizon       int              `yaml:"annual_horizon" mapstructure:"annual_horizon"`
	MovingAverageWindow int              `yaml:"moving_average_window" mapstructure:"moving_average_window"`
	ConfidenceZ         float64          `yaml:"confidence_z" mapstructure:"confidence_z"`
	Scenarios           []ScenarioConfig `yaml:"scenarios" mapstructure:"scenarios"`
	Consolidation       bool             `yaml:"consolidation" mapstructure:"consolidation"`
}

// StoreConfig configures the run ledger. DatabaseURL is a file path for
// sqlite and a connection string for postgres.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MonitoringConfig configures post-run alerting.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	RejectionRateThreshold float64 `yaml:"rejection_rate_threshold" mapstructure:"rejection_rate_threshold"`
	NoncomplianceThreshold float64 `yaml:"noncompliance_threshold" mapstructure:"noncompliance_threshold"`
	WebhookTimeoutSecs     int     `yaml:"webhook_timeout_secs" mapstructure:"webhook_timeout_secs"`
	WebhookMaxAttempts     int     `yaml:"webhook_max_attempts" mapstructure:"webhook_max_attempts"`
	WebhookRatePerSec      float64 `yaml:"webhook_rate_per_sec" mapstructure:"webhook_rate_per_sec"` // 0 = unlimited
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROCURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Default returns the configuration with every default applied and no file or
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.raw_transactions", "data/raw_transactions.csv")
	v.SetDefault("paths.contracts", "data/contracts.yaml")

	v.SetDefault("cleaner.min_date", "2000-01-01")
	v.SetDefault("cleaner.max_date", "2099-12-31")
	v.SetDefault("cleaner.base_currency", "AUD")
	v.SetDefault("cleaner.fx_rates", map[string]float64{
		"AUD": 1.0,
		"USD": 1.52,
		"EUR": 1.65,
		"GBP": 1.93,
		"NZD": 0.91,
	})
	v.SetDefault("cleaner.provider_match_threshold", 0.6)

	v.SetDefault("risk.level", "contract")
	v.SetDefault("risk.weights.quality", 0.40)
	v.SetDefault("risk.weights.compliance", 0.35)
	v.SetDefault("risk.weights.anomaly", 0.25)
	v.SetDefault("risk.min_transactions", 3)
	v.SetDefault("risk.modified_field_penalty", 5.0)
	v.SetDefault("risk.mismatch_compliance_score", 0.0)
	v.SetDefault("risk.expired_penalty", 30.0)
	v.SetDefault("risk.expiring_soon_penalty", 10.0)
	v.SetDefault("risk.expiring_soon_days", 90)
	v.SetDefault("risk.outlier_z", 2.0)
	v.SetDefault("risk.high_amount_threshold", 1_000_000.0)
	v.SetDefault("risk.low_amount_threshold", 100.0)
	v.SetDefault("risk.low_band_threshold", 70.0)
	v.SetDefault("risk.medium_band_threshold", 40.0)

	v.SetDefault("aggregate.monthly_bound_divisor", 12.0)

	v.SetDefault("analysis.method", "linear_trend")
	v.SetDefault("analysis.min_monthly_periods", 3)
	v.SetDefault("analysis.min_annual_periods", 2)
	v.SetDefault("analysis.monthly_horizon", 12)
	v.SetDefault("analysis.annual_horizon", 1)
	v.SetDefault("analysis.moving_average_window", 3)
	v.SetDefault("analysis.confidence_z", 1.96)
	v.SetDefault("analysis.consolidation", true)
	v.SetDefault("analysis.scenarios", []map[string]any{
		{"label": "Baseline", "spend_shift_pct": 0.0},
		{"label": "SpendUp10", "spend_shift_pct": 10.0},
		{"label": "SpendDown10", "spend_shift_pct": -10.0},
	})

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/runs.db")

	v.SetDefault("monitoring.rejection_rate_threshold", 0.2)
	v.SetDefault("monitoring.noncompliance_threshold", 0.5)
	v.SetDefault("monitoring.webhook_timeout_secs", 10)
	v.SetDefault("monitoring.webhook_max_attempts", 3)
	v.SetDefault("monitoring.webhook_rate_per_sec", 5.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that the configuration is internally consistent. Per-contract
// bound problems are not configuration errors at this level; they surface as
// ContractMismatch rows.
func (c *Config) Validate() error {
	var errs []string

	if c.Paths.DataDir == "" {
		errs = append(errs, "paths.data_dir is required")
	}
	if c.Paths.RawTransactions == "" {
		errs = append(errs, "paths.raw_transactions is required")
	}

	if minDate, maxDate, err := c.Cleaner.DateRange(); err != nil {
		errs = append(errs, err.Error())
	} else if maxDate.Before(minDate) {
		errs = append(errs, "cleaner.max_date must be >= cleaner.min_date")
	}
	if c.Cleaner.BaseCurrency == "" {
		errs = append(errs, "cleaner.base_currency is required")
	}
	codes := make([]string, 0, len(c.Cleaner.FXRates))
	for code := range c.Cleaner.FXRates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if rate := c.Cleaner.FXRates[code]; rate <= 0 {
			errs = append(errs, fmt.Sprintf("cleaner.fx_rates.%s must be > 0", code))
		}
	}
	if c.Cleaner.ProviderMatchThreshold < 0 || c.Cleaner.ProviderMatchThreshold > 1 {
		errs = append(errs, "cleaner.provider_match_threshold must be between 0 and 1")
	}

	switch c.Risk.Level {
	case "contract", "provider":
	default:
		errs = append(errs, fmt.Sprintf("risk.level must be contract or provider, got %q", c.Risk.Level))
	}
	w := c.Risk.Weights
	if w.Quality < 0 || w.Compliance < 0 || w.Anomaly < 0 {
		errs = append(errs, "risk.weights must be >= 0")
	}
	if math.Abs(w.Sum()-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("risk.weights should sum to 1, got %.3f", w.Sum()))
	}
	if c.Risk.MinTransactions < 1 {
		errs = append(errs, "risk.min_transactions must be >= 1")
	}
	if c.Risk.OutlierZ <= 0 {
		errs = append(errs, "risk.outlier_z must be > 0")
	}
	if c.Risk.MediumBandThreshold > c.Risk.LowBandThreshold {
		errs = append(errs, "risk.medium_band_threshold must be <= risk.low_band_threshold")
	}

	if c.Aggregate.MonthlyBoundDivisor <= 0 {
		errs = append(errs, "aggregate.monthly_bound_divisor must be > 0")
	}

	switch c.Analysis.Method {
	case "linear_trend", "moving_average":
	default:
		errs = append(errs, fmt.Sprintf("analysis.method must be linear_trend or moving_average, got %q", c.Analysis.Method))
	}
	if c.Analysis.MinMonthlyPeriods < 2 || c.Analysis.MinAnnualPeriods < 2 {
		errs = append(errs, "analysis.min_*_periods must be >= 2")
	}
	if c.Analysis.MonthlyHorizon < 1 || c.Analysis.AnnualHorizon < 1 {
		errs = append(errs, "analysis horizons must be >= 1")
	}
	if c.Analysis.MovingAverageWindow < 1 {
		errs = append(errs, "analysis.moving_average_window must be >= 1")
	}
	seen := make(map[string]bool)
	for _, s := range c.Analysis.Scenarios {
		if s.Label == "" {
			errs = append(errs, "analysis.scenarios: label is required")
			continue
		}
		if seen[s.Label] {
			errs = append(errs, fmt.Sprintf("analysis.scenarios: duplicate label %q", s.Label))
		}
		seen[s.Label] = true
		if s.SpendShiftPct <= -100 {
			errs = append(errs, fmt.Sprintf("analysis.scenarios.%s: spend_shift_pct must be > -100", s.Label))
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
