// Package pipeline adapts the four pure stage cores to the data directory:
// each stage reads its predecessors' published files, runs its core and
// atomically publishes its own outputs.
package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/procurement-signals/internal/aggregate"
	"github.com/sells-group/procurement-signals/internal/analysis"
	"github.com/sells-group/procurement-signals/internal/cleaner"
	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/contracts"
	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/risk"
	"github.com/sells-group/procurement-signals/internal/tabular"
)

// Stage names, as recorded in the run ledger.
const (
	StageClean     = "clean"
	StageRisk      = "risk"
	StageSummarize = "summarize"
	StageAnalyze   = "analyze"
)

// Counts is the row accounting a stage reports when it finishes.
type Counts struct {
	RowsIn  int
	RowsOut int
}

// Stage is a named file adapter around one core.
type Stage struct {
	Name string
	Run  func(ctx context.Context, cfg *config.Config) (Counts, error)
}

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{
		{Name: StageClean, Run: CleanStage},
		{Name: StageRisk, Run: RiskStage},
		{Name: StageSummarize, Run: SummaryStage},
		{Name: StageAnalyze, Run: AnalyzeStage},
	}
}

// Lookup returns the stage with the given name.
func Lookup(name string) (Stage, bool) {
	for _, s := range Stages() {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// CleanStage validates the raw transaction file. The rejection log is always
// published; the cleaned dataset is published only when at least one row
// survives.
func CleanStage(ctx context.Context, cfg *config.Config) (Counts, error) {
	bounds, err := contracts.Load(cfg.Paths.Contracts)
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: load contract bounds")
	}
	raw, err := cleaner.LoadTransactions(cfg.Paths.RawTransactions)
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: read raw transactions")
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	res, cleanErr := cleaner.Clean(raw, bounds, cfg.Cleaner)
	if cleanErr != nil && !errors.Is(cleanErr, model.ErrNoValidRows) {
		return Counts{}, eris.Wrap(cleanErr, "pipeline: clean")
	}
	counts := Counts{RowsIn: len(raw), RowsOut: len(res.Cleaned)}

	if err := tabular.WriteRecords(cfg.Paths.Output(config.RejectionsFile), res.Rejections); err != nil {
		return counts, eris.Wrap(err, "pipeline: publish rejections")
	}
	if cleanErr != nil {
		return counts, eris.Wrapf(cleanErr, "pipeline: clean %s", cfg.Paths.RawTransactions)
	}
	if err := tabular.WriteRecords(cfg.Paths.Output(config.CleanedFile), res.Cleaned); err != nil {
		return counts, eris.Wrap(err, "pipeline: publish cleaned transactions")
	}

	for reason, n := range res.Stats.ByReason {
		zap.L().Info("pipeline: rejections by reason",
			zap.String("stage", StageClean),
			zap.String("reason", reason),
			zap.Int("rows", n),
		)
	}
	return counts, nil
}

// RiskStage scores every contract (or provider) in the cleaned dataset.
func RiskStage(ctx context.Context, cfg *config.Config) (Counts, error) {
	cleaned, rejections, err := readCleanerOutputs(cfg)
	if err != nil {
		return Counts{}, err
	}
	bounds, err := contracts.Load(cfg.Paths.Contracts)
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: load contract bounds")
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	scores, err := risk.Score(risk.Input{Cleaned: cleaned, Rejections: rejections}, bounds, cfg.Risk)
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: score risk")
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}
	if err := tabular.WriteRecords(cfg.Paths.Output(config.RiskScoresFile), scores); err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: publish risk scores")
	}
	return Counts{RowsIn: len(cleaned), RowsOut: len(scores)}, nil
}

// SummaryStage aggregates cleaned spend into annual and monthly summaries.
func SummaryStage(ctx context.Context, cfg *config.Config) (Counts, error) {
	cleaned, err := tabular.ReadRecords[model.CleanedTransaction](cfg.Paths.Output(config.CleanedFile))
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: read cleaned transactions")
	}
	bounds, err := contracts.Load(cfg.Paths.Contracts)
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: load contract bounds")
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	res, err := aggregate.Summarize(cleaned, bounds, cfg.Aggregate)
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: summarize")
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}
	if err := tabular.WriteRecords(cfg.Paths.Output(config.AnnualSummaryFile), res.Annual); err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: publish annual summary")
	}
	if err := tabular.WriteRecords(cfg.Paths.Output(config.MonthlySummaryFile), res.Monthly); err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: publish monthly summary")
	}
	return Counts{RowsIn: len(cleaned), RowsOut: len(res.Annual) + len(res.Monthly)}, nil
}

// AnalyzeStage produces forecasts, KPIs, scenarios and diagnostics from the
// summaries and risk scores.
func AnalyzeStage(ctx context.Context, cfg *config.Config) (Counts, error) {
	var (
		annual, monthly []model.ContractSummaryRecord
		scores          []model.RiskScoreRecord
		rejections      []model.Rejection
	)
	// Inputs are immutable once published, so they load in parallel.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readInto(gctx, &annual, cfg.Paths.Output(config.AnnualSummaryFile), "annual summary")
	})
	g.Go(func() error {
		return readInto(gctx, &monthly, cfg.Paths.Output(config.MonthlySummaryFile), "monthly summary")
	})
	g.Go(func() error {
		return readInto(gctx, &scores, cfg.Paths.Output(config.RiskScoresFile), "risk scores")
	})
	g.Go(func() error {
		return readInto(gctx, &rejections, cfg.Paths.Output(config.RejectionsFile), "rejections")
	})
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	out, err := analysis.Analyze(analysis.Input{
		Annual:         annual,
		Monthly:        monthly,
		Risk:           scores,
		RejectionCount: len(rejections),
	}, cfg.Analysis)
	if err != nil {
		return Counts{}, eris.Wrap(err, "pipeline: analyze")
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	p := cfg.Paths
	writes := []func() error{
		func() error { return tabular.WriteRecords(p.Output(config.MonthlyForecastFile), out.MonthlyForecasts) },
		func() error { return tabular.WriteRecords(p.Output(config.AnnualForecastFile), out.AnnualForecasts) },
		func() error { return tabular.WriteRecords(p.Output(config.KPIsFile), out.KPIs) },
		func() error { return tabular.WriteRecords(p.Output(config.ScenarioFile), out.Scenarios) },
		func() error { return tabular.WriteRecords(p.Output(config.DiagnosticsFile), out.Diagnostics) },
	}
	for _, w := range writes {
		if err := w(); err != nil {
			return Counts{}, eris.Wrap(err, "pipeline: publish analysis")
		}
	}

	return Counts{
		RowsIn:  len(annual) + len(monthly) + len(scores),
		RowsOut: len(out.MonthlyForecasts) + len(out.AnnualForecasts) + len(out.KPIs) + len(out.Scenarios),
	}, nil
}

func readCleanerOutputs(cfg *config.Config) ([]model.CleanedTransaction, []model.Rejection, error) {
	cleaned, err := tabular.ReadRecords[model.CleanedTransaction](cfg.Paths.Output(config.CleanedFile))
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: read cleaned transactions")
	}
	rejections, err := tabular.ReadRecords[model.Rejection](cfg.Paths.Output(config.RejectionsFile))
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: read rejections")
	}
	return cleaned, rejections, nil
}

func readInto[T any](ctx context.Context, dst *[]T, path, what string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records, err := tabular.ReadRecords[T](path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: read %s", what)
	}
	*dst = records
	return nil
}
