package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/monitoring"
	"github.com/sells-group/procurement-signals/internal/store"
	"github.com/sells-group/procurement-signals/internal/tabular"
)

// Runner executes stages strictly in order, recording each in the ledger.
// A failed stage halts the run; outputs of completed stages are kept.
type Runner struct {
	cfg     *config.Config
	ledger  store.Ledger
	alerter *monitoring.Alerter
}

// NewRunner creates a Runner. alerter may be nil to skip alert evaluation.
func NewRunner(cfg *config.Config, ledger store.Ledger, alerter *monitoring.Alerter) *Runner {
	if ledger == nil {
		ledger = store.Noop{}
	}
	return &Runner{cfg: cfg, ledger: ledger, alerter: alerter}
}

// Run executes stages under a single ledger run named command and returns
// the run id.
func (r *Runner) Run(ctx context.Context, command string, stages ...Stage) (string, error) {
	run, err := r.ledger.StartRun(ctx, command)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: start run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("command", command))
	log.Info("pipeline: run started", zap.Int("stages", len(stages)))

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			r.finish(ctx, log, run.ID, s.Name, err)
			return run.ID, eris.Wrapf(err, "pipeline: cancelled before %s", s.Name)
		}
		if err := r.runStage(ctx, log, run.ID, s); err != nil {
			r.finish(ctx, log, run.ID, s.Name, err)
			return run.ID, err
		}
	}

	r.finish(ctx, log, run.ID, "", nil)
	return run.ID, nil
}

func (r *Runner) runStage(ctx context.Context, log *zap.Logger, runID string, s Stage) error {
	rec, err := r.ledger.StartStage(ctx, runID, s.Name)
	if err != nil {
		log.Warn("pipeline: failed to record stage start", zap.String("stage", s.Name), zap.Error(err))
	}

	start := time.Now()
	counts, runErr := s.Run(ctx, r.cfg)
	duration := time.Since(start).Milliseconds()

	result := store.StageResult{Status: store.StatusComplete, RowsIn: counts.RowsIn, RowsOut: counts.RowsOut}
	if runErr != nil {
		result.Status = store.StatusFailed
		result.Err = runErr
		log.Error("pipeline: stage failed",
			zap.String("stage", s.Name),
			zap.Int64("duration_ms", duration),
			zap.Error(runErr),
		)
	} else {
		log.Info("pipeline: stage complete",
			zap.String("stage", s.Name),
			zap.Int("rows_in", counts.RowsIn),
			zap.Int("rows_out", counts.RowsOut),
			zap.Int64("duration_ms", duration),
		)
	}

	if rec != nil {
		// Record the outcome even when ctx was cancelled mid-stage.
		if err := r.ledger.FinishStage(context.WithoutCancel(ctx), rec.ID, result); err != nil {
			log.Warn("pipeline: failed to record stage result", zap.String("stage", s.Name), zap.Error(err))
		}
	}
	return runErr
}

// finish closes the ledger run and, when an alerter is configured, checks
// the outcome against the alert thresholds.
func (r *Runner) finish(ctx context.Context, log *zap.Logger, runID, failedStage string, runErr error) {
	ctx = context.WithoutCancel(ctx)

	status := store.StatusComplete
	if runErr != nil {
		status = store.StatusFailed
	}
	if err := r.ledger.FinishRun(ctx, runID, status, runErr); err != nil {
		log.Warn("pipeline: failed to record run result", zap.Error(err))
	}
	log.Info("pipeline: run finished", zap.String("status", string(status)))

	if r.alerter == nil {
		return
	}
	var snap monitoring.RunSnapshot
	if runErr != nil {
		snap = monitoring.Failed(runID, failedStage, runErr)
	} else {
		kpis, err := tabular.ReadRecords[model.KPIRecord](r.cfg.Paths.Output(config.KPIsFile))
		if err != nil {
			log.Warn("pipeline: no KPIs for alert evaluation", zap.Error(err))
			return
		}
		snap = monitoring.Collect(runID, kpis)
	}
	r.alerter.Check(ctx, snap)
}
