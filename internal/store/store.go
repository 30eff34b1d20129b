// Package store records pipeline runs and their stage executions. It holds
// run metadata only; procurement data lives in the data directory.
package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-signals/internal/config"
)

// Status is the lifecycle state of a run or stage.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Run is one invocation of a pipeline command.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Stages     []Stage    `json:"stages,omitempty"`
}

// Stage is one stage execution within a run.
type Stage struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	RowsIn     int        `json:"rows_in"`
	RowsOut    int        `json:"rows_out"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StageResult is what a stage reports when it finishes.
type StageResult struct {
	Status  Status
	RowsIn  int
	RowsOut int
	Err     error
}

// Ledger is the persistence interface for run history.
type Ledger interface {
	StartRun(ctx context.Context, command string) (*Run, error)
	StartStage(ctx context.Context, runID, name string) (*Stage, error)
	FinishStage(ctx context.Context, stageID string, result StageResult) error
	FinishRun(ctx context.Context, runID string, status Status, runErr error) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the ledger selected by cfg.Driver, migrated and ready to use.
func Open(ctx context.Context, cfg config.StoreConfig) (Ledger, error) {
	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.DatabaseURL); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "store: create directory %s", dir)
			}
		}
		l, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := l.Migrate(ctx); err != nil {
			l.Close() //nolint:errcheck
			return nil, err
		}
		return l, nil
	case "postgres":
		l, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := l.Migrate(ctx); err != nil {
			l.Close() //nolint:errcheck
			return nil, err
		}
		return l, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
