package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/procurement-signals/internal/monitoring"
	"github.com/sells-group/procurement-signals/internal/pipeline"
	"github.com/sells-group/procurement-signals/internal/store"
)

func stageCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _ := pipeline.Lookup(name)
			return execute(cmd.Context(), name, nil, s)
		},
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long:  "Runs clean, risk, summarize and analyze in order, stopping at the first failure, then evaluates alert thresholds.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return execute(cmd.Context(), "run", monitoring.NewAlerter(cfg.Monitoring), pipeline.Stages()...)
	},
}

// execute runs stages under one ledger run.
func execute(ctx context.Context, command string, alerter *monitoring.Alerter, stages ...pipeline.Stage) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ledger, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer ledger.Close() //nolint:errcheck

	_, err = pipeline.NewRunner(cfg, ledger, alerter).Run(ctx, command, stages...)
	return err
}

func init() {
	rootCmd.AddCommand(stageCmd(pipeline.StageClean, "Validate and normalise raw transactions"))
	rootCmd.AddCommand(stageCmd(pipeline.StageRisk, "Score contract risk from cleaned transactions"))
	rootCmd.AddCommand(stageCmd(pipeline.StageSummarize, "Summarise spend per contract and period against bounds"))
	rootCmd.AddCommand(stageCmd(pipeline.StageAnalyze, "Forecast spend and compute KPIs and scenarios"))
	rootCmd.AddCommand(runCmd)
}
