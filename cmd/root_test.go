package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-signals/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"clean", "risk", "summarize", "analyze", "run", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "procure", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommands_RejectPositionalArgs(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Args == nil {
			continue
		}
		assert.Error(t, c.Args(c, []string{"extra"}), c.Name())
	}
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
	require.NotNil(t, runsCmd.Flags().Lookup("json"))
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(1500 * time.Millisecond)
	runs := []store.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Command:    "run",
			Status:     store.StatusComplete,
			StartedAt:  now,
			FinishedAt: &done,
			Stages:     []store.Stage{{Name: "clean"}, {Name: "risk"}},
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Command:   "analyze",
			Status:    store.StatusFailed,
			Error:     "pipeline: read annual summary: schema: data/annual_summary.csv: open: no such file or directory",
			StartedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "COMMAND")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "clean,risk")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "2025-06-15 10:30")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "...")
}

const testContracts = `
contracts:
  - provider: AcmeCo
    contract_title: Supply Deal
    contract_number: C-100
    upper_bound: 100000
    lower_bound: 50000
`

const testRaw = `InvoiceID,Provider,ContractTitle,ContractNumber,Amount,Currency,TransactionDate,Category,Description
INV-1,AcmeCo,Supply Deal,C-100,40000,AUD,2025-01-15,Office,
INV-2,AcmeCo,Supply Deal,C-100,50000,AUD,2025-02-15,Office,
INV-3,AcmeCo,Supply Deal,C-100,30000,AUD,2025-03-15,Office,
`

func TestRunCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	bounds := filepath.Join(dir, "contracts.yaml")
	require.NoError(t, os.WriteFile(raw, []byte(testRaw), 0o644))
	require.NoError(t, os.WriteFile(bounds, []byte(testContracts), 0o644))

	t.Setenv("PROCURE_PATHS_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("PROCURE_PATHS_RAW_TRANSACTIONS", raw)
	t.Setenv("PROCURE_PATHS_CONTRACTS", bounds)
	t.Setenv("PROCURE_STORE_DRIVER", "sqlite")
	t.Setenv("PROCURE_STORE_DATABASE_URL", filepath.Join(dir, "runs.db"))
	t.Setenv("PROCURE_LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"run"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, filepath.Join(dir, "data", "annual_summary.csv"))
	assert.FileExists(t, filepath.Join(dir, "data", "kpis.csv"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"runs"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "complete")
	assert.Contains(t, out.String(), "clean,risk,summarize,analyze")
}

func TestStageCommand_FailsWithoutInputs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROCURE_PATHS_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("PROCURE_PATHS_RAW_TRANSACTIONS", filepath.Join(dir, "missing.csv"))
	t.Setenv("PROCURE_STORE_DRIVER", "none")
	t.Setenv("PROCURE_LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"analyze"})
	assert.Error(t, rootCmd.Execute())
}
