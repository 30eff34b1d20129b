package tabular

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-signals/internal/model"
)

func TestEncodeRecords_HeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeRecords[model.KPIRecord](&buf, nil))
	assert.Equal(t, "metric,value,period\n", buf.String())
}

func TestEncodeRecords_FixedFloatFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, []model.KPIRecord{
		{Metric: "TotalSpend", Value: 1200000, Period: "2024..2025"},
		{Metric: "RejectionRate", Value: 0.25, Period: "2024..2025"},
	}))
	assert.Equal(t, "metric,value,period\nTotalSpend,1200000,2024..2025\nRejectionRate,0.25,2024..2025\n", buf.String())
}

func TestWriteReadRecords_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cleaned.csv")
	upper := 100000.0
	in := []model.ContractSummaryRecord{
		{
			ContractKey:      model.ContractKey{Provider: "AcmeCo", ContractTitle: "Supply Deal", ContractNumber: "C-100"},
			Period:           "2025",
			Year:             2025,
			TotalSpend:       120000,
			TransactionCount: 3,
			UpperBound:       &upper,
			ComplianceFlag:   model.FlagContractMismatch,
		},
	}

	require.NoError(t, WriteRecords(path, in))

	out, err := ReadRecords[model.ContractSummaryRecord](path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].ContractKey, out[0].ContractKey)
	assert.Equal(t, 120000.0, out[0].TotalSpend)
	require.NotNil(t, out[0].UpperBound)
	assert.Equal(t, 100000.0, *out[0].UpperBound)
	assert.Nil(t, out[0].LowerBound)
}

func TestReadRecords_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpis.csv")
	require.NoError(t, os.WriteFile(path, []byte("metric,value\nTotalSpend,1\n"), 0o644))

	_, err := ReadRecords[model.KPIRecord](path)
	var schemaErr *model.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, "period")
}

func TestReadRecords_MalformedValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpis.csv")
	data := "metric,value,period\nTotalSpend,100,2025\nRejectionRate,lots,2025\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := ReadRecords[model.KPIRecord](path)
	var schemaErr *model.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, path, schemaErr.Path)
	assert.Empty(t, schemaErr.Missing)
	assert.Contains(t, err.Error(), "decode line 3")
}

func TestReadRecords_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpis.csv")
	require.NoError(t, WriteRecords[model.KPIRecord](path, nil))

	out, err := ReadRecords[model.KPIRecord](path)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReadRecords_MissingFile(t *testing.T) {
	_, err := ReadRecords[model.KPIRecord](filepath.Join(t.TempDir(), "absent.csv"))
	var schemaErr *model.SchemaError
	require.True(t, errors.As(err, &schemaErr))
}

func TestWriteFileAtomic_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
