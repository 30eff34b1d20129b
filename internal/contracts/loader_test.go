package contracts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/procurement-signals/internal/model"
)

var acmeKey = model.ContractKey{Provider: "AcmeCo", ContractTitle: "Supply Deal", ContractNumber: "C-100"}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "contracts.yaml", `
contracts:
  - provider: AcmeCo
    contract_title: Supply  Deal
    contract_number: C-100
    upper_bound: 100000
    lower_bound: 50000
    expiry_date: 2026-06-30
    category: Office
  - provider: Beta Pty
    contract_title: Cleaning
    contract_number: B-7
`)

	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table, 2)

	b, ok := table.Lookup(acmeKey)
	require.True(t, ok)
	assert.True(t, b.Consistent())
	assert.Equal(t, 100000.0, *b.UpperBound)
	assert.Equal(t, 50000.0, *b.LowerBound)
	require.NotNil(t, b.ExpiryDate)
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), *b.ExpiryDate)
	assert.Equal(t, "Office", b.Category)

	beta, ok := table.Lookup(model.ContractKey{Provider: "Beta Pty", ContractTitle: "Cleaning", ContractNumber: "B-7"})
	require.True(t, ok)
	assert.False(t, beta.Consistent())
}

func TestLoad_YAMLBareList(t *testing.T) {
	path := writeFile(t, "contracts.yml", `
- provider: AcmeCo
  contract_title: Supply Deal
  contract_number: C-100
  upper_bound: 1
  lower_bound: 0
`)
	table, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, table, 1)
}

func TestLoad_JSONRegisterShape(t *testing.T) {
	path := writeFile(t, "contracts.json", `[
  {"service_provider": "AcmeCo", "contract_title": "Supply Deal", "contract_number": "C-100",
   "annual_value_lower_bound": 50000, "annual_value_upper_bound": 100000, "expiry_date": "30/06/2026"},
  {"service_provider": "Gamma", "contract_title": "Audit", "contract_number": "G-1",
   "annual_value_lower_bound": null, "annual_value_upper_bound": null, "expiry_date": "soon"}
]`)

	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table, 2)

	b := table[acmeKey]
	assert.True(t, b.Consistent())
	require.NotNil(t, b.ExpiryDate)
	assert.Equal(t, time.June, b.ExpiryDate.Month())

	g := table[model.ContractKey{Provider: "Gamma", ContractTitle: "Audit", ContractNumber: "G-1"}]
	assert.Nil(t, g.UpperBound)
	assert.Nil(t, g.ExpiryDate)
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "contracts.csv",
		"Provider,Contract Title,Contract Number,Upper Bound,Lower Bound,Expiry Date\n"+
			"AcmeCo,Supply Deal,C-100,\"100,000\",50000,2026-06-30\n"+
			"Beta,Cleaning,B-7,,,\n")

	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, 100000.0, *table[acmeKey].UpperBound)
	assert.Nil(t, table[model.ContractKey{Provider: "Beta", ContractTitle: "Cleaning", ContractNumber: "B-7"}].UpperBound)
}

func TestLoad_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Contracts")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"ServiceProvider", "ContractTitle", "ContractNumber", "AnnualValueUpperBound", "AnnualValueLowerBound"},
		{"AcmeCo", "Supply Deal", "C-100", "100000", "50000"},
	} {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "contracts.xlsx")
	require.NoError(t, f.Save(path))

	table, err := Load(path)
	require.NoError(t, err)
	assert.True(t, table[acmeKey].Consistent())
}

func TestLoad_CSVMissingColumns(t *testing.T) {
	path := writeFile(t, "contracts.csv", "Provider,ContractTitle\nAcmeCo,Supply Deal\n")

	_, err := Load(path)
	var schemaErr *model.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, "ContractNumber")
}

func TestLoad_MissingFile(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "contracts.yaml"))
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "contracts.toml", "x = 1"))
	var schemaErr *model.SchemaError
	require.True(t, errors.As(err, &schemaErr))
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "contracts.yaml", "contracts: [unclosed"))
	require.Error(t, err)
}

func TestBuild_Problems(t *testing.T) {
	upper, lower := 10.0, 20.0
	entries := []Entry{
		{Provider: "AcmeCo", ContractTitle: "Supply Deal", ContractNumber: "C-100", UpperBound: &upper, LowerBound: &lower},
		{Provider: "AcmeCo", ContractTitle: "Supply Deal", ContractNumber: "C-100"},
		{Provider: "", ContractTitle: "Orphan", ContractNumber: "X"},
	}

	table, problems := Build(entries)
	require.Len(t, table, 1)
	assert.False(t, table[acmeKey].Consistent())
	require.Len(t, problems, 3)

	var cfgErr *model.ConfigurationError
	for _, p := range problems {
		assert.True(t, errors.As(p, &cfgErr))
	}
}
