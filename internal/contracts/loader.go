// Package contracts loads the configured annual spend bounds for each
// contract from YAML, JSON, CSV or XLSX files.
package contracts

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/tabular"
)

// Entry is one contract as written in a bounds file. Both the short field
// names and the scraped-register names (service_provider,
// annual_value_upper_bound, ...) are accepted.
type Entry struct {
	Provider        string   `yaml:"provider" json:"provider"`
	ServiceProvider string   `yaml:"service_provider" json:"service_provider"`
	ContractTitle   string   `yaml:"contract_title" json:"contract_title"`
	ContractNumber  string   `yaml:"contract_number" json:"contract_number"`
	UpperBound      *float64 `yaml:"upper_bound" json:"upper_bound"`
	LowerBound      *float64 `yaml:"lower_bound" json:"lower_bound"`
	AnnualUpper     *float64 `yaml:"annual_value_upper_bound" json:"annual_value_upper_bound"`
	AnnualLower     *float64 `yaml:"annual_value_lower_bound" json:"annual_value_lower_bound"`
	ExpiryDate      string   `yaml:"expiry_date" json:"expiry_date"`
	Category        string   `yaml:"category" json:"category"`
}

// File is the YAML document shape: a top-level "contracts" list.
type File struct {
	Contracts []Entry `yaml:"contracts" json:"contracts"`
}

// Load reads the bounds table at path. A missing file is not an error: it is
// logged and an empty table is returned, so every key classifies as
// ContractMismatch. Per-contract problems are logged as warnings and the
// contract is kept with whatever bounds could be read.
func Load(path string) (model.BoundsTable, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("contracts: bounds file not found, all keys will be ContractMismatch",
			zap.String("path", path),
		)
		return model.BoundsTable{}, nil
	}

	var (
		entries []Entry
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = readYAML(path)
	case ".json":
		entries, err = readJSON(path)
	case ".csv", ".xlsx":
		entries, err = readTable(path)
	default:
		return nil, &model.SchemaError{Path: path, Err: eris.Errorf("unsupported bounds file extension %q", filepath.Ext(path))}
	}
	if err != nil {
		return nil, err
	}

	table, problems := Build(entries)
	for _, p := range problems {
		zap.L().Warn("contracts: bounds entry", zap.String("path", path), zap.Error(p))
	}
	zap.L().Info("contracts: loaded bounds",
		zap.String("path", path),
		zap.Int("contracts", len(table)),
		zap.Int("problems", len(problems)),
	)
	return table, nil
}

// Build converts entries into a bounds table. Entries without a complete key
// are skipped; duplicated keys keep the first entry. Every problem found is
// returned as a *model.ConfigurationError.
func Build(entries []Entry) (model.BoundsTable, []error) {
	table := make(model.BoundsTable, len(entries))
	var problems []error

	for i, e := range entries {
		b := e.bounds()
		if !b.Valid() {
			problems = append(problems, &model.ConfigurationError{
				Key:    b.ContractKey,
				Reason: "entry " + strconv.Itoa(i+1) + " has an incomplete contract key",
			})
			continue
		}
		if _, dup := table[b.ContractKey]; dup {
			problems = append(problems, &model.ConfigurationError{Key: b.ContractKey, Reason: "duplicate entry ignored"})
			continue
		}

		if e.ExpiryDate != "" {
			d, err := model.ParseAnyDate(e.ExpiryDate)
			if err != nil {
				problems = append(problems, &model.ConfigurationError{Key: b.ContractKey, Reason: "unparseable expiry_date " + strconv.Quote(e.ExpiryDate)})
			} else {
				t := d.Time
				b.ExpiryDate = &t
			}
		}

		switch {
		case b.UpperBound == nil || b.LowerBound == nil:
			problems = append(problems, &model.ConfigurationError{Key: b.ContractKey, Reason: "bounds not fully configured"})
		case *b.UpperBound < *b.LowerBound:
			problems = append(problems, &model.ConfigurationError{Key: b.ContractKey, Reason: "upper bound is below lower bound"})
		}

		table[b.ContractKey] = b
	}
	return table, problems
}

func (e Entry) bounds() model.ContractBounds {
	provider := e.Provider
	if provider == "" {
		provider = e.ServiceProvider
	}
	b := model.ContractBounds{
		ContractKey: model.ContractKey{
			Provider:       model.NormalizeKeyPart(provider),
			ContractTitle:  model.NormalizeKeyPart(e.ContractTitle),
			ContractNumber: model.NormalizeKeyPart(e.ContractNumber),
		},
		UpperBound: e.UpperBound,
		LowerBound: e.LowerBound,
		Category:   model.NormalizeKeyPart(e.Category),
	}
	if b.UpperBound == nil {
		b.UpperBound = e.AnnualUpper
	}
	if b.LowerBound == nil {
		b.LowerBound = e.AnnualLower
	}
	return b
}

func readYAML(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.SchemaError{Path: path, Err: eris.Wrap(err, "contracts: read yaml")}
	}

	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		// A bare top-level list is accepted too.
		var list []Entry
		if listErr := yaml.Unmarshal(data, &list); listErr != nil {
			return nil, &model.SchemaError{Path: path, Err: eris.Wrap(err, "contracts: parse yaml")}
		}
		return list, nil
	}
	return doc.Contracts, nil
}

func readJSON(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.SchemaError{Path: path, Err: eris.Wrap(err, "contracts: read json")}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var list []Entry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc File
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.SchemaError{Path: path, Err: eris.Wrap(err, "contracts: parse json")}
	}
	return doc.Contracts, nil
}

var (
	colProvider = []string{"Provider", "ServiceProvider"}
	colTitle    = []string{"ContractTitle"}
	colNumber   = []string{"ContractNumber"}
	colUpper    = []string{"UpperBound", "AnnualValueUpperBound", "ContractUpperBound"}
	colLower    = []string{"LowerBound", "AnnualValueLowerBound", "ContractLowerBound"}
	colExpiry   = []string{"ExpiryDate"}
	colCategory = []string{"Category"}
)

func readTable(path string) ([]Entry, error) {
	tbl, err := tabular.ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := tbl.Require(colProvider, colTitle, colNumber, colUpper, colLower); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		entries = append(entries, Entry{
			Provider:       tbl.Get(row, colProvider...),
			ContractTitle:  tbl.Get(row, colTitle...),
			ContractNumber: tbl.Get(row, colNumber...),
			UpperBound:     parseBound(tbl.Get(row, colUpper...)),
			LowerBound:     parseBound(tbl.Get(row, colLower...)),
			ExpiryDate:     tbl.Get(row, colExpiry...),
			Category:       tbl.Get(row, colCategory...),
		})
	}
	return entries, nil
}

// parseBound reads a numeric cell. Blank or non-numeric cells are treated as
// "not configured".
func parseBound(s string) *float64 {
	s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
