// Package cleaner validates and normalises raw procurement transactions into
// the canonical cleaned dataset and a rejection log.
package cleaner

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-signals/internal/config"
	"github.com/sells-group/procurement-signals/internal/model"
)

// Field names used in rejections and ModifiedFields.
const (
	FieldProvider        = "Provider"
	FieldContractTitle   = "ContractTitle"
	FieldContractNumber  = "ContractNumber"
	FieldTransactionDate = "TransactionDate"
	FieldAmount          = "Amount"
	FieldCurrency        = "Currency"
	FieldCategory        = "Category"
)

// Stats summarises a cleaning pass.
type Stats struct {
	Rows         int
	Kept         int
	Rejected     int
	ModifiedRows int
	ByReason     map[string]int
}

// Result is the output of Clean: cleaned rows in input order, one rejection
// per dropped row, and counters.
type Result struct {
	Cleaned    []model.CleanedTransaction
	Rejections []model.Rejection
	Stats      Stats
}

// Cleaner holds the validated configuration and provider registry for a run.
type Cleaner struct {
	cfg      config.CleanerConfig
	registry *Registry
	minDate  time.Time
	maxDate  time.Time
}

// New validates cfg and indexes bounds into a provider registry.
func New(cfg config.CleanerConfig, bounds model.BoundsTable) (*Cleaner, error) {
	minDate, maxDate, err := cfg.DateRange()
	if err != nil {
		return nil, eris.Wrap(err, "cleaner: date range")
	}
	if _, ok := cfg.Rate(cfg.BaseCurrency); !ok || cfg.BaseCurrency == "" {
		return nil, eris.New("cleaner: base currency is not configured")
	}
	return &Cleaner{
		cfg:      cfg,
		registry: NewRegistry(bounds),
		minDate:  minDate,
		maxDate:  maxDate,
	}, nil
}

// Clean is a convenience wrapper around New and (*Cleaner).Clean.
func Clean(raw []model.Transaction, bounds model.BoundsTable, cfg config.CleanerConfig) (Result, error) {
	c, err := New(cfg, bounds)
	if err != nil {
		return Result{}, err
	}
	return c.Clean(raw)
}

// rowResult carries either a cleaned transaction or the reason it was dropped.
type rowResult struct {
	txn model.CleanedTransaction
	key model.ContractKey
	err *model.RowValidationError
}

// Clean validates every raw row. Dropped rows never stop processing. When no
// row survives the returned error is model.ErrNoValidRows; the Result still
// carries every rejection.
func (c *Cleaner) Clean(raw []model.Transaction) (Result, error) {
	log := zap.L().With(zap.String("stage", "clean"))
	res := Result{
		Cleaned: make([]model.CleanedTransaction, 0, len(raw)),
		Stats:   Stats{Rows: len(raw), ByReason: make(map[string]int)},
	}

	for _, t := range raw {
		rr := c.cleanRow(t)
		if rr.err != nil {
			res.Rejections = append(res.Rejections, model.Rejection{
				Row:         rr.err.Row,
				InvoiceID:   normalizeText(t.InvoiceID),
				ContractKey: rr.key,
				Field:       rr.err.Field,
				Reason:      rr.err.Reason,
				RawValue:    rr.err.Value,
			})
			res.Stats.ByReason[rr.err.Reason]++
			log.Debug("cleaner: row dropped", zap.Error(rr.err))
			continue
		}
		if len(rr.txn.ModifiedFields) > 0 {
			res.Stats.ModifiedRows++
		}
		res.Cleaned = append(res.Cleaned, rr.txn)
	}
	res.Stats.Kept = len(res.Cleaned)
	res.Stats.Rejected = len(res.Rejections)

	log.Info("cleaner: pass complete",
		zap.Int("rows", res.Stats.Rows),
		zap.Int("kept", res.Stats.Kept),
		zap.Int("rejected", res.Stats.Rejected),
		zap.Int("modified_rows", res.Stats.ModifiedRows),
	)

	if res.Stats.Kept == 0 {
		return res, model.ErrNoValidRows
	}
	return res, nil
}

func (c *Cleaner) cleanRow(t model.Transaction) rowResult {
	var modified model.FieldList
	mark := func(field string, before, after string) {
		if before != after {
			modified = append(modified, field)
		}
	}

	provider := c.cleanProvider(t.Provider)
	mark(FieldProvider, strings.TrimSpace(t.Provider), provider)

	title := normalizeText(t.ContractTitle)
	number := normalizeText(t.ContractNumber)
	if repaired, ok := c.registry.RepairTitle(provider, title, number); ok {
		title = repaired
	}
	if repaired, ok := c.registry.RepairNumber(provider, title, number); ok {
		number = repaired
	}
	mark(FieldContractTitle, strings.TrimSpace(t.ContractTitle), title)
	mark(FieldContractNumber, strings.TrimSpace(t.ContractNumber), number)

	key := model.ContractKey{Provider: provider, ContractTitle: title, ContractNumber: number}
	reject := func(field, reason, value string) rowResult {
		return rowResult{key: key, err: &model.RowValidationError{Row: t.Row, Field: field, Reason: reason, Value: value}}
	}

	switch {
	case provider == "":
		return reject(FieldProvider, model.ReasonMissingProvider, t.Provider)
	case title == "":
		return reject(FieldContractTitle, model.ReasonMissingContractTitle, t.ContractTitle)
	case number == "":
		return reject(FieldContractNumber, model.ReasonMissingContractNumber, t.ContractNumber)
	}

	rawDate := strings.TrimSpace(t.TransactionDate)
	date, err := model.ParseAnyDate(rawDate)
	if err != nil {
		return reject(FieldTransactionDate, model.ReasonUnparseableDate, t.TransactionDate)
	}
	if date.Before(c.minDate) || date.After(c.maxDate) {
		return reject(FieldTransactionDate, model.ReasonDateOutOfRange, t.TransactionDate)
	}
	mark(FieldTransactionDate, rawDate, date.String())

	amount, ok := parseAmount(t.Amount, c.knownCurrency)
	if !ok {
		return reject(FieldAmount, model.ReasonUnparseableAmount, t.Amount)
	}
	if amount.value < 0 {
		return reject(FieldAmount, model.ReasonNegativeAmount, t.Amount)
	}
	if amount.modified {
		modified = append(modified, FieldAmount)
	}

	rawCurrency := normalizeText(t.Currency)
	currency := strings.ToUpper(rawCurrency)
	if currency == "" {
		currency = amount.currency
	}
	if currency == "" {
		currency = strings.ToUpper(c.cfg.BaseCurrency)
	}
	rate, ok := c.cfg.Rate(currency)
	if !ok {
		return reject(FieldCurrency, model.ReasonUnknownCurrency, t.Currency)
	}
	value := amount.value
	base := strings.ToUpper(c.cfg.BaseCurrency)
	if currency != base {
		value = math.Round(value*rate*100) / 100
		modified = append(modified, FieldCurrency)
	} else if rawCurrency != "" && rawCurrency != currency {
		modified = append(modified, FieldCurrency)
	}

	category := normalizeText(t.Category)
	if registered := c.registry.Category(key); registered != "" && !strings.EqualFold(registered, category) {
		category = registered
		modified = append(modified, FieldCategory)
	}

	return rowResult{
		key: key,
		txn: model.CleanedTransaction{
			InvoiceID:        normalizeText(t.InvoiceID),
			ContractKey:      key,
			Amount:           value,
			Currency:         base,
			OriginalAmount:   strings.TrimSpace(t.Amount),
			OriginalCurrency: currency,
			TransactionDate:  date,
			Year:             date.Year(),
			Month:            int(date.Month()),
			Category:         category,
			Description:      normalizeText(t.Description),
			ModifiedFields:   modified,
		},
	}
}

// cleanProvider canonicalises a provider name against the registry. Names
// not in the registry keep their own spelling, with region suffixes removed
// and single-case names title-cased.
func (c *Cleaner) cleanProvider(raw string) string {
	name := normalizeText(raw)
	if name == "" {
		return ""
	}
	if match, ok := c.registry.MatchProvider(name, c.cfg.ProviderMatchThreshold); ok {
		return match
	}
	name = strings.TrimSpace(regionSuffix.ReplaceAllString(name, ""))
	return fixCase(name)
}

func (c *Cleaner) knownCurrency(code string) bool {
	_, ok := c.cfg.Rate(code)
	return ok
}
