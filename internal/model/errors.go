package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoValidRows is returned when cleaning leaves nothing to publish.
var ErrNoValidRows = eris.New("no valid rows survived cleaning")

// Rejection reasons recorded in the rejection log.
const (
	ReasonMissingProvider       = "missing_provider"
	ReasonMissingContractTitle  = "missing_contract_title"
	ReasonMissingContractNumber = "missing_contract_number"
	ReasonUnparseableDate       = "unparseable_date"
	ReasonDateOutOfRange        = "date_out_of_range"
	ReasonUnparseableAmount     = "unparseable_amount"
	ReasonNegativeAmount        = "negative_amount"
	ReasonUnknownCurrency       = "unknown_currency"
)

// RowValidationError describes why a single raw row was dropped. It is a
// value carried alongside the row, not a control-flow error.
type RowValidationError struct {
	Row    int
	Field  string
	Reason string
	Value  string
}

func (e *RowValidationError) Error() string {
	return fmt.Sprintf("row %d: %s %s (%q)", e.Row, e.Field, e.Reason, e.Value)
}

// SchemaError is fatal to a stage: an input is missing, unreadable, or lacks
// required columns.
type SchemaError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *SchemaError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("schema: %s missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
	case e.Err != nil:
		return fmt.Sprintf("schema: %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("schema: %s is invalid", e.Path)
	}
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ConfigurationError reports malformed bounds for a single contract.
type ConfigurationError struct {
	Key    ContractKey
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: contract %s: %s", e.Key, e.Reason)
}

// InsufficientDataError reports a key with too little history to forecast.
type InsufficientDataError struct {
	Key      string
	Periods  int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient history for %s: %d periods, need %d", e.Key, e.Periods, e.Required)
}
