package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the canonical calendar date representation.
const DateLayout = "2006-01-02"

// DateLayouts are the accepted input date formats, tried in order. Day-first
// layouts precede month-first ones, so "03/04/2025" is 3 April.
var DateLayouts = []string{
	DateLayout,
	"2/1/2006",
	"2-1-2006",
	"1/2/2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
	"January 2 2006",
	"January 2, 2006",
	"06/01/02",
	time.RFC3339,
}

// ParseAnyDate parses s against DateLayouts and truncates to a UTC date.
func ParseAnyDate(s string) (Date, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return Date{}, eris.New("model: empty date")
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, eris.Errorf("model: unrecognised date %q", s)
}

// Transaction is a raw procurement record as read from the source file.
// All fields are kept as text; nothing has been validated yet.
type Transaction struct {
	Row             int
	InvoiceID       string
	Provider        string
	ContractTitle   string
	ContractNumber  string
	Amount          string
	Currency        string
	TransactionDate string
	Category        string
	Description     string
}

// Date is a calendar date that encodes as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, eris.Wrapf(err, "model: parse date %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FieldList is a set of field names stored as a single ";"-joined column.
type FieldList []string

func (f FieldList) MarshalText() ([]byte, error) {
	return []byte(strings.Join(f, ";")), nil
}

func (f *FieldList) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*f = nil
		return nil
	}
	*f = strings.Split(s, ";")
	return nil
}

// CleanedTransaction is a validated, normalised transaction.
type CleanedTransaction struct {
	InvoiceID string `csv:"invoice_id"`
	ContractKey
	Amount           float64   `csv:"amount"`
	Currency         string    `csv:"currency"`
	OriginalAmount   string    `csv:"original_amount"`
	OriginalCurrency string    `csv:"original_currency"`
	TransactionDate  Date      `csv:"transaction_date"`
	Year             int       `csv:"year"`
	Month            int       `csv:"month"`
	Category         string    `csv:"category"`
	Description      string    `csv:"description"`
	ModifiedFields   FieldList `csv:"modified_fields"`
}

// Rejection records one dropped raw row and the first reason it failed.
type Rejection struct {
	Row       int    `csv:"row"`
	InvoiceID string `csv:"invoice_id"`
	ContractKey
	Field    string `csv:"field"`
	Reason   string `csv:"reason"`
	RawValue string `csv:"raw_value"`
}

// Attributable reports whether the rejection can be charged to a contract.
func (r Rejection) Attributable() bool {
	return r.ContractKey.Valid()
}
