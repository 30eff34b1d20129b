package cleaner

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-signals/internal/model"
	"github.com/sells-group/procurement-signals/internal/tabular"
)

// Column aliases accepted in the raw transaction file.
var (
	ColInvoiceID       = []string{"InvoiceID", "InvoiceNumber"}
	ColProvider        = []string{"Provider", "ServiceProvider", "Supplier"}
	ColContractTitle   = []string{"ContractTitle"}
	ColContractNumber  = []string{"ContractNumber"}
	ColAmount          = []string{"Amount", "InvoiceAmount"}
	ColCurrency        = []string{"Currency"}
	ColTransactionDate = []string{"TransactionDate", "InvoiceDate"}
	ColCategory        = []string{"Category", "ServiceType"}
	ColDescription     = []string{"Description", "Notes"}
)

// RequiredColumns lists the raw columns that must be present.
var RequiredColumns = [][]string{
	ColProvider, ColContractTitle, ColContractNumber,
	ColAmount, ColCurrency, ColTransactionDate, ColCategory,
}

// LoadTransactions reads the raw transaction file (CSV or XLSX). A missing,
// unreadable or header-only file, or one lacking a required column, is a
// *model.SchemaError.
func LoadTransactions(path string) ([]model.Transaction, error) {
	tbl, err := tabular.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return FromTable(tbl)
}

// FromTable maps an already loaded table onto raw transactions.
func FromTable(tbl *tabular.Table) ([]model.Transaction, error) {
	if err := tbl.Require(RequiredColumns...); err != nil {
		return nil, err
	}
	if len(tbl.Rows) == 0 {
		return nil, &model.SchemaError{Path: tbl.Path, Err: eris.New("no data rows")}
	}

	out := make([]model.Transaction, 0, len(tbl.Rows))
	for i, row := range tbl.Rows {
		out = append(out, model.Transaction{
			Row:             i + 1,
			InvoiceID:       tbl.Get(row, ColInvoiceID...),
			Provider:        tbl.Get(row, ColProvider...),
			ContractTitle:   tbl.Get(row, ColContractTitle...),
			ContractNumber:  tbl.Get(row, ColContractNumber...),
			Amount:          tbl.Get(row, ColAmount...),
			Currency:        tbl.Get(row, ColCurrency...),
			TransactionDate: tbl.Get(row, ColTransactionDate...),
			Category:        tbl.Get(row, ColCategory...),
			Description:     tbl.Get(row, ColDescription...),
		})
	}
	return out, nil
}
