package importer

import (
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

// Header names recognised in an import file. Matching ignores case and
// surrounding whitespace.
const (
	colDescription      = "product_description"
	colBrand            = "brand_name"
	colModel            = "model_number"
	colStore            = "store_name"
	colLocation         = "purchase_location"
	colDate             = "purchase_date"
	colCountry          = "country"
	colAmount           = "amount"
	colTotal            = "total_amount"
	colWarranty         = "warranty_period"
	colExtendedWarranty = "extended_warranty"
	colReceipt          = "receipt"
)

var requiredCols = []string{colDescription, colBrand, colDate, colWarranty}

var ErrMissingColumns = errors.New("import file is missing required columns")

// Record is one receipt found in the file. Line is the 1-based line of its
// first row.
type Record struct {
	Line  int
	Input receipt.Input
}

// LineError reports a row, or a group of rows, that could not be imported.
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
