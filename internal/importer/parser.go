package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enc "github.com/MrJamesThe3rd/smartreceipts/internal/encoding"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

var dateLayouts = []string{time.DateOnly, "02-01-2006", "02/01/2006", "02.01.2006"}

// Parser reads receipt CSV files. The first non-empty line is the header,
// the delimiter is comma or semicolon, whichever the header uses more.
// Rows sharing a non-empty receipt column become one multi-product receipt.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse returns the receipts found in r in file order. Rows that cannot be
// read are reported as LineErrors; a bad row invalidates its whole receipt.
func (p *Parser) Parse(r io.Reader) ([]Record, []LineError, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := indexHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		groups  []*group
		byKey   = map[string]*group{}
		lineErr []LineError
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, nil, fmt.Errorf("read row: %w", err)
			}

			lineErr = append(lineErr, LineError{Line: pe.Line, Message: pe.Err.Error()})

			continue
		}

		line, _ := reader.FieldPos(0)

		if blank(row) {
			continue
		}

		key := cols.value(row, colReceipt)

		g, ok := byKey[key]
		if !ok || key == "" {
			g = &group{line: line}
			groups = append(groups, g)

			if key != "" {
				byKey[key] = g
			}
		}

		if g.err != nil {
			continue
		}

		if err := g.add(cols, row); err != nil {
			g.err = &LineError{Line: line, Message: err.Error()}
		}
	}

	records := make([]Record, 0, len(groups))

	for _, g := range groups {
		if g.err != nil {
			lineErr = append(lineErr, *g.err)
			continue
		}

		records = append(records, Record{Line: g.line, Input: g.input()})
	}

	return records, lineErr, nil
}

func detectDelimiter(data []byte) rune {
	first, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}

	return ','
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

type columns map[string]int

func indexHeader(header []string) (columns, error) {
	cols := make(columns, len(header))

	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			cols[name] = i
		}
	}

	var missing []string

	for _, name := range requiredCols {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return cols, nil
}

func (c columns) value(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

// group collects the rows of one receipt.
type group struct {
	line     int
	purchase receipt.Purchase
	products []receipt.Product
	total    decimal.NullDecimal
	err      *LineError
}

func (g *group) add(cols columns, row []string) error {
	product := receipt.Product{
		ProductDescription: cols.value(row, colDescription),
		BrandName:          cols.value(row, colBrand),
		ModelNumber:        cols.value(row, colModel),
		WarrantyPeriod:     cols.value(row, colWarranty),
		ExtendedWarranty:   cols.value(row, colExtendedWarranty),
	}

	if s := cols.value(row, colAmount); s != "" {
		amount, err := receipt.ParseDecimal(s)
		if err != nil {
			return fmt.Errorf("invalid amount %q", s)
		}

		product.Amount = decimal.NewNullDecimal(amount)
	}

	if s := cols.value(row, colTotal); s != "" && !g.total.Valid {
		total, err := receipt.ParseDecimal(s)
		if err != nil {
			return fmt.Errorf("invalid total_amount %q", s)
		}

		g.total = decimal.NewNullDecimal(total)
	}

	if len(g.products) == 0 {
		date, err := parseDate(cols.value(row, colDate))
		if err != nil {
			return err
		}

		g.purchase = receipt.Purchase{
			StoreName:        cols.value(row, colStore),
			PurchaseLocation: cols.value(row, colLocation),
			PurchaseDate:     date,
			Country:          cols.value(row, colCountry),
		}
	}

	g.products = append(g.products, product)

	return nil
}

func (g *group) input() receipt.Input {
	if len(g.products) == 1 {
		product := g.products[0]
		if !product.Amount.Valid {
			product.Amount = g.total
		}

		return receipt.SingleProductInput{Purchase: g.purchase, Product: product}
	}

	return receipt.MultiProductInput{Purchase: g.purchase, Products: g.products, Total: g.total}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid purchase_date %q", s)
}
