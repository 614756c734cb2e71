package library

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/warranty"
)

type SortKey string

const (
	SortValueDesc      SortKey = "value-desc"
	SortValueAsc       SortKey = "value-asc"
	SortBrandAsc       SortKey = "brand-asc"
	SortWarrantyExpiry SortKey = "warranty-expiry"
	SortDateDesc       SortKey = "date-desc"
	SortDateAsc        SortKey = "date-asc"
)

// SortKeys lists every key in display order.
var SortKeys = []SortKey{SortDateDesc, SortDateAsc, SortValueDesc, SortValueAsc, SortBrandAsc, SortWarrantyExpiry}

func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}

	return "", fmt.Errorf("unknown sort key %q", s)
}

type Category struct {
	Name     string
	Keywords []string
}

// Categories is the keyword table used to guess a product category from its description.
var Categories = []Category{
	{Name: "Electronics", Keywords: []string{"phone", "laptop", "camera", "tv", "computer", "tablet"}},
	{Name: "Appliances", Keywords: []string{"refrigerator", "fridge", "washer", "dryer", "microwave", "oven", "dishwasher", "vacuum", "blender"}},
	{Name: "Furniture", Keywords: []string{"sofa", "couch", "chair", "table", "desk", "bed", "mattress"}},
	{Name: "Tools", Keywords: []string{"drill", "saw", "hammer", "wrench", "mower", "sander"}},
	{Name: "Clothing", Keywords: []string{"shirt", "jacket", "shoes", "boots", "dress", "pants", "coat"}},
}

// InCategory reports whether the description contains any keyword of the named category.
func InCategory(name, description string) bool {
	desc := strings.ToLower(description)

	for _, c := range Categories {
		if !strings.EqualFold(c.Name, name) {
			continue
		}

		for _, kw := range c.Keywords {
			if strings.Contains(desc, kw) {
				return true
			}
		}
	}

	return false
}

// Filters are combined with AND; an empty field does not filter.
type Filters struct {
	Brands     []string
	Categories []string
	Statuses   []warranty.Status
	MinPrice   decimal.NullDecimal
	MaxPrice   decimal.NullDecimal
}

func (f Filters) match(r *receipt.Receipt, now time.Time) bool {
	if len(f.Brands) > 0 && !containsFold(f.Brands, r.BrandName) {
		return false
	}

	if len(f.Categories) > 0 {
		found := false

		for _, c := range f.Categories {
			if InCategory(c, r.ProductDescription) {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	if len(f.Statuses) > 0 {
		days := warranty.DaysUntil(warranty.Expiry(r.PurchaseDate, r.WarrantyPeriod), now)
		found := false

		for _, st := range f.Statuses {
			if warranty.Matches(st, days) {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	amount := r.AmountOrZero()

	if f.MinPrice.Valid && amount.LessThan(f.MinPrice.Decimal) {
		return false
	}

	if f.MaxPrice.Valid && amount.GreaterThan(f.MaxPrice.Decimal) {
		return false
	}

	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v)) {
			return true
		}
	}

	return false
}

// Apply filters rows and returns them sorted by key. The input slice is not
// modified. Rows with equal sort keys are ordered by id.
func Apply(rows []*receipt.Receipt, f Filters, key SortKey, now time.Time) []*receipt.Receipt {
	out := make([]*receipt.Receipt, 0, len(rows))

	for _, r := range rows {
		if f.match(r, now) {
			out = append(out, r)
		}
	}

	Sort(out, key)

	return out
}

// Sort orders rows in place. Unknown keys leave the order unchanged.
func Sort(rows []*receipt.Receipt, key SortKey) {
	var cmp func(a, b *receipt.Receipt) int

	switch key {
	case SortValueDesc:
		cmp = func(a, b *receipt.Receipt) int { return b.AmountOrZero().Cmp(a.AmountOrZero()) }
	case SortValueAsc:
		cmp = func(a, b *receipt.Receipt) int { return a.AmountOrZero().Cmp(b.AmountOrZero()) }
	case SortBrandAsc:
		c := collate.New(language.English, collate.IgnoreCase)
		cmp = func(a, b *receipt.Receipt) int { return c.CompareString(a.BrandName, b.BrandName) }
	case SortWarrantyExpiry:
		expiries := make(map[*receipt.Receipt]time.Time, len(rows))
		for _, r := range rows {
			expiries[r] = warranty.Expiry(r.PurchaseDate, r.WarrantyPeriod)
		}

		cmp = func(a, b *receipt.Receipt) int { return expiries[a].Compare(expiries[b]) }
	case SortDateDesc:
		cmp = func(a, b *receipt.Receipt) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case SortDateAsc:
		cmp = func(a, b *receipt.Receipt) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if c := cmp(rows[i], rows[j]); c != 0 {
			return c < 0
		}

		return bytes.Compare(rows[i].ID[:], rows[j].ID[:]) < 0
	})
}

// Brands lists the distinct brands of rows in collation order, for filter pickers.
func Brands(rows []*receipt.Receipt) []string {
	seen := make(map[string]struct{}, len(rows))
	brands := make([]string, 0, len(rows))

	for _, r := range rows {
		b := strings.TrimSpace(r.BrandName)
		if b == "" {
			continue
		}

		k := strings.ToLower(b)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		brands = append(brands, b)
	}

	collate.New(language.English, collate.IgnoreCase).SortStrings(brands)

	return brands
}
