package receipt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ViewType string

const (
	ViewSingle ViewType = "single"
	ViewGroup  ViewType = "group"
)

// View is a display unit of the library: either one standalone row or every
// row of one multi-product purchase.
type View struct {
	Type ViewType

	// Receipt is set for single views.
	Receipt *Receipt

	// GroupID, Items and ProductCount are set for group views.
	GroupID      uuid.UUID
	Items        []*Receipt
	ProductCount int

	ImageURL  string
	ImagePath string
}

// ID is the group id for groups and the row id for singles.
func (v *View) ID() uuid.UUID {
	if v.Type == ViewGroup {
		return v.GroupID
	}

	return v.Receipt.ID
}

func (v *View) first() *Receipt {
	if v.Type == ViewGroup {
		return v.Items[0]
	}

	return v.Receipt
}

// Total is the purchase total, falling back to the row amount.
func (v *View) Total() decimal.NullDecimal {
	r := v.first()
	if r.ReceiptTotal.Valid {
		return r.ReceiptTotal
	}

	if v.Type == ViewSingle {
		return r.Amount
	}

	var (
		sum   decimal.Decimal
		found bool
	)

	for _, item := range v.Items {
		if item.Amount.Valid {
			sum = sum.Add(item.Amount.Decimal)
			found = true
		}
	}

	return decimal.NullDecimal{Decimal: sum, Valid: found}
}

func (v *View) StoreName() string {
	return v.first().StoreName
}

func (v *View) PurchaseDate() time.Time {
	return v.first().PurchaseDate
}

// Rows returns every row the view stands for.
func (v *View) Rows() []*Receipt {
	if v.Type == ViewGroup {
		return v.Items
	}

	return []*Receipt{v.Receipt}
}

// GroupRows buckets rows into views in a single pass. Rows are expected newest
// first; the output keeps first-encounter order so a group appears where its
// newest row would. The representative image of a group is the first non-empty
// one among its items.
func GroupRows(rows []*Receipt) []View {
	views := make([]View, 0, len(rows))
	groupIdx := make(map[uuid.UUID]int)

	for _, r := range rows {
		if !r.IsGroupReceipt || !r.ReceiptGroupID.Valid {
			views = append(views, View{
				Type:      ViewSingle,
				Receipt:   r,
				ImageURL:  r.ImageURL,
				ImagePath: r.ImagePath,
			})

			continue
		}

		gid := r.ReceiptGroupID.UUID

		idx, ok := groupIdx[gid]
		if !ok {
			groupIdx[gid] = len(views)
			views = append(views, View{
				Type:      ViewGroup,
				GroupID:   gid,
				Items:     []*Receipt{r},
				ImageURL:  r.ImageURL,
				ImagePath: r.ImagePath,
			})

			continue
		}

		v := &views[idx]
		v.Items = append(v.Items, r)

		if v.ImagePath == "" && v.ImageURL == "" && (r.ImagePath != "" || r.ImageURL != "") {
			v.ImageURL = r.ImageURL
			v.ImagePath = r.ImagePath
		}
	}

	for i := range views {
		if views[i].Type == ViewGroup {
			views[i].ProductCount = len(views[i].Items)
		}
	}

	return views
}
