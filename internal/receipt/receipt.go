package receipt

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("receipt not found")
	ErrInvalidInput = errors.New("invalid receipt input")
)

// ProcessingMethod records how the receipt fields were obtained.
type ProcessingMethod string

const (
	ProcessingManual    ProcessingMethod = "manual"
	ProcessingOCR       ProcessingMethod = "ocr"
	ProcessingAI        ProcessingMethod = "gpt_structured"
	ProcessingCSVImport ProcessingMethod = "csv_import"
)

// Receipt is one row of the receipts table: either a standalone purchase or
// one line-item of a multi-product purchase.
type Receipt struct {
	ID     uuid.UUID `db:"id"`
	UserID uuid.UUID `db:"user_id"`

	ProductDescription string `db:"product_description"`
	BrandName          string `db:"brand_name"`
	ModelNumber        string `db:"model_number"`

	StoreName        string    `db:"store_name"`
	PurchaseLocation string    `db:"purchase_location"`
	PurchaseDate     time.Time `db:"purchase_date"`
	Country          string    `db:"country"`

	Amount       decimal.NullDecimal `db:"amount"`
	ReceiptTotal decimal.NullDecimal `db:"receipt_total"` // whole purchase; equals Amount for standalone rows

	WarrantyPeriod   string `db:"warranty_period"`
	ExtendedWarranty string `db:"extended_warranty"`

	ImageURL         string           `db:"image_url"`
	ImagePath        string           `db:"image_path"`
	ProcessingMethod ProcessingMethod `db:"processing_method"`
	OCRConfidence    *float64         `db:"ocr_confidence"`
	ExtractedText    string           `db:"extracted_text"`

	IsGroupReceipt bool          `db:"is_group_receipt"`
	ReceiptGroupID uuid.NullUUID `db:"receipt_group_id"`

	// Indexed reports whether the row already has an embedding.
	Indexed bool `db:"indexed"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AmountOrZero treats an absent amount as zero, the rule every aggregation uses.
func (r *Receipt) AmountOrZero() decimal.Decimal {
	if !r.Amount.Valid {
		return decimal.Zero
	}

	return r.Amount.Decimal
}

// Source describes where the extracted fields came from. It is shared by
// every row written for one physical receipt.
type Source struct {
	ImageURL         string
	ImagePath        string
	ProcessingMethod ProcessingMethod
	OCRConfidence    *float64
	ExtractedText    string
}

// Patch holds the editable fields of a row. Nil fields are left untouched.
type Patch struct {
	ProductDescription *string
	BrandName          *string
	ModelNumber        *string
	StoreName          *string
	PurchaseLocation   *string
	PurchaseDate       *time.Time
	Country            *string
	Amount             *decimal.Decimal
	WarrantyPeriod     *string
	ExtendedWarranty   *string
}

// touchesPurchase reports whether the patch sets a field every row of a
// group shares.
func (p Patch) touchesPurchase() bool {
	return p.StoreName != nil || p.PurchaseLocation != nil || p.PurchaseDate != nil || p.Country != nil
}

func (p Patch) IsEmpty() bool {
	return p.ProductDescription == nil &&
		p.BrandName == nil &&
		p.ModelNumber == nil &&
		p.StoreName == nil &&
		p.PurchaseLocation == nil &&
		p.PurchaseDate == nil &&
		p.Country == nil &&
		p.Amount == nil &&
		p.WarrantyPeriod == nil &&
		p.ExtendedWarranty == nil
}

// DeleteTarget selects either a single row or a whole group. Exactly one must be set.
type DeleteTarget struct {
	RowID   uuid.NullUUID
	GroupID uuid.NullUUID
}

func DeleteRow(id uuid.UUID) DeleteTarget {
	return DeleteTarget{RowID: uuid.NullUUID{UUID: id, Valid: true}}
}

func DeleteGroup(groupID uuid.UUID) DeleteTarget {
	return DeleteTarget{GroupID: uuid.NullUUID{UUID: groupID, Valid: true}}
}
