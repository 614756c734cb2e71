package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Nullable text columns are read back as empty strings; embedding presence is
// exposed as a flag, the vector itself never leaves the database here.
const selectReceiptColumns = `
	id, user_id, product_description, brand_name,
	COALESCE(model_number, '') AS model_number,
	COALESCE(store_name, '') AS store_name,
	COALESCE(purchase_location, '') AS purchase_location,
	purchase_date,
	COALESCE(country, '') AS country,
	amount, receipt_total, warranty_period,
	COALESCE(extended_warranty, '') AS extended_warranty,
	COALESCE(image_url, '') AS image_url,
	COALESCE(image_path, '') AS image_path,
	processing_method, ocr_confidence,
	COALESCE(extracted_text, '') AS extracted_text,
	is_group_receipt, receipt_group_id,
	embedding IS NOT NULL AS indexed,
	created_at, updated_at
`

// insertRow mirrors receipt.Receipt with empty strings mapped to NULL.
type insertRow struct {
	ID                 uuid.UUID           `db:"id"`
	UserID             uuid.UUID           `db:"user_id"`
	ProductDescription string              `db:"product_description"`
	BrandName          string              `db:"brand_name"`
	ModelNumber        sql.NullString      `db:"model_number"`
	StoreName          sql.NullString      `db:"store_name"`
	PurchaseLocation   sql.NullString      `db:"purchase_location"`
	PurchaseDate       time.Time           `db:"purchase_date"`
	Country            sql.NullString      `db:"country"`
	Amount             decimal.NullDecimal `db:"amount"`
	ReceiptTotal       decimal.NullDecimal `db:"receipt_total"`
	WarrantyPeriod     string              `db:"warranty_period"`
	ExtendedWarranty   sql.NullString      `db:"extended_warranty"`
	ImageURL           sql.NullString      `db:"image_url"`
	ImagePath          sql.NullString      `db:"image_path"`
	ProcessingMethod   string              `db:"processing_method"`
	OCRConfidence      *float64            `db:"ocr_confidence"`
	ExtractedText      sql.NullString      `db:"extracted_text"`
	IsGroupReceipt     bool                `db:"is_group_receipt"`
	ReceiptGroupID     uuid.NullUUID       `db:"receipt_group_id"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toInsertRow(r *receipt.Receipt) insertRow {
	return insertRow{
		ID:                 r.ID,
		UserID:             r.UserID,
		ProductDescription: r.ProductDescription,
		BrandName:          r.BrandName,
		ModelNumber:        nullString(r.ModelNumber),
		StoreName:          nullString(r.StoreName),
		PurchaseLocation:   nullString(r.PurchaseLocation),
		PurchaseDate:       r.PurchaseDate,
		Country:            nullString(r.Country),
		Amount:             r.Amount,
		ReceiptTotal:       r.ReceiptTotal,
		WarrantyPeriod:     r.WarrantyPeriod,
		ExtendedWarranty:   nullString(r.ExtendedWarranty),
		ImageURL:           nullString(r.ImageURL),
		ImagePath:          nullString(r.ImagePath),
		ProcessingMethod:   string(r.ProcessingMethod),
		OCRConfidence:      r.OCRConfidence,
		ExtractedText:      nullString(r.ExtractedText),
		IsGroupReceipt:     r.IsGroupReceipt,
		ReceiptGroupID:     r.ReceiptGroupID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// InsertReceipts writes all rows with a single multi-row INSERT.
func (s *Store) InsertReceipts(ctx context.Context, rows []*receipt.Receipt) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	params := make([]insertRow, len(rows))

	for i, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}

		r.CreatedAt = now
		r.UpdatedAt = now
		params[i] = toInsertRow(r)
	}

	query := `
		INSERT INTO receipts (
			id, user_id, product_description, brand_name, model_number,
			store_name, purchase_location, purchase_date, country,
			amount, receipt_total, warranty_period, extended_warranty,
			image_url, image_path, processing_method, ocr_confidence, extracted_text,
			is_group_receipt, receipt_group_id, created_at, updated_at
		) VALUES (
			:id, :user_id, :product_description, :brand_name, :model_number,
			:store_name, :purchase_location, :purchase_date, :country,
			:amount, :receipt_total, :warranty_period, :extended_warranty,
			:image_url, :image_path, :processing_method, :ocr_confidence, :extracted_text,
			:is_group_receipt, :receipt_group_id, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return err
	}

	return nil
}

func (s *Store) ListReceipts(ctx context.Context, userID uuid.UUID) ([]*receipt.Receipt, error) {
	query := `SELECT ` + selectReceiptColumns + `
		FROM receipts
		WHERE user_id = $1
		ORDER BY created_at DESC, id`

	var rows []*receipt.Receipt
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	return rows, nil
}

func (s *Store) ListGroup(ctx context.Context, userID, groupID uuid.UUID) ([]*receipt.Receipt, error) {
	query := `SELECT ` + selectReceiptColumns + `
		FROM receipts
		WHERE user_id = $1 AND receipt_group_id = $2
		ORDER BY created_at DESC, id`

	var rows []*receipt.Receipt
	if err := s.db.SelectContext(ctx, &rows, query, userID, groupID); err != nil {
		return nil, fmt.Errorf("listing receipt group: %w", err)
	}

	return rows, nil
}

func (s *Store) GetReceipt(ctx context.Context, userID, id uuid.UUID) (*receipt.Receipt, error) {
	query := `SELECT ` + selectReceiptColumns + `
		FROM receipts
		WHERE user_id = $1 AND id = $2`

	var r receipt.Receipt
	if err := s.db.GetContext(ctx, &r, query, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, receipt.ErrNotFound
		}

		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	return &r, nil
}

// updateStatement builds the UPDATE for a patch. ok is false when the patch
// touches no column.
func updateStatement(userID, id uuid.UUID, patch receipt.Patch) (query string, args []any, ok bool) {
	var sets []string

	argIdx := 1

	set := func(column string, value any, nullable bool) {
		if nullable {
			sets = append(sets, fmt.Sprintf("%s = NULLIF($%d, '')", column, argIdx))
		} else {
			sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		}

		args = append(args, value)
		argIdx++
	}

	if patch.ProductDescription != nil {
		set("product_description", strings.TrimSpace(*patch.ProductDescription), false)
	}

	if patch.BrandName != nil {
		set("brand_name", strings.TrimSpace(*patch.BrandName), false)
	}

	if patch.ModelNumber != nil {
		set("model_number", strings.TrimSpace(*patch.ModelNumber), true)
	}

	if patch.StoreName != nil {
		set("store_name", strings.TrimSpace(*patch.StoreName), true)
	}

	if patch.PurchaseLocation != nil {
		set("purchase_location", strings.TrimSpace(*patch.PurchaseLocation), true)
	}

	if patch.PurchaseDate != nil {
		set("purchase_date", *patch.PurchaseDate, false)
	}

	if patch.Country != nil {
		set("country", strings.TrimSpace(*patch.Country), true)
	}

	if patch.Amount != nil {
		set("amount", *patch.Amount, false)

		// A standalone row's total is its amount; a group keeps the purchase total.
		sets = append(sets, fmt.Sprintf(
			"receipt_total = CASE WHEN is_group_receipt THEN receipt_total ELSE $%d END", argIdx-1))
	}

	if patch.WarrantyPeriod != nil {
		set("warranty_period", strings.TrimSpace(*patch.WarrantyPeriod), false)
	}

	if patch.ExtendedWarranty != nil {
		set("extended_warranty", strings.TrimSpace(*patch.ExtendedWarranty), true)
	}

	if len(sets) == 0 {
		return "", nil, false
	}

	query = fmt.Sprintf(`
		UPDATE receipts
		SET %s, updated_at = NOW()
		WHERE user_id = $%d AND id = $%d
		RETURNING `+selectReceiptColumns,
		strings.Join(sets, ", "), argIdx, argIdx+1)

	return query, append(args, userID, id), true
}

func (s *Store) UpdateReceipt(ctx context.Context, userID, id uuid.UUID, patch receipt.Patch) (*receipt.Receipt, error) {
	query, args, ok := updateStatement(userID, id, patch)
	if !ok {
		return s.GetReceipt(ctx, userID, id)
	}

	var r receipt.Receipt
	if err := s.db.GetContext(ctx, &r, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, receipt.ErrNotFound
		}

		return nil, err
	}

	return &r, nil
}

// DeleteReceipts removes either one row or every row of a group, always
// scoped to the user, and returns what was removed.
func (s *Store) DeleteReceipts(ctx context.Context, userID uuid.UUID, target receipt.DeleteTarget) ([]*receipt.Receipt, error) {
	var (
		column string
		id     uuid.UUID
	)

	switch {
	case target.RowID.Valid:
		column, id = "id", target.RowID.UUID
	case target.GroupID.Valid:
		column, id = "receipt_group_id", target.GroupID.UUID
	default:
		return nil, receipt.ErrInvalidInput
	}

	query := `DELETE FROM receipts
		WHERE user_id = $1 AND ` + column + ` = $2
		RETURNING ` + selectReceiptColumns

	var rows []*receipt.Receipt
	if err := s.db.SelectContext(ctx, &rows, query, userID, id); err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *Store) ImageInUse(ctx context.Context, userID uuid.UUID, path string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM receipts WHERE user_id = $1 AND image_path = $2)`

	var inUse bool
	if err := s.db.GetContext(ctx, &inUse, query, userID, path); err != nil {
		return false, fmt.Errorf("checking image references: %w", err)
	}

	return inUse, nil
}
