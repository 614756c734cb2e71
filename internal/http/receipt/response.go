package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/warranty"
)

// Response is the wire form of one receipt row.
type Response struct {
	ID                 uuid.UUID                `json:"id"`
	ProductDescription string                   `json:"product_description"`
	BrandName          string                   `json:"brand_name"`
	ModelNumber        string                   `json:"model_number,omitempty"`
	StoreName          string                   `json:"store_name,omitempty"`
	PurchaseLocation   string                   `json:"purchase_location,omitempty"`
	PurchaseDate       time.Time                `json:"purchase_date"`
	Country            string                   `json:"country,omitempty"`
	Amount             decimal.NullDecimal      `json:"amount"`
	ReceiptTotal       decimal.NullDecimal      `json:"receipt_total"`
	WarrantyPeriod     string                   `json:"warranty_period"`
	ExtendedWarranty   string                   `json:"extended_warranty,omitempty"`
	WarrantyExpiry     time.Time                `json:"warranty_expiry"`
	ImageURL           string                   `json:"image_url,omitempty"`
	ImagePath          string                   `json:"image_path,omitempty"`
	ProcessingMethod   receipt.ProcessingMethod `json:"processing_method"`
	OCRConfidence      *float64                 `json:"ocr_confidence,omitempty"`
	IsGroupReceipt     bool                     `json:"is_group_receipt"`
	ReceiptGroupID     *uuid.UUID               `json:"receipt_group_id,omitempty"`
	Indexed            bool                     `json:"indexed"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

func ToResponse(r *receipt.Receipt) Response {
	resp := Response{
		ID:                 r.ID,
		ProductDescription: r.ProductDescription,
		BrandName:          r.BrandName,
		ModelNumber:        r.ModelNumber,
		StoreName:          r.StoreName,
		PurchaseLocation:   r.PurchaseLocation,
		PurchaseDate:       r.PurchaseDate,
		Country:            r.Country,
		Amount:             r.Amount,
		ReceiptTotal:       r.ReceiptTotal,
		WarrantyPeriod:     r.WarrantyPeriod,
		ExtendedWarranty:   r.ExtendedWarranty,
		WarrantyExpiry:     warranty.Expiry(r.PurchaseDate, r.WarrantyPeriod),
		ImageURL:           r.ImageURL,
		ImagePath:          r.ImagePath,
		ProcessingMethod:   r.ProcessingMethod,
		OCRConfidence:      r.OCRConfidence,
		IsGroupReceipt:     r.IsGroupReceipt,
		Indexed:            r.Indexed,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}

	if r.ReceiptGroupID.Valid {
		resp.ReceiptGroupID = &r.ReceiptGroupID.UUID
	}

	return resp
}

func ToResponseList(rows []*receipt.Receipt) []Response {
	out := make([]Response, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToResponse(r))
	}

	return out
}

// Receipt converts the wire form back into a row, for API clients.
func (r Response) Receipt() *receipt.Receipt {
	out := &receipt.Receipt{
		ID:                 r.ID,
		ProductDescription: r.ProductDescription,
		BrandName:          r.BrandName,
		ModelNumber:        r.ModelNumber,
		StoreName:          r.StoreName,
		PurchaseLocation:   r.PurchaseLocation,
		PurchaseDate:       r.PurchaseDate,
		Country:            r.Country,
		Amount:             r.Amount,
		ReceiptTotal:       r.ReceiptTotal,
		WarrantyPeriod:     r.WarrantyPeriod,
		ExtendedWarranty:   r.ExtendedWarranty,
		ImageURL:           r.ImageURL,
		ImagePath:          r.ImagePath,
		ProcessingMethod:   r.ProcessingMethod,
		OCRConfidence:      r.OCRConfidence,
		IsGroupReceipt:     r.IsGroupReceipt,
		Indexed:            r.Indexed,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}

	if r.ReceiptGroupID != nil {
		out.ReceiptGroupID = uuid.NullUUID{UUID: *r.ReceiptGroupID, Valid: true}
	}

	return out
}

// ViewResponse is the wire form of a library entry.
type ViewResponse struct {
	Type         receipt.ViewType    `json:"type"`
	ID           uuid.UUID           `json:"id"`
	Receipt      *Response           `json:"receipt,omitempty"`
	Items        []Response          `json:"items,omitempty"`
	ProductCount int                 `json:"product_count"`
	Total        decimal.NullDecimal `json:"total"`
	StoreName    string              `json:"store_name,omitempty"`
	PurchaseDate time.Time           `json:"purchase_date"`
	ImageURL     string              `json:"image_url,omitempty"`
	ImagePath    string              `json:"image_path,omitempty"`
}

func ToViewResponse(v receipt.View) ViewResponse {
	resp := ViewResponse{
		Type:         v.Type,
		ID:           v.ID(),
		ProductCount: v.ProductCount,
		Total:        v.Total(),
		StoreName:    v.StoreName(),
		PurchaseDate: v.PurchaseDate(),
		ImageURL:     v.ImageURL,
		ImagePath:    v.ImagePath,
	}

	if v.Type == receipt.ViewGroup {
		resp.Items = ToResponseList(v.Items)
	} else {
		r := ToResponse(v.Receipt)
		resp.Receipt = &r
	}

	return resp
}

// View converts the wire form back into a library entry, for API clients.
func (v ViewResponse) View() receipt.View {
	out := receipt.View{
		Type:         v.Type,
		ProductCount: v.ProductCount,
		ImageURL:     v.ImageURL,
		ImagePath:    v.ImagePath,
	}

	if v.Type == receipt.ViewGroup {
		out.GroupID = v.ID
		out.Items = make([]*receipt.Receipt, 0, len(v.Items))

		for _, item := range v.Items {
			out.Items = append(out.Items, item.Receipt())
		}

		return out
	}

	if v.Receipt != nil {
		out.Receipt = v.Receipt.Receipt()
	}

	return out
}

// SaveRequest carries the extracted fields of one physical receipt.
type SaveRequest struct {
	UserID           *uuid.UUID               `json:"user_id,omitempty"`
	Extracted        json.RawMessage          `json:"extracted"`
	ImageURL         string                   `json:"image_url,omitempty"`
	ImagePath        string                   `json:"image_path,omitempty"`
	ProcessingMethod receipt.ProcessingMethod `json:"processing_method,omitempty"`
	OCRConfidence    *float64                 `json:"ocr_confidence,omitempty"`
	ExtractedText    string                   `json:"extracted_text,omitempty"`
}

type SaveResponse struct {
	Success bool       `json:"success"`
	Rows    []Response `json:"rows"`
	GroupID *uuid.UUID `json:"group_id,omitempty"`
}

// PatchRequest is the wire form of receipt.Patch. Dates are YYYY-MM-DD.
type PatchRequest struct {
	ProductDescription *string          `json:"product_description,omitempty"`
	BrandName          *string          `json:"brand_name,omitempty"`
	ModelNumber        *string          `json:"model_number,omitempty"`
	StoreName          *string          `json:"store_name,omitempty"`
	PurchaseLocation   *string          `json:"purchase_location,omitempty"`
	PurchaseDate       *string          `json:"purchase_date,omitempty"`
	Country            *string          `json:"country,omitempty"`
	Amount             *decimal.Decimal `json:"amount,omitempty"`
	WarrantyPeriod     *string          `json:"warranty_period,omitempty"`
	ExtendedWarranty   *string          `json:"extended_warranty,omitempty"`
}

func NewPatchRequest(p receipt.Patch) PatchRequest {
	req := PatchRequest{
		ProductDescription: p.ProductDescription,
		BrandName:          p.BrandName,
		ModelNumber:        p.ModelNumber,
		StoreName:          p.StoreName,
		PurchaseLocation:   p.PurchaseLocation,
		Country:            p.Country,
		Amount:             p.Amount,
		WarrantyPeriod:     p.WarrantyPeriod,
		ExtendedWarranty:   p.ExtendedWarranty,
	}

	if p.PurchaseDate != nil {
		s := p.PurchaseDate.Format(time.DateOnly)
		req.PurchaseDate = &s
	}

	return req
}

func (p PatchRequest) Patch() (receipt.Patch, error) {
	patch := receipt.Patch{
		ProductDescription: p.ProductDescription,
		BrandName:          p.BrandName,
		ModelNumber:        p.ModelNumber,
		StoreName:          p.StoreName,
		PurchaseLocation:   p.PurchaseLocation,
		Country:            p.Country,
		Amount:             p.Amount,
		WarrantyPeriod:     p.WarrantyPeriod,
		ExtendedWarranty:   p.ExtendedWarranty,
	}

	if p.PurchaseDate != nil {
		date, err := receipt.ParseDate(*p.PurchaseDate)
		if err != nil {
			return receipt.Patch{}, fmt.Errorf("%w: purchase_date: %v", receipt.ErrInvalidInput, err)
		}

		patch.PurchaseDate = &date
	}

	return patch, nil
}

// ImageResponse describes an uploaded or re-signed receipt image.
type ImageResponse struct {
	Path      string    `json:"path"`
	SignedURL string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}
