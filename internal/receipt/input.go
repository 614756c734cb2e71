package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Input is the extracted content of one physical receipt. It is either a
// SingleProductInput or a MultiProductInput; the shape is decided before the
// input reaches the Service.
type Input interface {
	isInput()
}

// Purchase holds the facts shared by every item bought on one receipt.
type Purchase struct {
	StoreName        string    `json:"store_name"`
	PurchaseLocation string    `json:"purchase_location"`
	PurchaseDate     time.Time `json:"purchase_date" validate:"required"`
	Country          string    `json:"country"`
}

// Product holds the per-item facts.
type Product struct {
	ProductDescription string              `json:"product_description" validate:"notblank"`
	BrandName          string              `json:"brand_name" validate:"notblank"`
	ModelNumber        string              `json:"model_number"`
	Amount             decimal.NullDecimal `json:"amount"`
	WarrantyPeriod     string              `json:"warranty_period" validate:"notblank"`
	ExtendedWarranty   string              `json:"extended_warranty"`
}

type SingleProductInput struct {
	Purchase Purchase `json:"purchase"`
	Product  Product  `json:"product"`
}

type MultiProductInput struct {
	Purchase Purchase  `json:"purchase"`
	Products []Product `json:"products" validate:"required,min=1,dive"`
	// Total is the declared receipt total. When absent the item amounts are summed.
	Total decimal.NullDecimal `json:"total_amount"`
}

func (SingleProductInput) isInput() {}
func (MultiProductInput) isInput()  {}

// ReceiptTotal returns the total every row of the group carries.
func (m MultiProductInput) ReceiptTotal() decimal.NullDecimal {
	if m.Total.Valid {
		return m.Total
	}

	var (
		sum   decimal.Decimal
		found bool
	)

	for _, p := range m.Products {
		if p.Amount.Valid {
			sum = sum.Add(p.Amount.Decimal)
			found = true
		}
	}

	return decimal.NullDecimal{Decimal: sum, Valid: found}
}

// ValidationError lists the offending fields of a rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}

	return "invalid receipt input: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}

		return tag
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// Validate checks required fields and amount positivity.
func Validate(in Input) error {
	fields := map[string]string{}

	switch v := in.(type) {
	case SingleProductInput:
		collect(fields, validate.Struct(v))
		checkAmount(fields, "amount", v.Product.Amount)
	case MultiProductInput:
		collect(fields, validate.Struct(v))

		for i, p := range v.Products {
			checkAmount(fields, fmt.Sprintf("products[%d].amount", i), p.Amount)
		}

		if v.Total.Valid && !v.Total.Decimal.IsPositive() {
			fields["total_amount"] = "must be positive"
		}
	default:
		return fmt.Errorf("%w: unsupported input %T", ErrInvalidInput, in)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	return nil
}

func collect(fields map[string]string, err error) {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return
	}

	for _, fe := range errs {
		fields[fieldName(fe.Namespace())] = validationMessage(fe)
	}
}

// fieldName drops the root type and the purchase/product wrappers so messages
// name the extracted field directly.
func fieldName(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		namespace = rest
	}

	namespace = strings.TrimPrefix(namespace, "purchase.")
	namespace = strings.TrimPrefix(namespace, "product.")

	return namespace
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	}

	return "is invalid"
}

func checkAmount(fields map[string]string, name string, amount decimal.NullDecimal) {
	if amount.Valid && !amount.Decimal.IsPositive() {
		fields[name] = "must be positive"
	}
}

type extractedProduct struct {
	ProductDescription string          `json:"product_description"`
	BrandName          string          `json:"brand_name"`
	ModelNumber        *string         `json:"model_number"`
	Amount             json.RawMessage `json:"amount"`
	WarrantyPeriod     string          `json:"warranty_period"`
	ExtendedWarranty   *string         `json:"extended_warranty"`
}

type extractedPayload struct {
	extractedProduct

	StoreName        string             `json:"store_name"`
	PurchaseLocation string             `json:"purchase_location"`
	PurchaseDate     string             `json:"purchase_date"`
	Country          string             `json:"country"`
	TotalAmount      json.RawMessage    `json:"total_amount"`
	ReceiptTotal     json.RawMessage    `json:"receipt_total"`
	Products         []extractedProduct `json:"products"`
}

// ParseExtracted turns the JSON produced by the field extraction step into an
// Input. A non-empty "products" array selects the multi-product shape; anything
// else is a single product.
func ParseExtracted(raw []byte) (Input, error) {
	var p extractedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	date, err := ParseDate(p.PurchaseDate)
	if err != nil {
		return nil, fmt.Errorf("%w: purchase_date: %v", ErrInvalidInput, err)
	}

	purchase := Purchase{
		StoreName:        strings.TrimSpace(p.StoreName),
		PurchaseLocation: strings.TrimSpace(p.PurchaseLocation),
		PurchaseDate:     date,
		Country:          strings.TrimSpace(p.Country),
	}

	if len(p.Products) == 0 {
		product, err := p.extractedProduct.toProduct("")
		if err != nil {
			return nil, err
		}

		return SingleProductInput{Purchase: purchase, Product: product}, nil
	}

	multi := MultiProductInput{
		Purchase: purchase,
		Products: make([]Product, 0, len(p.Products)),
	}

	for i, ep := range p.Products {
		product, err := ep.toProduct(p.WarrantyPeriod)
		if err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}

		multi.Products = append(multi.Products, product)
	}

	totalRaw := p.TotalAmount
	if isNullJSON(totalRaw) {
		totalRaw = p.ReceiptTotal
	}

	if multi.Total, err = ParseAmount(totalRaw); err != nil {
		return nil, fmt.Errorf("%w: total_amount: %v", ErrInvalidInput, err)
	}

	return multi, nil
}

func (ep extractedProduct) toProduct(fallbackWarranty string) (Product, error) {
	amount, err := ParseAmount(ep.Amount)
	if err != nil {
		return Product{}, fmt.Errorf("%w: amount: %v", ErrInvalidInput, err)
	}

	warranty := strings.TrimSpace(ep.WarrantyPeriod)
	if warranty == "" {
		warranty = strings.TrimSpace(fallbackWarranty)
	}

	return Product{
		ProductDescription: strings.TrimSpace(ep.ProductDescription),
		BrandName:          strings.TrimSpace(ep.BrandName),
		ModelNumber:        trimPtr(ep.ModelNumber),
		Amount:             amount,
		WarrantyPeriod:     warranty,
		ExtendedWarranty:   trimPtr(ep.ExtendedWarranty),
	}, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func trimPtr(s *string) string {
	if s == nil {
		return ""
	}

	return strings.TrimSpace(*s)
}
