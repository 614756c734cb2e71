package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/smartreceipts/internal/library"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/warranty"
)

const CSVFileName = "receipts.csv"

// Item is one exported row with its warranty state and the local copy of
// its receipt image, if it has one.
type Item struct {
	Receipt  *receipt.Receipt
	Warranty warranty.Info
	FilePath string
}

type Lister interface {
	List(ctx context.Context, userID uuid.UUID) ([]*receipt.Receipt, error)
}

type ImageOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
}

// Service prepares warranty-claim exports.
type Service struct {
	receipts Lister
	images   ImageOpener
}

// NewService creates a new export Service. images may be nil, in which case
// exports carry metadata only.
func NewService(receipts Lister, images ImageOpener) *Service {
	return &Service{receipts: receipts, images: images}
}

// Select returns the user's rows narrowed by the library filters, in the
// requested order, with their warranty state at now.
func (s *Service) Select(ctx context.Context, userID uuid.UUID, f library.Filters, key library.SortKey, now time.Time) ([]Item, error) {
	rows, err := s.receipts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	rows = library.Apply(rows, f, key, now)

	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, Item{
			Receipt:  r,
			Warranty: warranty.Evaluate(r.PurchaseDate, r.WarrantyPeriod, now),
		})
	}

	return items, nil
}

// Export selects rows like Select, copies each distinct receipt image into
// outputDir and writes receipts.csv next to them.
func (s *Service) Export(ctx context.Context, userID uuid.UUID, f library.Filters, key library.SortKey, outputDir string, now time.Time) ([]Item, error) {
	items, err := s.Select(ctx, userID, f, key, now)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	if s.images != nil {
		// Rows of one purchase share an image; it is copied once.
		copied := make(map[string]string)
		used := make(map[string]bool)

		for i := range items {
			r := items[i].Receipt
			if r.ImagePath == "" {
				continue
			}

			if p, ok := copied[r.ImagePath]; ok {
				items[i].FilePath = p
				continue
			}

			p, err := s.copyImage(ctx, r, outputDir, used)
			if err != nil {
				return nil, fmt.Errorf("copying image for receipt %s: %w", r.ID, err)
			}

			copied[r.ImagePath] = p
			items[i].FilePath = p
		}
	}

	if err := writeCSV(filepath.Join(outputDir, CSVFileName), items); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Service) copyImage(ctx context.Context, r *receipt.Receipt, dir string, used map[string]bool) (string, error) {
	body, contentType, err := s.images.Open(ctx, r.ImagePath)
	if err != nil {
		return "", err
	}
	defer body.Close()

	name := fileName(r, contentType)
	if used[name] {
		ext := filepath.Ext(name)
		name = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), r.ID.String()[:8], ext)
	}

	used[name] = true
	p := filepath.Join(dir, name)

	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return p, nil
}

// fileName builds YYYYMMDD_Brand_Description.ext for an image.
func fileName(r *receipt.Receipt, contentType string) string {
	ext := path.Ext(r.ImagePath)
	if ext == "" {
		ext = ".jpg"

		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}

	safe := func(s string) string {
		return strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
				return r
			}

			return '_'
		}, s)
	}

	return fmt.Sprintf("%s_%s_%s%s", r.PurchaseDate.Format("20060102"), safe(r.BrandName), safe(r.ProductDescription), strings.ToLower(ext))
}

var csvHeader = []string{
	"id", "product_description", "brand_name", "model_number", "store_name", "purchase_date",
	"amount", "receipt_total", "warranty_period", "warranty_expiry", "days_left", "status", "image_file",
}

func writeCSV(p string, items []Item) error {
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("creating %s: %w", CSVFileName, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("writing %s: %w", CSVFileName, err)
	}

	for _, item := range items {
		r := item.Receipt

		record := []string{
			r.ID.String(),
			r.ProductDescription,
			r.BrandName,
			r.ModelNumber,
			r.StoreName,
			r.PurchaseDate.Format(time.DateOnly),
			decimalString(r.Amount.Valid, r.Amount.Decimal.StringFixed(2)),
			decimalString(r.ReceiptTotal.Valid, r.ReceiptTotal.Decimal.StringFixed(2)),
			r.WarrantyPeriod,
			item.Warranty.Expiry.Format(time.DateOnly),
			fmt.Sprint(item.Warranty.DaysLeft),
			string(item.Warranty.Badge),
			filepath.Base(item.FilePath),
		}

		if item.FilePath == "" {
			record[len(record)-1] = ""
		}

		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing %s: %w", CSVFileName, err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", CSVFileName, err)
	}

	return nil
}

func decimalString(valid bool, s string) string {
	if !valid {
		return ""
	}

	return s
}

// Summary renders a plain-text overview suitable for a warranty claim email.
func Summary(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		r := item.Receipt

		amount := "-"
		if r.Amount.Valid {
			amount = r.Amount.Decimal.StringFixed(2)
		}

		file := "no image"
		if item.FilePath != "" {
			file = filepath.Base(item.FilePath)
		}

		fmt.Fprintf(&sb, "* %s | %s %s | %s | warranty until %s (%s) | %s\n",
			r.PurchaseDate.Format(time.DateOnly),
			r.BrandName,
			r.ProductDescription,
			amount,
			item.Warranty.Expiry.Format(time.DateOnly),
			item.Warranty.Badge,
			file,
		)
	}

	return sb.String()
}
