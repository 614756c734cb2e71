package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	receiptapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/storage"
)

type fakeImages struct {
	uploaded string
	err      error
}

func (f *fakeImages) Upload(_ context.Context, userID uuid.UUID, fileName string, body io.Reader) (*storage.Object, error) {
	if f.err != nil {
		return nil, f.err
	}

	data, _ := io.ReadAll(body)
	f.uploaded = string(data)
	path := userID.String() + "/receipts/x-" + fileName

	return &storage.Object{Path: path, SignedURL: "https://signed/" + path, ContentType: "image/jpeg"}, nil
}

func (f *fakeImages) SignedURL(_ context.Context, path string) (string, error) {
	return "https://signed/" + path, nil
}

type fixture struct {
	repo   *receipt.MockRepository
	images *fakeImages
	router http.Handler
	userID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	repo := receipt.NewMockRepository(ctrl)
	images := &fakeImages{}

	h := receiptapi.NewHandler(receipt.NewService(repo, nil, nil), images)

	router := chi.NewRouter()
	router.Route("/receipts", h.Routes)

	return &fixture{repo: repo, images: images, router: router, userID: uuid.New()}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	req = req.WithContext(auth.WithUserID(req.Context(), f.userID))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)

	return bytes.NewReader(b)
}

func TestHandler_Save(t *testing.T) {
	single := json.RawMessage(`{"product_description":"MacBook Air","brand_name":"Apple",
		"purchase_date":"2024-01-15","amount":1299.99,"warranty_period":"1 year"}`)
	multi := json.RawMessage(`{"store_name":"Best Buy","purchase_date":"2024-01-15","total_amount":549.98,
		"products":[{"product_description":"Headphones","brand_name":"Sony","warranty_period":"2 years","amount":399.99},
		{"product_description":"Case","brand_name":"OtterBox","warranty_period":"1 year","amount":149.99}]}`)

	type testCase struct {
		name       string
		body       func(userID uuid.UUID) receiptapi.SaveRequest
		setup      func(repo *receipt.MockRepository)
		wantStatus int
		verify     func(t *testing.T, body []byte)
	}

	tests := []testCase{
		{
			name: "Single",
			body: func(uuid.UUID) receiptapi.SaveRequest {
				return receiptapi.SaveRequest{Extracted: single, ProcessingMethod: receipt.ProcessingAI}
			},
			setup: func(repo *receipt.MockRepository) {
				repo.EXPECT().InsertReceipts(gomock.Any(), gomock.Len(1)).Return(nil)
			},
			wantStatus: http.StatusCreated,
			verify: func(t *testing.T, body []byte) {
				var resp receiptapi.SaveResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.True(t, resp.Success)
				assert.Nil(t, resp.GroupID)
				require.Len(t, resp.Rows, 1)
				assert.Equal(t, receipt.ProcessingAI, resp.Rows[0].ProcessingMethod)
				assert.Equal(t, "2025-01-15", resp.Rows[0].WarrantyExpiry.Format(time.DateOnly))
			},
		},
		{
			name: "Multi",
			body: func(userID uuid.UUID) receiptapi.SaveRequest {
				return receiptapi.SaveRequest{UserID: &userID, Extracted: multi, ImagePath: userID.String() + "/receipts/a.jpg"}
			},
			setup: func(repo *receipt.MockRepository) {
				repo.EXPECT().InsertReceipts(gomock.Any(), gomock.Len(2)).Return(nil)
			},
			wantStatus: http.StatusCreated,
			verify: func(t *testing.T, body []byte) {
				var resp receiptapi.SaveResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				require.NotNil(t, resp.GroupID)
				require.Len(t, resp.Rows, 2)

				for _, row := range resp.Rows {
					assert.Equal(t, *resp.GroupID, *row.ReceiptGroupID)
					assert.True(t, row.ReceiptTotal.Decimal.Equal(decimal.RequireFromString("549.98")))
				}
			},
		},
		{
			name: "MissingFields",
			body: func(uuid.UUID) receiptapi.SaveRequest {
				return receiptapi.SaveRequest{Extracted: json.RawMessage(`{"product_description":"TV","purchase_date":"2024-01-01"}`)}
			},
			setup:      func(*receipt.MockRepository) {},
			wantStatus: http.StatusBadRequest,
			verify: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "brand_name")
			},
		},
		{
			name: "OtherUser",
			body: func(uuid.UUID) receiptapi.SaveRequest {
				other := uuid.New()
				return receiptapi.SaveRequest{UserID: &other, Extracted: single}
			},
			setup:      func(*receipt.MockRepository) {},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "ForeignImage",
			body: func(uuid.UUID) receiptapi.SaveRequest {
				return receiptapi.SaveRequest{Extracted: single, ImagePath: uuid.NewString() + "/receipts/a.jpg"}
			},
			setup:      func(*receipt.MockRepository) {},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "StoreFailure",
			body: func(uuid.UUID) receiptapi.SaveRequest {
				return receiptapi.SaveRequest{Extracted: single}
			},
			setup: func(repo *receipt.MockRepository) {
				repo.EXPECT().InsertReceipts(gomock.Any(), gomock.Any()).Return(errors.New("inserting receipts: connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
			verify: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "connection refused")
			},
		},
		{
			name: "StoreFailureMessageUnmodified",
			body: func(uuid.UUID) receiptapi.SaveRequest {
				return receiptapi.SaveRequest{Extracted: single}
			},
			setup: func(repo *receipt.MockRepository) {
				driverErr := errors.New(`ERROR: duplicate key value violates unique constraint "receipts_pkey" (SQLSTATE 23505)`)
				repo.EXPECT().InsertReceipts(gomock.Any(), gomock.Any()).Return(fmt.Errorf("inserting receipts: %w", driverErr))
			},
			wantStatus: http.StatusInternalServerError,
			verify: func(t *testing.T, body []byte) {
				assert.Equal(t, `ERROR: duplicate key value violates unique constraint "receipts_pkey" (SQLSTATE 23505)`+"\n", string(body))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f.repo)

			rec := f.do(httptest.NewRequest(http.MethodPost, "/receipts/", jsonBody(t, tt.body(f.userID))))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.verify != nil {
				tt.verify(t, rec.Body.Bytes())
			}
		})
	}
}

func TestHandler_RequiresUser(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/receipts/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func rows(userID uuid.UUID) []*receipt.Receipt {
	groupID := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	path := userID.String() + "/receipts/bestbuy.jpg"

	return []*receipt.Receipt{
		{
			ID: uuid.New(), UserID: userID, ProductDescription: "Headphones", BrandName: "Sony", PurchaseDate: date,
			WarrantyPeriod: "2 years", Amount: decimal.NewNullDecimal(decimal.RequireFromString("399.99")),
			IsGroupReceipt: true, ReceiptGroupID: groupID, ImagePath: path, ImageURL: "https://old",
		},
		{
			ID: uuid.New(), UserID: userID, ProductDescription: "Blender", BrandName: "Vitamix", PurchaseDate: date,
			WarrantyPeriod: "7 years", Amount: decimal.NewNullDecimal(decimal.RequireFromString("549.00")),
		},
		{
			ID: uuid.New(), UserID: userID, ProductDescription: "Case", BrandName: "OtterBox", PurchaseDate: date,
			WarrantyPeriod: "1 year", Amount: decimal.NewNullDecimal(decimal.RequireFromString("99.99")),
			IsGroupReceipt: true, ReceiptGroupID: groupID, ImagePath: path, ImageURL: "https://old",
		},
	}
}

func TestHandler_Grouped(t *testing.T) {
	f := newFixture(t)
	f.repo.EXPECT().ListReceipts(gomock.Any(), f.userID).Return(rows(f.userID), nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/receipts/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var views []receiptapi.ViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)

	assert.Equal(t, receipt.ViewGroup, views[0].Type)
	assert.Equal(t, 2, views[0].ProductCount)
	assert.Equal(t, "https://signed/"+f.userID.String()+"/receipts/bestbuy.jpg", views[0].ImageURL)
	assert.True(t, views[0].Total.Decimal.Equal(decimal.RequireFromString("499.98")))

	assert.Equal(t, receipt.ViewSingle, views[1].Type)
	require.NotNil(t, views[1].Receipt)
	assert.Equal(t, "Vitamix", views[1].Receipt.BrandName)

	// The wire form converts back into the same grouping.
	back := views[0].View()
	assert.Len(t, back.Items, 2)
	assert.Equal(t, views[0].ID, back.ID())
}

func TestHandler_Items(t *testing.T) {
	type testCase struct {
		name       string
		query      string
		wantStatus int
		wantBrands []string
	}

	tests := []testCase{
		{name: "SortedByValue", query: "sort=value-asc", wantStatus: http.StatusOK, wantBrands: []string{"OtterBox", "Sony", "Vitamix"}},
		{name: "BrandAndPrice", query: "brand=sony&brand=vitamix&max_price=400", wantStatus: http.StatusOK, wantBrands: []string{"Sony"}},
		{name: "Category", query: "category=appliances", wantStatus: http.StatusOK, wantBrands: []string{"Vitamix"}},
		{name: "BadStatus", query: "status=soon", wantStatus: http.StatusBadRequest},
		{name: "BadSort", query: "sort=random", wantStatus: http.StatusBadRequest},
		{name: "BadPrice", query: "min_price=cheap", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			if tt.wantStatus == http.StatusOK {
				f.repo.EXPECT().ListReceipts(gomock.Any(), f.userID).Return(rows(f.userID), nil)
			}

			rec := f.do(httptest.NewRequest(http.MethodGet, "/receipts/items?"+tt.query, nil))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusOK {
				return
			}

			var got []receiptapi.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

			brands := make([]string, 0, len(got))
			for _, r := range got {
				brands = append(brands, r.BrandName)
			}

			assert.Equal(t, tt.wantBrands, brands)
		})
	}
}

func TestHandler_GetUpdateDelete(t *testing.T) {
	id := uuid.New()

	t.Run("GetNotFound", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetReceipt(gomock.Any(), f.userID, id).Return(nil, receipt.ErrNotFound)

		rec := f.do(httptest.NewRequest(http.MethodGet, "/receipts/"+id.String(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("GetInvalidID", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(httptest.NewRequest(http.MethodGet, "/receipts/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UpdateEmptyPatch", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(httptest.NewRequest(http.MethodPatch, "/receipts/"+id.String(), strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Update", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetReceipt(gomock.Any(), f.userID, id).Return(&receipt.Receipt{ID: id}, nil)
		f.repo.EXPECT().UpdateReceipt(gomock.Any(), f.userID, id, gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ uuid.UUID, p receipt.Patch) (*receipt.Receipt, error) {
				require.NotNil(t, p.PurchaseDate)
				assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *p.PurchaseDate)
				assert.Equal(t, "3 years", *p.WarrantyPeriod)

				return &receipt.Receipt{ID: id, WarrantyPeriod: *p.WarrantyPeriod, PurchaseDate: *p.PurchaseDate}, nil
			})

		rec := f.do(httptest.NewRequest(http.MethodPatch, "/receipts/"+id.String(),
			strings.NewReader(`{"warranty_period":"3 years","purchase_date":"2024-03-01"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got receiptapi.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "2027-03-01", got.WarrantyExpiry.Format(time.DateOnly))
	})

	t.Run("UpdateGroupedRowPurchaseDate", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetReceipt(gomock.Any(), f.userID, id).
			Return(&receipt.Receipt{ID: id, IsGroupReceipt: true, ReceiptGroupID: uuid.NullUUID{UUID: uuid.New(), Valid: true}}, nil)

		rec := f.do(httptest.NewRequest(http.MethodPatch, "/receipts/"+id.String(),
			strings.NewReader(`{"purchase_date":"2024-03-01"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UpdateGroup", func(t *testing.T) {
		f := newFixture(t)
		groupID := uuid.New()
		members := []*receipt.Receipt{{ID: uuid.New()}, {ID: uuid.New()}}

		f.repo.EXPECT().ListGroup(gomock.Any(), f.userID, groupID).Return(members, nil)
		f.repo.EXPECT().UpdateReceipt(gomock.Any(), f.userID, gomock.Any(), gomock.Any()).
			Return(&receipt.Receipt{ID: uuid.New()}, nil).Times(2)

		rec := f.do(httptest.NewRequest(http.MethodPatch, "/receipts/groups/"+groupID.String(),
			strings.NewReader(`{"store_name":"Best Buy"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []receiptapi.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("DeleteRow", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().DeleteReceipts(gomock.Any(), f.userID, receipt.DeleteRow(id)).
			Return([]*receipt.Receipt{{ID: id}}, nil)

		rec := f.do(httptest.NewRequest(http.MethodDelete, "/receipts/"+id.String(), nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("DeleteGroupNotFound", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().DeleteReceipts(gomock.Any(), f.userID, receipt.DeleteGroup(id)).Return(nil, nil)

		rec := f.do(httptest.NewRequest(http.MethodDelete, "/receipts/groups/"+id.String(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func multipartFile(t *testing.T, name string, content []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)

	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestHandler_Images(t *testing.T) {
	t.Run("Upload", func(t *testing.T) {
		f := newFixture(t)
		body, contentType := multipartFile(t, "receipt.jpg", []byte("jpeg"))

		req := httptest.NewRequest(http.MethodPost, "/receipts/images", body)
		req.Header.Set("Content-Type", contentType)

		rec := f.do(req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "jpeg", f.images.uploaded)

		var got receiptapi.ImageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, strings.HasPrefix(got.Path, f.userID.String()+"/"))
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		f := newFixture(t)
		f.images.err = storage.ErrUnsupportedType
		body, contentType := multipartFile(t, "notes.txt", []byte("hello"))

		req := httptest.NewRequest(http.MethodPost, "/receipts/images", body)
		req.Header.Set("Content-Type", contentType)

		assert.Equal(t, http.StatusUnsupportedMediaType, f.do(req).Code)
	})

	t.Run("ResignOwnImage", func(t *testing.T) {
		f := newFixture(t)
		path := f.userID.String() + "/receipts/a.jpg"

		rec := f.do(httptest.NewRequest(http.MethodGet, "/receipts/images/url?path="+path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "https://signed/"+path)
	})

	t.Run("ResignForeignImage", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(httptest.NewRequest(http.MethodGet, "/receipts/images/url?path="+uuid.NewString()+"/receipts/a.jpg", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
