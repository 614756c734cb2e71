package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/client"
	exportapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/export"
	receiptapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/receipt"
	searchapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/search"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
)

const token = "token-123"

func signedIn() *auth.Session {
	s := auth.NewSession()
	s.SignIn(token, uuid.New())

	return s
}

func rows() []*receipt.Receipt {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	groupID := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	return []*receipt.Receipt{
		{
			ID: uuid.New(), ProductDescription: "Noise Cancelling Headphones", BrandName: "Sony", PurchaseDate: date,
			WarrantyPeriod: "2 years", Amount: decimal.NewNullDecimal(decimal.RequireFromString("399.99")),
			IsGroupReceipt: true, ReceiptGroupID: groupID,
		},
		{
			ID: uuid.New(), ProductDescription: "Phone Case", BrandName: "OtterBox", PurchaseDate: date,
			WarrantyPeriod: "1 year", IsGroupReceipt: true, ReceiptGroupID: groupID,
		},
		{
			ID: uuid.New(), ProductDescription: "Blender", BrandName: "Vitamix", PurchaseDate: date, WarrantyPeriod: "7 years",
		},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_Grouped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/receipts/", r.URL.Path)

		views := make([]receiptapi.ViewResponse, 0)
		for _, v := range receipt.GroupRows(rows()) {
			views = append(views, receiptapi.ToViewResponse(v))
		}

		writeJSON(t, w, http.StatusOK, views)
	}))
	defer srv.Close()

	c := client.New(srv.URL+"/", signedIn())

	views, err := c.Grouped(context.Background())
	require.NoError(t, err)

	require.Len(t, views, 2)
	assert.Equal(t, receipt.ViewGroup, views[0].Type)
	assert.Equal(t, 2, views[0].ProductCount)
	assert.Len(t, c.Cached(), 3)
}

func TestClient_ExpiresSessionOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	session := signedIn()

	var states []auth.SessionState
	unsubscribe := session.Subscribe(func(s auth.SessionState) { states = append(states, s) })
	defer unsubscribe()

	c := client.New(srv.URL, session)

	_, err := c.Rows(context.Background())
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	assert.Equal(t, auth.StateExpired, session.State())
	assert.Equal(t, []auth.SessionState{auth.StateExpired}, states)

	// Without a token nothing is sent.
	_, err = c.Rows(context.Background())
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestClient_Search(t *testing.T) {
	type testCase struct {
		name         string
		handler      func(t *testing.T, w http.ResponseWriter, r *http.Request)
		preload      bool
		query        string
		wantTier     search.Tier
		wantFallback bool
		wantTitles   []string
		wantErr      bool
		wantAPIError int
	}

	tests := []testCase{
		{
			name: "Remote",
			handler: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				var req searchapi.Request
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "headphones", req.Query)
				assert.Equal(t, search.DefaultLimit, req.Limit)

				writeJSON(t, w, http.StatusOK, searchapi.Response{
					Results: []search.Result{{Title: "Noise Cancelling Headphones", RelevanceScore: 0.91}},
					Tier:    search.TierVector,
				})
			},
			query:      "  headphones ",
			wantTier:   search.TierVector,
			wantTitles: []string{"Noise Cancelling Headphones"},
		},
		{
			name: "ServerErrorFallsBackToLoadedRows",
			handler: func(t *testing.T, w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, http.StatusInternalServerError, searchapi.ErrorResponse{Error: "search failed"})
			},
			preload:      true,
			query:        "PHONE",
			wantTier:     search.TierLocal,
			wantFallback: true,
			wantTitles:   []string{"Noise Cancelling Headphones", "Phone Case"},
		},
		{
			name: "ServerErrorWithoutLoadedRows",
			handler: func(t *testing.T, w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, http.StatusBadGateway, searchapi.ErrorResponse{Error: "bad gateway"})
			},
			query:   "phone",
			wantErr: true,
		},
		{
			name: "ClientErrorDoesNotFallBack",
			handler: func(t *testing.T, w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, http.StatusForbidden, searchapi.ErrorResponse{Error: "userId does not match the authenticated user"})
			},
			preload:      true,
			query:        "phone",
			wantErr:      true,
			wantAPIError: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/v1/receipts/items" {
					writeJSON(t, w, http.StatusOK, receiptapi.ToResponseList(rows()))
					return
				}

				tt.handler(t, w, r)
			}))
			defer srv.Close()

			c := client.New(srv.URL, signedIn())

			if tt.preload {
				_, err := c.Rows(context.Background())
				require.NoError(t, err)
			}

			out, err := c.Search(context.Background(), tt.query, 0)

			if tt.wantErr {
				require.Error(t, err)

				if tt.wantAPIError != 0 {
					var apiErr *client.APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantAPIError, apiErr.StatusCode)
					assert.Equal(t, "userId does not match the authenticated user", apiErr.Message)
				} else {
					assert.ErrorIs(t, err, search.ErrSearchFailed)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, out.Tier)
			assert.Equal(t, tt.wantFallback, out.Fallback)

			titles := make([]string, 0, len(out.Results))
			for _, r := range out.Results {
				titles = append(titles, r.Title)
			}

			assert.Equal(t, tt.wantTitles, titles)
		})
	}
}

func TestClient_SearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, receiptapi.ToResponseList(rows()))
	}))

	c := client.New(srv.URL, signedIn())

	_, err := c.Rows(context.Background())
	require.NoError(t, err)

	srv.Close()

	out, err := c.Search(context.Background(), "vitamix", 5)
	require.NoError(t, err)

	assert.True(t, out.Fallback)
	assert.Equal(t, search.TierLocal, out.Tier)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Blender", out.Results[0].Title)
	assert.Equal(t, "Offline, showing matches from loaded receipts", out.Message())
}

func TestClient_SearchBlankQuery(t *testing.T) {
	c := client.New("http://127.0.0.1:0", signedIn())

	_, err := c.Search(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, search.ErrInvalidQuery)
}

func TestClient_Mutations(t *testing.T) {
	id := uuid.New()
	groupID := uuid.New()

	var calls []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/api/v1/receipts/groups/"):
			var req receiptapi.PatchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Best Buy", *req.StoreName)

			writeJSON(t, w, http.StatusOK, []receiptapi.Response{{ID: uuid.New(), StoreName: "Best Buy"}, {ID: uuid.New(), StoreName: "Best Buy"}})
		case r.Method == http.MethodPatch:
			var req receiptapi.PatchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.PurchaseDate)
			assert.Equal(t, "2024-03-01", *req.PurchaseDate)

			writeJSON(t, w, http.StatusOK, receiptapi.Response{ID: id, WarrantyPeriod: "3 years"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/receipts/"+id.String():
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			http.Error(w, "receipt not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL, signedIn())
	ctx := context.Background()

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	updated, err := c.Update(ctx, id, receipt.Patch{PurchaseDate: &date})
	require.NoError(t, err)
	assert.Equal(t, "3 years", updated.WarrantyPeriod)

	store := "Best Buy"
	group, err := c.UpdateGroup(ctx, groupID, receipt.Patch{StoreName: &store})
	require.NoError(t, err)
	assert.Len(t, group, 2)

	require.NoError(t, c.Delete(ctx, receipt.DeleteRow(id)))

	err = c.Delete(ctx, receipt.DeleteGroup(groupID))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	assert.ErrorIs(t, c.Delete(ctx, receipt.DeleteTarget{}), receipt.ErrInvalidInput)

	assert.Equal(t, []string{
		"PATCH /api/v1/receipts/" + id.String(),
		"PATCH /api/v1/receipts/groups/" + groupID.String(),
		"DELETE /api/v1/receipts/" + id.String(),
		"DELETE /api/v1/receipts/groups/" + groupID.String(),
	}, calls)
}

func TestClient_ImportAndExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/import/":
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()

			content, _ := io.ReadAll(file)
			assert.Equal(t, "receipts.csv", header.Filename)
			assert.Contains(t, string(content), "product_description")

			writeJSON(t, w, http.StatusCreated, map[string]any{"receipts": 1, "imported": 1, "rows": []any{}, "errors": []any{}})
		case "/api/v1/export/download":
			var req exportapi.Request
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"expired"}, req.Statuses)

			w.Header().Set("Content-Type", "application/zip")
			_, _ = w.Write([]byte("PK-zip"))
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL, signedIn())
	ctx := context.Background()

	res, err := c.Import(ctx, "receipts.csv", strings.NewReader("product_description,brand_name\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	var buf bytes.Buffer
	require.NoError(t, c.ExportArchive(ctx, exportapi.Request{Statuses: []string{"expired"}}, &buf))
	assert.Equal(t, "PK-zip", buf.String())
}
