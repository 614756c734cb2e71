package search_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/embedding"
	searchapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/search"
	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
)

func TestHandler_Search(t *testing.T) {
	userID := uuid.New()
	hit := search.Result{ID: uuid.New(), Title: "Headphones", Brand: "Sony"}

	type testCase struct {
		name       string
		body       string
		setup      func(embedder *embedding.MockEmbedder, store *search.MockStore)
		wantStatus int
		verify     func(t *testing.T, body []byte)
	}

	tests := []testCase{
		{
			name: "VectorTier",
			body: `{"query":"noise cancelling","limit":5}`,
			setup: func(embedder *embedding.MockEmbedder, store *search.MockStore) {
				embedder.EXPECT().Embed(gomock.Any(), "noise cancelling").Return([]float32{0.1, 0.2}, nil)
				store.EXPECT().MatchReceipts(gomock.Any(), userID, gomock.Any(), search.DefaultThreshold, 5).
					Return([]search.Result{{ID: hit.ID, Title: hit.Title, RelevanceScore: 0.82}}, nil)
			},
			wantStatus: http.StatusOK,
			verify: func(t *testing.T, body []byte) {
				var resp searchapi.Response
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.False(t, resp.Fallback)
				assert.Equal(t, search.TierVector, resp.Tier)
				assert.Empty(t, resp.Message)
				require.Len(t, resp.Results, 1)
				assert.InDelta(t, 0.82, resp.Results[0].RelevanceScore, 1e-9)
			},
		},
		{
			name: "TextFallback",
			body: `{"query":"sony"}`,
			setup: func(embedder *embedding.MockEmbedder, store *search.MockStore) {
				embedder.EXPECT().Embed(gomock.Any(), "sony").Return(nil, errors.New("rate limited"))
				store.EXPECT().SearchText(gomock.Any(), userID, "sony", search.DefaultLimit).Return([]search.Result{hit}, nil)
			},
			wantStatus: http.StatusOK,
			verify: func(t *testing.T, body []byte) {
				var resp searchapi.Response
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.True(t, resp.Fallback)
				assert.Equal(t, search.TierText, resp.Tier)
				assert.NotEmpty(t, resp.Message)
				require.Len(t, resp.Results, 1)
				assert.InDelta(t, search.TextScore, resp.Results[0].RelevanceScore, 1e-9)
			},
		},
		{
			name: "NoMatchesIsEmptyFallback",
			body: `{"query":"toaster"}`,
			setup: func(embedder *embedding.MockEmbedder, store *search.MockStore) {
				embedder.EXPECT().Embed(gomock.Any(), "toaster").Return([]float32{0.1}, nil)
				store.EXPECT().MatchReceipts(gomock.Any(), userID, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
				store.EXPECT().SearchText(gomock.Any(), userID, "toaster", gomock.Any()).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			verify: func(t *testing.T, body []byte) {
				assert.JSONEq(t, `{"results":[],"fallback":true,"tier":"text","message":"Smart search is unavailable, showing text matches"}`, string(body))
			},
		},
		{
			name:       "BlankQuery",
			body:       `{"query":"   "}`,
			setup:      func(*embedding.MockEmbedder, *search.MockStore) {},
			wantStatus: http.StatusBadRequest,
			verify: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), `"error"`)
			},
		},
		{
			name:       "OtherUser",
			body:       `{"query":"tv","userId":"` + uuid.NewString() + `"}`,
			setup:      func(*embedding.MockEmbedder, *search.MockStore) {},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "AllTiersFail",
			body: `{"query":"tv","userId":"` + userID.String() + `"}`,
			setup: func(embedder *embedding.MockEmbedder, store *search.MockStore) {
				embedder.EXPECT().Embed(gomock.Any(), "tv").Return(nil, errors.New("timeout"))
				store.EXPECT().SearchText(gomock.Any(), userID, "tv", gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
			verify: func(t *testing.T, body []byte) {
				assert.JSONEq(t, `{"error":"search failed"}`, string(body))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			embedder := embedding.NewMockEmbedder(ctrl)
			store := search.NewMockStore(ctrl)
			tt.setup(embedder, store)

			router := chi.NewRouter()
			router.Route("/search", searchapi.NewHandler(search.NewService(embedder, store, nil)).Routes)

			req := httptest.NewRequest(http.MethodPost, "/search/", strings.NewReader(tt.body))
			req = req.WithContext(auth.WithUserID(req.Context(), userID))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.verify != nil {
				tt.verify(t, rec.Body.Bytes())
			}
		})
	}
}
