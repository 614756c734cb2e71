package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
)

func strategy(ctrl *gomock.Controller, tier search.Tier) *search.MockStrategy {
	s := search.NewMockStrategy(ctrl)
	s.EXPECT().Tier().Return(tier).AnyTimes()

	return s
}

func TestChain_Search(t *testing.T) {
	hit := []search.Result{{ID: uuid.New(), Title: "Camera", RelevanceScore: 0.91}}
	query := search.Query{Text: "camera", UserID: uuid.New()}

	type testCase struct {
		name         string
		setupMock    func(vector, text *search.MockStrategy)
		wantTier     search.Tier
		wantFallback bool
		wantLen      int
		wantErr      error
	}

	tests := []testCase{
		{
			name: "FirstTierAnswers",
			setupMock: func(vector, text *search.MockStrategy) {
				vector.EXPECT().Search(gomock.Any(), gomock.Any()).Return(hit, nil)
			},
			wantTier: search.TierVector,
			wantLen:  1,
		},
		{
			name: "FirstTierErrors",
			setupMock: func(vector, text *search.MockStrategy) {
				vector.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("embedding failed"))
				text.EXPECT().Search(gomock.Any(), gomock.Any()).Return(hit, nil)
			},
			wantTier:     search.TierText,
			wantFallback: true,
			wantLen:      1,
		},
		{
			name: "NothingAnywhereIsEmptyFallback",
			setupMock: func(vector, text *search.MockStrategy) {
				vector.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]search.Result{}, nil)
				text.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, nil)
			},
			wantTier:     search.TierText,
			wantFallback: true,
			wantLen:      0,
		},
		{
			name: "EveryTierErrors",
			setupMock: func(vector, text *search.MockStrategy) {
				vector.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("rpc failed"))
				text.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			wantErr: search.ErrSearchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			vector := strategy(ctrl, search.TierVector)
			text := strategy(ctrl, search.TierText)
			tt.setupMock(vector, text)

			got, err := search.NewChain(nil, vector, text).Search(context.Background(), query)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantFallback, got.Fallback)
			assert.NotNil(t, got.Results)
			assert.Len(t, got.Results, tt.wantLen)
		})
	}
}

func TestChain_Search_ErrorNamesEveryTier(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vector := strategy(ctrl, search.TierVector)
	vector.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("rpc failed"))

	local := strategy(ctrl, search.TierLocal)
	local.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, search.ErrNoLocalData)

	_, err := search.NewChain(nil, vector, local).Search(context.Background(), search.Query{Text: "tv"})
	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrNoLocalData)
	assert.Contains(t, err.Error(), "vector tier: rpc failed")
}

func TestChain_Search_NormalizesQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vector := strategy(ctrl, search.TierVector)
	vector.EXPECT().
		Search(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q search.Query) ([]search.Result, error) {
			assert.Equal(t, "sony", q.Text)
			assert.Equal(t, search.MaxLimit, q.Limit)
			assert.Equal(t, search.DefaultThreshold, q.Threshold)

			return []search.Result{{ID: uuid.New()}}, nil
		})

	_, err := search.NewChain(nil, vector).Search(context.Background(), search.Query{Text: "  sony ", Limit: 500})
	require.NoError(t, err)

	_, err = search.NewChain(nil, vector).Search(context.Background(), search.Query{Text: "   "})
	assert.ErrorIs(t, err, search.ErrInvalidQuery)
}
