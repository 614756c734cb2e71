package embedding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/smartreceipts/internal/embedding"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

func TestContent(t *testing.T) {
	type testCase struct {
		name string
		row  *receipt.Receipt
		want string
	}

	tests := []testCase{
		{
			name: "AllFields",
			row: &receipt.Receipt{
				ProductDescription: "Wireless Headphones",
				BrandName:          "Sony",
				ModelNumber:        "WH-1000XM5",
				StoreName:          "Best Buy",
				PurchaseLocation:   "Austin, TX",
				WarrantyPeriod:     "1 year",
				Country:            "US",
			},
			want: "Wireless Headphones Sony WH-1000XM5 Best Buy Austin, TX 1 year",
		},
		{
			name: "SkipsEmptyAndCollapsesSpaces",
			row: &receipt.Receipt{
				ProductDescription: "  Robot   Vacuum ",
				BrandName:          "iRobot",
				WarrantyPeriod:     "2 years",
			},
			want: "Robot Vacuum iRobot 2 years",
		},
		{
			name: "Blank",
			row:  &receipt.Receipt{ProductDescription: "   "},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, embedding.Content(tt.row))
		})
	}
}
