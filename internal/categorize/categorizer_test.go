package categorize

import (
	"testing"

	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Pvt. Ltd.", "acme"},
		{"Acme Private Limited", "acme"},
		{"Globex, Inc.", "globex"},
		{"Initech LLC", "initech"},
		{"Umbrella Corp.", "umbrella"},
		{"  Stark   Industries  ", "stark industries"},
		{"Wayne & Co.", "wayne"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCompanyName(tt.in), tt.in)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Acme Pvt Ltd", "ACME Limited"))
	assert.GreaterOrEqual(t, Similarity("Acme Trading", "Acme"), 0.85)
	assert.Less(t, Similarity("Acme", "Globex"), 0.5)
	assert.Equal(t, 0.0, Similarity("", "Acme"))
}

func TestCategorize(t *testing.T) {
	c := New(0.75)

	tests := []struct {
		name         string
		fields       models.FieldMap
		company      string
		wantCategory string
	}{
		{
			name: "company issued the invoice: sale",
			fields: models.FieldMap{
				"vendor_name":   models.String("Acme Pvt Ltd"),
				"customer_name": models.String("Globex Inc"),
			},
			company:      "Acme Limited",
			wantCategory: models.CategorySale,
		},
		{
			name: "company received the invoice: purchase",
			fields: models.FieldMap{
				"vendor_name":   models.String("Globex Inc"),
				"customer_name": models.String("Acme Pvt Ltd"),
			},
			company:      "Acme Limited",
			wantCategory: models.CategoryPurchase,
		},
		{
			name: "no party matches: others",
			fields: models.FieldMap{
				"vendor_name":   models.String("Globex Inc"),
				"customer_name": models.String("Initech LLC"),
			},
			company:      "Acme Limited",
			wantCategory: models.CategoryOthers,
		},
		{
			name: "nested party objects are scanned",
			fields: models.FieldMap{
				"bill_to": models.Object(models.FieldMap{"name": models.String("Acme Pvt Ltd")}),
			},
			company:      "Acme",
			wantCategory: models.CategoryPurchase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, confidence := c.Categorize(tt.fields, tt.company)
			assert.Equal(t, tt.wantCategory, category)
			if tt.wantCategory != models.CategoryOthers {
				assert.GreaterOrEqual(t, confidence, 0.75)
			}
		})
	}
}

func TestDefaultThreshold(t *testing.T) {
	assert.InDelta(t, 0.85, New(0).threshold, 0.001)
	assert.InDelta(t, 0.9, New(0.9).threshold, 0.001)
}

func TestCategorizeEmptyInputs(t *testing.T) {
	c := New(0)

	category, confidence := c.Categorize(models.FieldMap{}, "Acme")
	assert.Equal(t, models.CategoryOthers, category)
	assert.Zero(t, confidence)

	category, _ = c.Categorize(models.FieldMap{"vendor_name": models.String("Acme")}, "")
	assert.Equal(t, models.CategoryOthers, category)
}
