package sheets

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedMapper() *Mapper {
	m := NewMapper()
	m.now = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }
	return m
}

func TestMapInvoiceSale(t *testing.T) {
	m := fixedMapper()
	doc := &models.Document{
		ID:       uuid.New(),
		Category: models.CategorySale,
		Fields: models.FieldMap{
			"document_type": models.String("invoice"),
			"date":          models.String("2025-05-01"),
			"customer_name": models.String("Globex Inc"),
			"total_amount":  models.Number(1250.50),
		},
	}

	set := m.Map(doc)
	assert.Equal(t, "Sales", set.SheetName)
	assert.Equal(t, doc.ID.String(), set.DocumentID)
	require.Len(t, set.Rows, 1)
	assert.Equal(t, []string{"2025-05-01", "Invoice", "Globex Inc", "1250.5", doc.ID.String()}, set.Rows[0])
}

func TestMapReceiptPurchase(t *testing.T) {
	m := fixedMapper()
	doc := &models.Document{
		ID:       uuid.New(),
		Category: models.CategoryPurchase,
		Fields: models.FieldMap{
			"document_type": models.String("receipt"),
			"store_info":    models.Object(models.FieldMap{"name": models.String("Corner Deli")}),
			"summary":       models.Object(models.FieldMap{"total_amount": models.Number(42.9)}),
		},
	}

	set := m.Map(doc)
	assert.Equal(t, "Purchase", set.SheetName)
	require.Len(t, set.Rows, 1)
	row := set.Rows[0]
	assert.Equal(t, "2025-06-15", row[0], "missing date falls back to today")
	assert.Equal(t, "Corner Deli", row[2])
	assert.Equal(t, "42.9", row[3])
}

func TestMapBankStatementExpandsTransactions(t *testing.T) {
	m := fixedMapper()
	doc := &models.Document{
		ID:       uuid.New(),
		Category: models.CategoryOthers,
		Fields: models.FieldMap{
			"document_type": models.String("bank statement"),
			"date":          models.String("2025-04-30"),
			"transactions": models.List(
				models.Object(models.FieldMap{
					"date":        models.String("2025-04-02"),
					"description": models.String("ATM withdrawal"),
					"debit":       models.Number(200),
				}),
				models.Object(models.FieldMap{
					"description": models.String("Salary credit"),
					"credit":      models.Number(5000),
				}),
			),
		},
	}

	set := m.Map(doc)
	assert.Equal(t, "Other", set.SheetName)
	require.Len(t, set.Rows, 2)

	assert.Equal(t, []string{"2025-04-02", "ATM withdrawal", "200", "0", doc.ID.String()}, set.Rows[0])
	// Missing per-transaction date falls back to the statement date.
	assert.Equal(t, []string{"2025-04-30", "Salary credit", "0", "5000", doc.ID.String()}, set.Rows[1])
}

func TestMapBankStatementWithoutTransactions(t *testing.T) {
	m := fixedMapper()
	doc := &models.Document{
		ID:       uuid.New(),
		Category: models.CategoryOthers,
		Fields: models.FieldMap{
			"document_type": models.String("bank statement"),
			"date":          models.String("2025-04-30"),
		},
	}

	set := m.Map(doc)
	require.Len(t, set.Rows, 1)
	assert.Equal(t, "Bank statement", set.Rows[0][1])
}

func TestMapFallbackDescriptions(t *testing.T) {
	m := fixedMapper()

	sale := &models.Document{ID: uuid.New(), Category: models.CategorySale,
		Fields: models.FieldMap{"document_type": models.String("invoice")}}
	assert.Equal(t, "Unknown Customer", m.Map(sale).Rows[0][2])

	purchase := &models.Document{ID: uuid.New(), Category: models.CategoryPurchase,
		Fields: models.FieldMap{"document_type": models.String("receipt")}}
	assert.Equal(t, "Unknown Vendor", m.Map(purchase).Rows[0][2])

	other := &models.Document{ID: uuid.New(), Category: models.CategoryOthers,
		Fields: models.FieldMap{"document_type": models.String("other")}}
	assert.Equal(t, "Unclassified Document", m.Map(other).Rows[0][2])
}

func TestMapAmountFallbacks(t *testing.T) {
	m := fixedMapper()
	doc := &models.Document{
		ID:       uuid.New(),
		Category: models.CategorySale,
		Fields: models.FieldMap{
			"document_type": models.String("bill"),
			"amount_due":    models.String("310.00"),
		},
	}
	assert.Equal(t, "310.00", m.Map(doc).Rows[0][3])

	empty := &models.Document{ID: uuid.New(), Category: models.CategorySale,
		Fields: models.FieldMap{"document_type": models.String("bill")}}
	assert.Equal(t, "0", m.Map(empty).Rows[0][3])
}
