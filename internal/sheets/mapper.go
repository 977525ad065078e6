package sheets

import (
	"strings"
	"time"

	"github.com/nikhilbhutani/paperledger/internal/models"
)

// Mapper turns a parsed document into its spreadsheet row set.
type Mapper struct {
	now func() time.Time
}

func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// Map picks the worksheet from the document's category and flattens its
// fields into rows. Bank statements produce one row per transaction.
func (m *Mapper) Map(doc *models.Document) RowSet {
	sheetName := sheetForCategory(doc.Category)
	docType := doc.Fields.String("document_type")

	if strings.Contains(docType, "bank") && strings.Contains(docType, "statement") {
		return RowSet{
			DocumentID: doc.ID.String(),
			SheetName:  sheetName,
			Rows:       m.bankStatementRows(doc),
		}
	}

	row := []string{
		m.extractDate(doc.Fields),
		capitalize(docType),
		m.extractDescription(doc.Fields, sheetName),
		m.extractTotalAmount(doc.Fields),
		doc.ID.String(),
	}
	return RowSet{
		DocumentID: doc.ID.String(),
		SheetName:  sheetName,
		Rows:       [][]string{row},
	}
}

func sheetForCategory(category string) string {
	switch category {
	case models.CategoryPurchase:
		return "Purchase"
	case models.CategorySale:
		return "Sales"
	default:
		return "Other"
	}
}

func (m *Mapper) bankStatementRows(doc *models.Document) [][]string {
	txs, ok := doc.Fields["transactions"]
	if !ok || txs.Kind != models.KindList || len(txs.List) == 0 {
		return [][]string{{
			m.extractDate(doc.Fields),
			"Bank statement",
			doc.Fields.FirstString("description"),
			doc.Fields.String("total_amount"),
			doc.ID.String(),
		}}
	}

	rows := make([][]string, 0, len(txs.List))
	for _, tx := range txs.List {
		if tx.Kind != models.KindObject {
			continue
		}
		date := tx.Object.String("date")
		if date == "" {
			date = m.extractDate(doc.Fields)
		}
		debit := tx.Object.String("debit")
		if debit == "" {
			debit = "0"
		}
		credit := tx.Object.String("credit")
		if credit == "" {
			credit = "0"
		}
		rows = append(rows, []string{
			date,
			tx.Object.String("description"),
			debit,
			credit,
			doc.ID.String(),
		})
	}
	return rows
}

func (m *Mapper) extractDate(fields models.FieldMap) string {
	if d := fields.String("date"); d != "" {
		return d
	}
	for _, path := range [][2]string{
		{"transaction_info", "date"},
		{"invoice_details", "date"},
		{"invoice_details", "invoice_date"},
	} {
		if v, ok := fields.Nested(path[0], path[1]); ok {
			if s := v.AsString(); s != "" {
				return s
			}
		}
	}
	if d := fields.String("invoice_date"); d != "" {
		return d
	}
	return m.now().Format("2006-01-02")
}

func (m *Mapper) extractDescription(fields models.FieldMap, sheetName string) string {
	switch sheetName {
	case "Sales":
		if s := fields.FirstString("customer_name", "client_name", "bill_to", "description"); s != "" {
			return s
		}
		if v, ok := fields.Nested("customer_info", "name"); ok && v.AsString() != "" {
			return v.AsString()
		}
		if v, ok := fields.Nested("bill_to", "name"); ok && v.AsString() != "" {
			return v.AsString()
		}
		return "Unknown Customer"
	case "Purchase":
		if s := fields.FirstString("vendor_name", "store_name", "merchant_name", "vendor", "description"); s != "" {
			return s
		}
		for _, path := range [][2]string{{"store_info", "name"}, {"supplier_info", "name"}, {"vendor", "name"}} {
			if v, ok := fields.Nested(path[0], path[1]); ok && v.AsString() != "" {
				return v.AsString()
			}
		}
		return "Unknown Vendor"
	default:
		if s := fields.FirstString("description", "name", "title"); s != "" {
			return s
		}
		return "Unclassified Document"
	}
}

func (m *Mapper) extractTotalAmount(fields models.FieldMap) string {
	if n, ok := fields.Number("total_amount"); ok {
		return models.Number(n).AsString()
	}
	for _, path := range [][2]string{
		{"summary", "total_amount"},
		{"summary", "amount_due"},
		{"invoice_details", "total"},
	} {
		if v, ok := fields.Nested(path[0], path[1]); ok {
			if s := v.AsString(); s != "" {
				return s
			}
		}
	}
	if s := fields.FirstString("amount_due", "grand_total", "balance_due", "amount"); s != "" {
		return s
	}
	return "0"
}

func capitalize(s string) string {
	if s == "" {
		return "Other"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
