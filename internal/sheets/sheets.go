package sheets

import (
	"context"
)

// SheetTitles are the worksheets created on connect.
var SheetTitles = []string{"Purchase", "Sales", "Other"}

// SheetHeaders is the header row written to each worksheet; a trailing
// Document ID column carries the idempotency key.
var SheetHeaders = []string{"Date", "Type", "Description", "Total Amount", "Document ID"}

// RowSet is the spreadsheet payload for one document: the target worksheet
// plus one or more value rows (bank statements expand to one row per
// transaction). DocumentID keys the upsert.
type RowSet struct {
	DocumentID string
	SheetName  string
	Rows       [][]string
}

// RowWriter is the spreadsheet provider collaborator. UpsertRows must be
// idempotent in DocumentID: replaying the same RowSet leaves exactly one
// copy of its rows in the sheet.
type RowWriter interface {
	UpsertRows(ctx context.Context, accessToken, spreadsheetID string, set RowSet) error
	CreateSpreadsheet(ctx context.Context, accessToken, title string) (spreadsheetID string, err error)
}
