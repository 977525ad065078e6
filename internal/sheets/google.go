package sheets

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleWriter implements RowWriter against the Google Sheets API. The
// idempotency key lives in the last column of each row; upserts look the
// key up before appending.
type GoogleWriter struct{}

func NewGoogleWriter() *GoogleWriter {
	return &GoogleWriter{}
}

func (g *GoogleWriter) service(ctx context.Context, accessToken string) (*sheetsapi.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := sheetsapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("build sheets service: %w", err)
	}
	return svc, nil
}

// UpsertRows writes the document's rows exactly once. Existing rows for the
// document are updated in place; otherwise the rows are appended. Replays
// therefore never duplicate.
func (g *GoogleWriter) UpsertRows(ctx context.Context, accessToken, spreadsheetID string, set RowSet) error {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return err
	}

	existing, err := g.findRows(ctx, svc, spreadsheetID, set.SheetName, set.DocumentID)
	if err != nil {
		return err
	}

	if len(existing) == len(set.Rows) && len(existing) > 0 {
		// Update in place, preserving row positions.
		data := make([]*sheetsapi.ValueRange, 0, len(set.Rows))
		for i, row := range set.Rows {
			data = append(data, &sheetsapi.ValueRange{
				Range:  fmt.Sprintf("%s!A%d", set.SheetName, existing[i]),
				Values: [][]interface{}{toInterfaceRow(row)},
			})
		}
		_, err = svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, &sheetsapi.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data:             data,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update rows: %w", err)
		}
		return nil
	}

	if len(existing) > 0 {
		// Row count changed across a re-parse; the document's rows are
		// replaced wholesale by clearing the old ones first.
		for _, rowNum := range existing {
			_, err = svc.Spreadsheets.Values.Clear(spreadsheetID,
				fmt.Sprintf("%s!A%d:E%d", set.SheetName, rowNum, rowNum),
				&sheetsapi.ClearValuesRequest{}).Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("clear stale row: %w", err)
			}
		}
	}

	values := make([][]interface{}, 0, len(set.Rows))
	for _, row := range set.Rows {
		values = append(values, toInterfaceRow(row))
	}
	_, err = svc.Spreadsheets.Values.Append(spreadsheetID, set.SheetName+"!A:E",
		&sheetsapi.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	return nil
}

// findRows returns the 1-based row numbers whose last column holds the
// document id.
func (g *GoogleWriter) findRows(ctx context.Context, svc *sheetsapi.Service, spreadsheetID, sheetName, documentID string) ([]int, error) {
	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, sheetName+"!E:E").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read key column: %w", err)
	}

	var rows []int
	for i, row := range resp.Values {
		if len(row) > 0 {
			if s, ok := row[0].(string); ok && s == documentID {
				rows = append(rows, i+1)
			}
		}
	}
	return rows, nil
}

// CreateSpreadsheet creates the tenant's workbook with the Purchase, Sales
// and Other worksheets and writes header rows.
func (g *GoogleWriter) CreateSpreadsheet(ctx context.Context, accessToken, title string) (string, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	var sheetProps []*sheetsapi.Sheet
	for _, name := range SheetTitles {
		sheetProps = append(sheetProps, &sheetsapi.Sheet{
			Properties: &sheetsapi.SheetProperties{Title: name},
		})
	}

	created, err := svc.Spreadsheets.Create(&sheetsapi.Spreadsheet{
		Properties: &sheetsapi.SpreadsheetProperties{Title: title},
		Sheets:     sheetProps,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet: %w", err)
	}

	header := toInterfaceRow(SheetHeaders)
	for _, name := range SheetTitles {
		_, err = svc.Spreadsheets.Values.Update(created.SpreadsheetId,
			name+"!A1",
			&sheetsapi.ValueRange{Values: [][]interface{}{header}}).
			ValueInputOption("RAW").
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("write headers for %s: %w", name, err)
		}
	}

	return created.SpreadsheetId, nil
}

func toInterfaceRow(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
