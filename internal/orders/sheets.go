package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"sonagent/internal/logging"
)

// SheetsSource reads orders from Google Sheets with a service account.
// Staff keep one spreadsheet per day, so the spreadsheet ID arrives with
// each lookup request rather than being fixed at startup.
type SheetsSource struct {
	svc       *sheets.Service
	sheetName string
}

// NewSheetsSource authenticates against the Sheets API with the service
// account credentials file. An empty sheetName reads the first worksheet.
func NewSheetsSource(ctx context.Context, credentialsPath, sheetName string) (*SheetsSource, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init sheets client: %w", err)
	}
	logging.Orders("google sheets client connected (credentials: %s)", credentialsPath)
	return &SheetsSource{svc: svc, sheetName: sheetName}, nil
}

// Name identifies the source in logs and the health endpoint.
func (s *SheetsSource) Name() string { return "google_sheets" }

// Fetch pulls all rows of the worksheet and normalizes them into Orders.
func (s *SheetsSource) Fetch(ctx context.Context, spreadsheetID string) ([]Order, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	readRange := "A:Z"
	if s.sheetName != "" {
		readRange = fmt.Sprintf("'%s'!A:Z", s.sheetName)
	}

	logging.OrdersDebug("reading spreadsheet %s range %s", spreadsheetID, readRange)
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet %s: %w", spreadsheetID, err)
	}
	if len(resp.Values) < 2 {
		return nil, nil
	}

	headers := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		headers[i] = cellString(cell)
	}
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}

	return ParseRecords(headers, rows), nil
}

// cellString renders a sheet cell without float artifacts: the Values API
// decodes bare numbers as float64, and "800000" must not come back as
// "8e+05".
func cellString(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}
