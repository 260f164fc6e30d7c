package orders

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LocalSource reads orders from a CSV or XLSX export on disk. It stands in
// for the live sheet in offline deployments and tests.
type LocalSource struct {
	path string
}

// NewLocalSource builds a source over a local orders file. The format is
// picked by extension at fetch time.
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{path: path}
}

// Name identifies the source in logs and the health endpoint.
func (s *LocalSource) Name() string { return "local" }

// Path returns the backing file path.
func (s *LocalSource) Path() string { return s.path }

// Fetch reads and normalizes every order row. The spreadsheet ID is
// ignored; a local file is a single sheet.
func (s *LocalSource) Fetch(ctx context.Context, _ string) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".csv":
		return s.fetchCSV()
	case ".xlsx", ".xls":
		return s.fetchXLSX()
	default:
		return nil, fmt.Errorf("orders file %s must be .csv or .xlsx", s.path)
	}
}

func (s *LocalSource) fetchCSV() ([]Order, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open orders file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse orders csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}
	return ParseRecords(rows[0], rows[1:]), nil
}

func (s *LocalSource) fetchXLSX() ([]Order, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open orders workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("orders workbook %s has no sheets", s.path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, nil
	}
	return ParseRecords(rows[0], rows[1:]), nil
}
