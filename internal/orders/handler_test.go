package orders

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	orders  []Order
	err     error
	fetches int
}

func (f *fakeSource) Fetch(ctx context.Context, spreadsheetID string) ([]Order, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

func (f *fakeSource) Name() string { return "fake" }

func sampleOrderList() []Order {
	return []Order{
		{Code: "20241129-N-789", Customer: "Nguyễn Văn A", Phone: "0123456789", Status: "Đang giao hàng", Total: "800000"},
		{Code: "20241128-T-456", Customer: "Trần Thị B", Phone: "0987654321", Status: "Đã giao hàng", Total: "300000"},
	}
}

func TestFindByOrderCode(t *testing.T) {
	h := NewHandler(&fakeSource{orders: sampleOrderList()})

	match, err := h.Find(context.Background(), "20241129-N-789", "sheet-1")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "Nguyễn Văn A", match.Order.Customer)
	assert.Equal(t, FieldCode, match.Field)
}

func TestFindByPhoneIgnoresSeparators(t *testing.T) {
	h := NewHandler(&fakeSource{orders: sampleOrderList()})

	match, err := h.Find(context.Background(), "0987-654-321", "sheet-1")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "20241128-T-456", match.Order.Code)
	assert.Equal(t, FieldPhone, match.Field)
}

func TestFindByNameCaseInsensitive(t *testing.T) {
	h := NewHandler(&fakeSource{orders: sampleOrderList()})

	match, err := h.Find(context.Background(), "trần thị b", "sheet-1")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, FieldCustomer, match.Field)
}

func TestFindNoMatch(t *testing.T) {
	h := NewHandler(&fakeSource{orders: sampleOrderList()})

	match, err := h.Find(context.Background(), "Lê Văn Z", "sheet-1")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindEmptyQuery(t *testing.T) {
	h := NewHandler(&fakeSource{orders: sampleOrderList()})

	match, err := h.Find(context.Background(), "   ", "sheet-1")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindSourceError(t *testing.T) {
	h := NewHandler(&fakeSource{err: errors.New("sheet unreachable")})

	_, err := h.Find(context.Background(), "0987654321", "sheet-1")
	assert.Error(t, err)
}

func TestOrdersCachedPerSpreadsheet(t *testing.T) {
	src := &fakeSource{orders: sampleOrderList()}
	h := NewHandler(src)

	_, err := h.Orders(context.Background(), "sheet-1")
	require.NoError(t, err)
	_, err = h.Orders(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.fetches)

	// A different spreadsheet is its own cache entry.
	_, err = h.Orders(context.Background(), "sheet-2")
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetches)
}

func TestOrdersCacheExpires(t *testing.T) {
	src := &fakeSource{orders: sampleOrderList()}
	h := NewHandler(src)

	current := time.Now()
	h.now = func() time.Time { return current }

	_, err := h.Orders(context.Background(), "sheet-1")
	require.NoError(t, err)

	current = current.Add(cacheTTL + time.Second)
	_, err = h.Orders(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetches)
}

func TestInvalidate(t *testing.T) {
	src := &fakeSource{orders: sampleOrderList()}
	h := NewHandler(src)

	_, err := h.Orders(context.Background(), "sheet-1")
	require.NoError(t, err)
	h.Invalidate()
	_, err = h.Orders(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetches)
}

func TestHandlerStats(t *testing.T) {
	h := NewHandler(&fakeSource{orders: sampleOrderList()})

	stats, err := h.Stats(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.InDelta(t, 1100000, stats.TotalRevenue, 1e-9)
}

func TestLocalSourceCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "don_hang.csv")
	require.NoError(t, WriteSampleOrders(path))

	src := NewLocalSource(path)
	list, err := src.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "20241129-N-789", list[0].Code)
	assert.Equal(t, "Sơn dầu trắng 111 3kg", list[0].Products)
	assert.Equal(t, "Đã giao hàng", list[1].Status)
}

func TestLocalSourceXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "don_hang.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Mã đơn hàng", "Tên", "Số điện thoại", "Trạng thái"},
		{"20241129-N-789", "Nguyễn Văn A", "0123456789", "Đang giao hàng"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src := NewLocalSource(path)
	list, err := src.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Nguyễn Văn A", list[0].Customer)
	assert.Equal(t, "Đang giao hàng", list[0].Status)
}

func TestLocalSourceUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "don_hang.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewLocalSource(path).Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "800000", cellString(float64(800000)))
	assert.Equal(t, "0.5", cellString(float64(0.5)))
	assert.Equal(t, "Nguyễn Văn A", cellString("Nguyễn Văn A"))
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "true", cellString(true))
}
