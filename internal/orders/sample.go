package orders

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"sonagent/internal/logging"
)

var sampleHeader = []string{
	"order_code", "customer_name", "phone", "address", "product",
	"quantity", "total", "status", "created_at", "updated_at",
}

var sampleRows = [][]string{
	{
		"20241129-N-789", "Nguyễn Văn A", "0123456789",
		"123 Đường ABC, Quận 1, TP.HCM", "Sơn dầu trắng 111 3kg",
		"2", "800000", "Đang giao hàng",
		"2024-11-29 10:00:00", "2024-11-29 14:00:00",
	},
	{
		"20241128-T-456", "Trần Thị B", "0987654321",
		"456 Đường XYZ, Quận 2, TP.HCM", "Sơn nước xanh 5kg",
		"1", "300000", "Đã giao hàng",
		"2024-11-28 09:00:00", "2024-11-28 16:00:00",
	},
}

// WriteSampleOrders creates a starter orders CSV so lookups have data to
// answer from before staff connect a real sheet.
func WriteSampleOrders(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create orders dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create orders file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(sampleHeader); err != nil {
		return fmt.Errorf("failed to write orders header: %w", err)
	}
	for _, row := range sampleRows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write sample order: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush orders file: %w", err)
	}

	logging.Orders("created sample orders file: %s", path)
	return nil
}
