// Package orders resolves customer order lookups against an order sheet.
// Orders live outside the service in a Google Sheet or a local CSV/XLSX
// export; every source is normalized into the same Order shape so the
// check-order agent can answer from one format.
package orders

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Order is one normalized order row. Sources carry Vietnamese or English
// column headers; both map onto these fields.
type Order struct {
	Code     string
	Customer string
	Phone    string
	Address  string
	Products string
	Quantity string
	Total    string
	Status   string
	Date     string
	Updated  string
	Notes    string
}

// DefaultStatus is assumed for rows whose status column is empty.
const DefaultStatus = "Đã đặt hàng"

// Canonical field names, also used to report which field a search matched.
const (
	FieldCode     = "order_code"
	FieldCustomer = "customer_name"
	FieldPhone    = "phone"
	FieldAddress  = "address"
	FieldProducts = "product"
	FieldQuantity = "quantity"
	FieldTotal    = "total"
	FieldStatus   = "status"
	FieldDate     = "created_at"
	FieldUpdated  = "updated_at"
	FieldNotes    = "notes"
)

var queryCleaner = regexp.MustCompile(`[\s\-._]`)

// NormalizeQuery lowercases and strips spaces, dashes, dots and underscores
// so "0123 456 789", "0123-456-789" and "order_code" all compare equal to
// their squashed forms.
func NormalizeQuery(text string) string {
	return queryCleaner.ReplaceAllString(strings.ToLower(text), "")
}

// headerAliases maps normalized column headers onto canonical fields. Keys
// are pre-normalized with NormalizeQuery, so "Mã đơn hàng" arrives here as
// "mãđơnhàng".
var headerAliases = map[string]string{
	"mãđơnhàng":    FieldCode,
	"mãđơn":        FieldCode,
	"ordercode":    FieldCode,
	"tên":          FieldCustomer,
	"tênkháchhàng": FieldCustomer,
	"kháchhàng":    FieldCustomer,
	"customername": FieldCustomer,
	"sốđiệnthoại":  FieldPhone,
	"sđt":          FieldPhone,
	"phone":        FieldPhone,
	"địachỉ":       FieldAddress,
	"address":      FieldAddress,
	"đơnhàng":      FieldProducts,
	"sảnphẩm":      FieldProducts,
	"product":      FieldProducts,
	"products":     FieldProducts,
	"sốlượng":      FieldQuantity,
	"quantity":     FieldQuantity,
	"tổngtiền":     FieldTotal,
	"total":        FieldTotal,
	"trạngthái":    FieldStatus,
	"status":       FieldStatus,
	"ngàyđặt":      FieldDate,
	"createdat":    FieldDate,
	"cậpnhật":      FieldUpdated,
	"ngàycậpnhật":  FieldUpdated,
	"updatedat":    FieldUpdated,
	"ghichú":       FieldNotes,
	"notes":        FieldNotes,
}

// CanonicalField resolves a raw column header to one of the Field constants,
// or "" when the column is not recognized.
func CanonicalField(header string) string {
	return headerAliases[NormalizeQuery(header)]
}

// ParseRecords turns a header row plus data rows into Orders. Unknown
// columns are ignored; short rows are padded. Rows with every recognized
// field empty are dropped.
func ParseRecords(headers []string, rows [][]string) []Order {
	fields := make([]string, len(headers))
	for i, h := range headers {
		fields[i] = CanonicalField(h)
	}

	var out []Order
	for _, row := range rows {
		var o Order
		empty := true
		for i, field := range fields {
			if field == "" || i >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[i])
			if value == "" {
				continue
			}
			empty = false
			switch field {
			case FieldCode:
				o.Code = value
			case FieldCustomer:
				o.Customer = value
			case FieldPhone:
				o.Phone = value
			case FieldAddress:
				o.Address = value
			case FieldProducts:
				o.Products = value
			case FieldQuantity:
				o.Quantity = value
			case FieldTotal:
				o.Total = value
			case FieldStatus:
				o.Status = value
			case FieldDate:
				o.Date = value
			case FieldUpdated:
				o.Updated = value
			case FieldNotes:
				o.Notes = value
			}
		}
		if empty {
			continue
		}
		if o.Status == "" {
			o.Status = DefaultStatus
		}
		out = append(out, o)
	}
	return out
}

const infoDivider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// FormatOrderInfo renders the boxed Vietnamese order summary that gets
// injected into the check-order system prompt and read back to the
// customer. Optional fields only appear when the source carried them.
func FormatOrderInfo(o Order) string {
	var b strings.Builder
	b.WriteString(infoDivider + "\n")
	b.WriteString("📦 THÔNG TIN ĐƠN HÀNG\n")
	b.WriteString(infoDivider + "\n\n")

	b.WriteString("🔖 Mã đơn: " + orNA(o.Code) + "\n")
	b.WriteString("👤 Khách hàng: " + orNA(o.Customer) + "\n")
	b.WriteString("📞 Số điện thoại: " + orNA(o.Phone) + "\n")
	b.WriteString("📍 Địa chỉ: " + orNA(o.Address) + "\n\n")

	b.WriteString("📦 Sản phẩm: " + orNA(o.Products) + "\n")
	if o.Quantity != "" {
		b.WriteString("🔢 Số lượng: " + o.Quantity + "\n")
	}
	if o.Total != "" {
		b.WriteString("💰 Tổng tiền: " + FormatAmount(o.Total) + " VNĐ\n")
	}
	b.WriteString("\n")

	b.WriteString("📊 Trạng thái: " + orNA(o.Status) + "\n")
	b.WriteString("📅 Ngày đặt: " + orNA(o.Date) + "\n")
	if o.Updated != "" {
		b.WriteString("🔄 Cập nhật: " + o.Updated + "\n")
	}
	if o.Notes != "" {
		b.WriteString("\n📝 Ghi chú: " + o.Notes + "\n")
	}

	b.WriteString("\n" + infoDivider)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// FormatAmount adds thousands separators to a plain numeric amount.
// Non-numeric values pass through unchanged.
func FormatAmount(s string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return s
	}
	return groupDigits(n)
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	if neg {
		return "-" + strings.Join(parts, ",")
	}
	return strings.Join(parts, ",")
}

// Stats summarizes an order sheet for health checks and the status command.
type Stats struct {
	TotalOrders  int            `json:"total_orders"`
	StatusCounts map[string]int `json:"status_breakdown"`
	TotalRevenue float64        `json:"total_revenue"`
}

// ComputeStats tallies orders by status and sums parseable totals.
func ComputeStats(list []Order) Stats {
	stats := Stats{StatusCounts: make(map[string]int)}
	stats.TotalOrders = len(list)
	for _, o := range list {
		if o.Status != "" {
			stats.StatusCounts[o.Status]++
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(o.Total), 64); err == nil {
			stats.TotalRevenue += v
		}
	}
	return stats
}

// String renders a one-line stats summary for logs.
func (s Stats) String() string {
	return fmt.Sprintf("%d orders, %.0f VNĐ", s.TotalOrders, s.TotalRevenue)
}
