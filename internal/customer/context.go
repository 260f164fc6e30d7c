package customer

import (
	"fmt"
	"sort"
	"strings"
)

// newCustomerLine stands in when a profile exists but has no usable data
// yet, so the model still knows it talks to a first-time customer.
const newCustomerLine = "Khách hàng mới, chưa có lịch sử."

const contextDivider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Context renders the customer block injected into agent prompts. Unknown
// IDs yield an empty string so plain session IDs cost nothing.
func (m *Manager) Context(customerID string) string {
	p, ok := m.Profile(customerID)
	if !ok {
		return ""
	}

	var b strings.Builder
	hasData := false

	if p.Info != (Info{}) {
		b.WriteString(fmt.Sprintf("- Tên: %s\n", orUnknown(p.Info.Name)))
		b.WriteString(fmt.Sprintf("- SĐT: %s\n", orUnknown(p.Info.Phone)))
		b.WriteString(fmt.Sprintf("- Địa chỉ: %s\n", orUnknown(p.Info.Address)))
		hasData = true
	}

	if len(p.Preferences) > 0 {
		keys := make([]string, 0, len(p.Preferences))
		for k := range p.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("- Sở thích: " + strings.Join(keys, ", ") + "\n")
		hasData = true
	}

	if n := len(p.Interactions); n > 0 {
		recent := p.Interactions
		if n > 3 {
			recent = recent[n-3:]
		}
		b.WriteString(fmt.Sprintf("\nLỊCH SỬ TƯƠNG TÁC GẦN ĐÂY (%d lần):\n", len(recent)))
		for _, it := range recent {
			b.WriteString(fmt.Sprintf("- %s: %s\n", it.Timestamp.Format("2006-01-02"), it.Agent))
		}
		hasData = true
	}

	if !hasData {
		return newCustomerLine
	}
	return "THÔNG TIN KHÁCH HÀNG:\n" + b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Chưa có"
	}
	return s
}

// AwarePrompt appends a customer context block to a system prompt so the
// model personalizes its reply.
func AwarePrompt(basePrompt, customerContext string) string {
	return fmt.Sprintf(`%s

%s
%s
%s

LƯU Ý: Sử dụng thông tin trên để cá nhân hóa câu trả lời, gọi tên khách hàng nếu có.`,
		basePrompt, contextDivider, customerContext, contextDivider)
}
