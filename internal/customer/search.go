package customer

import (
	"sort"
	"strings"
)

// Search finds profiles whose name, phone, platform ID or customer ID
// contains the query, case-insensitively. Results come back in customer ID
// order, capped at limit.
func (m *Manager) Search(query string, limit int) []Profile {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Profile
	for _, id := range ids {
		p := m.profiles[id]
		haystack := strings.ToLower(strings.Join([]string{
			p.CustomerID, p.PlatformID, p.Info.Name, p.Info.Phone, p.Info.Address,
		}, "\n"))
		if strings.Contains(haystack, query) {
			out = append(out, copyProfile(p))
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Stats summarizes the customer base.
type Stats struct {
	TotalCustomers  int      `json:"total_customers"`
	Platforms       []string `json:"platforms"`
	RecentCustomers int      `json:"recent_customers"`
}

// Stats counts customers, the platforms they arrived from, and how many
// were seen within the last week.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	platforms := make(map[string]bool)
	recent := 0
	cutoff := m.now().Add(-recentWindow)
	for _, p := range m.profiles {
		if p.Platform != "" {
			platforms[p.Platform] = true
		}
		if p.LastSeen.After(cutoff) {
			recent++
		}
	}

	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	return Stats{
		TotalCustomers:  len(m.profiles),
		Platforms:       names,
		RecentCustomers: recent,
	}
}
