package customer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)
	return m
}

func TestGetOrCreateAssignsSequentialIDs(t *testing.T) {
	m := newTestManager(t)

	first, err := m.GetOrCreate("zalo", "123456789")
	require.NoError(t, err)
	assert.Equal(t, "cust_0001", first)

	second, err := m.GetOrCreate("facebook", "fb-42")
	require.NoError(t, err)
	assert.Equal(t, "cust_0002", second)

	// Same platform identity maps back to the same customer.
	again, err := m.GetOrCreate("zalo", "123456789")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 2, m.Count())
}

func TestProfilesSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")

	m, err := NewManager(path)
	require.NoError(t, err)
	id, err := m.GetOrCreate("zalo", "123456789")
	require.NoError(t, err)
	require.NoError(t, m.UpdateInfo(id, Info{Name: "Nguyễn Văn A", Phone: "0987654321"}))
	require.NoError(t, m.AddInteraction(id, "create_order", "đặt 2 lon sơn dầu"))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	p, ok := reloaded.Profile(id)
	require.True(t, ok)
	assert.Equal(t, "Nguyễn Văn A", p.Info.Name)
	assert.Equal(t, "zalo", p.Platform)
	require.Len(t, p.Interactions, 1)
	assert.Equal(t, "create_order", p.Interactions[0].Agent)

	// Mapping survives too.
	same, err := reloaded.GetOrCreate("zalo", "123456789")
	require.NoError(t, err)
	assert.Equal(t, id, same)
}

func TestUpdateInfoMergesNonEmptyFields(t *testing.T) {
	m := newTestManager(t)
	id, err := m.GetOrCreate("zalo", "1")
	require.NoError(t, err)

	require.NoError(t, m.UpdateInfo(id, Info{Name: "Trần Thị B", Phone: "0987654321"}))
	require.NoError(t, m.UpdateInfo(id, Info{Address: "456 Đường XYZ, Quận 2"}))

	p, _ := m.Profile(id)
	assert.Equal(t, "Trần Thị B", p.Info.Name)
	assert.Equal(t, "0987654321", p.Info.Phone)
	assert.Equal(t, "456 Đường XYZ, Quận 2", p.Info.Address)
}

func TestUpdateInfoUnknownCustomer(t *testing.T) {
	m := newTestManager(t)
	assert.Error(t, m.UpdateInfo("cust_9999", Info{Name: "ai đó"}))
}

func TestInteractionsCapped(t *testing.T) {
	m := newTestManager(t)
	id, err := m.GetOrCreate("zalo", "1")
	require.NoError(t, err)

	for i := 0; i < maxInteractions+10; i++ {
		require.NoError(t, m.AddInteraction(id, "consulting", fmt.Sprintf("hỏi lần %d", i)))
	}

	p, _ := m.Profile(id)
	require.Len(t, p.Interactions, maxInteractions)
	// Oldest entries were dropped.
	assert.Equal(t, "hỏi lần 10", p.Interactions[0].Summary)
}

func TestContextUnknownCustomerIsEmpty(t *testing.T) {
	m := newTestManager(t)
	assert.Equal(t, "", m.Context("session-abc-123"))
}

func TestContextNewCustomer(t *testing.T) {
	m := newTestManager(t)
	id, err := m.GetOrCreate("zalo", "1")
	require.NoError(t, err)
	assert.Equal(t, newCustomerLine, m.Context(id))
}

func TestContextRendersProfile(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Date(2024, 11, 29, 10, 0, 0, 0, time.UTC) }

	id, err := m.GetOrCreate("zalo", "1")
	require.NoError(t, err)
	require.NoError(t, m.UpdateInfo(id, Info{Name: "Nguyễn Văn A", Phone: "0987654321"}))
	require.NoError(t, m.SetPreference(id, "sơn 2K", "hỏi nhiều"))
	require.NoError(t, m.AddInteraction(id, "consulting", "hỏi giá sơn 2K"))

	ctx := m.Context(id)
	assert.Contains(t, ctx, "THÔNG TIN KHÁCH HÀNG:")
	assert.Contains(t, ctx, "- Tên: Nguyễn Văn A")
	assert.Contains(t, ctx, "- SĐT: 0987654321")
	assert.Contains(t, ctx, "- Địa chỉ: Chưa có")
	assert.Contains(t, ctx, "- Sở thích: sơn 2K")
	assert.Contains(t, ctx, "LỊCH SỬ TƯƠNG TÁC GẦN ĐÂY (1 lần):")
	assert.Contains(t, ctx, "- 2024-11-29: consulting")
}

func TestContextShowsLastThreeInteractions(t *testing.T) {
	m := newTestManager(t)
	id, err := m.GetOrCreate("zalo", "1")
	require.NoError(t, err)
	for _, agent := range []string{"phanloai", "consulting", "create_order", "check_order"} {
		require.NoError(t, m.AddInteraction(id, agent, "x"))
	}

	ctx := m.Context(id)
	assert.Contains(t, ctx, "GẦN ĐÂY (3 lần):")
	assert.NotContains(t, ctx, "phanloai")
	assert.Contains(t, ctx, "check_order")
}

func TestAwarePrompt(t *testing.T) {
	got := AwarePrompt("PROMPT GỐC", "THÔNG TIN KHÁCH HÀNG:\n- Tên: A")
	assert.Contains(t, got, "PROMPT GỐC")
	assert.Contains(t, got, "- Tên: A")
	assert.Contains(t, got, "LƯU Ý: Sử dụng thông tin trên để cá nhân hóa câu trả lời")
}

func TestSearch(t *testing.T) {
	m := newTestManager(t)
	a, err := m.GetOrCreate("zalo", "111")
	require.NoError(t, err)
	b, err := m.GetOrCreate("facebook", "222")
	require.NoError(t, err)
	require.NoError(t, m.UpdateInfo(a, Info{Name: "Nguyễn Văn A", Phone: "0987654321"}))
	require.NoError(t, m.UpdateInfo(b, Info{Name: "Trần Thị B"}))

	byName := m.Search("nguyễn", 10)
	require.Len(t, byName, 1)
	assert.Equal(t, a, byName[0].CustomerID)

	byPhone := m.Search("0987", 10)
	require.Len(t, byPhone, 1)

	byID := m.Search("cust_0002", 10)
	require.Len(t, byID, 1)
	assert.Equal(t, b, byID[0].CustomerID)

	assert.Empty(t, m.Search("không ai cả", 10))
	assert.Empty(t, m.Search("", 10))
}

func TestStats(t *testing.T) {
	m := newTestManager(t)

	_, err := m.GetOrCreate("zalo", "1")
	require.NoError(t, err)
	old, err := m.GetOrCreate("facebook", "2")
	require.NoError(t, err)

	// Age one profile past the recent window.
	m.mu.Lock()
	m.profiles[old].LastSeen = time.Now().Add(-8 * 24 * time.Hour)
	m.mu.Unlock()

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalCustomers)
	assert.Equal(t, []string{"facebook", "zalo"}, stats.Platforms)
	assert.Equal(t, 1, stats.RecentCustomers)
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.json")

	m, err := NewManager(path)
	require.NoError(t, err)
	_, err = m.GetOrCreate("zalo", "1")
	require.NoError(t, err)

	// No stray temp file, and the written file is valid JSON.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var fd fileData
	require.NoError(t, json.Unmarshal(raw, &fd))
	assert.Len(t, fd.Profiles, 1)
	assert.Equal(t, "cust_0001", fd.PlatformMapping["zalo:1"])
}
