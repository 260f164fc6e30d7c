package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHistoryIsolatedPerAgent(t *testing.T) {
	m := NewManager(30)

	m.Add("sess-1", "consulting", RoleUser, "sơn 2K có chống xước không?")
	m.Add("sess-1", "consulting", RoleAssistant, "Dạ có ạ")
	m.Add("sess-1", "create_order", RoleUser, "đặt 2 thùng sơn trắng")

	consulting := m.History("sess-1", "consulting")
	require.Len(t, consulting, 2)
	assert.Equal(t, RoleUser, consulting[0].Role)
	assert.Equal(t, "sơn 2K có chống xước không?", consulting[0].Content)
	assert.False(t, consulting[0].Timestamp.IsZero())

	orders := m.History("sess-1", "create_order")
	require.Len(t, orders, 1)
	assert.Equal(t, "đặt 2 thùng sơn trắng", orders[0].Content)

	assert.Empty(t, m.History("sess-1", "phanloai"))
}

func TestHistoryReturnsCopy(t *testing.T) {
	m := NewManager(30)
	m.Add("sess-1", "consulting", RoleUser, "xin chào")

	got := m.History("sess-1", "consulting")
	got[0].Content = "mutated"

	again := m.History("sess-1", "consulting")
	assert.Equal(t, "xin chào", again[0].Content)
}

func TestAddTrimsToMaxHistory(t *testing.T) {
	m := NewManager(5)
	for i := 0; i < 12; i++ {
		m.Add("sess-1", "consulting", RoleUser, string(rune('a'+i)))
	}

	history := m.History("sess-1", "consulting")
	require.Len(t, history, 5)
	assert.Equal(t, "h", history[0].Content)
	assert.Equal(t, "l", history[4].Content)
}

func TestAddWithoutSessionIDDropped(t *testing.T) {
	m := NewManager(30)
	m.Add("", "consulting", RoleUser, "bỏ qua")
	assert.Zero(t, m.ActiveSessions())
	assert.Nil(t, m.History("", "consulting"))
}

func TestLazyAgentBucket(t *testing.T) {
	m := NewManager(30)

	// check_order is not a default bucket; it appears on first write.
	assert.Empty(t, m.History("sess-1", "check_order"))
	m.Add("sess-1", "check_order", RoleUser, "kiểm tra đơn 20241129-N-789")
	require.Len(t, m.History("sess-1", "check_order"), 1)

	info := m.Info("sess-1")
	assert.Contains(t, info.Agents, "check_order")
}

func TestClearSession(t *testing.T) {
	m := NewManager(30)
	m.Add("sess-1", "consulting", RoleUser, "hello")

	assert.True(t, m.Clear("sess-1"))
	assert.Zero(t, m.ActiveSessions())
	assert.False(t, m.Clear("sess-1"))
	assert.False(t, m.Clear("never-existed"))
}

func TestClearAgent(t *testing.T) {
	m := NewManager(30)
	m.Add("sess-1", "consulting", RoleUser, "hello")
	m.Add("sess-1", "create_order", RoleUser, "đặt hàng")

	assert.True(t, m.ClearAgent("sess-1", "consulting"))
	assert.Empty(t, m.History("sess-1", "consulting"))
	require.Len(t, m.History("sess-1", "create_order"), 1)

	assert.False(t, m.ClearAgent("sess-1", "nonexistent_agent"))
	assert.False(t, m.ClearAgent("no-such-session", "consulting"))
}

func TestInfo(t *testing.T) {
	m := NewManager(30)

	missing := m.Info("ghost")
	assert.False(t, missing.Exists)
	assert.Equal(t, "ghost", missing.SessionID)
	assert.Empty(t, missing.Agents)

	m.Add("sess-1", "consulting", RoleUser, "câu hỏi")
	m.Add("sess-1", "consulting", RoleAssistant, "câu trả lời")

	info := m.Info("sess-1")
	require.True(t, info.Exists)
	require.Contains(t, info.Agents, "consulting")
	assert.Equal(t, 2, info.Agents["consulting"].MessageCount)
	require.NotNil(t, info.Agents["consulting"].LastMessage)

	// Pre-created empty buckets report zero with no last message.
	require.Contains(t, info.Agents, "phanloai")
	assert.Zero(t, info.Agents["phanloai"].MessageCount)
	assert.Nil(t, info.Agents["phanloai"].LastMessage)
}

func TestCleanupOlderThan(t *testing.T) {
	m := NewManager(30)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	m.Add("old", "consulting", RoleUser, "cũ")

	m.now = func() time.Time { return base.Add(23 * time.Hour) }
	m.Add("fresh", "consulting", RoleUser, "mới")

	// Sessions created but never written to are kept.
	m.History("untouched", "consulting")

	m.now = func() time.Time { return base.Add(25 * time.Hour) }
	removed := m.CleanupOlderThan(24 * time.Hour)

	assert.Equal(t, 1, removed)
	assert.False(t, m.Info("old").Exists)
	assert.True(t, m.Info("fresh").Exists)
	assert.True(t, m.Info("untouched").Exists)
}

func TestRunCleanupStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(30)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RunCleanup(ctx, 10*time.Millisecond, time.Hour)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

type recordingArchiver struct {
	mu    sync.Mutex
	turns []struct {
		Session string
		Agent   string
		Seq     int
		Entry   Entry
	}
	err error
}

func (r *recordingArchiver) ArchiveTurn(sessionID, agent string, seq int, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, struct {
		Session string
		Agent   string
		Seq     int
		Entry   Entry
	}{sessionID, agent, seq, entry})
	return r.err
}

func TestArchiverReceivesTurns(t *testing.T) {
	m := NewManager(3)
	rec := &recordingArchiver{}
	m.SetArchiver(rec)

	for i := 0; i < 5; i++ {
		m.Add("sess-1", "consulting", RoleUser, "tin nhắn")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.turns, 5)
	// Sequence numbers keep counting past the in-memory trim point.
	assert.Equal(t, 1, rec.turns[0].Seq)
	assert.Equal(t, 5, rec.turns[4].Seq)
	assert.Equal(t, "consulting", rec.turns[0].Agent)
}

func TestArchiverErrorDoesNotBlock(t *testing.T) {
	m := NewManager(30)
	m.SetArchiver(&recordingArchiver{err: errors.New("disk full")})

	m.Add("sess-1", "consulting", RoleUser, "vẫn được lưu")
	require.Len(t, m.History("sess-1", "consulting"), 1)
}
