package logging

import (
	"testing"
	"time"
)

func BenchmarkAuditAgent(b *testing.B) {
	resetLogging()
	defer resetLogging()
	if err := Initialize(b.TempDir(), "info"); err != nil {
		b.Fatal(err)
	}
	if err := InitAudit(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		AuditAgent("consulting", "sess-bench", "req-bench", 120, 250*time.Millisecond, nil)
	}
}

func BenchmarkAuditDropped(b *testing.B) {
	resetLogging()
	defer resetLogging()

	// The no-op path runs on every request when file logging is off.
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		AuditAgent("consulting", "sess-bench", "req-bench", 120, 250*time.Millisecond, nil)
	}
}
