package auditlog_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jray8/simple-server-go/auditlog"
)

func TestRecordAndFlush(t *testing.T) {
	l := auditlog.New()
	l.Record("JEFF", auditlog.KindConnect, "127.0.0.1:4000")
	l.Record("JEFF", auditlog.KindTransfer, "sent report.txt to ALICE")

	if got := l.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	var buf strings.Builder
	if err := l.Flush(&buf); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "JEFF") || !strings.Contains(out, auditlog.KindConnect) {
		t.Fatalf("CSV output missing expected fields: %q", out)
	}
	if strings.Count(out, "\n") < 3 {
		t.Fatalf("expected a header row plus two data rows, got %q", out)
	}
}

func TestFlushEmptyLog(t *testing.T) {
	l := auditlog.New()
	var buf strings.Builder
	if err := l.Flush(&buf); err != nil {
		t.Fatalf("Flush on empty log: %v", err)
	}
}

func TestRecordIsConcurrencySafe(t *testing.T) {
	l := auditlog.New()
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			l.Record("USER", auditlog.KindConnect, "")
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for concurrent Record calls")
		}
	}
	if got := l.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}
}
