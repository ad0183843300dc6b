package sloghooks

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBufLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestSelfHealSampledAndRedacted(t *testing.T) {
	var buf bytes.Buffer
	h := New(newBufLogger(&buf), Options{SelfHealEvery: 3})
	for i := 0; i < 9; i++ {
		h.RenderSelfHeal("render:wiki:1:canonical", "corrupt")
	}
	if n := strings.Count(buf.String(), "randselect.render_self_heal"); n != 3 {
		t.Fatalf("logged %d self-heals, want 3", n)
	}
	if strings.Contains(buf.String(), "render:wiki") {
		t.Fatalf("storage key not redacted: %s", buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.IterationBound(1, 8, 2)
	h.ProviderSetRejected("k")
	h.ValidationPopulated(1, true, "store")
}

func TestBoundLogsPassCount(t *testing.T) {
	var buf bytes.Buffer
	h := New(newBufLogger(&buf), Options{})
	h.IterationBound(12, 8, 3)
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "passes=8") || !strings.Contains(out, "dropped=3") {
		t.Fatalf("unexpected output: %s", out)
	}
}
