package logbuf

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestBuffer_RingEviction(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Add(Entry{Level: slog.LevelInfo, Message: strings.Repeat("x", i+1)})
	}

	got := b.Recent(slog.LevelDebug, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	// Oldest two were evicted; remaining are 3rd, 4th, 5th, oldest first.
	if got[0].Message != "xxx" || got[2].Message != "xxxxx" {
		t.Errorf("entries = %v", got)
	}
}

func TestBuffer_LevelFilterAndLimit(t *testing.T) {
	b := New(10)
	b.Add(Entry{Level: slog.LevelDebug, Message: "d"})
	b.Add(Entry{Level: slog.LevelInfo, Message: "i"})
	b.Add(Entry{Level: slog.LevelWarn, Message: "w1"})
	b.Add(Entry{Level: slog.LevelError, Message: "e"})
	b.Add(Entry{Level: slog.LevelWarn, Message: "w2"})

	got := b.Recent(slog.LevelWarn, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 warn+ entries, got %d", len(got))
	}

	got = b.Recent(slog.LevelWarn, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Message != "e" || got[1].Message != "w2" {
		t.Errorf("entries = %v", got)
	}
}

func TestHandler_CapturesBelowInnerLevel(t *testing.T) {
	buf := New(10)
	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(NewHandler(inner, buf))

	logger.Debug("quiet", "k", "v")
	logger.Error("loud")

	got := buf.Recent(slog.LevelDebug, 0)
	if len(got) != 2 {
		t.Fatalf("expected both records captured, got %d", len(got))
	}
	if got[0].Message != "quiet" {
		t.Errorf("first = %+v", got[0])
	}
}

func TestHandler_WithAttrs(t *testing.T) {
	buf := New(10)
	inner := slog.NewTextHandler(io.Discard, nil)
	logger := slog.New(NewHandler(inner, buf)).With("component", "bot")

	logger.Info("hello")

	got := buf.Recent(slog.LevelDebug, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	line := got[0].Format()
	if !strings.Contains(line, "component=bot") {
		t.Errorf("formatted = %q", line)
	}
}

func TestEntryFormat(t *testing.T) {
	e := Entry{
		Time:    time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Level:   slog.LevelWarn,
		Message: "throttled",
		Attrs:   []slog.Attr{slog.Int("seq", 5)},
	}
	line := e.Format()
	for _, want := range []string{"09:30:00", "WARN", "throttled", "seq=5"} {
		if !strings.Contains(line, want) {
			t.Errorf("formatted %q missing %q", line, want)
		}
	}
}
