// Package logbuf keeps a ring of recent log entries so the operator can
// inspect them over chat without shell access to the host.
package logbuf

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
}

// Format renders the entry as a single chat-friendly line.
func (e Entry) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	for _, a := range e.Attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	return b.String()
}

// Buffer is a fixed-capacity ring of log entries, newest overwriting
// oldest. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// New creates a ring holding up to capacity entries.
func New(capacity int) *Buffer {
	return &Buffer{entries: make([]Entry, capacity)}
}

// Add records an entry, evicting the oldest when full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// Recent returns up to limit entries at or above minLevel, oldest first.
func (b *Buffer) Recent(minLevel slog.Level, limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := b.next
	start := 0
	if b.full {
		count = len(b.entries)
		start = b.next
	}

	var out []Entry
	for i := 0; i < count; i++ {
		e := b.entries[(start+i)%len(b.entries)]
		if e.Level >= minLevel {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
