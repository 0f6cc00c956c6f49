// Package fetch implements the range-fetch and batch-resend pipeline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telefetch-io/telefetch/internal/link"
)

// Client is the messaging-platform capability the pipeline runs against.
// Implementations are expected to be safe for sequential reuse; the
// pipeline never calls a Client concurrently. Any method may return a
// *FloodWaitError in place of its normal result when the platform is
// throttling the session.
type Client interface {
	// Resolve maps a chat reference to the platform's numeric chat id.
	Resolve(ctx context.Context, chat link.ChatRef) (int64, error)
	// Message fetches a single message by sequence number.
	Message(ctx context.Context, chat int64, seq int) (Record, error)
	// History returns up to limit messages older than beforeSeq, newest
	// first. An empty page means history is exhausted.
	History(ctx context.Context, chat int64, beforeSeq, limit int) ([]Record, error)
	// Transfer re-delivers a fetched message to dest as a full-fidelity copy.
	Transfer(ctx context.Context, rec Record, dest int64) error
	// SendText delivers a plain text message to dest.
	SendText(ctx context.Context, text string, dest int64) error
}

// Record is a fetched message. Payload is an opaque transferable handle
// owned by the Client that produced the record; the pipeline only passes
// it back into Transfer.
type Record struct {
	ID      int    // per-chat sequence number
	Text    string // message text, empty for pure media
	Caption string // media caption, empty otherwise
	Payload any
}

// FallbackText returns the text to deliver when a full-fidelity transfer
// is impossible, or "" when the record has nothing to degrade to.
func (r Record) FallbackText() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Caption
}

// FloodWaitError signals platform throttling. Wait is the duration the
// platform asked the session to back off for.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

// AsFloodWait reports whether err carries a throttling signal and, if so,
// the requested wait.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
