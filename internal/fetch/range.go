package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/telefetch-io/telefetch/internal/link"
)

// ErrCrossChat is returned when a range's endpoints reference two
// different chats.
var ErrCrossChat = errors.New("fetch: range endpoints must reference the same chat")

const (
	defaultPageSize    = 100
	defaultPageDelay   = time.Second
	defaultFetchGrace  = 5 * time.Second
	defaultMaxAttempts = 5
	defaultItemDelay   = 500 * time.Millisecond
	defaultRetryGrace  = 2 * time.Second
	defaultChunkSize   = 10
)

// Fetcher materializes an ordered, deduplicated message range by walking
// a chat's history backwards. Zero-value fields fall back to defaults.
type Fetcher struct {
	Client      Client
	Logger      *slog.Logger
	PageSize    int           // history page size, default 100
	PageDelay   time.Duration // pause between page requests, default 1s
	MaxMessages int           // cap on retained messages, 0 = unlimited
	FloodGrace  time.Duration // added to platform wait on throttling, default 5s
	MaxAttempts int           // full-restart budget under throttling, default 5
}

// NewFetcher creates a Fetcher with default pacing.
func NewFetcher(client Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{Client: client, Logger: logger}
}

// FetchRange returns every message of the chat whose sequence number lies
// in [min(a,b), max(a,b)], sorted ascending. Argument order is irrelevant.
// Endpoints on different chats fail with ErrCrossChat before any network
// call. On throttling the whole walk restarts from scratch (the walk is
// read-only and deterministic) up to MaxAttempts times. Any other
// transport failure returns the messages gathered so far together with
// the error.
func (f *Fetcher) FetchRange(ctx context.Context, a, b link.MessageRef) ([]Record, error) {
	if a.Chat != b.Chat {
		return nil, ErrCrossChat
	}

	low, high := a.Seq, b.Seq
	if low > high {
		low, high = high, low
	}

	attempts := f.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	grace := f.FloodGrace
	if grace == 0 {
		grace = defaultFetchGrace
	}

	for attempt := 1; ; attempt++ {
		recs, err := f.walk(ctx, a.Chat, low, high)
		wait, throttled := AsFloodWait(err)
		if !throttled || attempt >= attempts {
			return recs, err
		}

		f.logger().Warn("throttled during range fetch, restarting",
			"chat", a.Chat.String(),
			"wait", wait,
			"attempt", attempt,
		)
		if serr := sleep(ctx, wait+grace); serr != nil {
			return nil, serr
		}
	}
}

// walk performs one full backward pass over the window. It returns a
// bare *FloodWaitError when throttled so FetchRange can restart.
func (f *Fetcher) walk(ctx context.Context, chat link.ChatRef, low, high int) ([]Record, error) {
	chatID, err := f.Client.Resolve(ctx, chat)
	if err != nil {
		if _, ok := AsFloodWait(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("fetch: resolve %s: %w", chat.String(), err)
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageDelay := f.PageDelay
	if pageDelay == 0 {
		pageDelay = defaultPageDelay
	}

	seen := make(map[int]bool)
	var out []Record

	// History pages exclude the offset itself, so start one past the top
	// of the window to keep [low, high] inclusive.
	offset := high + 1

	for {
		page, err := f.Client.History(ctx, chatID, offset, pageSize)
		if err != nil {
			if _, ok := AsFloodWait(err); ok {
				return nil, err
			}
			f.logger().Error("history page failed",
				"chat", chat.String(),
				"offset", offset,
				"error", err,
			)
			sortRecords(out)
			return out, fmt.Errorf("fetch: history: %w", err)
		}
		if len(page) == 0 {
			break
		}

		// Pages arrive newest first, so the first id below the window
		// ends the whole walk.
		exhausted := false
		for _, rec := range page {
			if rec.ID < low {
				exhausted = true
				break
			}
			if rec.ID > high || seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			out = append(out, rec)
			if f.MaxMessages > 0 && len(out) >= f.MaxMessages {
				f.logger().Warn("fetch limit reached",
					"chat", chat.String(),
					"limit", f.MaxMessages,
				)
				exhausted = true
				break
			}
		}
		if exhausted {
			break
		}

		oldest := page[len(page)-1].ID
		if oldest <= low {
			break
		}
		offset = oldest

		if err := sleep(ctx, pageDelay); err != nil {
			sortRecords(out)
			return out, err
		}
	}

	sortRecords(out)
	f.logger().Info("range fetched",
		"chat", chat.String(),
		"low", low,
		"high", high,
		"count", len(out),
	)
	return out, nil
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
