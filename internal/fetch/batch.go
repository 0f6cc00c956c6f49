package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Report summarizes a batch delivery.
type Report struct {
	Delivered int
	Total     int
	Success   bool
}

// Sender delivers an ordered message sequence to a destination chat in
// fixed-size chunks, pacing every transfer to stay under platform rate
// limits. Zero-value fields fall back to defaults.
type Sender struct {
	Client     Client
	Logger     *slog.Logger
	ItemDelay  time.Duration // pause between transfers, default 500ms
	FloodGrace time.Duration // added to platform wait on throttling, default 2s
}

// NewSender creates a Sender with default pacing.
func NewSender(client Client, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{Client: client, Logger: logger}
}

// SendBatch transfers msgs to dest in chunks of chunkSize, waiting
// chunkDelay between chunks. Chunk order is input order.
//
// Per item: a throttling signal is honored and the transfer retried
// exactly once; a second failure aborts the remaining batch. Any other
// transfer failure degrades to a text-only substitute when the message
// has text or a caption, otherwise the message is dropped; either way
// the batch continues. A progress notification precedes each chunk and
// a summary follows the last; an abort emits an error notification with
// the count delivered so far and returns the cause with Success=false.
//
// Re-running SendBatch on the same input re-delivers everything; callers
// pair it with a fresh fetch.
func (s *Sender) SendBatch(ctx context.Context, msgs []Record, dest int64, chunkSize int, chunkDelay time.Duration) (Report, error) {
	if len(msgs) == 0 {
		return Report{}, nil
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	itemDelay := s.ItemDelay
	if itemDelay == 0 {
		itemDelay = defaultItemDelay
	}
	grace := s.FloodGrace
	if grace == 0 {
		grace = defaultRetryGrace
	}

	total := len(msgs)
	chunks := (total + chunkSize - 1) / chunkSize
	delivered := 0

	abort := func(cause error) (Report, error) {
		s.logger().Error("batch aborted",
			"delivered", delivered,
			"total", total,
			"error", cause,
		)
		s.Client.SendText(ctx, fmt.Sprintf("Delivery aborted: sent %d/%d messages before the error: %v", delivered, total, cause), dest)
		return Report{Delivered: delivered, Total: total}, cause
	}

	for start := 0; start < total; start += chunkSize {
		end := start + chunkSize
		if end > total {
			end = total
		}
		chunk := msgs[start:end]
		num := start/chunkSize + 1

		notice := fmt.Sprintf("Batch %d/%d: sending %d messages...", num, chunks, len(chunk))
		if err := s.Client.SendText(ctx, notice, dest); err != nil {
			return abort(err)
		}

		for _, rec := range chunk {
			err := s.Client.Transfer(ctx, rec, dest)
			if wait, ok := AsFloodWait(err); ok {
				s.logger().Warn("throttled during transfer",
					"seq", rec.ID,
					"wait", wait,
				)
				if serr := sleep(ctx, wait+grace); serr != nil {
					return abort(serr)
				}
				// One retry; a renewed failure is a hard error.
				err = s.Client.Transfer(ctx, rec, dest)
				if err != nil {
					return abort(err)
				}
				delivered++
			} else if err != nil {
				s.logger().Error("transfer failed, degrading",
					"seq", rec.ID,
					"error", err,
				)
				if text := rec.FallbackText(); text != "" {
					if terr := s.Client.SendText(ctx, text, dest); terr != nil {
						return abort(terr)
					}
					delivered++
				}
			} else {
				delivered++
			}

			if serr := sleep(ctx, itemDelay); serr != nil {
				return abort(serr)
			}
		}

		if end < total {
			if serr := sleep(ctx, chunkDelay); serr != nil {
				return abort(serr)
			}
		}
	}

	s.Client.SendText(ctx, fmt.Sprintf("Done: delivered %d/%d messages.", delivered, total), dest)
	s.logger().Info("batch delivered", "delivered", delivered, "total", total)
	return Report{Delivered: delivered, Total: total, Success: true}, nil
}

func (s *Sender) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
