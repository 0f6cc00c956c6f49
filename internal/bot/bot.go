// Package bot is the operator-facing command front-end: a bot-token
// long-polling loop that accepts commands from a single allowed user and
// drives the fetch-and-resend pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telefetch-io/telefetch/internal/fetch"
	"github.com/telefetch-io/telefetch/internal/journal"
	"github.com/telefetch-io/telefetch/internal/link"
	"github.com/telefetch-io/telefetch/internal/logbuf"
)

const helpText = `Commands:
/single <link> — re-deliver one message
/batch <start_link> <end_link> — re-deliver every message between two links
/history — recent jobs
/logs — recent warnings
/help — this message

Example:
/batch https://t.me/channel/100 https://t.me/channel/150

Works with channels where forwarding is disabled.`

const startText = "telefetch is ready. Send /help to see commands."

// Fetcher materializes a message range. *fetch.Fetcher satisfies this.
type Fetcher interface {
	FetchRange(ctx context.Context, a, b link.MessageRef) ([]fetch.Record, error)
}

// Sender delivers a message sequence. *fetch.Sender satisfies this.
type Sender interface {
	SendBatch(ctx context.Context, msgs []fetch.Record, dest int64, chunkSize int, chunkDelay time.Duration) (fetch.Report, error)
}

// Journal records job outcomes. *journal.SQLiteStore satisfies this.
type Journal interface {
	Append(e journal.Entry) error
	Recent(limit int) ([]journal.Entry, error)
}

// Config holds front-end settings.
type Config struct {
	Token      string        // bot token from @BotFather
	Operator   int64         // the only allowed user id; also the delivery destination
	BatchSize  int           // chunk size for /batch
	BatchDelay time.Duration // pause between chunks
}

// Deps are the collaborators the front-end drives. Journal and Logs are
// optional; the matching commands report unavailability when nil.
type Deps struct {
	Client  fetch.Client
	Fetcher Fetcher
	Sender  Sender
	Journal Journal
	Logs    *logbuf.Buffer
}

// Bot is the command front-end.
type Bot struct {
	api    *tgbotapi.BotAPI
	config Config
	deps   Deps
	logger *slog.Logger
}

// New creates the front-end and authorizes the bot token.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("bot: init: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("bot authorized", "username", api.Self.UserName)

	return &Bot{api: api, config: cfg, deps: deps, logger: logger}, nil
}

// Start begins long-polling for commands. Blocks until context is
// cancelled. Commands are handled one at a time, so a second command
// waits for the one in flight; the pipeline's single session handle is
// never used concurrently.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "bot", b.api.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)

		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.From.ID != b.config.Operator {
		b.logger.Warn("unauthorized user", "user_id", msg.From.ID, "username", msg.From.UserName)
		b.reply(msg.Chat.ID, "Unauthorized.")
		return
	}

	reply := b.dispatch(ctx, msg.Text)
	if reply != "" {
		b.reply(msg.Chat.ID, reply)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("reply failed", "chat_id", chatID, "error", err)
	}
}

// dispatch runs one command to completion and returns the final reply.
// Progress and summary notifications along the way go to the destination
// through the pipeline's own client, as the pipeline emits them.
func (b *Bot) dispatch(ctx context.Context, text string) string {
	cmd, err := ParseCommand(text)
	if err != nil {
		return err.Error()
	}

	switch c := cmd.(type) {
	case Help:
		return helpText
	case Start:
		return startText
	case Single:
		return b.runSingle(ctx, c)
	case Batch:
		return b.runBatch(ctx, c)
	case History:
		return b.runHistory()
	case Logs:
		return b.runLogs()
	default:
		return "Unknown command. Use /help to see available commands."
	}
}

func (b *Bot) runSingle(ctx context.Context, cmd Single) string {
	ref, err := link.Parse(cmd.Link)
	if err != nil {
		return "That doesn't look like a t.me message link."
	}

	chatID, err := b.deps.Client.Resolve(ctx, ref.Chat)
	if err != nil {
		return fmt.Sprintf("Could not resolve %s: %v", ref.Chat.String(), err)
	}

	rec, err := b.deps.Client.Message(ctx, chatID, ref.Seq)
	if err != nil {
		return fmt.Sprintf("Unable to fetch the message: %v", err)
	}

	status := journal.StatusOK
	delivered := 1
	reply := "Message delivered."
	if err := b.deps.Client.Transfer(ctx, rec, b.config.Operator); err != nil {
		if text := rec.FallbackText(); text != "" {
			if terr := b.deps.Client.SendText(ctx, text, b.config.Operator); terr == nil {
				b.journal(journal.Entry{
					Kind: "single", Chat: ref.Chat.String(), Low: ref.Seq, High: ref.Seq,
					Delivered: 1, Total: 1, Status: journal.StatusPartial, Detail: err.Error(),
				})
				return "Full transfer failed; delivered the text only."
			}
		}
		status = journal.StatusFailed
		delivered = 0
		reply = fmt.Sprintf("Unable to deliver the message: %v", err)
	}

	b.journal(journal.Entry{
		Kind: "single", Chat: ref.Chat.String(), Low: ref.Seq, High: ref.Seq,
		Delivered: delivered, Total: 1, Status: status,
	})
	return reply
}

func (b *Bot) runBatch(ctx context.Context, cmd Batch) string {
	start, err := link.Parse(cmd.StartLink)
	if err != nil {
		return fmt.Sprintf("Start link not recognized: %s", cmd.StartLink)
	}
	end, err := link.Parse(cmd.EndLink)
	if err != nil {
		return fmt.Sprintf("End link not recognized: %s", cmd.EndLink)
	}

	low, high := start.Seq, end.Seq
	if low > high {
		low, high = high, low
	}

	ack := fmt.Sprintf("Processing batch request...\nFrom: %s\nTo: %s", cmd.StartLink, cmd.EndLink)
	if err := b.deps.Client.SendText(ctx, ack, b.config.Operator); err != nil {
		b.logger.Warn("ack failed", "error", err)
	}

	recs, ferr := b.deps.Fetcher.FetchRange(ctx, start, end)
	if errors.Is(ferr, fetch.ErrCrossChat) {
		return "Both links must point at the same chat."
	}
	if ferr != nil && len(recs) == 0 {
		b.journal(journal.Entry{
			Kind: "batch", Chat: start.Chat.String(), Low: low, High: high,
			Status: journal.StatusFailed, Detail: ferr.Error(),
		})
		return fmt.Sprintf("Fetch failed: %v", ferr)
	}
	if len(recs) == 0 {
		return "No messages found in that range."
	}
	if ferr != nil {
		note := fmt.Sprintf("Fetch stopped early (%v); delivering the %d messages gathered so far.", ferr, len(recs))
		b.deps.Client.SendText(ctx, note, b.config.Operator)
	}

	report, serr := b.deps.Sender.SendBatch(ctx, recs, b.config.Operator, b.config.BatchSize, b.config.BatchDelay)

	entry := journal.Entry{
		Kind: "batch", Chat: start.Chat.String(), Low: low, High: high,
		Delivered: report.Delivered, Total: report.Total,
	}
	switch {
	case serr != nil:
		entry.Status = journal.StatusFailed
		entry.Detail = serr.Error()
	case ferr != nil || report.Delivered < report.Total:
		entry.Status = journal.StatusPartial
		if ferr != nil {
			entry.Detail = ferr.Error()
		}
	default:
		entry.Status = journal.StatusOK
	}
	b.journal(entry)

	if serr != nil {
		return fmt.Sprintf("Batch processing failed: sent %d/%d messages: %v", report.Delivered, report.Total, serr)
	}
	return fmt.Sprintf("Batch processing completed: %d/%d messages delivered.", report.Delivered, report.Total)
}

func (b *Bot) runHistory() string {
	if b.deps.Journal == nil {
		return "No journal configured."
	}
	entries, err := b.deps.Journal.Recent(10)
	if err != nil {
		return fmt.Sprintf("Journal unavailable: %v", err)
	}
	if len(entries) == 0 {
		return "No jobs recorded yet."
	}

	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s %s [%d-%d] %d/%d %s",
			e.CreatedAt.Format("2006-01-02 15:04"), e.Kind, e.Chat,
			e.Low, e.High, e.Delivered, e.Total, e.Status))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) runLogs() string {
	if b.deps.Logs == nil {
		return "No log buffer configured."
	}
	entries := b.deps.Logs.Recent(slog.LevelWarn, 20)
	if len(entries) == 0 {
		return "No recent warnings."
	}

	var lines []string
	for _, e := range entries {
		lines = append(lines, e.Format())
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) journal(e journal.Entry) {
	if b.deps.Journal == nil {
		return
	}
	if err := b.deps.Journal.Append(e); err != nil {
		b.logger.Error("journal append failed", "error", err)
	}
}
