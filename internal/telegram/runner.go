package telegram

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gotd/td/session"
	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// Options configures the MTProto session.
type Options struct {
	APIID       int
	APIHash     string
	Phone       string // with country code
	Password    string // 2FA password, optional
	SessionFile string
	Logger      *slog.Logger
}

// Run dials Telegram, authorizes the session if needed (prompting on
// stdin for the login code on first run), and invokes fn with a ready
// Client and the logged-in user. Blocks until fn returns or the
// connection is lost.
func Run(ctx context.Context, opts Options, fn func(ctx context.Context, c *Client, self *tg.User) error) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := tgclient.NewClient(opts.APIID, opts.APIHash, tgclient.Options{
		SessionStorage: &session.FileStorage{Path: opts.SessionFile},
	})

	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(
			auth.Constant(opts.Phone, opts.Password, auth.CodeAuthenticatorFunc(promptCode)),
			auth.SendCodeOptions{},
		)
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("telegram: authorize: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("telegram: self: %w", err)
		}
		logger.Info("telegram session authorized",
			"user_id", self.ID,
			"username", self.Username,
		)

		return fn(ctx, NewClient(client.API(), logger), self)
	})
}

func promptCode(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Print("Telegram login code: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}
