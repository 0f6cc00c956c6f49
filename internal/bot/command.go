package bot

import (
	"errors"
	"strings"
)

// Command is a parsed operator command. Parsing is separated from
// dispatch so malformed input can be rejected with a usage string
// before any work starts.
type Command interface{ isCommand() }

// Help requests the usage text.
type Help struct{}

// Start is the conventional first contact with the bot.
type Start struct{}

// Single requests re-delivery of one message.
type Single struct{ Link string }

// Batch requests re-delivery of every message between two links.
type Batch struct{ StartLink, EndLink string }

// History requests the recent job journal.
type History struct{}

// Logs requests recent warnings from the log ring.
type Logs struct{}

// Unknown is anything else, including plain text.
type Unknown struct{ Text string }

func (Help) isCommand()    {}
func (Start) isCommand()   {}
func (Single) isCommand()  {}
func (Batch) isCommand()   {}
func (History) isCommand() {}
func (Logs) isCommand()    {}
func (Unknown) isCommand() {}

var (
	errSingleUsage = errors.New("Usage: /single <message_link>")
	errBatchUsage  = errors.New("Usage: /batch <start_link> <end_link>")
)

// ParseCommand maps message text to a Command. A wrong argument count
// yields a usage error whose text is suitable as a direct reply.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Unknown{Text: text}, nil
	}

	// Accept the /cmd@botname form Telegram clients produce in groups.
	name, _, _ := strings.Cut(fields[0], "@")

	switch name {
	case "/help":
		return Help{}, nil
	case "/start":
		return Start{}, nil
	case "/single":
		if len(fields) != 2 {
			return nil, errSingleUsage
		}
		return Single{Link: fields[1]}, nil
	case "/batch":
		if len(fields) != 3 {
			return nil, errBatchUsage
		}
		return Batch{StartLink: fields[1], EndLink: fields[2]}, nil
	case "/history":
		return History{}, nil
	case "/logs":
		return Logs{}, nil
	default:
		return Unknown{Text: text}, nil
	}
}
