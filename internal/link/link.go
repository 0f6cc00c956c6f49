// Package link parses t.me message links into chat and message references.
package link

import (
	"errors"
	"regexp"
	"strconv"
)

// ErrNoMatch is returned when text contains no recognized t.me link form.
var ErrNoMatch = errors.New("link: no recognized t.me link")

// ChatRef identifies a chat either by its internal numeric id (private
// channel links, already carrying the -100 marker) or by a public handle.
// Exactly one of the two fields is set.
type ChatRef struct {
	ID     int64  // internal id, e.g. -1001234567890; 0 when Handle is set
	Handle string // public handle, e.g. "news"; empty when ID is set
}

// String returns the handle or the decimal id, for logging and replies.
func (c ChatRef) String() string {
	if c.Handle != "" {
		return c.Handle
	}
	return strconv.FormatInt(c.ID, 10)
}

// MessageRef is the logical target of a message link: a chat plus the
// platform-assigned per-chat message sequence number.
type MessageRef struct {
	Chat ChatRef
	Seq  int
}

// The /c/ form must be tried first: the handle pattern would otherwise
// match "c" as a handle with the channel id as the sequence number.
var (
	privatePattern = regexp.MustCompile(`t\.me/c/(\d+)/(\d+)`)
	publicPattern  = regexp.MustCompile(`t\.me/(\w+)/(\d+)`)
)

// Parse extracts a MessageRef from a t.me link. Recognized forms, with or
// without an https:// prefix:
//
//	t.me/c/<internal id>/<seq>   private channel, id gets the -100 marker
//	t.me/<handle>/<seq>          public chat by handle
//
// Parse is pure and performs no network access. Unrecognized text returns
// ErrNoMatch.
func Parse(text string) (MessageRef, error) {
	if m := privatePattern.FindStringSubmatch(text); m != nil {
		id, err := strconv.ParseInt("-100"+m[1], 10, 64)
		if err != nil {
			return MessageRef{}, ErrNoMatch
		}
		seq, err := strconv.Atoi(m[2])
		if err != nil {
			return MessageRef{}, ErrNoMatch
		}
		return MessageRef{Chat: ChatRef{ID: id}, Seq: seq}, nil
	}

	if m := publicPattern.FindStringSubmatch(text); m != nil {
		seq, err := strconv.Atoi(m[2])
		if err != nil {
			return MessageRef{}, ErrNoMatch
		}
		return MessageRef{Chat: ChatRef{Handle: m[1]}, Seq: seq}, nil
	}

	return MessageRef{}, ErrNoMatch
}
