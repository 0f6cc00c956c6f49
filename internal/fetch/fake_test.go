package fetch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/telefetch-io/telefetch/internal/link"
)

// fakeClient simulates a chat with a fixed set of message ids. History
// paginates over them newest-first like the real platform. Failures are
// scripted per history call number and per transferred sequence number.
type fakeClient struct {
	ids []int // message ids present in the chat

	resolveErr   error
	resolveCalls int

	historyCalls int
	historyErrs  map[int]error // history call number (1-based) → error
	pages        [][]Record    // optional scripted pages, overrides ids

	transferErrs map[int][]error // seq → error queue, popped per attempt
	transferred  []int
	sendTextErr  error
	texts        []string
}

func newFakeClient(ids ...int) *fakeClient {
	return &fakeClient{ids: ids}
}

func (c *fakeClient) Resolve(_ context.Context, _ link.ChatRef) (int64, error) {
	c.resolveCalls++
	if c.resolveErr != nil {
		return 0, c.resolveErr
	}
	return 42, nil
}

func (c *fakeClient) Message(_ context.Context, _ int64, seq int) (Record, error) {
	for _, id := range c.ids {
		if id == seq {
			return Record{ID: id, Text: fmt.Sprintf("msg %d", id)}, nil
		}
	}
	return Record{}, fmt.Errorf("message %d not found", seq)
}

func (c *fakeClient) History(_ context.Context, _ int64, beforeSeq, limit int) ([]Record, error) {
	c.historyCalls++
	if err := c.historyErrs[c.historyCalls]; err != nil {
		return nil, err
	}

	if c.pages != nil {
		if c.historyCalls > len(c.pages) {
			return nil, nil
		}
		return c.pages[c.historyCalls-1], nil
	}

	older := make([]int, 0, len(c.ids))
	for _, id := range c.ids {
		if id < beforeSeq {
			older = append(older, id)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(older)))
	if len(older) > limit {
		older = older[:limit]
	}

	page := make([]Record, len(older))
	for i, id := range older {
		page[i] = Record{ID: id, Text: fmt.Sprintf("msg %d", id)}
	}
	return page, nil
}

func (c *fakeClient) Transfer(_ context.Context, rec Record, _ int64) error {
	if queue := c.transferErrs[rec.ID]; len(queue) > 0 {
		err := queue[0]
		c.transferErrs[rec.ID] = queue[1:]
		if err != nil {
			return err
		}
	}
	c.transferred = append(c.transferred, rec.ID)
	return nil
}

func (c *fakeClient) SendText(_ context.Context, text string, _ int64) error {
	if c.sendTextErr != nil {
		return c.sendTextErr
	}
	c.texts = append(c.texts, text)
	return nil
}

// fastFetcher returns a Fetcher with pacing shrunk for tests.
func fastFetcher(c Client) *Fetcher {
	f := NewFetcher(c, nil)
	f.PageDelay = time.Microsecond
	f.FloodGrace = time.Microsecond
	return f
}

// fastSender returns a Sender with pacing shrunk for tests.
func fastSender(c Client) *Sender {
	s := NewSender(c, nil)
	s.ItemDelay = time.Microsecond
	s.FloodGrace = time.Microsecond
	return s
}

func ref(chat link.ChatRef, seq int) link.MessageRef {
	return link.MessageRef{Chat: chat, Seq: seq}
}

var testChat = link.ChatRef{ID: -1001234567890}

// Verify the fake satisfies the capability interface.
var _ Client = (*fakeClient)(nil)
