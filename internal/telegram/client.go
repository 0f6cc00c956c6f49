// Package telegram implements the fetch.Client capability over an MTProto
// user session. A user session (not a bot token) is required because the
// Bot API exposes no chat history access.
package telegram

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/telefetch-io/telefetch/internal/fetch"
	"github.com/telefetch-io/telefetch/internal/link"
)

// Client wraps the raw MTProto API with peer resolution and access-hash
// caching. Not safe for concurrent use; the pipeline calls it sequentially.
type Client struct {
	api    *tg.Client
	peers  *peers.Manager
	logger *slog.Logger
}

// NewClient builds a Client on top of an authorized MTProto connection.
func NewClient(api *tg.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    api,
		peers:  peers.Options{}.Build(api),
		logger: logger,
	}
}

// Resolve maps a chat reference to its TDLib-style numeric id (channels
// carry the -100 marker).
func (c *Client) Resolve(ctx context.Context, chat link.ChatRef) (int64, error) {
	p, err := c.peer(ctx, chat)
	if err != nil {
		return 0, err
	}
	return int64(p.TDLibPeerID()), nil
}

// Message fetches a single message by sequence number.
func (c *Client) Message(ctx context.Context, chat int64, seq int) (fetch.Record, error) {
	p, err := c.peerByID(ctx, chat)
	if err != nil {
		return fetch.Record{}, err
	}

	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: seq}}
	var res tg.MessagesMessagesClass
	if ch, ok := p.(peers.Channel); ok {
		res, err = c.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: ch.InputChannel(),
			ID:      ids,
		})
	} else {
		res, err = c.api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return fetch.Record{}, mapErr(err)
	}

	modified, ok := res.AsModified()
	if !ok {
		return fetch.Record{}, fmt.Errorf("telegram: unexpected messages response %T", res)
	}
	for _, m := range modified.GetMessages() {
		if msg, ok := m.(*tg.Message); ok && msg.ID == seq {
			return newRecord(msg), nil
		}
	}
	return fetch.Record{}, fmt.Errorf("telegram: message %d not found", seq)
}

// History returns up to limit messages older than beforeSeq, newest first.
// Service messages and holes are skipped.
func (c *Client) History(ctx context.Context, chat int64, beforeSeq, limit int) ([]fetch.Record, error) {
	p, err := c.peerByID(ctx, chat)
	if err != nil {
		return nil, err
	}

	res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     p.InputPeer(),
		OffsetID: beforeSeq,
		Limit:    limit,
	})
	if err != nil {
		return nil, mapErr(err)
	}

	modified, ok := res.AsModified()
	if !ok {
		return nil, fmt.Errorf("telegram: unexpected history response %T", res)
	}

	var page []fetch.Record
	for _, m := range modified.GetMessages() {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		page = append(page, newRecord(msg))
	}
	return page, nil
}

// Transfer re-sends a fetched message to dest as a fresh message, which
// works where forwarding is disabled. Media is re-referenced by its file
// id; media kinds that cannot be re-referenced return an error so the
// sender can degrade to text.
func (c *Client) Transfer(ctx context.Context, rec fetch.Record, dest int64) error {
	msg, ok := rec.Payload.(*tg.Message)
	if !ok {
		return fmt.Errorf("telegram: record %d carries no transferable payload", rec.ID)
	}

	p, err := c.peerByID(ctx, dest)
	if err != nil {
		return err
	}

	id, err := randomID()
	if err != nil {
		return err
	}

	media, hasMedia := msg.GetMedia()
	if hasMedia {
		// Link previews are part of the text message, not standalone media.
		if _, isWebPage := media.(*tg.MessageMediaWebPage); !isWebPage {
			input, err := inputMedia(media)
			if err != nil {
				return err
			}
			_, err = c.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
				Peer:     p.InputPeer(),
				Media:    input,
				Message:  msg.Message,
				RandomID: id,
			})
			return mapErr(err)
		}
	}

	if msg.Message == "" {
		return fmt.Errorf("telegram: message %d has no copyable content", rec.ID)
	}
	_, err = c.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     p.InputPeer(),
		Message:  msg.Message,
		RandomID: id,
	})
	return mapErr(err)
}

// SendText delivers a plain text message to dest.
func (c *Client) SendText(ctx context.Context, text string, dest int64) error {
	p, err := c.peerByID(ctx, dest)
	if err != nil {
		return err
	}
	id, err := randomID()
	if err != nil {
		return err
	}
	_, err = c.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     p.InputPeer(),
		Message:  text,
		RandomID: id,
	})
	return mapErr(err)
}

func (c *Client) peer(ctx context.Context, chat link.ChatRef) (peers.Peer, error) {
	if chat.Handle != "" {
		p, err := c.peers.ResolveDomain(ctx, chat.Handle)
		if err != nil {
			return nil, mapErr(fmt.Errorf("telegram: resolve %q: %w", chat.Handle, err))
		}
		return p, nil
	}
	return c.peerByID(ctx, chat.ID)
}

func (c *Client) peerByID(ctx context.Context, id int64) (peers.Peer, error) {
	p, err := c.peers.ResolveTDLibID(ctx, constant.TDLibPeerID(id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("telegram: resolve id %d: %w", id, err))
	}
	return p, nil
}

// newRecord converts a raw message. The MTProto Message field holds the
// text for plain messages and the caption for media.
func newRecord(msg *tg.Message) fetch.Record {
	rec := fetch.Record{ID: msg.ID, Payload: msg}
	if _, hasMedia := msg.GetMedia(); hasMedia {
		rec.Caption = msg.Message
	} else {
		rec.Text = msg.Message
	}
	return rec
}

// inputMedia converts received media back into a sendable reference.
func inputMedia(media tg.MessageMediaClass) (tg.InputMediaClass, error) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.GetPhoto()
		if !ok {
			return nil, fmt.Errorf("telegram: photo is gone")
		}
		p, ok := photo.(*tg.Photo)
		if !ok {
			return nil, fmt.Errorf("telegram: photo %T is not transferable", photo)
		}
		return &tg.InputMediaPhoto{ID: p.AsInput()}, nil

	case *tg.MessageMediaDocument:
		doc, ok := m.GetDocument()
		if !ok {
			return nil, fmt.Errorf("telegram: document is gone")
		}
		d, ok := doc.(*tg.Document)
		if !ok {
			return nil, fmt.Errorf("telegram: document %T is not transferable", doc)
		}
		return &tg.InputMediaDocument{ID: d.AsInput()}, nil

	default:
		return nil, fmt.Errorf("telegram: media %T is not transferable", media)
	}
}

// mapErr converts platform throttling into the pipeline's signal type.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &fetch.FloodWaitError{Wait: d}
	}
	return err
}

func randomID() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("telegram: random id: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}
