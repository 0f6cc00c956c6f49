package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/telefetch-io/telefetch/internal/fetch"
)

// Verify Client implements the pipeline capability at compile time.
var _ fetch.Client = (*Client)(nil)

func TestNewRecord_TextMessage(t *testing.T) {
	msg := &tg.Message{ID: 42, Message: "hello"}

	rec := newRecord(msg)
	if rec.ID != 42 {
		t.Errorf("id = %d", rec.ID)
	}
	if rec.Text != "hello" || rec.Caption != "" {
		t.Errorf("text/caption = %q/%q", rec.Text, rec.Caption)
	}
	if rec.Payload != msg {
		t.Error("payload must carry the raw message")
	}
}

func TestNewRecord_MediaMessage(t *testing.T) {
	msg := &tg.Message{ID: 7, Message: "a caption"}
	msg.SetMedia(&tg.MessageMediaPhoto{})

	rec := newRecord(msg)
	if rec.Caption != "a caption" || rec.Text != "" {
		t.Errorf("text/caption = %q/%q", rec.Text, rec.Caption)
	}
	if rec.FallbackText() != "a caption" {
		t.Errorf("fallback = %q", rec.FallbackText())
	}
}

func TestInputMedia(t *testing.T) {
	photoMedia := &tg.MessageMediaPhoto{}
	photoMedia.SetPhoto(&tg.Photo{ID: 1, AccessHash: 2})

	docMedia := &tg.MessageMediaDocument{}
	docMedia.SetDocument(&tg.Document{ID: 3, AccessHash: 4})

	if _, err := inputMedia(photoMedia); err != nil {
		t.Errorf("photo: %v", err)
	}
	if _, err := inputMedia(docMedia); err != nil {
		t.Errorf("document: %v", err)
	}
	if _, err := inputMedia(&tg.MessageMediaGeo{}); err == nil {
		t.Error("geo media must not be transferable")
	}
	if _, err := inputMedia(&tg.MessageMediaPhoto{}); err == nil {
		t.Error("expired photo must not be transferable")
	}
}

func TestMapErr(t *testing.T) {
	if mapErr(nil) != nil {
		t.Error("nil must stay nil")
	}

	plain := errors.New("boom")
	if got := mapErr(plain); got != plain {
		t.Errorf("plain error changed: %v", got)
	}

	flood := tgerr.New(420, "FLOOD_WAIT_3")
	d, ok := fetch.AsFloodWait(mapErr(flood))
	if !ok {
		t.Fatal("flood wait not mapped to the pipeline signal")
	}
	if d != 3*time.Second {
		t.Errorf("wait = %v", d)
	}
}

func TestMapErrPreservesFloodThroughWrapping(t *testing.T) {
	// peerByID wraps before mapping; the pipeline must still detect the
	// signal through errors.As.
	err := &fetch.FloodWaitError{Wait: 3 * time.Second}
	if d, ok := fetch.AsFloodWait(err); !ok || d != 3*time.Second {
		t.Fatalf("AsFloodWait = %v, %v", d, ok)
	}
}

func TestRandomID(t *testing.T) {
	a, err := randomID()
	if err != nil {
		t.Fatalf("randomID: %v", err)
	}
	b, err := randomID()
	if err != nil {
		t.Fatalf("randomID: %v", err)
	}
	if a == b {
		t.Error("consecutive random ids collided")
	}
}
