package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-coach-sync/internal/api"
	"github.com/tbourn/go-coach-sync/internal/domain"
)

// fakeAPI implements ChatAPI for service-level tests.
type fakeAPI struct {
	scriptedFetcher

	mu        sync.Mutex
	postErr   error
	posted    []api.SendPayload
	slot      api.UploadSlot
	slotErr   error
	putErr    error
	putBodies [][]byte
	nextMsgID string
}

func (f *fakeAPI) PostMessage(ctx context.Context, conversationID string, p api.SendPayload) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return domain.Message{}, f.postErr
	}
	f.posted = append(f.posted, p)
	id := f.nextMsgID
	if id == "" {
		id = "srv-msg"
	}
	m := domain.Message{ID: id, ConversationID: conversationID, Text: p.Text, Type: p.Type, Media: p.Media}
	return m, nil
}

func (f *fakeAPI) RequestUploadURL(ctx context.Context, r api.UploadRequest) (api.UploadSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slotErr != nil {
		return api.UploadSlot{}, f.slotErr
	}
	return f.slot, nil
}

func (f *fakeAPI) PutObject(ctx context.Context, uploadURL, contentType string, body io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	b, _ := io.ReadAll(body)
	f.putBodies = append(f.putBodies, b)
	return nil
}

func newTestService(remote ChatAPI) *Service {
	iv := fastIntervals()
	iv.Active = time.Hour // pollers stay quiet during send tests
	return NewService(remote, iv, 10)
}

func TestSend_TextOnly(t *testing.T) {
	remote := &fakeAPI{nextMsgID: "m-100"}
	svc := newTestService(remote)
	unsub := svc.StartPolling(context.Background(), "c1")
	defer unsub()

	msg, err := svc.Send(context.Background(), "c1", SendRequest{Text: "  hola coach  "})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID != "m-100" {
		t.Fatalf("msg.ID = %q; want server-assigned id", msg.ID)
	}
	if len(remote.posted) != 1 || remote.posted[0].Text != "hola coach" {
		t.Fatalf("posted = %+v; want trimmed text", remote.posted)
	}
	if remote.posted[0].Type != "general" {
		t.Fatalf("Type = %q; want default general", remote.posted[0].Type)
	}

	// The confirmed entry landed in the window.
	held, err := svc.Messages("c1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(held) != 1 || held[0].ID != "m-100" {
		t.Fatalf("window = %+v; want the confirmed message", held)
	}
}

func TestSend_Validation(t *testing.T) {
	svc := newTestService(&fakeAPI{})
	unsub := svc.StartPolling(context.Background(), "c1")
	defer unsub()

	if _, err := svc.Send(context.Background(), "c1", SendRequest{Text: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("empty text err = %v; want ErrEmptyMessage", err)
	}
	if _, err := svc.Send(context.Background(), "c1", SendRequest{Text: "hola", Type: "spam"}); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("bad type err = %v; want ErrInvalidType", err)
	}
	if _, err := svc.Send(context.Background(), "ghost", SendRequest{Text: "hola"}); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("unknown conversation err = %v; want ErrUnknownConversation", err)
	}
}

func TestSend_WithAttachment(t *testing.T) {
	remote := &fakeAPI{
		slot:      api.UploadSlot{UploadURL: "https://bucket/media/abc?sig=x", Key: "media/abc"},
		nextMsgID: "m-1",
	}
	svc := newTestService(remote)
	unsub := svc.StartPolling(context.Background(), "c1")
	defer unsub()

	payload := []byte{0xff, 0xd8, 0xff}
	msg, err := svc.Send(context.Background(), "c1", SendRequest{
		Text: "foto del entreno",
		Type: "entreno",
		Attachment: &Attachment{
			FileName:    "squat.jpg",
			ContentType: "image/jpeg",
			Kind:        domain.MediaImage,
			Data:        payload,
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(remote.putBodies) != 1 || !bytes.Equal(remote.putBodies[0], payload) {
		t.Fatalf("uploaded bytes = %v; want the attachment payload", remote.putBodies)
	}
	if remote.posted[0].Media == nil || remote.posted[0].Media.Key != "media/abc" {
		t.Fatalf("posted media = %+v; want key from the upload slot", remote.posted[0].Media)
	}
	if msg.Media == nil || msg.Media.Kind != domain.MediaImage {
		t.Fatalf("msg media = %+v", msg.Media)
	}
}

func TestSend_UploadFailureAborts(t *testing.T) {
	remote := &fakeAPI{slotErr: &api.ServerError{Status: 500, Body: "no slot"}}
	svc := newTestService(remote)
	unsub := svc.StartPolling(context.Background(), "c1")
	defer unsub()

	_, err := svc.Send(context.Background(), "c1", SendRequest{
		Text:       "con foto",
		Attachment: &Attachment{FileName: "a.jpg", ContentType: "image/jpeg", Data: []byte{1}},
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v; want ErrUploadFailed", err)
	}
	// Nothing was posted and the window is untouched: the message is intact
	// for a retry.
	if len(remote.posted) != 0 {
		t.Fatalf("posted = %+v; want none after upload failure", remote.posted)
	}
	if held, _ := svc.Messages("c1"); len(held) != 0 {
		t.Fatalf("window = %+v; want empty", held)
	}
}

func TestSend_PostFailure(t *testing.T) {
	remote := &fakeAPI{postErr: &api.NetworkError{Op: "POST", Err: errors.New("reset")}}
	svc := newTestService(remote)
	unsub := svc.StartPolling(context.Background(), "c1")
	defer unsub()

	_, err := svc.Send(context.Background(), "c1", SendRequest{Text: "hola"})
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("err = %v; want ErrSendFailed", err)
	}
	if held, _ := svc.Messages("c1"); len(held) != 0 {
		t.Fatalf("window = %+v; want empty after failed post", held)
	}
}

func TestService_Lifecycle(t *testing.T) {
	svc := newTestService(&fakeAPI{})

	unsub := svc.StartPolling(context.Background(), "c1")
	if _, err := svc.Messages("c1"); err != nil {
		t.Fatalf("Messages after start: %v", err)
	}
	if err := svc.Touch("c1"); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	unsub()
	if _, err := svc.Messages("c1"); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("Messages after unsubscribe err = %v; want ErrUnknownConversation", err)
	}

	svc.StartPolling(context.Background(), "a")
	svc.StartPolling(context.Background(), "b")
	svc.SetBackground(true)
	svc.StopAll()
	if err := svc.StopPolling("a"); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("StopPolling after StopAll err = %v; want ErrUnknownConversation", err)
	}
}
