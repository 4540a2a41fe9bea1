// Package chat – Service
//
// Service is the registry the gateway talks to: it owns one Window and one
// Poller per open conversation, fans the app foreground/background signal
// out to every poller, and hosts the send path. Conversations are
// independent; nothing here crosses between them.
package chat

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-coach-sync/internal/api"
	"github.com/tbourn/go-coach-sync/internal/domain"
)

// ChatAPI is the full remote capability set the service depends on.
// *api.Client satisfies it; handler tests substitute fakes.
type ChatAPI interface {
	MessageFetcher
	PostMessage(ctx context.Context, conversationID string, p api.SendPayload) (domain.Message, error)
	RequestUploadURL(ctx context.Context, r api.UploadRequest) (api.UploadSlot, error)
	PutObject(ctx context.Context, uploadURL, contentType string, body io.Reader) error
}

type conversation struct {
	window *Window
	poller *Poller
	stop   func()
}

// Service multiplexes windows and pollers across conversations.
type Service struct {
	remote    ChatAPI
	intervals Intervals
	windowCap int
	log       zerolog.Logger

	mu    sync.Mutex
	convs map[string]*conversation
}

// NewService builds a Service. windowCap <= 0 falls back to
// DefaultWindowCap.
func NewService(remote ChatAPI, iv Intervals, windowCap int) *Service {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &Service{
		remote:    remote,
		intervals: iv,
		windowCap: windowCap,
		convs:     make(map[string]*conversation),
		log:       log.With().Str("component", "chat").Logger(),
	}
}

// StartPolling opens a conversation: it creates the window and starts its
// poller. The returned function unsubscribes (stops the poller and forgets
// the conversation). Calling it for an already open conversation returns an
// unsubscribe for the existing one.
func (s *Service) StartPolling(ctx context.Context, conversationID string) (unsubscribe func()) {
	s.mu.Lock()
	if c, ok := s.convs[conversationID]; ok {
		s.mu.Unlock()
		return func() { s.closeConversation(conversationID, c) }
	}

	w := NewWindow(s.windowCap)
	p := NewPoller(conversationID, s.remote, w, s.intervals, s.windowCap)
	c := &conversation{window: w, poller: p}
	s.convs[conversationID] = c
	s.mu.Unlock()

	c.stop = p.Start(ctx)
	s.log.Info().Str("conversation_id", conversationID).Msg("polling started")
	return func() { s.closeConversation(conversationID, c) }
}

func (s *Service) closeConversation(id string, c *conversation) {
	s.mu.Lock()
	if cur, ok := s.convs[id]; ok && cur == c {
		delete(s.convs, id)
	}
	s.mu.Unlock()
	if c.stop != nil {
		c.stop()
	}
	s.log.Info().Str("conversation_id", id).Msg("polling stopped")
}

// StopPolling closes one conversation by id. It is the gateway-facing
// equivalent of calling the unsubscribe returned by StartPolling.
func (s *Service) StopPolling(conversationID string) error {
	c, ok := s.conv(conversationID)
	if !ok {
		return ErrUnknownConversation
	}
	s.closeConversation(conversationID, c)
	return nil
}

// Messages returns a copy of the held window for a conversation.
func (s *Service) Messages(conversationID string) ([]domain.Message, error) {
	c, ok := s.conv(conversationID)
	if !ok {
		return nil, ErrUnknownConversation
	}
	return c.window.Snapshot(), nil
}

// Touch records user activity in a conversation, tightening its poll
// cadence.
func (s *Service) Touch(conversationID string) error {
	c, ok := s.conv(conversationID)
	if !ok {
		return ErrUnknownConversation
	}
	c.poller.Touch()
	return nil
}

// SetBackground propagates the app foreground/background state to every
// open conversation.
func (s *Service) SetBackground(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		c.poller.SetBackground(v)
	}
}

// StopAll closes every conversation. Used on shutdown and logout.
func (s *Service) StopAll() {
	s.mu.Lock()
	convs := s.convs
	s.convs = make(map[string]*conversation)
	s.mu.Unlock()
	for _, c := range convs {
		if c.stop != nil {
			c.stop()
		}
	}
}

func (s *Service) conv(id string) (*conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	return c, ok
}
