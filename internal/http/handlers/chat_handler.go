// Conversation HTTP handlers.
//
// This file exposes the polling lifecycle and send path of one conversation:
//   - POST   /conversations/{id}/start     (open window, begin polling)
//   - DELETE /conversations/{id}           (stop polling, drop window)
//   - GET    /conversations/{id}/messages  (current window snapshot)
//   - POST   /conversations/{id}/messages  (blocking send)
//   - POST   /conversations/{id}/activity  (user activity signal)
//
// Handlers are transport-thin: they validate input, call the chat service,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-sync/internal/chat"
	"github.com/tbourn/go-coach-sync/internal/domain"
)

// ConversationService defines the chat operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use. StartPolling's context
// scopes the whole polling loop, so the handler passes a long-lived one
// rather than the request context.
type ConversationService interface {
	// StartPolling opens (or reuses) the conversation's window and begins
	// the adaptive poll loop. The returned unsubscribe stops it.
	StartPolling(ctx context.Context, conversationID string) (unsubscribe func())
	// StopPolling stops one conversation's loop and drops its window.
	StopPolling(conversationID string) error
	// Messages returns the conversation's current message window, oldest first.
	Messages(conversationID string) ([]domain.Message, error)
	// Touch records user activity, resetting the poll cadence to active.
	Touch(conversationID string) error
	// Send uploads any attachment, posts the message, and merges the
	// confirmed entry into the window. Blocking.
	Send(ctx context.Context, conversationID string, req chat.SendRequest) (domain.Message, error)
}

// ChatHandlers groups the conversation endpoints.
type ChatHandlers struct {
	svc  ConversationService
	base context.Context
}

// NewChatHandlers binds the handlers to a chat service. baseCtx scopes the
// polling loops started through the gateway; it should be the process
// context so shutdown cancels in-flight fetches.
func NewChatHandlers(baseCtx context.Context, svc ConversationService) *ChatHandlers {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &ChatHandlers{svc: svc, base: baseCtx}
}

// SendMessageRequest is the JSON payload for posting a message. Attachment
// bytes travel base64-encoded; the gateway performs the presigned upload
// before the message is posted.
type SendMessageRequest struct {
	Text string `json:"text"`
	Type string `json:"type"`

	Attachment *struct {
		FileName    string `json:"file_name" binding:"required"`
		ContentType string `json:"content_type" binding:"required"`
		Kind        string `json:"kind"`
		Data        string `json:"data" binding:"required"`
	} `json:"attachment,omitempty"`
}

// MessagesResponse wraps a window snapshot.
type MessagesResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
	Count          int              `json:"count"`
}

// StartConversation opens the conversation window and starts polling.
// Starting an already-open conversation is a no-op and still returns 204.
func (h *ChatHandlers) StartConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id is required")
		return
	}
	h.svc.StartPolling(h.base, id)
	noContent(c)
}

// StopConversation stops polling and discards the window.
func (h *ChatHandlers) StopConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.svc.StopPolling(id); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation is not open")
		return
	}
	noContent(c)
}

// ListMessages returns the current window snapshot.
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	msgs, err := h.svc.Messages(id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation is not open")
		return
	}
	ok(c, http.StatusOK, MessagesResponse{ConversationID: id, Messages: msgs, Count: len(msgs)})
}

// SendMessage posts a message (optionally with an attachment) and returns
// the confirmed entry. The call blocks until the backend acknowledges.
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	sr := chat.SendRequest{Text: req.Text, Type: req.Type}
	if req.Attachment != nil {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Data)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "attachment data is not valid base64")
			return
		}
		sr.Attachment = &chat.Attachment{
			FileName:    req.Attachment.FileName,
			ContentType: req.Attachment.ContentType,
			Kind:        domain.MediaKind(req.Attachment.Kind),
			Data:        data,
		}
	}

	msg, err := h.svc.Send(c.Request.Context(), id, sr)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, msg)
	case errors.Is(err, chat.ErrUnknownConversation):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation is not open")
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidType):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, chat.ErrUploadFailed):
		fail(c, http.StatusBadGateway, ErrCodeUploadFailed, "attachment upload failed")
	default:
		fail(c, http.StatusBadGateway, ErrCodeSendFailed, "message send failed")
	}
}

// Activity records user interaction with the conversation, switching the
// poll cadence back to the active interval.
func (h *ChatHandlers) Activity(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.svc.Touch(id); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation is not open")
		return
	}
	noContent(c)
}
