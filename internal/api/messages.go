// Package api – message feed.
//
// The feed endpoint supports conditional fetches: the client echoes the
// Last-Modified value of the previous response as If-Modified-Since, and the
// backend answers 304 with an empty body when nothing changed. That makes
// the 2-second active poll cheap for both sides.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-coach-sync/internal/domain"
)

// MessagesResult is the outcome of one conditional feed fetch. When
// NotModified is set the other fields are zero and the caller should keep
// its current window.
type MessagesResult struct {
	NotModified  bool
	Messages     []domain.Message
	LastModified string
}

// SendPayload is the body of a message post.
type SendPayload struct {
	Text  string           `json:"message"`
	Type  string           `json:"type"`
	Media *domain.MediaRef `json:"mediaRef,omitempty"`
}

// wireMessage mirrors the backend's message shape. Ids arrive as "_id",
// the text field is "message", and senderId may be either a bare id string
// or an expanded {_id, nombre} object.
type wireMessage struct {
	ID             string          `json:"_id"`
	AltID          string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	SenderID       json.RawMessage `json:"senderId"`
	Type           string          `json:"type"`
	Text           string          `json:"message"`
	MediaKey       string          `json:"mediaKey"`
	MediaKind      string          `json:"mediaType"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (w wireMessage) toDomain(conversationID string) (domain.Message, error) {
	id := w.ID
	if id == "" {
		id = w.AltID
	}
	if id == "" {
		return domain.Message{}, &ValidationError{Field: "_id", Reason: "missing"}
	}

	m := domain.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       decodeSenderID(w.SenderID),
		Type:           w.Type,
		Text:           w.Text,
		CreatedAt:      w.CreatedAt,
	}
	if w.ConversationID != "" {
		m.ConversationID = w.ConversationID
	}
	if m.Type == "" {
		m.Type = "general"
	}
	if w.MediaKey != "" {
		m.Media = &domain.MediaRef{Key: w.MediaKey, Kind: domain.MediaKind(w.MediaKind)}
	}
	return m, nil
}

// decodeSenderID accepts "abc", {"_id":"abc",...}, or null.
func decodeSenderID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// FetchMessages performs a conditional fetch of the most recent messages of
// one conversation. ifModifiedSince is the Last-Modified value of the
// previous response ("" on the first call). Individual malformed records are
// dropped with a log line; the batch as a whole only fails on transport or
// envelope errors.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, limit int, ifModifiedSince string) (*MessagesResult, error) {
	ctx, span := c.tracer().Start(ctx, "FetchMessages",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	path := "conversations/" + conversationID + "/messages?limit=" + strconv.Itoa(limit)
	spanPath(span, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, &NetworkError{Op: "build request", Err: err}
	}
	if ifModifiedSince != "" {
		req.Header.Set("If-Modified-Since", ifModifiedSince)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &MessagesResult{NotModified: true}, nil
	}

	var envelope struct {
		Success  bool          `json:"success"`
		Messages []wireMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &ParseError{Err: err}
	}

	out := make([]domain.Message, 0, len(envelope.Messages))
	for _, w := range envelope.Messages {
		m, err := w.toDomain(conversationID)
		if err != nil {
			c.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("dropping malformed message record")
			continue
		}
		out = append(out, m)
	}

	return &MessagesResult{
		Messages:     out,
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// PostMessage sends one message and returns the server-confirmed entry
// (carrying the server-assigned id).
func (c *Client) PostMessage(ctx context.Context, conversationID string, p SendPayload) (domain.Message, error) {
	ctx, span := c.tracer().Start(ctx, "PostMessage",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	var envelope struct {
		Success bool        `json:"success"`
		Message wireMessage `json:"message"`
	}
	path := "conversations/" + conversationID + "/messages"
	if err := c.postJSON(ctx, path, p, &envelope); err != nil {
		return domain.Message{}, err
	}
	return envelope.Message.toDomain(conversationID)
}

// MarkRead tells the backend the conversation has been read. Best-effort:
// callers log and move on when it fails.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	ctx, span := c.tracer().Start(ctx, "MarkRead",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url("conversations/"+conversationID+"/read"), nil)
	if err != nil {
		return &NetworkError{Op: "build request", Err: err}
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
