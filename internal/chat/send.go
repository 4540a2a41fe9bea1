// Package chat – send path.
//
// Sending is synchronous and optimistic-free: the attachment (if any) is
// uploaded first, blocking, then the message is posted, then the
// server-confirmed entry is merged into the window under the same dedup and
// cap rules as poll results. Because the merge is by id, the confirmed
// entry and the same message arriving via a later poll collapse to one.
//
// Failure split: an upload failure aborts the send before anything reached
// the conversation, so the composed message is intact for a retry. A post
// failure after a successful upload surfaces as an error without retry; the
// already-uploaded object is orphaned on purpose.
package chat

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-coach-sync/internal/api"
	"github.com/tbourn/go-coach-sync/internal/domain"
)

// messageTypes is the allowed category tag set. Empty normalizes to
// "general".
var messageTypes = map[string]struct{}{
	"general":     {},
	"entreno":     {},
	"nutricion":   {},
	"evolucion":   {},
	"seguimiento": {},
}

// Attachment is a to-be-uploaded media binary.
type Attachment struct {
	FileName    string
	ContentType string
	Kind        domain.MediaKind
	Data        []byte
}

// SendRequest is one outgoing message.
type SendRequest struct {
	Text       string
	Type       string
	Attachment *Attachment
}

// Send uploads the attachment (if any), posts the message, and merges the
// confirmed entry into the conversation window. The conversation must have
// been started via StartPolling.
func (s *Service) Send(ctx context.Context, conversationID string, req SendRequest) (domain.Message, error) {
	tr := otel.Tracer("chat/Service")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	c, ok := s.conv(conversationID)
	if !ok {
		return domain.Message{}, ErrUnknownConversation
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" && req.Attachment == nil {
		return domain.Message{}, ErrEmptyMessage
	}
	if req.Type == "" {
		req.Type = "general"
	}
	if _, ok := messageTypes[req.Type]; !ok {
		return domain.Message{}, ErrInvalidType
	}

	// Sending counts as activity.
	c.poller.Touch()

	payload := api.SendPayload{Text: req.Text, Type: req.Type}

	if a := req.Attachment; a != nil {
		media, err := s.uploadAttachment(ctx, conversationID, a)
		if err != nil {
			s.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("attachment upload failed; send aborted")
			return domain.Message{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		payload.Media = media
	}

	msg, err := s.remote.PostMessage(ctx, conversationID, payload)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("message post failed")
		return domain.Message{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	c.window.Apply([]domain.Message{msg})
	return msg, nil
}

func (s *Service) uploadAttachment(ctx context.Context, conversationID string, a *Attachment) (*domain.MediaRef, error) {
	slot, err := s.remote.RequestUploadURL(ctx, api.UploadRequest{
		FileName:       a.FileName,
		ContentType:    a.ContentType,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.remote.PutObject(ctx, slot.UploadURL, a.ContentType, bytes.NewReader(a.Data)); err != nil {
		return nil, err
	}
	kind := a.Kind
	if kind == "" {
		kind = domain.MediaFile
	}
	return &domain.MediaRef{Key: slot.Key, Kind: kind}, nil
}
