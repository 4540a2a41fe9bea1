// Package chat keeps a bounded, deduplicated window of messages per
// conversation approximately fresh via adaptive polling, and implements the
// send path. This file centralizes the package's sentinel errors; mapping
// them to user-facing responses happens at the gateway layer.
package chat

import "errors"

var (
	// ErrEmptyMessage is returned when a send request carries no text and
	// no attachment.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInvalidType is returned when a send request carries a category tag
	// outside the allowed set.
	ErrInvalidType = errors.New("invalid message type")

	// ErrUploadFailed wraps an attachment upload failure. The send was
	// aborted before the post, so the composed message is safe to retry.
	ErrUploadFailed = errors.New("attachment upload failed")

	// ErrSendFailed wraps a message post failure. When an attachment was
	// involved it has already been uploaded; the orphaned object is an
	// accepted tradeoff and is not cleaned up.
	ErrSendFailed = errors.New("message post failed")

	// ErrUnknownConversation is returned when an operation references a
	// conversation that was never started.
	ErrUnknownConversation = errors.New("unknown conversation")
)
