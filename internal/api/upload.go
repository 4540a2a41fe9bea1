// Package api – presigned uploads.
//
// Attachments never travel through the backend: the client asks for a
// presigned URL, PUTs the binary straight to object storage, and then posts
// the message carrying only the object key. The PUT deliberately skips
// bearer auth — the signature in the URL is the credential.
package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UploadRequest asks the backend for a presigned upload slot.
type UploadRequest struct {
	FileName       string `json:"fileName"`
	ContentType    string `json:"contentType"`
	ConversationID string `json:"conversationId"`
}

// UploadSlot is the backend's answer: where to PUT the binary and the key
// to reference it by.
type UploadSlot struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// RequestUploadURL obtains a presigned upload slot for one attachment.
func (c *Client) RequestUploadURL(ctx context.Context, r UploadRequest) (UploadSlot, error) {
	ctx, span := c.tracer().Start(ctx, "RequestUploadURL",
		trace.WithAttributes(attribute.String("upload.content_type", r.ContentType)),
	)
	defer span.End()

	var envelope struct {
		Success   bool   `json:"success"`
		UploadURL string `json:"uploadUrl"`
		Key       string `json:"key"`
	}
	if err := c.postJSON(ctx, "upload-url", r, &envelope); err != nil {
		return UploadSlot{}, err
	}
	if envelope.UploadURL == "" || envelope.Key == "" {
		return UploadSlot{}, &ValidationError{Field: "uploadUrl", Reason: "missing"}
	}
	return UploadSlot{UploadURL: envelope.UploadURL, Key: envelope.Key}, nil
}

// PutObject streams body to a presigned URL. The URL is absolute (it points
// at the storage provider, not the API base) and carries its own auth.
func (c *Client) PutObject(ctx context.Context, uploadURL, contentType string, body io.Reader) error {
	ctx, span := c.tracer().Start(ctx, "PutObject")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return &NetworkError{Op: "build request", Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: "PUT upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
