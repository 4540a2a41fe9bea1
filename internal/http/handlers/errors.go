// Package handlers defines the stable error codes returned by the gateway.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status
// semantics; domain codes distinguish the sync and send failure modes that
// a status alone cannot convey (a 502 from /sync/routines means the remote
// fetch failed and local state was left untouched).
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeSyncFailed   = "sync_failed"
	ErrCodeSendFailed   = "send_failed"
	ErrCodeUploadFailed = "upload_failed"
)
