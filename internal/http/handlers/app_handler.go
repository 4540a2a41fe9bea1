// App-level handlers: foreground/background state and logout.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-sync/internal/http/middleware"
)

// BackgroundSetter fans an app-state change out to all poll loops.
type BackgroundSetter interface {
	SetBackground(v bool)
	StopAll()
}

// StorageWiper clears every locally stored entry.
type StorageWiper interface {
	Clear(ctx context.Context) error
}

// AppHandlers groups the app-state endpoints.
type AppHandlers struct {
	chat  BackgroundSetter
	store StorageWiper
}

// NewAppHandlers binds the handlers to the chat service and the store.
func NewAppHandlers(chat BackgroundSetter, store StorageWiper) *AppHandlers {
	return &AppHandlers{chat: chat, store: store}
}

// AppStateRequest is the JSON payload for reporting app state.
type AppStateRequest struct {
	Background bool `json:"background"`
}

// SetAppState switches every open conversation between foreground and
// background poll cadence.
func (h *AppHandlers) SetAppState(c *gin.Context) {
	var req AppStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.chat.SetBackground(req.Background)
	noContent(c)
}

// Logout stops all polling and wipes local storage. Poll loops are stopped
// first so no fetch can repopulate entries mid-wipe.
func (h *AppHandlers) Logout(c *gin.Context) {
	h.chat.StopAll()
	if err := h.store.Clear(c.Request.Context()); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("storage wipe failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not clear local storage")
		return
	}
	noContent(c)
}
