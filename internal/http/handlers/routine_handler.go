// Routine HTTP handlers.
//
// This file exposes the routine list and the sync trigger:
//   - POST   /sync/routines      (run a reconcile, return the report)
//   - GET    /routines           (authoritative local list)
//   - GET    /routines/{id}      (full content of one routine)
//   - POST   /routines           (create a locally owned routine)
//   - DELETE /routines/{id}      (delete a locally owned routine)
//   - PUT    /routines/{id}/activate (select the active routine)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-sync/internal/domain"
	syncpkg "github.com/tbourn/go-coach-sync/internal/sync"
)

// RoutineSyncer runs one remote-to-local reconcile pass.
type RoutineSyncer interface {
	Reconcile(ctx context.Context) (domain.SyncReport, error)
}

// RoutineStore provides list/create/delete over locally stored routines.
type RoutineStore interface {
	List(ctx context.Context) ([]domain.RoutineMeta, error)
	Content(ctx context.Context, id string) (domain.RoutineContent, error)
	Create(ctx context.Context, name string, content domain.RoutineContent) (domain.RoutineMeta, error)
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string) error
}

// RoutineHandlers groups the routine endpoints.
type RoutineHandlers struct {
	syncer RoutineSyncer
	local  RoutineStore
}

// NewRoutineHandlers binds the handlers to the reconciler and local store.
func NewRoutineHandlers(syncer RoutineSyncer, local RoutineStore) *RoutineHandlers {
	return &RoutineHandlers{syncer: syncer, local: local}
}

// CreateRoutineRequest is the JSON payload for creating a local routine.
type CreateRoutineRequest struct {
	Name    string                `json:"name" binding:"required,min=1,max=255"`
	Content domain.RoutineContent `json:"content"`
}

// RoutineListResponse wraps the authoritative list.
type RoutineListResponse struct {
	Routines []domain.RoutineMeta `json:"routines"`
	Count    int                  `json:"count"`
}

// RoutineDetailResponse pairs one routine's meta with its full content.
type RoutineDetailResponse struct {
	Routine domain.RoutineMeta    `json:"routine"`
	Content domain.RoutineContent `json:"content"`
}

// SyncRoutines runs one reconcile against the backend. When the remote
// fetch fails, local state is untouched and a 502 with code sync_failed is
// returned; every other error is internal.
func (h *RoutineHandlers) SyncRoutines(c *gin.Context) {
	report, err := h.syncer.Reconcile(c.Request.Context())
	switch {
	case err == nil:
		ok(c, http.StatusOK, report)
	case syncpkg.IsFetchFailure(err):
		fail(c, http.StatusBadGateway, ErrCodeSyncFailed, "remote fetch failed; local routines unchanged")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "sync failed")
	}
}

// ListRoutines returns the authoritative local routine list.
func (h *RoutineHandlers) ListRoutines(c *gin.Context) {
	list, err := h.local.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load routines")
		return
	}
	ok(c, http.StatusOK, RoutineListResponse{Routines: list, Count: len(list)})
}

// GetRoutine returns one routine's meta and content.
func (h *RoutineHandlers) GetRoutine(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	list, err := h.local.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load routines")
		return
	}
	var meta *domain.RoutineMeta
	for i := range list {
		if list[i].ID == id {
			meta = &list[i]
			break
		}
	}
	if meta == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "routine not found")
		return
	}
	content, err := h.local.Content(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, syncpkg.ErrRoutineNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "routine content not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load routine content")
		return
	}
	ok(c, http.StatusOK, RoutineDetailResponse{Routine: *meta, Content: content})
}

// CreateRoutine stores a new locally owned routine.
func (h *RoutineHandlers) CreateRoutine(c *gin.Context) {
	var req CreateRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	meta, err := h.local.Create(c.Request.Context(), req.Name, req.Content)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, meta)
	case errors.Is(err, syncpkg.ErrEmptyName):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "routine name is empty")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create routine")
	}
}

// DeleteRoutine removes a locally owned routine. Server-owned entries are
// rejected with 409; the next sync would only re-materialize them.
func (h *RoutineHandlers) DeleteRoutine(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	err := h.local.Delete(c.Request.Context(), id)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, syncpkg.ErrServerOwned):
		fail(c, http.StatusConflict, ErrCodeConflict, "server-owned routines cannot be deleted locally")
	case errors.Is(err, syncpkg.ErrRoutineNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "routine not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete routine")
	}
}

// ActivateRoutine points the active-routine selection at an existing entry.
func (h *RoutineHandlers) ActivateRoutine(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	err := h.local.SetActive(c.Request.Context(), id)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, syncpkg.ErrRoutineNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "routine not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not activate routine")
	}
}
