package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-sync/internal/chat"
	"github.com/tbourn/go-coach-sync/internal/config"
	"github.com/tbourn/go-coach-sync/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

type stubChat struct{}

func (stubChat) StartPolling(ctx context.Context, id string) func() { return func() {} }
func (stubChat) StopPolling(id string) error                        { return chat.ErrUnknownConversation }
func (stubChat) Messages(id string) ([]domain.Message, error) {
	return nil, chat.ErrUnknownConversation
}
func (stubChat) Touch(id string) error { return chat.ErrUnknownConversation }
func (stubChat) Send(ctx context.Context, id string, req chat.SendRequest) (domain.Message, error) {
	return domain.Message{}, chat.ErrUnknownConversation
}
func (stubChat) SetBackground(v bool) {}
func (stubChat) StopAll()             {}

type stubSyncer struct{ report domain.SyncReport }

func (s stubSyncer) Reconcile(ctx context.Context) (domain.SyncReport, error) {
	return s.report, nil
}

type stubRoutines struct{}

func (stubRoutines) List(ctx context.Context) ([]domain.RoutineMeta, error) {
	return []domain.RoutineMeta{}, nil
}
func (stubRoutines) Content(ctx context.Context, id string) (domain.RoutineContent, error) {
	return nil, nil
}
func (stubRoutines) Create(ctx context.Context, name string, c domain.RoutineContent) (domain.RoutineMeta, error) {
	return domain.RoutineMeta{ID: "new"}, nil
}
func (stubRoutines) Delete(ctx context.Context, id string) error    { return nil }
func (stubRoutines) SetActive(ctx context.Context, id string) error { return nil }

type stubStore struct{}

func (stubStore) Clear(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r := gin.New()
	cfg := config.Config{}
	cfg.OTEL.ServiceName = "coach-sync-test"
	RegisterRoutes(context.Background(), r, Services{
		Chat:     stubChat{},
		ChatApp:  stubChat{},
		Syncer:   stubSyncer{report: domain.SyncReport{ServerIDs: []string{}}},
		Routines: stubRoutines{},
		Store:    stubStore{},
	}, cfg)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	w := get(newTestRouter(t), "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	w := get(newTestRouter(t), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	w := get(newTestRouter(t), "/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	if body.Code != "not_found" {
		t.Fatalf("code = %q; want not_found", body.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/routines", nil)
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d; want 405", w.Code)
	}
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	r := newTestRouter(t)

	// Generated when absent.
	w := get(r, "/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID not set on response")
	}

	// Echoed when present.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Fatalf("X-Request-ID = %q; want fixed-id", got)
	}
}

func TestRouter_SyncEndpointWired(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/routines", nil)
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (%s)", w.Code, w.Body.String())
	}
}

func TestRouter_UnknownConversationIs404(t *testing.T) {
	w := get(newTestRouter(t), "/api/v1/conversations/ghost/messages")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
}
