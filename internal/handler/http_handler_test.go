package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/genialityco/gen-live-web-sub001/internal/config"
	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/internal/hub"
	"github.com/genialityco/gen-live-web-sub001/internal/middleware"
	"github.com/genialityco/gen-live-web-sub001/internal/service"
	"github.com/genialityco/gen-live-web-sub001/internal/store"
	"github.com/genialityco/gen-live-web-sub001/pkg/response"
	"github.com/genialityco/gen-live-web-sub001/pkg/token"
)

type stubTransmitter struct {
	job domain.EgressJob
	err error
}

func (s *stubTransmitter) Start(ctx context.Context, eventID string) (domain.EgressJob, error) {
	return s.job, s.err
}
func (s *stubTransmitter) Stop(ctx context.Context, eventID string) error { return s.err }
func (s *stubTransmitter) Status(ctx context.Context, eventID string) (domain.EgressJob, error) {
	return s.job, nil
}
func (s *stubTransmitter) Sessions(ctx context.Context, eventID string) ([]domain.TransmissionSession, error) {
	return nil, nil
}

type stubTracks struct{ tracks []domain.LiveTrack }

func (s *stubTracks) LiveTracks(ctx context.Context, eventID string) ([]domain.LiveTrack, error) {
	return s.tracks, nil
}

type testEnv struct {
	router *gin.Engine
	tokens *token.Manager
	store  store.StageStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := token.NewManager(time.Hour, "stage-service-test")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	svc := service.NewStageService(st, tokens, &stubTransmitter{}, &stubTracks{})
	authMw := middleware.NewAuthMiddleware(tokens)
	stageHub := hub.NewHub(st)
	go stageHub.Run()
	wsHandler := NewWSHandler(stageHub, tokens, config.WebSocketConfig{
		PingInterval: 30 * time.Second, PongWait: 60 * time.Second,
		WriteWait: 10 * time.Second, MaxMessageSize: 4096,
	})

	router := gin.New()
	NewHandler(svc, authMw, wsHandler).RegisterRoutes(router)

	return &testEnv{router: router, tokens: tokens, store: st}
}

func (e *testEnv) request(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) mint(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := e.tokens.Mint(uid, "ev1", uid, role)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return tok
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !resp.OK {
		t.Fatalf("response not ok: %s", w.Body.String())
	}
	if out != nil {
		b, _ := json.Marshal(resp.Data)
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func TestRoutes_authRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/api/v1/events/ev1/stage", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = env.request(t, http.MethodPost, "/api/v1/events/ev1/stage/promote", "garbage", gin.H{"uid": "x"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRoutes_eventScope(t *testing.T) {
	env := newTestEnv(t)
	host := env.mint(t, "host1", token.RoleHost)

	// An ev1 token grants nothing on another event, host role or not.
	w := env.request(t, http.MethodGet, "/api/v1/events/ev2/stage", host, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	w = env.request(t, http.MethodPost, "/api/v1/events/ev2/stage/promote", host, gin.H{"uid": "alice"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	if w := env.request(t, http.MethodGet, "/api/v1/events/ev1/stage", host, nil); w.Code != http.StatusOK {
		t.Fatalf("own event status = %d", w.Code)
	}
}

func TestRoutes_hostGate(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.mint(t, "bob", token.RoleViewer)

	w := env.request(t, http.MethodPost, "/api/v1/events/ev1/stage/promote", viewer, gin.H{"uid": "bob"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRoutes_programIsPublic(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/api/v1/events/ev1/program", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var view service.ProgramView
	decodeData(t, w, &view)
	if !view.Plan.Placeholder {
		t.Fatalf("plan = %+v, want placeholder", view.Plan)
	}

	w = env.request(t, http.MethodGet, "/api/v1/events/ev1/program?layout=cinema", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRoutes_stageOps(t *testing.T) {
	env := newTestEnv(t)
	host := env.mint(t, "host1", token.RoleHost)

	if w := env.request(t, http.MethodPost, "/api/v1/events/ev1/stage/promote", host, gin.H{"uid": "alice"}); w.Code != http.StatusOK {
		t.Fatalf("promote status = %d: %s", w.Code, w.Body.String())
	}
	if w := env.request(t, http.MethodPost, "/api/v1/events/ev1/stage/pin", host, gin.H{"uid": "alice"}); w.Code != http.StatusOK {
		t.Fatalf("pin status = %d", w.Code)
	}
	if w := env.request(t, http.MethodPut, "/api/v1/events/ev1/stage/layout", host, gin.H{"layout": "grid"}); w.Code != http.StatusOK {
		t.Fatalf("layout status = %d", w.Code)
	}
	if w := env.request(t, http.MethodPut, "/api/v1/events/ev1/stage/layout", host, gin.H{"layout": "cinema"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad layout status = %d", w.Code)
	}

	w := env.request(t, http.MethodGet, "/api/v1/events/ev1/stage", host, nil)
	var state domain.StageState
	decodeData(t, w, &state)
	if !state.OnStage["alice"] || state.ActiveID != "alice" || state.LayoutMode != domain.LayoutGrid {
		t.Fatalf("state = %+v", state)
	}
}

func TestRoutes_joinWorkflow(t *testing.T) {
	env := newTestEnv(t)
	host := env.mint(t, "host1", token.RoleHost)
	viewer := env.mint(t, "bob", token.RoleViewer)

	// No decision before any request.
	if w := env.request(t, http.MethodGet, "/api/v1/events/ev1/decision", viewer, nil); w.Code != http.StatusNotFound {
		t.Fatalf("decision status = %d, want 404", w.Code)
	}

	w := env.request(t, http.MethodPost, "/api/v1/events/ev1/join-requests", viewer, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created domain.JoinRequest
	decodeData(t, w, &created)

	// A second request while pending conflicts.
	if w := env.request(t, http.MethodPost, "/api/v1/events/ev1/join-requests", viewer, nil); w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", w.Code)
	}

	// Host sees it in the queue.
	w = env.request(t, http.MethodGet, "/api/v1/events/ev1/join-requests", host, nil)
	var pending []domain.JoinRequest
	decodeData(t, w, &pending)
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("pending = %+v", pending)
	}

	approvePath := fmt.Sprintf("/api/v1/events/ev1/join-requests/%s/approve", created.ID)
	if w := env.request(t, http.MethodPost, approvePath, host, nil); w.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", w.Code, w.Body.String())
	}
	// Approving twice conflicts.
	if w := env.request(t, http.MethodPost, approvePath, host, nil); w.Code != http.StatusConflict {
		t.Fatalf("re-approve status = %d, want 409", w.Code)
	}

	// The viewer picks up the approval with a usable speaker token.
	w = env.request(t, http.MethodGet, "/api/v1/events/ev1/decision", viewer, nil)
	var d domain.JoinDecision
	decodeData(t, w, &d)
	if d.Status != domain.DecisionApproved || d.Token == "" {
		t.Fatalf("decision = %+v", d)
	}
	claims, err := env.tokens.Validate(d.Token)
	if err != nil || claims.Role != token.RoleSpeaker {
		t.Fatalf("speaker token invalid: %v %+v", err, claims)
	}
}

func TestRoutes_cancelIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.mint(t, "bob", token.RoleViewer)
	other := env.mint(t, "carol", token.RoleViewer)

	w := env.request(t, http.MethodPost, "/api/v1/events/ev1/join-requests", viewer, nil)
	var created domain.JoinRequest
	decodeData(t, w, &created)

	path := fmt.Sprintf("/api/v1/events/ev1/join-requests/%s", created.ID)
	if w := env.request(t, http.MethodDelete, path, other, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign cancel status = %d, want 403", w.Code)
	}
	if w := env.request(t, http.MethodDelete, path, viewer, nil); w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", w.Code)
	}
	if w := env.request(t, http.MethodDelete, path, viewer, nil); w.Code != http.StatusConflict {
		t.Fatalf("re-cancel status = %d, want 409", w.Code)
	}
}

func TestRoutes_rejectCarriesMessage(t *testing.T) {
	env := newTestEnv(t)
	host := env.mint(t, "host1", token.RoleHost)
	viewer := env.mint(t, "bob", token.RoleViewer)

	w := env.request(t, http.MethodPost, "/api/v1/events/ev1/join-requests", viewer, nil)
	var created domain.JoinRequest
	decodeData(t, w, &created)

	path := fmt.Sprintf("/api/v1/events/ev1/join-requests/%s/reject", created.ID)
	if w := env.request(t, http.MethodPost, path, host, gin.H{"message": "stage is full"}); w.Code != http.StatusOK {
		t.Fatalf("reject status = %d", w.Code)
	}

	w = env.request(t, http.MethodGet, "/api/v1/events/ev1/decision", viewer, nil)
	var d domain.JoinDecision
	decodeData(t, w, &d)
	if d.Status != domain.DecisionRejected || d.Message != "stage is full" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestRoutes_kickRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	host := env.mint(t, "host1", token.RoleHost)
	speaker := env.mint(t, "dave", token.RoleSpeaker)

	if w := env.request(t, http.MethodPost, "/api/v1/events/ev1/stage/promote", host, gin.H{"uid": "dave"}); w.Code != http.StatusOK {
		t.Fatalf("promote status = %d", w.Code)
	}
	if w := env.request(t, http.MethodPost, "/api/v1/events/ev1/stage/kick", host, gin.H{"uid": "dave"}); w.Code != http.StatusOK {
		t.Fatalf("kick status = %d", w.Code)
	}

	// The kicked speaker's token no longer authenticates.
	if w := env.request(t, http.MethodGet, "/api/v1/events/ev1/stage", speaker, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("post-kick status = %d, want 401", w.Code)
	}
}

func TestRoutes_health(t *testing.T) {
	env := newTestEnv(t)
	if w := env.request(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
}
