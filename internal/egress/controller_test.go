package egress

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/internal/repository"
	"github.com/genialityco/gen-live-web-sub001/internal/store"
)

type fakeProvider struct {
	mu        sync.Mutex
	startErr  error
	stopErr   error
	statusErr error
	status    string
	jobErr    string
	started   int
	stopped   int
	lastStart StartRequest
}

func (f *fakeProvider) Start(ctx context.Context, req StartRequest) (domain.EgressJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return domain.EgressJob{}, f.startErr
	}
	f.started++
	f.lastStart = req
	return domain.EgressJob{EgressID: "eg-1", Status: domain.EgressStatusStarting}, nil
}

func (f *fakeProvider) Stop(ctx context.Context, egressID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeProvider) Status(ctx context.Context, egressID string) (domain.EgressJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return domain.EgressJob{}, f.statusErr
	}
	return domain.EgressJob{EgressID: egressID, Status: f.status, Error: f.jobErr}, nil
}

func (f *fakeProvider) setStatus(status string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.statusErr = err
}

func newTestController(t *testing.T, provider *fakeProvider) (*Controller, store.StageStore, repository.SessionRepository) {
	t.Helper()
	st := store.NewMemoryStore()
	sessions := repository.NewMemorySessionRepository()
	c := NewController(provider, st, sessions, "https://live.example.com", 20*time.Millisecond)
	t.Cleanup(c.Close)
	return c, st, sessions
}

func TestController_startMirrorsJob(t *testing.T) {
	provider := &fakeProvider{status: domain.EgressStatusStarting}
	c, st, _ := newTestController(t, provider)
	ctx := context.Background()

	job, err := c.Start(ctx, "ev1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.EgressID != "eg-1" {
		t.Fatalf("egress id = %q", job.EgressID)
	}

	state, err := st.GetStage(ctx, "ev1")
	if err != nil {
		t.Fatalf("GetStage: %v", err)
	}
	if state.EgressID != "eg-1" || state.EgressStatus != domain.EgressStatusStarting {
		t.Fatalf("mirror = %q/%q", state.EgressID, state.EgressStatus)
	}
	if !strings.Contains(provider.lastStart.ProgramURL, "/program/ev1") {
		t.Fatalf("program url = %q", provider.lastStart.ProgramURL)
	}
}

func TestController_startFailureLeavesEventIdle(t *testing.T) {
	provider := &fakeProvider{startErr: errors.New("provider down")}
	c, st, _ := newTestController(t, provider)
	ctx := context.Background()

	if _, err := c.Start(ctx, "ev1"); err == nil {
		t.Fatal("expected start error")
	}

	state, _ := st.GetStage(ctx, "ev1")
	if state.Transmitting() {
		t.Fatalf("mirror set after failed start: %q", state.EgressID)
	}

	provider.mu.Lock()
	provider.startErr = nil
	provider.mu.Unlock()
	if _, err := c.Start(ctx, "ev1"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestController_doubleStartConflicts(t *testing.T) {
	provider := &fakeProvider{status: domain.EgressStatusActive}
	c, _, _ := newTestController(t, provider)
	ctx := context.Background()

	if _, err := c.Start(ctx, "ev1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Start(ctx, "ev1"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start err = %v, want ErrAlreadyRunning", err)
	}
	if provider.started != 1 {
		t.Fatalf("provider started %d times", provider.started)
	}
}

func TestController_stopClearsMirrorEvenOnProviderError(t *testing.T) {
	provider := &fakeProvider{status: domain.EgressStatusActive, stopErr: errors.New("timeout")}
	c, st, _ := newTestController(t, provider)
	ctx := context.Background()

	if _, err := c.Start(ctx, "ev1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(ctx, "ev1"); err == nil {
		t.Fatal("expected stop error to surface")
	}

	state, _ := st.GetStage(ctx, "ev1")
	if state.Transmitting() {
		t.Fatalf("mirror not cleared: %q/%q", state.EgressID, state.EgressStatus)
	}
	if _, err := c.Start(ctx, "ev1"); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
}

func TestController_stopWithoutJob(t *testing.T) {
	c, _, _ := newTestController(t, &fakeProvider{})
	if err := c.Stop(context.Background(), "ev1"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}

func TestController_pollRefreshesMirror(t *testing.T) {
	provider := &fakeProvider{status: domain.EgressStatusStarting}
	c, st, sessions := newTestController(t, provider)
	ctx := context.Background()

	if _, err := c.Start(ctx, "ev1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	provider.setStatus(domain.EgressStatusActive, nil)

	waitFor(t, func() bool {
		state, _ := st.GetStage(ctx, "ev1")
		return state.EgressStatus == domain.EgressStatusActive
	})

	runs, err := sessions.ListByEvent(ctx, "ev1")
	if err != nil || len(runs) != 1 {
		t.Fatalf("sessions = %v, %v", runs, err)
	}
	if runs[0].LastStatus != domain.EgressStatusActive {
		t.Fatalf("session status = %q", runs[0].LastStatus)
	}
}

func TestController_pollErrorsAreSwallowed(t *testing.T) {
	provider := &fakeProvider{status: domain.EgressStatusActive}
	c, st, _ := newTestController(t, provider)
	ctx := context.Background()

	if _, err := c.Start(ctx, "ev1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool {
		state, _ := st.GetStage(ctx, "ev1")
		return state.EgressStatus == domain.EgressStatusActive
	})

	provider.setStatus("", errors.New("flaky"))
	time.Sleep(80 * time.Millisecond)

	state, _ := st.GetStage(ctx, "ev1")
	if state.EgressID != "eg-1" || state.EgressStatus != domain.EgressStatusActive {
		t.Fatalf("mirror changed on poll error: %q/%q", state.EgressID, state.EgressStatus)
	}

	provider.setStatus(domain.EgressStatusEnding, nil)
	waitFor(t, func() bool {
		state, _ := st.GetStage(ctx, "ev1")
		return state.EgressStatus == domain.EgressStatusEnding
	})
}

func TestController_statusFallsBackToMirror(t *testing.T) {
	provider := &fakeProvider{status: domain.EgressStatusActive}
	c, _, _ := newTestController(t, provider)
	ctx := context.Background()

	if _, err := c.Start(ctx, "ev1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	provider.setStatus("", errors.New("unreachable"))
	job, err := c.Status(ctx, "ev1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.EgressID != "eg-1" {
		t.Fatalf("job = %+v", job)
	}
}

func TestController_statusIdleEvent(t *testing.T) {
	c, _, _ := newTestController(t, &fakeProvider{})
	job, err := c.Status(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.EgressID != "" || job.Status != "" {
		t.Fatalf("job = %+v, want empty", job)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
