package egress

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/internal/repository"
	"github.com/genialityco/gen-live-web-sub001/internal/store"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
)

var (
	// ErrAlreadyRunning is returned when a start is attempted while the
	// event already references an egress job.
	ErrAlreadyRunning = errors.New("an egress job is already running for this event")

	// ErrNotRunning is returned when a stop is attempted with no job.
	ErrNotRunning = errors.New("no egress job is running for this event")
)

// Controller drives the egress job lifecycle per event:
// idle → starting → running → stopping → idle, with running → failed on
// provider error. It owns only the denormalized mirror on the stage state;
// the provider is the source of truth for the job itself.
type Controller struct {
	provider    Provider
	stageStore  store.StageStore
	sessions    repository.SessionRepository
	viewBaseURL string
	interval    time.Duration

	mu       sync.Mutex
	watchers map[string]*watcher // eventID → poller
}

type watcher struct {
	egressID string
	cancel   context.CancelFunc
}

// NewController creates a new egress lifecycle controller. viewBaseURL is
// the public base of the unauthenticated program view the provider captures.
func NewController(provider Provider, stageStore store.StageStore, sessions repository.SessionRepository, viewBaseURL string, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Controller{
		provider:    provider,
		stageStore:  stageStore,
		sessions:    sessions,
		viewBaseURL: viewBaseURL,
		interval:    interval,
		watchers:    make(map[string]*watcher),
	}
}

// ProgramViewURL builds the parameter-driven view the provider loads
// headlessly.
func (c *Controller) ProgramViewURL(eventID string, layout domain.LayoutMode) string {
	return fmt.Sprintf("%s/program/%s?layout=%s", c.viewBaseURL, url.PathEscape(eventID), url.QueryEscape(string(layout)))
}

// Start begins transmission for an event. On provider failure the error is
// surfaced to the caller and no local state changes; the event stays idle.
func (c *Controller) Start(ctx context.Context, eventID string) (domain.EgressJob, error) {
	c.mu.Lock()
	if _, running := c.watchers[eventID]; running {
		c.mu.Unlock()
		return domain.EgressJob{}, ErrAlreadyRunning
	}
	c.mu.Unlock()

	state, err := c.stageStore.GetStage(ctx, eventID)
	if err != nil {
		return domain.EgressJob{}, err
	}
	if state.Transmitting() {
		// Another instance (or a previous run) already owns a job.
		return domain.EgressJob{}, ErrAlreadyRunning
	}

	job, err := c.provider.Start(ctx, StartRequest{
		EventID:    eventID,
		ProgramURL: c.ProgramViewURL(eventID, state.LayoutMode),
		Layout:     state.LayoutMode,
	})
	if err != nil {
		return domain.EgressJob{}, err
	}
	if job.Status == "" {
		job.Status = domain.EgressStatusStarting
	}

	if err := c.stageStore.SetEgressMirror(ctx, eventID, job.EgressID, job.Status); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("failed to mirror egress start")
	}

	if err := c.sessions.Create(ctx, &domain.TransmissionSession{
		EventID:    eventID,
		EgressID:   job.EgressID,
		LastStatus: job.Status,
	}); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldEgressID, job.EgressID).Msg("failed to archive transmission session")
	}

	// The poller outlives the request that started it.
	pollCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.watchers[eventID] = &watcher{egressID: job.EgressID, cancel: cancel}
	c.mu.Unlock()
	go c.poll(pollCtx, eventID, job.EgressID)

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldEventID, eventID).Str(log.FieldEgressID, job.EgressID).Msg("transmission started")
	return job, nil
}

// Stop terminates transmission. Local state is cleared regardless of the
// provider's response so the event never stays stuck referencing a job the
// host believes is gone; a provider error is still surfaced.
func (c *Controller) Stop(ctx context.Context, eventID string) error {
	c.mu.Lock()
	w, ok := c.watchers[eventID]
	if ok {
		w.cancel()
		delete(c.watchers, eventID)
	}
	c.mu.Unlock()

	egressID := ""
	if ok {
		egressID = w.egressID
	} else {
		state, err := c.stageStore.GetStage(ctx, eventID)
		if err != nil {
			return err
		}
		egressID = state.EgressID
	}
	if egressID == "" {
		return ErrNotRunning
	}

	stopErr := c.provider.Stop(ctx, egressID)

	if err := c.stageStore.SetEgressMirror(ctx, eventID, "", ""); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("failed to clear egress mirror")
	}
	if err := c.sessions.End(ctx, egressID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldEgressID, egressID).Msg("failed to close transmission session")
	}

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldEventID, eventID).Str(log.FieldEgressID, egressID).Msg("transmission stopped")
	return stopErr
}

// Status returns the provider's current view of the event's job. With no
// job referenced it returns an empty job and no error.
func (c *Controller) Status(ctx context.Context, eventID string) (domain.EgressJob, error) {
	state, err := c.stageStore.GetStage(ctx, eventID)
	if err != nil {
		return domain.EgressJob{}, err
	}
	if !state.Transmitting() {
		return domain.EgressJob{}, nil
	}

	job, err := c.provider.Status(ctx, state.EgressID)
	if err != nil {
		// Fall back to the mirror; the next poll tick refreshes it.
		return domain.EgressJob{EgressID: state.EgressID, Status: state.EgressStatus}, nil
	}
	return job, nil
}

// Sessions returns the archived egress runs for an event.
func (c *Controller) Sessions(ctx context.Context, eventID string) ([]domain.TransmissionSession, error) {
	return c.sessions.ListByEvent(ctx, eventID)
}

// Close cancels every poller.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for eventID, w := range c.watchers {
		w.cancel()
		delete(c.watchers, eventID)
	}
}

// poll mirrors provider status onto the stage state at a fixed interval so
// every subscriber observes transmission state without polling the provider
// themselves. Poll errors are swallowed and retried on the next tick.
func (c *Controller) poll(ctx context.Context, eventID, egressID string) {
	l := log.L().With().Str(log.FieldEventID, eventID).Str(log.FieldEgressID, egressID).Logger()

	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := c.provider.Status(ctx, egressID)
			if err != nil {
				l.Debug().Err(err).Msg("egress status poll failed")
				continue
			}

			if err := c.stageStore.SetEgressMirror(ctx, eventID, egressID, job.Status); err != nil {
				l.Debug().Err(err).Msg("egress mirror write failed")
			}
			if err := c.sessions.UpdateStatus(ctx, egressID, job.Status, job.Error); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
				l.Debug().Err(err).Msg("session status update failed")
			}

			if job.Error != "" {
				// Surfaced via the mirror and the status endpoint; the
				// job is never stopped automatically.
				l.Warn().Str("provider_error", job.Error).Msg("egress provider reported an error")
			}
		}
	}
}

func (c *Controller) pollInterval() time.Duration {
	if c.interval <= 0 {
		return 2 * time.Second
	}
	return c.interval
}
