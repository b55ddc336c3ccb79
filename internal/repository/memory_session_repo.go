package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

// MemorySessionRepository is an in-memory SessionRepository for tests and
// deployments that do not archive egress runs.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions []domain.TransmissionSession
}

// NewMemorySessionRepository creates a new in-memory session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{}
}

func (r *MemorySessionRepository) Create(_ context.Context, session *domain.TransmissionSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session.ID = uuid.New().String()
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	r.sessions = append(r.sessions, *session)
	return nil
}

func (r *MemorySessionRepository) UpdateStatus(_ context.Context, egressID, status, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.sessions {
		if r.sessions[i].EgressID == egressID && r.sessions[i].EndedAt == nil {
			r.sessions[i].LastStatus = status
			r.sessions[i].LastError = lastError
			return nil
		}
	}
	return ErrSessionNotFound
}

func (r *MemorySessionRepository) End(_ context.Context, egressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.sessions {
		if r.sessions[i].EgressID == egressID && r.sessions[i].EndedAt == nil {
			now := time.Now()
			r.sessions[i].EndedAt = &now
			return nil
		}
	}
	return ErrSessionNotFound
}

func (r *MemorySessionRepository) ListByEvent(_ context.Context, eventID string) ([]domain.TransmissionSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.TransmissionSession
	for _, s := range r.sessions {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
