package repository

import (
	"context"
	"errors"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

// ErrSessionNotFound is returned for an unknown transmission session.
var ErrSessionNotFound = errors.New("transmission session not found")

// SessionRepository archives egress runs per event.
type SessionRepository interface {
	// Create opens a new session record for a started egress job.
	Create(ctx context.Context, session *domain.TransmissionSession) error

	// UpdateStatus records the last provider-reported status for a running job.
	UpdateStatus(ctx context.Context, egressID, status, lastError string) error

	// End closes the open session for an egress job.
	End(ctx context.Context, egressID string) error

	// ListByEvent returns all sessions for an event, most recent first.
	ListByEvent(ctx context.Context, eventID string) ([]domain.TransmissionSession, error)
}
