package store

import (
	"context"
	"errors"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

var (
	// ErrDuplicatePending is returned when a uid already has a pending
	// join request for the same event.
	ErrDuplicatePending = errors.New("uid already has a pending join request")

	// ErrRequestNotFound is returned for an unknown join request id.
	ErrRequestNotFound = errors.New("join request not found")

	// ErrRequestNotPending is returned when a terminal transition is
	// attempted on a request that already left pending.
	ErrRequestNotPending = errors.New("join request is not pending")
)

// StageStore is the canonical store for broadcast state, join requests and
// join decisions. State is a last-write-wins tree per event: every setter
// writes the narrowest leaf and never clobbers sibling fields. Write errors
// are retryable by the caller; the store never retries internally.
type StageStore interface {
	// GetStage returns the stage state for an event, materializing
	// defaults when nothing was written yet.
	GetStage(ctx context.Context, eventID string) (domain.StageState, error)

	// SetOnStage promotes (on=true) or demotes a participant. Idempotent.
	SetOnStage(ctx context.Context, eventID, uid string, on bool) error

	// SetActiveID pins a participant, or clears the pin when uid is empty.
	SetActiveID(ctx context.Context, eventID, uid string) error

	// SetProgramMode writes the coarse program toggle.
	SetProgramMode(ctx context.Context, eventID string, mode domain.ProgramMode) error

	// SetLayoutMode writes the fine-grained compositor mode.
	SetLayoutMode(ctx context.Context, eventID string, mode domain.LayoutMode) error

	// SetEgressMirror mirrors the current egress job onto the stage state.
	// Empty values clear the mirror.
	SetEgressMirror(ctx context.Context, eventID, egressID, status string) error

	// SubscribeStage delivers the current state immediately, then on every
	// change. Delivery is at-least-once. The returned unsubscribe func is
	// idempotent and stops delivery immediately.
	SubscribeStage(ctx context.Context, eventID string) (<-chan domain.StageState, func(), error)

	// CreateJoinRequest creates a pending request. Returns
	// ErrDuplicatePending if the uid already has one for this event.
	CreateJoinRequest(ctx context.Context, req domain.JoinRequest) error

	// GetJoinRequest returns a request by id.
	GetJoinRequest(ctx context.Context, eventID, requestID string) (domain.JoinRequest, error)

	// ResolveJoinRequest transitions a request from pending to a terminal
	// status. The transition is conditional: it succeeds only while the
	// current status is exactly pending, otherwise ErrRequestNotPending.
	// Returns the resolved request.
	ResolveJoinRequest(ctx context.Context, eventID, requestID string, to domain.JoinRequestStatus) (domain.JoinRequest, error)

	// ListJoinRequests returns all requests for an event, unordered.
	// Resolved records are retained for idempotent re-reads.
	ListJoinRequests(ctx context.Context, eventID string) ([]domain.JoinRequest, error)

	// SubscribeJoinRequests delivers the full request list immediately and
	// on every change.
	SubscribeJoinRequests(ctx context.Context, eventID string) (<-chan []domain.JoinRequest, func(), error)

	// PublishDecision overwrites the uid's single-slot decision mailbox.
	PublishDecision(ctx context.Context, d domain.JoinDecision) error

	// GetDecision reads the uid's current mailbox value. ok is false when
	// no decision was ever published.
	GetDecision(ctx context.Context, eventID, uid string) (domain.JoinDecision, bool, error)

	// SubscribeDecision replays the current mailbox value (if any)
	// immediately, then delivers every overwrite.
	SubscribeDecision(ctx context.Context, eventID, uid string) (<-chan domain.JoinDecision, func(), error)

	// Close closes the store connection.
	Close() error
}
