package domain

import "time"

// JoinRequestStatus represents the lifecycle of a viewer admission request.
// A request leaves pending exactly once and is never mutated again.
type JoinRequestStatus string

const (
	JoinRequestPending   JoinRequestStatus = "pending"
	JoinRequestApproved  JoinRequestStatus = "approved"
	JoinRequestRejected  JoinRequestStatus = "rejected"
	JoinRequestCancelled JoinRequestStatus = "cancelled"
)

// Terminal reports whether the status is a terminal one.
func (s JoinRequestStatus) Terminal() bool {
	return s == JoinRequestApproved || s == JoinRequestRejected || s == JoinRequestCancelled
}

// JoinRequest is a viewer's request to come on stage as a speaker.
// Records are kept after resolution, enabling idempotent re-reads.
type JoinRequest struct {
	ID        string            `json:"id"`
	EventID   string            `json:"event_id"`
	UID       string            `json:"uid"`
	Name      string            `json:"name,omitempty"`
	Status    JoinRequestStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// JoinDecisionStatus is the outcome delivered to a participant's mailbox.
type JoinDecisionStatus string

const (
	DecisionApproved JoinDecisionStatus = "approved"
	DecisionRejected JoinDecisionStatus = "rejected"
	DecisionKicked   JoinDecisionStatus = "kicked"
)

// JoinDecision is a single-slot mailbox value per uid: overwritten in
// place, never appended. A viewer subscribing late sees only the current
// value and must treat every delivery as current truth, not a fresh event.
type JoinDecision struct {
	EventID   string             `json:"event_id"`
	UID       string             `json:"uid"`
	Status    JoinDecisionStatus `json:"status"`
	Token     string             `json:"token,omitempty"` // present iff approved
	Role      string             `json:"role,omitempty"`
	Message   string             `json:"message,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RejectJoinRequest carries the optional host message on rejection.
type RejectJoinRequest struct {
	Message string `json:"message"`
}
