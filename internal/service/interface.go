package service

import (
	"context"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

// ProgramView is the renderer-facing answer to "what should the frame look
// like right now".
type ProgramView struct {
	Ready bool              `json:"ready"`
	Plan  domain.RenderPlan `json:"plan"`
}

// TokenIssuer mints and revokes participant access tokens.
type TokenIssuer interface {
	Mint(uid, eventID, name, role string) (string, error)
	Revoke(uid string)
}

// Transmitter controls the external egress job for an event.
type Transmitter interface {
	Start(ctx context.Context, eventID string) (domain.EgressJob, error)
	Stop(ctx context.Context, eventID string) error
	Status(ctx context.Context, eventID string) (domain.EgressJob, error)
	Sessions(ctx context.Context, eventID string) ([]domain.TransmissionSession, error)
}

// StageService defines the business logic for stage coordination.
type StageService interface {
	// Stage state.
	GetStage(ctx context.Context, eventID string) (domain.StageState, error)
	Promote(ctx context.Context, eventID, hostUID, uid string) error
	Demote(ctx context.Context, eventID, hostUID, uid string) error
	Pin(ctx context.Context, eventID, hostUID, uid string) error
	Unpin(ctx context.Context, eventID, hostUID string) error
	SetLayout(ctx context.Context, eventID, hostUID string, mode domain.LayoutMode) error
	SetProgramMode(ctx context.Context, eventID, hostUID string, mode domain.ProgramMode) error
	Kick(ctx context.Context, eventID, hostUID, uid string) error

	// Join-request workflow.
	RequestToJoin(ctx context.Context, eventID, uid, name string) (domain.JoinRequest, error)
	CancelJoin(ctx context.Context, eventID, requestID, uid string) error
	ApproveJoin(ctx context.Context, eventID, hostUID, requestID string) (domain.JoinRequest, error)
	RejectJoin(ctx context.Context, eventID, hostUID, requestID, message string) (domain.JoinRequest, error)
	ListPending(ctx context.Context, eventID string) ([]domain.JoinRequest, error)
	GetDecision(ctx context.Context, eventID, uid string) (domain.JoinDecision, bool, error)

	// Program output.
	Program(ctx context.Context, eventID string, layout domain.LayoutMode) (ProgramView, error)

	// Transmission control.
	StartTransmission(ctx context.Context, eventID, hostUID string) (domain.EgressJob, error)
	StopTransmission(ctx context.Context, eventID, hostUID string) error
	TransmissionStatus(ctx context.Context, eventID string) (domain.EgressJob, error)
	ListTransmissions(ctx context.Context, eventID string) ([]domain.TransmissionSession, error)
}
