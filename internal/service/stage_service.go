package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/genialityco/gen-live-web-sub001/internal/audit"
	"github.com/genialityco/gen-live-web-sub001/internal/client"
	"github.com/genialityco/gen-live-web-sub001/internal/compositor"
	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/internal/store"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
	"github.com/genialityco/gen-live-web-sub001/pkg/token"
)

var (
	ErrInvalidLayout      = errors.New("unknown layout mode")
	ErrInvalidProgramMode = errors.New("unknown program mode")
	ErrRequestNotFound    = errors.New("join request not found")
	ErrRequestResolved    = errors.New("join request was already resolved")
	ErrDuplicateRequest   = errors.New("a pending join request already exists for this uid")
	ErrNotRequestOwner    = errors.New("only the requesting participant can cancel")
)

// stageServiceImpl implements StageService interface.
type stageServiceImpl struct {
	store       store.StageStore
	tokens      TokenIssuer
	transmitter Transmitter
	tracks      client.TrackSource
}

// NewStageService creates a new stage service.
func NewStageService(st store.StageStore, tokens TokenIssuer, transmitter Transmitter, tracks client.TrackSource) StageService {
	return &stageServiceImpl{
		store:       st,
		tokens:      tokens,
		transmitter: transmitter,
		tracks:      tracks,
	}
}

func (s *stageServiceImpl) GetStage(ctx context.Context, eventID string) (domain.StageState, error) {
	return s.store.GetStage(ctx, eventID)
}

func (s *stageServiceImpl) Promote(ctx context.Context, eventID, hostUID, uid string) error {
	if err := s.store.SetOnStage(ctx, eventID, uid, true); err != nil {
		return err
	}
	audit.LogWithSubject(ctx, audit.ActionPromote, eventID, hostUID, uid, "participant promoted to stage")
	return nil
}

// Demote removes a participant from the stage. A demoted participant must
// never remain pinned, so the pin is cleared in the same operation.
func (s *stageServiceImpl) Demote(ctx context.Context, eventID, hostUID, uid string) error {
	state, err := s.store.GetStage(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.store.SetOnStage(ctx, eventID, uid, false); err != nil {
		return err
	}
	if state.ActiveID == uid {
		if err := s.store.SetActiveID(ctx, eventID, ""); err != nil {
			return err
		}
	}
	audit.LogWithSubject(ctx, audit.ActionDemote, eventID, hostUID, uid, "participant demoted from stage")
	return nil
}

// Pin focuses a participant. Pinning someone backstage also promotes them;
// a pin that points off stage would otherwise silently degrade to automatic
// selection.
func (s *stageServiceImpl) Pin(ctx context.Context, eventID, hostUID, uid string) error {
	state, err := s.store.GetStage(ctx, eventID)
	if err != nil {
		return err
	}
	if !state.IsOnStage(uid) {
		if err := s.store.SetOnStage(ctx, eventID, uid, true); err != nil {
			return err
		}
	}
	if err := s.store.SetActiveID(ctx, eventID, uid); err != nil {
		return err
	}
	audit.LogWithSubject(ctx, audit.ActionPin, eventID, hostUID, uid, "participant pinned")
	return nil
}

func (s *stageServiceImpl) Unpin(ctx context.Context, eventID, hostUID string) error {
	if err := s.store.SetActiveID(ctx, eventID, ""); err != nil {
		return err
	}
	audit.Log(ctx, audit.ActionUnpin, eventID, hostUID, "pin cleared")
	return nil
}

func (s *stageServiceImpl) SetLayout(ctx context.Context, eventID, hostUID string, mode domain.LayoutMode) error {
	if !domain.ValidLayoutMode(mode) {
		return ErrInvalidLayout
	}
	if err := s.store.SetLayoutMode(ctx, eventID, mode); err != nil {
		return err
	}
	audit.LogWithDetail(ctx, audit.ActionSetLayout, eventID, hostUID, string(mode), "layout changed")
	return nil
}

// SetProgramMode writes the coarse toggle and keeps the fine-grained layout
// in step for the modes both vocabularies share. The reverse is not true:
// SetLayout never touches the program mode.
func (s *stageServiceImpl) SetProgramMode(ctx context.Context, eventID, hostUID string, mode domain.ProgramMode) error {
	if !domain.ValidProgramMode(mode) {
		return ErrInvalidProgramMode
	}
	if err := s.store.SetProgramMode(ctx, eventID, mode); err != nil {
		return err
	}
	if err := s.store.SetLayoutMode(ctx, eventID, domain.LayoutMode(mode)); err != nil {
		return err
	}
	audit.LogWithDetail(ctx, audit.ActionSetProgram, eventID, hostUID, string(mode), "program mode changed")
	return nil
}

// Kick removes a participant from the broadcast entirely: decision mailbox
// set to kicked, membership revoked, pin cleared if they held it, and any
// outstanding speaker tokens invalidated. The mailbox write comes first so
// the participant's client disconnects even if the later writes fail.
func (s *stageServiceImpl) Kick(ctx context.Context, eventID, hostUID, uid string) error {
	if err := s.store.PublishDecision(ctx, domain.JoinDecision{
		EventID:   eventID,
		UID:       uid,
		Status:    domain.DecisionKicked,
		UpdatedAt: time.Now(),
	}); err != nil {
		return err
	}

	if err := s.Demote(ctx, eventID, hostUID, uid); err != nil {
		return err
	}
	s.tokens.Revoke(uid)

	audit.LogWithSubject(ctx, audit.ActionKick, eventID, hostUID, uid, "participant kicked")
	return nil
}

func (s *stageServiceImpl) RequestToJoin(ctx context.Context, eventID, uid, name string) (domain.JoinRequest, error) {
	req := domain.JoinRequest{
		ID:        uuid.New().String(),
		EventID:   eventID,
		UID:       uid,
		Name:      name,
		Status:    domain.JoinRequestPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateJoinRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicatePending) {
			return domain.JoinRequest{}, ErrDuplicateRequest
		}
		return domain.JoinRequest{}, err
	}

	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldEventID, eventID).
		Str(log.FieldUserID, uid).
		Str(log.FieldJoinReqID, req.ID).
		Msg("join request created")
	return req, nil
}

func (s *stageServiceImpl) CancelJoin(ctx context.Context, eventID, requestID, uid string) error {
	req, err := s.store.GetJoinRequest(ctx, eventID, requestID)
	if err != nil {
		if errors.Is(err, store.ErrRequestNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	if req.UID != uid {
		return ErrNotRequestOwner
	}

	if _, err := s.store.ResolveJoinRequest(ctx, eventID, requestID, domain.JoinRequestCancelled); err != nil {
		return mapResolveErr(err)
	}

	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldEventID, eventID).
		Str(log.FieldJoinReqID, requestID).
		Msg("join request cancelled")
	return nil
}

// ApproveJoin resolves a pending request, mints a speaker token and posts
// the approval to the requester's mailbox. The conditional resolve is the
// linearization point: with two hosts racing, exactly one mints a token.
func (s *stageServiceImpl) ApproveJoin(ctx context.Context, eventID, hostUID, requestID string) (domain.JoinRequest, error) {
	req, err := s.store.ResolveJoinRequest(ctx, eventID, requestID, domain.JoinRequestApproved)
	if err != nil {
		return domain.JoinRequest{}, mapResolveErr(err)
	}

	speakerToken, err := s.tokens.Mint(req.UID, eventID, req.Name, token.RoleSpeaker)
	if err != nil {
		return domain.JoinRequest{}, err
	}

	if err := s.store.PublishDecision(ctx, domain.JoinDecision{
		EventID:   eventID,
		UID:       req.UID,
		Status:    domain.DecisionApproved,
		Token:     speakerToken,
		Role:      token.RoleSpeaker,
		UpdatedAt: time.Now(),
	}); err != nil {
		return domain.JoinRequest{}, err
	}

	audit.LogWithSubject(ctx, audit.ActionApproveJoin, eventID, hostUID, req.UID, "join request approved")
	return req, nil
}

func (s *stageServiceImpl) RejectJoin(ctx context.Context, eventID, hostUID, requestID, message string) (domain.JoinRequest, error) {
	req, err := s.store.ResolveJoinRequest(ctx, eventID, requestID, domain.JoinRequestRejected)
	if err != nil {
		return domain.JoinRequest{}, mapResolveErr(err)
	}

	if err := s.store.PublishDecision(ctx, domain.JoinDecision{
		EventID:   eventID,
		UID:       req.UID,
		Status:    domain.DecisionRejected,
		Message:   message,
		UpdatedAt: time.Now(),
	}); err != nil {
		return domain.JoinRequest{}, err
	}

	audit.LogWithSubject(ctx, audit.ActionRejectJoin, eventID, hostUID, req.UID, "join request rejected")
	return req, nil
}

// ListPending returns the host moderation queue, newest first.
func (s *stageServiceImpl) ListPending(ctx context.Context, eventID string) ([]domain.JoinRequest, error) {
	all, err := s.store.ListJoinRequests(ctx, eventID)
	if err != nil {
		return nil, err
	}

	pending := make([]domain.JoinRequest, 0, len(all))
	for _, r := range all {
		if r.Status == domain.JoinRequestPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *stageServiceImpl) GetDecision(ctx context.Context, eventID, uid string) (domain.JoinDecision, bool, error) {
	return s.store.GetDecision(ctx, eventID, uid)
}

// Program computes the current render plan. A failing track feed is not
// fatal: the frame downgrades to a placeholder and Ready goes false so the
// renderer can distinguish "empty stage" from "blind".
func (s *stageServiceImpl) Program(ctx context.Context, eventID string, layout domain.LayoutMode) (ProgramView, error) {
	state, err := s.store.GetStage(ctx, eventID)
	if err != nil {
		return ProgramView{}, err
	}

	if layout == "" {
		layout = state.LayoutMode
	} else if !domain.ValidLayoutMode(layout) {
		return ProgramView{}, ErrInvalidLayout
	}

	tracks, err := s.tracks.LiveTracks(ctx, eventID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldEventID, eventID).Msg("track feed unavailable")
		return ProgramView{
			Ready: false,
			Plan:  compositor.Compose(layout, state.OnStage, state.ActiveID, nil),
		}, nil
	}

	return ProgramView{
		Ready: true,
		Plan:  compositor.Compose(layout, state.OnStage, state.ActiveID, tracks),
	}, nil
}

func (s *stageServiceImpl) StartTransmission(ctx context.Context, eventID, hostUID string) (domain.EgressJob, error) {
	job, err := s.transmitter.Start(ctx, eventID)
	if err != nil {
		return domain.EgressJob{}, err
	}
	audit.LogWithDetail(ctx, audit.ActionStartEgress, eventID, hostUID, job.EgressID, "transmission started")
	return job, nil
}

func (s *stageServiceImpl) StopTransmission(ctx context.Context, eventID, hostUID string) error {
	err := s.transmitter.Stop(ctx, eventID)
	audit.Log(ctx, audit.ActionStopEgress, eventID, hostUID, "transmission stopped")
	return err
}

func (s *stageServiceImpl) TransmissionStatus(ctx context.Context, eventID string) (domain.EgressJob, error) {
	return s.transmitter.Status(ctx, eventID)
}

func (s *stageServiceImpl) ListTransmissions(ctx context.Context, eventID string) ([]domain.TransmissionSession, error) {
	return s.transmitter.Sessions(ctx, eventID)
}

func mapResolveErr(err error) error {
	switch {
	case errors.Is(err, store.ErrRequestNotFound):
		return ErrRequestNotFound
	case errors.Is(err, store.ErrRequestNotPending):
		return ErrRequestResolved
	}
	return err
}
