package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

func TestMemoryStore_materializedDefaults(t *testing.T) {
	s := NewMemoryStore()
	state, err := s.GetStage(context.Background(), "ev1")
	if err != nil {
		t.Fatalf("GetStage: %v", err)
	}
	if state.EventID != "ev1" || state.OnStage == nil || len(state.OnStage) != 0 {
		t.Errorf("expected empty on-stage set, got %+v", state)
	}
	if state.ProgramMode != domain.ProgramModeSpeaker || state.LayoutMode != domain.LayoutSpeaker {
		t.Errorf("expected speaker defaults, got %s/%s", state.ProgramMode, state.LayoutMode)
	}
	if state.ActiveID != "" || state.EgressID != "" || state.EgressStatus != "" {
		t.Errorf("expected empty ids, got %+v", state)
	}
}

func TestMemoryStore_partialWriteKeepsSiblings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SetOnStage(ctx, "ev1", "u1", true); err != nil {
		t.Fatalf("SetOnStage: %v", err)
	}
	if err := s.SetLayoutMode(ctx, "ev1", domain.LayoutGrid); err != nil {
		t.Fatalf("SetLayoutMode: %v", err)
	}

	state, _ := s.GetStage(ctx, "ev1")
	if !state.OnStage["u1"] {
		t.Error("layout write clobbered on-stage membership")
	}
	if state.LayoutMode != domain.LayoutGrid {
		t.Errorf("layout mode not written, got %s", state.LayoutMode)
	}
	if state.ProgramMode != domain.ProgramModeSpeaker {
		t.Errorf("program mode changed by layout write: %s", state.ProgramMode)
	}
}

func TestMemoryStore_setOnStageIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.SetOnStage(ctx, "ev1", "u1", true)
	_ = s.SetOnStage(ctx, "ev1", "u1", true)

	state, _ := s.GetStage(ctx, "ev1")
	if len(state.OnStage) != 1 || !state.OnStage["u1"] {
		t.Errorf("double promote should equal single promote, got %+v", state.OnStage)
	}

	_ = s.SetOnStage(ctx, "ev1", "u1", false)
	_ = s.SetOnStage(ctx, "ev1", "u1", false)
	state, _ = s.GetStage(ctx, "ev1")
	if len(state.OnStage) != 0 {
		t.Errorf("double demote should equal single demote, got %+v", state.OnStage)
	}
}

func TestMemoryStore_subscribeDeliversSnapshotThenChanges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.SetOnStage(ctx, "ev1", "u1", true)

	ch, unsubscribe, err := s.SubscribeStage(ctx, "ev1")
	if err != nil {
		t.Fatalf("SubscribeStage: %v", err)
	}
	defer unsubscribe()

	first := recvState(t, ch)
	if !first.OnStage["u1"] {
		t.Errorf("initial snapshot missing u1: %+v", first)
	}

	_ = s.SetActiveID(ctx, "ev1", "u1")
	next := recvState(t, ch)
	if next.ActiveID != "u1" {
		t.Errorf("change not delivered, got %+v", next)
	}
}

func TestMemoryStore_unsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ch, unsubscribe, _ := s.SubscribeStage(ctx, "ev1")
	recvState(t, ch) // initial snapshot

	unsubscribe()
	unsubscribe() // second call must be a no-op

	_ = s.SetOnStage(ctx, "ev1", "u1", true)

	// Channel is closed; any residual read reports no more values.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received delivery after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		t.Error("channel not closed after unsubscribe")
	}
}

func TestMemoryStore_duplicatePendingRejected(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	req := domain.JoinRequest{ID: "r1", EventID: "ev1", UID: "u1", Status: domain.JoinRequestPending, CreatedAt: time.Now()}
	if err := s.CreateJoinRequest(ctx, req); err != nil {
		t.Fatalf("CreateJoinRequest: %v", err)
	}

	dup := domain.JoinRequest{ID: "r2", EventID: "ev1", UID: "u1", Status: domain.JoinRequestPending, CreatedAt: time.Now()}
	if err := s.CreateJoinRequest(ctx, dup); !errors.Is(err, ErrDuplicatePending) {
		t.Errorf("expected ErrDuplicatePending, got %v", err)
	}

	// A different uid is unaffected.
	other := domain.JoinRequest{ID: "r3", EventID: "ev1", UID: "u2", Status: domain.JoinRequestPending, CreatedAt: time.Now()}
	if err := s.CreateJoinRequest(ctx, other); err != nil {
		t.Errorf("unrelated uid rejected: %v", err)
	}
}

func TestMemoryStore_resolveIsConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	req := domain.JoinRequest{ID: "r1", EventID: "ev1", UID: "u1", Status: domain.JoinRequestPending, CreatedAt: time.Now()}
	_ = s.CreateJoinRequest(ctx, req)

	resolved, err := s.ResolveJoinRequest(ctx, "ev1", "r1", domain.JoinRequestRejected)
	if err != nil {
		t.Fatalf("ResolveJoinRequest: %v", err)
	}
	if resolved.Status != domain.JoinRequestRejected {
		t.Errorf("expected rejected, got %s", resolved.Status)
	}

	// Approving an already-rejected request fails the precondition.
	if _, err := s.ResolveJoinRequest(ctx, "ev1", "r1", domain.JoinRequestApproved); !errors.Is(err, ErrRequestNotPending) {
		t.Errorf("expected ErrRequestNotPending, got %v", err)
	}

	// The record is retained after resolution.
	got, err := s.GetJoinRequest(ctx, "ev1", "r1")
	if err != nil || got.Status != domain.JoinRequestRejected {
		t.Errorf("resolved record should be readable: %+v, %v", got, err)
	}

	// The uid may request again once the pending guard is released.
	again := domain.JoinRequest{ID: "r2", EventID: "ev1", UID: "u1", Status: domain.JoinRequestPending, CreatedAt: time.Now()}
	if err := s.CreateJoinRequest(ctx, again); err != nil {
		t.Errorf("re-request after resolution rejected: %v", err)
	}
}

func TestMemoryStore_resolveUnknownRequest(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.ResolveJoinRequest(context.Background(), "ev1", "missing", domain.JoinRequestApproved); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestMemoryStore_decisionMailboxOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.PublishDecision(ctx, domain.JoinDecision{EventID: "ev1", UID: "u1", Status: domain.DecisionApproved, Token: "t1", Role: "speaker", UpdatedAt: time.Now()})
	_ = s.PublishDecision(ctx, domain.JoinDecision{EventID: "ev1", UID: "u1", Status: domain.DecisionKicked, UpdatedAt: time.Now()})

	d, ok, err := s.GetDecision(ctx, "ev1", "u1")
	if err != nil || !ok {
		t.Fatalf("GetDecision: ok=%v err=%v", ok, err)
	}
	if d.Status != domain.DecisionKicked || d.Token != "" {
		t.Errorf("mailbox should hold only the latest decision, got %+v", d)
	}
}

func TestMemoryStore_decisionReplayOnLateSubscribe(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.PublishDecision(ctx, domain.JoinDecision{EventID: "ev1", UID: "u1", Status: domain.DecisionApproved, Token: "tok", Role: "speaker", UpdatedAt: time.Now()})

	// A viewer reconnecting after the fact replays the current value.
	ch, unsubscribe, err := s.SubscribeDecision(ctx, "ev1", "u1")
	if err != nil {
		t.Fatalf("SubscribeDecision: %v", err)
	}
	defer unsubscribe()

	d := recvDecision(t, ch)
	if d.Status != domain.DecisionApproved || d.Token != "tok" {
		t.Errorf("late subscriber should replay last decision, got %+v", d)
	}
}

func TestMemoryStore_decisionAddressing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ch1, unsub1, _ := s.SubscribeDecision(ctx, "ev1", "u1")
	ch2, unsub2, _ := s.SubscribeDecision(ctx, "ev1", "u2")
	defer unsub1()
	defer unsub2()

	_ = s.PublishDecision(ctx, domain.JoinDecision{EventID: "ev1", UID: "u2", Status: domain.DecisionRejected, UpdatedAt: time.Now()})

	d := recvDecision(t, ch2)
	if d.UID != "u2" {
		t.Errorf("decision delivered to wrong uid: %+v", d)
	}
	select {
	case d := <-ch1:
		t.Errorf("u1 received u2's decision: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_egressMirror(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.SetEgressMirror(ctx, "ev1", "eg-1", "EGRESS_ACTIVE")
	state, _ := s.GetStage(ctx, "ev1")
	if state.EgressID != "eg-1" || state.EgressStatus != "EGRESS_ACTIVE" {
		t.Errorf("mirror not written: %+v", state)
	}

	_ = s.SetEgressMirror(ctx, "ev1", "", "")
	state, _ = s.GetStage(ctx, "ev1")
	if state.EgressID != "" || state.EgressStatus != "" {
		t.Errorf("mirror not cleared: %+v", state)
	}
}

func recvState(t *testing.T, ch <-chan domain.StageState) domain.StageState {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stage state delivery")
		return domain.StageState{}
	}
}

func recvDecision(t *testing.T, ch <-chan domain.JoinDecision) domain.JoinDecision {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decision delivery")
		return domain.JoinDecision{}
	}
}
