package store

import (
	"context"
	"sync"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

// memoryStore is an in-memory implementation of StageStore. Suitable for
// single-instance deployments and tests; state is lost on restart.
type memoryStore struct {
	mu sync.RWMutex

	stages    map[string]domain.StageState             // eventID → state
	requests  map[string]map[string]domain.JoinRequest // eventID → requestID → request
	pending   map[string]map[string]string             // eventID → uid → pending requestID
	decisions map[string]map[string]domain.JoinDecision

	nextSubID    int
	stageSubs    map[string]map[int]chan domain.StageState
	requestSubs  map[string]map[int]chan []domain.JoinRequest
	decisionSubs map[string]map[int]*decisionSub
}

type decisionSub struct {
	uid string
	ch  chan domain.JoinDecision
}

// NewMemoryStore creates a new in-memory stage store.
func NewMemoryStore() StageStore {
	return &memoryStore{
		stages:       make(map[string]domain.StageState),
		requests:     make(map[string]map[string]domain.JoinRequest),
		pending:      make(map[string]map[string]string),
		decisions:    make(map[string]map[string]domain.JoinDecision),
		stageSubs:    make(map[string]map[int]chan domain.StageState),
		requestSubs:  make(map[string]map[int]chan []domain.JoinRequest),
		decisionSubs: make(map[string]map[int]*decisionSub),
	}
}

// stageLocked returns a deep copy of the event's state. Callers hold mu.
func (s *memoryStore) stageLocked(eventID string) domain.StageState {
	state, ok := s.stages[eventID]
	if !ok {
		return domain.DefaultStageState(eventID)
	}
	copied := state
	copied.OnStage = make(map[string]bool, len(state.OnStage))
	for uid, on := range state.OnStage {
		copied.OnStage[uid] = on
	}
	return copied
}

// mutateStage applies a change and notifies subscribers. Delivery happens
// under the lock: sends are non-blocking, and closing a subscriber channel
// also happens under the lock, so a send can never race a close.
func (s *memoryStore) mutateStage(eventID string, mutate func(*domain.StageState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.stageLocked(eventID)
	mutate(&state)
	s.stages[eventID] = state
	for _, ch := range s.stageSubs[eventID] {
		deliverState(ch, state)
	}
}

func (s *memoryStore) GetStage(_ context.Context, eventID string) (domain.StageState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stageLocked(eventID), nil
}

func (s *memoryStore) SetOnStage(_ context.Context, eventID, uid string, on bool) error {
	s.mutateStage(eventID, func(state *domain.StageState) {
		if on {
			state.OnStage[uid] = true
		} else {
			delete(state.OnStage, uid)
		}
	})
	return nil
}

func (s *memoryStore) SetActiveID(_ context.Context, eventID, uid string) error {
	s.mutateStage(eventID, func(state *domain.StageState) {
		state.ActiveID = uid
	})
	return nil
}

func (s *memoryStore) SetProgramMode(_ context.Context, eventID string, mode domain.ProgramMode) error {
	s.mutateStage(eventID, func(state *domain.StageState) {
		state.ProgramMode = mode
	})
	return nil
}

func (s *memoryStore) SetLayoutMode(_ context.Context, eventID string, mode domain.LayoutMode) error {
	s.mutateStage(eventID, func(state *domain.StageState) {
		state.LayoutMode = mode
	})
	return nil
}

func (s *memoryStore) SetEgressMirror(_ context.Context, eventID, egressID, status string) error {
	s.mutateStage(eventID, func(state *domain.StageState) {
		state.EgressID = egressID
		state.EgressStatus = status
	})
	return nil
}

func (s *memoryStore) SubscribeStage(_ context.Context, eventID string) (<-chan domain.StageState, func(), error) {
	ch := make(chan domain.StageState, 16)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.stageSubs[eventID] == nil {
		s.stageSubs[eventID] = make(map[int]chan domain.StageState)
	}
	s.stageSubs[eventID][id] = ch
	deliverState(ch, s.stageLocked(eventID))
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.stageSubs[eventID], id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, unsubscribe, nil
}

func (s *memoryStore) CreateJoinRequest(_ context.Context, req domain.JoinRequest) error {
	s.mu.Lock()
	if s.pending[req.EventID] == nil {
		s.pending[req.EventID] = make(map[string]string)
	}
	if _, exists := s.pending[req.EventID][req.UID]; exists {
		s.mu.Unlock()
		return ErrDuplicatePending
	}
	if s.requests[req.EventID] == nil {
		s.requests[req.EventID] = make(map[string]domain.JoinRequest)
	}
	s.requests[req.EventID][req.ID] = req
	s.pending[req.EventID][req.UID] = req.ID
	s.mu.Unlock()

	s.notifyRequestSubs(req.EventID)
	return nil
}

func (s *memoryStore) GetJoinRequest(_ context.Context, eventID, requestID string) (domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[eventID][requestID]
	if !ok {
		return domain.JoinRequest{}, ErrRequestNotFound
	}
	return req, nil
}

func (s *memoryStore) ResolveJoinRequest(_ context.Context, eventID, requestID string, to domain.JoinRequestStatus) (domain.JoinRequest, error) {
	s.mu.Lock()
	req, ok := s.requests[eventID][requestID]
	if !ok {
		s.mu.Unlock()
		return domain.JoinRequest{}, ErrRequestNotFound
	}
	if req.Status.Terminal() {
		s.mu.Unlock()
		return domain.JoinRequest{}, ErrRequestNotPending
	}
	req.Status = to
	s.requests[eventID][requestID] = req
	delete(s.pending[eventID], req.UID)
	s.mu.Unlock()

	s.notifyRequestSubs(eventID)
	return req, nil
}

func (s *memoryStore) ListJoinRequests(_ context.Context, eventID string) ([]domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(eventID), nil
}

func (s *memoryStore) listLocked(eventID string) []domain.JoinRequest {
	list := make([]domain.JoinRequest, 0, len(s.requests[eventID]))
	for _, req := range s.requests[eventID] {
		list = append(list, req)
	}
	return list
}

func (s *memoryStore) SubscribeJoinRequests(_ context.Context, eventID string) (<-chan []domain.JoinRequest, func(), error) {
	ch := make(chan []domain.JoinRequest, 16)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.requestSubs[eventID] == nil {
		s.requestSubs[eventID] = make(map[int]chan []domain.JoinRequest)
	}
	s.requestSubs[eventID][id] = ch
	deliverRequests(ch, s.listLocked(eventID))
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.requestSubs[eventID], id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, unsubscribe, nil
}

func (s *memoryStore) notifyRequestSubs(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.listLocked(eventID)
	for _, ch := range s.requestSubs[eventID] {
		deliverRequests(ch, list)
	}
}

func (s *memoryStore) PublishDecision(_ context.Context, d domain.JoinDecision) error {
	s.mu.Lock()
	if s.decisions[d.EventID] == nil {
		s.decisions[d.EventID] = make(map[string]domain.JoinDecision)
	}
	s.decisions[d.EventID][d.UID] = d
	for _, sub := range s.decisionSubs[d.EventID] {
		if sub.uid == d.UID {
			deliverDecision(sub.ch, d)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) GetDecision(_ context.Context, eventID, uid string) (domain.JoinDecision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[eventID][uid]
	return d, ok, nil
}

func (s *memoryStore) SubscribeDecision(_ context.Context, eventID, uid string) (<-chan domain.JoinDecision, func(), error) {
	ch := make(chan domain.JoinDecision, 16)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.decisionSubs[eventID] == nil {
		s.decisionSubs[eventID] = make(map[int]*decisionSub)
	}
	s.decisionSubs[eventID][id] = &decisionSub{uid: uid, ch: ch}
	if current, ok := s.decisions[eventID][uid]; ok {
		deliverDecision(ch, current)
	}
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.decisionSubs[eventID], id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, unsubscribe, nil
}

func (s *memoryStore) Close() error {
	return nil
}
