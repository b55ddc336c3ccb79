package hub

import (
	"context"
	"sync"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/internal/store"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
	"github.com/genialityco/gen-live-web-sub001/pkg/token"
)

// Hub fans stage store changes out to connected websocket clients. Every
// client of an event receives stage state pushes; hosts additionally get
// the join request queue; each participant gets their own decision mailbox.
type Hub struct {
	store store.StageStore

	clients map[string]*Client            // clientID -> client
	events  map[string]map[string]*Client // eventID -> clientID -> client
	bridges map[string]*bridge            // eventID -> store subscription

	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// bridge is the single long-lived store subscription per event, shared by
// every client of that event.
type bridge struct {
	cancelStage    func()
	cancelRequests func()
	done           chan struct{}
}

func NewHub(st store.StageStore) *Hub {
	return &Hub{
		store:      st,
		clients:    make(map[string]*Client),
		events:     make(map[string]map[string]*Client),
		bridges:    make(map[string]*bridge),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// EventClientCount returns the number of clients connected for an event.
func (h *Hub) EventClientCount(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if _, ok := h.events[client.EventID]; !ok {
		h.events[client.EventID] = make(map[string]*Client)
	}
	h.events[client.EventID][client.ID] = client
	needBridge := h.bridges[client.EventID] == nil
	h.mu.Unlock()

	if needBridge {
		h.startBridge(client.EventID)
	}
	h.sendSnapshot(client)
	h.startDecisionFeed(client)

	l := log.L()
	l.Debug().
		Str("client_id", client.ID).
		Str(log.FieldEventID, client.EventID).
		Str(log.FieldUserID, client.UID).
		Msg("client registered")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	if evClients, ok := h.events[client.EventID]; ok {
		delete(evClients, client.ID)
		if len(evClients) == 0 {
			delete(h.events, client.EventID)
		}
	}
	lastForEvent := h.events[client.EventID] == nil
	var b *bridge
	if lastForEvent {
		b = h.bridges[client.EventID]
		delete(h.bridges, client.EventID)
	}
	h.mu.Unlock()

	if client.stopDecisions != nil {
		client.stopDecisions()
	}
	if b != nil {
		b.cancelStage()
		b.cancelRequests()
	}
	client.closeSend()

	l := log.L()
	l.Debug().Str("client_id", client.ID).Msg("client unregistered")
}

// startBridge opens the shared stage and join-request subscriptions for an
// event and forwards every delivery to the connected clients.
func (h *Hub) startBridge(eventID string) {
	ctx := context.Background()

	stageCh, cancelStage, err := h.store.SubscribeStage(ctx, eventID)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("stage subscription failed")
		return
	}
	reqCh, cancelRequests, err := h.store.SubscribeJoinRequests(ctx, eventID)
	if err != nil {
		cancelStage()
		l := log.L()
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("join request subscription failed")
		return
	}

	b := &bridge{cancelStage: cancelStage, cancelRequests: cancelRequests, done: make(chan struct{})}
	h.mu.Lock()
	h.bridges[eventID] = b
	h.mu.Unlock()

	go func() {
		defer close(b.done)
		for {
			select {
			case state, ok := <-stageCh:
				if !ok {
					return
				}
				h.broadcastStage(eventID, state)
			case reqs, ok := <-reqCh:
				if !ok {
					return
				}
				h.broadcastRequests(eventID, reqs)
			}
		}
	}()
}

// sendSnapshot delivers the current state to a newly connected client. The
// event bridge only forwards changes from the moment it was opened, so a
// client joining later still starts from a full picture.
func (h *Hub) sendSnapshot(client *Client) {
	ctx := context.Background()

	state, err := h.store.GetStage(ctx, client.EventID)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldEventID, client.EventID).Msg("stage snapshot failed")
	} else {
		client.push(PushStageState, state)
	}

	if client.Role == token.RoleHost {
		reqs, err := h.store.ListJoinRequests(ctx, client.EventID)
		if err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldEventID, client.EventID).Msg("join request snapshot failed")
		} else {
			client.push(PushJoinRequests, reqs)
		}
	}
}

// startDecisionFeed forwards the client's decision mailbox. The current
// value is replayed on connect, so a viewer reconnecting after an approval
// still receives their token.
func (h *Hub) startDecisionFeed(client *Client) {
	ch, cancel, err := h.store.SubscribeDecision(context.Background(), client.EventID, client.UID)
	if err != nil {
		l := log.L()
		l.Error().Err(err).
			Str(log.FieldEventID, client.EventID).
			Str(log.FieldUserID, client.UID).
			Msg("decision subscription failed")
		return
	}
	client.stopDecisions = cancel

	go func() {
		for d := range ch {
			client.push(PushJoinDecision, d)
		}
	}()
}

func (h *Hub) broadcastStage(eventID string, state domain.StageState) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.events[eventID] {
		client.push(PushStageState, state)
	}
}

// broadcastRequests delivers the moderation queue to hosts only; viewers
// track their own request through the decision mailbox.
func (h *Hub) broadcastRequests(eventID string, requests []domain.JoinRequest) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.events[eventID] {
		if client.Role == token.RoleHost {
			client.push(PushJoinRequests, requests)
		}
	}
}
