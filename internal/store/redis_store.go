package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	pkglog "github.com/genialityco/gen-live-web-sub001/pkg/log"
	"github.com/genialityco/gen-live-web-sub001/pkg/pubsub"
)

// RedisConfig holds Redis connection configuration for the stage store.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// redisStore implements StageStore using Redis for storage and a pubsub bus
// for change notifications. Subscribers re-read the snapshot on every
// notification, so a missed or reordered tick self-heals on the next one.
//
// The bus carries one subscription per channel; the store fans each channel
// out to its own subscribers, so any number of StageStore subscriptions can
// share a channel.
type redisStore struct {
	client *redis.Client
	bus    pubsub.PubSub

	fansMu sync.Mutex
	fans   map[string]*channelFan
}

// channelFan multiplexes one bus subscription to many store subscribers.
type channelFan struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *pubsub.Event
	cancel context.CancelFunc
}

// NewRedisStore creates a new Redis-backed stage store. When bus is nil the
// store notifies through Redis Pub/Sub on its own connection.
func NewRedisStore(cfg RedisConfig, bus pubsub.PubSub) (StageStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if bus == nil {
		bus = pubsub.NewRedisPubSubWithClient(client)
	}

	return &redisStore{
		client: client,
		bus:    bus,
		fans:   make(map[string]*channelFan),
	}, nil
}

// acquireChannel joins the shared subscription for a channel, opening it on
// first use and closing it when the last subscriber releases.
func (s *redisStore) acquireChannel(channel string) (<-chan *pubsub.Event, func(), error) {
	s.fansMu.Lock()
	defer s.fansMu.Unlock()

	fan, ok := s.fans[channel]
	if !ok {
		busCtx, cancel := context.WithCancel(context.Background())
		events, err := s.bus.Subscribe(busCtx, channel)
		if err != nil {
			cancel()
			return nil, nil, err
		}

		fan = &channelFan{subs: make(map[int]chan *pubsub.Event), cancel: cancel}
		s.fans[channel] = fan

		go func() {
			for event := range events {
				fan.mu.Lock()
				for _, sub := range fan.subs {
					select {
					case sub <- event:
					default:
					}
				}
				fan.mu.Unlock()
			}
		}()
	}

	fan.mu.Lock()
	id := fan.nextID
	fan.nextID++
	sub := make(chan *pubsub.Event, 16)
	fan.subs[id] = sub
	fan.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.fansMu.Lock()
			fan.mu.Lock()
			delete(fan.subs, id)
			close(sub)
			last := len(fan.subs) == 0
			fan.mu.Unlock()
			if last {
				delete(s.fans, channel)
			}
			s.fansMu.Unlock()

			if last {
				fan.cancel()
				_ = s.bus.Unsubscribe(context.Background(), channel)
			}
		})
	}

	return sub, release, nil
}

// Redis key patterns:
// stage:event:{event_id}:on_stage            SET<uid>     - promoted participants
// stage:event:{event_id}:state               HASH         - scalar stage leaves
//   - active_id, program_mode, layout_mode, egress_id, egress_status
// stage:event:{event_id}:join_request:{rid}  HASH         - one join request
// stage:event:{event_id}:join_request_ids    SET<rid>     - request index
// stage:event:{event_id}:pending_uid:{uid}   STRING<rid>  - pending guard per uid
// stage:event:{event_id}:decision:{uid}      HASH         - single-slot mailbox

func onStageKey(eventID string) string {
	return fmt.Sprintf("stage:event:%s:on_stage", eventID)
}

func stateKey(eventID string) string {
	return fmt.Sprintf("stage:event:%s:state", eventID)
}

func joinRequestKey(eventID, requestID string) string {
	return fmt.Sprintf("stage:event:%s:join_request:%s", eventID, requestID)
}

func joinRequestIDsKey(eventID string) string {
	return fmt.Sprintf("stage:event:%s:join_request_ids", eventID)
}

func pendingUIDKey(eventID, uid string) string {
	return fmt.Sprintf("stage:event:%s:pending_uid:%s", eventID, uid)
}

func decisionKey(eventID, uid string) string {
	return fmt.Sprintf("stage:event:%s:decision:%s", eventID, uid)
}

func (s *redisStore) GetStage(ctx context.Context, eventID string) (domain.StageState, error) {
	pipe := s.client.Pipeline()
	membersCmd := pipe.SMembers(ctx, onStageKey(eventID))
	stateCmd := pipe.HGetAll(ctx, stateKey(eventID))
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StageState{}, err
	}

	state := domain.DefaultStageState(eventID)
	for _, uid := range membersCmd.Val() {
		state.OnStage[uid] = true
	}

	fields := stateCmd.Val()
	state.ActiveID = fields["active_id"]
	if m := domain.ProgramMode(fields["program_mode"]); domain.ValidProgramMode(m) {
		state.ProgramMode = m
	}
	if m := domain.LayoutMode(fields["layout_mode"]); domain.ValidLayoutMode(m) {
		state.LayoutMode = m
	}
	state.EgressID = fields["egress_id"]
	state.EgressStatus = fields["egress_status"]

	return state, nil
}

func (s *redisStore) SetOnStage(ctx context.Context, eventID, uid string, on bool) error {
	var err error
	if on {
		err = s.client.SAdd(ctx, onStageKey(eventID), uid).Err()
	} else {
		err = s.client.SRem(ctx, onStageKey(eventID), uid).Err()
	}
	if err != nil {
		return err
	}
	return s.notifyStage(ctx, eventID)
}

func (s *redisStore) SetActiveID(ctx context.Context, eventID, uid string) error {
	if err := s.client.HSet(ctx, stateKey(eventID), "active_id", uid).Err(); err != nil {
		return err
	}
	return s.notifyStage(ctx, eventID)
}

func (s *redisStore) SetProgramMode(ctx context.Context, eventID string, mode domain.ProgramMode) error {
	if err := s.client.HSet(ctx, stateKey(eventID), "program_mode", string(mode)).Err(); err != nil {
		return err
	}
	return s.notifyStage(ctx, eventID)
}

func (s *redisStore) SetLayoutMode(ctx context.Context, eventID string, mode domain.LayoutMode) error {
	if err := s.client.HSet(ctx, stateKey(eventID), "layout_mode", string(mode)).Err(); err != nil {
		return err
	}
	return s.notifyStage(ctx, eventID)
}

func (s *redisStore) SetEgressMirror(ctx context.Context, eventID, egressID, status string) error {
	err := s.client.HSet(ctx, stateKey(eventID),
		"egress_id", egressID,
		"egress_status", status,
	).Err()
	if err != nil {
		return err
	}
	return s.notifyStage(ctx, eventID)
}

func (s *redisStore) SubscribeStage(ctx context.Context, eventID string) (<-chan domain.StageState, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	events, release, err := s.acquireChannel(pubsub.StageStateChannel(eventID))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	out := make(chan domain.StageState, 16)
	go func() {
		defer close(out)

		// Current value first, then change notifications.
		if snapshot, err := s.GetStage(subCtx, eventID); err == nil {
			deliverState(out, snapshot)
		}

		for range events {
			snapshot, err := s.GetStage(subCtx, eventID)
			if err != nil {
				// Transport trouble: subscribers keep their last known
				// value; the next notification re-reads.
				l := pkglog.L()
				l.Debug().Err(err).Str(pkglog.FieldEventID, eventID).Msg("stage snapshot re-read failed")
				continue
			}
			deliverState(out, snapshot)
		}
	}()

	return out, unsubscribeFunc(cancel, release), nil
}

func (s *redisStore) CreateJoinRequest(ctx context.Context, req domain.JoinRequest) error {
	guard := pendingUIDKey(req.EventID, req.UID)

	// Pending guard: one pending request per uid per event. The guard and
	// the record commit in one transaction, so a connection drop mid-write
	// never strands a claimed guard with no request behind it; the caller
	// just retries.
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		if _, err := tx.Get(ctx, guard).Result(); err != redis.Nil {
			if err == nil {
				return ErrDuplicatePending
			}
			return err
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, guard, req.ID, 0)
			pipe.HSet(ctx, joinRequestKey(req.EventID, req.ID), joinRequestFields(req))
			pipe.SAdd(ctx, joinRequestIDsKey(req.EventID), req.ID)
			return nil
		})
		return err
	}, guard)
	if err != nil {
		// Losing a race on the guard means someone else's pending request
		// just landed; same outcome as finding it already set.
		return translateTxConflict(err, ErrDuplicatePending)
	}

	return s.notifyRequests(ctx, req.EventID)
}

func (s *redisStore) GetJoinRequest(ctx context.Context, eventID, requestID string) (domain.JoinRequest, error) {
	fields, err := s.client.HGetAll(ctx, joinRequestKey(eventID, requestID)).Result()
	if err != nil {
		return domain.JoinRequest{}, err
	}
	if len(fields) == 0 {
		return domain.JoinRequest{}, ErrRequestNotFound
	}
	return joinRequestFromFields(eventID, fields), nil
}

func (s *redisStore) ResolveJoinRequest(ctx context.Context, eventID, requestID string, to domain.JoinRequestStatus) (domain.JoinRequest, error) {
	key := joinRequestKey(eventID, requestID)
	var resolved domain.JoinRequest

	// Optimistic transaction: the transition succeeds only while the
	// request is still pending when the pipeline commits.
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return ErrRequestNotFound
		}

		req := joinRequestFromFields(eventID, fields)
		if req.Status.Terminal() {
			return ErrRequestNotPending
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "status", string(to))
			pipe.Del(ctx, pendingUIDKey(eventID, req.UID))
			return nil
		})
		if err != nil {
			return err
		}

		req.Status = to
		resolved = req
		return nil
	}, key)
	if err != nil {
		// Losing the watch means a concurrent resolver won; the request is
		// no longer pending from this caller's point of view.
		return domain.JoinRequest{}, translateTxConflict(err, ErrRequestNotPending)
	}

	if err := s.notifyRequests(ctx, eventID); err != nil {
		return domain.JoinRequest{}, err
	}
	return resolved, nil
}

func (s *redisStore) ListJoinRequests(ctx context.Context, eventID string) ([]domain.JoinRequest, error) {
	ids, err := s.client.SMembers(ctx, joinRequestIDsKey(eventID)).Result()
	if err != nil {
		return nil, err
	}

	requests := make([]domain.JoinRequest, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, joinRequestKey(eventID, id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		requests = append(requests, joinRequestFromFields(eventID, fields))
	}
	return requests, nil
}

func (s *redisStore) SubscribeJoinRequests(ctx context.Context, eventID string) (<-chan []domain.JoinRequest, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	events, release, err := s.acquireChannel(pubsub.JoinRequestsChannel(eventID))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	out := make(chan []domain.JoinRequest, 16)
	go func() {
		defer close(out)

		if list, err := s.ListJoinRequests(subCtx, eventID); err == nil {
			deliverRequests(out, list)
		}

		for range events {
			list, err := s.ListJoinRequests(subCtx, eventID)
			if err != nil {
				l := pkglog.L()
				l.Debug().Err(err).Str(pkglog.FieldEventID, eventID).Msg("join request re-read failed")
				continue
			}
			deliverRequests(out, list)
		}
	}()

	return out, unsubscribeFunc(cancel, release), nil
}

func (s *redisStore) PublishDecision(ctx context.Context, d domain.JoinDecision) error {
	// Overwrite in place: the mailbox holds only the latest decision.
	err := s.client.HSet(ctx, decisionKey(d.EventID, d.UID),
		"status", string(d.Status),
		"token", d.Token,
		"role", d.Role,
		"message", d.Message,
		"updated_at", d.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return err
	}

	event, err := pubsub.NewEvent(pubsub.EventDecisionPosted, d.EventID, d)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, pubsub.JoinDecisionsChannel(d.EventID), event)
}

func (s *redisStore) GetDecision(ctx context.Context, eventID, uid string) (domain.JoinDecision, bool, error) {
	fields, err := s.client.HGetAll(ctx, decisionKey(eventID, uid)).Result()
	if err != nil {
		return domain.JoinDecision{}, false, err
	}
	if len(fields) == 0 {
		return domain.JoinDecision{}, false, nil
	}

	d := domain.JoinDecision{
		EventID: eventID,
		UID:     uid,
		Status:  domain.JoinDecisionStatus(fields["status"]),
		Token:   fields["token"],
		Role:    fields["role"],
		Message: fields["message"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		d.UpdatedAt = ts
	}
	return d, true, nil
}

func (s *redisStore) SubscribeDecision(ctx context.Context, eventID, uid string) (<-chan domain.JoinDecision, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	events, release, err := s.acquireChannel(pubsub.JoinDecisionsChannel(eventID))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	out := make(chan domain.JoinDecision, 16)
	go func() {
		defer close(out)

		// Replay the current mailbox value for late subscribers.
		if d, ok, err := s.GetDecision(subCtx, eventID, uid); err == nil && ok {
			deliverDecision(out, d)
		}

		for event := range events {
			var d domain.JoinDecision
			if err := event.UnmarshalPayload(&d); err != nil {
				continue
			}
			if d.UID != uid {
				continue
			}
			deliverDecision(out, d)
		}
	}()

	return out, unsubscribeFunc(cancel, release), nil
}

func (s *redisStore) Close() error {
	if err := s.bus.Close(); err != nil {
		l := pkglog.L()
		l.Debug().Err(err).Msg("pubsub close failed")
	}
	return s.client.Close()
}

// notifyStage publishes a state-changed tick; subscribers re-read the
// snapshot themselves.
func (s *redisStore) notifyStage(ctx context.Context, eventID string) error {
	event, err := pubsub.NewEvent(pubsub.EventStageChanged, eventID, nil)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, pubsub.StageStateChannel(eventID), event)
}

func (s *redisStore) notifyRequests(ctx context.Context, eventID string) error {
	event, err := pubsub.NewEvent(pubsub.EventRequestsChanged, eventID, nil)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, pubsub.JoinRequestsChannel(eventID), event)
}

// translateTxConflict maps an optimistic-transaction abort to the domain
// sentinel for the losing writer. Other errors pass through unchanged.
func translateTxConflict(err, lost error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return lost
	}
	return err
}

// unsubscribeFunc builds an idempotent unsubscribe closure.
func unsubscribeFunc(cancel context.CancelFunc, release func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			release()
		})
	}
}

func joinRequestFields(req domain.JoinRequest) map[string]interface{} {
	return map[string]interface{}{
		"id":         req.ID,
		"uid":        req.UID,
		"name":       req.Name,
		"status":     string(req.Status),
		"created_at": req.CreatedAt.Format(time.RFC3339Nano),
	}
}

func joinRequestFromFields(eventID string, fields map[string]string) domain.JoinRequest {
	req := domain.JoinRequest{
		ID:      fields["id"],
		EventID: eventID,
		UID:     fields["uid"],
		Name:    fields["name"],
		Status:  domain.JoinRequestStatus(fields["status"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		req.CreatedAt = ts
	}
	return req
}

// Non-blocking sends: a slow consumer drops a tick and converges on the
// next notification re-read.

func deliverState(out chan<- domain.StageState, s domain.StageState) {
	select {
	case out <- s:
	default:
	}
}

func deliverRequests(out chan<- []domain.JoinRequest, list []domain.JoinRequest) {
	select {
	case out <- list:
	default:
	}
}

func deliverDecision(out chan<- domain.JoinDecision, d domain.JoinDecision) {
	select {
	case out <- d:
	default:
	}
}
