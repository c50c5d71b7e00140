package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "stagepass/pkg/domain"
)

var queueOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stagepass_validation_queue_ops_total",
	Help: "Validation queue operations against the Redis store",
}, []string{"op"})

const (
	// Redis key prefix for the per-event request hash (field = userID).
	queueKeyPrefix = "valreq:event:"
	// Redis pub/sub channel prefix for per-event feed updates.
	feedChannelPrefix = "valreq:feed:"
)

// RedisStore is a Redis-backed validation request queue. Requests live in a
// hash per event keyed by user, and queue changes fan out over Redis
// pub/sub so every instance's subscribers see them.
//
// This is the production implementation for distributed deployments; a
// single instance can run on InMemory instead.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func queueKey(eventID id.EventID) string {
	return queueKeyPrefix + eventID.String()
}

func feedChannel(eventID id.EventID) string {
	return feedChannelPrefix + eventID.String()
}

func (s *RedisStore) Upsert(ctx context.Context, req *Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal validation request: %w", err)
	}

	if err := s.client.HSet(ctx, queueKey(req.EventID), req.UserID.String(), payload).Err(); err != nil {
		return fmt.Errorf("store validation request: %w", err)
	}
	queueOps.WithLabelValues("upsert").Inc()

	s.publish(ctx, req.EventID, Update{Kind: UpdateRequested, Request: *req})
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, eventID id.EventID, userID id.UserID) (bool, error) {
	payload, err := s.client.HGet(ctx, queueKey(eventID), userID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load validation request: %w", err)
	}

	removed, err := s.client.HDel(ctx, queueKey(eventID), userID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("delete validation request: %w", err)
	}
	if removed == 0 {
		// Another instance won the delete between HGET and HDEL; it also
		// published the cancellation.
		return false, nil
	}
	queueOps.WithLabelValues("delete").Inc()

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return true, fmt.Errorf("unmarshal validation request: %w", err)
	}
	s.publish(ctx, eventID, Update{Kind: UpdateCancelled, Request: req})
	return true, nil
}

func (s *RedisStore) ListByEvent(ctx context.Context, eventID id.EventID) ([]*Request, error) {
	fields, err := s.client.HGetAll(ctx, queueKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list validation requests: %w", err)
	}

	out := make([]*Request, 0, len(fields))
	for _, payload := range fields {
		var req Request
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return nil, fmt.Errorf("unmarshal validation request: %w", err)
		}
		out = append(out, &req)
	}
	return out, nil
}

// Subscribe opens a Redis pub/sub subscription on the event's feed channel
// and forwards decoded updates until cancel is called. Messages that fail
// to decode are dropped.
func (s *RedisStore) Subscribe(ctx context.Context, eventID id.EventID) (<-chan Update, func()) {
	sub := s.client.Subscribe(ctx, feedChannel(eventID))
	out := make(chan Update)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var update Update
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				continue
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = sub.Close() })
	}
	return out, cancel
}

// publish is best-effort: a dropped feed message only affects live
// subscribers, never the queue itself.
func (s *RedisStore) publish(ctx context.Context, eventID id.EventID, update Update) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	_ = s.client.Publish(ctx, feedChannel(eventID), payload).Err()
}
