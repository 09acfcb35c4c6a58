package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealsense-team/dealsense/pkg/config"
)

// RedisQueue implements Queue on top of Redis lists using the reliable
// queue pattern: LPUSH to the event list, BLMOVE into a per-event
// processing list, LREM on ack. A consumer crash leaves the message in the
// processing list, so delivery is at-least-once.
type RedisQueue struct {
	client    *redis.Client
	namespace string
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisClient creates a Redis client from config and verifies the
// connection
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates a queue namespaced under the given prefix
func NewRedisQueue(client *redis.Client, namespace string) *RedisQueue {
	if namespace == "" {
		namespace = "dealsense"
	}
	return &RedisQueue{client: client, namespace: namespace}
}

func (q *RedisQueue) key(event string) string {
	return fmt.Sprintf("%s:queue:%s", q.namespace, event)
}

func (q *RedisQueue) processingKey(event string) string {
	return q.key(event) + ":processing"
}

// Send enqueues one event envelope
func (q *RedisQueue) Send(ctx context.Context, event string, payload interface{}) error {
	_, raw, err := NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event, err)
	}
	if err := q.client.LPush(ctx, q.key(event), raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue event %s: %w", event, err)
	}
	return nil
}

// Receive blocks up to wait for the next delivery, moving it into the
// processing list in the same step
func (q *RedisQueue) Receive(ctx context.Context, event string, wait time.Duration) (*Delivery, error) {
	raw, err := q.client.BLMove(ctx, q.key(event), q.processingKey(event), "RIGHT", "LEFT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to receive event %s: %w", event, err)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Poison message: drop it from the processing list so it cannot
		// wedge the consumer forever.
		q.client.LRem(ctx, q.processingKey(event), 1, raw)
		return nil, fmt.Errorf("malformed envelope on %s: %w", event, err)
	}

	return &Delivery{Envelope: env, raw: raw}, nil
}

// Ack removes a handled delivery from the processing list
func (q *RedisQueue) Ack(ctx context.Context, delivery *Delivery) error {
	if delivery == nil {
		return errors.New("delivery cannot be nil")
	}
	return q.client.LRem(ctx, q.processingKey(delivery.Event), 1, delivery.raw).Err()
}

// RequeueOrphans moves deliveries stranded in the processing list back to
// the main queue. Run on startup to recover messages lost to a crashed
// consumer.
func (q *RedisQueue) RequeueOrphans(ctx context.Context, event string) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.processingKey(event), q.key(event), "RIGHT", "LEFT").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, err
		}
		moved++
	}
}
