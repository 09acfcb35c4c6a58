package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue used by tests and single-node
// development setups. Delivery semantics match the Redis queue closely
// enough for consumers: messages persist until acked and a nacked message
// can be requeued.
type MemoryQueue struct {
	mu         sync.Mutex
	items      map[string][]string
	processing map[string][]string
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		items:      make(map[string][]string),
		processing: make(map[string][]string),
	}
}

// Send enqueues one event envelope
func (q *MemoryQueue) Send(ctx context.Context, event string, payload interface{}) error {
	_, raw, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[event] = append(q.items[event], string(raw))
	return nil
}

// Receive polls for the next delivery until wait elapses
func (q *MemoryQueue) Receive(ctx context.Context, event string, wait time.Duration) (*Delivery, error) {
	deadline := time.Now().Add(wait)
	for {
		if delivery := q.tryPop(event); delivery != nil {
			return delivery, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) tryPop(event string) *Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.items[event]
	if len(list) == 0 {
		return nil
	}

	raw := list[0]
	q.items[event] = list[1:]

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil
	}

	q.processing[event] = append(q.processing[event], raw)
	return &Delivery{Envelope: env, raw: raw}
}

// Ack removes a handled delivery from the processing set
func (q *MemoryQueue) Ack(ctx context.Context, delivery *Delivery) error {
	if delivery == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.processing[delivery.Event]
	for i, raw := range list {
		if raw == delivery.raw {
			q.processing[delivery.Event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

// Len reports the number of pending messages for an event
func (q *MemoryQueue) Len(event string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items[event])
}
