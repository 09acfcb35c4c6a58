package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a named event on the wire
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Delivery is a received message pending acknowledgement
type Delivery struct {
	Envelope

	// raw is the exact queued member, needed to acknowledge it
	raw string
}

// Queue is the durable queue contract: at-least-once delivery, asynchronous
// and fire-and-forget from the sender's perspective. The same message may
// be delivered more than once; consumers must be idempotent.
type Queue interface {
	// Send accepts an event for eventual delivery. A returned error means
	// the event was never accepted (transport failure).
	Send(ctx context.Context, event string, payload interface{}) error

	// Receive blocks up to wait for the next delivery of the named event.
	// Returns (nil, nil) when no message arrived in time.
	Receive(ctx context.Context, event string, wait time.Duration) (*Delivery, error)

	// Ack marks a delivery as handled. An unacked delivery survives a
	// consumer crash and is redelivered.
	Ack(ctx context.Context, delivery *Delivery) error
}

// NewEnvelope builds an envelope with a fresh message ID
func NewEnvelope(event string, payload interface{}) (*Envelope, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	env := &Envelope{
		ID:         uuid.New(),
		Event:      event,
		Payload:    body,
		EnqueuedAt: time.Now(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, nil, err
	}
	return env, raw, nil
}
