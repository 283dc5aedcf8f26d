package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope kinds.
const (
	KindEvent       = "event_callback"
	KindInteraction = "block_actions"
)

var ErrUnknownKind = errors.New("queue: unknown envelope kind")

// Envelope is a Slack payload accepted by the webhook and processed later by a worker.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
}

func NewEnvelope(kind string, body []byte) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Kind:       kind,
		Body:       json.RawMessage(body),
		ReceivedAt: time.Now().UTC(),
	}
}

func Encode(env Envelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("queue: encode envelope: %w", err)
	}
	return string(data), nil
}

func Decode(body string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Envelope{}, fmt.Errorf("queue: decode envelope: %w", err)
	}
	switch env.Kind {
	case KindEvent, KindInteraction:
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	return env, nil
}

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Publisher adapts a Queue to enqueue envelopes.
type Publisher struct {
	q Queue
}

func NewPublisher(q Queue) *Publisher {
	return &Publisher{q: q}
}

func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	body, err := Encode(env)
	if err != nil {
		return err
	}
	return p.q.Send(ctx, body)
}
