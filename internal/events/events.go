package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeRateChanged      = "rate.changed"
	TypeProposalApproved = "proposal.approved"
	TypeShopMerged       = "shop.merged"
)

// Event is a domain fact published after the transaction that produced it
// commits. Key selects the partition, so events about one entity stay ordered.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	TraceID    string         `json:"trace_id,omitempty"`
	Data       map[string]any `json:"data"`
}

func New(eventType, key string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher drops every event. Used when no brokers are configured.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(ctx context.Context, events ...Event) error { return nil }
func (noopPublisher) Close() error { return nil }
