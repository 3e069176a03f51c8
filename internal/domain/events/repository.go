package events

import (
	"context"

	"github.com/flexprice/recurring/internal/types"
)

// Repository is the append-only event log keyed by subscription
type Repository interface {
	// Append writes an event
	Append(ctx context.Context, event *Event) error

	// ListBySubscription returns events in the order they were appended
	ListBySubscription(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*Event, error)
}

// Publisher forwards committed events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
