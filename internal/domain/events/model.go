package events

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/types"
)

// Event is an append-only audit record of a subscription lifecycle transition
type Event struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	Type           types.EventType `json:"event_type"`
	Details        map[string]any  `json:"details"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewSubscriptionEvent builds an event whose details always carry the subscription id
func NewSubscriptionEvent(ctx context.Context, subscriptionID string, eventType types.EventType, details map[string]any, now time.Time) *Event {
	payload := map[string]any{"subscription_id": subscriptionID}
	for k, v := range details {
		payload[k] = v
	}

	return &Event{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_EVENT),
		SubscriptionID: subscriptionID,
		Type:           eventType,
		Details:        payload,
		CreatedBy:      types.GetUserID(ctx),
		CreatedAt:      now,
	}
}
