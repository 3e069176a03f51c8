package subscription

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/types"
)

// Repository defines the persistence operations for subscriptions and their line items
type Repository interface {
	// Create persists the subscription together with its line items
	Create(ctx context.Context, sub *Subscription) error

	// Get retrieves a subscription with its line items
	Get(ctx context.Context, id string) (*Subscription, error)

	// Update persists the subscription row, line items are not touched
	Update(ctx context.Context, sub *Subscription) error

	// GetLineItem retrieves a single line item
	GetLineItem(ctx context.Context, id string) (*LineItem, error)

	// UpdateLineItem persists a line item
	UpdateLineItem(ctx context.Context, li *LineItem) error

	// ListActionable returns pending or active subscriptions whose actionable
	// date is at or before now, ordered by actionable date then id
	ListActionable(ctx context.Context, now time.Time, filter *types.QueryFilter) ([]*Subscription, error)

	// ListByProcessingState returns subscriptions whose latest installment is in
	// the given state. Subscriptions without installments are pending.
	ListByProcessingState(ctx context.Context, state types.ProcessingState, filter *types.QueryFilter) ([]*Subscription, error)
}
