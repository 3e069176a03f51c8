package installment

import (
	"context"

	"github.com/flexprice/recurring/internal/types"
)

// Repository defines the persistence operations for installments
type Repository interface {
	// Create persists the installment with its line items
	Create(ctx context.Context, inst *Installment) error

	// Get retrieves an installment with its line items and details
	Get(ctx context.Context, id string) (*Installment, error)

	// AddDetail appends an attempt record to an installment
	AddDetail(ctx context.Context, detail *Detail) error

	// ListBySubscription returns the installment history ordered by creation time
	ListBySubscription(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*Installment, error)

	// GetLatestBySubscription returns the most recent installment, not found when there is none
	GetLatestBySubscription(ctx context.Context, subscriptionID string) (*Installment, error)

	// CountBySubscriptionLineItem counts installments that included the given subscription line item
	CountBySubscriptionLineItem(ctx context.Context, subscriptionLineItemID string) (int, error)
}
