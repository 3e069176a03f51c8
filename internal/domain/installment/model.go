package installment

import (
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// Installment is one billing and fulfillment attempt for a subscription.
// CreatedAt anchors recurrence recomputation.
type Installment struct {
	ID             string      `json:"id"`
	SubscriptionID string      `json:"subscription_id"`
	LineItems      []*LineItem `json:"line_items"`
	Details        []*Detail   `json:"details,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// LineItem carries a subscription line item's purchasable reference and quantity into an installment
type LineItem struct {
	ID                     string `json:"id"`
	InstallmentID          string `json:"installment_id"`
	SubscriptionLineItemID string `json:"subscription_line_item_id"`
	SubscribableID         string `json:"subscribable_id"`
	Quantity               int    `json:"quantity"`
}

// Detail is an append-only record of one processing attempt
type Detail struct {
	ID            string    `json:"id"`
	InstallmentID string    `json:"installment_id"`
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Outcome is what the checkout collaborator reports for an installment
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// New builds an installment anchored at now
func New(subscriptionID string, now time.Time) *Installment {
	return &Installment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INSTALLMENT),
		SubscriptionID: subscriptionID,
		CreatedAt:      now,
	}
}

// AddLineItem appends a line item to the installment
func (i *Installment) AddLineItem(subscriptionLineItemID, subscribableID string, quantity int) *LineItem {
	li := &LineItem{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INSTALLMENT_LINE_ITEM),
		InstallmentID:          i.ID,
		SubscriptionLineItemID: subscriptionLineItemID,
		SubscribableID:         subscribableID,
		Quantity:               quantity,
	}
	i.LineItems = append(i.LineItems, li)
	return li
}

// NewDetail records an outcome against the installment
func (i *Installment) NewDetail(success bool, message string, now time.Time) *Detail {
	d := &Detail{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INSTALLMENT_DETAIL),
		InstallmentID: i.ID,
		Success:       success,
		Message:       message,
		CreatedAt:     now,
	}
	i.Details = append(i.Details, d)
	return d
}

// LatestDetail returns the most recent attempt, nil when none was recorded.
// Attempts sharing a timestamp resolve to the last appended.
func (i *Installment) LatestDetail() *Detail {
	if len(i.Details) == 0 {
		return nil
	}
	return lo.MaxBy(i.Details, func(a, b *Detail) bool {
		return !a.CreatedAt.Before(b.CreatedAt)
	})
}

// Status derives the processing state from the latest attempt
func (i *Installment) Status() types.ProcessingState {
	d := i.LatestDetail()
	switch {
	case d == nil:
		return types.ProcessingStatePending
	case d.Success:
		return types.ProcessingStateSuccess
	default:
		return types.ProcessingStateFailed
	}
}

// Latest returns the most recently created installment, nil for an empty history
func Latest(installments []*Installment) *Installment {
	if len(installments) == 0 {
		return nil
	}
	return lo.MaxBy(installments, func(a, b *Installment) bool {
		return !a.CreatedAt.Before(b.CreatedAt)
	})
}

// ProcessingState aggregates a subscription's installment history.
// An empty history is pending.
func ProcessingState(installments []*Installment) types.ProcessingState {
	latest := Latest(installments)
	if latest == nil {
		return types.ProcessingStatePending
	}
	return latest.Status()
}
