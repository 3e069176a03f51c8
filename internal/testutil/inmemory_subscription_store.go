package testutil

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
	installments installment.Repository
}

// NewInMemorySubscriptionStore needs the installment store to answer processing state queries
func NewInMemorySubscriptionStore(installments installment.Repository) *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
		installments:  installments,
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}

	copied := *sub
	copied.ActionableDate = copyTime(sub.ActionableDate)
	copied.EndDate = copyTime(sub.EndDate)
	if sub.IntervalLength != nil {
		copied.IntervalLength = lo.ToPtr(*sub.IntervalLength)
	}
	if sub.IntervalUnits != nil {
		copied.IntervalUnits = lo.ToPtr(*sub.IntervalUnits)
	}
	copied.Metadata = lo.Assign(types.Metadata{}, sub.Metadata)
	copied.LineItems = lo.Map(sub.LineItems, func(li *subscription.LineItem, _ int) *subscription.LineItem {
		return copyLineItem(li)
	})
	return &copied
}

func copyLineItem(li *subscription.LineItem) *subscription.LineItem {
	copied := *li
	if li.SpreeLineItemID != nil {
		copied.SpreeLineItemID = lo.ToPtr(*li.SpreeLineItemID)
	}
	if li.MaxInstallments != nil {
		copied.MaxInstallments = lo.ToPtr(*li.MaxInstallments)
	}
	return &copied
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return lo.ToPtr(*t)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copySubscription(sub), nil
}

// Update replaces the subscription row and keeps the stored line items
func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	existing, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return err
	}

	updated := copySubscription(sub)
	updated.LineItems = existing.LineItems
	return s.InMemoryStore.Update(ctx, sub.ID, updated)
}

func (s *InMemorySubscriptionStore) GetLineItem(ctx context.Context, id string) (*subscription.LineItem, error) {
	for _, sub := range s.List(ctx, nil, nil) {
		if li, ok := sub.GetLineItem(id); ok {
			return copyLineItem(li), nil
		}
	}
	return nil, ierr.NewErrorf("line item %s not found", id).
		WithHint("Subscription line item not found").
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) UpdateLineItem(ctx context.Context, li *subscription.LineItem) error {
	existing, err := s.InMemoryStore.Get(ctx, li.SubscriptionID)
	if err != nil {
		return err
	}

	updated := copySubscription(existing)
	for i, item := range updated.LineItems {
		if item.ID == li.ID {
			updated.LineItems[i] = copyLineItem(li)
			return s.InMemoryStore.Update(ctx, updated.ID, updated)
		}
	}
	return ierr.NewErrorf("line item %s not found", li.ID).Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) ListActionable(ctx context.Context, now time.Time, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	subs := s.List(ctx,
		func(sub *subscription.Subscription) bool { return sub.IsDue(now) },
		func(a, b *subscription.Subscription) bool {
			if !a.ActionableDate.Equal(*b.ActionableDate) {
				return a.ActionableDate.Before(*b.ActionableDate)
			}
			return a.ID < b.ID
		},
	)
	return lo.Map(paginate(subs, filter.GetLimit(), filter.GetOffset()), func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) ListByProcessingState(ctx context.Context, state types.ProcessingState, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	subs := s.List(ctx, nil, func(a, b *subscription.Subscription) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	var matched []*subscription.Subscription
	for _, sub := range subs {
		current := types.ProcessingStatePending
		latest, err := s.installments.GetLatestBySubscription(ctx, sub.ID)
		switch {
		case err == nil:
			current = latest.Status()
		case !ierr.IsNotFound(err):
			return nil, err
		}
		if current == state {
			matched = append(matched, copySubscription(sub))
		}
	}
	return paginate(matched, filter.GetLimit(), filter.GetOffset()), nil
}
