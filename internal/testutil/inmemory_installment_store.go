package testutil

import (
	"context"

	"github.com/flexprice/recurring/internal/domain/installment"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// InMemoryInstallmentStore implements installment.Repository
type InMemoryInstallmentStore struct {
	*InMemoryStore[*installment.Installment]
}

func NewInMemoryInstallmentStore() *InMemoryInstallmentStore {
	return &InMemoryInstallmentStore{
		InMemoryStore: NewInMemoryStore[*installment.Installment](),
	}
}

func copyInstallment(inst *installment.Installment) *installment.Installment {
	copied := *inst
	copied.LineItems = lo.Map(inst.LineItems, func(li *installment.LineItem, _ int) *installment.LineItem {
		c := *li
		return &c
	})
	copied.Details = lo.Map(inst.Details, func(d *installment.Detail, _ int) *installment.Detail {
		c := *d
		return &c
	})
	return &copied
}

func byCreatedAt(a, b *installment.Installment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *InMemoryInstallmentStore) Create(ctx context.Context, inst *installment.Installment) error {
	if inst == nil {
		return ierr.NewError("installment cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, inst.ID, copyInstallment(inst))
}

func (s *InMemoryInstallmentStore) Get(ctx context.Context, id string) (*installment.Installment, error) {
	inst, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyInstallment(inst), nil
}

func (s *InMemoryInstallmentStore) AddDetail(ctx context.Context, detail *installment.Detail) error {
	inst, err := s.InMemoryStore.Get(ctx, detail.InstallmentID)
	if err != nil {
		return err
	}
	updated := copyInstallment(inst)
	d := *detail
	updated.Details = append(updated.Details, &d)
	return s.InMemoryStore.Update(ctx, updated.ID, updated)
}

func (s *InMemoryInstallmentStore) ListBySubscription(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*installment.Installment, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	insts := s.List(ctx, func(i *installment.Installment) bool {
		return i.SubscriptionID == subscriptionID
	}, byCreatedAt)

	return lo.Map(paginate(insts, filter.GetLimit(), filter.GetOffset()), func(i *installment.Installment, _ int) *installment.Installment {
		return copyInstallment(i)
	}), nil
}

func (s *InMemoryInstallmentStore) GetLatestBySubscription(ctx context.Context, subscriptionID string) (*installment.Installment, error) {
	insts := s.List(ctx, func(i *installment.Installment) bool {
		return i.SubscriptionID == subscriptionID
	}, byCreatedAt)
	if len(insts) == 0 {
		return nil, ierr.NewErrorf("subscription %s has no installments", subscriptionID).
			Mark(ierr.ErrNotFound)
	}
	return copyInstallment(insts[len(insts)-1]), nil
}

func (s *InMemoryInstallmentStore) CountBySubscriptionLineItem(ctx context.Context, subscriptionLineItemID string) (int, error) {
	insts := s.List(ctx, func(i *installment.Installment) bool {
		return lo.ContainsBy(i.LineItems, func(li *installment.LineItem) bool {
			return li.SubscriptionLineItemID == subscriptionLineItemID
		})
	}, nil)
	return len(insts), nil
}
