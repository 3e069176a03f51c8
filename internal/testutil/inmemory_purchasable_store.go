package testutil

import (
	"context"

	"github.com/flexprice/recurring/internal/domain/purchasable"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// InMemoryPurchasableStore implements purchasable.Repository
type InMemoryPurchasableStore struct {
	*InMemoryStore[*purchasable.Purchasable]
}

func NewInMemoryPurchasableStore() *InMemoryPurchasableStore {
	return &InMemoryPurchasableStore{
		InMemoryStore: NewInMemoryStore[*purchasable.Purchasable](),
	}
}

func copyPurchasable(p *purchasable.Purchasable) *purchasable.Purchasable {
	copied := *p
	copied.Metadata = lo.Assign(types.Metadata{}, p.Metadata)
	return &copied
}

func (s *InMemoryPurchasableStore) Create(ctx context.Context, p *purchasable.Purchasable) error {
	if p == nil {
		return ierr.NewError("purchasable cannot be nil").
			WithHint("Purchasable cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, p.ID, copyPurchasable(p))
}

func (s *InMemoryPurchasableStore) Get(ctx context.Context, id string) (*purchasable.Purchasable, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPurchasable(p), nil
}

func (s *InMemoryPurchasableStore) GetByIDs(ctx context.Context, ids []string) ([]*purchasable.Purchasable, error) {
	wanted := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })
	items := s.List(ctx, func(p *purchasable.Purchasable) bool {
		_, ok := wanted[p.ID]
		return ok
	}, func(a, b *purchasable.Purchasable) bool { return a.ID < b.ID })

	return lo.Map(items, func(p *purchasable.Purchasable, _ int) *purchasable.Purchasable {
		return copyPurchasable(p)
	}), nil
}
