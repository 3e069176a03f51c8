package purchasable

import "context"

// Repository defines read access to the purchasable catalog
type Repository interface {
	Create(ctx context.Context, p *Purchasable) error
	Get(ctx context.Context, id string) (*Purchasable, error)
	GetByIDs(ctx context.Context, ids []string) ([]*Purchasable, error)
}
