package postgres

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/recurring/internal/cache"
	"github.com/flexprice/recurring/internal/domain/purchasable"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const tablePurchasables = "purchasables"

var purchasableColumns = []string{"id", "name", "price", "currency", "metadata", "created_at", "updated_at", "created_by", "updated_by"}

type purchasableRepository struct {
	client *postgres.Client
	log    *logger.Logger
	cache  cache.Cache
}

func NewPurchasableRepository(client *postgres.Client, log *logger.Logger, cache cache.Cache) purchasable.Repository {
	return &purchasableRepository{client: client, log: log, cache: cache}
}

func (r *purchasableRepository) Create(ctx context.Context, p *purchasable.Purchasable) error {
	metadata, err := marshalJSON(p.Metadata)
	if err != nil {
		return wrapError(err, "Failed to encode purchasable metadata", map[string]any{"purchasable_id": p.ID})
	}

	query, args := builder().Insert(tablePurchasables).
		Columns(purchasableColumns...).
		Values(p.ID, p.Name, p.Price.String(), p.Currency, metadata, p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy).
		Query()
	if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return wrapError(err, "Failed to create purchasable", map[string]any{"purchasable_id": p.ID})
	}

	r.setCache(ctx, p)
	return nil
}

func (r *purchasableRepository) Get(ctx context.Context, id string) (*purchasable.Purchasable, error) {
	if cached := r.getCache(ctx, id); cached != nil {
		return cached, nil
	}

	items, err := r.GetByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, wrapError(sql.ErrNoRows, "Purchasable not found", map[string]any{"purchasable_id": id})
	}
	return items[0], nil
}

func (r *purchasableRepository) GetByIDs(ctx context.Context, ids []string) ([]*purchasable.Purchasable, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		result  []*purchasable.Purchasable
		missing []any
	)
	for _, id := range lo.Uniq(ids) {
		if cached := r.getCache(ctx, id); cached != nil {
			result = append(result, cached)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	query, args := builder().Select(purchasableColumns...).
		From(entsql.Table(tablePurchasables)).
		Where(entsql.In("id", missing...)).
		Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "Failed to load purchasables", nil)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        purchasable.Purchasable
			price    string
			metadata []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Currency, &metadata, &p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy); err != nil {
			return nil, wrapError(err, "Failed to read purchasables", nil)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, wrapError(err, "Failed to decode purchasable price", map[string]any{"purchasable_id": p.ID})
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, wrapError(err, "Failed to decode purchasable metadata", map[string]any{"purchasable_id": p.ID})
			}
		}
		r.setCache(ctx, &p)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "Failed to read purchasables", nil)
	}
	return result, nil
}

func (r *purchasableRepository) setCache(ctx context.Context, p *purchasable.Purchasable) {
	span := cache.StartCacheSpan(ctx, "purchasable", "set", map[string]interface{}{"purchasable_id": p.ID})
	defer cache.FinishSpan(span)

	r.cache.Set(ctx, cache.GenerateKey(cache.PrefixPurchasable, p.ID), p, cache.ExpiryDefaultInMemory)
}

func (r *purchasableRepository) getCache(ctx context.Context, id string) *purchasable.Purchasable {
	span := cache.StartCacheSpan(ctx, "purchasable", "get", map[string]interface{}{"purchasable_id": id})
	defer cache.FinishSpan(span)

	if value, found := r.cache.Get(ctx, cache.GenerateKey(cache.PrefixPurchasable, id)); found {
		if p, ok := cache.UnmarshalCacheValue[purchasable.Purchasable](value); ok {
			return p
		}
	}
	return nil
}
