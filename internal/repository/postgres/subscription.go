package postgres

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

const (
	tableSubscriptions     = "subscriptions"
	tableSubscriptionItems = "subscription_line_items"
)

var subscriptionColumns = []string{
	"id", "user_id", "state", "actionable_date", "end_date", "skip_count", "successive_skip_count",
	"interval_length", "interval_units", "payment_source_id", "shipping_address_id", "billing_address_id",
	"metadata", "created_at", "updated_at", "created_by", "updated_by",
}

var lineItemColumns = []string{
	"id", "subscription_id", "spree_line_item_id", "subscribable_id", "quantity", "interval_length",
	"interval_units", "max_installments", "created_at", "updated_at", "created_by", "updated_by",
}

type subscriptionRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

func NewSubscriptionRepository(client *postgres.Client, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, log: log}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	r.log.Debugw("creating subscription",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"line_items", len(sub.LineItems),
	)

	return r.client.WithTx(ctx, func(ctx context.Context) error {
		metadata, err := marshalJSON(sub.Metadata)
		if err != nil {
			return wrapError(err, "Failed to encode subscription metadata", map[string]any{"subscription_id": sub.ID})
		}

		query, args := builder().Insert(tableSubscriptions).
			Columns(subscriptionColumns...).
			Values(
				sub.ID, sub.UserID, string(sub.State), sub.ActionableDate, sub.EndDate, sub.SkipCount, sub.SuccessiveSkipCount,
				sub.IntervalLength, intervalUnitsValue(sub.IntervalUnits), sub.PaymentSourceID, sub.ShippingAddressID, sub.BillingAddressID,
				metadata, sub.CreatedAt, sub.UpdatedAt, sub.CreatedBy, sub.UpdatedBy,
			).
			Query()
		if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
			return wrapError(err, "Failed to create subscription", map[string]any{"subscription_id": sub.ID})
		}

		for _, li := range sub.LineItems {
			if err := r.insertLineItem(ctx, li); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *subscriptionRepository) insertLineItem(ctx context.Context, li *subscription.LineItem) error {
	query, args := builder().Insert(tableSubscriptionItems).
		Columns(lineItemColumns...).
		Values(
			li.ID, li.SubscriptionID, li.SpreeLineItemID, li.SubscribableID, li.Quantity, li.IntervalLength,
			string(li.IntervalUnits), li.MaxInstallments, li.CreatedAt, li.UpdatedAt, li.CreatedBy, li.UpdatedBy,
		).
		Query()
	if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return wrapError(err, "Failed to create subscription line item", map[string]any{
			"subscription_id": li.SubscriptionID,
			"line_item_id":    li.ID,
		})
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query, args := builder().Select(subscriptionColumns...).
		From(entsql.Table(tableSubscriptions)).
		Where(entsql.EQ("id", id)).
		Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "Failed to get subscription", map[string]any{"subscription_id": id})
	}
	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, wrapError(err, "Failed to read subscription", map[string]any{"subscription_id": id})
	}
	if len(subs) == 0 {
		return nil, wrapError(sql.ErrNoRows, "Subscription not found", map[string]any{"subscription_id": id})
	}

	if err := r.loadLineItems(ctx, subs); err != nil {
		return nil, err
	}
	return subs[0], nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	r.log.Debugw("updating subscription",
		"subscription_id", sub.ID,
		"state", sub.State,
		"actionable_date", sub.ActionableDate,
	)

	metadata, err := marshalJSON(sub.Metadata)
	if err != nil {
		return wrapError(err, "Failed to encode subscription metadata", map[string]any{"subscription_id": sub.ID})
	}

	query, args := builder().Update(tableSubscriptions).
		Set("state", string(sub.State)).
		Set("actionable_date", sub.ActionableDate).
		Set("end_date", sub.EndDate).
		Set("skip_count", sub.SkipCount).
		Set("successive_skip_count", sub.SuccessiveSkipCount).
		Set("interval_length", sub.IntervalLength).
		Set("interval_units", intervalUnitsValue(sub.IntervalUnits)).
		Set("payment_source_id", sub.PaymentSourceID).
		Set("shipping_address_id", sub.ShippingAddressID).
		Set("billing_address_id", sub.BillingAddressID).
		Set("metadata", metadata).
		Set("updated_at", sub.UpdatedAt).
		Set("updated_by", types.GetUserID(ctx)).
		Where(entsql.EQ("id", sub.ID)).
		Query()

	res, err := r.client.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(err, "Failed to update subscription", map[string]any{"subscription_id": sub.ID})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrapError(sql.ErrNoRows, "Subscription not found", map[string]any{"subscription_id": sub.ID})
	}
	return nil
}

func (r *subscriptionRepository) GetLineItem(ctx context.Context, id string) (*subscription.LineItem, error) {
	query, args := builder().Select(lineItemColumns...).
		From(entsql.Table(tableSubscriptionItems)).
		Where(entsql.EQ("id", id)).
		Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "Failed to get subscription line item", map[string]any{"line_item_id": id})
	}
	items, err := scanLineItems(rows)
	if err != nil {
		return nil, wrapError(err, "Failed to read subscription line item", map[string]any{"line_item_id": id})
	}
	if len(items) == 0 {
		return nil, wrapError(sql.ErrNoRows, "Subscription line item not found", map[string]any{"line_item_id": id})
	}
	return items[0], nil
}

func (r *subscriptionRepository) UpdateLineItem(ctx context.Context, li *subscription.LineItem) error {
	query, args := builder().Update(tableSubscriptionItems).
		Set("quantity", li.Quantity).
		Set("interval_length", li.IntervalLength).
		Set("interval_units", string(li.IntervalUnits)).
		Set("max_installments", li.MaxInstallments).
		Set("updated_at", li.UpdatedAt).
		Set("updated_by", types.GetUserID(ctx)).
		Where(entsql.EQ("id", li.ID)).
		Query()

	res, err := r.client.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(err, "Failed to update subscription line item", map[string]any{"line_item_id": li.ID})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrapError(sql.ErrNoRows, "Subscription line item not found", map[string]any{"line_item_id": li.ID})
	}
	return nil
}

func (r *subscriptionRepository) ListActionable(ctx context.Context, now time.Time, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	states := lo.Map(types.ActionableSubscriptionStates, func(s types.SubscriptionState, _ int) any {
		return string(s)
	})

	sel := builder().Select(subscriptionColumns...).
		From(entsql.Table(tableSubscriptions)).
		Where(entsql.And(
			entsql.In("state", states...),
			entsql.NotNull("actionable_date"),
			entsql.LTE("actionable_date", now),
		)).
		OrderBy("actionable_date", "id")
	query, args := paginate(sel, filter).Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "Failed to list actionable subscriptions", nil)
	}
	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, wrapError(err, "Failed to read actionable subscriptions", nil)
	}
	if err := r.loadLineItems(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

const listByProcessingStateQuery = `
SELECT s.id, s.user_id, s.state, s.actionable_date, s.end_date, s.skip_count, s.successive_skip_count,
       s.interval_length, s.interval_units, s.payment_source_id, s.shipping_address_id, s.billing_address_id,
       s.metadata, s.created_at, s.updated_at, s.created_by, s.updated_by
FROM subscriptions s
LEFT JOIN LATERAL (
    SELECT i.status
    FROM installments i
    WHERE i.subscription_id = s.id
    ORDER BY i.created_at DESC, i.id DESC
    LIMIT 1
) latest ON TRUE
WHERE COALESCE(latest.status, 'pending') = $1
ORDER BY s.created_at, s.id
LIMIT $2 OFFSET $3`

func (r *subscriptionRepository) ListByProcessingState(ctx context.Context, state types.ProcessingState, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	rows, err := r.client.Querier(ctx).QueryContext(ctx, listByProcessingStateQuery, string(state), filter.GetLimit(), filter.GetOffset())
	if err != nil {
		return nil, wrapError(err, "Failed to list subscriptions by processing state", map[string]any{"state": state})
	}
	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, wrapError(err, "Failed to read subscriptions", map[string]any{"state": state})
	}
	if err := r.loadLineItems(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriptionRepository) loadLineItems(ctx context.Context, subs []*subscription.Subscription) error {
	if len(subs) == 0 {
		return nil
	}

	ids := lo.Map(subs, func(s *subscription.Subscription, _ int) any { return s.ID })
	query, args := builder().Select(lineItemColumns...).
		From(entsql.Table(tableSubscriptionItems)).
		Where(entsql.In("subscription_id", ids...)).
		OrderBy("position").
		Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return wrapError(err, "Failed to load subscription line items", nil)
	}
	items, err := scanLineItems(rows)
	if err != nil {
		return wrapError(err, "Failed to read subscription line items", nil)
	}

	bySubscription := lo.GroupBy(items, func(li *subscription.LineItem) string { return li.SubscriptionID })
	for _, s := range subs {
		s.LineItems = bySubscription[s.ID]
	}
	return nil
}

func intervalUnitsValue(u *types.IntervalUnit) *string {
	if u == nil {
		return nil
	}
	return lo.ToPtr(string(*u))
}

func scanSubscriptions(rows *sql.Rows) ([]*subscription.Subscription, error) {
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		var (
			s              subscription.Subscription
			state          string
			actionableDate sql.NullTime
			endDate        sql.NullTime
			intervalLength sql.NullInt64
			intervalUnits  sql.NullString
			metadata       []byte
		)
		if err := rows.Scan(
			&s.ID, &s.UserID, &state, &actionableDate, &endDate, &s.SkipCount, &s.SuccessiveSkipCount,
			&intervalLength, &intervalUnits, &s.PaymentSourceID, &s.ShippingAddressID, &s.BillingAddressID,
			&metadata, &s.CreatedAt, &s.UpdatedAt, &s.CreatedBy, &s.UpdatedBy,
		); err != nil {
			return nil, err
		}

		s.State = types.SubscriptionState(state)
		s.ActionableDate = nullTime(actionableDate)
		s.EndDate = nullTime(endDate)
		s.IntervalLength = nullInt(intervalLength)
		if units := nullString(intervalUnits); units != nil {
			s.IntervalUnits = lo.ToPtr(types.IntervalUnit(*units))
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
				return nil, err
			}
		}
		s.CreatedAt = s.CreatedAt.UTC()
		s.UpdatedAt = s.UpdatedAt.UTC()
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

func scanLineItems(rows *sql.Rows) ([]*subscription.LineItem, error) {
	defer rows.Close()

	var items []*subscription.LineItem
	for rows.Next() {
		var (
			li              subscription.LineItem
			spreeLineItemID sql.NullString
			units           string
			maxInstallments sql.NullInt64
		)
		if err := rows.Scan(
			&li.ID, &li.SubscriptionID, &spreeLineItemID, &li.SubscribableID, &li.Quantity, &li.IntervalLength,
			&units, &maxInstallments, &li.CreatedAt, &li.UpdatedAt, &li.CreatedBy, &li.UpdatedBy,
		); err != nil {
			return nil, err
		}

		li.SpreeLineItemID = nullString(spreeLineItemID)
		li.IntervalUnits = types.IntervalUnit(units)
		li.MaxInstallments = nullInt(maxInstallments)
		li.CreatedAt = li.CreatedAt.UTC()
		li.UpdatedAt = li.UpdatedAt.UTC()
		items = append(items, &li)
	}
	return items, rows.Err()
}
