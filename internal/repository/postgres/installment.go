package postgres

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

const (
	tableInstallments         = "installments"
	tableInstallmentLineItems = "installment_line_items"
	tableInstallmentDetails   = "installment_details"
)

type installmentRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

func NewInstallmentRepository(client *postgres.Client, log *logger.Logger) installment.Repository {
	return &installmentRepository{client: client, log: log}
}

func (r *installmentRepository) Create(ctx context.Context, inst *installment.Installment) error {
	r.log.Debugw("creating installment",
		"installment_id", inst.ID,
		"subscription_id", inst.SubscriptionID,
		"line_items", len(inst.LineItems),
	)

	return r.client.WithTx(ctx, func(ctx context.Context) error {
		query, args := builder().Insert(tableInstallments).
			Columns("id", "subscription_id", "status", "created_at").
			Values(inst.ID, inst.SubscriptionID, string(inst.Status()), inst.CreatedAt).
			Query()
		if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
			return wrapError(err, "Failed to create installment", map[string]any{"installment_id": inst.ID})
		}

		for _, li := range inst.LineItems {
			query, args := builder().Insert(tableInstallmentLineItems).
				Columns("id", "installment_id", "subscription_line_item_id", "subscribable_id", "quantity").
				Values(li.ID, inst.ID, li.SubscriptionLineItemID, li.SubscribableID, li.Quantity).
				Query()
			if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
				return wrapError(err, "Failed to create installment line item", map[string]any{"installment_id": inst.ID})
			}
		}

		for _, d := range inst.Details {
			if err := r.insertDetail(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *installmentRepository) AddDetail(ctx context.Context, detail *installment.Detail) error {
	return r.client.WithTx(ctx, func(ctx context.Context) error {
		if err := r.insertDetail(ctx, detail); err != nil {
			return err
		}

		status := types.ProcessingStateFailed
		if detail.Success {
			status = types.ProcessingStateSuccess
		}
		query, args := builder().Update(tableInstallments).
			Set("status", string(status)).
			Where(entsql.EQ("id", detail.InstallmentID)).
			Query()
		res, err := r.client.Querier(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return wrapError(err, "Failed to update installment status", map[string]any{"installment_id": detail.InstallmentID})
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return wrapError(sql.ErrNoRows, "Installment not found", map[string]any{"installment_id": detail.InstallmentID})
		}
		return nil
	})
}

func (r *installmentRepository) insertDetail(ctx context.Context, d *installment.Detail) error {
	query, args := builder().Insert(tableInstallmentDetails).
		Columns("id", "installment_id", "success", "message", "created_at").
		Values(d.ID, d.InstallmentID, d.Success, d.Message, d.CreatedAt).
		Query()
	if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return wrapError(err, "Failed to record installment detail", map[string]any{"installment_id": d.InstallmentID})
	}
	return nil
}

func (r *installmentRepository) Get(ctx context.Context, id string) (*installment.Installment, error) {
	query, args := builder().Select("id", "subscription_id", "created_at").
		From(entsql.Table(tableInstallments)).
		Where(entsql.EQ("id", id)).
		Query()

	insts, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, wrapError(sql.ErrNoRows, "Installment not found", map[string]any{"installment_id": id})
	}
	return insts[0], nil
}

func (r *installmentRepository) ListBySubscription(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*installment.Installment, error) {
	sel := builder().Select("id", "subscription_id", "created_at").
		From(entsql.Table(tableInstallments)).
		Where(entsql.EQ("subscription_id", subscriptionID)).
		OrderBy("created_at", "id")
	query, args := paginate(sel, filter).Query()
	return r.query(ctx, query, args)
}

func (r *installmentRepository) GetLatestBySubscription(ctx context.Context, subscriptionID string) (*installment.Installment, error) {
	query, args := builder().Select("id", "subscription_id", "created_at").
		From(entsql.Table(tableInstallments)).
		Where(entsql.EQ("subscription_id", subscriptionID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(1).
		Query()

	insts, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, wrapError(sql.ErrNoRows, "Subscription has no installments", map[string]any{"subscription_id": subscriptionID})
	}
	return insts[0], nil
}

func (r *installmentRepository) CountBySubscriptionLineItem(ctx context.Context, subscriptionLineItemID string) (int, error) {
	query, args := builder().Select(entsql.Count("*")).
		From(entsql.Table(tableInstallmentLineItems)).
		Where(entsql.EQ("subscription_line_item_id", subscriptionLineItemID)).
		Query()

	var count int
	if err := r.client.Querier(ctx).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, wrapError(err, "Failed to count installments", map[string]any{"line_item_id": subscriptionLineItemID})
	}
	return count, nil
}

// query loads installments and attaches their line items and details
func (r *installmentRepository) query(ctx context.Context, query string, args []any) ([]*installment.Installment, error) {
	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "Failed to query installments", nil)
	}

	var insts []*installment.Installment
	func() {
		defer rows.Close()
		for rows.Next() {
			var inst installment.Installment
			if err = rows.Scan(&inst.ID, &inst.SubscriptionID, &inst.CreatedAt); err != nil {
				return
			}
			inst.CreatedAt = inst.CreatedAt.UTC()
			insts = append(insts, &inst)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, wrapError(err, "Failed to read installments", nil)
	}
	if len(insts) == 0 {
		return insts, nil
	}

	byID := lo.KeyBy(insts, func(i *installment.Installment) string { return i.ID })
	ids := lo.Map(insts, func(i *installment.Installment, _ int) any { return i.ID })

	if err := r.attachLineItems(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.attachDetails(ctx, ids, byID); err != nil {
		return nil, err
	}
	return insts, nil
}

func (r *installmentRepository) attachLineItems(ctx context.Context, ids []any, byID map[string]*installment.Installment) error {
	query, args := builder().Select("id", "installment_id", "subscription_line_item_id", "subscribable_id", "quantity").
		From(entsql.Table(tableInstallmentLineItems)).
		Where(entsql.In("installment_id", ids...)).
		OrderBy("id").
		Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return wrapError(err, "Failed to load installment line items", nil)
	}
	defer rows.Close()

	for rows.Next() {
		var li installment.LineItem
		if err := rows.Scan(&li.ID, &li.InstallmentID, &li.SubscriptionLineItemID, &li.SubscribableID, &li.Quantity); err != nil {
			return wrapError(err, "Failed to read installment line items", nil)
		}
		if inst, ok := byID[li.InstallmentID]; ok {
			inst.LineItems = append(inst.LineItems, &li)
		}
	}
	return rows.Err()
}

func (r *installmentRepository) attachDetails(ctx context.Context, ids []any, byID map[string]*installment.Installment) error {
	query, args := builder().Select("id", "installment_id", "success", "message", "created_at").
		From(entsql.Table(tableInstallmentDetails)).
		Where(entsql.In("installment_id", ids...)).
		OrderBy("created_at", "id").
		Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return wrapError(err, "Failed to load installment details", nil)
	}
	defer rows.Close()

	for rows.Next() {
		var d installment.Detail
		if err := rows.Scan(&d.ID, &d.InstallmentID, &d.Success, &d.Message, &d.CreatedAt); err != nil {
			return wrapError(err, "Failed to read installment details", nil)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		if inst, ok := byID[d.InstallmentID]; ok {
			inst.Details = append(inst.Details, &d)
		}
	}
	return rows.Err()
}
