package postgres

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/recurring/internal/domain/events"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
)

const tableSubscriptionEvents = "subscription_events"

type eventRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

func NewEventRepository(client *postgres.Client, log *logger.Logger) events.Repository {
	return &eventRepository{client: client, log: log}
}

func (r *eventRepository) Append(ctx context.Context, event *events.Event) error {
	r.log.Debugw("appending subscription event",
		"event_id", event.ID,
		"subscription_id", event.SubscriptionID,
		"event_type", event.Type,
	)

	details, err := marshalJSON(event.Details)
	if err != nil {
		return wrapError(err, "Failed to encode event details", map[string]any{"event_id": event.ID})
	}

	query, args := builder().Insert(tableSubscriptionEvents).
		Columns("id", "subscription_id", "event_type", "details", "created_by", "created_at").
		Values(event.ID, event.SubscriptionID, string(event.Type), details, event.CreatedBy, event.CreatedAt).
		Query()
	if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return wrapError(err, "Failed to append subscription event", map[string]any{
			"event_id":        event.ID,
			"subscription_id": event.SubscriptionID,
		})
	}
	return nil
}

func (r *eventRepository) ListBySubscription(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*events.Event, error) {
	sel := builder().Select("id", "subscription_id", "event_type", "details", "created_by", "created_at").
		From(entsql.Table(tableSubscriptionEvents)).
		Where(entsql.EQ("subscription_id", subscriptionID)).
		OrderBy("seq")
	query, args := paginate(sel, filter).Query()

	rows, err := r.client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "Failed to list subscription events", map[string]any{"subscription_id": subscriptionID})
	}
	defer rows.Close()

	var result []*events.Event
	for rows.Next() {
		var (
			e         events.Event
			eventType string
			details   []byte
		)
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &eventType, &details, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, wrapError(err, "Failed to read subscription events", map[string]any{"subscription_id": subscriptionID})
		}
		e.Type = types.EventType(eventType)
		e.CreatedAt = e.CreatedAt.UTC()
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, wrapError(err, "Failed to decode event details", map[string]any{"event_id": e.ID})
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "Failed to read subscription events", map[string]any{"subscription_id": subscriptionID})
	}
	return result, nil
}
