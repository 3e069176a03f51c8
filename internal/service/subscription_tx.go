package service

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/domain/events"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/types"
)

// subscriptionWork is the state of one locked unit of work on a subscription.
// Events recorded here are appended in the same transaction and published
// after it commits.
type subscriptionWork struct {
	sub    *subscription.Subscription
	now    time.Time
	events []*events.Event
	dirty  bool
}

// record marks the subscription for persistence and queues the event the
// transition emits, if any
func (w *subscriptionWork) record(ctx context.Context, t *subscription.Transition) {
	if t == nil {
		return
	}
	w.dirty = true
	if !t.Emits() {
		return
	}
	w.emit(ctx, t.Event, map[string]any{
		"from": string(t.From),
		"to":   string(t.To),
	})
}

func (w *subscriptionWork) emit(ctx context.Context, eventType types.EventType, details map[string]any) {
	w.events = append(w.events, events.NewSubscriptionEvent(ctx, w.sub.ID, eventType, details, w.now))
}

// withLockedSubscription loads the subscription under its advisory lock,
// resolves any deferred cancellation and runs fn. The subscription row and
// queued events are written before the transaction commits.
func (p ServiceParams) withLockedSubscription(
	ctx context.Context,
	subscriptionID string,
	fn func(ctx context.Context, w *subscriptionWork) error,
) (*subscriptionWork, error) {
	var w *subscriptionWork

	err := p.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := p.DB.LockKey(ctx, types.SubscriptionLockRequest(ctx, subscriptionID)); err != nil {
			return err
		}

		sub, err := p.SubscriptionRepo.Get(ctx, subscriptionID)
		if err != nil {
			return err
		}

		w = &subscriptionWork{sub: sub, now: p.now()}
		if sub.Resolve(w.now) {
			w.dirty = true
		}

		if fn != nil {
			if err := fn(ctx, w); err != nil {
				return err
			}
		}

		if w.dirty {
			if err := p.SubscriptionRepo.Update(ctx, sub); err != nil {
				return err
			}
		}

		for _, event := range w.events {
			if err := p.EventRepo.Append(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.publish(ctx, w.events)
	return w, nil
}

// publish forwards committed events. Failures are logged only.
func (p ServiceParams) publish(ctx context.Context, evts []*events.Event) {
	if p.EventPublisher == nil {
		return
	}
	for _, event := range evts {
		if err := p.EventPublisher.Publish(ctx, event); err != nil {
			p.Logger.WithContext(ctx).Warnw("failed to publish subscription event",
				"event_id", event.ID,
				"event_type", event.Type,
				"subscription_id", event.SubscriptionID,
				"error", err,
			)
		}
	}
}
