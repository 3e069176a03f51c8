package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/events"
	"github.com/flexprice/recurring/internal/domain/purchasable"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// SubscriptionService handles subscription lifecycle operations
type SubscriptionService interface {
	// Create validates and persists a new pending subscription
	Create(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)

	// Get returns the subscription with any deferred cancellation applied
	Get(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// Skip pushes the next installment out by one interval. A refused skip is
	// not an error; the response carries the reasons.
	Skip(ctx context.Context, id string) (*dto.SkipSubscriptionResponse, error)

	// Cancel cancels now, or at the actionable date when one is scheduled in the future
	Cancel(ctx context.Context, id string) (bool, error)

	// Activate reactivates a pending or inactive subscription that is not due
	Activate(ctx context.Context, id string) (bool, error)

	// Deactivate ends an active subscription whose end date has passed
	Deactivate(ctx context.Context, id string) (bool, error)

	// UpdateInterval overrides the line item intervals and recomputes the actionable date
	UpdateInterval(ctx context.Context, id string, req dto.UpdateIntervalRequest) (*dto.SubscriptionResponse, error)

	// UpdateLineItem changes one line item, recomputing the actionable date when its interval changes
	UpdateLineItem(ctx context.Context, lineItemID string, req dto.UpdateLineItemRequest) (*dto.LineItemResponse, error)

	// UpdateEndDate sets or clears the end date without recording an event
	UpdateEndDate(ctx context.Context, id string, endDate *time.Time) (*dto.SubscriptionResponse, error)

	// ProcessingState derives the status of the most recent installment
	ProcessingState(ctx context.Context, id string) (types.ProcessingState, error)

	// ListActionable returns the subscriptions due for processing now
	ListActionable(ctx context.Context, filter *types.QueryFilter) ([]*subscription.Subscription, error)

	// ListByProcessingState returns subscriptions whose latest installment is in the given state
	ListByProcessingState(ctx context.Context, state types.ProcessingState, filter *types.QueryFilter) ([]*subscription.Subscription, error)

	// ListEvents returns the subscription's event log in order
	ListEvents(ctx context.Context, id string, filter *types.QueryFilter) ([]*events.Event, error)
}

type subscriptionService struct {
	ServiceParams
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

func (s *subscriptionService) Create(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	catalog, err := s.loadPurchasables(ctx, lo.Map(req.LineItems, func(li dto.CreateLineItemRequest, _ int) string {
		return li.SubscribableID
	}))
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := req.ToSubscription(ctx, now)

	errs := sub.Validate()
	for i, li := range sub.LineItems {
		if _, ok := catalog[li.SubscribableID]; !ok {
			errs.Add(fmt.Sprintf("line_items[%d].subscribable_id", i), "does not exist")
		}
	}
	if err := errs.AsError(); err != nil {
		return nil, err
	}

	sub.SetInitialActionableDate()

	created := events.NewSubscriptionEvent(ctx, sub.ID, types.EventTypeSubscriptionCreated, map[string]any{
		"user_id":         sub.UserID,
		"line_item_count": len(sub.LineItems),
	}, now)

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubscriptionRepo.Create(ctx, sub); err != nil {
			return err
		}
		return s.EventRepo.Append(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("subscription created",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"actionable_date", sub.ActionableDate,
	)

	s.publish(ctx, []*events.Event{created})
	return dto.NewSubscriptionResponse(sub, types.ProcessingStatePending, catalog), nil
}

func (s *subscriptionService) Get(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	w, err := s.withLockedSubscription(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, w.sub)
}

func (s *subscriptionService) Skip(ctx context.Context, id string) (*dto.SkipSubscriptionResponse, error) {
	resp := &dto.SkipSubscriptionResponse{}

	_, err := s.withLockedSubscription(ctx, id, func(ctx context.Context, w *subscriptionWork) error {
		next, errs := w.sub.Skip(s.skipLimits(), w.now)
		if !errs.Empty() {
			resp.Errors = errs
			return nil
		}

		w.dirty = true
		w.emit(ctx, types.EventTypeSubscriptionSkipped, map[string]any{
			"actionable_date":       next,
			"skip_count":            w.sub.SkipCount,
			"successive_skip_count": w.sub.SuccessiveSkipCount,
		})
		resp.Skipped = true
		resp.ActionableDate = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !resp.Skipped {
		s.Logger.WithContext(ctx).Debugw("subscription skip refused",
			"subscription_id", id,
			"errors", resp.Errors,
		)
	}
	return resp, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, id string) (bool, error) {
	return s.fire(ctx, id, (*subscription.Subscription).Cancel)
}

func (s *subscriptionService) Activate(ctx context.Context, id string) (bool, error) {
	return s.fire(ctx, id, (*subscription.Subscription).Activate)
}

func (s *subscriptionService) Deactivate(ctx context.Context, id string) (bool, error) {
	return s.fire(ctx, id, (*subscription.Subscription).Deactivate)
}

// fire applies a guarded lifecycle transition. A failed guard reports false and changes nothing.
func (s *subscriptionService) fire(
	ctx context.Context,
	id string,
	transition func(sub *subscription.Subscription, now time.Time) (*subscription.Transition, bool),
) (bool, error) {
	var applied bool

	_, err := s.withLockedSubscription(ctx, id, func(ctx context.Context, w *subscriptionWork) error {
		t, ok := transition(w.sub, w.now)
		if !ok {
			return nil
		}
		applied = true
		w.record(ctx, t)
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *subscriptionService) UpdateInterval(ctx context.Context, id string, req dto.UpdateIntervalRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	w, err := s.withLockedSubscription(ctx, id, func(ctx context.Context, w *subscriptionWork) error {
		w.sub.IntervalLength = lo.ToPtr(req.IntervalLength)
		w.sub.IntervalUnits = lo.ToPtr(req.IntervalUnits)
		w.sub.UpdatedAt = w.now
		w.dirty = true
		return s.recompute(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, w.sub)
}

func (s *subscriptionService) UpdateLineItem(ctx context.Context, lineItemID string, req dto.UpdateLineItemRequest) (*dto.LineItemResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.SubscriptionRepo.GetLineItem(ctx, lineItemID)
	if err != nil {
		return nil, err
	}

	var updated *subscription.LineItem
	w, err := s.withLockedSubscription(ctx, existing.SubscriptionID, func(ctx context.Context, w *subscriptionWork) error {
		li, ok := w.sub.GetLineItem(lineItemID)
		if !ok {
			return ierr.NewErrorf("line item %s not found on subscription %s", lineItemID, w.sub.ID).
				WithHint("Line item not found").
				Mark(ierr.ErrNotFound)
		}

		if req.Quantity != nil {
			li.Quantity = *req.Quantity
		}
		if req.IntervalLength != nil {
			li.IntervalLength = *req.IntervalLength
		}
		if req.IntervalUnits != nil {
			li.IntervalUnits = *req.IntervalUnits
		}
		if req.MaxInstallments != nil {
			li.MaxInstallments = req.MaxInstallments
		}
		li.UpdatedAt = w.now
		li.UpdatedBy = types.GetUserID(ctx)

		if err := li.Validate().AsError(); err != nil {
			return err
		}
		if err := s.SubscriptionRepo.UpdateLineItem(ctx, li); err != nil {
			return err
		}
		updated = li

		if !req.ChangesInterval() {
			return nil
		}
		w.dirty = true
		return s.recompute(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	p, err := s.PurchasableRepo.Get(ctx, updated.SubscribableID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	return dto.NewLineItemResponse(w.sub, updated, p), nil
}

// recompute re-derives the actionable date from the latest installment
func (s *subscriptionService) recompute(ctx context.Context, w *subscriptionWork) error {
	var lastAt *time.Time
	latest, err := s.InstallmentRepo.GetLatestBySubscription(ctx, w.sub.ID)
	switch {
	case err == nil:
		lastAt = lo.ToPtr(latest.CreatedAt)
	case !ierr.IsNotFound(err):
		return err
	}

	if w.sub.RecomputeOnIntervalChange(lastAt, w.now) {
		s.Logger.WithContext(ctx).Debugw("actionable date recomputed",
			"subscription_id", w.sub.ID,
			"actionable_date", w.sub.ActionableDate,
		)
	}
	return nil
}

func (s *subscriptionService) UpdateEndDate(ctx context.Context, id string, endDate *time.Time) (*dto.SubscriptionResponse, error) {
	w, err := s.withLockedSubscription(ctx, id, func(ctx context.Context, w *subscriptionWork) error {
		w.sub.EndDate = endDate
		w.sub.UpdatedAt = w.now
		w.dirty = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, w.sub)
}

func (s *subscriptionService) ProcessingState(ctx context.Context, id string) (types.ProcessingState, error) {
	if _, err := s.SubscriptionRepo.Get(ctx, id); err != nil {
		return "", err
	}
	return s.processingState(ctx, id)
}

func (s *subscriptionService) processingState(ctx context.Context, id string) (types.ProcessingState, error) {
	latest, err := s.InstallmentRepo.GetLatestBySubscription(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			return types.ProcessingStatePending, nil
		}
		return "", err
	}
	return latest.Status(), nil
}

func (s *subscriptionService) ListActionable(ctx context.Context, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.SubscriptionRepo.ListActionable(ctx, s.now(), filter)
}

func (s *subscriptionService) ListByProcessingState(ctx context.Context, state types.ProcessingState, filter *types.QueryFilter) ([]*subscription.Subscription, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.SubscriptionRepo.ListByProcessingState(ctx, state, filter)
}

func (s *subscriptionService) ListEvents(ctx context.Context, id string, filter *types.QueryFilter) ([]*events.Event, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.SubscriptionRepo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.EventRepo.ListBySubscription(ctx, id, filter)
}

func (s *subscriptionService) toResponse(ctx context.Context, sub *subscription.Subscription) (*dto.SubscriptionResponse, error) {
	state, err := s.processingState(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.loadPurchasables(ctx, lo.Map(sub.LineItems, func(li *subscription.LineItem, _ int) string {
		return li.SubscribableID
	}))
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub, state, catalog), nil
}

func (s *subscriptionService) loadPurchasables(ctx context.Context, ids []string) (map[string]*purchasable.Purchasable, error) {
	found, err := s.PurchasableRepo.GetByIDs(ctx, lo.Uniq(ids))
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(found, func(p *purchasable.Purchasable) string {
		return p.ID
	}), nil
}
