package service

import (
	"context"
	"sync/atomic"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

// InstallmentService creates installments for due subscriptions and routes checkout outcomes
type InstallmentService interface {
	// ProcessSubscription creates and checks out the next installment of a due
	// subscription. A subscription that is not due is left alone and reported
	// as not processed.
	ProcessSubscription(ctx context.Context, id string) (*dto.ProcessSubscriptionResponse, error)

	// ProcessActionable processes every subscription that is due now
	ProcessActionable(ctx context.Context) (*dto.ProcessActionableResponse, error)

	// ListActionableIDs returns the ids of every subscription due now, ordered
	// by actionable date
	ListActionableIDs(ctx context.Context) ([]string, error)

	// ListInstallments returns the installment history of a subscription
	ListInstallments(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*installment.Installment, error)
}

type installmentService struct {
	ServiceParams
	limiter *rate.Limiter
}

// NewInstallmentService creates a new installment service
func NewInstallmentService(params ServiceParams) InstallmentService {
	svc := &installmentService{
		ServiceParams: params,
	}
	if svc.ErrorHandler == nil {
		svc.ErrorHandler = &swallowErrorHandler{logger: params.Logger}
	}
	if r := params.Config.Processor.CheckoutRateLimit; r > 0 {
		svc.limiter = rate.NewLimiter(rate.Limit(r), 1)
	}
	return svc
}

func (s *installmentService) ProcessSubscription(ctx context.Context, id string) (*dto.ProcessSubscriptionResponse, error) {
	resp := &dto.ProcessSubscriptionResponse{SubscriptionID: id}
	logger := s.Logger.WithContext(ctx).With("subscription_id", id)

	var inst *installment.Installment
	_, err := s.withLockedSubscription(ctx, id, func(ctx context.Context, w *subscriptionWork) error {
		var err error
		inst, err = s.prepareInstallment(ctx, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	if inst == nil {
		logger.Debugw("subscription not processed")
		return resp, nil
	}

	resp.Processed = true
	resp.Installment = inst
	logger.Infow("installment created",
		"installment_id", inst.ID,
		"line_item_count", len(inst.LineItems),
	)

	outcome, checkoutErr := s.checkout(ctx, inst)

	detail := inst.NewDetail(false, "", s.now())
	switch {
	case checkoutErr != nil:
		detail.Message = checkoutErr.Error()
	case outcome == nil:
		detail.Message = "checkout returned no outcome"
	default:
		detail.Success = outcome.Success
		detail.Message = outcome.Message
	}

	if err := s.recordOutcome(ctx, inst, detail); err != nil {
		return nil, err
	}
	resp.ProcessingState = inst.Status()

	if checkoutErr != nil {
		return resp, s.ErrorHandler.Handle(ctx, &ProcessError{
			SubscriptionID: id,
			InstallmentID:  inst.ID,
			Err:            checkoutErr,
		})
	}

	logger.Infow("installment processed",
		"installment_id", inst.ID,
		"success", detail.Success,
	)
	return resp, nil
}

// prepareInstallment runs under the subscription lock. It returns nil when
// the subscription is not due or has ended.
func (s *installmentService) prepareInstallment(ctx context.Context, w *subscriptionWork) (*installment.Installment, error) {
	sub := w.sub
	if !sub.IsDue(w.now) {
		return nil, nil
	}

	if sub.IsPastEndDate(w.now) {
		s.end(ctx, w)
		return nil, nil
	}

	inst := installment.New(sub.ID, w.now)
	for _, li := range sub.LineItems {
		capped, err := s.capReached(ctx, li)
		if err != nil {
			return nil, err
		}
		if capped {
			continue
		}
		inst.AddLineItem(li.ID, li.SubscribableID, li.Quantity)
	}

	if len(inst.LineItems) == 0 {
		sub.EndDate = lo.ToPtr(w.now)
		s.end(ctx, w)
		return nil, nil
	}

	if t, ok := sub.Promote(w.now); ok {
		w.record(ctx, t)
	}
	sub.AdvanceActionableDate(w.now)
	w.dirty = true

	if err := s.InstallmentRepo.Create(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// end deactivates a subscription whose end date has been reached. Pending
// subscriptions pass through active so the log shows both steps.
func (s *installmentService) end(ctx context.Context, w *subscriptionWork) {
	if t, ok := w.sub.Promote(w.now); ok {
		w.record(ctx, t)
	}
	if t, ok := w.sub.Deactivate(w.now); ok {
		w.record(ctx, t)
	}
}

func (s *installmentService) capReached(ctx context.Context, li *subscription.LineItem) (bool, error) {
	if li.MaxInstallments == nil {
		return false, nil
	}
	count, err := s.InstallmentRepo.CountBySubscriptionLineItem(ctx, li.ID)
	if err != nil {
		return false, err
	}
	return count >= *li.MaxInstallments, nil
}

func (s *installmentService) checkout(ctx context.Context, inst *installment.Installment) (*installment.Outcome, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Checkout rate limit wait was interrupted").
				Mark(ierr.ErrSystem)
		}
	}
	return s.Checkout.Process(ctx, inst)
}

// recordOutcome persists the attempt detail and, on success, resets the
// successive skip counter in one transaction
func (s *installmentService) recordOutcome(ctx context.Context, inst *installment.Installment, detail *installment.Detail) error {
	_, err := s.withLockedSubscription(ctx, inst.SubscriptionID, func(ctx context.Context, w *subscriptionWork) error {
		if err := s.InstallmentRepo.AddDetail(ctx, detail); err != nil {
			return err
		}

		if detail.Success && w.sub.SuccessiveSkipCount != 0 {
			w.sub.SuccessiveSkipCount = 0
			w.sub.UpdatedAt = w.now
			w.dirty = true
		}
		return nil
	})
	return err
}

func (s *installmentService) ProcessActionable(ctx context.Context) (*dto.ProcessActionableResponse, error) {
	logger := s.Logger.WithContext(ctx)

	ids, err := s.ListActionableIDs(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.ProcessActionableResponse{Selected: len(ids)}
	if len(ids) == 0 {
		return resp, nil
	}

	var processed, failed atomic.Int64
	p := pool.New().
		WithErrors().
		WithContext(ctx).
		WithMaxGoroutines(max(s.Config.Processor.Concurrency, 1))

	for _, id := range ids {
		p.Go(func(ctx context.Context) error {
			result, err := s.ProcessSubscription(ctx, id)
			if err != nil {
				failed.Add(1)
				logger.Errorw("failed to process subscription",
					"subscription_id", id,
					"error", err,
				)
				return err
			}
			if result.Processed {
				processed.Add(1)
			}
			return nil
		})
	}

	err = p.Wait()
	resp.Processed = int(processed.Load())
	resp.Failed = int(failed.Load())

	logger.Infow("actionable subscriptions processed",
		"selected", resp.Selected,
		"processed", resp.Processed,
		"failed", resp.Failed,
	)
	return resp, err
}

// ListActionableIDs snapshots the actionable set page by page before processing
// starts. Processing moves subscriptions out of the set, so offsets are only
// stable while nothing is being processed.
func (s *installmentService) ListActionableIDs(ctx context.Context) ([]string, error) {
	now := s.now()
	batchSize := s.Config.Processor.BatchSize
	if batchSize <= 0 {
		batchSize = types.FILTER_DEFAULT_LIMIT
	}

	var ids []string
	for offset := 0; ; offset += batchSize {
		page, err := s.SubscriptionRepo.ListActionable(ctx, now, types.NewQueryFilter(batchSize, offset))
		if err != nil {
			return nil, err
		}
		ids = append(ids, lo.Map(page, func(sub *subscription.Subscription, _ int) string {
			return sub.ID
		})...)
		if len(page) < batchSize {
			return ids, nil
		}
	}
}

func (s *installmentService) ListInstallments(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*installment.Installment, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.SubscriptionRepo.Get(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.InstallmentRepo.ListBySubscription(ctx, subscriptionID, filter)
}
