package service

import (
	"context"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/flexprice/recurring/internal/types"
)

// ProcessError describes a failed checkout for one installment
type ProcessError struct {
	SubscriptionID string
	InstallmentID  string
	Err            error
}

func (e *ProcessError) Error() string {
	return "processing installment " + e.InstallmentID + " of subscription " + e.SubscriptionID + ": " + e.Err.Error()
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ErrorHandler decides what a checkout failure means for the caller. A nil
// return swallows the failure; anything else is propagated.
type ErrorHandler interface {
	Handle(ctx context.Context, perr *ProcessError) error
}

// ErrorHandlerFunc adapts a function to ErrorHandler
type ErrorHandlerFunc func(ctx context.Context, perr *ProcessError) error

func (f ErrorHandlerFunc) Handle(ctx context.Context, perr *ProcessError) error {
	return f(ctx, perr)
}

type swallowErrorHandler struct {
	logger *logger.Logger
}

func (h *swallowErrorHandler) Handle(ctx context.Context, perr *ProcessError) error {
	h.logger.WithContext(ctx).Warnw("installment processing failed",
		"subscription_id", perr.SubscriptionID,
		"installment_id", perr.InstallmentID,
		"error", perr.Err,
	)
	return nil
}

type sentryErrorHandler struct {
	logger *logger.Logger
	sentry *sentry.Service
}

func (h *sentryErrorHandler) Handle(ctx context.Context, perr *ProcessError) error {
	h.logger.WithContext(ctx).Errorw("installment processing failed, reporting to sentry",
		"subscription_id", perr.SubscriptionID,
		"installment_id", perr.InstallmentID,
		"error", perr.Err,
	)
	h.sentry.CaptureWithContext(ctx, perr, map[string]string{
		"subscription_id": perr.SubscriptionID,
		"installment_id":  perr.InstallmentID,
	})
	return nil
}

type raiseErrorHandler struct{}

func (raiseErrorHandler) Handle(_ context.Context, perr *ProcessError) error {
	return ierr.WithError(perr).
		WithHint("Checkout failed for the installment").
		WithReportableDetails(map[string]any{
			"subscription_id": perr.SubscriptionID,
			"installment_id":  perr.InstallmentID,
		}).
		Mark(ierr.ErrSystem)
}

// NewErrorHandler returns the handler selected by subscription.process_job_error_handler
func NewErrorHandler(cfg *config.Configuration, logger *logger.Logger, sentryService *sentry.Service) ErrorHandler {
	switch cfg.Subscription.ProcessJobErrorHandler {
	case types.ErrorHandlerTypeRaise:
		return raiseErrorHandler{}
	case types.ErrorHandlerTypeSentry:
		return &sentryErrorHandler{logger: logger, sentry: sentryService}
	default:
		return &swallowErrorHandler{logger: logger}
	}
}
