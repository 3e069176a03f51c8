package types

import (
	"fmt"
	"strings"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

type RunMode string

const (
	ModeLocal     RunMode = "local"
	ModeWorker    RunMode = "temporal_worker"
	ModeProcessor RunMode = "processor"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ErrorHandlerType selects what happens when installment processing fails
type ErrorHandlerType string

const (
	// ErrorHandlerTypeSwallow logs the failure and continues the batch
	ErrorHandlerTypeSwallow ErrorHandlerType = "swallow"
	// ErrorHandlerTypeSentry reports the failure to Sentry and continues the batch
	ErrorHandlerTypeSentry ErrorHandlerType = "sentry"
	// ErrorHandlerTypeRaise propagates the failure to the caller
	ErrorHandlerTypeRaise ErrorHandlerType = "raise"
)

func (t ErrorHandlerType) Validate() error {
	allowed := []ErrorHandlerType{ErrorHandlerTypeSwallow, ErrorHandlerTypeSentry, ErrorHandlerTypeRaise}
	if lo.Contains(allowed, t) {
		return nil
	}
	return ierr.NewErrorf("invalid process job error handler: %q", string(t)).
		WithHint(fmt.Sprintf("Error handler must be one of: %s", strings.Join(lo.Map(allowed, func(t ErrorHandlerType, _ int) string { return string(t) }), ", "))).
		Mark(ierr.ErrValidation)
}
