package types

import (
	"strings"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

// ProcessingState is the operational status derived from the most recent installment
type ProcessingState string

const (
	ProcessingStatePending ProcessingState = "pending"
	ProcessingStateSuccess ProcessingState = "success"
	ProcessingStateFailed  ProcessingState = "failed"
)

var allowedProcessingStates = []ProcessingState{
	ProcessingStatePending,
	ProcessingStateSuccess,
	ProcessingStateFailed,
}

func (s ProcessingState) String() string {
	return string(s)
}

// Validate fails fast on unknown states. This is a caller contract violation, so the error
// is marked as an invalid argument rather than a validation failure.
func (s ProcessingState) Validate() error {
	if lo.Contains(allowedProcessingStates, s) {
		return nil
	}
	allowed := strings.Join(lo.Map(allowedProcessingStates, func(s ProcessingState, _ int) string { return string(s) }), ", ")
	return ierr.NewErrorf("invalid processing state %q: must be one of %s", string(s), allowed).
		WithHintf("Processing state must be one of: %s", allowed).
		WithReportableDetails(map[string]any{
			"state":   string(s),
			"allowed": allowedProcessingStates,
		}).
		Mark(ierr.ErrInvalidArgument)
}
