package subscription

import (
	"fmt"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
)

// SkipLimits bounds how many installments a subscription may skip
type SkipLimits struct {
	MaxSuccessive int
	MaxTotal      int
}

// CheckSkip returns the field errors a skip would be rejected with, empty when it is allowed
func (s *Subscription) CheckSkip(limits SkipLimits) ierr.FieldErrors {
	errs := ierr.FieldErrors{}
	if s.State != types.SubscriptionStateActive {
		errs.Add("state", fmt.Sprintf("must be active to skip, is %s", s.State))
		return errs
	}
	if s.SuccessiveSkipCount+1 > limits.MaxSuccessive {
		errs.Add("successive_skip_count", fmt.Sprintf("exceeds the maximum of %d", limits.MaxSuccessive))
		return errs
	}
	if s.SkipCount+1 > limits.MaxTotal {
		errs.Add("skip_count", fmt.Sprintf("exceeds the maximum of %d", limits.MaxTotal))
	}
	return errs
}

// Skip increments both skip counters and advances the actionable date from now.
// A rejected skip leaves the subscription untouched and returns the reasons.
func (s *Subscription) Skip(limits SkipLimits, now time.Time) (*time.Time, ierr.FieldErrors) {
	if errs := s.CheckSkip(limits); !errs.Empty() {
		return nil, errs
	}

	next := s.NextActionableDate(now)
	if next == nil {
		return nil, ierr.FieldErrors{"interval_length": {"can't be blank"}}
	}

	s.SkipCount++
	s.SuccessiveSkipCount++
	s.ActionableDate = next
	s.UpdatedAt = now
	return next, nil
}
