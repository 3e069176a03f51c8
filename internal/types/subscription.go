package types

import (
	"fmt"
	"strings"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionState is the lifecycle state of a subscription
type SubscriptionState string

const (
	SubscriptionStatePending             SubscriptionState = "pending"
	SubscriptionStateActive              SubscriptionState = "active"
	SubscriptionStateInactive            SubscriptionState = "inactive"
	SubscriptionStateCanceled            SubscriptionState = "canceled"
	SubscriptionStatePendingCancellation SubscriptionState = "pending_cancellation"
)

// ActionableSubscriptionStates are the states a subscription must be in to be processed
var ActionableSubscriptionStates = []SubscriptionState{
	SubscriptionStatePending,
	SubscriptionStateActive,
}

func (s SubscriptionState) String() string {
	return string(s)
}

func (s SubscriptionState) Validate() error {
	allowed := []SubscriptionState{
		SubscriptionStatePending,
		SubscriptionStateActive,
		SubscriptionStateInactive,
		SubscriptionStateCanceled,
		SubscriptionStatePendingCancellation,
	}
	if lo.Contains(allowed, s) {
		return nil
	}
	return ierr.NewErrorf("invalid subscription state: %q", string(s)).
		WithHint(fmt.Sprintf("Subscription state must be one of: %s", strings.Join(lo.Map(allowed, func(s SubscriptionState, _ int) string { return string(s) }), ", "))).
		Mark(ierr.ErrValidation)
}

// IsActionable reports whether subscriptions in this state can become due
func (s SubscriptionState) IsActionable() bool {
	return lo.Contains(ActionableSubscriptionStates, s)
}
