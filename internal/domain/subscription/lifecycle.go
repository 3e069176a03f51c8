package subscription

import (
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// LifecycleEvent is an input to the subscription state machine
type LifecycleEvent string

const (
	LifecycleEventCancel     LifecycleEvent = "cancel"
	LifecycleEventActivate   LifecycleEvent = "activate"
	LifecycleEventDeactivate LifecycleEvent = "deactivate"
	LifecycleEventResolve    LifecycleEvent = "resolve"
	LifecycleEventProcess    LifecycleEvent = "process"
)

// Transition describes an applied state machine step. Event is empty when the
// step must not be recorded in the event log.
type Transition struct {
	From  types.SubscriptionState
	To    types.SubscriptionState
	Event types.EventType
}

// Emits reports whether the transition produces an event log entry
func (t *Transition) Emits() bool {
	return t != nil && t.Event != ""
}

type transitionKey struct {
	event LifecycleEvent
	from  types.SubscriptionState
}

// transitionRule is one guarded row of the table. Rules for the same key are
// evaluated in order and the first passing guard wins.
type transitionRule struct {
	guard func(s *Subscription, now time.Time) bool
	to    types.SubscriptionState
	emit  types.EventType
	apply func(s *Subscription, now time.Time)
}

var transitions = map[transitionKey][]transitionRule{}

func addRule(event LifecycleEvent, from []types.SubscriptionState, rule transitionRule) {
	for _, state := range from {
		key := transitionKey{event: event, from: state}
		transitions[key] = append(transitions[key], rule)
	}
}

func init() {
	pending := types.SubscriptionStatePending
	active := types.SubscriptionStateActive
	inactive := types.SubscriptionStateInactive
	canceled := types.SubscriptionStateCanceled
	pendingCancellation := types.SubscriptionStatePendingCancellation

	addRule(LifecycleEventCancel, []types.SubscriptionState{pending, active, inactive}, transitionRule{
		guard: notScheduledAfter,
		to:    canceled,
		emit:  types.EventTypeSubscriptionCanceled,
		apply: clearActionableDate,
	})
	addRule(LifecycleEventCancel, []types.SubscriptionState{pending, active}, transitionRule{
		guard: scheduledAfter,
		to:    pendingCancellation,
		emit:  types.EventTypeSubscriptionCanceled,
	})
	// repeated cancellations are accepted without a second event
	addRule(LifecycleEventCancel, []types.SubscriptionState{canceled, pendingCancellation}, transitionRule{
		guard: always,
	})

	addRule(LifecycleEventResolve, []types.SubscriptionState{pendingCancellation}, transitionRule{
		guard: notScheduledAfter,
		to:    canceled,
		apply: clearActionableDate,
	})

	addRule(LifecycleEventActivate, []types.SubscriptionState{pending}, transitionRule{
		guard: notDue,
		to:    active,
		emit:  types.EventTypeSubscriptionActivated,
		apply: ensureActionableDate,
	})
	addRule(LifecycleEventActivate, []types.SubscriptionState{inactive}, transitionRule{
		guard: func(s *Subscription, now time.Time) bool {
			return notDue(s, now) && !s.IsPastEndDate(now)
		},
		to:    active,
		emit:  types.EventTypeSubscriptionActivated,
		apply: ensureActionableDate,
	})
	addRule(LifecycleEventActivate, []types.SubscriptionState{active}, transitionRule{
		guard: notDue,
	})

	addRule(LifecycleEventDeactivate, []types.SubscriptionState{active}, transitionRule{
		guard: func(s *Subscription, now time.Time) bool {
			return s.IsPastEndDate(now)
		},
		to:    inactive,
		emit:  types.EventTypeSubscriptionEnded,
		apply: clearActionableDate,
	})

	addRule(LifecycleEventProcess, []types.SubscriptionState{pending}, transitionRule{
		guard: func(s *Subscription, now time.Time) bool {
			return !scheduledAfter(s, now)
		},
		to:   active,
		emit: types.EventTypeSubscriptionActivated,
	})
}

func always(*Subscription, time.Time) bool { return true }

func scheduledAfter(s *Subscription, now time.Time) bool {
	return s.ActionableDate != nil && s.ActionableDate.After(now)
}

func notScheduledAfter(s *Subscription, now time.Time) bool {
	return !scheduledAfter(s, now)
}

// notDue holds when there is no actionable date or it lies in the future
func notDue(s *Subscription, now time.Time) bool {
	return s.ActionableDate == nil || s.ActionableDate.After(now)
}

func clearActionableDate(s *Subscription, _ time.Time) {
	s.ActionableDate = nil
}

func ensureActionableDate(s *Subscription, now time.Time) {
	if s.ActionableDate != nil {
		return
	}
	if interval, ok := s.EffectiveInterval(); ok {
		s.ActionableDate = lo.ToPtr(interval.From(now))
	}
}

// Fire runs the first matching rule for the event from the current state.
// It returns false when no rule applies or every guard fails; the
// subscription is left untouched in that case.
func (s *Subscription) Fire(event LifecycleEvent, now time.Time) (*Transition, bool) {
	for _, rule := range transitions[transitionKey{event: event, from: s.State}] {
		if !rule.guard(s, now) {
			continue
		}

		t := &Transition{From: s.State, To: s.State, Event: rule.emit}
		if rule.to != "" {
			t.To = rule.to
		}
		if rule.apply != nil {
			rule.apply(s, now)
		}
		if t.To != t.From || rule.apply != nil {
			s.State = t.To
			s.UpdatedAt = now
		}
		return t, true
	}
	return nil, false
}

// Resolve applies the deferred pending_cancellation to canceled step once the
// actionable date has been reached. It must run before any state query or
// state changing operation.
func (s *Subscription) Resolve(now time.Time) bool {
	_, ok := s.Fire(LifecycleEventResolve, now)
	return ok
}

// Cancel moves the subscription to canceled, or to pending_cancellation when
// it still has a future actionable date.
func (s *Subscription) Cancel(now time.Time) (*Transition, bool) {
	return s.Fire(LifecycleEventCancel, now)
}

// Activate moves a pending or inactive subscription to active when it is not
// currently due. It reports false instead of failing when the guard is not met.
func (s *Subscription) Activate(now time.Time) (*Transition, bool) {
	return s.Fire(LifecycleEventActivate, now)
}

// Deactivate ends an active subscription whose end date has been reached
func (s *Subscription) Deactivate(now time.Time) (*Transition, bool) {
	return s.Fire(LifecycleEventDeactivate, now)
}

// Promote activates a pending subscription whose first installment is being created
func (s *Subscription) Promote(now time.Time) (*Transition, bool) {
	return s.Fire(LifecycleEventProcess, now)
}
