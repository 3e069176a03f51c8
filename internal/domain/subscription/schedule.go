package subscription

import (
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// IntervalOverride returns the subscription level interval when both length and units are set
func (s *Subscription) IntervalOverride() (types.Interval, bool) {
	if s.IntervalLength == nil || s.IntervalUnits == nil {
		return types.Interval{}, false
	}
	return types.NewInterval(*s.IntervalLength, *s.IntervalUnits), true
}

// EffectiveInterval is the override interval if present, else the shortest
// line item interval. Ties keep the earliest line item.
func (s *Subscription) EffectiveInterval() (types.Interval, bool) {
	if interval, ok := s.IntervalOverride(); ok {
		return interval, true
	}
	if len(s.LineItems) == 0 {
		return types.Interval{}, false
	}

	shortest := s.LineItems[0].Interval()
	for _, li := range s.LineItems[1:] {
		if li.Interval().Less(shortest) {
			shortest = li.Interval()
		}
	}
	return shortest, true
}

// NextActionableDate returns now plus the effective interval. It is only
// defined for active subscriptions.
func (s *Subscription) NextActionableDate(now time.Time) *time.Time {
	if s.State != types.SubscriptionStateActive {
		return nil
	}
	interval, ok := s.EffectiveInterval()
	if !ok {
		return nil
	}
	return lo.ToPtr(interval.From(now))
}

// AdvanceActionableDate moves the actionable date to one interval from now,
// never from the previous actionable date.
func (s *Subscription) AdvanceActionableDate(now time.Time) *time.Time {
	next := s.NextActionableDate(now)
	if next == nil {
		return nil
	}
	s.ActionableDate = next
	s.UpdatedAt = now
	return next
}

// SetInitialActionableDate anchors the first actionable date on the creation timestamp
func (s *Subscription) SetInitialActionableDate() {
	interval, ok := s.EffectiveInterval()
	if !ok {
		return
	}
	s.ActionableDate = lo.ToPtr(interval.From(s.CreatedAt))
}

// RecomputeOnIntervalChange re-derives the actionable date from the last
// installment (or the creation timestamp when there is none) and the current
// effective interval. A candidate that has already elapsed becomes now.
// Only pending and active subscriptions are recomputed; the returned flag
// reports whether the date was touched.
func (s *Subscription) RecomputeOnIntervalChange(lastInstallmentAt *time.Time, now time.Time) bool {
	if !s.State.IsActionable() {
		return false
	}
	interval, ok := s.EffectiveInterval()
	if !ok {
		return false
	}

	anchor := s.CreatedAt
	if lastInstallmentAt != nil {
		anchor = *lastInstallmentAt
	}

	candidate := interval.From(anchor)
	if !candidate.After(now) {
		candidate = now
	}
	s.ActionableDate = &candidate
	s.UpdatedAt = now
	return true
}
