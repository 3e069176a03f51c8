package types

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/flexprice/recurring/internal/errors"
)

func TestAddInterval(t *testing.T) {
	base := time.Date(2024, time.January, 31, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval Interval
		expected time.Time
	}{
		{"days", NewInterval(10, IntervalUnitDay), time.Date(2024, time.February, 10, 10, 30, 0, 0, time.UTC)},
		{"weeks", NewInterval(2, IntervalUnitWeek), time.Date(2024, time.February, 14, 10, 30, 0, 0, time.UTC)},
		{"month clamps to leap february", NewInterval(1, IntervalUnitMonth), time.Date(2024, time.February, 29, 10, 30, 0, 0, time.UTC)},
		{"three months", NewInterval(3, IntervalUnitMonth), time.Date(2024, time.April, 30, 10, 30, 0, 0, time.UTC)},
		{"year", NewInterval(1, IntervalUnitYear), time.Date(2025, time.January, 31, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddInterval(base, tt.interval))
			assert.Equal(t, tt.expected, tt.interval.From(base))
		})
	}

	t.Run("leap day plus a year", func(t *testing.T) {
		leap := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), NewInterval(1, IntervalUnitYear).From(leap))
	})
}

func TestIntervalLess(t *testing.T) {
	assert.True(t, NewInterval(2, IntervalUnitWeek).Less(NewInterval(1, IntervalUnitMonth)))
	assert.True(t, NewInterval(30, IntervalUnitDay).Less(NewInterval(1, IntervalUnitMonth)))
	assert.False(t, NewInterval(1, IntervalUnitYear).Less(NewInterval(12, IntervalUnitMonth)))
	assert.False(t, NewInterval(5, IntervalUnitWeek).Less(NewInterval(1, IntervalUnitMonth)))
}

func TestIntervalValidate(t *testing.T) {
	require.NoError(t, NewInterval(1, IntervalUnitMonth).Validate())

	err := NewInterval(0, IntervalUnitMonth).Validate()
	assert.True(t, ierr.IsValidation(err))

	err = NewInterval(1, IntervalUnit("fortnight")).Validate()
	assert.True(t, ierr.IsValidation(err))
}

func TestProcessingStateValidate(t *testing.T) {
	for _, s := range []ProcessingState{ProcessingStatePending, ProcessingStateSuccess, ProcessingStateFailed} {
		assert.NoError(t, s.Validate())
	}

	err := ProcessingState("foo").Validate()
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), `"foo"`)
	assert.Contains(t, err.Error(), "pending, success, failed")
}

func TestSubscriptionStateIsActionable(t *testing.T) {
	assert.True(t, SubscriptionStatePending.IsActionable())
	assert.True(t, SubscriptionStateActive.IsActionable())
	assert.False(t, SubscriptionStateInactive.IsActionable())
	assert.False(t, SubscriptionStateCanceled.IsActionable())
	assert.False(t, SubscriptionStatePendingCancellation.IsActionable())
}

func TestGenerateLockKey(t *testing.T) {
	req := SubscriptionLockRequest(context.Background(), "sub_123")
	assert.Equal(t, "subscription:subscription_id=sub_123", req.Key)
	assert.Equal(t, DefaultLockTimeout, req.GetTimeout())
}
