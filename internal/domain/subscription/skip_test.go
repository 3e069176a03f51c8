package subscription

import (
	"testing"

	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_Skip(t *testing.T) {
	limits := SkipLimits{MaxSuccessive: 1, MaxTotal: 3}

	t.Run("accepted skip advances from now", func(t *testing.T) {
		sub := newTestSubscription(types.SubscriptionStateActive, past())

		next, errs := sub.Skip(limits, now)
		require.True(t, errs.Empty())
		require.NotNil(t, next)
		assert.Equal(t, now.AddDate(0, 1, 0), *next)
		assert.Equal(t, *next, *sub.ActionableDate)
		assert.Equal(t, 1, sub.SkipCount)
		assert.Equal(t, 1, sub.SuccessiveSkipCount)
	})

	t.Run("successive limit reached", func(t *testing.T) {
		sub := newTestSubscription(types.SubscriptionStateActive, future())
		sub.SuccessiveSkipCount = 1
		before := *sub.ActionableDate

		for i := 0; i < 3; i++ {
			next, errs := sub.Skip(limits, now)
			assert.Nil(t, next)
			assert.True(t, errs.Has("successive_skip_count"))
			assert.False(t, errs.Has("skip_count"))
		}
		assert.Equal(t, 1, sub.SuccessiveSkipCount)
		assert.Equal(t, 0, sub.SkipCount)
		assert.Equal(t, before, *sub.ActionableDate)
	})

	t.Run("total limit reached", func(t *testing.T) {
		sub := newTestSubscription(types.SubscriptionStateActive, future())
		sub.SkipCount = 3

		next, errs := sub.Skip(limits, now)
		assert.Nil(t, next)
		assert.True(t, errs.Has("skip_count"))
		assert.Equal(t, 3, sub.SkipCount)
		assert.Equal(t, 0, sub.SuccessiveSkipCount)
	})

	t.Run("not active", func(t *testing.T) {
		sub := newTestSubscription(types.SubscriptionStatePending, future())

		next, errs := sub.Skip(limits, now)
		assert.Nil(t, next)
		assert.True(t, errs.Has("state"))
		assert.Equal(t, 0, sub.SkipCount)
	})

	t.Run("zero limits reject everything", func(t *testing.T) {
		sub := newTestSubscription(types.SubscriptionStateActive, future())

		_, errs := sub.Skip(SkipLimits{}, now)
		assert.False(t, errs.Empty())
		assert.GreaterOrEqual(t, sub.SkipCount, 0)
		assert.GreaterOrEqual(t, sub.SuccessiveSkipCount, 0)
	})
}
