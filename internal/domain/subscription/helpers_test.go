package subscription

import (
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

var now = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestSubscription(state types.SubscriptionState, actionableDate *time.Time) *Subscription {
	created := now.AddDate(0, -2, 0)
	return &Subscription{
		ID:             "sub_test",
		UserID:         "user_1",
		State:          state,
		ActionableDate: actionableDate,
		LineItems: []*LineItem{
			{
				ID:             "subli_1",
				SubscriptionID: "sub_test",
				SubscribableID: "variant_1",
				Quantity:       1,
				IntervalLength: 1,
				IntervalUnits:  types.IntervalUnitMonth,
				BaseModel:      types.BaseModel{CreatedAt: created, UpdatedAt: created},
			},
		},
		BaseModel: types.BaseModel{CreatedAt: created, UpdatedAt: created},
	}
}

func past() *time.Time   { return lo.ToPtr(now.AddDate(0, 0, -1)) }
func future() *time.Time { return lo.ToPtr(now.AddDate(0, 0, 5)) }
