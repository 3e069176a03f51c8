package service

import (
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/purchasable"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	testCoffeeID = "variant_coffee"
	testFilterID = "variant_filter"
)

// newTestParams wires the suite's in-memory collaborators into service params
func newTestParams(s *testutil.BaseServiceTestSuite, handler ErrorHandler) ServiceParams {
	if handler == nil {
		handler = &swallowErrorHandler{logger: s.GetLogger()}
	}
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		SubscriptionRepo: s.GetStores().SubscriptionRepo,
		InstallmentRepo:  s.GetStores().InstallmentRepo,
		EventRepo:        s.GetStores().EventRepo,
		PurchasableRepo:  s.GetStores().PurchasableRepo,
		EventPublisher:   s.GetPublisher(),
		Checkout:         s.GetCheckout(),
		ErrorHandler:     handler,
		Now:              s.Clock(),
	}
}

func seedPurchasables(s *testutil.BaseServiceTestSuite) {
	for _, p := range []*purchasable.Purchasable{
		{ID: testCoffeeID, Name: "House Blend 1kg", Price: decimal.RequireFromString("24.50"), Currency: "usd"},
		{ID: testFilterID, Name: "Paper Filters", Price: decimal.RequireFromString("4.99"), Currency: "usd"},
	} {
		s.Require().NoError(s.GetStores().PurchasableRepo.Create(s.GetContext(), p))
	}
}

func monthlyCoffeeRequest() dto.CreateSubscriptionRequest {
	return dto.CreateSubscriptionRequest{
		UserID: "user_1",
		LineItems: []dto.CreateLineItemRequest{
			{
				SubscribableID: testCoffeeID,
				Quantity:       2,
				IntervalLength: 1,
				IntervalUnits:  types.IntervalUnitMonth,
			},
		},
	}
}

// storeSubscription writes a subscription straight into the store, bypassing
// creation rules, so tests can start from any state
func storeSubscription(s *testutil.BaseServiceTestSuite, id string, state types.SubscriptionState, actionableDate *time.Time, lineItems ...*subscription.LineItem) *subscription.Subscription {
	created := s.GetNow().AddDate(0, -2, 0)
	base := types.BaseModel{CreatedAt: created, UpdatedAt: created}

	if len(lineItems) == 0 {
		lineItems = []*subscription.LineItem{monthlyLineItem(id+"_li", testCoffeeID)}
	}
	for _, li := range lineItems {
		li.SubscriptionID = id
		li.BaseModel = base
	}

	sub := &subscription.Subscription{
		ID:             id,
		UserID:         "user_1",
		State:          state,
		ActionableDate: actionableDate,
		LineItems:      lineItems,
		BaseModel:      base,
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func monthlyLineItem(id, subscribableID string) *subscription.LineItem {
	return &subscription.LineItem{
		ID:             id,
		SubscribableID: subscribableID,
		Quantity:       1,
		IntervalLength: 1,
		IntervalUnits:  types.IntervalUnitMonth,
	}
}

func daysFrom(t time.Time, days int) *time.Time {
	return lo.ToPtr(t.AddDate(0, 0, days))
}
