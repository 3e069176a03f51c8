package dto

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/domain/purchasable"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateRequest() CreateSubscriptionRequest {
	return CreateSubscriptionRequest{
		UserID: "user_1",
		LineItems: []CreateLineItemRequest{
			{
				SubscribableID: "variant_1",
				Quantity:       2,
				IntervalLength: 1,
				IntervalUnits:  types.IntervalUnitMonth,
			},
		},
	}
}

func TestCreateSubscriptionRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreateSubscriptionRequest)
		wantErr bool
	}{
		{"valid", func(r *CreateSubscriptionRequest) {}, false},
		{"missing user", func(r *CreateSubscriptionRequest) { r.UserID = "" }, true},
		{"no line items", func(r *CreateSubscriptionRequest) { r.LineItems = nil }, true},
		{"zero quantity", func(r *CreateSubscriptionRequest) { r.LineItems[0].Quantity = 0 }, true},
		{"negative interval", func(r *CreateSubscriptionRequest) { r.LineItems[0].IntervalLength = -1 }, true},
		{"unknown unit", func(r *CreateSubscriptionRequest) { r.LineItems[0].IntervalUnits = "fortnight" }, true},
		{"zero max installments", func(r *CreateSubscriptionRequest) { r.LineItems[0].MaxInstallments = lo.ToPtr(0) }, true},
		{"partial override", func(r *CreateSubscriptionRequest) { r.IntervalLength = lo.ToPtr(2) }, true},
		{"full override", func(r *CreateSubscriptionRequest) {
			r.IntervalLength = lo.ToPtr(2)
			r.IntervalUnits = lo.ToPtr(types.IntervalUnitWeek)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCreateSubscriptionRequest_ToSubscription(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	req := validCreateRequest()

	sub := req.ToSubscription(context.Background(), now)
	assert.Equal(t, types.SubscriptionStatePending, sub.State)
	assert.Equal(t, now, sub.CreatedAt)
	require.Len(t, sub.LineItems, 1)
	assert.Equal(t, sub.ID, sub.LineItems[0].SubscriptionID)
	assert.Equal(t, 2, sub.LineItems[0].Quantity)
}

func TestLineItemResponse_Fields(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	req := validCreateRequest()
	sub := req.ToSubscription(context.Background(), now)
	sub.ActionableDate = lo.ToPtr(now.AddDate(0, 0, 3))

	p := &purchasable.Purchasable{ID: "variant_1", Name: "Coffee beans", Price: decimal.RequireFromString("12.50")}
	resp := NewLineItemResponse(sub, sub.LineItems[0], p)

	assert.Equal(t, now.AddDate(0, 1, 3), resp.NextActionableDate)
	assert.Equal(t, "Coffee beans", *resp.Name)
	assert.True(t, decimal.RequireFromString("12.50").Equal(*resp.Price))

	raw, err := jsoniter.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, jsoniter.Unmarshal(raw, &decoded))

	keys := lo.Keys(decoded)
	sort.Strings(keys)
	expected := []string{
		"id", "spree_line_item_id", "subscription_id", "quantity", "max_installments", "subscribable_id",
		"created_at", "updated_at", "interval_units", "interval_length", "price", "next_actionable_date", "name",
	}
	sort.Strings(expected)
	assert.Equal(t, expected, keys)
}
