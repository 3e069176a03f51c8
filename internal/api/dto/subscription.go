package dto

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/flexprice/recurring/internal/domain/purchasable"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/flexprice/recurring/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreateLineItemRequest describes one recurring product of a new subscription
type CreateLineItemRequest struct {
	SpreeLineItemID *string            `json:"spree_line_item_id,omitempty"`
	SubscribableID  string             `json:"subscribable_id" validate:"required"`
	Quantity        int                `json:"quantity" validate:"required,gt=0"`
	IntervalLength  int                `json:"interval_length" validate:"required,gt=0"`
	IntervalUnits   types.IntervalUnit `json:"interval_units" validate:"required"`
	MaxInstallments *int               `json:"max_installments,omitempty" validate:"omitempty,gt=0"`
}

// CreateSubscriptionRequest is the input for creating a subscription
type CreateSubscriptionRequest struct {
	UserID            string                  `json:"user_id" validate:"required"`
	IntervalLength    *int                    `json:"interval_length,omitempty" validate:"omitempty,gt=0"`
	IntervalUnits     *types.IntervalUnit     `json:"interval_units,omitempty"`
	EndDate           *time.Time              `json:"end_date,omitempty"`
	PaymentSourceID   string                  `json:"payment_source_id,omitempty"`
	ShippingAddressID string                  `json:"shipping_address_id,omitempty"`
	BillingAddressID  string                  `json:"billing_address_id,omitempty"`
	LineItems         []CreateLineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	Metadata          types.Metadata          `json:"metadata,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if (r.IntervalLength == nil) != (r.IntervalUnits == nil) {
		return ierr.NewError("interval_length and interval_units must be set together").
			WithHint("Provide both interval length and units to override the line item intervals").
			Mark(ierr.ErrValidation)
	}
	if r.IntervalUnits != nil {
		if err := r.IntervalUnits.Validate(); err != nil {
			return err
		}
	}
	for _, li := range r.LineItems {
		if err := li.IntervalUnits.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToSubscription builds a pending subscription created at now
func (r *CreateSubscriptionRequest) ToSubscription(ctx context.Context, now time.Time) *subscription.Subscription {
	base := types.GetDefaultBaseModel(ctx)
	base.CreatedAt = now
	base.UpdatedAt = now

	sub := &subscription.Subscription{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:            r.UserID,
		State:             types.SubscriptionStatePending,
		EndDate:           r.EndDate,
		IntervalLength:    r.IntervalLength,
		IntervalUnits:     r.IntervalUnits,
		PaymentSourceID:   r.PaymentSourceID,
		ShippingAddressID: r.ShippingAddressID,
		BillingAddressID:  r.BillingAddressID,
		Metadata:          r.Metadata,
		BaseModel:         base,
	}
	sub.LineItems = lo.Map(r.LineItems, func(li CreateLineItemRequest, _ int) *subscription.LineItem {
		return &subscription.LineItem{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_LINE_ITEM),
			SubscriptionID:  sub.ID,
			SpreeLineItemID: li.SpreeLineItemID,
			SubscribableID:  li.SubscribableID,
			Quantity:        li.Quantity,
			IntervalLength:  li.IntervalLength,
			IntervalUnits:   li.IntervalUnits,
			MaxInstallments: li.MaxInstallments,
			BaseModel:       base,
		}
	})
	return sub
}

// UpdateIntervalRequest overrides the subscription interval
type UpdateIntervalRequest struct {
	IntervalLength int                `json:"interval_length" validate:"required,gt=0"`
	IntervalUnits  types.IntervalUnit `json:"interval_units" validate:"required"`
}

func (r *UpdateIntervalRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.IntervalUnits.Validate()
}

// UpdateLineItemRequest changes a line item, nil fields are left untouched
type UpdateLineItemRequest struct {
	Quantity        *int                `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	IntervalLength  *int                `json:"interval_length,omitempty" validate:"omitempty,gt=0"`
	IntervalUnits   *types.IntervalUnit `json:"interval_units,omitempty"`
	MaxInstallments *int                `json:"max_installments,omitempty" validate:"omitempty,gt=0"`
}

func (r *UpdateLineItemRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.IntervalUnits != nil {
		return r.IntervalUnits.Validate()
	}
	return nil
}

// ChangesInterval reports whether the request touches the recurrence interval
func (r *UpdateLineItemRequest) ChangesInterval() bool {
	return r.IntervalLength != nil || r.IntervalUnits != nil
}

// LineItemResponse is the serialized line item. The field set is fixed.
type LineItemResponse struct {
	ID                 string             `json:"id"`
	SpreeLineItemID    *string            `json:"spree_line_item_id"`
	SubscriptionID     string             `json:"subscription_id"`
	Quantity           int                `json:"quantity"`
	MaxInstallments    *int               `json:"max_installments"`
	SubscribableID     string             `json:"subscribable_id"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	IntervalUnits      types.IntervalUnit `json:"interval_units"`
	IntervalLength     int                `json:"interval_length"`
	Price              *decimal.Decimal   `json:"price"`
	NextActionableDate time.Time          `json:"next_actionable_date"`
	Name               *string            `json:"name"`
}

// NewLineItemResponse serializes a line item. Price and name pass through
// from the purchasable when it is known.
func NewLineItemResponse(sub *subscription.Subscription, li *subscription.LineItem, p *purchasable.Purchasable) *LineItemResponse {
	resp := &LineItemResponse{
		ID:                 li.ID,
		SpreeLineItemID:    li.SpreeLineItemID,
		SubscriptionID:     li.SubscriptionID,
		Quantity:           li.Quantity,
		MaxInstallments:    li.MaxInstallments,
		SubscribableID:     li.SubscribableID,
		CreatedAt:          li.CreatedAt,
		UpdatedAt:          li.UpdatedAt,
		IntervalUnits:      li.IntervalUnits,
		IntervalLength:     li.IntervalLength,
		NextActionableDate: li.NextActionableDate(sub),
	}
	if p != nil {
		resp.Price = lo.ToPtr(p.Price)
		resp.Name = lo.ToPtr(p.Name)
	}
	return resp
}

// SubscriptionResponse is the serialized subscription with derived fields
type SubscriptionResponse struct {
	ID                  string                  `json:"id"`
	UserID              string                  `json:"user_id"`
	State               types.SubscriptionState `json:"state"`
	ActionableDate      *time.Time              `json:"actionable_date"`
	EndDate             *time.Time              `json:"end_date"`
	SkipCount           int                     `json:"skip_count"`
	SuccessiveSkipCount int                     `json:"successive_skip_count"`
	IntervalLength      *int                    `json:"interval_length"`
	IntervalUnits       *types.IntervalUnit     `json:"interval_units"`
	PaymentSourceID     string                  `json:"payment_source_id,omitempty"`
	ShippingAddressID   string                  `json:"shipping_address_id,omitempty"`
	BillingAddressID    string                  `json:"billing_address_id,omitempty"`
	ProcessingState     types.ProcessingState   `json:"processing_state"`
	LineItems           []*LineItemResponse     `json:"line_items"`
	Metadata            types.Metadata          `json:"metadata,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

func NewSubscriptionResponse(sub *subscription.Subscription, state types.ProcessingState, purchasables map[string]*purchasable.Purchasable) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:                  sub.ID,
		UserID:              sub.UserID,
		State:               sub.State,
		ActionableDate:      sub.ActionableDate,
		EndDate:             sub.EndDate,
		SkipCount:           sub.SkipCount,
		SuccessiveSkipCount: sub.SuccessiveSkipCount,
		IntervalLength:      sub.IntervalLength,
		IntervalUnits:       sub.IntervalUnits,
		PaymentSourceID:     sub.PaymentSourceID,
		ShippingAddressID:   sub.ShippingAddressID,
		BillingAddressID:    sub.BillingAddressID,
		ProcessingState:     state,
		LineItems: lo.Map(sub.LineItems, func(li *subscription.LineItem, _ int) *LineItemResponse {
			return NewLineItemResponse(sub, li, purchasables[li.SubscribableID])
		}),
		Metadata:  sub.Metadata,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

// SkipSubscriptionResponse reports the new actionable date or why the skip was refused
type SkipSubscriptionResponse struct {
	Skipped        bool                `json:"skipped"`
	ActionableDate *time.Time          `json:"actionable_date,omitempty"`
	Errors         map[string][]string `json:"errors,omitempty"`
}

// ProcessSubscriptionResponse summarizes one processing run
type ProcessSubscriptionResponse struct {
	SubscriptionID  string                   `json:"subscription_id"`
	Processed       bool                     `json:"processed"`
	Installment     *installment.Installment `json:"installment,omitempty"`
	ProcessingState types.ProcessingState    `json:"processing_state,omitempty"`
}

// ProcessActionableResponse summarizes a batch run
type ProcessActionableResponse struct {
	Selected  int `json:"selected"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}
