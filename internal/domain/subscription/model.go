package subscription

import (
	"fmt"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// Subscription is a recurring purchase agreement owning one or more line items.
type Subscription struct {
	ID                  string                  `json:"id"`
	UserID              string                  `json:"user_id"`
	State               types.SubscriptionState `json:"state"`
	ActionableDate      *time.Time              `json:"actionable_date,omitempty"`
	EndDate             *time.Time              `json:"end_date,omitempty"`
	SkipCount           int                     `json:"skip_count"`
	SuccessiveSkipCount int                     `json:"successive_skip_count"`
	IntervalLength      *int                    `json:"interval_length,omitempty"`
	IntervalUnits       *types.IntervalUnit     `json:"interval_units,omitempty"`
	PaymentSourceID     string                  `json:"payment_source_id,omitempty"`
	ShippingAddressID   string                  `json:"shipping_address_id,omitempty"`
	BillingAddressID    string                  `json:"billing_address_id,omitempty"`
	LineItems           []*LineItem             `json:"line_items,omitempty"`
	Metadata            types.Metadata          `json:"metadata,omitempty"`
	types.BaseModel
}

// LineItem is one recurring product entry of a subscription.
type LineItem struct {
	ID              string             `json:"id"`
	SubscriptionID  string             `json:"subscription_id"`
	SpreeLineItemID *string            `json:"spree_line_item_id,omitempty"`
	SubscribableID  string             `json:"subscribable_id"`
	Quantity        int                `json:"quantity"`
	IntervalLength  int                `json:"interval_length"`
	IntervalUnits   types.IntervalUnit `json:"interval_units"`
	MaxInstallments *int               `json:"max_installments,omitempty"`
	types.BaseModel
}

// Interval returns the recurrence interval of the line item
func (li *LineItem) Interval() types.Interval {
	return types.NewInterval(li.IntervalLength, li.IntervalUnits)
}

// NextActionableDate is the subscription anchor (or the line item creation
// time when the subscription has no actionable date) plus the line item interval.
func (li *LineItem) NextActionableDate(sub *Subscription) time.Time {
	anchor := li.CreatedAt
	if sub != nil && sub.ActionableDate != nil {
		anchor = *sub.ActionableDate
	}
	return li.Interval().From(anchor)
}

// Validate collects field level errors for the line item
func (li *LineItem) Validate() ierr.FieldErrors {
	errs := ierr.FieldErrors{}
	if li.SubscribableID == "" {
		errs.Add("subscribable_id", "can't be blank")
	}
	if li.Quantity <= 0 {
		errs.Add("quantity", "must be greater than 0")
	}
	if li.IntervalLength <= 0 {
		errs.Add("interval_length", "must be greater than 0")
	}
	if err := li.IntervalUnits.Validate(); err != nil {
		errs.Add("interval_units", "is not included in the list")
	}
	if li.MaxInstallments != nil && *li.MaxInstallments <= 0 {
		errs.Add("max_installments", "must be greater than 0")
	}
	return errs
}

// Validate collects field level errors for the subscription and its line items.
// Line item errors are keyed as line_items[i].field.
func (s *Subscription) Validate() ierr.FieldErrors {
	errs := ierr.FieldErrors{}
	if s.UserID == "" {
		errs.Add("user_id", "can't be blank")
	}
	if err := s.State.Validate(); err != nil {
		errs.Add("state", "is not included in the list")
	}
	if s.SkipCount < 0 {
		errs.Add("skip_count", "must be greater than or equal to 0")
	}
	if s.SuccessiveSkipCount < 0 {
		errs.Add("successive_skip_count", "must be greater than or equal to 0")
	}
	if (s.IntervalLength == nil) != (s.IntervalUnits == nil) {
		errs.Add("interval_length", "must be set together with interval_units")
	}
	if s.IntervalLength != nil && *s.IntervalLength <= 0 {
		errs.Add("interval_length", "must be greater than 0")
	}
	if s.IntervalUnits != nil && s.IntervalUnits.Validate() != nil {
		errs.Add("interval_units", "is not included in the list")
	}
	if len(s.LineItems) == 0 {
		errs.Add("line_items", "can't be blank")
	}
	for i, li := range s.LineItems {
		for field, msgs := range li.Validate() {
			for _, msg := range msgs {
				errs.Add(lineItemField(i, field), msg)
			}
		}
	}
	return errs
}

// GetLineItem returns the line item with the given id
func (s *Subscription) GetLineItem(id string) (*LineItem, bool) {
	return lo.Find(s.LineItems, func(li *LineItem) bool {
		return li.ID == id
	})
}

// IsDue reports whether the subscription is in an actionable state and its
// actionable date has been reached.
func (s *Subscription) IsDue(now time.Time) bool {
	return s.State.IsActionable() && s.ActionableDate != nil && !s.ActionableDate.After(now)
}

// IsPastEndDate reports whether an end date is set and has been reached
func (s *Subscription) IsPastEndDate(now time.Time) bool {
	return s.EndDate != nil && !s.EndDate.After(now)
}

func lineItemField(index int, field string) string {
	return fmt.Sprintf("line_items[%d].%s", index, field)
}
