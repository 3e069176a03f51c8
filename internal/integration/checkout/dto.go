package checkout

import (
	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/samber/lo"
)

// ProcessInstallmentRequest is the payload posted to the storefront checkout
type ProcessInstallmentRequest struct {
	InstallmentID  string                   `json:"installment_id"`
	SubscriptionID string                   `json:"subscription_id"`
	LineItems      []ProcessInstallmentItem `json:"line_items"`
}

type ProcessInstallmentItem struct {
	SubscriptionLineItemID string `json:"subscription_line_item_id"`
	SubscribableID         string `json:"subscribable_id"`
	Quantity               int    `json:"quantity"`
}

// ProcessInstallmentResponse is the storefront's verdict for one installment
type ProcessInstallmentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

func newProcessInstallmentRequest(inst *installment.Installment) *ProcessInstallmentRequest {
	return &ProcessInstallmentRequest{
		InstallmentID:  inst.ID,
		SubscriptionID: inst.SubscriptionID,
		LineItems: lo.Map(inst.LineItems, func(li *installment.LineItem, _ int) ProcessInstallmentItem {
			return ProcessInstallmentItem{
				SubscriptionLineItemID: li.SubscriptionLineItemID,
				SubscribableID:         li.SubscribableID,
				Quantity:               li.Quantity,
			}
		}),
	}
}

func (r *ProcessInstallmentResponse) toOutcome() *installment.Outcome {
	return &installment.Outcome{
		Success: r.Success,
		Message: r.Message,
		OrderID: r.OrderID,
	}
}
