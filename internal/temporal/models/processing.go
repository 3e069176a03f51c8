package models

import (
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
)

// ProcessActionableWorkflowInput configures one sweep over the due subscriptions
type ProcessActionableWorkflowInput struct {
	// Concurrency bounds the number of subscriptions checked out in parallel
	Concurrency int `json:"concurrency"`
}

func (i *ProcessActionableWorkflowInput) Validate() error {
	if i.Concurrency < 0 {
		return ierr.NewError("concurrency must not be negative").
			WithHint("Concurrency must be zero for the default or a positive number").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ProcessActionableWorkflowResult summarizes a sweep
type ProcessActionableWorkflowResult struct {
	Selected  int      `json:"selected"`
	Processed int      `json:"processed"`
	Failed    []string `json:"failed,omitempty"`
}

// FetchActionableSubscriptionsOutput is the snapshot of due subscription ids
type FetchActionableSubscriptionsOutput struct {
	SubscriptionIDs []string `json:"subscription_ids"`
}

// ProcessSubscriptionWorkflowInput names the subscription to process
type ProcessSubscriptionWorkflowInput struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id,omitempty"`
}

func (i *ProcessSubscriptionWorkflowInput) Validate() error {
	if i.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ProcessSubscriptionWorkflowResult reports what happened to one subscription
type ProcessSubscriptionWorkflowResult struct {
	SubscriptionID  string                `json:"subscription_id"`
	Processed       bool                  `json:"processed"`
	InstallmentID   string                `json:"installment_id,omitempty"`
	ProcessingState types.ProcessingState `json:"processing_state,omitempty"`
}
