package activities

import (
	"context"

	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/flexprice/recurring/internal/types"
	"go.temporal.io/sdk/activity"
)

const (
	// Activity names - must match the registered method names
	ActivityFetchActionableSubscriptions = "FetchActionableSubscriptionsActivity"
	ActivityProcessSubscription          = "ProcessSubscriptionActivity"
)

// SubscriptionActivities exposes installment processing to workflows
type SubscriptionActivities struct {
	installmentService service.InstallmentService
}

func NewSubscriptionActivities(installmentService service.InstallmentService) *SubscriptionActivities {
	return &SubscriptionActivities{
		installmentService: installmentService,
	}
}

// FetchActionableSubscriptionsActivity snapshots the ids of every subscription due now
func (a *SubscriptionActivities) FetchActionableSubscriptionsActivity(ctx context.Context) (*models.FetchActionableSubscriptionsOutput, error) {
	logger := activity.GetLogger(ctx)

	ids, err := a.installmentService.ListActionableIDs(ctx)
	if err != nil {
		logger.Error("Failed to list actionable subscriptions", "error", err)
		return nil, err
	}

	logger.Info("Fetched actionable subscriptions", "count", len(ids))
	return &models.FetchActionableSubscriptionsOutput{SubscriptionIDs: ids}, nil
}

// ProcessSubscriptionActivity creates and checks out the next installment of one subscription
func (a *SubscriptionActivities) ProcessSubscriptionActivity(ctx context.Context, input models.ProcessSubscriptionWorkflowInput) (*models.ProcessSubscriptionWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.UserID != "" {
		ctx = types.SetUserID(ctx, input.UserID)
	}

	resp, err := a.installmentService.ProcessSubscription(ctx, input.SubscriptionID)
	if err != nil {
		return nil, err
	}

	result := &models.ProcessSubscriptionWorkflowResult{
		SubscriptionID:  resp.SubscriptionID,
		Processed:       resp.Processed,
		ProcessingState: resp.ProcessingState,
	}
	if resp.Installment != nil {
		result.InstallmentID = resp.Installment.ID
	}
	return result, nil
}
