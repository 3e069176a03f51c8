package workflows

import (
	"time"

	"github.com/flexprice/recurring/internal/temporal/activities"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/samber/lo"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow names - must match the function names
	WorkflowProcessActionable   = "ProcessActionableWorkflow"
	WorkflowProcessSubscription = "ProcessSubscriptionWorkflow"

	defaultConcurrency = 10
)

// ProcessActionableWorkflow is the entry point triggered on a cron schedule. It
// snapshots the due subscriptions and processes them in bounded parallel waves.
// A subscription that fails is reported and left for the next run.
func ProcessActionableWorkflow(ctx workflow.Context, input models.ProcessActionableWorkflowInput) (*models.ProcessActionableWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	logger := workflow.GetLogger(ctx)

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var fetched models.FetchActionableSubscriptionsOutput
	if err := workflow.ExecuteActivity(fetchCtx, activities.ActivityFetchActionableSubscriptions).Get(ctx, &fetched); err != nil {
		logger.Error("Failed to fetch actionable subscriptions", "error", err)
		return nil, err
	}

	result := &models.ProcessActionableWorkflowResult{Selected: len(fetched.SubscriptionIDs)}
	if result.Selected == 0 {
		return result, nil
	}

	// a failed checkout is already recorded; retrying would only find the
	// subscription not due
	processCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	concurrency := input.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	for _, wave := range lo.Chunk(fetched.SubscriptionIDs, concurrency) {
		futures := lo.Map(wave, func(id string, _ int) workflow.Future {
			return workflow.ExecuteActivity(processCtx, activities.ActivityProcessSubscription, models.ProcessSubscriptionWorkflowInput{
				SubscriptionID: id,
			})
		})

		for i, future := range futures {
			var processed models.ProcessSubscriptionWorkflowResult
			if err := future.Get(ctx, &processed); err != nil {
				logger.Error("Failed to process subscription", "subscription_id", wave[i], "error", err)
				result.Failed = append(result.Failed, wave[i])
				continue
			}
			if processed.Processed {
				result.Processed++
			}
		}
	}

	logger.Info("Processed actionable subscriptions",
		"selected", result.Selected,
		"processed", result.Processed,
		"failed", len(result.Failed))
	return result, nil
}

// ProcessSubscriptionWorkflow processes a single subscription on demand
func ProcessSubscriptionWorkflow(ctx workflow.Context, input models.ProcessSubscriptionWorkflowInput) (*models.ProcessSubscriptionWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var result models.ProcessSubscriptionWorkflowResult
	if err := workflow.ExecuteActivity(ctx, activities.ActivityProcessSubscription, input).Get(ctx, &result); err != nil {
		workflow.GetLogger(ctx).Error("Failed to process subscription", "subscription_id", input.SubscriptionID, "error", err)
		return nil, err
	}
	return &result, nil
}
