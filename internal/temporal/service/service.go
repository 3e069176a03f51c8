package service

import (
	"context"
	"sync"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/flexprice/recurring/internal/temporal/activities"
	temporalInterceptor "github.com/flexprice/recurring/internal/temporal/interceptor"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/flexprice/recurring/internal/temporal/workflows"
	"github.com/flexprice/recurring/internal/types"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
)

// TemporalService owns the temporal client and the processing worker
type TemporalService interface {
	// Start connects to the temporal frontend
	Start(ctx context.Context) error

	// Stop stops the worker and closes the client
	Stop(ctx context.Context) error

	// StartWorker registers the processing workflows and activities and starts polling
	StartWorker(acts *activities.SubscriptionActivities) error

	// ScheduleProcessActionable starts the cron sweep. An already running schedule is kept.
	ScheduleProcessActionable(ctx context.Context) error

	// ProcessSubscription runs the single subscription workflow and waits for its result
	ProcessSubscription(ctx context.Context, subscriptionID string) (*models.ProcessSubscriptionWorkflowResult, error)

	// ExecuteWorkflow starts a workflow with a deterministic id derived from contextID
	ExecuteWorkflow(ctx context.Context, workflowType types.TemporalWorkflowType, contextID string, input interface{}) (client.WorkflowRun, error)
}

type temporalService struct {
	cfg    *config.Configuration
	logger *logger.Logger
	sentry *sentry.Service

	mu     sync.Mutex
	client client.Client
	worker worker.Worker
}

func NewTemporalService(cfg *config.Configuration, logger *logger.Logger, sentryService *sentry.Service) TemporalService {
	return &temporalService{
		cfg:    cfg,
		logger: logger,
		sentry: sentryService,
	}
}

func (s *temporalService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	c, err := client.DialContext(ctx, client.Options{
		HostPort:  s.cfg.Temporal.Address,
		Namespace: s.cfg.Temporal.Namespace,
		Logger:    s.logger.GetTemporalLogger(),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to connect to temporal").
			WithReportableDetails(map[string]any{"address": s.cfg.Temporal.Address}).
			Mark(ierr.ErrSystem)
	}

	s.client = c
	s.logger.Infow("temporal client connected",
		"address", s.cfg.Temporal.Address,
		"namespace", s.cfg.Temporal.Namespace,
	)
	return nil
}

func (s *temporalService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != nil {
		s.worker.Stop()
		s.worker = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}

func (s *temporalService) StartWorker(acts *activities.SubscriptionActivities) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return errNotStarted()
	}
	if acts == nil {
		return ierr.NewError("activities are required").
			WithHint("Subscription activities must be provided to start a worker").
			Mark(ierr.ErrValidation)
	}

	options := worker.Options{}
	if s.sentry.IsEnabled() {
		options.Interceptors = []interceptor.WorkerInterceptor{
			temporalInterceptor.NewSentryInterceptor(s.sentry),
		}
	}

	w := worker.New(s.client, s.cfg.Temporal.TaskQueue, options)
	Register(w, acts)

	if err := w.Start(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to start temporal worker").
			WithReportableDetails(map[string]any{"task_queue": s.cfg.Temporal.TaskQueue}).
			Mark(ierr.ErrSystem)
	}

	s.worker = w
	s.logger.Infow("temporal worker started", "task_queue", s.cfg.Temporal.TaskQueue)
	return nil
}

// Register adds the processing workflows and activities to a worker registry
func Register(r worker.Registry, acts *activities.SubscriptionActivities) {
	r.RegisterWorkflow(workflows.ProcessActionableWorkflow)
	r.RegisterWorkflow(workflows.ProcessSubscriptionWorkflow)
	r.RegisterActivity(acts)
}

func (s *temporalService) ScheduleProcessActionable(ctx context.Context) error {
	c, err := s.getClient()
	if err != nil {
		return err
	}

	id := types.TemporalProcessActionableWorkflow.WorkflowID("cron")
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           id,
		TaskQueue:    s.cfg.Temporal.TaskQueue,
		CronSchedule: s.cfg.Processor.CronSchedule,
	}, workflows.WorkflowProcessActionable, models.ProcessActionableWorkflowInput{
		Concurrency: s.cfg.Processor.Concurrency,
	})

	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case err == nil:
		s.logger.Infow("scheduled actionable subscription processing",
			"workflow_id", id,
			"cron_schedule", s.cfg.Processor.CronSchedule,
		)
		return nil
	case ierr.As(err, &alreadyStarted):
		s.logger.Debugw("actionable subscription processing already scheduled", "workflow_id", id)
		return nil
	default:
		return ierr.WithError(err).
			WithHint("Failed to schedule actionable subscription processing").
			Mark(ierr.ErrSystem)
	}
}

func (s *temporalService) ProcessSubscription(ctx context.Context, subscriptionID string) (*models.ProcessSubscriptionWorkflowResult, error) {
	input := models.ProcessSubscriptionWorkflowInput{
		SubscriptionID: subscriptionID,
		UserID:         types.GetUserID(ctx),
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	run, err := s.ExecuteWorkflow(ctx, types.TemporalProcessSubscriptionWorkflow, subscriptionID, input)
	if err != nil {
		return nil, err
	}

	var result models.ProcessSubscriptionWorkflowResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Processing subscription %s failed", subscriptionID).
			Mark(ierr.ErrSystem)
	}
	return &result, nil
}

func (s *temporalService) ExecuteWorkflow(ctx context.Context, workflowType types.TemporalWorkflowType, contextID string, input interface{}) (client.WorkflowRun, error) {
	if err := workflowType.Validate(); err != nil {
		return nil, err
	}

	c, err := s.getClient()
	if err != nil {
		return nil, err
	}

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowType.WorkflowID(contextID),
		TaskQueue: s.cfg.Temporal.TaskQueue,
	}, workflowType.String(), input)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to start %s", workflowType).
			Mark(ierr.ErrSystem)
	}

	s.logger.Debugw("workflow started",
		"workflow_type", workflowType,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run, nil
}

func (s *temporalService) getClient() (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, errNotStarted()
	}
	return s.client, nil
}

func errNotStarted() error {
	return ierr.NewError("temporal service not started").
		WithHint("Temporal service must be started before use").
		Mark(ierr.ErrInternal)
}
