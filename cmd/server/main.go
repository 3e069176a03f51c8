package main

import (
	"context"
	"os"
	"time"

	"github.com/flexprice/recurring/internal/cache"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/events"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/integration/checkout"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/publisher"
	"github.com/flexprice/recurring/internal/pubsub"
	"github.com/flexprice/recurring/internal/pubsub/kafka"
	"github.com/flexprice/recurring/internal/pubsub/memory"
	pgrepo "github.com/flexprice/recurring/internal/repository/postgres"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/temporal/activities"
	temporalservice "github.com/flexprice/recurring/internal/temporal/service"
	"github.com/flexprice/recurring/internal/types"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Desugar()}
		}),
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			sentry.NewSentryService,

			// storage
			provideDBClient,
			func(c *postgres.Client) postgres.IClient { return c },
			cache.Initialize,
			pgrepo.NewSubscriptionRepository,
			pgrepo.NewInstallmentRepository,
			pgrepo.NewEventRepository,
			pgrepo.NewPurchasableRepository,

			// messaging
			providePubSub,
			publisher.NewEventPublisher,

			// collaborators
			func(cfg *config.Configuration, log *logger.Logger) service.Checkout {
				return checkout.NewClient(cfg, log)
			},
			service.NewErrorHandler,

			// services
			service.NewServiceParams,
			service.NewInstallmentService,
			temporalservice.NewTemporalService,
			activities.NewSubscriptionActivities,
		),
		fx.Invoke(migrate, run),
	)

	app.Run()
}

func provideDBClient(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*postgres.Client, error) {
	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, err
	}
	client := postgres.NewClient(db, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func providePubSub(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	var (
		ps  pubsub.PubSub
		err error
	)
	if cfg.Kafka.Enabled {
		ps, err = kafka.NewPubSub(cfg, log, cfg.Kafka.ClientID)
		if err != nil {
			return nil, err
		}
	} else {
		log.Infow("kafka disabled, publishing events in process")
		ps = memory.NewPubSub(log)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ps.Close()
		},
	})
	return ps, nil
}

func migrate(lc fx.Lifecycle, cfg *config.Configuration, client *postgres.Client) {
	if !cfg.Postgres.AutoMigrate {
		return
	}
	lc.Append(fx.Hook{
		OnStart: client.Migrate,
	})
}

type runParams struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Shutdowner   fx.Shutdowner
	Config       *config.Configuration
	Logger       *logger.Logger
	Sentry       *sentry.Service
	PubSub       pubsub.PubSub
	Temporal     temporalservice.TemporalService
	Activities   *activities.SubscriptionActivities
	Installments service.InstallmentService
}

func run(p runParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.Sentry.Flush(2 * time.Second)
			return nil
		},
	})

	switch p.Config.Deployment.Mode {
	case types.ModeLocal:
		startWorker(p)
		startEventLog(p)
	case types.ModeWorker:
		startWorker(p)
	case types.ModeProcessor:
		startProcessor(p)
	default:
		p.Logger.Fatalf("unknown deployment mode %q", p.Config.Deployment.Mode)
	}
}

func startWorker(p runParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Temporal.Start(ctx); err != nil {
				return err
			}
			if err := p.Temporal.StartWorker(p.Activities); err != nil {
				return err
			}
			if p.Config.Processor.CronSchedule == "" {
				p.Logger.Infow("no cron schedule configured, actionable processing runs on demand only")
				return nil
			}
			return p.Temporal.ScheduleProcessActionable(ctx)
		},
		OnStop: p.Temporal.Stop,
	})
}

// startEventLog tails the event topic into the log
func startEventLog(p runParams) {
	ctx, cancel := context.WithCancel(context.Background())
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := publisher.Consume(ctx, p.Config, p.PubSub, p.Logger, func(_ context.Context, e *events.Event) error {
					p.Logger.Infow("subscription event",
						"event_id", e.ID,
						"event_type", e.Type,
						"subscription_id", e.SubscriptionID,
					)
					return nil
				})
				if err != nil {
					p.Logger.Errorw("event log stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

// startProcessor runs one sweep over the actionable subscriptions and exits
func startProcessor(p runParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				exitCode := 0
				resp, err := p.Installments.ProcessActionable(context.Background())
				if err != nil {
					exitCode = 1
					p.Logger.Errorw("actionable processing failed",
						"error", err,
						"response", ierr.NewErrorResponse(err),
					)
				}
				if resp != nil {
					p.Logger.Infow("actionable processing finished",
						"selected", resp.Selected,
						"processed", resp.Processed,
						"failed", resp.Failed,
					)
				}
				if err := p.Shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					p.Logger.Errorw("failed to shut down", "error", err)
					os.Exit(exitCode)
				}
			}()
			return nil
		},
	})
}
