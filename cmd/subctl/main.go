package main

import (
	"context"
	"io"
	"os"

	"github.com/flexprice/recurring/internal/cache"
	"github.com/flexprice/recurring/internal/config"
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
	"github.com/flexprice/recurring/internal/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app holds the services a command runs against
type app struct {
	subscriptions service.SubscriptionService
	installments  service.InstallmentService
	out           io.Writer
	closers       []func() error
}

func newApp(cfg *config.Configuration, log *logger.Logger) (*app, error) {
	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, err
	}
	client := postgres.NewClient(db, log)

	var ps pubsub.PubSub
	if cfg.Kafka.Enabled {
		ps, err = kafka.NewPubSub(cfg, log, cfg.Kafka.ClientID)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
	} else {
		ps = memory.NewPubSub(log)
	}

	params := service.NewServiceParams(
		log,
		cfg,
		client,
		pgrepo.NewSubscriptionRepository(client, log),
		pgrepo.NewInstallmentRepository(client, log),
		pgrepo.NewEventRepository(client, log),
		pgrepo.NewPurchasableRepository(client, log, cache.Initialize(log)),
		publisher.NewEventPublisher(cfg, ps, log),
		checkout.NewClient(cfg, log),
		service.NewErrorHandler(cfg, log, sentry.NewSentryService(cfg, log)),
	)

	return &app{
		subscriptions: service.NewSubscriptionService(params),
		installments:  service.NewInstallmentService(params),
		out:           os.Stdout,
		closers:       []func() error{ps.Close, client.Close},
	}, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func (a *app) print(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to render output").
			Mark(ierr.ErrInternal)
	}
	_, err = a.out.Write(append(raw, '\n'))
	return err
}

func rootCommand() *cobra.Command {
	var (
		userID string
		cur    *app
	)

	root := &cobra.Command{
		Use:           "subctl",
		Short:         "Operate recurring subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			log, err := logger.NewLogger(cfg)
			if err != nil {
				return err
			}
			cur, err = newApp(cfg, log)
			if err != nil {
				return err
			}

			ctx := types.SetRequestID(cmd.Context(), types.GenerateUUID())
			ctx = types.SetUserID(ctx, userID)
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cur != nil {
				cur.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&userID, "user", "subctl", "The user recorded on changes")

	current := func() *app { return cur }
	root.AddCommand(
		createCommand(current),
		getCommand(current),
		skipCommand(current),
		transitionCommand(current, "cancel", "Cancel now or at the next actionable date", func(a *app) func(context.Context, string) (bool, error) {
			return a.subscriptions.Cancel
		}),
		transitionCommand(current, "activate", "Reactivate a pending or inactive subscription", func(a *app) func(context.Context, string) (bool, error) {
			return a.subscriptions.Activate
		}),
		transitionCommand(current, "deactivate", "End an active subscription past its end date", func(a *app) func(context.Context, string) (bool, error) {
			return a.subscriptions.Deactivate
		}),
		updateIntervalCommand(current),
		updateLineItemCommand(current),
		endDateCommand(current),
		stateCommand(current),
		actionableCommand(current),
		byStateCommand(current),
		eventsCommand(current),
		installmentsCommand(current),
		processCommand(current),
		processActionableCommand(current),
	)
	return root
}

func main() {
	root := rootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		raw, _ := json.MarshalIndent(ierr.NewErrorResponse(err), "", "  ")
		_, _ = os.Stderr.Write(append(raw, '\n'))
		os.Exit(1)
	}
}
