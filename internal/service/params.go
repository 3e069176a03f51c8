package service

import (
	"time"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/events"
	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/flexprice/recurring/internal/domain/purchasable"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	SubscriptionRepo subscription.Repository
	InstallmentRepo  installment.Repository
	EventRepo        events.Repository
	PurchasableRepo  purchasable.Repository

	// Collaborators
	EventPublisher events.Publisher
	Checkout       Checkout
	ErrorHandler   ErrorHandler

	// Now is the clock every operation reads once at its start. Defaults to UTC wall time.
	Now func() time.Time
}

// NewServiceParams creates a new ServiceParams instance
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	subscriptionRepo subscription.Repository,
	installmentRepo installment.Repository,
	eventRepo events.Repository,
	purchasableRepo purchasable.Repository,
	eventPublisher events.Publisher,
	checkout Checkout,
	errorHandler ErrorHandler,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		SubscriptionRepo: subscriptionRepo,
		InstallmentRepo:  installmentRepo,
		EventRepo:        eventRepo,
		PurchasableRepo:  purchasableRepo,
		EventPublisher:   eventPublisher,
		Checkout:         checkout,
		ErrorHandler:     errorHandler,
	}
}

func (p ServiceParams) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p ServiceParams) skipLimits() subscription.SkipLimits {
	return subscription.SkipLimits{
		MaxSuccessive: p.Config.Subscription.MaximumSuccessiveSkips,
		MaxTotal:      p.Config.Subscription.MaximumTotalSkips,
	}
}
