package testutil

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds all in-memory repositories used by service tests
type Stores struct {
	SubscriptionRepo *InMemorySubscriptionStore
	InstallmentRepo  *InMemoryInstallmentStore
	EventRepo        *InMemoryEventStore
	PurchasableRepo  *InMemoryPurchasableStore
}

// BaseServiceTestSuite wires in-memory collaborators for service tests
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *InMemoryClient
	logger    *logger.Logger
	config    *config.Configuration
	publisher *InMemoryPublisher
	checkout  *MockCheckout
	now       time.Time
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupConfig()
	s.setupLogger()
	s.setupStores()
	s.db = NewInMemoryClient()
	s.publisher = NewInMemoryPublisher()
	s.checkout = NewMockCheckout()
	s.now = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
}

func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.SubscriptionRepo.Clear()
	s.stores.InstallmentRepo.Clear()
	s.stores.EventRepo.Clear()
	s.stores.PurchasableRepo.Clear()
	s.publisher.Clear()
	s.checkout.Reset()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = types.SetRequestID(context.Background(), types.GenerateUUID())
	s.ctx = types.SetUserID(s.ctx, "user_test")
}

func (s *BaseServiceTestSuite) setupConfig() {
	s.config = config.GetDefaultConfig()
	s.config.Logging.Level = types.LogLevelDebug
}

func (s *BaseServiceTestSuite) setupLogger() {
	var err error
	s.logger, err = logger.NewLogger(s.config)
	s.Require().NoError(err)
}

func (s *BaseServiceTestSuite) setupStores() {
	installments := NewInMemoryInstallmentStore()
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(installments),
		InstallmentRepo:  installments,
		EventRepo:        NewInMemoryEventStore(),
		PurchasableRepo:  NewInMemoryPurchasableStore(),
	}
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetDB() *InMemoryClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisher {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetCheckout() *MockCheckout {
	return s.checkout
}

// GetNow is the fixed clock reading services under test observe
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// SetNow moves the fixed clock
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now
}

// Clock returns a function reading the suite clock, suitable for service params
func (s *BaseServiceTestSuite) Clock() func() time.Time {
	return func() time.Time { return s.now }
}
