package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/purchasable"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/suite"
)

type CommandsSuite struct {
	testutil.BaseServiceTestSuite
	app *app
	out *bytes.Buffer
}

func TestCommands(t *testing.T) {
	suite.Run(t, new(CommandsSuite))
}

func (s *CommandsSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.Require().NoError(s.GetStores().PurchasableRepo.Create(s.GetContext(), &purchasable.Purchasable{
		ID:       "variant_coffee",
		Name:     "House Blend 1kg",
		Price:    decimal.RequireFromString("24.50"),
		Currency: "usd",
	}))

	params := service.ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		SubscriptionRepo: s.GetStores().SubscriptionRepo,
		InstallmentRepo:  s.GetStores().InstallmentRepo,
		EventRepo:        s.GetStores().EventRepo,
		PurchasableRepo:  s.GetStores().PurchasableRepo,
		EventPublisher:   s.GetPublisher(),
		Checkout:         s.GetCheckout(),
		ErrorHandler:     service.NewErrorHandler(s.GetConfig(), s.GetLogger(), nil),
		Now:              s.Clock(),
	}

	s.out = &bytes.Buffer{}
	s.app = &app{
		subscriptions: service.NewSubscriptionService(params),
		installments:  service.NewInstallmentService(params),
		out:           s.out,
	}
}

func (s *CommandsSuite) current() *app {
	return s.app
}

// execute runs cmd with args against the suite context and returns its output
func (s *CommandsSuite) execute(cmd *cobra.Command, stdin string, args ...string) (string, error) {
	s.out.Reset()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(s.GetContext())
	return s.out.String(), err
}

func (s *CommandsSuite) createSubscription() *dto.SubscriptionResponse {
	out, err := s.execute(createCommand(s.current), `{
		"user_id": "user_1",
		"line_items": [
			{"subscribable_id": "variant_coffee", "quantity": 2, "interval_length": 1, "interval_units": "month"}
		]
	}`)
	s.Require().NoError(err)

	var resp dto.SubscriptionResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &resp))
	return &resp
}

func (s *CommandsSuite) TestCreateAndGet() {
	created := s.createSubscription()
	s.Equal(types.SubscriptionStatePending, created.State)
	s.Len(created.LineItems, 1)

	out, err := s.execute(getCommand(s.current), "", created.ID)
	s.Require().NoError(err)

	var got dto.SubscriptionResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &got))
	s.Equal(created.ID, got.ID)
	s.Equal(types.ProcessingStatePending, got.ProcessingState)
}

func (s *CommandsSuite) TestCreate_InvalidJSON() {
	_, err := s.execute(createCommand(s.current), "{")
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *CommandsSuite) TestProcessThenCancel() {
	created := s.createSubscription()
	s.SetNow(s.GetNow().AddDate(0, 1, 1))

	out, err := s.execute(processCommand(s.current), "", created.ID)
	s.Require().NoError(err)
	var processed dto.ProcessSubscriptionResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &processed))
	s.True(processed.Processed)
	s.Equal(types.ProcessingStateSuccess, processed.ProcessingState)

	out, err = s.execute(installmentsCommand(s.current), "", created.ID)
	s.Require().NoError(err)
	s.Contains(out, processed.Installment.ID)

	out, err = s.execute(stateCommand(s.current), "", created.ID)
	s.Require().NoError(err)
	s.Contains(out, `"processing_state": "success"`)

	cancel := transitionCommand(s.current, "cancel", "", func(a *app) func(ctx context.Context, id string) (bool, error) {
		return a.subscriptions.Cancel
	})
	out, err = s.execute(cancel, "", created.ID)
	s.Require().NoError(err)
	s.Contains(out, `"applied": true`)

	out, err = s.execute(getCommand(s.current), "", created.ID)
	s.Require().NoError(err)
	s.Contains(out, `"state": "pending_cancellation"`)
}

func (s *CommandsSuite) TestSkip_RefusedWhilePending() {
	created := s.createSubscription()

	out, err := s.execute(skipCommand(s.current), "", created.ID)
	s.Require().NoError(err)

	var resp dto.SkipSubscriptionResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &resp))
	s.False(resp.Skipped)
	s.NotEmpty(resp.Errors)
}

func (s *CommandsSuite) TestSetEndDate() {
	created := s.createSubscription()

	_, err := s.execute(endDateCommand(s.current), "", created.ID)
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.execute(endDateCommand(s.current), "", created.ID, "--date", "next week")
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))

	out, err := s.execute(endDateCommand(s.current), "", created.ID, "--date", "2024-06-01T00:00:00Z")
	s.Require().NoError(err)
	s.Contains(out, `"end_date": "2024-06-01T00:00:00Z"`)

	out, err = s.execute(endDateCommand(s.current), "", created.ID, "--clear")
	s.Require().NoError(err)
	s.Contains(out, `"end_date": null`)
}

func (s *CommandsSuite) TestUpdateLineItem_OnlyChangedFlags() {
	created := s.createSubscription()
	lineItemID := created.LineItems[0].ID

	out, err := s.execute(updateLineItemCommand(s.current), "", lineItemID, "--quantity", "5")
	s.Require().NoError(err)

	var resp dto.LineItemResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &resp))
	s.Equal(5, resp.Quantity)
	s.Equal(1, resp.IntervalLength)
}

func (s *CommandsSuite) TestListings() {
	created := s.createSubscription()
	s.SetNow(s.GetNow().AddDate(0, 1, 1))

	out, err := s.execute(actionableCommand(s.current), "", "--limit", "10")
	s.Require().NoError(err)
	s.Contains(out, created.ID)

	_, err = s.execute(byStateCommand(s.current), "", "bogus")
	s.Require().Error(err)
	s.True(ierr.IsInvalidArgument(err))

	out, err = s.execute(eventsCommand(s.current), "", created.ID)
	s.Require().NoError(err)
	s.Contains(out, string(types.EventTypeSubscriptionCreated))

	out, err = s.execute(processActionableCommand(s.current), "")
	s.Require().NoError(err)
	s.Contains(out, `"processed": 1`)
}
