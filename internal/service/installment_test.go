package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type InstallmentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InstallmentService
}

func TestInstallmentService(t *testing.T) {
	suite.Run(t, new(InstallmentServiceSuite))
}

func (s *InstallmentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	seedPurchasables(&s.BaseServiceTestSuite)
	s.setupService(nil)
}

func (s *InstallmentServiceSuite) setupService(handler ErrorHandler) {
	s.service = NewInstallmentService(newTestParams(&s.BaseServiceTestSuite, handler))
}

func (s *InstallmentServiceSuite) getSubscription(id string) *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return sub
}

func (s *InstallmentServiceSuite) installmentsOf(id string) []*installment.Installment {
	insts, err := s.service.ListInstallments(s.GetContext(), id, nil)
	s.Require().NoError(err)
	return insts
}

func (s *InstallmentServiceSuite) TestProcessSubscription_NotDue() {
	storeSubscription(&s.BaseServiceTestSuite, "sub_future", types.SubscriptionStateActive, daysFrom(s.GetNow(), 2))

	resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_future")
	s.Require().NoError(err)
	s.False(resp.Processed)
	s.Nil(resp.Installment)
	s.Empty(s.GetCheckout().Processed())
	s.Empty(s.installmentsOf("sub_future"))
}

func (s *InstallmentServiceSuite) TestProcessSubscription_PendingDue() {
	storeSubscription(&s.BaseServiceTestSuite, "sub_pending", types.SubscriptionStatePending, daysFrom(s.GetNow(), -1),
		monthlyLineItem("subli_coffee", testCoffeeID),
		monthlyLineItem("subli_filter", testFilterID),
	)

	resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_pending")
	s.Require().NoError(err)
	s.True(resp.Processed)
	s.Equal(types.ProcessingStateSuccess, resp.ProcessingState)

	s.Require().NotNil(resp.Installment)
	s.Equal(s.GetNow(), resp.Installment.CreatedAt)
	s.ElementsMatch(
		[]string{"subli_coffee", "subli_filter"},
		lo.Map(resp.Installment.LineItems, func(li *installment.LineItem, _ int) string { return li.SubscriptionLineItemID }),
	)

	sub := s.getSubscription("sub_pending")
	s.Equal(types.SubscriptionStateActive, sub.State)
	s.Require().NotNil(sub.ActionableDate)
	s.Equal(s.GetNow().AddDate(0, 1, 0), *sub.ActionableDate)
	s.Equal(1, s.GetStores().EventRepo.CountByType("sub_pending", types.EventTypeSubscriptionActivated))

	s.Len(s.GetCheckout().Processed(), 1)

	stored := s.installmentsOf("sub_pending")
	s.Require().Len(stored, 1)
	s.Require().Len(stored[0].Details, 1)
	s.True(stored[0].Details[0].Success)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_SecondTriggerIsNoop() {
	storeSubscription(&s.BaseServiceTestSuite, "sub_active", types.SubscriptionStateActive, daysFrom(s.GetNow(), 0))

	first, err := s.service.ProcessSubscription(s.GetContext(), "sub_active")
	s.Require().NoError(err)
	s.True(first.Processed)

	second, err := s.service.ProcessSubscription(s.GetContext(), "sub_active")
	s.Require().NoError(err)
	s.False(second.Processed)

	s.Len(s.installmentsOf("sub_active"), 1)
	s.Equal(0, s.GetStores().EventRepo.CountByType("sub_active", types.EventTypeSubscriptionActivated))
}

func (s *InstallmentServiceSuite) TestProcessSubscription_ConcurrentTriggersCreateOneInstallment() {
	storeSubscription(&s.BaseServiceTestSuite, "sub_race", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_race")
			if err == nil {
				results[i] = resp.Processed
			}
		}()
	}
	wg.Wait()

	s.Equal(1, lo.Count(results, true))
	s.Len(s.installmentsOf("sub_race"), 1)
	s.Len(s.GetCheckout().Processed(), 1)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_CheckoutOutcomes() {
	s.Run("declined outcome is recorded as failed", func() {
		storeSubscription(&s.BaseServiceTestSuite, "sub_declined", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
		s.GetCheckout().RespondWith(&installment.Outcome{Success: false, Message: "insufficient funds"})

		resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_declined")
		s.Require().NoError(err)
		s.Equal(types.ProcessingStateFailed, resp.ProcessingState)

		stored := s.installmentsOf("sub_declined")
		s.Require().Len(stored, 1)
		s.Equal("insufficient funds", stored[0].Details[0].Message)
	})

	s.Run("checkout error is swallowed by default", func() {
		storeSubscription(&s.BaseServiceTestSuite, "sub_error", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
		s.GetCheckout().FailWith(errors.New("gateway timeout"))

		resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_error")
		s.Require().NoError(err)
		s.True(resp.Processed)
		s.Equal(types.ProcessingStateFailed, resp.ProcessingState)

		stored := s.installmentsOf("sub_error")
		s.Require().Len(stored, 1)
		s.Equal("gateway timeout", stored[0].Details[0].Message)
		s.False(stored[0].Details[0].Success)
	})
}

func (s *InstallmentServiceSuite) TestProcessSubscription_RaiseHandlerPropagatesAfterRecording() {
	s.setupService(raiseErrorHandler{})
	storeSubscription(&s.BaseServiceTestSuite, "sub_raise", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	s.GetCheckout().FailWith(errors.New("gateway timeout"))

	resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_raise")
	s.Require().Error(err)
	s.True(ierr.IsSystem(err))
	s.Contains(err.Error(), "gateway timeout")
	s.Require().NotNil(resp)
	s.Equal(types.ProcessingStateFailed, resp.ProcessingState)

	stored := s.installmentsOf("sub_raise")
	s.Require().Len(stored, 1)
	s.Require().Len(stored[0].Details, 1)
	s.False(stored[0].Details[0].Success)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_CustomHandler() {
	var handled []*ProcessError
	s.setupService(ErrorHandlerFunc(func(_ context.Context, perr *ProcessError) error {
		handled = append(handled, perr)
		return nil
	}))
	storeSubscription(&s.BaseServiceTestSuite, "sub_custom", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	s.GetCheckout().FailWith(errors.New("gateway timeout"))

	resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_custom")
	s.Require().NoError(err)

	s.Require().Len(handled, 1)
	s.Equal("sub_custom", handled[0].SubscriptionID)
	s.Equal(resp.Installment.ID, handled[0].InstallmentID)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_SuccessResetsSuccessiveSkips() {
	sub := storeSubscription(&s.BaseServiceTestSuite, "sub_skipped", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	sub.SkipCount = 2
	sub.SuccessiveSkipCount = 1
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	_, err := s.service.ProcessSubscription(s.GetContext(), "sub_skipped")
	s.Require().NoError(err)

	got := s.getSubscription("sub_skipped")
	s.Equal(0, got.SuccessiveSkipCount)
	s.Equal(2, got.SkipCount)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_FailureKeepsSuccessiveSkips() {
	sub := storeSubscription(&s.BaseServiceTestSuite, "sub_skipped", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	sub.SkipCount = 1
	sub.SuccessiveSkipCount = 1
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))
	s.GetCheckout().FailWith(errors.New("card declined"))

	_, err := s.service.ProcessSubscription(s.GetContext(), "sub_skipped")
	s.Require().NoError(err)

	s.Equal(1, s.getSubscription("sub_skipped").SuccessiveSkipCount)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_PastEndDateDeactivates() {
	sub := storeSubscription(&s.BaseServiceTestSuite, "sub_ending", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	sub.EndDate = daysFrom(s.GetNow(), -2)
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	resp, err := s.service.ProcessSubscription(s.GetContext(), "sub_ending")
	s.Require().NoError(err)
	s.False(resp.Processed)

	got := s.getSubscription("sub_ending")
	s.Equal(types.SubscriptionStateInactive, got.State)
	s.Nil(got.ActionableDate)
	s.Equal(1, s.GetStores().EventRepo.CountByType("sub_ending", types.EventTypeSubscriptionEnded))
	s.Empty(s.installmentsOf("sub_ending"))
	s.Empty(s.GetCheckout().Processed())
}

func (s *InstallmentServiceSuite) TestProcessSubscription_MaxInstallments() {
	capped := monthlyLineItem("subli_capped", testFilterID)
	capped.MaxInstallments = lo.ToPtr(1)
	storeSubscription(&s.BaseServiceTestSuite, "sub_capped", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1),
		monthlyLineItem("subli_open", testCoffeeID),
		capped,
	)

	first, err := s.service.ProcessSubscription(s.GetContext(), "sub_capped")
	s.Require().NoError(err)
	s.Len(first.Installment.LineItems, 2)

	s.SetNow(*s.getSubscription("sub_capped").ActionableDate)
	second, err := s.service.ProcessSubscription(s.GetContext(), "sub_capped")
	s.Require().NoError(err)
	s.Require().Len(second.Installment.LineItems, 1)
	s.Equal("subli_open", second.Installment.LineItems[0].SubscriptionLineItemID)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_AllCappedEndsSubscription() {
	capped := monthlyLineItem("subli_once", testCoffeeID)
	capped.MaxInstallments = lo.ToPtr(1)
	storeSubscription(&s.BaseServiceTestSuite, "sub_once", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1), capped)

	first, err := s.service.ProcessSubscription(s.GetContext(), "sub_once")
	s.Require().NoError(err)
	s.True(first.Processed)

	s.SetNow(*s.getSubscription("sub_once").ActionableDate)
	second, err := s.service.ProcessSubscription(s.GetContext(), "sub_once")
	s.Require().NoError(err)
	s.False(second.Processed)

	got := s.getSubscription("sub_once")
	s.Equal(types.SubscriptionStateInactive, got.State)
	s.Require().NotNil(got.EndDate)
	s.Equal(s.GetNow(), *got.EndDate)
	s.Len(s.installmentsOf("sub_once"), 1)
}

func (s *InstallmentServiceSuite) TestProcessSubscription_UsesIntervalOverride() {
	sub := storeSubscription(&s.BaseServiceTestSuite, "sub_override", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	sub.IntervalLength = lo.ToPtr(2)
	sub.IntervalUnits = lo.ToPtr(types.IntervalUnitWeek)
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	_, err := s.service.ProcessSubscription(s.GetContext(), "sub_override")
	s.Require().NoError(err)

	got := s.getSubscription("sub_override")
	s.Require().NotNil(got.ActionableDate)
	s.Equal(s.GetNow().AddDate(0, 0, 14), *got.ActionableDate)
}

func (s *InstallmentServiceSuite) TestProcessActionable() {
	now := s.GetNow()
	storeSubscription(&s.BaseServiceTestSuite, "sub_a", types.SubscriptionStatePending, daysFrom(now, -1))
	storeSubscription(&s.BaseServiceTestSuite, "sub_b", types.SubscriptionStateActive, daysFrom(now, -2))
	storeSubscription(&s.BaseServiceTestSuite, "sub_c", types.SubscriptionStateActive, daysFrom(now, 1))
	storeSubscription(&s.BaseServiceTestSuite, "sub_d", types.SubscriptionStateCanceled, daysFrom(now, -1))

	resp, err := s.service.ProcessActionable(s.GetContext())
	s.Require().NoError(err)
	s.Equal(2, resp.Selected)
	s.Equal(2, resp.Processed)
	s.Equal(0, resp.Failed)

	s.ElementsMatch([]string{"sub_a", "sub_b"}, lo.Map(s.GetCheckout().Processed(), func(inst *installment.Installment, _ int) string {
		return inst.SubscriptionID
	}))
	s.Empty(s.installmentsOf("sub_c"))
	s.Empty(s.installmentsOf("sub_d"))

	again, err := s.service.ProcessActionable(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, again.Selected)
}

func (s *InstallmentServiceSuite) TestProcessActionable_PagesThroughLargeBatches() {
	s.GetConfig().Processor.BatchSize = 2
	s.GetConfig().Processor.Concurrency = 3
	s.setupService(nil)

	for i := 0; i < 7; i++ {
		storeSubscription(&s.BaseServiceTestSuite, fmt.Sprintf("sub_%d", i), types.SubscriptionStateActive, daysFrom(s.GetNow(), -i-1))
	}

	resp, err := s.service.ProcessActionable(s.GetContext())
	s.Require().NoError(err)
	s.Equal(7, resp.Selected)
	s.Equal(7, resp.Processed)
	s.Len(s.GetCheckout().Processed(), 7)
}

func (s *InstallmentServiceSuite) TestProcessActionable_AggregatesRaisedErrors() {
	s.setupService(raiseErrorHandler{})
	storeSubscription(&s.BaseServiceTestSuite, "sub_ok", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	storeSubscription(&s.BaseServiceTestSuite, "sub_bad", types.SubscriptionStateActive, daysFrom(s.GetNow(), -1))
	s.GetCheckout().FailFor("sub_bad", errors.New("card declined"))

	resp, err := s.service.ProcessActionable(s.GetContext())
	s.Require().Error(err)
	s.Contains(err.Error(), "card declined")
	s.Equal(2, resp.Selected)
	s.Equal(1, resp.Processed)
	s.Equal(1, resp.Failed)

	s.Len(s.installmentsOf("sub_ok"), 1)
	s.Len(s.installmentsOf("sub_bad"), 1)
}

func (s *InstallmentServiceSuite) TestListInstallments_UnknownSubscription() {
	_, err := s.service.ListInstallments(s.GetContext(), "sub_missing", nil)
	s.True(ierr.IsNotFound(err))
}
