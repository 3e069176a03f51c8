package activities

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/installment"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
)

type MockInstallmentService struct {
	mock.Mock
}

func (m *MockInstallmentService) ProcessSubscription(ctx context.Context, id string) (*dto.ProcessSubscriptionResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ProcessSubscriptionResponse), args.Error(1)
}

func (m *MockInstallmentService) ProcessActionable(ctx context.Context) (*dto.ProcessActionableResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(*dto.ProcessActionableResponse), args.Error(1)
}

func (m *MockInstallmentService) ListActionableIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockInstallmentService) ListInstallments(ctx context.Context, subscriptionID string, filter *types.QueryFilter) ([]*installment.Installment, error) {
	args := m.Called(ctx, subscriptionID, filter)
	return args.Get(0).([]*installment.Installment), args.Error(1)
}

type SubscriptionActivitiesSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env     *testsuite.TestActivityEnvironment
	service *MockInstallmentService
}

func TestSubscriptionActivities(t *testing.T) {
	suite.Run(t, new(SubscriptionActivitiesSuite))
}

func (s *SubscriptionActivitiesSuite) SetupTest() {
	s.service = new(MockInstallmentService)
	s.env = s.NewTestActivityEnvironment()
	s.env.RegisterActivity(NewSubscriptionActivities(s.service))
}

func (s *SubscriptionActivitiesSuite) TestFetchActionableSubscriptions() {
	s.service.On("ListActionableIDs", mock.Anything).Return([]string{"sub_b", "sub_a"}, nil).Once()

	val, err := s.env.ExecuteActivity(ActivityFetchActionableSubscriptions)
	s.Require().NoError(err)

	var out models.FetchActionableSubscriptionsOutput
	s.Require().NoError(val.Get(&out))
	s.Equal([]string{"sub_b", "sub_a"}, out.SubscriptionIDs)
	s.service.AssertExpectations(s.T())
}

func (s *SubscriptionActivitiesSuite) TestProcessSubscription() {
	inst := installment.New("sub_a", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	s.service.On("ProcessSubscription", mock.MatchedBy(func(ctx context.Context) bool {
		return types.GetUserID(ctx) == "user_1"
	}), "sub_a").Return(&dto.ProcessSubscriptionResponse{
		SubscriptionID:  "sub_a",
		Processed:       true,
		Installment:     inst,
		ProcessingState: types.ProcessingStateFailed,
	}, nil).Once()

	val, err := s.env.ExecuteActivity(ActivityProcessSubscription, models.ProcessSubscriptionWorkflowInput{
		SubscriptionID: "sub_a",
		UserID:         "user_1",
	})
	s.Require().NoError(err)

	var out models.ProcessSubscriptionWorkflowResult
	s.Require().NoError(val.Get(&out))
	s.True(out.Processed)
	s.Equal(inst.ID, out.InstallmentID)
	s.Equal(types.ProcessingStateFailed, out.ProcessingState)
	s.service.AssertExpectations(s.T())
}

func (s *SubscriptionActivitiesSuite) TestProcessSubscription_NotDue() {
	s.service.On("ProcessSubscription", mock.Anything, "sub_a").Return(&dto.ProcessSubscriptionResponse{
		SubscriptionID: "sub_a",
	}, nil).Once()

	val, err := s.env.ExecuteActivity(ActivityProcessSubscription, models.ProcessSubscriptionWorkflowInput{SubscriptionID: "sub_a"})
	s.Require().NoError(err)

	var out models.ProcessSubscriptionWorkflowResult
	s.Require().NoError(val.Get(&out))
	s.False(out.Processed)
	s.Empty(out.InstallmentID)
}

func (s *SubscriptionActivitiesSuite) TestProcessSubscription_Error() {
	s.service.On("ProcessSubscription", mock.Anything, "sub_a").Return(nil, context.DeadlineExceeded).Once()

	_, err := s.env.ExecuteActivity(ActivityProcessSubscription, models.ProcessSubscriptionWorkflowInput{SubscriptionID: "sub_a"})
	s.Error(err)
}

func (s *SubscriptionActivitiesSuite) TestProcessSubscription_RequiresID() {
	_, err := s.env.ExecuteActivity(ActivityProcessSubscription, models.ProcessSubscriptionWorkflowInput{})
	s.Error(err)
	s.service.AssertNotCalled(s.T(), "ProcessSubscription", mock.Anything, mock.Anything)
}
