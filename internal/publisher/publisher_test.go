package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/events"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
	"github.com/flexprice/recurring/internal/pubsub/memory"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockPubSub struct {
	mock.Mock
}

func (m *MockPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	args := m.Called(ctx, topic, msg)
	return args.Error(0)
}

func (m *MockPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	args := m.Called(ctx, topic)
	return args.Get(0).(<-chan *message.Message), args.Error(1)
}

func (m *MockPubSub) Close() error {
	return m.Called().Error(0)
}

type PublisherSuite struct {
	suite.Suite
	cfg    *config.Configuration
	logger *logger.Logger
	pubSub pubsub.PubSub
}

func TestPublisher(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	log, err := logger.NewLogger(s.cfg)
	s.Require().NoError(err)
	s.logger = log
	s.pubSub = memory.NewPubSub(log)
}

func (s *PublisherSuite) TearDownTest() {
	s.NoError(s.pubSub.Close())
}

func testEvent() *events.Event {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	return events.NewSubscriptionEvent(context.Background(), "sub_1", types.EventTypeSubscriptionSkipped, map[string]any{"next_actionable_date": now.AddDate(0, 1, 0)}, now)
}

func (s *PublisherSuite) TestPublish_RoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := s.pubSub.Subscribe(ctx, s.cfg.Kafka.Topic)
	s.Require().NoError(err)

	event := testEvent()
	s.Require().NoError(NewEventPublisher(s.cfg, s.pubSub, s.logger).Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		s.Equal(event.ID, msg.UUID)
		s.Equal(string(types.EventTypeSubscriptionSkipped), msg.Metadata.Get(metadataEventType))
		s.Equal("sub_1", msg.Metadata.Get("partition_key"))

		decoded, err := Decode(msg)
		s.Require().NoError(err)
		s.Equal(event.ID, decoded.ID)
		s.Equal(event.Type, decoded.Type)
		s.Equal("sub_1", decoded.Details["subscription_id"])
	case <-ctx.Done():
		s.Fail("timed out waiting for event")
	}
}

func (s *PublisherSuite) TestPublish_TransportFailure() {
	mockPubSub := new(MockPubSub)
	mockPubSub.On("Publish", mock.Anything, s.cfg.Kafka.Topic, mock.Anything).Return(assert.AnError).Once()

	err := NewEventPublisher(s.cfg, mockPubSub, s.logger).Publish(context.Background(), testEvent())
	s.Require().Error(err)
	s.ErrorIs(err, assert.AnError)
	mockPubSub.AssertExpectations(s.T())
}

func (s *PublisherSuite) TestConsume() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, s.cfg, s.pubSub, s.logger, func(_ context.Context, e *events.Event) error {
			select {
			case received <- e:
			default:
			}
			return nil
		})
	}()

	// subscription is registered asynchronously; republish until it is seen
	event := testEvent()
	pub := NewEventPublisher(s.cfg, s.pubSub, s.logger)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)

	for {
		select {
		case got := <-received:
			s.Equal(event.ID, got.ID)
			cancel()
			s.NoError(<-done)
			return
		case <-ticker.C:
			s.Require().NoError(pub.Publish(ctx, event))
		case <-timeout:
			s.FailNow("consumer never received the event")
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(message.NewMessage("msg_1", []byte("not json")))
	require.Error(t, err)
}
