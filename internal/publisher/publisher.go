package publisher

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/events"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
	"github.com/flexprice/recurring/internal/pubsub/kafka"
	"github.com/flexprice/recurring/internal/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	metadataEventType      = "event_type"
	metadataSubscriptionID = "subscription_id"
)

type eventPublisher struct {
	pubSub pubsub.PubSub
	topic  string
	logger *logger.Logger
}

// NewEventPublisher publishes subscription events to the configured topic
func NewEventPublisher(cfg *config.Configuration, pubSub pubsub.PubSub, logger *logger.Logger) events.Publisher {
	return &eventPublisher{
		pubSub: pubSub,
		topic:  cfg.Kafka.Topic,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode subscription event").
			Mark(ierr.ErrInternal)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set(metadataEventType, string(event.Type))
	msg.Metadata.Set(metadataSubscriptionID, event.SubscriptionID)
	msg.Metadata.Set(kafka.PartitionKeyMetadata, event.SubscriptionID)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}

	if err := p.pubSub.Publish(ctx, p.topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish subscription event").
			WithReportableDetails(map[string]any{
				"event_id":        event.ID,
				"subscription_id": event.SubscriptionID,
				"topic":           p.topic,
			}).
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("published subscription event",
		"event_id", event.ID,
		"event_type", event.Type,
		"subscription_id", event.SubscriptionID,
	)
	return nil
}

// Decode reads an event back from a published message
func Decode(msg *message.Message) (*events.Event, error) {
	var event events.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Message %s is not a subscription event", msg.UUID).
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}
