package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
)

// PartitionKeyMetadata names the message metadata used as the kafka partition key.
// Messages of one subscription share a partition and keep their order.
const PartitionKeyMetadata = "partition_key"

type PubSub struct {
	publisher  *wmkafka.Publisher
	subscriber *wmkafka.Subscriber
	logger     *logger.Logger
}

// NewPubSub connects a kafka publisher and a consumer-group subscriber
func NewPubSub(cfg *config.Configuration, logger *logger.Logger, consumerGroup string) (pubsub.PubSub, error) {
	saramaConfig := GetSaramaConfig(cfg)
	marshaler := wmkafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		return msg.Metadata.Get(PartitionKeyMetadata), nil
	})

	publisher, err := wmkafka.NewPublisher(wmkafka.PublisherConfig{
		Brokers:               cfg.Kafka.Brokers,
		Marshaler:             marshaler,
		OverwriteSaramaConfig: saramaConfig,
	}, logger.GetWatermillLogger())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect kafka publisher").
			WithReportableDetails(map[string]any{"brokers": cfg.Kafka.Brokers}).
			Mark(ierr.ErrSystem)
	}

	subscriber, err := wmkafka.NewSubscriber(wmkafka.SubscriberConfig{
		Brokers:               cfg.Kafka.Brokers,
		Unmarshaler:           marshaler,
		OverwriteSaramaConfig: saramaConfig,
		ConsumerGroup:         consumerGroup,
	}, logger.GetWatermillLogger())
	if err != nil {
		_ = publisher.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to connect kafka subscriber").
			WithReportableDetails(map[string]any{"brokers": cfg.Kafka.Brokers}).
			Mark(ierr.ErrSystem)
	}

	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	if err := p.publisher.Close(); err != nil {
		p.logger.Errorw("failed to close kafka publisher", "error", err)
	}
	return p.subscriber.Close()
}
