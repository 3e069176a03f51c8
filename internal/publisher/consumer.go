package publisher

import (
	"context"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/events"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
)

// EventHandler receives decoded subscription events
type EventHandler func(ctx context.Context, event *events.Event) error

// Consume reads the event topic until ctx is done. Messages that fail to decode are
// acked and dropped; handler failures are nacked for redelivery.
func Consume(ctx context.Context, cfg *config.Configuration, pubSub pubsub.PubSub, logger *logger.Logger, handler EventHandler) error {
	messages, err := pubSub.Subscribe(ctx, cfg.Kafka.Topic)
	if err != nil {
		return err
	}

	for msg := range messages {
		event, err := Decode(msg)
		if err != nil {
			logger.Warnw("dropping undecodable message", "message_id", msg.UUID, "error", err)
			msg.Ack()
			continue
		}

		if err := handler(msg.Context(), event); err != nil {
			logger.Errorw("failed to handle subscription event",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err,
			)
			msg.Nack()
			continue
		}
		msg.Ack()
	}
	return nil
}
