package kafka

import (
	"log/slog"

	"github.com/BRO3886/story-indexer/internal/queue"
	"github.com/IBM/sarama"
)

type ConsumerGroupHandler struct {
	handler queue.MessageHandler
	logger  *slog.Logger
}

func NewConsumerGroupHandler(handler queue.MessageHandler, logger *slog.Logger) sarama.ConsumerGroupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerGroupHandler{
		handler: handler,
		logger:  logger,
	}
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler. A failing handler is
// logged and the message is still marked: a trigger is not worth replaying.
func (c *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	c.logger.Info("consuming claim", "topic", claim.Topic(), "partition", claim.Partition())
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked", "panic", r)
		}
	}()

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handler(session.Context(), message.Value); err != nil {
				c.logger.Error("error handling message", "topic", message.Topic, "offset", message.Offset, "error", err)
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}
