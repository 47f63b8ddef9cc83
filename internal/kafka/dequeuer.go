package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/BRO3886/story-indexer/internal/queue"
	"github.com/IBM/sarama"
)

type KafkaDequeuer struct {
	consumerGroup sarama.ConsumerGroup
	cfg           *Config
	logger        *slog.Logger
	closeOnce     sync.Once
}

func NewDequeuer(ctx context.Context, c *Config, logger *slog.Logger) (queue.Dequeuer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	consumerGroup, err := sarama.NewConsumerGroup(c.GetBrokers(), c.GetGroup(), c.GetConfig())
	if err != nil {
		return nil, err
	}
	return &KafkaDequeuer{
		consumerGroup: consumerGroup,
		cfg:           c,
		logger:        logger.With("component", "kafka", "group", c.GetGroup()),
	}, nil
}

// Dequeue joins the consumer group and keeps consuming across rebalances
// until ctx is cancelled.
func (k *KafkaDequeuer) Dequeue(ctx context.Context, topic string, handler queue.MessageHandler) error {
	h := NewConsumerGroupHandler(handler, k.logger)
	for {
		if err := k.consumerGroup.Consume(ctx, []string{topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		k.logger.Info("consumer group rebalanced", "topic", topic)
	}
}

func (k *KafkaDequeuer) Close() error {
	var err error
	k.closeOnce.Do(func() {
		err = k.consumerGroup.Close()
	})
	return err
}
