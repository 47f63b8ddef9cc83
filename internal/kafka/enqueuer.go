package kafka

import (
	"context"
	"log/slog"

	"github.com/BRO3886/story-indexer/internal/queue"
	"github.com/IBM/sarama"
)

type KafkaEnqueuer struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
}

func NewEnqueuer(ctx context.Context, c *Config, logger *slog.Logger) (queue.Enqueuer, error) {
	producer, err := sarama.NewSyncProducer(c.GetBrokers(), c.GetConfig())
	if err != nil {
		return nil, err
	}
	return newEnqueuer(producer, logger), nil
}

func newEnqueuer(producer sarama.SyncProducer, logger *slog.Logger) *KafkaEnqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaEnqueuer{
		producer: producer,
		logger:   logger.With("component", "kafka"),
	}
}

func (k *KafkaEnqueuer) Enqueue(ctx context.Context, topic string, key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	k.logger.Debug("message sent", "topic", topic, "partition", partition, "offset", offset)
	return nil
}

func (k *KafkaEnqueuer) Close() error {
	return k.producer.Close()
}
