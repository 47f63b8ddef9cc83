package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

type Config struct {
	cfg     *sarama.Config
	brokers []string
	topics  []string
	group   string
}

type ConfigOpts func(*Config)

func WithRetry(maxRetries int, backoff time.Duration) ConfigOpts {
	return func(c *Config) {
		c.cfg.Producer.Retry.Max = maxRetries
		c.cfg.Producer.Retry.Backoff = backoff
		c.cfg.Consumer.Retry.Backoff = backoff
	}
}

func WithBrokers(brokers ...string) ConfigOpts {
	return func(c *Config) {
		c.brokers = brokers
	}
}

func WithTopics(topics ...string) ConfigOpts {
	return func(c *Config) {
		c.topics = topics
	}
}

func WithConsumerGroup(group string) ConfigOpts {
	return func(c *Config) {
		c.group = group
	}
}

// WithClientID overrides the client id. An empty id keeps the default.
func WithClientID(id string) ConfigOpts {
	return func(c *Config) {
		if id != "" {
			c.cfg.ClientID = id
		}
	}
}

// WithConsumeNewest skips triggers published while no consumer was running.
func WithConsumeNewest() ConfigOpts {
	return func(c *Config) {
		c.cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
}

func NewConfig(opts ...ConfigOpts) *Config {
	s := sarama.NewConfig()
	s.Version = sarama.V2_8_0_0
	s.ClientID = "storyindexer"
	s.Producer.RequiredAcks = sarama.WaitForAll
	s.Producer.Return.Successes = true
	s.Producer.Return.Errors = true
	s.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg := &Config{
		cfg:   s,
		group: "storyindexer",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) GetTopics() []string {
	return c.topics
}

func (c *Config) GetBrokers() []string {
	return c.brokers
}

func (c *Config) GetGroup() string {
	return c.group
}

func (c *Config) GetConfig() *sarama.Config {
	return c.cfg
}
