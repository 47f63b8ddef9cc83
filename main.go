package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BRO3886/story-indexer/internal/bleve"
	"github.com/BRO3886/story-indexer/internal/config"
	"github.com/BRO3886/story-indexer/internal/indexer"
	"github.com/BRO3886/story-indexer/internal/jsonl"
	"github.com/BRO3886/story-indexer/internal/kafka"
	"github.com/BRO3886/story-indexer/internal/logging"
	"github.com/BRO3886/story-indexer/internal/mongo"
	"github.com/BRO3886/story-indexer/internal/opensearch"
	"github.com/BRO3886/story-indexer/internal/redis"
	"github.com/BRO3886/story-indexer/internal/search"
	"github.com/BRO3886/story-indexer/internal/solr"
	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/transform"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
)

func main() {
	root := &cobra.Command{
		Use:           "storyindexer",
		Short:         "Rebuild the story search index from the story store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				_, err := a.rebuilder.Run(ctx, "manual")
				return err
			})
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the YAML config file")
	root.PersistentFlags().StringVar(&envPath, "env", config.DefaultEnvPath, "path to a .env file")

	root.AddCommand(
		&cobra.Command{
			Use:   "schedule",
			Short: "Rebuild now and then on every schedule.interval",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
					a.rebuilder.Schedule(ctx, a.cfg.Schedule.Interval)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "listen",
			Short: "Rebuild whenever a message arrives on the trigger topic",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), runListener)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("storyindexer failed", "error", err)
		stop()
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	rebuilder *indexer.Rebuilder
	closers   []func()
}

// Swapped in tests.
var (
	openSource = newSource
	openSink   = newSink
)

// withApp loads config, wires every component, runs fn and tears the
// components down again. A bad config is fatal.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

// newApp connects the source, the sink and the optional lock and reporter.
// On error everything opened so far is closed again.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error starting story source: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := src.Close(context.Background()); err != nil {
			logger.Warn("failed to close story source", "error", err)
		}
	})

	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error starting %s sink: %w", cfg.Sink.Backend, err)
	}
	a.closers = append(a.closers, func() {
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close sink", "error", err)
		}
	})

	ic := indexer.Config{
		Source:        src,
		Sink:          sink,
		Filter:        cfg.Source.Filter,
		Transformer:   transform.New(logger, cfg.Transform),
		Logger:        logger,
		LockName:      cfg.Redis.Lock,
		LockTTL:       cfg.Redis.LockTTL,
		AllowEmpty:    cfg.Indexer.AllowEmpty,
		CommitRetries: cfg.Sink.CommitRetries,
		CommitBackoff: cfg.Sink.CommitBackoff,
	}

	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		ic.Lock = redis.NewLock(client)
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ReportTopic != "" {
		enqueuer, err := kafka.NewEnqueuer(ctx, kafkaConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("error starting kafka enqueuer: %w", err)
		}
		a.closers = append(a.closers, func() { _ = enqueuer.Close() })
		ic.Reporter = indexer.NewQueueReporter(enqueuer, cfg.Kafka.ReportTopic)
	}

	a.rebuilder = indexer.New(ic)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func runListener(ctx context.Context, a *app) error {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return errors.New("listen needs kafka.brokers")
	}

	kc := kafkaConfig(a.cfg,
		kafka.WithTopics(a.cfg.Kafka.Trigger.Topic),
		kafka.WithConsumerGroup(a.cfg.Kafka.Trigger.ConsumerGroup),
		kafka.WithConsumeNewest(),
	)
	dequeuer, err := kafka.NewDequeuer(ctx, kc, a.logger)
	if err != nil {
		return fmt.Errorf("error starting kafka dequeuer: %w", err)
	}
	defer dequeuer.Close()

	a.logger.Info("listening for rebuild triggers", "topic", a.cfg.Kafka.Trigger.Topic)
	if err := dequeuer.Dequeue(ctx, a.cfg.Kafka.Trigger.Topic, a.rebuilder.HandleTrigger); err != nil {
		return fmt.Errorf("consume triggers: %w", err)
	}
	return nil
}

func kafkaConfig(cfg *config.Config, opts ...kafka.ConfigOpts) *kafka.Config {
	base := []kafka.ConfigOpts{
		kafka.WithBrokers(cfg.Kafka.Brokers...),
		kafka.WithClientID(cfg.Kafka.ClientID),
		kafka.WithRetry(
			cfg.Kafka.Retry.Max,
			time.Duration(cfg.Kafka.Retry.Backoff)*time.Millisecond,
		),
	}
	return kafka.NewConfig(append(base, opts...)...)
}

func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (source.Source, error) {
	switch cfg.Source.Backend {
	case config.SourceJSONL:
		return jsonl.New(cfg.Source.Path, logger), nil
	default:
		return mongo.New(ctx, mongo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		}, logger)
	}
}

func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (search.Sink, error) {
	switch cfg.Sink.Backend {
	case config.SinkSolr:
		return solr.New(solr.Config{
			Endpoint: cfg.Solr.Endpoint,
			Timeout:  cfg.Solr.Timeout,
		}, logger)
	case config.SinkBleve:
		return bleve.New(cfg.Bleve.Path, logger)
	default:
		return opensearch.New(ctx, opensearch.Config{
			URLs:       cfg.Opensearch.URLs,
			Username:   cfg.Opensearch.Username,
			Password:   cfg.Opensearch.Password,
			MaxRetries: cfg.Opensearch.MaxRetries,
			Insecure:   cfg.Opensearch.Insecure,
			Index:      cfg.Opensearch.Index.Name,
			BuffSize:   cfg.Opensearch.Index.BuffSize,
		}, logger)
	}
}
