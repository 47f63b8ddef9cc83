package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/transform"
	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultConfigPath = "configs/config.yaml"
	DefaultEnvPath    = ".env"

	envPrefix = "STORYINDEXER_"
)

// Sink backends.
const (
	SinkOpensearch = "opensearch"
	SinkSolr       = "solr"
	SinkBleve      = "bleve"
)

// Source backends.
const (
	SourceMongo = "mongo"
	SourceJSONL = "jsonl"
)

type Config struct {
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
	Source struct {
		Backend string        `koanf:"backend"`
		Path    string        `koanf:"path"`
		Filter  source.Filter `koanf:"filter"`
	} `koanf:"source"`
	Mongo struct {
		URI        string        `koanf:"uri"`
		Database   string        `koanf:"database"`
		Collection string        `koanf:"collection"`
		Timeout    time.Duration `koanf:"timeout"`
	} `koanf:"mongo"`
	Sink struct {
		Backend       string        `koanf:"backend"`
		CommitRetries int           `koanf:"commit_retries"`
		CommitBackoff time.Duration `koanf:"commit_backoff"`
	} `koanf:"sink"`
	Opensearch struct {
		URLs       []string `koanf:"urls"`
		Username   string   `koanf:"username"`
		Password   string   `koanf:"password"`
		MaxRetries int      `koanf:"max_retries"`
		Insecure   bool     `koanf:"insecure"`
		Index      struct {
			Name     string `koanf:"name"`
			BuffSize int    `koanf:"buff_size"`
		} `koanf:"index"`
	} `koanf:"opensearch"`
	Solr struct {
		Endpoint string        `koanf:"endpoint"`
		Timeout  time.Duration `koanf:"timeout"`
	} `koanf:"solr"`
	Bleve struct {
		Path string `koanf:"path"`
	} `koanf:"bleve"`
	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		ClientID    string   `koanf:"client_id"`
		ReportTopic string   `koanf:"report_topic"`
		Trigger     struct {
			Topic         string `koanf:"topic"`
			ConsumerGroup string `koanf:"consumer_group"`
		} `koanf:"trigger"`
		Retry struct {
			Max     int `koanf:"max"`
			Backoff int `koanf:"backoff"`
		} `koanf:"retry"`
	} `koanf:"kafka"`
	Redis struct {
		URL     string        `koanf:"url"`
		Lock    string        `koanf:"lock"`
		LockTTL time.Duration `koanf:"lock_ttl"`
	} `koanf:"redis"`
	Indexer struct {
		AllowEmpty bool `koanf:"allow_empty"`
	} `koanf:"indexer"`
	Schedule struct {
		Interval time.Duration `koanf:"interval"`
	} `koanf:"schedule"`
	Transform transform.Options `koanf:"transform"`
}

var defaults = map[string]any{
	"log.level":                    "info",
	"log.format":                   "text",
	"source.backend":               SourceMongo,
	"source.filter.appname":        "lightx",
	"source.filter.page_type":      "story",
	"source.filter.status":         "complete",
	"source.filter.language":       "en",
	"mongo.collection":             "storyPage",
	"mongo.timeout":                "30s",
	"sink.backend":                 SinkOpensearch,
	"sink.commit_retries":          3,
	"sink.commit_backoff":          "500ms",
	"opensearch.max_retries":       3,
	"opensearch.index.name":        "storypages",
	"opensearch.index.buff_size":   500,
	"solr.timeout":                 "10s",
	"kafka.client_id":              "storyindexer",
	"kafka.trigger.topic":          "storyindexer.rebuild",
	"kafka.trigger.consumer_group": "storyindexer",
	"kafka.retry.max":              3,
	"kafka.retry.backoff":          250,
	"redis.lock":                   "story-rebuild",
	"redis.lock_ttl":               "15m",
	"schedule.interval":            "1h",
}

// legacyEnv maps the variable names used by earlier deployments.
var legacyEnv = map[string]string{
	"MONGODB_HOST":             "mongo.uri",
	"MONGODB_NAME":             "mongo.database",
	"SOLR_STORYPAGES_ENDPOINT": "solr.endpoint",
}

// envKey turns an environment variable name into a config path. Double
// underscores separate levels: STORYINDEXER_OPENSEARCH__INDEX__NAME becomes
// opensearch.index.name. Unknown variables map to "" and are ignored.
func envKey(name string) string {
	if key, ok := legacyEnv[name]; ok {
		return key
	}
	if !strings.HasPrefix(name, envPrefix) {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Load layers defaults, the YAML file, the .env file and the process
// environment, later layers winning. Missing files are skipped.
func Load(configPath, envPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if exists(configPath) {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", configPath, err)
		}
	}

	if exists(envPath) {
		dot := koanf.New(".")
		if err := dot.Load(file.Provider(envPath), dotenv.Parser()); err != nil {
			return nil, fmt.Errorf("error loading env file %s: %w", envPath, err)
		}
		mapped := make(map[string]any)
		for name, value := range dot.All() {
			if key := envKey(name); key != "" {
				mapped[key] = value
			}
		}
		if err := k.Load(confmap.Provider(mapped, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading env file %s: %w", envPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	// Environment values are plain strings; lists are comma separated.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Validate reports every missing setting the selected backends need.
func (c *Config) Validate() error {
	var merr *multierror.Error

	switch c.Source.Backend {
	case SourceMongo:
		if c.Mongo.URI == "" {
			merr = multierror.Append(merr, errors.New("mongo.uri (MONGODB_HOST) is required"))
		}
		if c.Mongo.Database == "" {
			merr = multierror.Append(merr, errors.New("mongo.database (MONGODB_NAME) is required"))
		}
	case SourceJSONL:
		if c.Source.Path == "" {
			merr = multierror.Append(merr, errors.New("source.path is required for the jsonl source"))
		}
	default:
		merr = multierror.Append(merr, fmt.Errorf("unknown source backend %q", c.Source.Backend))
	}

	switch c.Sink.Backend {
	case SinkOpensearch:
		if len(c.Opensearch.URLs) == 0 {
			merr = multierror.Append(merr, errors.New("opensearch.urls is required"))
		}
		if c.Opensearch.Index.Name == "" {
			merr = multierror.Append(merr, errors.New("opensearch.index.name is required"))
		}
	case SinkSolr:
		if c.Solr.Endpoint == "" {
			merr = multierror.Append(merr, errors.New("solr.endpoint (SOLR_STORYPAGES_ENDPOINT) is required"))
		}
	case SinkBleve:
		if c.Bleve.Path == "" {
			merr = multierror.Append(merr, errors.New("bleve.path is required"))
		}
	default:
		merr = multierror.Append(merr, fmt.Errorf("unknown sink backend %q", c.Sink.Backend))
	}

	if c.Schedule.Interval <= 0 {
		merr = multierror.Append(merr, errors.New("schedule.interval must be positive"))
	}
	if c.Sink.CommitRetries < 0 {
		merr = multierror.Append(merr, errors.New("sink.commit_retries must not be negative"))
	}

	return merr.ErrorOrNil()
}
