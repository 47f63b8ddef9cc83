package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type mongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// New connects to MongoDB and checks the connection before returning, so a
// bad endpoint fails the run before anything touches the index.
func New(ctx context.Context, c Config, logger *slog.Logger) (source.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mongo")

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info("connected", "database", c.Database, "collection", c.Collection)

	return &mongoSource{
		client:     client,
		collection: client.Database(c.Database).Collection(c.Collection),
		logger:     logger,
	}, nil
}

func (s *mongoSource) Fetch(ctx context.Context, filter source.Filter) (source.Cursor, error) {
	query := Query(filter)
	s.logger.Info("fetching stories", "filter", query)

	cur, err := s.collection.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find stories: %w", err)
	}
	return &cursor{cur: cur}, nil
}

func (s *mongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Query builds the equality filter. Empty predicates are left out.
func Query(f source.Filter) bson.D {
	query := bson.D{}
	for _, p := range []struct {
		key   string
		value string
	}{
		{"appname", f.AppName},
		{"pageType", f.PageType},
		{"status", f.Status},
		{"language", f.Language},
	} {
		if p.value == "" {
			continue
		}
		query = append(query, bson.E{Key: p.key, Value: p.value})
	}
	return query
}

type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *cursor) Document() (*types.StoryDocument, error) {
	var doc types.StoryDocument
	if err := c.cur.Decode(&doc); err != nil {
		return nil, &source.DecodeError{ID: rawID(c.cur.Current), Err: err}
	}
	return &doc, nil
}

func (c *cursor) Err() error {
	return c.cur.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// rawID reads `_id` from an undecodable document, "" if that fails too.
func rawID(raw bson.Raw) string {
	rv, err := raw.LookupErr("_id")
	if err != nil {
		return ""
	}
	var id types.DocumentID
	if err := id.UnmarshalBSONValue(rv.Type, rv.Value); err != nil {
		return ""
	}
	return id.String()
}
