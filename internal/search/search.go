package search

import (
	"context"

	"github.com/BRO3886/story-indexer/internal/types"
)

// Sink is the search index a full rebuild writes to. DeleteAll and Add are
// only visible once Commit returns.
type Sink interface {
	DeleteAll(ctx context.Context) error
	Add(ctx context.Context, records []types.IndexRecord) error
	Commit(ctx context.Context) error
	// Count returns the number of committed records.
	Count(ctx context.Context) (int, error)
	Close() error
}
