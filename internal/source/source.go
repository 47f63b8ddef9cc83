package source

import (
	"context"
	"fmt"

	"github.com/BRO3886/story-indexer/internal/types"
)

// Filter holds the equality predicates a fetch is restricted to.
type Filter struct {
	AppName  string `koanf:"appname"`
	PageType string `koanf:"page_type"`
	Status   string `koanf:"status"`
	Language string `koanf:"language"`
}

// Source runs the story query against a document store.
type Source interface {
	Fetch(ctx context.Context, filter Filter) (Cursor, error)
	Close(ctx context.Context) error
}

// Cursor is a single forward pass over the fetched stories. It cannot be
// rewound; fetch again to start over.
type Cursor interface {
	Next(ctx context.Context) bool
	// Document decodes the story the cursor is positioned on. Decoding
	// failures are reported as *DecodeError.
	Document() (*types.StoryDocument, error)
	Err() error
	Close(ctx context.Context) error
}

// DecodeError is returned by Cursor.Document when the raw story could not
// be decoded. ID is filled in when the identity could still be read.
type DecodeError struct {
	ID  string
	Err error
}

func (e *DecodeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("decode story: %v", e.Err)
	}
	return fmt.Sprintf("decode story %s: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
