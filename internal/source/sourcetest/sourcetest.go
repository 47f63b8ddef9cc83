// Package sourcetest provides in-memory sources for tests.
package sourcetest

import (
	"context"
	"sync"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/types"
)

var (
	_ source.Source = (*Source)(nil)
	_ source.Cursor = (*Cursor)(nil)
)

// Cursor serves documents that are already in memory. A nil entry is passed
// through as is.
type Cursor struct {
	docs       []*types.StoryDocument
	decodeErrs map[int]error
	pos        int
	err        error
	failAt     int
	failErr    error
}

func NewCursor(docs ...*types.StoryDocument) *Cursor {
	return &Cursor{docs: docs, pos: -1, decodeErrs: map[int]error{}, failAt: -1}
}

// WithDecodeError makes Document fail at position i.
func (c *Cursor) WithDecodeError(i int, err error) *Cursor {
	c.decodeErrs[i] = err
	return c
}

// FailAt stops iteration before position i and reports err from Err.
func (c *Cursor) FailAt(i int, err error) *Cursor {
	c.failAt = i
	c.failErr = err
	return c
}

func (c *Cursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.failAt >= 0 && c.pos+1 == c.failAt {
		c.err = c.failErr
		return false
	}
	if c.pos+1 >= len(c.docs) {
		c.pos = len(c.docs)
		return false
	}
	c.pos++
	return true
}

func (c *Cursor) Document() (*types.StoryDocument, error) {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil, nil
	}
	if err, ok := c.decodeErrs[c.pos]; ok {
		return nil, err
	}
	return c.docs[c.pos], nil
}

func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) Close(ctx context.Context) error {
	c.pos = len(c.docs)
	return nil
}

// Source hands out a fresh Cursor over Docs on every Fetch.
type Source struct {
	mu       sync.Mutex
	Docs     []*types.StoryDocument
	FetchErr error
	Filters  []source.Filter
	closed   bool
}

func New(docs ...*types.StoryDocument) *Source {
	return &Source{Docs: docs}
}

func (s *Source) Fetch(ctx context.Context, filter source.Filter) (source.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Filters = append(s.Filters, filter)
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return NewCursor(s.Docs...), nil
}

func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
