// Package searchtest provides an in-memory Sink for tests.
package searchtest

import (
	"context"
	"sync"

	"github.com/BRO3886/story-indexer/internal/search"
	"github.com/BRO3886/story-indexer/internal/types"
)

var _ search.Sink = (*Sink)(nil)

// Sink keeps committed records in a map and stages changes until Commit.
// Set the *Err fields to make the matching call fail; CommitErrs is consumed
// one entry per Commit call.
type Sink struct {
	mu        sync.Mutex
	committed map[string]types.IndexRecord
	staged    []types.IndexRecord
	wipe      bool

	Calls      []string
	DeleteErr  error
	AddErr     error
	CommitErrs []error
	closed     bool
}

func New(existing ...types.IndexRecord) *Sink {
	s := &Sink{committed: make(map[string]types.IndexRecord)}
	for _, r := range existing {
		s.committed[r.ID] = r
	}
	return s
}

func (s *Sink) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "delete_all")
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.wipe = true
	return nil
}

func (s *Sink) Add(ctx context.Context, records []types.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "add")
	if s.AddErr != nil {
		return s.AddErr
	}
	s.staged = append(s.staged, records...)
	return nil
}

func (s *Sink) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "commit")
	if len(s.CommitErrs) > 0 {
		err := s.CommitErrs[0]
		s.CommitErrs = s.CommitErrs[1:]
		if err != nil {
			return err
		}
	}
	if s.wipe {
		s.committed = make(map[string]types.IndexRecord)
		s.wipe = false
	}
	for _, r := range s.staged {
		s.committed[r.ID] = r
	}
	s.staged = nil
	return nil
}

func (s *Sink) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed), nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns a copy of the committed records keyed by id.
func (s *Sink) Records() map[string]types.IndexRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.IndexRecord, len(s.committed))
	for k, v := range s.committed {
		out[k] = v
	}
	return out
}

func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
