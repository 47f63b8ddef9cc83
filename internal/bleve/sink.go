// Package bleve keeps the story index in a local Bleve index, for
// development and for hosts without a search cluster.
package bleve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/BRO3886/story-indexer/internal/search"
	"github.com/BRO3886/story-indexer/internal/types"
	external "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

const deletePageSize = 1000

var (
	textFields    = []string{"page_title_t", "page_description_t", "first_section_title_t", "first_section_desc_t", "section_t", "banner_title_t", "banner_description_t", "steps_t", "questions_t"}
	keywordFields = []string{"id", "story_type_s", "product_id_s", "type_s", "pageType_s", "subType_s", "tool_tag_assoc_ss"}
)

type bleveSink struct {
	index  external.Index
	logger *slog.Logger

	m       sync.Mutex
	pending *external.Batch
}

// New opens the index at path, creating it when the path does not exist.
func New(path string, logger *slog.Logger) (search.Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bleve", "path", path)

	idx, err := external.Open(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
		idx, err = external.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create bleve index: %w", err)
		}
		logger.Info("index created")
	}

	return &bleveSink{
		index:   idx,
		logger:  logger,
		pending: idx.NewBatch(),
	}, nil
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := external.NewIndexMapping()
	docMapping := external.NewDocumentMapping()

	textField := external.NewTextFieldMapping()
	textField.Analyzer = "standard"
	textField.Store = true
	for _, name := range textFields {
		docMapping.AddFieldMappingsAt(name, textField)
	}

	keywordField := external.NewKeywordFieldMapping()
	keywordField.Store = true
	for _, name := range keywordFields {
		docMapping.AddFieldMappingsAt(name, keywordField)
	}

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// DeleteAll stages a delete for every document currently in the index.
func (s *bleveSink) DeleteAll(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.pending.Reset()

	deleted := 0
	for from := 0; ; from += deletePageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := external.NewSearchRequestOptions(external.NewMatchAllQuery(), deletePageSize, from, false)
		req.SortBy([]string{"_id"})
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		for _, hit := range res.Hits {
			s.pending.Delete(hit.ID)
		}
		deleted += len(res.Hits)
		if len(res.Hits) < deletePageSize {
			break
		}
	}

	s.logger.Info("staged delete of all documents", "count", deleted)
	return nil
}

func (s *bleveSink) Add(ctx context.Context, records []types.IndexRecord) error {
	s.m.Lock()
	defer s.m.Unlock()

	for _, rec := range records {
		if err := s.pending.Index(rec.ID, rec.Fields()); err != nil {
			return fmt.Errorf("batch index %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Commit applies the staged batch.
func (s *bleveSink) Commit(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.pending.Size() == 0 {
		return nil
	}
	if err := s.index.Batch(s.pending); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	s.logger.Debug("batch applied", "operations", s.pending.Size())
	s.pending = s.index.NewBatch()
	return nil
}

func (s *bleveSink) Count(ctx context.Context) (int, error) {
	n, err := s.index.DocCount()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *bleveSink) Close() error {
	return s.index.Close()
}
