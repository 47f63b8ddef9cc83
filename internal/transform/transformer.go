package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/types"
	"github.com/hashicorp/go-multierror"
)

var (
	ErrNilDocument = errors.New("nil story document")
	ErrDuplicateID = errors.New("duplicate story id")
)

// Transformer turns story documents into index records.
type Transformer struct {
	opts   Options
	logger *slog.Logger
}

func New(logger *slog.Logger, opts Options) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		opts:   opts,
		logger: logger.With("component", "transform"),
	}
}

// Record builds the index record for a single story.
func (t *Transformer) Record(doc *types.StoryDocument) (types.IndexRecord, error) {
	var rec types.IndexRecord
	if doc == nil {
		return rec, ErrNilDocument
	}
	if doc.ID == "" {
		return rec, fmt.Errorf("%w: _id", types.ErrMissingField)
	}
	rec.ID = doc.ID.String()

	var err error
	fields := []struct {
		name string
		src  *string
		dst  *string
	}{
		{"pageTitle", doc.PageTitle, &rec.PageTitle},
		{"pageDescription", doc.PageDescription, &rec.PageDescription},
		{"type", doc.Type, &rec.Type},
		{"productId", doc.ProductID, &rec.ProductID},
		{"pageType", doc.PageType, &rec.PageType},
		{"subType", doc.SubType, &rec.SubType},
	}
	for _, f := range fields {
		if *f.dst, err = types.Required(f.name, f.src); err != nil {
			return rec, err
		}
	}
	rec.PageTitle = Sanitize(rec.PageTitle)
	rec.PageDescription = Sanitize(rec.PageDescription)
	rec.StoryType = rec.Type

	if doc.ToolTags != nil {
		if rec.ToolTagAssocIDs, err = CollectToolTags(doc.ToolTags); err != nil {
			return rec, err
		}
		t.logger.Debug("collected tool tags", "id", rec.ID, "tool_tag_assoc_ids", rec.ToolTagAssocIDs)
	}

	sections, err := ExtractSections(doc.Sections, t.opts)
	if err != nil {
		return rec, err
	}
	rec.FirstSectionTitle = sections.FirstTitle
	rec.FirstSectionDesc = sections.FirstDesc
	rec.BannerTitle = sections.BannerTitle
	rec.BannerDescription = sections.BannerDescription
	rec.Steps = sections.Steps
	rec.Questions = sections.Questions
	rec.Section = sections.Section

	return rec, nil
}

// Failure is a story that was skipped.
type Failure struct {
	ID  string
	Err error
}

// Result holds the outcome of transforming a whole cursor.
type Result struct {
	Records  []types.IndexRecord
	Failures []Failure
	Fetched  int
}

// Err folds the per story failures into one error, nil if there were none.
func (r *Result) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failures {
		if f.ID == "" {
			merr = multierror.Append(merr, f.Err)
			continue
		}
		merr = multierror.Append(merr, fmt.Errorf("story %s: %w", f.ID, f.Err))
	}
	return merr.ErrorOrNil()
}

// Batch drains the cursor. A story that cannot be decoded or transformed is
// recorded as a failure and skipped; only a failing cursor aborts the batch.
// Records keep the cursor's order. When an id repeats, the later story
// replaces the earlier one in place, as an overwriting index would, and the
// replaced one is reported as a duplicate.
func (t *Transformer) Batch(ctx context.Context, cursor source.Cursor) (*Result, error) {
	res := &Result{}
	seen := make(map[string]int)

	fail := func(id string, err error) {
		t.logger.Warn("skipping story", "id", id, "error", err)
		res.Failures = append(res.Failures, Failure{ID: id, Err: err})
	}

	for cursor.Next(ctx) {
		res.Fetched++

		doc, err := cursor.Document()
		if err != nil {
			var derr *source.DecodeError
			if errors.As(err, &derr) {
				fail(derr.ID, err)
			} else {
				fail("", err)
			}
			continue
		}

		rec, err := t.Record(doc)
		if err != nil {
			id := ""
			if doc != nil {
				id = doc.ID.String()
			}
			fail(id, err)
			continue
		}

		if i, ok := seen[rec.ID]; ok {
			fail(rec.ID, ErrDuplicateID)
			res.Records[i] = rec
			continue
		}
		seen[rec.ID] = len(res.Records)
		res.Records = append(res.Records, rec)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("read stories: %w", err)
	}

	t.logger.Info("transformed stories",
		"fetched", res.Fetched,
		"records", len(res.Records),
		"failures", len(res.Failures),
	)

	return res, nil
}
