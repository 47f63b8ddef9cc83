package transform

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/source/sourcetest"
	"github.com/BRO3886/story-indexer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func story(id string, sections ...types.Section) *types.StoryDocument {
	return &types.StoryDocument{
		ID:              types.DocumentID(id),
		PageTitle:       types.Str("Title " + id),
		PageDescription: types.Str("desc"),
		Type:            types.Str("guide"),
		ProductID:       types.Str("p1"),
		PageType:        types.Str("story"),
		SubType:         types.Str("basic"),
		Sections:        sections,
	}
}

func recordKeys(t *testing.T, rec types.IndexRecord) map[string]any {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestRecord_EndToEnd(t *testing.T) {
	doc := &types.StoryDocument{
		ID:              "5f1",
		PageTitle:       types.Str("Café Title"),
		PageDescription: types.Str("desc"),
		Type:            types.Str("guide"),
		ProductID:       types.Str("p1"),
		PageType:        types.Str("story"),
		SubType:         types.Str("basic"),
		Sections: []types.Section{
			section("S1", "D1"),
			section("S2", "D2"),
		},
	}

	rec, err := New(nil, Options{}).Record(doc)
	require.NoError(t, err)

	assert.Equal(t, "5f1", rec.ID)
	assert.Equal(t, "Caf Title", rec.PageTitle)
	assert.Equal(t, "desc", rec.PageDescription)
	assert.Equal(t, "guide", rec.StoryType)
	assert.Equal(t, "guide", rec.Type)
	assert.Equal(t, "p1", rec.ProductID)
	assert.Equal(t, "story", rec.PageType)
	assert.Equal(t, "basic", rec.SubType)
	assert.Equal(t, "S1", rec.FirstSectionTitle)
	assert.Equal(t, "D1", rec.FirstSectionDesc)

	first := "S1\nD1"
	second := "S2\nD2"
	assert.Contains(t, rec.Section, first)
	assert.Contains(t, rec.Section, second)
	assert.Less(t, strings.Index(rec.Section, first), strings.Index(rec.Section, second))

	keys := recordKeys(t, rec)
	for _, absent := range []string{"banner_title_t", "banner_description_t", "steps_t", "questions_t", "tool_tag_assoc_ss"} {
		assert.NotContains(t, keys, absent)
		assert.NotContains(t, rec.Fields(), absent)
	}
	assert.Len(t, keys, 11)
}

func TestRecord_ConditionalFields(t *testing.T) {
	doc := story("abc",
		banner("Bañner", "Top"),
		steps("A", "a"),
		questions("Q", "A"),
	)
	doc.ToolTags = []types.ToolTag{toolTag("x", "y"), toolTag("y")}

	rec, err := New(nil, Options{}).Record(doc)
	require.NoError(t, err)

	keys := recordKeys(t, rec)
	assert.Equal(t, "Baner", keys["banner_title_t"])
	assert.Equal(t, "Top", keys["banner_description_t"])
	assert.Equal(t, "A\na\n\n", keys["steps_t"])
	assert.Equal(t, "Q\nA\n\n", keys["questions_t"])
	assert.Equal(t, []any{"x", "y"}, keys["tool_tag_assoc_ss"])
	assert.Equal(t, "", keys["section_t"])

	fields := rec.Fields()
	assert.Len(t, fields, len(keys))
	for k := range keys {
		assert.Contains(t, fields, k)
	}
}

func TestRecord_CategoryFieldsNotSanitized(t *testing.T) {
	doc := story("c1", section("S", "D"))
	doc.Type = types.Str("guíde")
	doc.SubType = types.Str("básic")

	rec, err := New(nil, Options{}).Record(doc)
	require.NoError(t, err)
	assert.Equal(t, "guíde", rec.Type)
	assert.Equal(t, "guíde", rec.StoryType)
	assert.Equal(t, "básic", rec.SubType)
}

func TestRecord_Errors(t *testing.T) {
	tr := New(nil, Options{})

	_, err := tr.Record(nil)
	assert.ErrorIs(t, err, ErrNilDocument)

	noID := story("")
	noID.Sections = []types.Section{section("a", "b")}
	_, err = tr.Record(noID)
	assert.ErrorIs(t, err, types.ErrMissingField)

	noTitle := story("x", section("a", "b"))
	noTitle.PageTitle = nil
	_, err = tr.Record(noTitle)
	require.ErrorIs(t, err, types.ErrMissingField)
	assert.Contains(t, err.Error(), "pageTitle")

	_, err = tr.Record(story("y"))
	assert.ErrorIs(t, err, ErrNoSections)

	var bare []types.Section
	require.NoError(t, json.Unmarshal([]byte(`[{"type": "section", "title": "a", "desc1": "b"}, {"type": "steps"}]`), &bare))
	_, err = tr.Record(story("z", bare...))
	require.ErrorIs(t, err, types.ErrMissingField)
	assert.Contains(t, err.Error(), "sections[1].steps")
}

func TestBatch_IsolatesFailures(t *testing.T) {
	decodeErr := &source.DecodeError{ID: "bad", Err: errors.New("boom")}
	cursor := sourcetest.NewCursor(
		story("1", section("a", "b")),
		nil,
		story("2"),
		story("3", section("c", "d")),
		story("1", section("e", "f")),
		story("4", section("g", "h")),
	).WithDecodeError(5, decodeErr)

	res, err := New(nil, Options{}).Batch(context.Background(), cursor)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Fetched)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "1", res.Records[0].ID)
	assert.Equal(t, "3", res.Records[1].ID)
	assert.Equal(t, "\ne\nf\n\n", res.Records[0].Section, "later duplicate wins")

	require.Len(t, res.Failures, 4)
	assert.ErrorIs(t, res.Failures[0].Err, ErrNilDocument)
	assert.Equal(t, "2", res.Failures[1].ID)
	assert.ErrorIs(t, res.Failures[1].Err, ErrNoSections)
	assert.Equal(t, "1", res.Failures[2].ID)
	assert.ErrorIs(t, res.Failures[2].Err, ErrDuplicateID)
	assert.Equal(t, "bad", res.Failures[3].ID)

	require.Error(t, res.Err())
	assert.Contains(t, res.Err().Error(), "story 2")
}

func TestBatch_NoFailures(t *testing.T) {
	res, err := New(nil, Options{}).Batch(context.Background(), sourcetest.NewCursor(story("1", section("a", "b"))))
	require.NoError(t, err)
	assert.NoError(t, res.Err())
	assert.Len(t, res.Records, 1)
}

func TestBatch_CursorErrorAborts(t *testing.T) {
	cursorErr := errors.New("connection reset")
	cursor := sourcetest.NewCursor(story("1", section("a", "b")), story("2", section("a", "b"))).FailAt(1, cursorErr)

	res, err := New(nil, Options{}).Batch(context.Background(), cursor)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, cursorErr)
}

func TestBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, Options{}).Batch(ctx, sourcetest.NewCursor(story("1", section("a", "b"))))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatch_Deterministic(t *testing.T) {
	docs := []*types.StoryDocument{
		story("1", section("a", "b"), steps("s", "d")),
		story("2", banner("x", "y"), questions("q", "a")),
	}
	docs[0].ToolTags = []types.ToolTag{toolTag("t3", "t1"), toolTag("t1", "t2")}

	run := func() []byte {
		res, err := New(nil, Options{}).Batch(context.Background(), sourcetest.NewCursor(docs...))
		require.NoError(t, err)
		data, err := json.Marshal(res.Records)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, run(), run())
}
