package jsonl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stories = `{"_id": {"$oid": "65f1c0ffee00000000000001"}, "appname": "lightx", "pageType": "story", "status": "complete", "language": "en", "pageTitle": "One", "sections": [{"type": "section", "title": "S", "desc1": "D"}]}
{"_id": "draft", "appname": "lightx", "pageType": "story", "status": "draft", "language": "en", "pageTitle": "Draft"}

{"_id": "two", "appname": "lightx", "pageType": "story", "status": "complete", "language": "en", "pageTitle": 2}
null
{"_id": "de", "appname": "lightx", "pageType": "story", "status": "complete", "language": "de", "pageTitle": "Drei"}
`

func TestFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(stories), 0o644))

	src := New(path, nil)
	ctx := context.Background()
	cur, err := src.Fetch(ctx, source.Filter{AppName: "lightx", PageType: "story", Status: "complete", Language: "en"})
	require.NoError(t, err)
	defer cur.Close(ctx)

	require.True(t, cur.Next(ctx))
	doc, err := cur.Document()
	require.NoError(t, err)
	assert.Equal(t, "65f1c0ffee00000000000001", doc.ID.String())
	assert.Equal(t, "One", *doc.PageTitle)
	require.Len(t, doc.Sections, 1)

	require.True(t, cur.Next(ctx))
	_, err = cur.Document()
	var derr *source.DecodeError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "two", derr.ID)
	assert.Contains(t, err.Error(), "line 4")

	require.True(t, cur.Next(ctx))
	doc, err = cur.Document()
	require.NoError(t, err)
	assert.Nil(t, doc)

	assert.False(t, cur.Next(ctx))
	assert.NoError(t, cur.Err())
}

func TestFetch_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.jsonl"), nil).Fetch(context.Background(), source.Filter{})
	assert.Error(t, err)
}

func TestFetch_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(stories), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cur, err := New(path, nil).Fetch(ctx, source.Filter{})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	cancel()
	assert.False(t, cur.Next(ctx))
	assert.ErrorIs(t, cur.Err(), context.Canceled)
}
