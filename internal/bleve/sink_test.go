package bleve

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/BRO3886/story-indexer/internal/types"
	external "github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(ids ...string) []types.IndexRecord {
	out := make([]types.IndexRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.IndexRecord{
			ID:        id,
			PageTitle: "How to remove background " + id,
			Section:   "\nErase\nTap the eraser\n\n",
			Type:      "guide",
		})
	}
	return out
}

func TestRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.bleve")
	ctx := context.Background()

	s, err := New(path, nil)
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, records("a", "b", "c")))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing is visible before commit")

	require.NoError(t, s.Commit(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.DeleteAll(ctx))
	require.NoError(t, s.Commit(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Add(ctx, records("d")))
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Close())

	reopened, err := New(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	n, err = reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	q := external.NewMatchQuery("eraser")
	q.SetField("section_t")
	res, err := reopened.(*bleveSink).index.Search(external.NewSearchRequest(q))
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "d", res.Hits[0].ID)
}

func TestDeleteAll_ManyPages(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "stories.bleve"), nil)
	require.NoError(t, err)
	defer s.Close()

	ids := make([]string, 0, deletePageSize+5)
	for i := 0; i < deletePageSize+5; i++ {
		ids = append(ids, fmt.Sprintf("s%d", i))
	}
	require.NoError(t, s.Add(ctx, records(ids...)))
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, s.DeleteAll(ctx))
	require.NoError(t, s.Commit(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
