package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestQuery(t *testing.T) {
	q := Query(source.Filter{AppName: "lightx", PageType: "story", Status: "complete", Language: "en"})
	assert.Equal(t, bson.D{
		{Key: "appname", Value: "lightx"},
		{Key: "pageType", Value: "story"},
		{Key: "status", Value: "complete"},
		{Key: "language", Value: "en"},
	}, q)

	q = Query(source.Filter{AppName: "lightx", Language: "en"})
	assert.Equal(t, bson.D{
		{Key: "appname", Value: "lightx"},
		{Key: "language", Value: "en"},
	}, q)
}

func TestCursor(t *testing.T) {
	oid := primitive.NewObjectID()
	docs := []any{
		bson.M{
			"_id":             oid,
			"pageTitle":       "Title",
			"pageDescription": "desc",
			"type":            "guide",
			"productId":       "p1",
			"pageType":        "story",
			"subType":         "basic",
			"sections":        bson.A{bson.M{"type": "section", "title": "S1", "desc1": "D1"}},
		},
		bson.M{"_id": "broken", "pageTitle": int32(7)},
	}

	cur, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	require.NoError(t, err)

	c := &cursor{cur: cur}
	ctx := context.Background()

	require.True(t, c.Next(ctx))
	doc, err := c.Document()
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), doc.ID.String())
	assert.Equal(t, "Title", *doc.PageTitle)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "S1", *doc.Sections[0].Title)

	require.True(t, c.Next(ctx))
	_, err = c.Document()
	var derr *source.DecodeError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "broken", derr.ID)

	assert.False(t, c.Next(ctx))
	assert.NoError(t, c.Err())
	assert.NoError(t, c.Close(ctx))
}

func TestRawID(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"title": "no id"})
	require.NoError(t, err)
	assert.Equal(t, "", rawID(raw))

	raw, err = bson.Marshal(bson.M{"_id": 3.5})
	require.NoError(t, err)
	assert.Equal(t, "", rawID(raw))
}
