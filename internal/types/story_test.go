package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocumentID_BSON(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		name string
		id   any
		want string
	}{
		{"object id", oid, oid.Hex()},
		{"string", "story-1", "story-1"},
		{"int32", int32(7), "7"},
		{"int64", int64(9000000000), "9000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(bson.M{"_id": tt.id})
			require.NoError(t, err)

			var doc StoryDocument
			require.NoError(t, bson.Unmarshal(raw, &doc))
			assert.Equal(t, tt.want, doc.ID.String())
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"_id": 1.5})
		require.NoError(t, err)

		var doc StoryDocument
		assert.Error(t, bson.Unmarshal(raw, &doc))
	})
}

func TestDocumentID_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want DocumentID
	}{
		{`"abc"`, "abc"},
		{`{"$oid": "65f1c0ffee00000000000001"}`, "65f1c0ffee00000000000001"},
		{`42`, "42"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var id DocumentID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &id), tt.in)
		assert.Equal(t, tt.want, id)
	}

	var id DocumentID
	assert.Error(t, json.Unmarshal([]byte(`{"other": 1}`), &id))
	assert.Error(t, json.Unmarshal([]byte(`true`), &id))
}

func TestStoryDocument_KeyPresence(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":       "s1",
		"pageTitle": "",
		"sections": bson.A{
			bson.M{"type": "steps", "steps": bson.A{bson.M{"title": "t", "desc": "d"}}},
			bson.M{"type": "questions", "qa": bson.A{bson.M{"que": "q", "ans": "a"}}},
		},
		"toolTags": bson.A{bson.M{"tools": bson.A{bson.M{"toolTagAssocId": "tt1"}}}},
	})
	require.NoError(t, err)

	var doc StoryDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))

	require.NotNil(t, doc.PageTitle)
	assert.Equal(t, "", *doc.PageTitle)
	assert.Nil(t, doc.PageDescription)

	require.Len(t, doc.Sections, 2)
	assert.Nil(t, doc.Sections[0].Title)
	require.Len(t, doc.Sections[0].Steps, 1)
	assert.Equal(t, "d", *doc.Sections[0].Steps[0].Desc)
	require.Len(t, doc.Sections[1].QA, 1)
	assert.Equal(t, "q", *doc.Sections[1].QA[0].Question)
	assert.Equal(t, "tt1", *doc.ToolTags[0].Tools[0].ToolTagAssocID)
}

func TestSection_AbsentVersusEmptyLists(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"type": "steps",
		"qa":   bson.A{},
	})
	require.NoError(t, err)

	var fromBSON Section
	require.NoError(t, bson.Unmarshal(raw, &fromBSON))
	assert.Nil(t, fromBSON.Steps)
	assert.NotNil(t, fromBSON.QA)
	assert.Empty(t, fromBSON.QA)

	var fromJSON Section
	require.NoError(t, json.Unmarshal([]byte(`{"type": "steps", "qa": []}`), &fromJSON))
	assert.Nil(t, fromJSON.Steps)
	assert.NotNil(t, fromJSON.QA)
	assert.Empty(t, fromJSON.QA)
}

func TestRequired(t *testing.T) {
	v, err := Required("pageTitle", Str("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = Required("pageTitle", nil)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.EqualError(t, err, "missing field: pageTitle")
}
