package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrMissingField is returned when a story document lacks a key the
// transformation depends on.
var ErrMissingField = errors.New("missing field")

// Section discriminators.
const (
	SectionBanner    = "banner"
	SectionSteps     = "steps"
	SectionQuestions = "questions"
	SectionSection   = "section"
)

// DocumentID is the string form of a story's `_id`. ObjectIDs decode to their
// 24 character hex form, strings are kept as is.
type DocumentID string

func (d DocumentID) String() string {
	return string(d)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (d *DocumentID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.ObjectID:
		*d = DocumentID(rv.ObjectID().Hex())
	case bsontype.String:
		*d = DocumentID(rv.StringValue())
	case bsontype.Int32:
		*d = DocumentID(strconv.FormatInt(int64(rv.Int32()), 10))
	case bsontype.Int64:
		*d = DocumentID(strconv.FormatInt(rv.Int64(), 10))
	case bsontype.Null, bsontype.Undefined:
		*d = ""
	default:
		return fmt.Errorf("unsupported _id type %s", t)
	}
	return nil
}

// UnmarshalJSON accepts a plain string, a number or an extended JSON
// object id ({"$oid": "..."}).
func (d *DocumentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DocumentID(s)
	case '{':
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(data, &oid); err != nil {
			return err
		}
		if oid.OID == "" {
			return fmt.Errorf("unsupported _id object: %s", string(data))
		}
		*d = DocumentID(oid.OID)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported _id value: %s", string(data))
		}
		*d = DocumentID(n.String())
	}
	return nil
}

// StoryDocument is one page of the storyPage collection. Scalar fields are
// pointers so that an absent key can be told apart from an empty value.
type StoryDocument struct {
	ID              DocumentID `bson:"_id" json:"_id"`
	PageTitle       *string    `bson:"pageTitle" json:"pageTitle"`
	PageDescription *string    `bson:"pageDescription" json:"pageDescription"`
	Type            *string    `bson:"type" json:"type"`
	ProductID       *string    `bson:"productId" json:"productId"`
	PageType        *string    `bson:"pageType" json:"pageType"`
	SubType         *string    `bson:"subType" json:"subType"`
	Sections        []Section  `bson:"sections" json:"sections"`
	ToolTags        []ToolTag  `bson:"toolTags,omitempty" json:"toolTags,omitempty"`
}

// Section is a display block of a story. Which fields are meaningful
// depends on Type. Steps and QA are nil only when the key is absent; an
// empty array decodes to an empty slice.
type Section struct {
	Type  string  `bson:"type" json:"type"`
	Title *string `bson:"title,omitempty" json:"title,omitempty"`
	Desc1 *string `bson:"desc1,omitempty" json:"desc1,omitempty"`
	Steps []Step  `bson:"steps,omitempty" json:"steps,omitempty"`
	QA    []QA    `bson:"qa,omitempty" json:"qa,omitempty"`
}

type Step struct {
	Title *string `bson:"title" json:"title"`
	Desc  *string `bson:"desc" json:"desc"`
}

type QA struct {
	Question *string `bson:"que" json:"que"`
	Answer   *string `bson:"ans" json:"ans"`
}

type ToolTag struct {
	Tools []Tool `bson:"tools" json:"tools"`
}

type Tool struct {
	ToolTagAssocID *string `bson:"toolTagAssocId" json:"toolTagAssocId"`
}

// Required returns the value behind a required field or an ErrMissingField
// naming it.
func Required(name string, v *string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return *v, nil
}

// Str is a convenience for building documents in code and tests.
func Str(s string) *string {
	return &s
}
