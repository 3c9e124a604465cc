// Package document is the storage model of the sandbox backend: every entity is a JSON document
// tagged with its resource name and owning school.
package document

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidField = errors.New("invalid field name")

	fieldRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

type (
	Document struct {
		ID        int64
		Resource  string
		School    int // 0: not tenant-scoped
		Data      map[string]interface{}
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// QueryFilter selects the documents of one resource.
	// Match compares top-level fields by their text value.
	QueryFilter struct {
		Resource string
		School   int // 0: any school
		Match    map[string]string
		Ordering []core.DBOrdering
	}

	Repository interface {
		Query(ctx context.Context, filter QueryFilter) ([]Document, error)
		Get(ctx context.Context, resource string, id int64) (Document, error)
		Create(ctx context.Context, doc Document) (Document, error)
		Update(ctx context.Context, doc Document) (Document, error)
		Delete(ctx context.Context, resource string, id int64) error
	}
)

// JSON returns the document data with its id, as served over the API.
func (doc Document) JSON() map[string]interface{} {
	out := make(map[string]interface{}, len(doc.Data)+1)
	for k, v := range doc.Data {
		out[k] = v
	}
	out["id"] = doc.ID
	if doc.School > 0 {
		out["school"] = doc.School
	}
	return out
}

// Decode unmarshals the served form of the document into dst.
func (doc Document) Decode(dst interface{}) error {
	data, err := json.Marshal(doc.JSON())
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	return errors.Wrap(json.Unmarshal(data, dst), "decoding document")
}

// FromJSON builds a document from an API payload, dropping the fields owned by the store.
func FromJSON(resource string, school int, payload map[string]interface{}) Document {
	data := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch k {
		case "id", "school", "created_at", "updated_at":
			continue
		}
		data[k] = v
	}
	return Document{Resource: resource, School: school, Data: data}
}

// ValidateFields rejects orderings and matches on fields that are not plain snake_case names.
func (f QueryFilter) ValidateFields() error {
	for _, ord := range f.Ordering {
		if !fieldRe.MatchString(ord.Field) {
			return errors.Wrap(ErrInvalidField, ord.Field)
		}
	}
	for fld := range f.Match {
		if !fieldRe.MatchString(fld) {
			return errors.Wrap(ErrInvalidField, fld)
		}
	}
	return nil
}

// Text returns the text form of a JSON value, as compared by QueryFilter.Match.
func Text(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}
