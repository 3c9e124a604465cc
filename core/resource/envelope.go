package resource

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// envelope keys probed around a list payload, in order
var envelopeKeys = []string{"data", "results"}

// Unwrap decodes a list response. It accepts a bare array, {"data": [...]} or
// {"results": [...]} (one level of nesting, e.g. {"data": {"results": [...]}}, is tolerated).
// Any other shape yields an empty list. Only a well-shaped list whose elements
// cannot be decoded into T is an error.
func Unwrap[T any](body []byte) ([]T, error) {
	raw := findList(bytes.TrimSpace(body), 2)
	if raw == nil {
		return make([]T, 0), nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "resource.Unwrap")
	}
	if items == nil {
		items = make([]T, 0)
	}
	return items, nil
}

func findList(body []byte, depth int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	switch body[0] {
	case '[':
		return body
	case '{':
		if depth == 0 {
			return nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil
		}
		for _, key := range envelopeKeys {
			if val, ok := obj[key]; ok {
				if list := findList(bytes.TrimSpace(val), depth-1); list != nil {
					return list
				}
			}
		}
	}
	return nil
}

// UnwrapOne decodes a single-entity response: a bare object or {"data": {...}}.
func UnwrapOne[T any](body []byte) (T, error) {
	var entity T
	body = bytes.TrimSpace(body)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return entity, errors.Wrap(err, "resource.UnwrapOne")
	}
	if inner, ok := obj["data"]; ok {
		inner = bytes.TrimSpace(inner)
		if len(inner) > 0 && inner[0] == '{' {
			body = inner
		}
	}

	if err := json.Unmarshal(body, &entity); err != nil {
		return entity, errors.Wrap(err, "resource.UnwrapOne")
	}
	return entity, nil
}
