package resource

import (
	"github.com/volatiletech/null/v8"
)

// Label resolves a foreign reference against a sibling store for display.
// Unset references yield "", dangling ones "#<id>".
func Label[T Entity](s *Store[T], ref null.Int, name func(T) string) string {
	if !ref.Valid {
		return ""
	}
	id := RefID(ref)
	if s != nil {
		if entity, ok := s.Get(id); ok {
			return name(entity)
		}
	}
	return "#" + id.String()
}
