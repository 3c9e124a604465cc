package resource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gachaupg/shuletrack/core/apierr"
)

// BulkError aggregates the failures of a batch operation.
type BulkError struct {
	Op       Op
	Resource string
	Total    int
	Errors   map[ID]error
}

func (e *BulkError) add(id ID, err error) {
	if e.Errors == nil {
		e.Errors = make(map[ID]error)
	}
	e.Errors[id] = err
}

func (e *BulkError) Failed() int { return len(e.Errors) }

func (e *BulkError) Error() string {
	return fmt.Sprintf("failed to %s %d of %d %s", e.Op, e.Failed(), e.Total, e.Resource)
}

// Details lists every failure, one "id: message" entry per failed id, sorted by id.
func (e *BulkError) Details() []string {
	ids := make([]ID, 0, len(e.Errors))
	for id := range e.Errors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aOK := ids[i].Int()
		b, bOK := ids[j].Int()
		if aOK && bOK {
			return a < b
		}
		return ids[i].String() < ids[j].String()
	})

	details := make([]string, 0, len(ids))
	for _, id := range ids {
		msg := strings.TrimSpace(apierr.Message(e.Errors[id]))
		details = append(details, id.String()+": "+msg)
	}
	return details
}
