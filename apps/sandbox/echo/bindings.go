package echoapi

import (
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam))
}

// envelope is the list response shape: a bare array, {"data": [...]} or {"count": n, "results": [...]}.
type envelope string

const (
	envelopeBare    envelope = "bare"
	envelopeData    envelope = "data"
	envelopeResults envelope = "results"
)

func parseEnvelope(s string) envelope {
	switch env := envelope(strings.ToLower(strings.TrimSpace(s))); env {
	case envelopeBare, envelopeData:
		return env
	default:
		return envelopeResults
	}
}

func (env envelope) list(items []map[string]interface{}) interface{} {
	switch env {
	case envelopeBare:
		return items
	case envelopeData:
		return echo.Map{"data": items}
	default:
		return echo.Map{"count": len(items), "next": nil, "previous": nil, "results": items}
	}
}

// one wraps single objects in the "data" style only; paginated APIs serve them bare.
func (env envelope) one(item interface{}) interface{} {
	if env == envelopeData {
		return echo.Map{"data": item}
	}
	return item
}

// toPayload converts v into its generic JSON object form.
func toPayload(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	var payload map[string]interface{}
	if err = json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "decoding payload")
	}
	return payload, nil
}
