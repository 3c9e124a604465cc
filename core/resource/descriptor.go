package resource

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// ErrTenantRequired is returned when a tenant-scoped collection is fetched without a school.
var ErrTenantRequired = errors.New("school is required")

// Descriptor describes one remote collection.
type Descriptor struct {
	Name     string   // logical name, e.g. "students"
	Label    string   // singular display name, e.g. "student"
	Endpoint string   // path segment under the API root, e.g. "route-stops"
	Scoped   bool     // filtered by the owning school
	Columns  []string // default export/list headers
}

func (d Descriptor) CollectionPath() string { return "/" + d.Endpoint + "/" }

func (d Descriptor) ItemPath(id ID) string { return "/" + d.Endpoint + "/" + id.String() + "/" }

// Scope restricts a fetch to one tenant.
type Scope struct {
	School int
}

// Query returns the query parameters of the scope for d.
func (sc Scope) Query(d Descriptor) (map[string]string, error) {
	if !d.Scoped {
		return nil, nil
	}
	if sc.School <= 0 {
		return nil, errors.Wrapf(ErrTenantRequired, "fetch %s", d.Name)
	}
	return map[string]string{"school": strconv.Itoa(sc.School)}, nil
}

// Op is the kind of remote operation.
type Op string

const (
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Structured reports whether validation bodies are preserved for op.
func (op Op) Structured() bool { return op == OpCreate || op == OpUpdate }

// Request is a single call against the REST boundary.
type Request struct {
	Op       Op
	Resource string // logical name, for error messages
	Method   string
	Path     string // relative to the API root
	Query    map[string]string
	Body     interface{}
}

// Describe returns the default failure message prefix, e.g. "create students".
func (r Request) Describe() string {
	return fmt.Sprintf("%s %s", r.Op, r.Resource)
}

func fetchRequest(d Descriptor, query map[string]string) Request {
	return Request{Op: OpFetch, Resource: d.Name, Method: http.MethodGet, Path: d.CollectionPath(), Query: query}
}

func createRequest(d Descriptor, body interface{}) Request {
	return Request{Op: OpCreate, Resource: d.Name, Method: http.MethodPost, Path: d.CollectionPath(), Body: body}
}

func updateRequest(d Descriptor, method string, id ID, body interface{}) Request {
	return Request{Op: OpUpdate, Resource: d.Name, Method: method, Path: d.ItemPath(id), Body: body}
}

func deleteRequest(d Descriptor, id ID) Request {
	return Request{Op: OpDelete, Resource: d.Name, Method: http.MethodDelete, Path: d.ItemPath(id)}
}

// Transport performs requests against the REST backend.
// It returns the raw response body of 2xx responses, any other outcome is an error
// (preferably one of the apierr types).
type Transport interface {
	Do(ctx context.Context, req Request) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) ([]byte, error)

func (f TransportFunc) Do(ctx context.Context, req Request) ([]byte, error) { return f(ctx, req) }
