// Package apierr normalizes REST failures into a small set of tagged error types.
//
// Create & update failures that carry a JSON object body keep that body verbatim
// (ValidationError) so per-field messages survive to the presentation layer.
// Everything else collapses to a flat message (GenericError), except throttling
// (RateLimitError) and transport failures (NetworkError).
package apierr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxPlainMessageLen = 200

var (
	// ErrSessionExpired is returned when the backend rejects the session token.
	ErrSessionExpired = &GenericError{Status: http.StatusUnauthorized, Message: "session expired, please log in again"}

	retryAfterRegex = regexp.MustCompile(`(?i)available in (\d+) seconds?`)
	messageKeys     = []string{"detail", "message", "error", "non_field_errors"}
)

type (
	// ValidationError preserves a structured server validation body.
	ValidationError struct {
		Status int
		Fields map[string]string // field -> message
		Raw    json.RawMessage   // original body, compacted
	}

	// GenericError is a flat, human-readable failure.
	GenericError struct {
		Status  int
		Message string
	}

	// RateLimitError is returned on HTTP 429 or a "throttled" response.
	RateLimitError struct {
		Message    string
		RetryAfter time.Duration
	}

	// NetworkError is returned when no response was received.
	NetworkError struct {
		Err error
	}
)

func (e *ValidationError) Error() string {
	if len(e.Raw) > 0 {
		return string(e.Raw)
	}
	data, _ := json.Marshal(e.Fields)
	return string(data)
}

func (e *GenericError) Error() string { return e.Message }

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry in %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

func (e *NetworkError) Error() string { return "network error" }
func (e *NetworkError) Unwrap() error { return e.Err }

// FromFields builds a ValidationError out of client-side field errors.
func FromFields(fields map[string]string) *ValidationError {
	raw, _ := json.Marshal(fields)
	return &ValidationError{Status: http.StatusBadRequest, Fields: fields, Raw: raw}
}

// FromResponse converts a non-2xx response into one of the tagged error types.
// op names the operation for default messages, e.g. "fetch students".
// structured is true for create & update operations.
func FromResponse(op string, status int, header http.Header, body []byte, structured bool) error {
	body = bytes.TrimSpace(body)

	if status == http.StatusTooManyRequests || bytes.Contains(bytes.ToLower(body), []byte("throttled")) {
		msg := extractMessage(body)
		if msg == "" {
			msg = "too many requests"
		}
		return &RateLimitError{Message: msg, RetryAfter: parseRetryAfter(header, body)}
	}

	if status == http.StatusUnauthorized {
		msg := extractMessage(body)
		if msg == "" {
			msg = ErrSessionExpired.Message
		}
		return &GenericError{Status: status, Message: msg}
	}

	if structured && status >= 400 && status < 500 {
		if obj, ok := parseObject(body); ok {
			return &ValidationError{Status: status, Fields: flattenFields(obj), Raw: compact(body)}
		}
	}

	msg := extractMessage(body)
	if msg == "" {
		msg = op + " failed"
	}
	return &GenericError{Status: status, Message: msg}
}

// Normalize converts any error into one of the tagged types.
// Already-tagged errors are unwrapped; otherwise the message is parsed as JSON and
// an object is kept as a ValidationError, anything else becomes a GenericError.
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	var (
		vErr  *ValidationError
		gErr  *GenericError
		rlErr *RateLimitError
		nErr  *NetworkError
	)
	switch {
	case errors.As(err, &vErr):
		return vErr
	case errors.As(err, &gErr):
		return gErr
	case errors.As(err, &rlErr):
		return rlErr
	case errors.As(err, &nErr):
		return nErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{Err: err}
	}

	msg := err.Error()
	if obj, ok := parseObject([]byte(msg)); ok {
		return &ValidationError{Fields: flattenFields(obj), Raw: compact([]byte(msg))}
	}
	return &GenericError{Message: msg}
}

// Flatten normalizes err and collapses a validation error into a flat message.
// Used for operations that never surface field errors (fetch, delete).
func Flatten(err error, op string) error {
	nErr := Normalize(err)
	vErr, ok := nErr.(*ValidationError)
	if !ok {
		return nErr
	}

	if msg := extractMessage(vErr.Raw); msg != "" {
		return &GenericError{Status: vErr.Status, Message: msg}
	}
	parts := make([]string, 0, len(vErr.Fields))
	for _, fld := range SortedFields(vErr.Fields) {
		parts = append(parts, fld+": "+vErr.Fields[fld])
	}
	if len(parts) == 0 {
		return &GenericError{Status: vErr.Status, Message: op + " failed"}
	}
	return &GenericError{Status: vErr.Status, Message: strings.Join(parts, "; ")}
}

// NormalizeValue normalizes a failure of unknown shape; non-errors are coerced to strings.
func NormalizeValue(v interface{}) error {
	switch val := v.(type) {
	case nil:
		return nil
	case error:
		return Normalize(val)
	case string:
		return &GenericError{Message: val}
	default:
		return &GenericError{Message: fmt.Sprint(val)}
	}
}

// Message returns the display form of err: a flat summary, or the serialized
// structured payload for validation errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return Normalize(err).Error()
}

// Fields returns the per-field messages of a validation error.
func Fields(err error) (map[string]string, bool) {
	var vErr *ValidationError
	if errors.As(Normalize(err), &vErr) {
		return vErr.Fields, true
	}
	return nil, false
}

func IsUnauthorized(err error) bool {
	var gErr *GenericError
	return errors.As(err, &gErr) && gErr.Status == http.StatusUnauthorized
}

func IsRateLimited(err error) (time.Duration, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter, true
	}
	return 0, false
}

func IsNetwork(err error) bool {
	var nErr *NetworkError
	return errors.As(err, &nErr)
}

// SortedFields returns the field names of a validation error in a stable order.
func SortedFields(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseObject(data []byte) (map[string]interface{}, bool) {
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func compact(data []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return json.RawMessage(data)
	}
	return buf.Bytes()
}

// flattenFields maps a validation body to {field: message}.
// {"field": "name", "message": "required"} is understood as a single field error.
func flattenFields(obj map[string]interface{}) map[string]string {
	if len(obj) == 2 {
		fld, okF := obj["field"].(string)
		msg, okM := obj["message"].(string)
		if okF && okM {
			return map[string]string{fld: msg}
		}
	}

	fields := make(map[string]string, len(obj))
	for key, val := range obj {
		fields[key] = stringify(val)
	}
	return fields
}

func stringify(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, "; ")
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if obj, ok := parseObject(body); ok {
		for _, key := range messageKeys {
			if val, ok := obj[key]; ok {
				if msg := stringify(val); msg != "" {
					return msg
				}
			}
		}
		return ""
	}
	var str string
	if err := json.Unmarshal(body, &str); err == nil {
		return str
	}
	if body[0] == '<' || body[0] == '[' || len(body) > maxPlainMessageLen {
		return ""
	}
	return string(body)
}

func parseRetryAfter(header http.Header, body []byte) time.Duration {
	if header != nil {
		if val := strings.TrimSpace(header.Get("Retry-After")); val != "" {
			if secs, err := strconv.Atoi(val); err == nil {
				return time.Duration(secs) * time.Second
			}
			if at, err := http.ParseTime(val); err == nil {
				if d := time.Until(at); d > 0 {
					return d.Round(time.Second)
				}
			}
		}
	}
	if m := retryAfterRegex.FindSubmatch(body); m != nil {
		if secs, err := strconv.Atoi(string(m[1])); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
