package apierr

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse(t *testing.T) {
	retryHeader := http.Header{}
	retryHeader.Set("Retry-After", "12")

	tests := []struct {
		name       string
		op         string
		status     int
		header     http.Header
		body       string
		structured bool
		wantType   interface{}
		wantMsg    string
		wantRetry  time.Duration
	}{
		{
			name: "structured validation body", op: "create students", status: 400,
			body: `{"first_name": ["This field is required."]}`, structured: true,
			wantType: &ValidationError{}, wantMsg: `{"first_name":["This field is required."]}`,
		},
		{
			name: "validation body on delete is flat", op: "delete students", status: 400,
			body: `{"detail": "student has trips"}`,
			wantType: &GenericError{}, wantMsg: "student has trips",
		},
		{
			name: "server error with detail", op: "create students", status: 500,
			body: `{"detail": "database unavailable"}`, structured: true,
			wantType: &GenericError{}, wantMsg: "database unavailable",
		},
		{
			name: "html error page", op: "fetch trips", status: 502,
			body: `<html><body>Bad gateway</body></html>`,
			wantType: &GenericError{}, wantMsg: "fetch trips failed",
		},
		{
			name: "plain text", op: "fetch trips", status: 503,
			body: `service unavailable`,
			wantType: &GenericError{}, wantMsg: "service unavailable",
		},
		{
			name: "empty body", op: "update vehicles", status: 404,
			wantType: &GenericError{}, wantMsg: "update vehicles failed",
		},
		{
			name: "unauthorized", op: "fetch students", status: 401,
			wantType: &GenericError{}, wantMsg: ErrSessionExpired.Message,
		},
		{
			name: "429 with header", op: "fetch students", status: 429, header: retryHeader,
			body: `{"detail": "Request was throttled."}`,
			wantType: &RateLimitError{}, wantMsg: "Request was throttled. (retry in 12s)", wantRetry: 12 * time.Second,
		},
		{
			name: "throttled marker in body", op: "create students", status: 400, structured: true,
			body: `{"detail": "Request was throttled. Expected available in 7 seconds."}`,
			wantType: &RateLimitError{}, wantMsg: "Request was throttled. Expected available in 7 seconds. (retry in 7s)", wantRetry: 7 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromResponse(tt.op, tt.status, tt.header, []byte(tt.body), tt.structured)
			require.Error(t, err)
			assert.IsType(t, tt.wantType, err)
			assert.Equal(t, tt.wantMsg, err.Error())

			retry, limited := IsRateLimited(err)
			assert.Equal(t, tt.wantRetry > 0, limited)
			assert.Equal(t, tt.wantRetry, retry)
		})
	}
}

func TestValidationRoundTrip(t *testing.T) {
	body := []byte(`{"field": "name", "message": "required"}`)
	err := FromResponse("create grades", http.StatusBadRequest, nil, body, true)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Message(err)), &got))
	assert.Equal(t, map[string]interface{}{"field": "name", "message": "required"}, got)

	fields, ok := Fields(err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"name": "required"}, fields)
}

func TestNormalize(t *testing.T) {
	vErr := FromFields(map[string]string{"name": "required"})

	tests := []struct {
		name     string
		err      error
		wantType interface{}
		wantMsg  string
	}{
		{name: "wrapped validation error", err: errors.Wrap(vErr, "create"), wantType: &ValidationError{}, wantMsg: `{"name":"required"}`},
		{name: "json object message", err: errors.New(`{"email": "invalid"}`), wantType: &ValidationError{}, wantMsg: `{"email":"invalid"}`},
		{name: "json array message", err: errors.New(`["a","b"]`), wantType: &GenericError{}, wantMsg: `["a","b"]`},
		{name: "plain message", err: errors.New("boom"), wantType: &GenericError{}, wantMsg: "boom"},
		{name: "deadline", err: context.DeadlineExceeded, wantType: &NetworkError{}, wantMsg: "network error"},
		{name: "rate limit", err: &RateLimitError{Message: "slow down"}, wantType: &RateLimitError{}, wantMsg: "slow down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.err)
			assert.IsType(t, tt.wantType, got)
			assert.Equal(t, tt.wantMsg, got.Error())
		})
	}

	assert.Nil(t, Normalize(nil))
}

func TestNormalizeValue(t *testing.T) {
	assert.Nil(t, NormalizeValue(nil))
	assert.Equal(t, "oops", NormalizeValue("oops").Error())
	assert.Equal(t, "42", NormalizeValue(42).Error())
	assert.Equal(t, "boom", NormalizeValue(errors.New("boom")).Error())
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "detail wins", err: &ValidationError{Raw: []byte(`{"detail":"in use"}`), Fields: map[string]string{"detail": "in use"}}, wantMsg: "in use"},
		{name: "fields joined", err: FromFields(map[string]string{"b": "two", "a": "one"}), wantMsg: "a: one; b: two"},
		{name: "generic untouched", err: &GenericError{Message: "nope"}, wantMsg: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.err, "delete grades")
			assert.IsType(t, &GenericError{}, got)
			assert.Equal(t, tt.wantMsg, got.Error())
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(ErrSessionExpired))
	assert.True(t, IsUnauthorized(errors.Wrap(FromResponse("fetch", 401, nil, nil, false), "ctx")))
	assert.False(t, IsUnauthorized(&GenericError{Status: 403, Message: "forbidden"}))
}
