package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/gachaupg/shuletrack/tests"
)

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	token    string
	wantCode int
	wantData string // JSON; empty: body not checked
}

func newAuthRequest(method, path, token string, data ...string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.WriteString(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...string) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// login returns a token of the seeded account.
func login(t *testing.T, sb *testutil.Sandbox, email, pwd string) string {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/api/auth/login/", `{"email":"`+email+`","password":"`+pwd+`"}`)
	sb.Server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
		Data  struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if resp.Token == "" {
		resp.Token = resp.Data.Token
	}
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func serve(sb *testutil.Sandbox, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	sb.Server.ServeHTTP(rec, req)
	return rec
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != "" {
		assert.JSONEq(t, tt.wantData, rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obj), rec.Body.String())
	return obj
}
