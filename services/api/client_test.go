package apisvc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/apierr"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/user"
	sessionsvc "github.com/gachaupg/shuletrack/services/session"
	"github.com/gachaupg/shuletrack/tests"
)

func setup(t *testing.T, handler http.HandlerFunc) (*Client, *sessionsvc.Session) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig(srv.URL + "/api")
	sess := sessionsvc.New(sessionsvc.NewMemoryKV())
	return NewClient(conf, sess, testutil.NewLogger(conf), nil), sess
}

func TestClient_Do(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	client, sess := setup(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":1}]}`))
	})
	require.NoError(t, sess.SetAuth("tok", user.User{}))

	req := resource.Request{
		Op: resource.OpCreate, Resource: "grades", Method: http.MethodPost, Path: "/grades/",
		Query: map[string]string{"school": "5"}, Body: map[string]interface{}{"name": "Grade 9"},
	}
	body, err := client.Do(context.Background(), req)
	require.NoError(t, err)

	assert.JSONEq(t, `{"results":[{"id":1}]}`, string(body))
	assert.Equal(t, "/api/grades/", got.URL.Path)
	assert.Equal(t, "5", got.URL.Query().Get("school"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	_, err = uuid.Parse(got.Header.Get("X-Request-ID"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"name":"Grade 9"}`, string(gotBody))
}

func TestClient_DoErrors(t *testing.T) {
	tests := []struct {
		name     string
		op       resource.Op
		status   int
		body     string
		header   map[string]string
		wantType interface{}
		wantMsg  string
	}{
		{name: "validation on create", op: resource.OpCreate, status: 400, body: `{"name":["required"]}`, wantType: &apierr.ValidationError{}, wantMsg: `{"name":["required"]}`},
		{name: "validation on delete is flat", op: resource.OpDelete, status: 400, body: `{"detail":"in use"}`, wantType: &apierr.GenericError{}, wantMsg: "in use"},
		{name: "server error", op: resource.OpFetch, status: 500, body: `oops`, wantType: &apierr.GenericError{}, wantMsg: "oops"},
		{name: "default message", op: resource.OpUpdate, status: 404, wantType: &apierr.GenericError{}, wantMsg: "update grades failed"},
		{
			name: "throttled", op: resource.OpFetch, status: 429, header: map[string]string{"Retry-After": "3"},
			body: `{"detail":"Request was throttled."}`, wantType: &apierr.RateLimitError{}, wantMsg: "Request was throttled. (retry in 3s)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Do(context.Background(), resource.Request{Op: tt.op, Resource: "grades", Method: http.MethodGet, Path: "/grades/"})
			require.Error(t, err)
			assert.IsType(t, tt.wantType, err)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestClient_Unauthorized(t *testing.T) {
	client, sess := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
	})
	require.NoError(t, sess.SetAuth("stale", user.User{Email: "a@b.test"}))
	require.NoError(t, sess.SetSchool(5))

	_, err := client.Do(context.Background(), resource.Request{Op: resource.OpFetch, Resource: "students", Method: http.MethodGet, Path: "/students/"})
	assert.Equal(t, apierr.ErrSessionExpired, err)
	assert.False(t, sess.IsAuthenticated())
	_, ok := sess.Profile()
	assert.False(t, ok)
	assert.True(t, sess.HasLoggedIn())
	assert.Equal(t, 5, sess.School())
}

func TestClient_Network(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig(srv.URL + "/api")
	conf.API.Timeout = 20 * time.Millisecond
	client := NewClient(conf, sessionsvc.New(sessionsvc.NewMemoryKV()), testutil.NewLogger(conf), nil)

	_, err := client.Do(context.Background(), resource.Request{Op: resource.OpFetch, Resource: "students", Method: http.MethodGet, Path: "/students/"})
	require.Error(t, err)
	assert.True(t, apierr.IsNetwork(err))
	assert.Equal(t, "network error", apierr.Message(err))
}

func TestClient_Login(t *testing.T) {
	profile := `{"id":4,"email":"admin@shule.test","first_name":"Amina","last_name":"Otieno","role":"admin","school":5,"is_active":true}`

	tests := []struct {
		name      string
		login     func(w http.ResponseWriter, r *http.Request)
		wantErr   string
		wantToken string
	}{
		{
			name: "token and user",
			login: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"token":"t1","user":` + profile + `}`))
			},
			wantToken: "t1",
		},
		{
			name: "access token then profile",
			login: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":{"access":"t2"}}`))
			},
			wantToken: "t2",
		},
		{
			name: "bad credentials",
			login: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"No active account found"}`))
			},
			wantErr: "invalid email or password",
		},
		{
			name: "no token",
			login: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ok":true}`))
			},
			wantErr: "login failed: no token in response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, sess := setup(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/auth/login/":
					var creds user.Credentials
					_ = json.NewDecoder(r.Body).Decode(&creds)
					assert.Equal(t, "admin@shule.test", creds.Email)
					tt.login(w, r)
				case "/api/auth/me/":
					assert.Equal(t, "Bearer "+tt.wantToken, r.Header.Get("Authorization"))
					_, _ = w.Write([]byte(profile))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			})

			usr, err := client.Login(context.Background(), user.Credentials{Email: "admin@shule.test", Password: "pwd"})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.False(t, sess.IsAuthenticated())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Amina Otieno", usr.FullName())
			assert.Equal(t, tt.wantToken, sess.Token())
			assert.Equal(t, 5, sess.School())
		})
	}
}

func TestClient_Me(t *testing.T) {
	client, sess := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":4,"email":"new@shule.test","role":"admin"}}`))
	})
	require.NoError(t, sess.SetAuth("tok", user.User{Email: "old@shule.test"}))

	usr, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new@shule.test", usr.Email)
	stored, _ := sess.Profile()
	assert.Equal(t, "new@shule.test", stored.Email)
}
