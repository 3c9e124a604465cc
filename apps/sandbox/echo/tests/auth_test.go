package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/gachaupg/shuletrack/apps/sandbox/echo"
	"github.com/gachaupg/shuletrack/core/user"
	testutil "github.com/gachaupg/shuletrack/tests"
)

func TestAuth_Login(t *testing.T) {
	sb := testutil.NewSandbox(t, "results")

	tests := []httpTest{
		{
			name:     "bad password",
			method:   http.MethodPost,
			path:     "/api/auth/login/",
			body:     `{"email":"admin@shule.test","password":"nope"}`,
			wantCode: http.StatusUnauthorized,
			wantData: `{"detail":"No active account found with the given credentials."}`,
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/api/auth/login/",
			body:     `{"email":"ghost@shule.test","password":"nope"}`,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "deactivated",
			method:   http.MethodPost,
			path:     "/api/auth/login/",
			body:     `{"email":"` + testutil.InactiveEmail + `","password":"` + testutil.InactivePassword + `"}`,
			wantCode: http.StatusForbidden,
			wantData: `{"detail":"account deactivated"}`,
		},
		{
			name:     "invalid payload",
			method:   http.MethodPost,
			path:     "/api/auth/login/",
			body:     `{"email":"not-an-email"}`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(sb, tt))
		})
	}

	t.Run("success", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost,
			path:   "/api/auth/login/",
			body:   `{"email":" Admin@Shule.test ","password":"` + testutil.AdminPassword + `"}`,
		}
		rec := serve(sb, tt)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode(t, rec)
		assert.NotEmpty(t, resp["token"])
		profile, ok := resp["user"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "admin@shule.test", profile["email"])
		assert.Equal(t, float64(testutil.SeededSchool), profile["school"])
		assert.NotNil(t, profile["last_login"])
		assert.NotContains(t, profile, "password_hash")
	})

	t.Run("field errors", func(t *testing.T) {
		rec := serve(sb, httpTest{method: http.MethodPost, path: "/api/auth/login/", body: `{}`})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		fields := decode(t, rec)
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "password")
	})
}

func TestAuth_Me(t *testing.T) {
	for _, envelope := range []string{"bare", "data", "results"} {
		t.Run(envelope, func(t *testing.T) {
			sb := testutil.NewSandbox(t, envelope)
			token := login(t, sb, testutil.AccountantEmail, testutil.AccountantPassword)

			rec := serve(sb, httpTest{method: http.MethodGet, path: "/api/auth/me/", token: token})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			profile := decode(t, rec)
			if envelope == "data" {
				profile = profile["data"].(map[string]interface{})
			}
			assert.Equal(t, testutil.AccountantEmail, profile["email"])
			assert.Equal(t, user.RoleAccountant, profile["role"])
		})
	}

	sb := testutil.NewSandbox(t, "results")
	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/api/auth/me/",
			wantCode: http.StatusUnauthorized,
			wantData: `{"detail":"Authentication credentials were not provided."}`,
		},
		{
			name:     "bad token",
			method:   http.MethodGet,
			path:     "/api/auth/me/",
			token:    "garbage",
			wantCode: http.StatusUnauthorized,
			wantData: `{"detail":"invalid or expired jwt"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(sb, tt))
		})
	}
}

func TestAuth_Refresh(t *testing.T) {
	sb := testutil.NewSandbox(t, "results")
	token := login(t, sb, testutil.AdminEmail, testutil.AdminPassword)

	rec := serve(sb, httpTest{method: http.MethodPost, path: "/api/auth/refresh/", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["token"])

	// refresh window elapsed
	me := serve(sb, httpTest{method: http.MethodGet, path: "/api/auth/me/", token: token})
	require.Equal(t, http.StatusOK, me.Code)
	var usr user.User
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &usr))
	require.False(t, usr.ID.IsZero())
	stale, err := echoapi.GenerateToken(sb.Conf, echoapi.GetUserClaims(sb.Conf, usr, time.Now().Add(-48*time.Hour).Unix()))
	require.NoError(t, err)
	tt := httpTest{method: http.MethodPost, path: "/api/auth/refresh/", token: stale, wantCode: http.StatusForbidden, wantData: `{"detail":"refresh has expired"}`}
	checkCodeAndData(t, tt, serve(sb, tt))
}
