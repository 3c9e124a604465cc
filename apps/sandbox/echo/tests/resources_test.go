package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/gachaupg/shuletrack/tests"
)

func results(t *testing.T, rec *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items, ok := decode(t, rec)["results"].([]interface{})
	require.True(t, ok, rec.Body.String())
	return items
}

func TestResources_List(t *testing.T) {
	sb := testutil.NewSandbox(t, "results")
	admin := login(t, sb, testutil.AdminEmail, testutil.AdminPassword)
	accountant := login(t, sb, testutil.AccountantEmail, testutil.AccountantPassword)

	tests := []struct {
		name      string
		path      string
		token     string
		wantCount int
	}{
		{name: "school param", path: "/api/students/?school=5", token: admin, wantCount: 2},
		{name: "other school", path: "/api/students/?school=6", token: admin, wantCount: 1},
		{name: "token school", path: "/api/students/", token: accountant, wantCount: 2},
		{name: "unscoped", path: "/api/plans/", token: accountant, wantCount: 2},
		{name: "stops", path: "/api/route-stops/", token: admin, wantCount: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(sb, httpTest{method: http.MethodGet, path: tt.path, token: tt.token})
			items := results(t, rec)
			assert.Len(t, items, tt.wantCount)
			assert.Equal(t, float64(tt.wantCount), decode(t, rec)["count"])
		})
	}

	t.Run("ordering", func(t *testing.T) {
		rec := serve(sb, httpTest{method: http.MethodGet, path: "/api/grades/?ordering=-capacity", token: admin})
		items := results(t, rec)
		require.Len(t, items, 2)
		assert.Equal(t, "Grade 4", items[0].(map[string]interface{})["name"])
		assert.Equal(t, "PP2", items[1].(map[string]interface{})["name"])
	})

	t.Run("seed references", func(t *testing.T) {
		grades := results(t, serve(sb, httpTest{method: http.MethodGet, path: "/api/grades/?ordering=name", token: admin}))
		students := results(t, serve(sb, httpTest{method: http.MethodGet, path: "/api/students/?ordering=admission_number", token: admin}))
		require.Len(t, grades, 2)
		require.Len(t, students, 2)
		// "Grade 4" sorts before "PP2"
		assert.Equal(t, grades[0].(map[string]interface{})["id"], students[0].(map[string]interface{})["grade"])
	})

	errTests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/api/students/",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "invalid ordering",
			method:   http.MethodGet,
			path:     "/api/students/?ordering=first-name",
			token:    admin,
			wantCode: http.StatusBadRequest,
			wantData: `{"ordering":"invalid ordering"}`,
		},
		{
			name:     "invalid school",
			method:   http.MethodGet,
			path:     "/api/students/?school=abc",
			token:    admin,
			wantCode: http.StatusBadRequest,
			wantData: `{"school":"invalid school"}`,
		},
		{
			name:     "foreign school",
			method:   http.MethodGet,
			path:     "/api/students/?school=6",
			token:    accountant,
			wantCode: http.StatusForbidden,
			wantData: `{"detail":"You do not have permission to perform this action."}`,
		},
		{
			name:     "unknown resource",
			method:   http.MethodGet,
			path:     "/api/buses/",
			token:    admin,
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(sb, tt))
		})
	}
}

func TestResources_Write(t *testing.T) {
	sb := testutil.NewSandbox(t, "results")
	admin := login(t, sb, testutil.AdminEmail, testutil.AdminPassword)
	accountant := login(t, sb, testutil.AccountantEmail, testutil.AccountantPassword)

	t.Run("create validation", func(t *testing.T) {
		tt := httpTest{
			method:   http.MethodPost,
			path:     "/api/grades/",
			body:     `{"name":"  ","capacity":40}`,
			token:    admin,
			wantCode: http.StatusBadRequest,
		}
		rec := serve(sb, tt)
		checkCodeAndData(t, tt, rec)
		assert.Contains(t, decode(t, rec), "name")
	})

	t.Run("create type error", func(t *testing.T) {
		tt := httpTest{
			method:   http.MethodPost,
			path:     "/api/grades/",
			body:     `{"name":"Grade 5","capacity":"many"}`,
			token:    admin,
			wantCode: http.StatusBadRequest,
			wantData: `{"capacity":"invalid value"}`,
		}
		checkCodeAndData(t, tt, serve(sb, tt))
	})

	var gradeID float64
	t.Run("create", func(t *testing.T) {
		rec := serve(sb, httpTest{method: http.MethodPost, path: "/api/grades/", body: `{"name":"Grade 5","capacity":38}`, token: admin})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		grade := decode(t, rec)
		assert.Equal(t, "Grade 5", grade["name"])
		assert.Equal(t, float64(testutil.SeededSchool), grade["school"])
		gradeID = grade["id"].(float64)
		assert.NotZero(t, gradeID)
	})

	path := fmt.Sprintf("/api/grades/%d/", int(gradeID))

	t.Run("patch", func(t *testing.T) {
		rec := serve(sb, httpTest{method: http.MethodPatch, path: path, body: `{"capacity":42}`, token: admin})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		grade := decode(t, rec)
		assert.Equal(t, "Grade 5", grade["name"])
		assert.Equal(t, float64(42), grade["capacity"])
	})

	t.Run("replace", func(t *testing.T) {
		rec := serve(sb, httpTest{method: http.MethodPut, path: path, body: `{"name":"Grade Five","capacity":10,"school":6}`, token: admin})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		grade := decode(t, rec)
		assert.Equal(t, "Grade Five", grade["name"])
		assert.NotContains(t, grade, "description")
		assert.Equal(t, float64(testutil.SeededSchool), grade["school"], "school is kept")
	})

	t.Run("accountant cannot write grades", func(t *testing.T) {
		tt := httpTest{method: http.MethodPatch, path: path, body: `{"capacity":1}`, token: accountant, wantCode: http.StatusForbidden}
		checkCodeAndData(t, tt, serve(sb, tt))
	})

	t.Run("delete", func(t *testing.T) {
		rec := serve(sb, httpTest{method: http.MethodDelete, path: path, token: admin})
		assert.Equal(t, http.StatusNoContent, rec.Code)

		tt := httpTest{method: http.MethodGet, path: path, token: admin, wantCode: http.StatusNotFound, wantData: `{"detail":"Not found."}`}
		checkCodeAndData(t, tt, serve(sb, tt))
	})

	t.Run("accountant invoices", func(t *testing.T) {
		subs := results(t, serve(sb, httpTest{method: http.MethodGet, path: "/api/subscriptions/", token: accountant}))
		require.Len(t, subs, 1)
		body := fmt.Sprintf(`{"number":"INV-2026-002","subscription":%v,"amount":60000,"currency":"KES","status":"pending","issue_date":"2026-02-01","due_date":"2026-02-28"}`,
			subs[0].(map[string]interface{})["id"])
		rec := serve(sb, httpTest{method: http.MethodPost, path: "/api/invoices/", body: body, token: accountant})
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("accountant cannot write vehicles", func(t *testing.T) {
		tt := httpTest{
			method:   http.MethodPost,
			path:     "/api/vehicles/",
			body:     `{"registration_number":"KCC 789C","capacity":14,"status":"active"}`,
			token:    accountant,
			wantCode: http.StatusForbidden,
		}
		checkCodeAndData(t, tt, serve(sb, tt))
	})
}

func TestResources_TenantIsolation(t *testing.T) {
	sb := testutil.NewSandbox(t, "results")
	admin := login(t, sb, testutil.AdminEmail, testutil.AdminPassword)
	accountant := login(t, sb, testutil.AccountantEmail, testutil.AccountantPassword)

	students := results(t, serve(sb, httpTest{method: http.MethodGet, path: "/api/students/?school=6", token: admin}))
	require.Len(t, students, 1)
	path := fmt.Sprintf("/api/students/%v/", students[0].(map[string]interface{})["id"])

	rec := serve(sb, httpTest{method: http.MethodGet, path: path, token: admin})
	assert.Equal(t, http.StatusOK, rec.Code)

	tt := httpTest{method: http.MethodGet, path: path, token: accountant, wantCode: http.StatusNotFound}
	checkCodeAndData(t, tt, serve(sb, tt))
}

func TestResources_Envelopes(t *testing.T) {
	tests := []struct {
		envelope string
		items    func(t *testing.T, body interface{}) interface{}
	}{
		{
			envelope: "bare",
			items:    func(t *testing.T, body interface{}) interface{} { return body },
		},
		{
			envelope: "data",
			items: func(t *testing.T, body interface{}) interface{} {
				require.IsType(t, map[string]interface{}{}, body)
				return body.(map[string]interface{})["data"]
			},
		},
		{
			envelope: "results",
			items: func(t *testing.T, body interface{}) interface{} {
				require.IsType(t, map[string]interface{}{}, body)
				obj := body.(map[string]interface{})
				assert.Equal(t, float64(1), obj["count"])
				assert.Nil(t, obj["next"])
				return obj["results"]
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.envelope, func(t *testing.T) {
			sb := testutil.NewSandbox(t, tt.envelope)
			admin := login(t, sb, testutil.AdminEmail, testutil.AdminPassword)

			rec := serve(sb, httpTest{method: http.MethodGet, path: "/api/contact-messages/", token: admin})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var body interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			items, ok := tt.items(t, body).([]interface{})
			require.True(t, ok, rec.Body.String())
			require.Len(t, items, 1)
			assert.Equal(t, "Demo request", items[0].(map[string]interface{})["subject"])
		})
	}
}
