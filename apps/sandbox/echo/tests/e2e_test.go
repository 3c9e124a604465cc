package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/apierr"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/state"
	"github.com/gachaupg/shuletrack/core/student"
	"github.com/gachaupg/shuletrack/core/user"
	apisvc "github.com/gachaupg/shuletrack/services/api"
	sessionsvc "github.com/gachaupg/shuletrack/services/session"
	testutil "github.com/gachaupg/shuletrack/tests"
)

func newConsole(t *testing.T, sb *testutil.Sandbox) (*apisvc.Client, *sessionsvc.Session, *state.State) {
	t.Helper()
	sess := sessionsvc.New(sessionsvc.NewMemoryKV())
	logger := testutil.NewLogger(sb.Conf)
	client := apisvc.NewClient(sb.Conf, sess, logger, nil)
	return client, sess, state.New(client, logger)
}

func TestConsole_EndToEnd(t *testing.T) {
	for _, envelope := range []string{"bare", "data", "results"} {
		t.Run(envelope, func(t *testing.T) {
			ctx := context.Background()
			sb := testutil.NewSandbox(t, envelope)
			client, sess, st := newConsole(t, sb)

			_, err := client.Login(ctx, user.Credentials{Email: testutil.AdminEmail, Password: "wrong"})
			require.Error(t, err)
			assert.False(t, sess.IsAuthenticated())

			usr, err := client.Login(ctx, user.Credentials{Email: testutil.AdminEmail, Password: testutil.AdminPassword})
			require.NoError(t, err)
			assert.Equal(t, "Amina Otieno", usr.FullName())
			assert.True(t, sess.IsAuthenticated())
			require.Equal(t, testutil.SeededSchool, sess.School())
			scope := resource.Scope{School: sess.School()}

			// fetch
			students, err := st.Students.Fetch(ctx, scope)
			require.NoError(t, err)
			assert.Len(t, students, 2)
			assert.Equal(t, resource.StatusIdle, st.Students.Status())

			errs := st.LoadAll(ctx, scope, "grades", "trips", "plans")
			assert.Empty(t, errs)
			assert.Equal(t, 2, st.Grades.Len())
			assert.Equal(t, 1, st.Trips.Len())
			assert.Equal(t, 2, st.Plans.Len())

			// create
			grade, err := st.Grades.Create(ctx, student.Grade{Name: "Grade 6", Capacity: 45})
			require.NoError(t, err)
			assert.False(t, grade.ID.IsZero())
			assert.Equal(t, testutil.SeededSchool, grade.School)
			assert.Equal(t, 3, st.Grades.Len())

			_, err = st.Grades.Create(ctx, student.Grade{Capacity: 45})
			require.Error(t, err)
			fields, ok := apierr.Fields(err)
			require.True(t, ok)
			assert.Contains(t, fields, "name")
			assert.Equal(t, 3, st.Grades.Len())

			// update
			trip := st.Trips.Store().Items()[0]
			updated, err := st.Trips.Update(ctx, trip.ID, map[string]interface{}{"status": "ongoing"})
			require.NoError(t, err)
			assert.Equal(t, "ongoing", updated.Status)
			assert.Equal(t, trip.Route, updated.Route)
			cached, ok := st.Trips.Store().Get(trip.ID)
			require.True(t, ok)
			assert.Equal(t, "ongoing", cached.Status)

			// delete
			require.NoError(t, st.Grades.Delete(ctx, grade.ID))
			assert.Equal(t, 2, st.Grades.Len())
			err = st.Grades.Delete(ctx, grade.ID)
			require.Error(t, err)
			assert.Equal(t, "Not found.", apierr.Message(err))

			// rows for exports
			rows, err := st.Grades.Rows()
			require.NoError(t, err)
			assert.Len(t, rows, 2)
		})
	}
}

func TestConsole_TenantRequired(t *testing.T) {
	sb := testutil.NewSandbox(t, "results")
	_, _, st := newConsole(t, sb)

	_, err := st.Students.Fetch(context.Background(), resource.Scope{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resource.ErrTenantRequired))
}

func TestConsole_SessionExpired(t *testing.T) {
	ctx := context.Background()
	sb := testutil.NewSandbox(t, "results")
	_, sess, st := newConsole(t, sb)
	require.NoError(t, sess.SetAuth("garbage", user.User{Email: testutil.AdminEmail}))
	require.NoError(t, sess.SetSchool(testutil.SeededSchool))

	_, err := st.Students.Fetch(ctx, resource.Scope{School: sess.School()})
	require.Error(t, err)
	assert.True(t, apierr.IsUnauthorized(err))
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, resource.StatusError, st.Students.Status())
}

func TestConsole_RateLimited(t *testing.T) {
	ctx := context.Background()
	sb := testutil.NewSandbox(t, "results", func(conf *core.Config) {
		conf.Sandbox.RateLimit = 0.001
		conf.Sandbox.Burst = 1
	})
	client, _, st := newConsole(t, sb)

	_, err := client.Login(ctx, user.Credentials{Email: testutil.AdminEmail, Password: testutil.AdminPassword})
	require.NoError(t, err)

	_, err = st.Plans.Fetch(ctx, resource.Scope{})
	require.Error(t, err)
	wait, ok := apierr.IsRateLimited(err)
	require.True(t, ok, err.Error())
	assert.Greater(t, wait.Seconds(), float64(1))
	assert.Contains(t, err.Error(), "Request was throttled.")
}

func TestThrottle(t *testing.T) {
	sb := testutil.NewSandbox(t, "results", func(conf *core.Config) {
		conf.Sandbox.RateLimit = 0.001
		conf.Sandbox.Burst = 1
	})

	first := serve(sb, httpTest{method: http.MethodGet, path: "/api/plans/"})
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	rec := serve(sb, httpTest{method: http.MethodGet, path: "/api/plans/"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, decode(t, rec)["detail"], "Request was throttled. Expected available in")
}
