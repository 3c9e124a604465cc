package state

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/apierr"
	"github.com/gachaupg/shuletrack/core/resource"
	logsvc "github.com/gachaupg/shuletrack/services/logger"
)

var fixtures = map[string]string{
	"/students/": `{"results":[
		{"id":1,"first_name":"Wanjiru","last_name":"Wanjiku","grade":10,"parent":20,"admission_number":"ADM-0001"},
		{"id":2,"first_name":"Baraka","last_name":"Ochieng","grade":99,"parent":null,"admission_number":"ADM-0002"}
	]}`,
	"/grades/":      `{"results":[{"id":10,"name":"Grade 4","capacity":40}]}`,
	"/parents/":     `{"results":[{"id":20,"first_name":"Mary","last_name":"Wanjiku"}]}`,
	"/route-stops/": `[{"id":31,"route":40,"name":"B","sequence":2,"is_pickup":true},{"id":30,"route":40,"name":"A","sequence":1,"is_pickup":true}]`,
	"/routes/":      `{"data":[{"id":40,"name":"Westlands Loop"}]}`,
	"/staff/":       `[{"id":50,"first_name":"Juma","last_name":"Mwangi","role":"assistant"}]`,
}

func newState(t *testing.T) (*State, *sync.Map) {
	t.Helper()
	conf := core.NewTestConfig("")
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	var seen sync.Map
	tr := resource.TransportFunc(func(ctx context.Context, req resource.Request) ([]byte, error) {
		seen.Store(req.Path, req.Query["school"])
		if body, ok := fixtures[req.Path]; ok {
			return []byte(body), nil
		}
		return nil, &apierr.GenericError{Status: 500, Message: "boom"}
	})
	return New(tr, logger), &seen
}

func TestState_Names(t *testing.T) {
	st, _ := newState(t)

	names := st.Names()
	assert.Len(t, names, 13)
	assert.IsIncreasing(t, names)
	for _, name := range names {
		h, ok := st.Handle(name)
		require.True(t, ok, name)
		assert.Equal(t, name, h.Descriptor().Name)
	}
	_, ok := st.Handle("buses")
	assert.False(t, ok)
}

func TestState_LoadAll(t *testing.T) {
	st, seen := newState(t)

	errs := st.LoadAll(context.Background(), resource.Scope{School: 5}, "students", "grades", "vehicles", "buses")
	require.Len(t, errs, 2)
	assert.EqualError(t, errs["vehicles"], "boom")
	assert.Contains(t, errs["buses"].Error(), "no such resource")

	school, _ := seen.Load("/students/")
	assert.Equal(t, "5", school)
	assert.Equal(t, 2, st.Students.Len())
	assert.Equal(t, resource.StatusError, st.Vehicles.Status())

	summary := st.Summary()
	assert.Equal(t, 2, summary["students"])
	assert.Equal(t, 1, summary["grades"])
	assert.Equal(t, 0, summary["vehicles"])
}

func TestState_LoadAllTenantRequired(t *testing.T) {
	st, _ := newState(t)

	errs := st.LoadAll(context.Background(), resource.Scope{}, "students", "plans")
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs["students"], resource.ErrTenantRequired))
	assert.Error(t, errs["plans"], "plans are not in the fixtures")
}

func TestState_Rows(t *testing.T) {
	st, _ := newState(t)
	errs := st.LoadAll(context.Background(), resource.Scope{School: 5}, "students", "grades", "parents", "route-stops", "routes", "staff")
	require.Empty(t, errs)

	t.Run("students", func(t *testing.T) {
		rows, err := st.Rows("students")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Wanjiru Wanjiku", rows[0]["name"])
		assert.Equal(t, "Grade 4", rows[0]["grade"])
		assert.Equal(t, "Mary Wanjiku", rows[0]["parent"])
		assert.Equal(t, "#99", rows[1]["grade"])
		assert.Equal(t, "", rows[1]["parent"])
	})

	t.Run("stops", func(t *testing.T) {
		rows, err := st.Rows("route-stops")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "A", rows[0]["name"])
		assert.Equal(t, "Westlands Loop", rows[0]["route"])
	})

	t.Run("staff", func(t *testing.T) {
		rows, err := st.Rows("staff")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Bus Assistant", rows[0]["role"])
	})

	t.Run("undecorated", func(t *testing.T) {
		rows, err := st.Rows("grades")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Grade 4", rows[0]["name"])
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := st.Rows("buses")
		assert.Error(t, err)
	})
}
