package sessionsvc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/user"
)

func testProfile() user.User {
	return user.User{
		Base:      resource.Base{ID: resource.IntID(4)},
		Email:     "admin@shule.test",
		FirstName: "Amina",
		LastName:  "Otieno",
		Role:      user.RoleAdmin,
		School:    null.IntFrom(5),
		IsActive:  true,
	}
}

func TestSession(t *testing.T) {
	stores := map[string]func(t *testing.T) KV{
		"memory": func(t *testing.T) KV { return NewMemoryKV() },
		"file": func(t *testing.T) KV {
			kv, err := NewFileKV(filepath.Join(t.TempDir(), "session.json"))
			require.NoError(t, err)
			return kv
		},
	}

	for name, newKV := range stores {
		t.Run(name, func(t *testing.T) {
			sess := New(newKV(t))
			assert.False(t, sess.IsAuthenticated())
			assert.False(t, sess.HasLoggedIn())
			assert.Equal(t, 0, sess.School())
			assert.Equal(t, user.DefaultPreferences(), sess.Preferences())

			require.NoError(t, sess.SetAuth("tok", testProfile()))
			assert.Equal(t, "tok", sess.Token())
			assert.True(t, sess.HasLoggedIn())
			profile, ok := sess.Profile()
			require.True(t, ok)
			assert.Equal(t, testProfile(), profile)
			assert.Equal(t, 5, sess.School(), "defaults to the profile's school")

			require.NoError(t, sess.SetSchool(9))
			assert.Equal(t, 9, sess.School())
			assert.Error(t, sess.SetSchool(0))

			prefs := user.Preferences{Theme: "dark", PageSize: 50}
			require.NoError(t, sess.SetPreferences(prefs))
			assert.Equal(t, prefs, sess.Preferences())

			require.NoError(t, sess.ClearAuth())
			assert.False(t, sess.IsAuthenticated())
			_, ok = sess.Profile()
			assert.False(t, ok)
			assert.True(t, sess.HasLoggedIn())
			assert.Equal(t, 9, sess.School())
			assert.Equal(t, prefs, sess.Preferences())
		})
	}
}

func TestFileKV_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	kv, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, New(kv).SetAuth("tok", testProfile()))
	require.NoError(t, New(kv).SetSchool(3))

	reopened, err := NewFileKV(path)
	require.NoError(t, err)
	sess := New(reopened)
	assert.Equal(t, "tok", sess.Token())
	assert.Equal(t, 3, sess.School())
	profile, ok := sess.Profile()
	require.True(t, ok)
	assert.Equal(t, "admin@shule.test", profile.Email)

	t.Run("requires a json file", func(t *testing.T) {
		_, err := NewFileKV(filepath.Join(t.TempDir(), "session.yaml"))
		assert.Error(t, err)
	})
}
