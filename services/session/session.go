package sessionsvc

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/user"
)

// keys
const (
	keyToken       = "token"
	keyHasLoggedIn = "has_logged_in"
	keySchool      = "school_id"
	keyPreferences = "preferences"
	keyUser        = "user"
)

// Session reads and writes the persisted session values.
// Values are trusted as stored until they are explicitly refreshed.
type Session struct {
	kv KV
}

func New(kv KV) *Session {
	return &Session{kv: kv}
}

// Open returns the session configured by conf: file-backed when a path is set, in-memory otherwise.
func Open(conf *core.Config) (*Session, error) {
	if conf.Session.Path == "" {
		return New(NewMemoryKV()), nil
	}
	kv, err := NewFileKV(conf.Session.Path)
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

func (s *Session) Token() string {
	token, _ := s.kv.Get(keyToken)
	return token
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// HasLoggedIn reports whether a login ever succeeded with this session store.
func (s *Session) HasLoggedIn() bool {
	val, _ := s.kv.Get(keyHasLoggedIn)
	ok, _ := strconv.ParseBool(val)
	return ok
}

// SetAuth stores the token and profile of a successful login.
func (s *Session) SetAuth(token string, profile user.User) error {
	if token == "" {
		return errors.New("sessionsvc.SetAuth: empty token")
	}
	if err := s.kv.Set(keyToken, token); err != nil {
		return err
	}
	if err := s.kv.Set(keyHasLoggedIn, "true"); err != nil {
		return err
	}
	return s.SetProfile(profile)
}

// ClearAuth forgets the token and profile. Preferences, active school and
// the logged-in-before flag are kept.
func (s *Session) ClearAuth() error {
	return s.kv.Delete(keyToken, keyUser)
}

func (s *Session) Profile() (user.User, bool) {
	var usr user.User
	raw, ok := s.kv.Get(keyUser)
	if !ok || raw == "" {
		return usr, false
	}
	if err := json.Unmarshal([]byte(raw), &usr); err != nil {
		return usr, false
	}
	return usr, true
}

func (s *Session) SetProfile(profile user.User) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return errors.Wrap(err, "sessionsvc.SetProfile")
	}
	return s.kv.Set(keyUser, string(data))
}

// School returns the active school: the selected one, or the profile's school.
// 0 means none.
func (s *Session) School() int {
	if raw, ok := s.kv.Get(keySchool); ok {
		if id, err := strconv.Atoi(raw); err == nil && id > 0 {
			return id
		}
	}
	if usr, ok := s.Profile(); ok && usr.School.Valid {
		return usr.School.Int
	}
	return 0
}

func (s *Session) SetSchool(id int) error {
	if id <= 0 {
		return errors.Errorf("sessionsvc.SetSchool: invalid school %d", id)
	}
	return s.kv.Set(keySchool, strconv.Itoa(id))
}

// Preferences returns the stored preferences over the defaults.
func (s *Session) Preferences() user.Preferences {
	prefs := user.DefaultPreferences()
	if raw, ok := s.kv.Get(keyPreferences); ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &prefs)
	}
	return prefs
}

func (s *Session) SetPreferences(prefs user.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return errors.Wrap(err, "sessionsvc.SetPreferences")
	}
	return s.kv.Set(keyPreferences, string(data))
}
