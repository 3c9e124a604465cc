package resource

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/volatiletech/null/v8"
)

// ID is a server assigned identifier. The backend may use numbers or strings;
// an id is written back in the JSON form it was read in.
type ID struct {
	val string
	num bool
}

func IntID(n int) ID { return ID{val: strconv.Itoa(n), num: true} }

// StringID returns an id written as a JSON string, whatever its text.
func StringID(s string) ID { return ID{val: s} }

// ParseID reads an id typed by a user: canonical integers are numeric, anything else is a string.
func ParseID(s string) ID {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && strconv.Itoa(n) == s {
		return IntID(n)
	}
	return StringID(s)
}

// RefID converts a nullable foreign reference into an ID (zero when unset).
func RefID(ref null.Int) ID {
	if !ref.Valid {
		return ID{}
	}
	return IntID(ref.Int)
}

func (id ID) String() string { return id.val }
func (id ID) IsZero() bool   { return id.val == "" }
func (id ID) IsNumber() bool { return id.num }

// Equal compares ids by text, so the string "12" and the number 12 are the same entity.
func (id ID) Equal(other ID) bool { return id.val == other.val }

// Int returns the numeric value of id, ok is false for non numeric ids.
func (id ID) Int() (int, bool) {
	n, err := strconv.Atoi(id.val)
	return n, err == nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.val == "":
		return []byte("null"), nil
	case id.num:
		return []byte(id.val), nil
	default:
		return json.Marshal(id.val)
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID{val: n.String(), num: true}
	return nil
}

// Entity is anything held by a Store.
type Entity interface {
	Key() ID
}

// Base carries the identifier of an entity; embed it in every resource type.
type Base struct {
	ID ID `json:"id,omitempty"`
}

func (b Base) Key() ID { return b.ID }
