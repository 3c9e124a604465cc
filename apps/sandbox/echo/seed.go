package echoapi

import (
	"context"
	"io"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gopkg.in/yaml.v3"

	"github.com/gachaupg/shuletrack/core/document"
	"github.com/gachaupg/shuletrack/core/user"
)

// refPrefix marks a reference to an item seeded earlier: "@grade-4" is replaced by that item's id.
const refPrefix = "@"

type (
	seedFile struct {
		Accounts  []seedAccount `yaml:"accounts"`
		Resources []seedGroup   `yaml:"resources"`
	}

	seedAccount struct {
		Email     string `yaml:"email"`
		Password  string `yaml:"password"`
		FirstName string `yaml:"first_name"`
		LastName  string `yaml:"last_name"`
		Phone     string `yaml:"phone"`
		Role      string `yaml:"role"`
		School    int    `yaml:"school"`
		Inactive  bool   `yaml:"inactive"`
	}

	seedGroup struct {
		Name  string                   `yaml:"name"`
		Items []map[string]interface{} `yaml:"items"`
	}
)

// SeedFS loads the YAML fixtures at name in fsys, see Seed.
func SeedFS(ctx context.Context, docs document.Repository, fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return errors.Wrap(err, "opening seed file")
	}
	defer func() { _ = f.Close() }()
	return Seed(ctx, docs, f)
}

// Seed creates the accounts and resource documents described by the YAML in r.
// Items may carry a "_key"; later string values "@<key>" are replaced by the id of that item.
func Seed(ctx context.Context, docs document.Repository, r io.Reader) error {
	var sf seedFile
	if err := yaml.NewDecoder(r).Decode(&sf); err != nil {
		return errors.Wrap(err, "decoding seed file")
	}

	for _, sa := range sf.Accounts {
		usr := user.User{
			Email:     sa.Email,
			FirstName: sa.FirstName,
			LastName:  sa.LastName,
			Phone:     sa.Phone,
			Role:      sa.Role,
			School:    null.NewInt(sa.School, sa.School > 0),
			IsActive:  !sa.Inactive,
		}
		if _, err := NewAccount(ctx, docs, usr, sa.Password); err != nil {
			return errors.Wrapf(err, "seeding account %s", sa.Email)
		}
	}

	keys := make(map[string]int64)
	for _, group := range sf.Resources {
		for i, item := range group.Items {
			key, _ := item["_key"].(string)
			delete(item, "_key")

			payload, err := toPayload(resolveRefs(item, keys))
			if err != nil {
				return errors.Wrapf(err, "seeding %s[%d]", group.Name, i)
			}
			var school int
			if v, ok := payload["school"].(float64); ok {
				school = int(v)
			}

			doc, err := docs.Create(ctx, document.FromJSON(group.Name, school, payload))
			if err != nil {
				return errors.Wrapf(err, "seeding %s[%d]", group.Name, i)
			}
			if key != "" {
				keys[key] = doc.ID
			}
		}
	}
	return nil
}

func resolveRefs(val interface{}, keys map[string]int64) interface{} {
	switch v := val.(type) {
	case string:
		if strings.HasPrefix(v, refPrefix) {
			if id, ok := keys[strings.TrimPrefix(v, refPrefix)]; ok {
				return id
			}
		}
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = resolveRefs(item, keys)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			out = append(out, resolveRefs(item, keys))
		}
		return out
	default:
		return v
	}
}
