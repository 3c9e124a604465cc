package testutil

import (
	"context"
	"net/http/httptest"
	"testing"

	echoapi "github.com/gachaupg/shuletrack/apps/sandbox/echo"
	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/document"
	"github.com/gachaupg/shuletrack/core/state"
	appfs "github.com/gachaupg/shuletrack/fs"
	inmemdb "github.com/gachaupg/shuletrack/storage/database/inmem"
)

// Seeded accounts, see fs/seed/sandbox.yaml
const (
	AdminEmail         = "admin@shule.test"
	AdminPassword      = "shule-admin-pwd"
	AccountantEmail    = "accounts@shule.test"
	AccountantPassword = "shule-accounts-pwd"
	InactiveEmail      = "former@shule.test"
	InactivePassword   = "shule-former-pwd"
	SeededSchool       = 5
)

type Sandbox struct {
	Conf   *core.Config
	Docs   document.Repository
	Server *echoapi.Server
	HTTP   *httptest.Server
}

// NewSandbox serves a seeded in-memory sandbox API using the given envelope ("bare", "data", "results").
// Conf.API.BaseURL points at it. Options adjust the config before the server is built.
func NewSandbox(t *testing.T, envelope string, options ...func(*core.Config)) *Sandbox {
	t.Helper()

	conf := core.NewTestConfig("")
	conf.Sandbox.Envelope = envelope
	for _, opt := range options {
		opt(conf)
	}

	docs := inmemdb.NewDocumentRepository(inmemdb.Open())
	if err := echoapi.SeedFS(context.Background(), docs, appfs.FS, "seed/sandbox.yaml"); err != nil {
		t.Fatalf("NewSandbox(): seeding: %v", err)
	}

	validate, translator := state.NewValidator()
	server := echoapi.NewServer(conf, NewLogger(conf), &echoapi.Options{DisableReqLogs: true}, &echoapi.Deps{
		Docs:       docs,
		Validate:   validate,
		Translator: translator,
	})

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)
	conf.API.BaseURL = srv.URL + "/api"

	return &Sandbox{Conf: conf, Docs: docs, Server: server, HTTP: srv}
}
