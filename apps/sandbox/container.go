package main

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/gachaupg/shuletrack/apps/sandbox/echo"
	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/document"
	"github.com/gachaupg/shuletrack/core/state"
	logsvc "github.com/gachaupg/shuletrack/services/logger"
	"github.com/gachaupg/shuletrack/storage/database"
	inmemdb "github.com/gachaupg/shuletrack/storage/database/inmem"
	sqlxrepos "github.com/gachaupg/shuletrack/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "SANDBOX : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newStorage returns the document repository selected by the sandbox config, and what closes it.
func newStorage(conf *core.Config, loggerParam DBLoggerParam) (document.Repository, io.Closer, error) {
	switch strings.ToLower(conf.Sandbox.Storage) {
	case "", "memory":
		loggerParam.Logger.Info("using in-memory storage")
		return inmemdb.NewDocumentRepository(inmemdb.Open()), nopCloser{}, nil
	case "postgres":
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, errors.Wrap(err, "setting up database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, errors.Wrap(err, "setting up database")
		}
		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		loggerParam.Logger.Info("using postgres storage: " + conf.Database.Address() + "/" + conf.Database.Name)
		return sqlxrepos.NewDocumentRepository(db), db, nil
	default:
		return nil, nil, errors.Errorf("unknown sandbox storage %q (memory, postgres)", conf.Sandbox.Storage)
	}
}

func newDeps(docs document.Repository) *echoapi.Deps {
	validate, translator := state.NewValidator()
	return &echoapi.Deps{Docs: docs, Validate: validate, Translator: translator}
}

func newOptions(conf *core.Config) *echoapi.Options {
	return &echoapi.Options{Address: conf.Sandbox.Host, DisableReqLogs: conf.TestMode}
}

// newContainer returns the dependency injection container of the sandbox.
func newContainer(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newDeps))
	must(c.Provide(newOptions))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
