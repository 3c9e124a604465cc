package main

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/state"
	apisvc "github.com/gachaupg/shuletrack/services/api"
	emailsvc "github.com/gachaupg/shuletrack/services/email"
	logsvc "github.com/gachaupg/shuletrack/services/logger"
	sessionsvc "github.com/gachaupg/shuletrack/services/session"
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stderr, "CONSOLE : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newClient(conf *core.Config, session *sessionsvc.Session, logger core.Logger) *apisvc.Client {
	return apisvc.NewClient(conf, session, logger, nil)
}

func newTransport(client *apisvc.Client) resource.Transport {
	return client
}

// newMailer sends through sendgrid when an API key is configured, and prints messages otherwise.
func newMailer(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, os.Stdout)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newCommandLine(
	conf *core.Config,
	logger core.Logger,
	session *sessionsvc.Session,
	client *apisvc.Client,
	st *state.State,
	mailer core.EmailService,
) *commandLine {
	return &commandLine{
		conf:    conf,
		logger:  logger,
		session: session,
		client:  client,
		state:   st,
		mailer:  mailer,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

// newContainer returns the dependency injection container of the console.
func newContainer(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(sessionsvc.Open))
	must(c.Provide(newClient))
	must(c.Provide(newTransport))
	must(c.Provide(state.New))
	must(c.Provide(newMailer))
	must(c.Provide(newCommandLine))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
