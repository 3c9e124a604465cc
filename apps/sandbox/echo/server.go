// Package echoapi is a REST double of the Shuletrack backend: bearer auth, tenant-scoped
// resources, field validation errors, envelopes and throttling.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/document"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
	}

	Deps struct {
		Docs       document.Repository
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		conf     *core.Config
		logger   core.Logger
		opts     *Options
		deps     *Deps
		app      *echo.Echo
		envelope envelope
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(conf *core.Config, logger core.Logger, opts *Options, deps *Deps) *Server {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(opts, "opts"),
		vala.IsNotNil(deps, "deps"),
	).Check()
	if err != nil {
		panic(err)
	}
	err = vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Docs, "deps.Docs"),
		vala.IsNotNil(deps.Validate, "deps.Validate"),
		vala.IsNotNil(deps.Translator, "deps.Translator"),
	).Check()
	if err != nil {
		panic(err)
	}

	s := &Server{
		conf:     conf,
		logger:   logger,
		opts:     opts,
		deps:     deps,
		app:      echo.New(),
		envelope: parseEnvelope(conf.Sandbox.Envelope),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", home)

	api := s.app.Group("/api", throttleMiddleware(s.conf.Sandbox.RateLimit, s.conf.Sandbox.Burst))
	jwt := middleware.JWTWithConfig(newJWTConfig(s.conf))

	registerAuthAPI(api, jwt, s.conf, s.deps, s.envelope)
	registerResourceAPI(api, jwt, s.deps, s.envelope)
}

// Start blocks until the server stops. Errors other than a clean shutdown are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the main goroutine to shut the server down.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Shuletrack sandbox API")
}
