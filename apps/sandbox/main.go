// Command sandbox serves a local double of the Shuletrack REST backend.
//
//	sandbox [serve]            start the API (storage, envelope and throttling from the SANDBOX_* config)
//	sandbox migrate CMD [ARGS] run a goose command against the postgres database
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	echoapi "github.com/gachaupg/shuletrack/apps/sandbox/echo"
	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/document"
	appfs "github.com/gachaupg/shuletrack/fs"
	"github.com/gachaupg/shuletrack/storage/database"
)

const embeddedSeed = "seed/sandbox.yaml"

var errHelp = errors.New("help provided")

func main() {
	if err := run(os.Args); err != nil {
		if err != errHelp {
			log.Printf("error: %v", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  serve                 - start the sandbox API (default)")
	fmt.Println("  migrate CMD [ARGS...] - run a goose migration command (up, down, status, ...)")
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 1 {
		cmd = args[1]
	}

	switch cmd {
	case "serve":
		return newContainer(core.NewConfig).Invoke(startServer)
	case "migrate":
		if len(args) < 3 {
			printUsage()
			return errHelp
		}
		return migrate(core.NewConfig(), args[2], args[3:]...)
	default:
		printUsage()
		return errHelp
	}
}

func migrate(conf *core.Config, command string, args ...string) error {
	if err := database.CreateIfNotExist(conf); err != nil {
		return err
	}
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return database.Migrate(db.DB, command, args...)
}

// seed loads the fixtures: the configured file, or the embedded ones for in-memory storage.
func seed(conf *core.Config, docs document.Repository) error {
	ctx := context.Background()
	if conf.Sandbox.SeedFile != "" {
		f, err := os.Open(conf.Sandbox.SeedFile)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		return echoapi.Seed(ctx, docs, f)
	}
	if conf.Sandbox.Storage == "" || conf.Sandbox.Storage == "memory" {
		return echoapi.SeedFS(ctx, docs, appfs.FS, embeddedSeed)
	}
	return nil
}

func startServer(
	conf *core.Config,
	logger core.Logger,
	docs document.Repository,
	closer io.Closer,
	server *echoapi.Server,
) error {
	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Sandbox initializing : version %q, envelope %q", conf.Build, conf.Sandbox.Envelope))
	defer logger.Info("Sandbox stopped")
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	if err := seed(conf, docs); err != nil {
		return err
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Sandbox.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		return fmt.Errorf("server error: %w", err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Sandbox.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = server.Close(); err != nil {
				return fmt.Errorf("could not force stop server: %w", err)
			}
		}
	}
	return nil
}
