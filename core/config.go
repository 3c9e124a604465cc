package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	APIConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	SessionConfig struct {
		Path string // empty: in-memory session
	}

	ExportConfig struct {
		Dir string
	}

	SandboxConfig struct {
		Host                      string
		DebugHost                 string
		Envelope                  string // bare | data | results
		RateLimit                 float64
		Burst                     int
		Storage                   string // memory | postgres
		SeedFile                  string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Config struct {
		AppName         string
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		WorkDir         string
		SecretKey       string
		RollbarToken    string
		SendgridApiKey  string
		FrontendBaseURL string

		API      APIConfig
		Session  SessionConfig
		Export   ExportConfig
		Sandbox  SandboxConfig
		Database DatabaseConfig

		defaultFromEmail string
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration from the environment.
// Variables are prefixed with the current ENV, e.g. DEV_API_BASEURL.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Shuletrack")
	conf.SetDefault("secretKey", "n7w!x2k$9p@shuletrack-dev-secret#4rq&z")
	conf.SetDefault("defaultFromEmail", "Shuletrack <noreply@localhost>")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")

	conf.SetDefault("api.baseURL", "http://localhost:8000/api")
	conf.SetDefault("api.timeout", 30*time.Second)
	conf.SetDefault("session.path", "")
	conf.SetDefault("export.dir", ".")

	conf.SetDefault("sandbox.host", ":8000")
	conf.SetDefault("sandbox.debugHost", ":4000")
	conf.SetDefault("sandbox.envelope", "results")
	conf.SetDefault("sandbox.rateLimit", 0.0)
	conf.SetDefault("sandbox.burst", 20)
	conf.SetDefault("sandbox.storage", "memory")
	conf.SetDefault("sandbox.seedFile", "")
	conf.SetDefault("sandbox.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("sandbox.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("sandbox.shutdownTimeout", 5*time.Second)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "shuletrack_sandbox")
	conf.SetDefault("database.user", "shuletrack")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		WorkDir:          workDir,
		SecretKey:        conf.GetString("secretKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		API: APIConfig{
			BaseURL: strings.TrimRight(conf.GetString("api.baseURL"), "/"),
			Timeout: conf.GetDuration("api.timeout"),
		},
		Session: SessionConfig{Path: conf.GetString("session.path")},
		Export:  ExportConfig{Dir: conf.GetString("export.dir")},
		Sandbox: SandboxConfig{
			Host:                      conf.GetString("sandbox.host"),
			DebugHost:                 conf.GetString("sandbox.debugHost"),
			Envelope:                  conf.GetString("sandbox.envelope"),
			RateLimit:                 conf.GetFloat64("sandbox.rateLimit"),
			Burst:                     conf.GetInt("sandbox.burst"),
			Storage:                   conf.GetString("sandbox.storage"),
			SeedFile:                  conf.GetString("sandbox.seedFile"),
			JWTExpirationDelta:        conf.GetDuration("sandbox.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("sandbox.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           conf.GetDuration("sandbox.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no env lookups, no remote services.
func NewTestConfig(apiBaseURL string) *Config {
	return &Config{
		AppName:          "Shuletrack",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		WorkDir:          Getwd(),
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: "Shuletrack <noreply@localhost>",
		API:              APIConfig{BaseURL: strings.TrimRight(apiBaseURL, "/"), Timeout: 5 * time.Second},
		Export:           ExportConfig{Dir: os.TempDir()},
		Sandbox: SandboxConfig{
			Envelope:                  "results",
			Burst:                     20,
			Storage:                   "memory",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			ShutdownTimeout:           time.Second,
		},
	}
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the package being tested, so we walk up from there.
// Falls back to the current working directory when no root is found (installed binaries).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

func (conf *Config) String() string {
	return fmt.Sprintf("%s (%s, build %s)", conf.AppName, conf.Env, conf.Build)
}
