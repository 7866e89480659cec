// Package config builds the CLI configuration from defaults, an optional JSON
// file, GOPHAUTH_CLI_* environment variables and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for the GophAuth CLI.
//
// Fields:
//   - ServerURL: base URL of the HTTP API.
//   - RequestTimeout: deadline applied to every API call.
//   - SessionPath: SQLite file that keeps the tokens between runs.
type Config struct {
	ServerURL      string        `env:"GOPHAUTH_CLI_SERVER_URL"`
	RequestTimeout time.Duration `env:"GOPHAUTH_CLI_REQUEST_TIMEOUT"`
	SessionPath    string        `env:"GOPHAUTH_CLI_SESSION_PATH"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.SessionPath = "session.db"
}

// Validate reports settings the CLI cannot run with.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server url %q must be an absolute http(s) url", c.ServerURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.SessionPath == "" {
		errs = append(errs, errors.New("session path must not be empty"))
	}
	return errors.Join(errs...)
}

// Load builds a Config from args (without the program name) and environ.
func Load(args []string, environ map[string]string) (Config, error) {
	var cfg Config
	cfg.LoadDefaults()

	if err := parseJson(&cfg, args); err != nil {
		return Config{}, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := parseFlags(&cfg, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads the process arguments and environment.
func LoadConfig() (Config, error) {
	return Load(os.Args[1:], env.ToMap(os.Environ()))
}
