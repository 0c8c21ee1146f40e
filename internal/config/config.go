// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package config defines Doorman's runtime configuration and how it is
// assembled from defaults, a YAML file, the environment and command-line
// flags.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Email providers.
const (
	EmailProviderLog      = "log"
	EmailProviderPostmark = "postmark"
)

// Config is the full server configuration.
type Config struct {
	Env      string         `koanf:"env" yaml:"env"`
	HTTP     HTTPConfig     `koanf:"http" yaml:"http"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Session  SessionConfig  `koanf:"session" yaml:"session"`
	Email    EmailConfig    `koanf:"email" yaml:"email"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics"`
}

// HTTPConfig configures the API listener and link construction.
type HTTPConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
	// PublicURL is the origin used in emailed links. When empty the
	// request's scheme and host are used, which Validate only allows
	// outside production.
	PublicURL         string        `koanf:"public_url" yaml:"public_url"`
	VerifyPath        string        `koanf:"verify_path" yaml:"verify_path"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string `koanf:"url" yaml:"url"`
	MaxConns        int32  `koanf:"max_conns" yaml:"max_conns"`
	ConnectAttempts uint64 `koanf:"connect_attempts" yaml:"connect_attempts"`
	AutoMigrate     bool   `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// SessionConfig configures session cookies and cleanup.
type SessionConfig struct {
	CookieName    string        `koanf:"cookie_name" yaml:"cookie_name"`
	TTL           time.Duration `koanf:"ttl" yaml:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval" yaml:"sweep_interval"`
}

// EmailConfig selects and configures the outbound mail provider.
type EmailConfig struct {
	Provider      string `koanf:"provider" yaml:"provider"`
	From          string `koanf:"from" yaml:"from"`
	PostmarkToken string `koanf:"postmark_token" yaml:"postmark_token"`
	PostmarkURL   string `koanf:"postmark_url" yaml:"postmark_url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Addr:              ":3000",
			VerifyPath:        "/auth/verify",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
		},
		Session: SessionConfig{
			CookieName:    "session",
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Email: EmailConfig{
			Provider:    EmailProviderLog,
			From:        "no-reply@localhost",
			PostmarkURL: "https://api.postmarkapp.com",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// IsProduction reports whether the server runs in production mode, which
// marks session cookies Secure.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var problems []string

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		problems = append(problems, "env must be development or production")
	}
	if c.HTTP.Addr == "" {
		problems = append(problems, "http.addr is required")
	}
	if c.HTTP.PublicURL != "" {
		u, err := url.Parse(c.HTTP.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, "http.public_url must be an absolute URL")
		}
	}
	if !strings.HasPrefix(c.HTTP.VerifyPath, "/") {
		problems = append(problems, "http.verify_path must start with /")
	}
	if c.Database.URL == "" {
		problems = append(problems, "database.url is required")
	}
	if c.Database.MaxConns < 1 {
		problems = append(problems, "database.max_conns must be positive")
	}
	if c.Session.CookieName == "" {
		problems = append(problems, "session.cookie_name is required")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		problems = append(problems, "session.sweep_interval must be positive")
	}
	switch c.Email.Provider {
	case EmailProviderLog:
	case EmailProviderPostmark:
		if c.Email.PostmarkToken == "" {
			problems = append(problems, "email.postmark_token is required for the postmark provider")
		}
	default:
		problems = append(problems, "email.provider must be log or postmark")
	}
	if c.Email.From == "" {
		problems = append(problems, "email.from is required")
	}
	if c.IsProduction() {
		// Emailed links need a fixed origin; the log mailer prints live tokens.
		if c.HTTP.PublicURL == "" {
			problems = append(problems, "http.public_url is required in production")
		}
		if c.Email.Provider == EmailProviderLog {
			problems = append(problems, "email.provider log is not allowed in production")
		}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		problems = append(problems, "log.format must be json or text")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe to print. Secrets are masked.
func (c Config) Redacted() Config {
	const mask = "********"
	if c.Email.PostmarkToken != "" {
		c.Email.PostmarkToken = mask
	}
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), mask)
			}
			c.Database.URL = u.String()
		}
	}
	return c
}
