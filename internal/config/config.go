// Package config loads server configuration from an optional YAML file with
// environment variables layered on top. Sources in order of priority:
//
//  1. explicit path via the --config flag;
//  2. path in the CONFIG_PATH environment variable;
//  3. ./local.yaml in the working directory;
//  4. environment variables only.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration for the auth server.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"DEV"`
	AppName string        `yaml:"app_name" env:"APP_NAME" env-default:"Auth Server"`
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Session SessionConfig `yaml:"session"`
	Rate    RateConfig    `yaml:"rate"`
	Redis   RedisConfig   `yaml:"redis"`
	DB      DBConfig      `yaml:"db"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Google  GoogleConfig  `yaml:"google"`
}

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
}

// Addr returns the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds token issuance and validation parameters. The access
// token lives 30 minutes and the refresh token extends that window by
// another 15; both are signed with JWTSecret. Reset-password tokens use
// their own secret so a leaked reset link can never mint sessions.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	ResetSecret     string        `yaml:"reset_secret" env:"RESET_PASS_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"30m"`
	RefreshTokenExt time.Duration `yaml:"refresh_token_ext" env:"REFRESH_TOKEN_EXT" env-default:"15m"`
	ResetTokenTTL   time.Duration `yaml:"reset_token_ttl" env:"RESET_TOKEN_TTL" env-default:"20m"`
}

// SessionConfig controls the server-side session store. The TTL is
// independent of token expiry: a valid-looking token fails validation once
// the session entry lapses.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"45m"`
}

// RateConfig mirrors the hapi-rate-limit pathLimit settings of the
// original API.
type RateConfig struct {
	LoginPathLimit     int           `yaml:"login_path_limit" env:"LOGIN_PATH_LIMIT" env-default:"10"`
	ForgottenPathLimit int           `yaml:"forgotten_path_limit" env:"FORGOTTEN_PATH_LIMIT" env-default:"5"`
	Window             time.Duration `yaml:"window" env:"RATE_WINDOW" env-default:"1m"`
}

// RedisConfig points at the session cache. Empty URL selects the in-memory
// store (dev/test only, not shared across processes).
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL" env-default:""`
}

// DBConfig points at the account database. Empty URL selects the in-memory
// fake repository.
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-default:""`
}

// SMTPConfig configures the outgoing mail collaborator.
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Account  string `yaml:"account" env:"SMTP_ACCOUNT" env-default:""`
	Password string `yaml:"password" env:"SMTP_PASSWORD" env-default:""`
	From     string `yaml:"from" env:"SMTP_FROM" env-default:"no-reply@localhost"`
}

// GoogleConfig configures the Google OAuth collaborator. Login via Google is
// disabled when ClientID is empty.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID" env-default:""`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET" env-default:""`
	RedirectURL  string `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URL" env-default:""`
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load resolves the config source by priority and reads it. Environment
// variables always overlay values read from a file.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("read config %q: %w", p, err)
		}
		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return tryRead(env)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	return &cfg, nil
}
