// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage engines selectable with STORAGE_ENGINE.
const (
	EngineMongo    = "mongodb"
	EnginePostgres = "postgresql"
	EngineMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	// Application settings
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":4000"`
	AdminAddr string `env:"ADMIN_ADDR" envDefault:":9090"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StorageEngine string `env:"STORAGE_ENGINE" envDefault:"mongodb"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"playlister"`
	DatabaseURL   string `env:"DATABASE_URL"`

	// Optional Redis for revocation and login lockouts; in-process when empty.
	RedisURL string `env:"REDIS_URL"`

	// Sessions
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"0s"`

	// Password hashing
	HashAlgo    string `env:"HASH_ALGO" envDefault:"argon2id"`
	HashWorkers int    `env:"HASH_WORKERS" envDefault:"0"`

	// Login lockout per (email, client)
	LoginMaxFails int           `env:"LOGIN_MAX_FAILS" envDefault:"5"`
	LoginWindow   time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	LoginBlock    time.Duration `env:"LOGIN_BLOCK" envDefault:"15m"`

	// Per-client request rate on /auth routes; 0 disables.
	AuthRatePerSecond float64 `env:"AUTH_RATE" envDefault:"5"`
	AuthBurst         int     `env:"AUTH_BURST" envDefault:"10"`

	// Cookie policy; empty values derive from APP_ENV.
	CookieSecure   string `env:"COOKIE_SECURE"`
	CookieSameSite string `env:"COOKIE_SAMESITE"`

	// Honour X-Forwarded-For / X-Real-IP. Enable only behind a reverse proxy that overwrites them.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// CORS origin allowed to send credentials.
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// CookiePolicy is the single set of attributes used for the session cookie.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Cookie resolves the cookie policy. Production defaults to Secure with
// SameSite=None for a cross-site frontend; elsewhere Lax without Secure.
func (c *Config) Cookie() (CookiePolicy, error) {
	p := CookiePolicy{Secure: false, SameSite: http.SameSiteLaxMode}
	if c.IsProduction() {
		p = CookiePolicy{Secure: true, SameSite: http.SameSiteNoneMode}
	}
	if c.CookieSecure != "" {
		v, err := strconv.ParseBool(c.CookieSecure)
		if err != nil {
			return CookiePolicy{}, fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		p.Secure = v
	}
	switch strings.ToLower(c.CookieSameSite) {
	case "":
	case "lax":
		p.SameSite = http.SameSiteLaxMode
	case "strict":
		p.SameSite = http.SameSiteStrictMode
	case "none":
		p.SameSite = http.SameSiteNoneMode
	default:
		return CookiePolicy{}, fmt.Errorf("COOKIE_SAMESITE: unknown value %q", c.CookieSameSite)
	}
	if p.SameSite == http.SameSiteNoneMode && !p.Secure {
		return CookiePolicy{}, errors.New("COOKIE_SAMESITE=none requires a secure cookie")
	}
	return p, nil
}

// Validate checks cross-field requirements that tags cannot express.
func (c *Config) Validate() error {
	problems := c.storageProblems()
	if c.JWTSecret == "" {
		problems = append(problems, errors.New("JWT_SECRET is required"))
	}
	switch c.HashAlgo {
	case "argon2id", "bcrypt":
	default:
		problems = append(problems, fmt.Errorf("HASH_ALGO %q is not one of argon2id, bcrypt", c.HashAlgo))
	}
	if c.SessionTTL < 0 {
		problems = append(problems, errors.New("SESSION_TTL must not be negative"))
	}
	if _, err := c.Cookie(); err != nil {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}

// ValidateStorage checks only what administrative commands need to reach storage.
func (c *Config) ValidateStorage() error {
	return errors.Join(c.storageProblems()...)
}

func (c *Config) storageProblems() []error {
	var problems []error
	switch c.StorageEngine {
	case EngineMongo:
		if c.MongoURI == "" {
			problems = append(problems, errors.New("MONGO_URI is required for the mongodb engine"))
		}
		if c.MongoDatabase == "" {
			problems = append(problems, errors.New("MONGO_DATABASE is required for the mongodb engine"))
		}
	case EnginePostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, errors.New("DATABASE_URL is required for the postgresql engine"))
		}
	case EngineMemory:
	default:
		problems = append(problems, fmt.Errorf("STORAGE_ENGINE %q is not one of mongodb, postgresql, memory", c.StorageEngine))
	}
	return problems
}

// Load parses the process environment and returns a Config.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
