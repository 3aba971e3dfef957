package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the development signing key; production refuses it.
const DefaultJWTSecret = "dev-secret"

// EnvProduction is the APP_ENV value that enables the stricter checks.
const EnvProduction = "production"

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	Redis  RedisConfig
	Logger LoggerConfig
	Auth   AuthConfig
	Lease  LeaseConfig
	Events EventsConfig
	Policy PolicyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	NodeID                int64
}

// StoreConfig selects and configures the ticket store.
type StoreConfig struct {
	Backend        string
	DSN            string
	SQLitePath     string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	Name  string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	RefreshTokenTTLMinutes int
	BcryptCost             int
}

// LeaseConfig tunes the lease engine.
type LeaseConfig struct {
	Quota            int
	MaxAttempts      int
	InitialBackoffMS int
	MaxBackoffMS     int
}

// EventsConfig controls the domain event relay.
type EventsConfig struct {
	Stream    string
	StreamMax int64
}

// PolicyConfig points at an optional access policy file.
type PolicyConfig struct {
	File string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-lease-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			NodeID:                int64(getEnvAsInt("APP_NODE_ID", 1)),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
			DSN:            os.Getenv("POSTGRES_DSN"),
			SQLitePath:     getEnv("SQLITE_PATH", "tickets.db"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("STORE_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Name:  getEnv("LOG_NAME", "tickets"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", DefaultJWTSecret),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLMinutes: getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_MINUTES", 60*24),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Lease: LeaseConfig{
			Quota:            getEnvAsInt("LEASE_QUOTA", 15),
			MaxAttempts:      getEnvAsInt("LEASE_MAX_ATTEMPTS", 3),
			InitialBackoffMS: getEnvAsInt("LEASE_INITIAL_BACKOFF_MS", 20),
			MaxBackoffMS:     getEnvAsInt("LEASE_MAX_BACKOFF_MS", 500),
		},
		Events: EventsConfig{
			Stream:    getEnv("EVENTS_STREAM", "ticket-events"),
			StreamMax: int64(getEnvAsInt("EVENTS_STREAM_MAXLEN", 100000)),
		},
		Policy: PolicyConfig{
			File: os.Getenv("POLICY_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want %s or %s", c.Store.Backend, BackendPostgres, BackendSQLite)
	}
	if c.Lease.Quota <= 0 {
		return fmt.Errorf("LEASE_QUOTA must be positive, got %d", c.Lease.Quota)
	}
	if c.Lease.MaxAttempts <= 0 {
		return fmt.Errorf("LEASE_MAX_ATTEMPTS must be positive, got %d", c.Lease.MaxAttempts)
	}
	if c.App.NodeID < 0 || c.App.NodeID > 1023 {
		return fmt.Errorf("APP_NODE_ID must be within [0, 1023], got %d", c.App.NodeID)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	if strings.EqualFold(c.App.Env, EnvProduction) && c.Auth.JWTSecret == DefaultJWTSecret {
		return fmt.Errorf("AUTH_JWT_SECRET must be set when APP_ENV=%s", EnvProduction)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay.
func (l LeaseConfig) InitialBackoff() time.Duration {
	return time.Duration(l.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay ceiling.
func (l LeaseConfig) MaxBackoff() time.Duration {
	return time.Duration(l.MaxBackoffMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
