// Package config loads the ticketflow runtime configuration from the
// environment, an optional .env file and command-line flags.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config aggregates runtime configuration for ticketflow.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Store      StoreConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Engine     EngineConfig
	Runner     RunnerConfig
	LLM        LLMConfig
	ServiceNow ServiceNowConfig
	Auth       AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Host                   string
	Port                   string
	RequestTimeoutSeconds  int
	ShutdownTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the checkpoint backend and its middlewares.
type StoreConfig struct {
	Backend    string // memory, file, redis, postgres or sqlite
	Codec      string // json or cbor
	Dir        string
	SQLitePath string
	ArchiveDir string

	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string
	FallbackKeys  []string
	Compress      bool
	PIIPatterns   []string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Prefix     string
	TTLSeconds int

	// Locking serializes instances across processes with a Redis lock.
	Locking        bool
	LockTTLSeconds int
}

// EngineConfig tunes the graph engine.
type EngineConfig struct {
	CataloguePath     string
	RecursionLimit    int
	ReassignmentGroup string
}

// RunnerConfig points at the process runner settings file.
type RunnerConfig struct {
	ConfigPath string
}

// LLMConfig configures the chat-completion decision maker.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	JSONMode    bool
}

// ServiceNowConfig configures the ticket store.
type ServiceNowConfig struct {
	BaseURL       string
	Username      string
	Password      string
	Table         string
	ResolvedState string
}

// AuthConfig defines authentication parameters for the inbound API.
// An empty secret disables authentication.
type AuthConfig struct {
	JWTSecret string
}

// Load reads configuration from environment variables, applying defaults where possible.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Host:                   getEnv("APP_HOST", "0.0.0.0"),
			Port:                   getEnv("APP_PORT", "8000"),
			RequestTimeoutSeconds:  getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 300),
			ShutdownTimeoutSeconds: getEnvAsInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 15),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Store: StoreConfig{
			Backend:       getEnv("TICKETFLOW_STORE", "file"),
			Codec:         getEnv("TICKETFLOW_CODEC", "json"),
			Dir:           getEnv("TICKETFLOW_STORE_DIR", ".ticketflow/checkpoints"),
			SQLitePath:    getEnv("TICKETFLOW_SQLITE_PATH", ".ticketflow/checkpoints.db"),
			ArchiveDir:    os.Getenv("TICKETFLOW_ARCHIVE_DIR"),
			EncryptionKey: os.Getenv("TICKETFLOW_ENCRYPTION_KEY"),
			FallbackKeys:  getEnvAsList("TICKETFLOW_ENCRYPTION_FALLBACK_KEYS", ","),
			Compress:      getEnvAsBool("TICKETFLOW_COMPRESS", false),
			PIIPatterns:   getEnvAsList("TICKETFLOW_PII_PATTERNS", ";"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			Prefix:         getEnv("REDIS_PREFIX", "ticketflow:"),
			TTLSeconds:     getEnvAsInt("REDIS_TTL_SECONDS", 0),
			Locking:        getEnvAsBool("REDIS_LOCKING", false),
			LockTTLSeconds: getEnvAsInt("REDIS_LOCK_TTL_SECONDS", 30),
		},
		Engine: EngineConfig{
			CataloguePath:     os.Getenv("TICKETFLOW_CATALOGUE"),
			RecursionLimit:    getEnvAsInt("TICKETFLOW_RECURSION_LIMIT", 100),
			ReassignmentGroup: getEnv("TICKETFLOW_REASSIGNMENT_GROUP", "IT Support"),
		},
		Runner: RunnerConfig{
			ConfigPath: getEnv("TICKETFLOW_RUNNER_CONFIG", "runner.yaml"),
		},
		LLM: LLMConfig{
			APIKey:      firstEnv("LLM_API_KEY", "GROQ_API_KEY"),
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:       getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0),
			JSONMode:    getEnvAsBool("LLM_JSON_MODE", true),
		},
		ServiceNow: ServiceNowConfig{
			BaseURL:       firstEnv("SERVICENOW_URL", "SERVICENOW_INSTANCE"),
			Username:      os.Getenv("SERVICENOW_USERNAME"),
			Password:      os.Getenv("SERVICENOW_PASSWORD"),
			Table:         getEnv("SERVICENOW_TABLE", "sc_task"),
			ResolvedState: getEnv("SERVICENOW_RESOLVED_STATE", "6"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
	}

	return cfg, nil
}

// BindFlags exposes the most frequently overridden settings as flags.
// Flag defaults are the values already loaded, so flags win over the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Logger.Level, "log-level", c.Logger.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&c.Logger.Format, "log-format", c.Logger.Format, "log format (text, json)")
	fs.StringVar(&c.Store.Backend, "store", c.Store.Backend, "checkpoint backend (memory, file, redis, postgres, sqlite)")
	fs.StringVar(&c.Store.Codec, "codec", c.Store.Codec, "checkpoint encoding (json, cbor)")
	fs.StringVar(&c.Store.Dir, "store-dir", c.Store.Dir, "directory of the file checkpoint store")
	fs.StringVar(&c.Store.SQLitePath, "sqlite-path", c.Store.SQLitePath, "database file of the sqlite checkpoint store")
	fs.StringVar(&c.Store.ArchiveDir, "archive-dir", c.Store.ArchiveDir, "directory receiving terminated instances")
	fs.StringVar(&c.Postgres.DSN, "postgres-dsn", c.Postgres.DSN, "postgres connection string")
	fs.StringVar(&c.Redis.Addr, "redis-addr", c.Redis.Addr, "redis address")
	fs.StringVar(&c.Engine.CataloguePath, "catalogue", c.Engine.CataloguePath, "workflow catalogue file (yaml or hcl); empty uses the built-in one")
	fs.IntVar(&c.Engine.RecursionLimit, "recursion-limit", c.Engine.RecursionLimit, "maximum node executions per run")
	fs.StringVar(&c.Runner.ConfigPath, "runner-config", c.Runner.ConfigPath, "process runner settings file")
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case "memory", "file", "redis", "sqlite":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres store requires POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Engine.RecursionLimit <= 0 {
		errs = append(errs, fmt.Errorf("recursion limit must be positive, got %d", c.Engine.RecursionLimit))
	}
	if c.Store.EncryptionKey != "" {
		if _, _, err := c.Store.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Keys decodes the active and fallback encryption keys.
func (c StoreConfig) Keys() ([]byte, [][]byte, error) {
	active, err := decodeKey("TICKETFLOW_ENCRYPTION_KEY", c.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	var fallback [][]byte
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("fallback key %d", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(name, value string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid %s: want 32 bytes, got %d", name, len(key))
	}
	return key, nil
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

// ShutdownTimeout bounds graceful shutdown.
func (a AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(a.ShutdownTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if val := os.Getenv(k); val != "" {
			return val
		}
	}
	return ""
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

// getEnvAsList splits a variable on sep, dropping empty items.
// PII patterns use ";" since regular expressions may contain commas.
func getEnvAsList(key, sep string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
