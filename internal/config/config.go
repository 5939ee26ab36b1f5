package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings shared by the alert binaries.
type Config struct {
	// ServerAddress is the HTTP address of the alert server. Binaries that
	// host the server listen on its port; client binaries connect to it.
	ServerAddress string `yaml:"server_addr"`
	// Store selects and configures the alert store backend.
	Store StoreConfig `yaml:"store"`
	// Subscription tunes the fanout subscriber's reconnect behaviour.
	Subscription SubscriptionConfig `yaml:"subscription"`
	// Escalation tunes the escalation scheduler cadence.
	Escalation EscalationConfig `yaml:"escalation"`
	// Timeout bounds individual store operations and HTTP calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level for log output (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// StoreConfig selects the alert store backend and its settings.
type StoreConfig struct {
	// Backend is one of "memory", "mongodb" or "redis".
	Backend string `yaml:"backend"`
	// Mongo configures the MongoDB backend.
	Mongo MongoConfig `yaml:"mongodb"`
	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	// URI is the MongoDB connection string.
	URI string `yaml:"uri"`
	// Database is the database holding the alerts collection.
	Database string `yaml:"database"`
	// Collection is the alerts collection name.
	Collection string `yaml:"collection"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Addr is the Redis host:port.
	Addr string `yaml:"addr"`
	// Password is the optional Redis auth password.
	Password string `yaml:"password"`
	// DB is the Redis logical database number.
	DB int `yaml:"db"`
}

// SubscriptionConfig tunes reconnects of the live alert subscription.
type SubscriptionConfig struct {
	// InitialBackoff is the delay before the first reconnect attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// MaxBackoff caps the exponential reconnect delay.
	MaxBackoff time.Duration `yaml:"max_backoff"`
	// StaleAfter is the number of consecutive failed reconnects after which
	// the view is reported as possibly stale.
	StaleAfter int `yaml:"stale_after"`
}

// EscalationConfig tunes the escalation scheduler.
type EscalationConfig struct {
	// Interval is the cadence between escalation ticks.
	Interval time.Duration `yaml:"interval"`
}

// Backend names accepted in StoreConfig.Backend.
const (
	// StoreBackendMemory keeps alerts in process memory. Single-server only.
	StoreBackendMemory = "memory"
	// StoreBackendMongo keeps alerts in a MongoDB collection.
	StoreBackendMongo = "mongodb"
	// StoreBackendRedis keeps alerts in Redis.
	StoreBackendRedis = "redis"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "emergency-alerts.yaml"

	// DefaultTimeout is the default duration for store and HTTP operations.
	DefaultTimeout = 5 * time.Second

	// DefaultEscalationInterval is the default cadence between escalation ticks.
	DefaultEscalationInterval = 2 * time.Second

	// DefaultInitialBackoff is the default delay before the first reconnect.
	DefaultInitialBackoff = 1 * time.Second

	// DefaultMaxBackoff is the default cap on the reconnect delay.
	DefaultMaxBackoff = 30 * time.Second

	// DefaultStaleAfter is the default number of failed reconnects before
	// the view is reported stale.
	DefaultStaleAfter = 5

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// ErrUnknownStoreBackend is returned for an unrecognised backend name.
	ErrUnknownStoreBackend = errors.New("unknown store backend")
	// errMongoURIRequired is returned when the mongodb backend lacks a URI.
	errMongoURIRequired = errors.New("mongodb uri must be provided")
	// errRedisAddrRequired is returned when the redis backend lacks an address.
	errRedisAddrRequired = errors.New("redis address must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if err := validateStore(&cfg.Store); err != nil {
		return err
	}

	// Fill defaults for anything left unset.
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Escalation.Interval <= 0 {
		cfg.Escalation.Interval = DefaultEscalationInterval
	}

	if cfg.Subscription.InitialBackoff <= 0 {
		cfg.Subscription.InitialBackoff = DefaultInitialBackoff
	}

	if cfg.Subscription.MaxBackoff <= 0 {
		cfg.Subscription.MaxBackoff = DefaultMaxBackoff
	}

	if cfg.Subscription.MaxBackoff < cfg.Subscription.InitialBackoff {
		cfg.Subscription.MaxBackoff = cfg.Subscription.InitialBackoff
	}

	if cfg.Subscription.StaleAfter <= 0 {
		cfg.Subscription.StaleAfter = DefaultStaleAfter
	}

	return nil
}

// validateStore checks backend selection and backend-specific settings.
func validateStore(store *StoreConfig) error {
	if store.Backend == "" {
		store.Backend = StoreBackendMemory
	}

	switch store.Backend {
	case StoreBackendMemory:
		return nil
	case StoreBackendMongo:
		if store.Mongo.URI == "" {
			return errMongoURIRequired
		}

		if _, err := url.Parse(store.Mongo.URI); err != nil {
			return fmt.Errorf("invalid mongodb uri: %w", err)
		}

		if store.Mongo.Database == "" {
			store.Mongo.Database = "emergency_alerts"
		}

		if store.Mongo.Collection == "" {
			store.Mongo.Collection = "alerts"
		}

		return nil
	case StoreBackendRedis:
		if store.Redis.Addr == "" {
			return errRedisAddrRequired
		}

		if _, err := net.ResolveTCPAddr("tcp", store.Redis.Addr); err != nil {
			return fmt.Errorf("invalid redis address: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%q: %w", store.Backend, ErrUnknownStoreBackend)
	}
}
