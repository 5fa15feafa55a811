package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// LocalDBPath is the embedded database holding the device-local copy
	// of the document.
	LocalDBPath string `envconfig:"LOCAL_DB_PATH" default:"./data/salejuck.db"`
	DocumentKey string `envconfig:"DOCUMENT_KEY" default:"posData"`

	// RedisAddr points at the shared replica. Empty means the node runs
	// fully offline.
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:""`
	SyncPushTimeout time.Duration `envconfig:"SYNC_PUSH_TIMEOUT" default:"10s"`

	ConsistencyCron string `envconfig:"CONSISTENCY_CRON" default:"@every 1h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.LocalDBPath == "" {
		return nil, errors.New("local db path must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// RemoteConfigured reports whether a shared replica is configured.
func (c *Config) RemoteConfigured() bool {
	return c != nil && c.RedisAddr != ""
}
