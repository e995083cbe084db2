// Package config loads gymgate settings from flags, environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/internal/util"
)

// EnvPrefix is prepended to every environment override, e.g.
// GYMGATE_STORE=postgres.
const EnvPrefix = "GYMGATE"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBbolt    = "bbolt"
	StorePostgres = "postgres"

	SessionStoreSame  = "same"
	SessionStoreRedis = "redis"
)

type Config struct {
	Port           int    `mapstructure:"port"`
	Store          string `mapstructure:"store"`
	DataDir        string `mapstructure:"data-dir"`
	DatabaseURL    string `mapstructure:"database-url"`
	SessionStore   string `mapstructure:"session-store"`
	RedisAddr      string `mapstructure:"redis-addr"`
	RedisPassword  string `mapstructure:"redis-password"`
	SessionTTLDays int    `mapstructure:"session-ttl-days"`
	SecretLength   int    `mapstructure:"secret-length"`
	KDFProfile     string `mapstructure:"kdf-profile"`
	Production     bool   `mapstructure:"production"`
	LogLevel       string `mapstructure:"log-level"`
	OTelEndpoint   string `mapstructure:"otel-endpoint"`
	TLSCert        string `mapstructure:"tls-cert"`
	TLSKey         string `mapstructure:"tls-key"`
}

// Every key has a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("store", StoreBbolt)
	v.SetDefault("data-dir", "./data")
	v.SetDefault("session-store", SessionStoreSame)
	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("session-ttl-days", 7)
	v.SetDefault("secret-length", auth.DefaultSecretLength)
	v.SetDefault("kdf-profile", util.KDFProfileModerate)
	v.SetDefault("log-level", "info")
	v.SetDefault("database-url", "")
	v.SetDefault("redis-password", "")
	v.SetDefault("production", false)
	v.SetDefault("otel-endpoint", "")
	v.SetDefault("tls-cert", "")
	v.SetDefault("tls-key", "")
}

// Load reads configuration. Precedence, highest first: flags explicitly set
// on the command line, environment, config file, flag defaults, built-in
// defaults. With an empty path, gymgate.yaml in the working directory is
// read if present.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("gymgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// SESSION_TTL_DAYS is the name deployments already use.
	if err := v.BindEnv("session-ttl-days", EnvPrefix+"_SESSION_TTL_DAYS", "SESSION_TTL_DAYS"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreBbolt:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("store %q requires database-url", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, bbolt or postgres)", c.Store)
	}
	switch c.SessionStore {
	case SessionStoreSame, "":
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("session-store redis requires redis-addr")
		}
	default:
		return fmt.Errorf("unknown session-store %q (want same or redis)", c.SessionStore)
	}
	if c.SessionTTLDays < 1 {
		return fmt.Errorf("session-ttl-days must be at least 1, got %d", c.SessionTTLDays)
	}
	if c.SecretLength < auth.MinSecretLength || c.SecretLength > auth.MaxSecretLength {
		return fmt.Errorf("secret-length must be between %d and %d", auth.MinSecretLength, auth.MaxSecretLength)
	}
	if _, err := util.Argon2idProfile(c.KDFProfile); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must be set together")
	}
	return nil
}

// SessionTTL is the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

// Argon2idParams returns the cost parameters of the configured profile.
func (c *Config) Argon2idParams() (util.Argon2idParams, error) {
	return util.Argon2idProfile(c.KDFProfile)
}

// Level parses log-level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log-level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
