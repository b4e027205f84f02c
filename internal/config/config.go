package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PRICEWATCH"

// Store backends for the session token.
const (
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

type Config struct {
	APIURL        string
	Store         string
	BoltPath      string
	DatabaseURL   string
	RedisAddr     string
	TablePrefix   string
	Lang          string
	LogLevel      string
	LogFormat     string
	CallbackAddr  string
	Provider      string
	TelegramBot   string
	HTTPTimeout   time.Duration
	WatchInterval time.Duration
}

// SetDefaults registers every key so env lookups work without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("store", StoreBolt)
	v.SetDefault("bolt_path", defaultBoltPath())
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("table_prefix", "")
	v.SetDefault("lang", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "dev")
	v.SetDefault("callback_addr", "127.0.0.1:8765")
	v.SetDefault("provider", "google")
	v.SetDefault("telegram_bot", "price_analyzer_monitor_bot")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("watch_interval", 5*time.Minute)
}

// Load reads .env files (missing ones are skipped), then the environment
// and an optional config file through v. Flags bound to v by the caller
// take precedence.
func Load(v *viper.Viper, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{
		APIURL:        strings.TrimRight(v.GetString("api_url"), "/"),
		Store:         strings.ToLower(v.GetString("store")),
		BoltPath:      v.GetString("bolt_path"),
		DatabaseURL:   v.GetString("database_url"),
		RedisAddr:     v.GetString("redis_addr"),
		TablePrefix:   v.GetString("table_prefix"),
		Lang:          v.GetString("lang"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		CallbackAddr:  v.GetString("callback_addr"),
		Provider:      v.GetString("provider"),
		TelegramBot:   v.GetString("telegram_bot"),
		HTTPTimeout:   v.GetDuration("http_timeout"),
		WatchInterval: v.GetDuration("watch_interval"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an absolute http(s) address, got %q", c.APIURL)
	}
	switch c.Store {
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("bolt_path is required for store %q", c.Store)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for store %q", c.Store)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for store %q", c.Store)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want bolt, postgres, redis or memory)", c.Store)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.WatchInterval < time.Second {
		return fmt.Errorf("watch_interval must be at least 1s")
	}
	return nil
}

func defaultBoltPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "pricewatch", "session.db")
}
