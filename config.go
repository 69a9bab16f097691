package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TICKERGRAM"

const (
	storeRedis    = "redis"
	storePostgres = "postgres"
	storeSQLite   = "sqlite"
	storeMemory   = "memory"
)

// Config is read from flags, TICKERGRAM_* env vars and .env.
type Config struct {
	Token    string
	Password string

	Store         string
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	DatabaseURL   string
	DBPath        string

	APIEndpoint     string
	PollTimeout     time.Duration
	PollLimit       int
	PollBackoff     time.Duration
	AntifloodWindow time.Duration

	HandlerTimeout    time.Duration
	ScreenshotTimeout time.Duration
	FearGreedURL      string
	ChartFont         string
	QuoteURL          string

	NotifyRate     float64
	NotifyInterval time.Duration

	PIDFile   string
	LogLevel  string
	LogFormat string
	LogFile   string
}

// addConfigFlags registers the flags shared by every subcommand.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringP("password", "p", "", "Optional password needed to interact with the bot (enables the /auth command)")
	fs.String("store", storeRedis, "Store backend: redis, postgres, sqlite or memory")
	fs.StringP("redis-host", "r", "localhost", "Redis host")
	fs.IntP("redis-port", "l", 6379, "Redis port")
	fs.IntP("redis-db", "d", 0, "Redis database")
	fs.String("redis-password", "", "Redis password")
	fs.String("database-url", "", "PostgreSQL DSN for the postgres store")
	fs.String("db-path", "tickergram.db", "Database file for the sqlite store")

	fs.String("api-endpoint", "", "Bot API endpoint format, empty for api.telegram.org")
	fs.Duration("poll-timeout", 300*time.Second, "Long poll timeout")
	fs.Int("poll-limit", 1, "Updates fetched per poll")
	fs.Duration("poll-backoff", 30*time.Second, "Wait after a failed poll")
	fs.Duration("antiflood-window", defaultAntifloodWindow, "Per-sender antiflood window")

	fs.Duration("handler-timeout", defaultHandlerTimeout, "Timeout for a single command")
	fs.Duration("screenshot-timeout", defaultScreenshotTimeout, "Timeout for headless browser screenshots")
	fs.String("feargreed-url", defaultFearGreedURL, "Page captured by /feargreed")
	fs.String("chart-font", "", "TrueType font for charts, empty for the built-in font")
	fs.String("quote-url", yahooChartURL, "Yahoo Finance chart API base URL")

	fs.Float64("notify-rate", defaultNotifyRate, "Watchlist notifications sent per second")

	fs.String("pid-file", filepath.Join(os.TempDir(), "tickergram.pid"), "PID file written by run, empty to skip")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.String("log-file", "", "Also append logs to this file")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads v; a token in args wins over TICKERGRAM_TOKEN.
func loadConfig(v *viper.Viper, args []string) Config {
	token := v.GetString("token")
	if len(args) > 0 {
		token = args[0]
	}
	return Config{
		Token:    strings.TrimSpace(token),
		Password: v.GetString("password"),

		Store:         strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		RedisHost:     v.GetString("redis-host"),
		RedisPort:     v.GetInt("redis-port"),
		RedisDB:       v.GetInt("redis-db"),
		RedisPassword: v.GetString("redis-password"),
		DatabaseURL:   v.GetString("database-url"),
		DBPath:        v.GetString("db-path"),

		APIEndpoint:     v.GetString("api-endpoint"),
		PollTimeout:     v.GetDuration("poll-timeout"),
		PollLimit:       v.GetInt("poll-limit"),
		PollBackoff:     v.GetDuration("poll-backoff"),
		AntifloodWindow: v.GetDuration("antiflood-window"),

		HandlerTimeout:    v.GetDuration("handler-timeout"),
		ScreenshotTimeout: v.GetDuration("screenshot-timeout"),
		FearGreedURL:      v.GetString("feargreed-url"),
		ChartFont:         v.GetString("chart-font"),
		QuoteURL:          v.GetString("quote-url"),

		NotifyRate:     v.GetFloat64("notify-rate"),
		NotifyInterval: v.GetDuration("interval"),

		PIDFile:   v.GetString("pid-file"),
		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),
		LogFile:   v.GetString("log-file"),
	}
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return &ConfigError{Field: "token", Message: "required (argument or TICKERGRAM_TOKEN)"}
	}
	switch c.Store {
	case storeRedis, storeSQLite, storeMemory:
	case storePostgres:
		if c.DatabaseURL == "" {
			return &ConfigError{Field: "database-url", Message: "required for the postgres store"}
		}
	default:
		return &ConfigError{Field: "store", Message: fmt.Sprintf("unknown backend %q", c.Store)}
	}
	if c.Store == storeSQLite && c.DBPath == "" {
		return &ConfigError{Field: "db-path", Message: "required for the sqlite store"}
	}
	if c.PollLimit < 1 || c.PollLimit > 100 {
		return &ConfigError{Field: "poll-limit", Message: "must be between 1 and 100"}
	}
	if c.PollTimeout < 0 {
		return &ConfigError{Field: "poll-timeout", Message: "must not be negative"}
	}
	if c.PollBackoff <= 0 {
		return &ConfigError{Field: "poll-backoff", Message: "must be positive"}
	}
	if c.NotifyRate <= 0 {
		return &ConfigError{Field: "notify-rate", Message: "must be positive"}
	}
	if c.NotifyInterval < 0 {
		return &ConfigError{Field: "interval", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// newLogger builds the process logger. The returned closer releases the log
// file, if any.
func newLogger(cfg Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	w := stderr
	var closer io.Closer = io.NopCloser(nil)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closer = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		closer.Close()
		return nil, nil, &ConfigError{Field: "log-format", Message: fmt.Sprintf("unknown format %q", cfg.LogFormat)}
	}
	return slog.New(h), closer, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &ConfigError{Field: "log-level", Message: fmt.Sprintf("unknown level %q", s)}
	}
}

// openStore connects the configured backend. SQL backends are migrated.
func openStore(cfg Config) (Store, error) {
	switch cfg.Store {
	case storePostgres:
		return NewPostgresStore(cfg.DatabaseURL)
	case storeSQLite:
		return NewSQLiteStore(cfg.DBPath)
	case storeMemory:
		return NewMemoryStore(), nil
	default:
		return NewRedisStore(RedisOptions{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		}), nil
	}
}
