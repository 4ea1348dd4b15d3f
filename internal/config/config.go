// Package config loads server configuration.
//
// Values are resolved in increasing order of precedence: built-in defaults,
// the YAML file named by --config (or GOPHDOCS_CONFIG), GOPHDOCS_* environment
// variables, and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

const envPrefix = "GOPHDOCS_"

// Config is the server configuration
type Config struct {
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	Addr               string        `yaml:"addr"`
	StorageDriver      string        `yaml:"storage_driver"`
	DatabaseDSN        string        `yaml:"database_dsn"`
	JWTSecret          string        `yaml:"jwt_secret"`
	RedisAddr          string        `yaml:"redis_addr"`
	RedisChannelPrefix string        `yaml:"redis_channel_prefix"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	JWTTTL             time.Duration `yaml:"jwt_ttl"`
	RateWindow         time.Duration `yaml:"rate_window"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxMessageSize     int64         `yaml:"max_message_size"`
	SendBuffer         int           `yaml:"send_buffer"`
	PersistWorkers     int           `yaml:"persist_workers"`
	PersistQueue       int           `yaml:"persist_queue"`
	RateLimit          int           `yaml:"rate_limit"`

	// Command-line only
	ConfigFile  string `yaml:"-"`
	IssueToken  string `yaml:"-"`
	ShowVersion bool   `yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Addr:               ":8080",
		StorageDriver:      DriverSQLite,
		DatabaseDSN:        "gophdocs.db",
		JWTTTL:             24 * time.Hour,
		RedisChannelPrefix: "gophdocs:doc:",
		SendBuffer:         256,
		MaxMessageSize:     1 << 20,
		PingInterval:       30 * time.Second,
		PersistWorkers:     4,
		PersistQueue:       1024,
		RateLimit:          300,
		RateWindow:         time.Minute,
		AllowedOrigins:     []string{"*"},
		LogLevel:           "info",
		LogFormat:          "text",
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load resolves the configuration from args (without the program name),
// the environment and the optional config file.
// It returns pflag.ErrHelp when help was requested.
func Load(args []string) (*Config, error) {
	// первый проход только ищет файл конфигурации
	probe := Default()
	fs := newFlagSet(probe)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	path := probe.ConfigFile
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// второй проход: флаги перекрывают все, незаданные флаги сохраняют значения
	fs = newFlagSet(cfg)
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.ConfigFile = path

	return cfg, nil
}

func newFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("gophdocs-server", pflag.ContinueOnError)

	fs.StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "path to YAML config file")
	fs.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.StorageDriver, "storage-driver", cfg.StorageDriver, "document store: sqlite, postgres or bolt")
	fs.StringVarP(&cfg.DatabaseDSN, "database-dsn", "d", cfg.DatabaseDSN, "store path or connection string")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret for access tokens; empty disables authentication")
	fs.DurationVar(&cfg.JWTTTL, "jwt-ttl", cfg.JWTTTL, "lifetime of issued access tokens")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the operation mirror; empty disables it")
	fs.StringVar(&cfg.RedisChannelPrefix, "redis-channel-prefix", cfg.RedisChannelPrefix, "prefix of per-document Redis channels")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "outbound messages queued per connection")
	fs.Int64Var(&cfg.MaxMessageSize, "max-message-size", cfg.MaxMessageSize, "largest accepted websocket message in bytes")
	fs.DurationVar(&cfg.PingInterval, "ping-interval", cfg.PingInterval, "websocket keepalive interval")
	fs.IntVar(&cfg.PersistWorkers, "persist-workers", cfg.PersistWorkers, "background persistence workers")
	fs.IntVar(&cfg.PersistQueue, "persist-queue", cfg.PersistQueue, "pending writes per persistence worker")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "REST requests per client and window; 0 disables")
	fs.DurationVar(&cfg.RateWindow, "rate-window", cfg.RateWindow, "rate limit window")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "allowed CORS and websocket origins")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for shutdown")
	fs.StringVar(&cfg.IssueToken, "issue-token", "", "print an access token for the given user id and exit")
	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "show version information")

	return fs
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables read through lookup.
// PORT and DATABASE_URL are honored for platform compatibility and lose
// against their GOPHDOCS_ counterparts.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Addr = ":" + port
	}
	if url, ok := lookup("DATABASE_URL"); ok && url != "" {
		c.DatabaseDSN = url
		if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
			c.StorageDriver = DriverPostgres
		}
	}

	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Addr)
	str("STORAGE_DRIVER", &c.StorageDriver)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("JWT_SECRET", &c.JWTSecret)
	duration("JWT_TTL", &c.JWTTTL)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_CHANNEL_PREFIX", &c.RedisChannelPrefix)
	integer("SEND_BUFFER", &c.SendBuffer)
	duration("PING_INTERVAL", &c.PingInterval)
	integer("PERSIST_WORKERS", &c.PersistWorkers)
	integer("PERSIST_QUEUE", &c.PersistQueue)
	integer("RATE_LIMIT", &c.RateLimit)
	duration("RATE_WINDOW", &c.RateWindow)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	if v, ok := lookup(envPrefix + "MAX_MESSAGE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_MESSAGE_SIZE: %w", envPrefix, err))
		} else {
			c.MaxMessageSize = n
		}
	}
	if v, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}

	return errors.Join(errs...)
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case DriverSQLite, DriverPostgres, DriverBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.JWTSecret != "" && c.JWTTTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	if c.IssueToken != "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("issuing a token requires a jwt secret"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send buffer must be positive"))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max message size must be positive"))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, errors.New("ping interval must be positive"))
	}
	if c.PersistWorkers <= 0 {
		errs = append(errs, errors.New("persist workers must be positive"))
	}
	if c.PersistQueue <= 0 {
		errs = append(errs, errors.New("persist queue must be positive"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		errs = append(errs, errors.New("rate window must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger from LogLevel and LogFormat
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
