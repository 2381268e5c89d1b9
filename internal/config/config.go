package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: VOICETHREADS_BOT__LISTEN_PAGE_SIZE=5.
const EnvPrefix = "VOICETHREADS_"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Bot       BotConfig       `koanf:"bot"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Notify    NotifyConfig    `koanf:"notify"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	Path   string `koanf:"path"`   // sqlite file
	DSN    string `koanf:"dsn"`    // postgres connection string
}

type BotConfig struct {
	ListenPageSize       int           `koanf:"listen_page_size"`
	NotificationPageSize int           `koanf:"notification_page_size"`
	ListPageSize         int           `koanf:"list_page_size"`
	PendingTTL           time.Duration `koanf:"pending_ttl"`
	LinkHosts            []string      `koanf:"link_hosts"`
}

type RateLimitConfig struct {
	InboundLimit  int           `koanf:"inbound_limit"`
	InboundWindow time.Duration `koanf:"inbound_window"`
	OutboundRate  float64       `koanf:"outbound_rate"`
	OutboundBurst int           `koanf:"outbound_burst"`
}

type NotifyConfig struct {
	Dispatcher      string        `koanf:"dispatcher"` // pool or river
	Workers         int           `koanf:"workers"`
	QueueSize       int           `koanf:"queue_size"`
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"database.driver": "sqlite",
		"database.path":   "voicethreads.db",
		"database.dsn":    "",

		"bot.listen_page_size":       10,
		"bot.notification_page_size": 15,
		"bot.list_page_size":         10,
		"bot.pending_ttl":            "30m",
		"bot.link_hosts":             []string{"tiktok.com", "vt.tiktok.com", "vm.tiktok.com", "youtube.com", "youtu.be"},

		"ratelimit.inbound_limit":  30,
		"ratelimit.inbound_window": "1m",
		"ratelimit.outbound_rate":  20.0,
		"ratelimit.outbound_burst": 5,

		"notify.dispatcher":       "pool",
		"notify.workers":          4,
		"notify.queue_size":       256,
		"notify.delivery_timeout": "10s",

		"log.level":  "info",
		"log.pretty": false,
	}
}

// Load layers defaults, an optional TOML file and VOICETHREADS_* environment
// variables, then validates the result. An empty path tries the default
// locations and skips them when absent.
func Load(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range []string{"./voicethreads.toml", "$HOME/.voicethreads.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
					return nil, fmt.Errorf("error loading config %s: %w", path, err)
				}
				break
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		bad("server.port %d out of range", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			bad("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			bad("database.dsn is required for postgres")
		}
	default:
		bad("unknown database.driver %q", c.Database.Driver)
	}

	if c.Bot.ListenPageSize <= 0 {
		bad("bot.listen_page_size must be positive")
	}
	if c.Bot.NotificationPageSize <= 0 {
		bad("bot.notification_page_size must be positive")
	}
	if c.Bot.ListPageSize <= 0 {
		bad("bot.list_page_size must be positive")
	}
	if c.Bot.PendingTTL < 0 {
		bad("bot.pending_ttl must not be negative")
	}

	if c.RateLimit.InboundLimit <= 0 {
		bad("ratelimit.inbound_limit must be positive")
	}
	if c.RateLimit.InboundWindow <= 0 {
		bad("ratelimit.inbound_window must be positive")
	}

	switch c.Notify.Dispatcher {
	case "pool":
		if c.Notify.QueueSize <= 0 {
			bad("notify.queue_size must be positive")
		}
	case "river":
		if c.Database.Driver != "postgres" {
			bad("notify.dispatcher river requires database.driver postgres")
		}
	default:
		bad("unknown notify.dispatcher %q", c.Notify.Dispatcher)
	}
	if c.Notify.Workers <= 0 {
		bad("notify.workers must be positive")
	}
	if c.Notify.DeliveryTimeout <= 0 {
		bad("notify.delivery_timeout must be positive")
	}

	return errors.Join(errs...)
}
