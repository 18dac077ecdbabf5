package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"freshershub/internal/notify"
	"freshershub/internal/realtime"
	"freshershub/internal/websocket"
	dbconfig "freshershub/pkg/database"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. FRESHERSHUB_HTTP_PORT
const EnvPrefix = "FRESHERSHUB"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
type Config struct {
	HTTP      HTTPConfig       `mapstructure:"http"`
	WebSocket websocket.Config `mapstructure:"websocket"`
	Database  dbconfig.Config  `mapstructure:"database"`
	Realtime  RealtimeConfig   `mapstructure:"realtime"`
	Notify    notify.Config    `mapstructure:"notify"`
	Auth      AuthConfig       `mapstructure:"auth"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Log       logger.Config    `mapstructure:"log"`
}

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr is host:port for net/http
func (h HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", h.Host, h.Port) }

// RealtimeConfig is the client side: where to connect and the reconnect policy
type RealtimeConfig struct {
	ServerURL       string `mapstructure:"server_url"`
	APIURL          string `mapstructure:"api_url"`
	Token           string `mapstructure:"token"`
	realtime.Config `mapstructure:",squash"`
}

// AuthConfig selects the token verifier. A VerifyURL wins over Tokens.
type AuthConfig struct {
	VerifyURL     string                    `mapstructure:"verify_url"`
	VerifyTimeout time.Duration             `mapstructure:"verify_timeout"`
	Tokens        map[string]types.Identity `mapstructure:"tokens"`
	AdminToken    string                    `mapstructure:"admin_token"`
}

type RateLimitConfig struct {
	Messages int           `mapstructure:"messages"`
	Window   time.Duration `mapstructure:"window"`
}

// FUNCTIONAL DISCOVERY: Production-ready defaults, 30s heartbeat, local sqlite file
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)

	ws := websocket.DefaultConfig()
	v.SetDefault("websocket.ping_interval", ws.PingInterval)
	v.SetDefault("websocket.read_timeout", ws.ReadTimeout)
	v.SetDefault("websocket.write_timeout", ws.WriteTimeout)
	v.SetDefault("websocket.buffer_size", ws.BufferSize)
	v.SetDefault("websocket.max_message_size", ws.MaxMessageSize)

	db := dbconfig.DefaultConfig()
	v.SetDefault("database.path", db.DatabasePath)
	v.SetDefault("database.max_connections", db.MaxConnections)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", db.ConnMaxIdleTime)
	v.SetDefault("database.retry_delay", db.RetryDelay)

	rt := realtime.DefaultConfig()
	v.SetDefault("realtime.server_url", "ws://localhost:8080/ws")
	v.SetDefault("realtime.api_url", "http://localhost:8080")
	v.SetDefault("realtime.token", "")
	v.SetDefault("realtime.base_delay", rt.BaseDelay)
	v.SetDefault("realtime.max_attempts", rt.MaxAttempts)
	v.SetDefault("realtime.heartbeat_interval", rt.HeartbeatInterval)
	v.SetDefault("realtime.dial_timeout", rt.DialTimeout)

	n := notify.DefaultConfig()
	v.SetDefault("notify.toast_ttl", n.ToastTTL)
	v.SetDefault("notify.banner_ttl", n.BannerTTL)

	v.SetDefault("auth.verify_url", "")
	v.SetDefault("auth.verify_timeout", 5*time.Second)
	v.SetDefault("auth.admin_token", "")

	v.SetDefault("rate_limit.messages", 100)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatJSON)
	v.SetDefault("log.file", "")
}

// Load reads defaults, then path (json, yaml or toml by extension) if given,
// then FRESHERSHUB_* environment overrides. A .env file in the working
// directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv loads path if it exists. Existing environment variables win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings every binary depends on
func (c *Config) Validate() error {
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 || c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket buffer and message sizes must be positive")
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if c.Realtime.ServerURL == "" {
		return fmt.Errorf("realtime server url cannot be empty")
	}
	if c.Realtime.BaseDelay <= 0 {
		return fmt.Errorf("realtime base delay must be positive")
	}
	if c.Realtime.MaxAttempts <= 0 {
		return fmt.Errorf("realtime max attempts must be positive")
	}
	if c.Realtime.HeartbeatInterval < 0 {
		return fmt.Errorf("realtime heartbeat interval cannot be negative")
	}

	if c.Notify.ToastTTL <= 0 || c.Notify.BannerTTL <= 0 {
		return fmt.Errorf("notify lifetimes must be positive")
	}

	if c.RateLimit.Messages <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	for token, id := range c.Auth.Tokens {
		if token == "" || id.ID == "" {
			return fmt.Errorf("auth tokens need a token and a user id")
		}
	}
	return nil
}
