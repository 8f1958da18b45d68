package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
)

type Config struct {
	App          AppConfig
	Server       ServerConfig
	Log          LogConfig
	Store        StoreConfig
	Supabase     SupabaseConfig
	Postgres     PostgresConfig
	RabbitMQ     RabbitMQConfig
	Redis        RedisConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Display      DisplayConfig
	MockServices bool `mapstructure:"mock_services"`
}

type AppConfig struct {
	Name    string
	Env     string
	Version string
}

type ServerConfig struct {
	Port              string
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type StoreConfig struct {
	Driver string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string `mapstructure:"service_key"`
	Table      string
	Timeout    time.Duration
}

type PostgresConfig struct {
	DSN          string
	MaxConns     int32         `mapstructure:"max_conns"`
	MinConns     int32         `mapstructure:"min_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type RabbitMQConfig struct {
	URL         string
	Exchange    string
	ChangeQueue string `mapstructure:"change_queue"`
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	ActiveTTL time.Duration `mapstructure:"active_ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type DisplayConfig struct {
	DefaultDelaySeconds float64 `mapstructure:"default_delay_seconds"`
}

func LoadConfig() (*Config, error) {
	return load(newViper(""))
}

// LoadFile reads the given yaml file instead of searching the default paths.
func LoadFile(path string) (*Config, error) {
	return load(newViper(path))
}

// LoadDisplay reads only the display section from the same sources as
// LoadConfig (or from path when set). Page-side consumers use it without
// needing the server's credentials.
func LoadDisplay(path string) (DisplayConfig, error) {
	config, err := read(newViper(path))
	if err != nil {
		return DisplayConfig{}, err
	}
	if err := config.Display.Validate(); err != nil {
		return DisplayConfig{}, err
	}
	return config.Display, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		return v
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return v
}

func load(v *viper.Viper) (*Config, error) {
	config, err := read(v)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func read(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "partner-notifications")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("store.driver", DriverSupabase)
	v.SetDefault("supabase.table", "partner_notifications")
	v.SetDefault("supabase.timeout", "5s")

	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.query_timeout", "2s")

	v.SetDefault("rabbitmq.exchange", "notifications.direct")
	v.SetDefault("rabbitmq.change_queue", "partner_notifications.changes")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.active_ttl", "60s")

	v.SetDefault("ratelimit.rps", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("display.default_delay_seconds", 5.0)
	v.SetDefault("mock_services", false)

	// Keys without a default are invisible to Unmarshal unless bound.
	for _, key := range []string{
		"supabase.url", "supabase.service_key", "postgres.dsn",
		"rabbitmq.url", "redis.addr", "redis.password", "auth.jwt_secret",
	} {
		_ = v.BindEnv(key)
	}
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Store.Driver {
	case DriverSupabase:
		if c.Supabase.URL == "" {
			return errors.New("supabase.url is required for the supabase store")
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return c.Display.Validate()
}

func (d DisplayConfig) Validate() error {
	if d.DefaultDelaySeconds < 0 {
		return errors.New("display.default_delay_seconds must not be negative")
	}
	return nil
}
