package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tokenmart/marketd/internal/domain"
)

// Config is the full marketd configuration, loaded from a YAML file plus
// environment overrides.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	EventBus EventBusConfig `mapstructure:"event_bus"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Market   MarketConfig   `mapstructure:"market"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CacheTTL CacheTTLConfig `mapstructure:"cache_ttl"`
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`        // Default: marketd
	Environment string `mapstructure:"environment"` // Default: development
	LogLevel    string `mapstructure:"log_level"`   // Default: info
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`             // Default: 0.0.0.0
	Port            int           `mapstructure:"port"`             // Default: 8080
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // Default: 15s
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // Default: 10s
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxConns     int32         `mapstructure:"max_conns"`     // Default: 10
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"` // Default: 30m
}

// EventBusConfig holds the NATS JetStream settings. An empty URL disables
// publishing; the transactional event log still records everything.
type EventBusConfig struct {
	URL     string        `mapstructure:"url"`
	Stream  string        `mapstructure:"stream"`  // Default: MARKET
	Timeout time.Duration `mapstructure:"timeout"` // Default: 5s
}

// ChainConfig holds the EVM node settings for the settlement backend.
type ChainConfig struct {
	RPCURL      string        `mapstructure:"rpc_url"`
	OperatorKey string        `mapstructure:"operator_key"` // Hex-encoded private key of the custody account
	CallTimeout time.Duration `mapstructure:"call_timeout"` // Default: 10s
}

// MarketConfig holds the marketplace identities.
type MarketConfig struct {
	Admin string `mapstructure:"admin"`
}

// AuthConfig maps API keys to caller addresses. Every mutating request must
// carry a key from this map.
type AuthConfig struct {
	APIKeys map[string]string `mapstructure:"api_keys"`
}

// CacheTTLConfig contains cache TTL settings per entity type.
type CacheTTLConfig struct {
	Listing  time.Duration `mapstructure:"listing"`  // Default: 30s
	Fee      time.Duration `mapstructure:"fee"`      // Default: 5m
	Currency time.Duration `mapstructure:"currency"` // Default: 5m
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables use the MARKETD_ prefix with underscores for nesting,
// MARKETD_DATABASE_DSN for database.dsn.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MARKETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error. Useful in main() where
// configuration errors should be fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "marketd"
	}
	if cfg.Service.Environment == "" {
		cfg.Service.Environment = "development"
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.ConnLifetime == 0 {
		cfg.Database.ConnLifetime = 30 * time.Minute
	}
	if cfg.EventBus.Stream == "" {
		cfg.EventBus.Stream = "MARKET"
	}
	if cfg.EventBus.Timeout == 0 {
		cfg.EventBus.Timeout = 5 * time.Second
	}
	if cfg.Chain.CallTimeout == 0 {
		cfg.Chain.CallTimeout = 10 * time.Second
	}
	if cfg.CacheTTL.Listing == 0 {
		cfg.CacheTTL.Listing = 30 * time.Second
	}
	if cfg.CacheTTL.Fee == 0 {
		cfg.CacheTTL.Fee = 5 * time.Minute
	}
	if cfg.CacheTTL.Currency == 0 {
		cfg.CacheTTL.Currency = 5 * time.Minute
	}
}

func validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Market.Admin == "" {
		return fmt.Errorf("market.admin is required")
	}
	if _, err := domain.ParseAddress(cfg.Market.Admin); err != nil {
		return fmt.Errorf("market.admin: %w", err)
	}
	for key, addr := range cfg.Auth.APIKeys {
		if _, err := domain.ParseAddress(addr); err != nil {
			return fmt.Errorf("auth.api_keys[%s]: %w", key, err)
		}
	}
	return nil
}

// ServerAddr returns the host:port the HTTP server binds to.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
