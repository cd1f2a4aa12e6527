package bootstrap

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds bootstrap-specific configuration.
type Config struct {
	// Marketd HTTP endpoint configuration.
	Marketd MarketdConfig `mapstructure:"marketd"`

	// SeedFile is the path to the JSON seed data.
	SeedFile string `mapstructure:"seed_file"`
}

// MarketdConfig holds the marketd API client configuration.
type MarketdConfig struct {
	BaseURL            string            `mapstructure:"base_url"`
	AdminAPIKey        string            `mapstructure:"admin_api_key"`
	APIKeys            map[string]string `mapstructure:"api_keys"`              // Named keys for seed listings
	RateLimitPerSecond int               `mapstructure:"rate_limit_per_second"` // Default: 10
}

// LoadConfig reads bootstrap configuration from file and environment
// variables with the MARKETD_BOOTSTRAP prefix.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("MARKETD_BOOTSTRAP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Marketd.RateLimitPerSecond == 0 {
		cfg.Marketd.RateLimitPerSecond = 10
	}
	if cfg.SeedFile == "" {
		cfg.SeedFile = "seed.json"
	}
	return &cfg, nil
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.Marketd.BaseURL == "" {
		return fmt.Errorf("marketd.base_url is required")
	}
	if c.Marketd.AdminAPIKey == "" {
		return fmt.Errorf("marketd.admin_api_key is required")
	}
	return nil
}
