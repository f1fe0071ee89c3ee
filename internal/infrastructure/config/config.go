package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents application configuration
type Config struct {
	App    AppConfig    `yaml:"app"`
	Server ServerConfig `yaml:"server"`
	Seller SellerConfig `yaml:"seller"`
	Log    LogConfig    `yaml:"log"`
	Tasks  []TaskConfig `yaml:"tasks"`
}

// AppConfig represents application settings
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// ServerConfig represents the HTTP surface settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// SellerConfig represents supervisor settings
type SellerConfig struct {
	KeysFile        string        `yaml:"keys_file"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	BackoffInterval time.Duration `yaml:"backoff_interval"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
}

// LogConfig represents logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TaskConfig declares a sell task created at startup
type TaskConfig struct {
	Exchange string `yaml:"exchange"`
	Symbol   string `yaml:"symbol"`
	Price    string `yaml:"price"`
}

// TargetPrice parses the configured price
func (t TaskConfig) TargetPrice() (decimal.Decimal, error) {
	p, err := decimal.NewFromString(t.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q for %s %s: %w", t.Price, t.Exchange, t.Symbol, err)
	}
	return p, nil
}

// Load loads configuration from YAML file with env overrides
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.loadEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadEnvOverrides overrides config with environment variables
func (c *Config) loadEnvOverrides() {
	if v := os.Getenv("SELLER_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("SELLER_KEYS_FILE"); v != "" {
		c.Seller.KeysFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("APP_ENVIRONMENT"); v != "" {
		c.App.Environment = v
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "token-seller"
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Seller.KeysFile == "" {
		c.Seller.KeysFile = "api_keys.json"
	}
	if c.Seller.PollInterval <= 0 {
		c.Seller.PollInterval = 5 * time.Second
	}
	if c.Seller.BackoffInterval <= 0 {
		c.Seller.BackoffInterval = 10 * time.Second
	}
	if c.Seller.CallTimeout <= 0 {
		c.Seller.CallTimeout = 30 * time.Second
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// validate validates configuration
func (c *Config) validate() error {
	for _, t := range c.Tasks {
		if t.Exchange == "" || t.Symbol == "" {
			return fmt.Errorf("task entries require exchange and symbol")
		}
		if _, err := t.TargetPrice(); err != nil {
			return err
		}
	}
	return nil
}
