package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradegate/broker"
	"github.com/rustyeddy/tradegate/risk"
)

// Config is the complete tradegate configuration
type Config struct {
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// RiskConfig holds the limits and the time zone trading days are cut in
type RiskConfig struct {
	Timezone string                 `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Defaults risk.Limits            `json:"defaults" yaml:"defaults"`
	Users    map[string]risk.Limits `json:"users,omitempty" yaml:"users,omitempty"`
}

// StoreConfig selects where daily risk state lives
type StoreConfig struct {
	Type   string `json:"type" yaml:"type"` // "memory", "sqlite" or "postgres"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type BrokerConfig struct {
	DefaultExchange string `json:"default_exchange" yaml:"default_exchange"`
	// Paper must stay true; live routing is not implemented and every
	// order is refused when it is false.
	Paper bool `json:"paper" yaml:"paper"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := risk.LoadCalendar(c.Risk.Timezone); err != nil {
		return fmt.Errorf("risk.timezone: %w", err)
	}
	if err := c.Risk.Defaults.WithDefaults(risk.DefaultLimits()).Validate(); err != nil {
		return fmt.Errorf("risk.defaults: %w", err)
	}
	for user, l := range c.Risk.Users {
		if user == "" {
			return fmt.Errorf("risk.users: empty user id")
		}
		if l.MaxPositionSize < 0 || l.MaxTradesPerDay < 0 || l.MaxDailyLoss < 0 {
			return fmt.Errorf("risk.users.%s: limits must not be negative", user)
		}
	}

	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("store db_path required for SQLite type")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn required for postgres type")
		}
	default:
		return fmt.Errorf("store.type must be 'memory', 'sqlite' or 'postgres'")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.File == "" {
			return fmt.Errorf("journal file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Broker.DefaultExchange == "" {
		return fmt.Errorf("broker.default_exchange is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Risk: RiskConfig{
			Timezone: "UTC",
			Defaults: risk.DefaultLimits(),
		},
		Store: StoreConfig{
			Type: "memory",
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Broker: BrokerConfig{
			DefaultExchange: broker.DefaultExchange,
			Paper:           true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Policy returns the per-user limits described by the risk section.
func (c *Config) Policy() risk.Policy {
	return risk.Policy{Default: c.Risk.Defaults, Users: c.Risk.Users}
}

func (c *Config) Calendar() (risk.Calendar, error) {
	return risk.LoadCalendar(c.Risk.Timezone)
}

// LoadEnv loads environment files (".env" when none are given) into the
// process environment. Missing files are not an error; variables that
// are already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}
