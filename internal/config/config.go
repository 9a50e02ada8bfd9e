package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

type Config struct {
	Env                string `mapstructure:"ENV"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
	DataDir            string `mapstructure:"DATA_DIR"`
	Source             string `mapstructure:"SOURCE"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	DBSchema           string `mapstructure:"DB_SCHEMA"`
	DBMaxConns         int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32  `mapstructure:"DB_MIN_CONNS"`
	Port               string `mapstructure:"PORT"`
	DisplayMaxRows     int    `mapstructure:"DISPLAY_MAX_ROWS"`
	DisplayMaxColWidth int    `mapstructure:"DISPLAY_MAX_COL_WIDTH"`
	MetricsEnabled     bool   `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"ENV",
	"LOG_LEVEL",
	"DATA_DIR",
	"SOURCE",
	"DATABASE_URL",
	"DB_SCHEMA",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"PORT",
	"DISPLAY_MAX_ROWS",
	"DISPLAY_MAX_COL_WIDTH",
	"METRICS_ENABLED",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("SOURCE", SourceCSV)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("PORT", "8000")
	v.SetDefault("DISPLAY_MAX_ROWS", 50)
	v.SetDefault("DISPLAY_MAX_COL_WIDTH", 0)
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the parsed zerolog level, info when LOG_LEVEL is empty.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// Validate checks the configuration after flags have been applied. A postgres
// source needs DATABASE_URL; a csv source needs DATA_DIR.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceCSV:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required when SOURCE is %q", SourceCSV)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SOURCE is %q", SourcePostgres)
		}
		if c.DBMaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
		}
	default:
		return fmt.Errorf("SOURCE must be %q or %q, got %q", SourceCSV, SourcePostgres, c.Source)
	}

	if c.DisplayMaxRows < 0 {
		return fmt.Errorf("DISPLAY_MAX_ROWS must not be negative, got %d", c.DisplayMaxRows)
	}
	if c.DisplayMaxColWidth < 0 {
		return fmt.Errorf("DISPLAY_MAX_COL_WIDTH must not be negative, got %d", c.DisplayMaxColWidth)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}
