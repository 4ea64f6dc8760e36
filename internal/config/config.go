package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string  `mapstructure:"PORT"`
	Env              string  `mapstructure:"ENV"`
	LogLevel         string  `mapstructure:"LOG_LEVEL"`
	DatabaseURL      string  `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32   `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32   `mapstructure:"DB_MIN_CONNS"`
	DBSchema         string  `mapstructure:"DB_SCHEMA"`
	MigrationsDir    string  `mapstructure:"MIGRATIONS_DIR"`
	DefaultFeedAlias string  `mapstructure:"DEFAULT_FEED_ALIAS"`
	JWTSecret        string  `mapstructure:"JWT_SECRET"`
	UpdateRetryLimit int     `mapstructure:"UPDATE_RETRY_LIMIT"`
	BodyLimit        string  `mapstructure:"BODY_LIMIT"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("DEFAULT_FEED_ALIAS", "default")
	v.SetDefault("UPDATE_RETRY_LIMIT", 10)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"DB_SCHEMA", "MIGRATIONS_DIR", "DEFAULT_FEED_ALIAS", "JWT_SECRET",
		"UPDATE_RETRY_LIMIT", "BODY_LIMIT", "CORS_ORIGINS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IsProd() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when ENV=production")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool  { return c.Env == "development" }
func (c *Config) IsProd() bool { return c.Env == "production" }
