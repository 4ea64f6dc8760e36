package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/feed_test")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8000" || cfg.Env != "development" || cfg.LogLevel != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 || cfg.UpdateRetryLimit != 10 {
		t.Errorf("pool defaults = %+v", cfg)
	}
	if cfg.DefaultFeedAlias != "default" || cfg.BodyLimit != "1M" {
		t.Errorf("feed defaults = %+v", cfg)
	}
	if !cfg.IsDev() || cfg.IsProd() {
		t.Error("development mode flags wrong")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("want an error without DATABASE_URL")
	}
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/feed_test")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("production without JWT_SECRET must refuse to start")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsProd() {
		t.Error("production mode flag wrong")
	}
}

func TestLoadSplitsCORSOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/feed_test")
	t.Setenv("CORS_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "http://a.example" {
		t.Errorf("origins = %v", cfg.CORSOrigins)
	}
}
