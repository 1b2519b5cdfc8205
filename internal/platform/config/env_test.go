package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"NAREQUENTA_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	DBPath string `env:"DB_PATH" envDefault:"data/test.db"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("NAREQUENTA_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvPrefixedAddsServicePrefix(t *testing.T) {
	t.Setenv("NAREQUENTA_GAME_DB_PATH", "/tmp/game.db")

	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg, "game_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "/tmp/game.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "/tmp/game.db")
	}
}

func TestParseEnvPrefixedKeepsFullPrefix(t *testing.T) {
	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg, "NAREQUENTA_SCENARIO_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "data/test.db" {
		t.Fatalf("db path = %q, want default", cfg.DBPath)
	}
}
