package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "guild")
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("NOTION_TASKS_DATABASE_ID", "tasks-db")
	t.Setenv("NOTION_CONFIG_DATABASE_ID", "config-db")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %s, want 5m default", cfg.CacheTTL)
	}
	if cfg.DatabaseURL != "taskbridge.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.UseLocalStore {
		t.Error("UseLocalStore defaulted to true")
	}
}

func TestLoad_RequiresDiscordToken(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DISCORD_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestLoad_NotionOptionalWithLocalStore(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("NOTION_TASKS_DATABASE_ID", "")
	t.Setenv("NOTION_CONFIG_DATABASE_ID", "")
	t.Setenv("USE_LOCAL_STORE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UseLocalStore {
		t.Error("UseLocalStore not set")
	}
}

func TestLoad_CustomTTL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CACHE_TTL_MINUTES", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %s, want 15m", cfg.CacheTTL)
	}
}
