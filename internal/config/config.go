package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot.
type Config struct {
	DiscordToken string
	GuildID      string

	NotionToken    string
	NotionTasksDB  string
	NotionConfigDB string

	// UseLocalStore swaps the Notion backend for a local SQLite file,
	// for offline development.
	UseLocalStore bool
	DatabaseURL   string

	CacheTTL time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("CACHE_TTL_MINUTES", 5)
	v.SetDefault("DATABASE_URL", "taskbridge.db")

	cfg := Config{
		DiscordToken:   strings.TrimSpace(v.GetString("DISCORD_TOKEN")),
		GuildID:        strings.TrimSpace(v.GetString("DISCORD_GUILD_ID")),
		NotionToken:    strings.TrimSpace(v.GetString("NOTION_TOKEN")),
		NotionTasksDB:  strings.TrimSpace(v.GetString("NOTION_TASKS_DATABASE_ID")),
		NotionConfigDB: strings.TrimSpace(v.GetString("NOTION_CONFIG_DATABASE_ID")),
		UseLocalStore:  v.GetBool("USE_LOCAL_STORE"),
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		CacheTTL:       time.Duration(v.GetInt("CACHE_TTL_MINUTES")) * time.Minute,
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return cfg, fmt.Errorf("DISCORD_GUILD_ID is required")
	}
	if !cfg.UseLocalStore {
		if cfg.NotionToken == "" {
			return cfg, fmt.Errorf("NOTION_TOKEN is required (or set USE_LOCAL_STORE=true)")
		}
		if cfg.NotionTasksDB == "" || cfg.NotionConfigDB == "" {
			return cfg, fmt.Errorf("NOTION_TASKS_DATABASE_ID and NOTION_CONFIG_DATABASE_ID are required")
		}
	}

	return cfg, nil
}
