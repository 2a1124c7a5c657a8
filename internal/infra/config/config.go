package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DiscordToken string `env:"DISCORD_BOT_TOKEN,required,notEmpty"`
	DiscordGuild string `env:"DISCORD_GUILD_ID,required,notEmpty"`

	// Fixed approved voice channels; presence anywhere else counts as "none".
	ApprovedChannelIDs []string `env:"APPROVED_CHANNEL_IDS" envSeparator:","`

	// Accounts tracked for display but exempt from enforcement.
	OwnerTestIDs []string `env:"OWNER_TEST_IDS" envSeparator:","`

	AdminRoleIDs []string `env:"ADMIN_ROLE_IDS" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisDSN    string `env:"REDIS_DSN" envDefault:"redis://localhost:6379/0"`

	// Companion plugin endpoint on the game server; may be empty or down,
	// the bot keeps running without it.
	BridgeURL string `env:"MC_BRIDGE_URL"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	ScanInterval time.Duration `env:"SCAN_INTERVAL" envDefault:"60s"`
	RescanDelay  time.Duration `env:"RESCAN_DELAY" envDefault:"5s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ApprovedChannelIDs = dropEmpty(cfg.ApprovedChannelIDs)
	cfg.OwnerTestIDs = dropEmpty(cfg.OwnerTestIDs)
	cfg.AdminRoleIDs = dropEmpty(cfg.AdminRoleIDs)
	if len(cfg.ApprovedChannelIDs) == 0 {
		return Config{}, errors.New("APPROVED_CHANNEL_IDS must list at least one voice channel")
	}
	return cfg, nil
}

func dropEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
