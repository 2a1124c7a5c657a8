package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_BOT_TOKEN", "token-abc")
	t.Setenv("DISCORD_GUILD_ID", "guild-1")
	t.Setenv("APPROVED_CHANNEL_IDS", "1179321724785922088,1179321724785922099")
	t.Setenv("DATABASE_URL", "postgres://localhost/vcguard")
}

func TestLoad_ParsesListsAndDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("OWNER_TEST_IDS", "111,222")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.ApprovedChannelIDs) != 2 {
		t.Errorf("expected 2 approved channels, got %d", len(cfg.ApprovedChannelIDs))
	}
	if cfg.ApprovedChannelIDs[0] != "1179321724785922088" {
		t.Errorf("unexpected first channel: %s", cfg.ApprovedChannelIDs[0])
	}
	if len(cfg.OwnerTestIDs) != 2 || cfg.OwnerTestIDs[1] != "222" {
		t.Errorf("unexpected owner ids: %v", cfg.OwnerTestIDs)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default HTTP addr, got %s", cfg.HTTPAddr)
	}
	if cfg.ScanInterval != 60*time.Second {
		t.Errorf("expected default 60s scan interval, got %v", cfg.ScanInterval)
	}
	if cfg.RescanDelay != 5*time.Second {
		t.Errorf("expected default 5s rescan delay, got %v", cfg.RescanDelay)
	}
}

func TestLoad_RequiresApprovedChannels(t *testing.T) {
	setRequired(t)
	t.Setenv("APPROVED_CHANNEL_IDS", "")

	if _, err := Load(); err == nil {
		t.Error("expected an error when no approved channels are configured")
	}
}

func TestLoad_RequiresToken(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Error("expected an error when the bot token is missing")
	}
}

func TestLoad_CustomIntervals(t *testing.T) {
	setRequired(t)
	t.Setenv("SCAN_INTERVAL", "90s")
	t.Setenv("RESCAN_DELAY", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScanInterval != 90*time.Second || cfg.RescanDelay != 2*time.Second {
		t.Errorf("unexpected intervals: %v / %v", cfg.ScanInterval, cfg.RescanDelay)
	}
}
