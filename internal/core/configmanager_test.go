package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfigJSON(t *testing.T) {
	raw := []byte(`{
		"discord": {"token": "abc", "guild_id": "g1", "owner_user_ids": ["u1"]},
		"logging": {"level": "debug", "console": true},
		"queue": {"allowed_user_ids": ["u1", "u2"], "tick_interval": "30s"},
		"timezone": "Australia/Melbourne"
	}`)
	cfg, err := ParseConfig("config.json", raw)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Discord.Token != "abc" || cfg.Discord.GuildID != "g1" {
		t.Fatalf("discord config = %+v", cfg.Discord)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging config = %+v", cfg.Logging)
	}
	if len(cfg.Queue.AllowedUserIDs) != 2 || cfg.Queue.TickInterval != "30s" {
		t.Fatalf("queue config = %+v", cfg.Queue)
	}
	if cfg.Timezone != "Australia/Melbourne" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
}

func TestParseConfigYAML(t *testing.T) {
	raw := []byte(`
discord:
  token: abc
  guild_id: g1
eventsync:
  enabled: true
  digest_at: "09:00"
  digest_channel_id: ch1
plugins:
  jam:
    enabled: true
`)
	cfg, err := ParseConfig("config.yaml", raw)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Discord.Token != "abc" {
		t.Fatalf("token = %q", cfg.Discord.Token)
	}
	if cfg.EventSync.Enabled == nil || !*cfg.EventSync.Enabled || cfg.EventSync.DigestAt != "09:00" || cfg.EventSync.DigestChannelID != "ch1" {
		t.Fatalf("event sync config = %+v", cfg.EventSync)
	}
	if _, ok := cfg.Plugins["jam"]; !ok {
		t.Fatalf("plugins = %+v", cfg.Plugins)
	}
}

func TestParseConfigRejectsUnknownFields(t *testing.T) {
	if _, err := ParseConfig("config.json", []byte(`{"discrod": {}}`)); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
	if _, err := ParseConfig("config.yaml", []byte("discord:\n  tokne: x\n")); err == nil {
		t.Fatal("expected error for unknown nested key")
	}
}

func TestConfigManagerLoadAndGet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"timezone": "UTC"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
	if got := m.Get(); got == nil || got.Timezone != "UTC" {
		t.Fatalf("Get = %+v", got)
	}
}
