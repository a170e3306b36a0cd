package core

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Discord   DiscordConfig              `json:"discord"`
	Logging   LoggingConfig              `json:"logging"`
	Memory    MemoryConfig               `json:"memory"`
	Notion    NotionConfig               `json:"notion"`
	AI        AIConfig                   `json:"ai"`
	Queue     QueueConfig                `json:"queue"`
	EventSync EventSyncConfig            `json:"eventsync"`
	Scheduler SchedulerConfig            `json:"scheduler"`
	Timezone  string                     `json:"timezone"`
	Plugins   map[string]PluginConfigRaw `json:"plugins"`
}

type DiscordConfig struct {
	Token        string   `json:"token"`
	GuildID      string   `json:"guild_id"`
	OwnerUserIDs []string `json:"owner_user_ids"`
	RatePerSec   float64  `json:"rate_per_sec"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}
type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type MemoryConfig struct {
	Driver string `json:"driver"` // "file", "sqlite" or "none"
	Path   string `json:"path"`
	// LockTimeout is a Go duration string (e.g. "5s").
	LockTimeout string `json:"lock_timeout"`
}

type NotionConfig struct {
	Token      string `json:"token"`
	EventsDB   string `json:"events_db"`
	TasksDB    string `json:"tasks_db"`
	PublicProp string `json:"public_prop"`
}

type AIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

type QueueConfig struct {
	// AllowedUserIDs may schedule messages; empty denies everyone.
	AllowedUserIDs []string `json:"allowed_user_ids"`
	// TickInterval is a Go duration string; default "1m".
	TickInterval string `json:"tick_interval"`
}

// EventSyncConfig defaults to enabled whenever Notion is configured.
type EventSyncConfig struct {
	Enabled         *bool  `json:"enabled,omitempty"`
	DigestAt        string `json:"digest_at"` // "HH:MM"
	DigestChannelID string `json:"digest_channel_id"`
}

// SchedulerConfig defaults to enabled: the dispatch tick and daily digest
// stop only when the config block explicitly disables them.
type SchedulerConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type PluginConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields so stale keys are caught during
// config reload instead of being silently ignored.
func (p *PluginConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = PluginConfigRaw{Enabled: t.Enabled, Config: t.Config}
	return nil
}
