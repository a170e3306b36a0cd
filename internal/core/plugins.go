package core

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"

	"quackbot/internal/ai"
	"quackbot/internal/memory"
	"quackbot/internal/services/eventsync"
	"quackbot/internal/services/msgqueue"
	"quackbot/internal/services/scheduler"
	"quackbot/internal/transport"
	"quackbot/pkg/itch"
	logx "quackbot/pkg/logx"
)

type Plugin interface {
	Name() string
	Init(ctx context.Context, deps PluginDeps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Commands() []Command
}

// ConfigurablePlugin receives its raw config blob on load and whenever it
// changes on reload.
type ConfigurablePlugin interface {
	OnConfigChange(ctx context.Context, raw json.RawMessage) error
}

// Services bundles the shared subsystems plugins may call.
type Services struct {
	Queue     *msgqueue.Service
	Events    *eventsync.Service
	Scheduler *scheduler.Service
	AI        *ai.Client
	Jam       *itch.Scraper
	Store     memory.Store
}

type PluginDeps struct {
	Logger   logx.Logger
	Adapter  transport.Adapter
	Config   *ConfigManager
	Services *Services
	Owners   []string
}

type PluginManager struct {
	mu sync.Mutex

	log  logx.Logger
	cfgm *ConfigManager
	deps PluginDeps
	cmdm *CommandManager

	reg         map[string]Plugin
	order       []string
	run         map[string]bool
	lastRawHash map[string]uint64
}

func NewPluginManager(log logx.Logger, cfgm *ConfigManager, deps PluginDeps, cmdm *CommandManager) *PluginManager {
	return &PluginManager{
		log:         log,
		cfgm:        cfgm,
		deps:        deps,
		cmdm:        cmdm,
		reg:         map[string]Plugin{},
		run:         map[string]bool{},
		lastRawHash: map[string]uint64{},
	}
}

func (pm *PluginManager) Register(plugins ...Plugin) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, p := range plugins {
		name := p.Name()
		if name == "" {
			return fmt.Errorf("plugin with empty name")
		}
		if _, exists := pm.reg[name]; exists {
			return fmt.Errorf("plugin %q already registered", name)
		}
		pm.reg[name] = p
		pm.order = append(pm.order, name)
	}
	return nil
}

// StartAll initializes and starts every enabled plugin in registration
// order, then publishes the combined command registry. A plugin that fails
// to start is skipped with a log entry; the rest keep going.
func (pm *PluginManager) StartAll(ctx context.Context) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	cfg := pm.cfgm.Get()
	for _, name := range pm.order {
		p := pm.reg[name]
		if !pm.enabled(cfg, name) {
			pm.log.Debug("plugin disabled", logx.String("plugin", name))
			continue
		}
		if err := p.Init(ctx, pm.deps); err != nil {
			pm.log.Error("plugin init failed", logx.String("plugin", name), logx.Err(err))
			continue
		}
		if cp, ok := p.(ConfigurablePlugin); ok {
			raw := pm.rawConfig(cfg, name)
			if err := cp.OnConfigChange(ctx, raw); err != nil {
				pm.log.Error("plugin config rejected", logx.String("plugin", name), logx.Err(err))
				continue
			}
			pm.lastRawHash[name] = hashBytes(raw)
		}
		if err := p.Start(ctx); err != nil {
			pm.log.Error("plugin start failed", logx.String("plugin", name), logx.Err(err))
			continue
		}
		pm.run[name] = true
		pm.log.Info("plugin started", logx.String("plugin", name))
	}
	pm.rebuildRegistryLocked()
}

// StopAll stops running plugins in reverse registration order.
func (pm *PluginManager) StopAll(ctx context.Context) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for i := len(pm.order) - 1; i >= 0; i-- {
		name := pm.order[i]
		if !pm.run[name] {
			continue
		}
		if err := pm.reg[name].Stop(ctx); err != nil {
			pm.log.Error("plugin stop failed", logx.String("plugin", name), logx.Err(err))
		}
		pm.run[name] = false
	}
}

// OnConfigUpdate pushes changed plugin config blobs to running plugins.
// Blobs are hashed so unrelated reloads do not poke every plugin.
func (pm *PluginManager) OnConfigUpdate(ctx context.Context, cfg *Config) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, name := range pm.order {
		if !pm.run[name] {
			continue
		}
		cp, ok := pm.reg[name].(ConfigurablePlugin)
		if !ok {
			continue
		}
		raw := pm.rawConfig(cfg, name)
		h := hashBytes(raw)
		if h == pm.lastRawHash[name] {
			continue
		}
		if err := cp.OnConfigChange(ctx, raw); err != nil {
			pm.log.Error("plugin config rejected", logx.String("plugin", name), logx.Err(err))
			continue
		}
		pm.lastRawHash[name] = h
	}
}

func (pm *PluginManager) rebuildRegistryLocked() {
	var cmds []Command
	for _, name := range pm.order {
		if !pm.run[name] {
			continue
		}
		for _, c := range pm.reg[name].Commands() {
			c.PluginName = name
			cmds = append(cmds, c)
		}
	}
	pm.cmdm.SetRegistry(cmds)
}

// enabled defaults to on: a plugin is only skipped when the config block
// exists and disables it.
func (pm *PluginManager) enabled(cfg *Config, name string) bool {
	if cfg == nil || cfg.Plugins == nil {
		return true
	}
	raw, ok := cfg.Plugins[name]
	if !ok {
		return true
	}
	return raw.Enabled
}

func (pm *PluginManager) rawConfig(cfg *Config, name string) json.RawMessage {
	if cfg == nil || cfg.Plugins == nil {
		return nil
	}
	return cfg.Plugins[name].Config
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
