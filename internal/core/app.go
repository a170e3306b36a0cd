package core

import (
	"context"
	"fmt"
	"time"

	"quackbot/internal/ai"
	"quackbot/internal/memory"
	"quackbot/internal/notion"
	"quackbot/internal/services/eventsync"
	"quackbot/internal/services/msgqueue"
	"quackbot/internal/services/scheduler"
	"quackbot/internal/transport"
	"quackbot/internal/transport/discord"
	"quackbot/pkg/itch"
	logx "quackbot/pkg/logx"
)

const DefaultTimezone = "Australia/Melbourne"

// App owns the whole wiring: config, logging, storage, the chat adapter,
// services, and the plugin/command registries.
type App struct {
	cfgm *ConfigManager
	logs *logx.Service
	log  logx.Logger
	loc  *time.Location

	adapter *discord.Adapter
	store   memory.Store

	queue  *msgqueue.Service
	events *eventsync.Service
	sched  *scheduler.Service

	cmdm  *CommandManager
	plugm *PluginManager
	serv  *Services
}

func NewApp(ctx context.Context, configPath string) (*App, error) {
	cfgm := NewConfigManager(configPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(logxConfig(cfg), nil)

	tz := cfg.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("unknown timezone, using UTC", logx.String("timezone", tz))
		loc = time.UTC
	}

	store, err := memory.Open(memoryConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	if c, ok := store.(memory.StaleLockCleaner); ok {
		c.RemoveStaleLocks()
	}

	adapter, err := discord.New(discord.Config{
		Token:      cfg.Discord.Token,
		GuildID:    cfg.Discord.GuildID,
		RatePerSec: cfg.Discord.RatePerSec,
	}, log.With(logx.String("svc", "discord")))
	if err != nil {
		return nil, err
	}
	logs.SetSender(adapter)

	source, err := notion.New(notion.Config{
		Token:      cfg.Notion.Token,
		EventsDB:   cfg.Notion.EventsDB,
		TasksDB:    cfg.Notion.TasksDB,
		PublicProp: cfg.Notion.PublicProp,
	}, loc, log.With(logx.String("svc", "notion")))
	if err != nil {
		log.Warn("notion disabled", logx.Err(err))
	}

	queue := msgqueue.New(msgqueue.Config{Allowed: cfg.Queue.AllowedUserIDs},
		store, adapter, loc, log.With(logx.String("svc", "msgqueue")))

	var events *eventsync.Service
	if source != nil && (cfg.EventSync.Enabled == nil || *cfg.EventSync.Enabled) {
		events = eventsync.New(ctx, eventsync.Config{
			DigestAt: cfg.EventSync.DigestAt,
		}, store, source, adapter, discord.NewImageFetcher(), loc,
			log.With(logx.String("svc", "eventsync")))
	}

	sched := scheduler.New(scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled == nil || *cfg.Scheduler.Enabled,
		Timezone: schedulerTimezone(cfg, tz),
	}, log.With(logx.String("svc", "scheduler")))

	app := &App{
		cfgm:    cfgm,
		logs:    logs,
		log:     log,
		loc:     loc,
		adapter: adapter,
		store:   store,
		queue:   queue,
		events:  events,
		sched:   sched,
	}

	app.serv = &Services{
		Queue:     queue,
		Events:    events,
		Scheduler: sched,
		AI: ai.New(ai.Config{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
			AppName: "quackbot",
		}, log.With(logx.String("svc", "ai"))),
		Jam:   itch.NewScraper(),
		Store: store,
	}

	app.cmdm = NewCommandManager(log, adapter, cfgm, cfg.Discord.OwnerUserIDs)
	app.plugm = NewPluginManager(log, cfgm, PluginDeps{
		Logger:   log,
		Adapter:  adapter,
		Config:   cfgm,
		Services: app.serv,
		Owners:   cfg.Discord.OwnerUserIDs,
	}, app.cmdm)

	return app, nil
}

func (a *App) Logger() logx.Logger     { return a.log }
func (a *App) Plugins() *PluginManager { return a.plugm }
func (a *App) Services() *Services     { return a.serv }

// Run starts everything and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	updates := make(chan transport.Update, 256)
	if err := a.adapter.Start(ctx, updates); err != nil {
		return err
	}

	a.registerJobs(ctx)
	a.sched.Start(ctx)
	a.plugm.StartAll(ctx)

	go func() {
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Error("config watch failed", logx.Err(err))
		}
	}()
	go a.reloadLoop(ctx)

	err := a.cmdm.DispatchLoop(ctx, updates)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Persist anything still buffered, then tear down in reverse start order.
	a.queue.Flush(stopCtx)
	a.plugm.StopAll(stopCtx)
	a.sched.Stop(stopCtx)
	_ = a.adapter.Stop(stopCtx)
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
	return err
}

// registerJobs installs the recurring background work: the queue dispatch
// tick and the daily digest gate.
func (a *App) registerJobs(ctx context.Context) {
	cfg := a.cfgm.Get()

	tick := time.Minute
	if d, err := time.ParseDuration(cfg.Queue.TickInterval); err == nil && d >= time.Second {
		tick = d
	}
	_ = a.sched.AddInterval("queue_tick", tick, func(ctx context.Context) error {
		a.queue.Tick(ctx)
		return nil
	})

	if a.events != nil && cfg.EventSync.DigestAt != "" && cfg.EventSync.DigestChannelID != "" {
		channel := cfg.EventSync.DigestChannelID
		_ = a.sched.AddInterval("daily_digest", time.Minute, func(ctx context.Context) error {
			return a.events.RunDigestIfDue(ctx, nil, func(ctx context.Context, text string) error {
				return a.adapter.SendChannel(ctx, channel, text)
			})
		})
	}
}

// reloadLoop applies hot-reloadable settings when the config file changes.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(4)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok || cfg == nil {
				continue
			}
			a.logs.Apply(logxConfig(cfg))
			a.cmdm.SetOwners(cfg.Discord.OwnerUserIDs)
			a.queue.SetAllowed(cfg.Queue.AllowedUserIDs)
			if a.events != nil {
				if err := a.events.SetDigestTime(ctx, cfg.EventSync.DigestAt); err != nil {
					a.log.Warn("bad digest time in config", logx.Err(err))
				}
			}
			a.plugm.OnConfigUpdate(ctx, cfg)
			a.log.Info("config reloaded")
		}
	}
}

func logxConfig(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Discord: logx.DiscordConfig{
			Enabled:    cfg.Logging.Discord.Enabled,
			ChannelID:  cfg.Logging.Discord.ChannelID,
			MinLevel:   cfg.Logging.Discord.MinLevel,
			RatePerSec: cfg.Logging.Discord.RatePerSec,
		},
	}
}

func memoryConfig(cfg *Config) memory.Config {
	lockTimeout := time.Duration(0)
	if d, err := time.ParseDuration(cfg.Memory.LockTimeout); err == nil {
		lockTimeout = d
	}
	return memory.Config{
		Driver:      cfg.Memory.Driver,
		Path:        cfg.Memory.Path,
		LockTimeout: lockTimeout,
	}
}

func schedulerTimezone(cfg *Config, fallback string) string {
	if cfg.Scheduler.Timezone != "" {
		return cfg.Scheduler.Timezone
	}
	return fallback
}
