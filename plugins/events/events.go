package events

import (
	"context"
	"fmt"

	"quackbot/internal/core"
	logx "quackbot/pkg/logx"
)

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "events" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.deps = deps
	p.log = deps.Logger.With(logx.String("plugin", p.Name()))
	return nil
}

func (p *Plugin) Start(ctx context.Context) error { return nil }
func (p *Plugin) Stop(ctx context.Context) error  { return nil }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Name:        "eventsync",
			Description: "sync Notion events to Discord scheduled events",
			Usage:       "/eventsync",
			Access:      core.AccessEveryone,
			Handle:      p.handleSync,
		},
		{
			Name:        "listtasks",
			Description: "list tasks marked as In progress from Notion",
			Usage:       "/listtasks",
			Access:      core.AccessEveryone,
			Handle:      p.handleListTasks,
		},
		{
			Name:        "cleardiscordeventsmemory",
			Description: "forget which Discord events are managed",
			Usage:       "/cleardiscordeventsmemory",
			Access:      core.AccessOwnerOnly,
			Handle:      p.handleClearMemory,
		},
		{
			Name:        "clearbotevents",
			Description: "delete every Discord event created by the bot",
			Usage:       "/clearbotevents",
			Access:      core.AccessOwnerOnly,
			Handle:      p.handleClearBotEvents,
		},
	}
}

func (p *Plugin) ready(ctx context.Context, req *core.Request) bool {
	if p.deps.Services.Events == nil {
		_ = req.Reply(ctx, "Event sync is not configured.")
		return false
	}
	return true
}

func (p *Plugin) handleSync(ctx context.Context, req *core.Request) error {
	if !p.ready(ctx, req) {
		return nil
	}
	rep, err := p.deps.Services.Events.Reconcile(ctx)
	if err != nil {
		p.log.Error("event sync failed", logx.Err(err))
		return req.Reply(ctx, "Failed to query Notion events.")
	}
	return req.ReplyQuiet(ctx, rep.Render("Updated events:", "Failed to update events:"))
}

func (p *Plugin) handleListTasks(ctx context.Context, req *core.Request) error {
	if !p.ready(ctx, req) {
		return nil
	}
	rep, err := p.deps.Services.Events.ListTasks(ctx)
	if err != nil {
		p.log.Error("task listing failed", logx.Err(err))
		return req.Reply(ctx, "Failed to query Notion tasks.")
	}
	return req.ReplyQuiet(ctx, "Filtering by status as In progress.\n"+
		rep.Render("Tasks in progress:", "Failed to fetch tasks:"))
}

func (p *Plugin) handleClearMemory(ctx context.Context, req *core.Request) error {
	if !p.ready(ctx, req) {
		return nil
	}
	p.deps.Services.Events.ClearMemory(ctx)
	return req.Reply(ctx, "Clear complete!")
}

func (p *Plugin) handleClearBotEvents(ctx context.Context, req *core.Request) error {
	if !p.ready(ctx, req) {
		return nil
	}
	n, err := p.deps.Services.Events.ClearBotEvents(ctx)
	if err != nil {
		p.log.Error("clear bot events failed", logx.Err(err))
		return req.Reply(ctx, fmt.Sprintf("Deleted %d events before failing: %v", n, err))
	}
	return req.Reply(ctx, fmt.Sprintf("Successfully deleted %d events.", n))
}
