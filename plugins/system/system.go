package system

import (
	"context"

	"quackbot/internal/core"
	logx "quackbot/pkg/logx"
)

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "system" }

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
			Name:        "ping",
			Description: "test command for bot online testing",
			Usage:       "/ping",
			Access:      core.AccessEveryone,
			Handle: func(ctx context.Context, req *core.Request) error {
				return req.Reply(ctx, "pong")
			},
		},
		{
			Name:        "duck",
			Description: "quack",
			Usage:       "/duck",
			Access:      core.AccessEveryone,
			Handle: func(ctx context.Context, req *core.Request) error {
				return req.Reply(ctx, "\U0001F986")
			},
		},
		{
			Name:        "clearmemory",
			Description: "clear all memory files",
			Usage:       "/clearmemory",
			Access:      core.AccessOwnerOnly,
			Handle:      p.handleClearMemory,
		},
	}
}

func (p *Plugin) handleClearMemory(ctx context.Context, req *core.Request) error {
	store := p.deps.Services.Store
	if store == nil {
		return req.Reply(ctx, "No memory store is configured.")
	}
	return req.Reply(ctx, "Clearing memory files:\n"+store.ClearAll(ctx))
}
