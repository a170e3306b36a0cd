package ai

import (
	"context"
	"errors"
	"strings"

	aiclient "quackbot/internal/ai"
	"quackbot/internal/core"
	logx "quackbot/pkg/logx"
)

const errReply = "An error occurred while using the AI. PS. this feature is unfortunately easy to break."

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "ai" }

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
			Name:        "askai",
			Description: "ask the AI a question (single turn, no memory)",
			Usage:       "/askai <question>",
			Access:      core.AccessEveryone,
			Handle:      p.handleAsk,
		},
	}
}

func (p *Plugin) handleAsk(ctx context.Context, req *core.Request) error {
	question := strings.TrimSpace(strings.Join(req.Args, " "))
	if question == "" {
		return req.Reply(ctx, "Ask something, e.g. /askai why do ducks quack?")
	}

	answer, err := p.deps.Services.AI.Ask(ctx, question)
	if err != nil {
		if errors.Is(err, aiclient.ErrUnavailable) {
			return req.Reply(ctx, "The AI is not configured.")
		}
		p.log.Warn("ai request failed", logx.Err(err))
		return req.Reply(ctx, errReply)
	}
	return req.Reply(ctx, answer)
}
