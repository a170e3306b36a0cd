package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"quackbot/internal/core"
	"quackbot/internal/services/msgqueue"
	"quackbot/pkg/chatfmt"
	logx "quackbot/pkg/logx"
)

const defaultListLimit = 10

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "queue" }

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
			Name:        "messagequeuing",
			Aliases:     []string{"schedule"},
			Description: "send a message at a scheduled time",
			Usage:       "/messagequeuing [--channel <id>] [--date YYYY-MM-DD] [--time HH:MM] <message>",
			Access:      core.AccessEveryone,
			Handle:      p.handleSchedule,
		},
		{
			Name:        "queuelist",
			Description: "list pending scheduled messages",
			Usage:       "/queuelist [--limit <n>]",
			Access:      core.AccessEveryone,
			Handle:      p.handleList,
		},
	}
}

func (p *Plugin) handleSchedule(ctx context.Context, req *core.Request) error {
	svc := p.deps.Services.Queue
	if svc == nil {
		return req.Reply(ctx, "Message queueing is not available.")
	}

	message := strings.TrimSpace(strings.Join(req.Args, " "))
	if message == "" {
		return req.Reply(ctx, "Nothing to schedule. "+msgqueue.ErrUsage.Error())
	}

	channel := req.Flags["channel"]
	if channel == "" {
		channel = req.Chat.ChannelID
	}

	id, err := svc.Schedule(ctx, msgqueue.ScheduleRequest{
		CallerID:  req.FromID,
		ChannelID: channel,
		Message:   message,
		Date:      req.Flags["date"],
		TimeOfDay: req.Flags["time"],
		AuthorID:  req.FromID,
	})
	switch {
	case errors.Is(err, msgqueue.ErrNotAuthorized):
		return req.Reply(ctx, "You are not allowed to schedule messages.")
	case errors.Is(err, msgqueue.ErrUsage):
		return req.Reply(ctx, msgqueue.ErrUsage.Error())
	case err != nil:
		p.log.Error("schedule failed", logx.Err(err))
		return req.Reply(ctx, "Could not schedule the message.")
	}

	jobs, _ := svc.ListPending(-1)
	for _, j := range jobs {
		if j.ID == id {
			return req.ReplyQuiet(ctx, fmt.Sprintf("Scheduled message #%d for %s.",
				id, chatfmt.ShortDateTime(j.DueAt)))
		}
	}
	return req.ReplyQuiet(ctx, fmt.Sprintf("Scheduled message #%d.", id))
}

func (p *Plugin) handleList(ctx context.Context, req *core.Request) error {
	svc := p.deps.Services.Queue
	if svc == nil {
		return req.Reply(ctx, "Message queueing is not available.")
	}

	limit := defaultListLimit
	if v := req.Flags["limit"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, total := svc.ListPending(limit)
	if total == 0 {
		return req.Reply(ctx, "The message queue is empty.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pending messages (showing %d of %d):\n", len(jobs), total)
	for _, j := range jobs {
		fmt.Fprintf(&b, "- #%d %s in <#%s>: %s\n",
			j.ID, chatfmt.ShortDateTime(j.DueAt), j.ChannelID, truncate(j.Message, 80))
	}
	return req.ReplyQuiet(ctx, strings.TrimRight(b.String(), "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
