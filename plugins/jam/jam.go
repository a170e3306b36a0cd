package jam

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quackbot/internal/core"
	"quackbot/internal/memory"
	"quackbot/pkg/chatfmt"
	"quackbot/pkg/itch"
	logx "quackbot/pkg/logx"
)

// Settings is the per-guild tracked jam, persisted under "jam_<guildID>".
type Settings struct {
	URL         string    `json:"jam_url"`
	Title       string    `json:"jam_title"`
	LastStatus  string    `json:"last_status"`
	SetBy       string    `json:"set_by"`
	SetAt       time.Time `json:"set_at"`
	LastChecked time.Time `json:"last_checked"`
}

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "jam" }

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
			Name:        "jamtime",
			Description: "get remaining time for an itch.io game jam",
			Usage:       "/jamtime <url>",
			Access:      core.AccessEveryone,
			Handle:      p.handleJamTime,
		},
		{
			Name:        "setjam",
			Description: "set the tracked jam URL for this server",
			Usage:       "/setjam <url>",
			Access:      core.AccessEveryone,
			Handle:      p.handleSetJam,
		},
		{
			Name:        "remaining-time",
			Aliases:     []string{"remainingtime"},
			Description: "get remaining submission time for the server's set jam",
			Usage:       "/remaining-time",
			Access:      core.AccessEveryone,
			Handle:      p.handleRemaining,
		},
		{
			Name:        "jam-end-date",
			Description: "get the actual end date of the server's set jam",
			Usage:       "/jam-end-date",
			Access:      core.AccessEveryone,
			Handle:      p.handleEndDate,
		},
		{
			Name:        "clear-jam",
			Description: "clear the tracked jam URL for this server",
			Usage:       "/clear-jam",
			Access:      core.AccessEveryone,
			Handle:      p.handleClear,
		},
		{
			Name:        "jam-info",
			Description: "show current jam settings for this server",
			Usage:       "/jam-info",
			Access:      core.AccessEveryone,
			Handle:      p.handleInfo,
		},
	}
}

func settingsKey(guildID string) string {
	if guildID == "" {
		guildID = "0"
	}
	return "jam_" + guildID
}

func (p *Plugin) load(ctx context.Context, guildID string) Settings {
	return memory.LoadObject(ctx, p.deps.Services.Store, settingsKey(guildID), Settings{})
}

func (p *Plugin) save(ctx context.Context, guildID string, s Settings) {
	memory.SyncObject(ctx, p.deps.Services.Store, settingsKey(guildID), s)
}

func statusEmoji(s itch.Status) string {
	switch s {
	case itch.StatusRunning:
		return "🟢"
	case itch.StatusEnded:
		return "🔴"
	case itch.StatusUpcoming:
		return "🟡"
	default:
		return "⚪"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (p *Plugin) handleJamTime(ctx context.Context, req *core.Request) error {
	if len(req.Args) == 0 || !itch.ValidURL(itch.CleanURL(req.Args[0])) {
		return req.Reply(ctx, "❌ Please provide a valid itch.io jam URL (must start with "+itch.JamURLPrefix+")")
	}
	jam, err := p.deps.Services.Jam.Scrape(ctx, req.Args[0])
	if err != nil {
		return req.Reply(ctx, "❌ **Error:** "+err.Error())
	}
	return req.ReplyQuiet(ctx, formatJamStatus(jam, time.Now()))
}

func (p *Plugin) handleSetJam(ctx context.Context, req *core.Request) error {
	if len(req.Args) == 0 || !itch.ValidURL(itch.CleanURL(req.Args[0])) {
		return req.Reply(ctx, "❌ Please provide a valid itch.io jam URL (must start with "+itch.JamURLPrefix+")")
	}
	url := itch.CleanURL(req.Args[0])
	jam, err := p.deps.Services.Jam.Scrape(ctx, url)
	if err != nil {
		return req.Reply(ctx, "❌ **Failed to set jam URL:** "+err.Error())
	}

	now := time.Now()
	p.save(ctx, req.GuildID, Settings{
		URL:         url,
		Title:       jam.Title,
		LastStatus:  string(jam.Status),
		SetBy:       req.FromID,
		SetAt:       now,
		LastChecked: now,
	})

	return req.ReplyQuiet(ctx, strings.Join([]string{
		"✅ **Jam URL Updated Successfully!**",
		"",
		"🎮 **Jam:** " + jam.Title,
		"📊 **Status:** " + capitalize(string(jam.Status)),
		"🔗 **URL:** " + url,
		"👤 **Set by:** " + chatfmt.Mention(req.FromID),
		"⏰ **Set at:** " + chatfmt.ShortDateTime(now),
		"",
		"💡 **Use `/remaining-time` to check submission deadline anytime!**",
	}, "\n"))
}

func (p *Plugin) handleRemaining(ctx context.Context, req *core.Request) error {
	st := p.load(ctx, req.GuildID)
	if st.URL == "" {
		return req.Reply(ctx, "❌ **No jam URL set for this server!**\nUse `/setjam <url>` to set a jam URL first.")
	}
	jam, err := p.deps.Services.Jam.Scrape(ctx, st.URL)
	if err != nil {
		return req.Reply(ctx, "❌ **Error fetching jam data:** "+err.Error())
	}

	now := time.Now()
	st.LastStatus = string(jam.Status)
	st.LastChecked = now
	p.save(ctx, req.GuildID, st)

	remaining := jam.Remaining(now)
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**\n", statusEmoji(jam.Status), jam.Title)
	fmt.Fprintf(&b, "**Status:** %s\n", capitalize(string(jam.Status)))
	switch {
	case remaining != "":
		fmt.Fprintf(&b, "**⏰ Submission Time Remaining:** %s\n", remaining)
	case jam.Status == itch.StatusEnded:
		b.WriteString("**⏰ Submission Time Remaining:** Submissions closed\n")
	default:
		b.WriteString("**⏰ Submission Time Remaining:** Not available\n")
	}
	fmt.Fprintf(&b, "**URL:** %s\n", jam.URL)
	fmt.Fprintf(&b, "*Last updated: %s*", chatfmt.Relative(now))
	return req.ReplyQuiet(ctx, b.String())
}

func (p *Plugin) handleEndDate(ctx context.Context, req *core.Request) error {
	st := p.load(ctx, req.GuildID)
	if st.URL == "" {
		return req.Reply(ctx, "❌ **No jam URL set for this server!**\nUse `/setjam <url>` to set a jam URL first.")
	}
	jam, err := p.deps.Services.Jam.Scrape(ctx, st.URL)
	if err != nil {
		return req.Reply(ctx, "❌ **Error fetching jam data:** "+err.Error())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 **%s - Jam Schedule**\n\n", jam.Title)
	if jam.SubmissionEnd != nil {
		fmt.Fprintf(&b, "📝 **Submission Deadline:** %s\n", chatfmt.FullDateTime(*jam.SubmissionEnd))
		fmt.Fprintf(&b, "⏰ **Submission Deadline (Relative):** %s\n\n", chatfmt.Relative(*jam.SubmissionEnd))
	}
	switch {
	case jam.JamEnd != nil && (jam.SubmissionEnd == nil || !jam.JamEnd.Equal(*jam.SubmissionEnd)):
		fmt.Fprintf(&b, "🏁 **Jam Actually Ends:** %s\n", chatfmt.FullDateTime(*jam.JamEnd))
		fmt.Fprintf(&b, "🕒 **Jam End (Relative):** %s\n\n", chatfmt.Relative(*jam.JamEnd))
	default:
		b.WriteString("🏁 **Jam End Date:** Same as submission deadline\n\n")
	}
	fmt.Fprintf(&b, "🔗 **URL:** %s\n", jam.URL)
	fmt.Fprintf(&b, "*Last updated: %s*", chatfmt.Relative(time.Now()))
	return req.ReplyQuiet(ctx, b.String())
}

func (p *Plugin) handleClear(ctx context.Context, req *core.Request) error {
	st := p.load(ctx, req.GuildID)
	if st.URL == "" {
		return req.Reply(ctx, "❌ **No jam URL set for this server.**")
	}
	title := st.Title
	if title == "" {
		title = "Unknown Jam"
	}
	p.save(ctx, req.GuildID, Settings{})
	return req.Reply(ctx, fmt.Sprintf("✅ **Cleared jam URL for '%s'**", title))
}

func (p *Plugin) handleInfo(ctx context.Context, req *core.Request) error {
	st := p.load(ctx, req.GuildID)
	if st.URL == "" {
		return req.Reply(ctx, "❌ **No jam URL set for this server!**\nUse `/setjam <url>` to set a jam URL first.")
	}

	setAt := "Unknown"
	if !st.SetAt.IsZero() {
		setAt = chatfmt.Relative(st.SetAt)
	}
	checked := "Never"
	if !st.LastChecked.IsZero() {
		checked = chatfmt.Relative(st.LastChecked)
	}

	return req.ReplyQuiet(ctx, strings.Join([]string{
		"📋 **Server Jam Settings**",
		"",
		"**Jam:** " + st.Title,
		"**Status:** " + capitalize(st.LastStatus),
		"**URL:** " + st.URL,
		"**Set by:** " + chatfmt.Mention(st.SetBy),
		"**Set:** " + setAt,
		"**Last checked:** " + checked,
		"",
		"Use `/remaining-time` to get current status!",
	}, "\n"))
}

func formatJamStatus(jam itch.Jam, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**\n", statusEmoji(jam.Status), jam.Title)
	fmt.Fprintf(&b, "**Status:** %s\n", capitalize(string(jam.Status)))
	if remaining := jam.Remaining(now); remaining != "" {
		fmt.Fprintf(&b, "**Time Remaining:** %s\n", remaining)
	} else if jam.Status == itch.StatusEnded {
		b.WriteString("**Time Remaining:** Jam has ended\n")
	}
	fmt.Fprintf(&b, "**URL:** %s", jam.URL)
	return b.String()
}
