package core

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"quackbot/internal/transport"
	logx "quackbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access

	PluginName string
	Timeout    time.Duration // optional per-command override
	Handle     HandlerFunc
}

type Request struct {
	Update  transport.Update
	Chat    transport.ChatTarget
	FromID  string
	GuildID string
	Command string
	Args    []string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter transport.Adapter
	Config  *Config
	Logger  logx.Logger
	Owners  []string
}

// Reply sends text back to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, nil)
	return err
}

// ReplyQuiet sends text without link previews.
func (r *Request) ReplyQuiet(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &transport.SendOptions{SuppressEmbeds: true})
	return err
}

type CommandManager struct {
	mu sync.RWMutex

	cmds  map[string]*Command
	alias map[string]*Command

	owners []string

	log     logx.Logger
	adapter transport.Adapter
	cfgm    *ConfigManager

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter transport.Adapter, cfgm *ConfigManager, owners []string) *CommandManager {
	return &CommandManager{
		cmds:    map[string]*Command{},
		alias:   map[string]*Command{},
		log:     log,
		adapter: adapter,
		cfgm:    cfgm,
		owners:  append([]string(nil), owners...),
		jobs:    make(chan func(), 256),
	}
}

// SetOwners swaps the owner list used for AccessOwnerOnly checks. Safe to
// call during hot reload.
func (m *CommandManager) SetOwners(owners []string) {
	cp := append([]string(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *CommandManager) ownersSnapshot() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.owners...)
}

// SetRegistry replaces the command registry. A help command is always
// injected.
func (m *CommandManager) SetRegistry(cmds []Command) {
	helper := Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "show available commands",
		Usage:       "/help [command]",
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyQuiet(ctx, m.helpText(req.Args))
		},
	}
	cmds = append(cmds, helper)

	reg := map[string]*Command{}
	alias := map[string]*Command{}
	for _, c := range cmds {
		if c.Name == "" || c.Handle == nil {
			continue
		}
		cc := c
		reg[c.Name] = &cc
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = &cc
		}
	}

	m.mu.Lock()
	m.cmds = reg
	m.alias = alias
	m.mu.Unlock()
}

func (m *CommandManager) lookup(word string) (*Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cmds[word]; ok {
		return c, true
	}
	c, ok := m.alias[word]
	return c, ok
}

// DispatchLoop consumes updates and runs matched commands on a bounded
// worker pool until ctx is cancelled or the channel closes.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Kind == transport.UpdateMessage {
				m.routeMessage(ctx, up)
			}
		}
	}
}

func (m *CommandManager) routeMessage(root context.Context, up transport.Update) {
	msg := up.Message
	if msg == nil || msg.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	cmd, ok := m.lookup(word)
	if !ok {
		return
	}

	owners := m.ownersSnapshot()
	chat := transport.ChatTarget{ChannelID: msg.ChannelID}
	if cmd.Access == AccessOwnerOnly && !contains(owners, msg.FromID) {
		_, _ = m.adapter.SendText(root, chat, "unauthorized", nil)
		return
	}

	pos, flags, bools := parseFlags(args)
	rid := newReqID()
	req := &Request{
		Update:    up,
		Chat:      chat,
		FromID:    msg.FromID,
		GuildID:   msg.GuildID,
		Command:   cmd.Name,
		Args:      pos,
		RawArgs:   args,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Adapter:   m.adapter,
		Config:    m.cfgm.Get(),
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.String("channel", msg.ChannelID),
			logx.String("from", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
		Owners: owners,
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case m.jobs <- func() { _ = final(root, req) }:
	default:
		_, _ = m.adapter.SendText(root, chat, "busy, try again", nil)
	}
}

func (m *CommandManager) helpText(args []string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(args) > 0 {
		word := strings.TrimPrefix(args[0], "/")
		c, ok := m.cmds[word]
		if !ok {
			c, ok = m.alias[word]
		}
		if !ok {
			return "command not found. try /help"
		}
		lines := []string{"/" + c.Name, c.Description}
		if c.Usage != "" {
			lines = append(lines, "Usage: "+c.Usage)
		}
		if len(c.Aliases) > 0 {
			lines = append(lines, "Aliases: /"+strings.Join(c.Aliases, ", /"))
		}
		return strings.Join(lines, "\n")
	}

	names := make([]string, 0, len(m.cmds))
	for name := range m.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := []string{"Commands (use /help <command> for details):"}
	for _, name := range names {
		c := m.cmds[name]
		if c.Description != "" {
			lines = append(lines, "- /"+name+" - "+c.Description)
		} else {
			lines = append(lines, "- /"+name)
		}
	}
	return strings.Join(lines, "\n")
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
