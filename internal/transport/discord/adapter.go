// Package discord implements the chat transport on top of the Discord
// gateway and REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"quackbot/internal/transport"
	"quackbot/pkg/chatfmt"
	logx "quackbot/pkg/logx"
)

// Config holds the gateway credentials and the guild the bot operates in.
type Config struct {
	Token   string `json:"token"`
	GuildID string `json:"guild_id"`
	// RatePerSec caps outgoing messages; 0 uses a safe default.
	RatePerSec float64 `json:"rate_per_sec"`
}

const defaultRatePerSec = 1.0

// Adapter bridges discordgo sessions to the transport interfaces. It also
// exposes the scheduled-event CRUD used by the event reconciler.
type Adapter struct {
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	session *discordgo.Session
	remove  func()
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), 3),
	}, nil
}

// Start opens the gateway session and forwards message-create events to out.
// The out channel is never closed by the adapter; Stop terminates delivery.
func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return errors.New("discord: already started")
	}

	s, err := discordgo.New("Bot " + a.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: new session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentGuildScheduledEvents

	remove := s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		upd := transport.Update{
			Kind: transport.UpdateMessage,
			Message: &transport.Message{
				ID:           m.ID,
				ChannelID:    m.ChannelID,
				GuildID:      m.GuildID,
				FromID:       m.Author.ID,
				FromUsername: m.Author.Username,
				Text:         m.Content,
				IsBot:        m.Author.Bot,
			},
		}
		select {
		case out <- upd:
		case <-ctx.Done():
		}
	})

	if err := s.Open(); err != nil {
		remove()
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.session = s
	a.remove = remove
	a.log.Info("discord gateway connected", logx.String("guild", a.cfg.GuildID))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	a.remove()
	err := a.session.Close()
	a.session = nil
	a.remove = nil
	return err
}

// SendText posts text to a channel, splitting messages that exceed the
// platform limit. The returned ref points at the last chunk sent.
func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	s, err := a.live()
	if err != nil {
		return transport.MessageRef{}, err
	}
	var flags discordgo.MessageFlags
	if opt != nil && opt.SuppressEmbeds {
		flags = discordgo.MessageFlagsSuppressEmbeds
	}
	var last *discordgo.Message
	for _, chunk := range chatfmt.Chunk(text) {
		if err := a.limiter.Wait(ctx); err != nil {
			return transport.MessageRef{}, err
		}
		msg, err := s.ChannelMessageSendComplex(to.ChannelID, &discordgo.MessageSend{
			Content: chunk,
			Flags:   flags,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return transport.MessageRef{}, fmt.Errorf("discord: send to %s: %w", to.ChannelID, err)
		}
		last = msg
	}
	if last == nil {
		return transport.MessageRef{}, nil
	}
	return transport.MessageRef{ChannelID: last.ChannelID, MessageID: last.ID}, nil
}

// SendChannel satisfies the queue dispatcher's sender contract.
func (a *Adapter) SendChannel(ctx context.Context, channelID, text string) error {
	_, err := a.SendText(ctx, transport.ChatTarget{ChannelID: channelID}, text, nil)
	return err
}

func (a *Adapter) live() (*discordgo.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, errors.New("discord: not connected")
	}
	return a.session, nil
}

// botUserID returns the connected bot account's user ID.
func (a *Adapter) botUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || a.session.State == nil || a.session.State.User == nil {
		return ""
	}
	return a.session.State.User.ID
}
