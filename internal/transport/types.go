package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           string
	ChannelID    string
	GuildID      string
	FromID       string
	FromUsername string
	Text         string
	IsBot        bool
}

type ChatTarget struct {
	ChannelID string
}

type MessageRef struct {
	ChannelID string
	MessageID string
}

type SendOptions struct {
	// SuppressEmbeds disables link previews on the sent message.
	SuppressEmbeds bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
