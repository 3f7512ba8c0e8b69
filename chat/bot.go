package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/queuebot/commands"
	"github.com/onnwee/queuebot/queue"
	"github.com/onnwee/queuebot/telemetry"
)

// Handler consumes chat messages.
type Handler interface {
	Handle(ctx context.Context, msg commands.Message)
}

// Bot is the Twitch IRC connection.
type Bot struct {
	client   *twitch.Client
	username string
	home     string

	connected atomic.Bool

	// mu orders inflight.Add against drain so no handler starts after Run
	// begins waiting.
	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// NewBot returns a Bot that logs in as username and, once connected, joins
// the bot's home channel.
func NewBot(username, token, home string) *Bot {
	return &Bot{
		client:   twitch.NewClient(strings.ToLower(username), ircToken(token)),
		username: strings.ToLower(username),
		home:     strings.ToLower(strings.TrimPrefix(home, "#")),
	}
}

func ircToken(tok string) string {
	if tok == "" || strings.HasPrefix(tok, "oauth:") {
		return tok
	}
	return "oauth:" + tok
}

// Say sends text to channel.
func (b *Bot) Say(channel, text string) { b.client.Say(channel, text) }

// Join joins channels. Calls before Run are queued by the client.
func (b *Bot) Join(channels ...string) { b.client.Join(channels...) }

// Depart leaves channel.
func (b *Bot) Depart(channel string) { b.client.Depart(channel) }

// SetToken replaces the OAuth token used on the next (re)connect.
func (b *Bot) SetToken(token string) { b.client.SetIRCToken(ircToken(token)) }

// Connected reports whether the IRC session is up.
func (b *Bot) Connected() bool { return b.connected.Load() }

// Run connects and dispatches messages to h until ctx is cancelled or the
// connection fails. In-flight handlers finish before Run returns.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	// Handlers outlive a shutdown signal so a command that already read the
	// queue also gets to write it and reply.
	hctx := context.WithoutCancel(ctx)
	b.client.OnPrivateMessage(func(pm twitch.PrivateMessage) {
		b.dispatch(hctx, h, toMessage(pm, b.username))
	})
	b.client.OnConnect(func() {
		b.connected.Store(true)
		slog.Info("twitch chat connected", slog.String("user", b.username), slog.String("component", "chat"))
	})
	if b.home != "" {
		b.client.Join(b.home)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- b.client.Connect() }()

	var err error
	select {
	case <-ctx.Done():
		if derr := b.client.Disconnect(); derr != nil {
			slog.Debug("twitch disconnect", slog.Any("err", derr), slog.String("component", "chat"))
		}
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			slog.Warn("twitch client did not stop in time", slog.String("component", "chat"))
		}
	case err = <-errCh:
	}
	b.connected.Store(false)
	b.drain()

	if err == nil || errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	return fmt.Errorf("twitch chat: %w", err)
}

func (b *Bot) dispatch(ctx context.Context, h Handler, msg commands.Message) {
	if telemetry.MessagesReceived != nil {
		telemetry.MessagesReceived.Inc()
	}
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		slog.Debug("dropping message received during shutdown", slog.String("channel", msg.Channel), slog.String("component", "chat"))
		return
	}
	b.inflight.Add(1)
	b.mu.Unlock()
	go func() {
		defer b.inflight.Done()
		h.Handle(ctx, msg)
	}()
}

// drain stops accepting messages and waits for running handlers.
func (b *Bot) drain() {
	b.mu.Lock()
	b.draining = true
	b.mu.Unlock()
	b.inflight.Wait()
}

// toMessage converts an IRC PRIVMSG. Role flags come from either the tag or
// the badge; the broadcaster badge counts as moderator.
func toMessage(pm twitch.PrivateMessage, self string) commands.Message {
	name := pm.User.DisplayName
	if name == "" {
		name = pm.User.Name
	}
	badge := func(k string) bool { return pm.User.Badges[k] > 0 }
	tag := func(k string) bool { return pm.Tags[k] == "1" }

	return commands.Message{
		Channel: pm.Channel,
		RoomID:  pm.RoomID,
		Login:   pm.User.Name,
		Text:    pm.Message,
		Self:    strings.EqualFold(pm.User.Name, self),
		Sender: queue.Sender{
			UserID:     pm.User.ID,
			Name:       name,
			ChannelID:  pm.RoomID,
			Moderator:  tag("mod") || badge("moderator") || badge("broadcaster"),
			VIP:        tag("vip") || badge("vip"),
			Subscriber: tag("subscriber") || badge("subscriber") || badge("founder"),
		},
	}
}
