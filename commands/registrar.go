package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/queuebot/queue"
	"github.com/onnwee/queuebot/telemetry"
)

// UserResolver looks up a Twitch user id by login.
type UserResolver interface {
	GetUserID(ctx context.Context, login string) (string, error)
}

// Registrar manages which channels the bot sits in. Every registered channel
// owns exactly one queue; registering creates it and leaving deletes it.
type Registrar struct {
	svc     *queue.Service
	gw      Gateway
	users   UserResolver
	ownerID string

	// JoinDelay spaces out joins in JoinAll.
	JoinDelay time.Duration

	mu     sync.Mutex
	joined map[string]struct{}
}

// NewRegistrar returns a Registrar. users may be nil, in which case
// !manualjoin requires an explicit user id.
func NewRegistrar(svc *queue.Service, gw Gateway, users UserResolver, ownerID string) *Registrar {
	return &Registrar{
		svc:       svc,
		gw:        gw,
		users:     users,
		ownerID:   ownerID,
		JoinDelay: time.Second,
		joined:    make(map[string]struct{}),
	}
}

func (r *Registrar) commands() []Command {
	return []Command{
		{
			Keyword: "!joinchannel", Handler: r.joinChannel, Admin: true, Action: "join your channel",
			Rejections: []Rejection{
				{queue.ErrAlreadyExists, "I am already in your channel."},
				{queue.ErrStoreFailure, "Failed to join your channel."},
			},
		},
		{
			Keyword: "!leavechannel", Handler: r.leaveChannel, Admin: true, Action: "leave your channel",
			Rejections: []Rejection{
				{queue.ErrNotFound, "I am not in your channel."},
				{queue.ErrStoreFailure, "Failed to leave your channel."},
			},
		},
		{
			Keyword: "!manualjoin", Handler: r.manualJoin, Admin: true, Action: "join the channel",
			Rejections: []Rejection{
				{queue.ErrPermissionDenied, "You do not have permission to use this command."},
				{queue.ErrValidation, "Please provide a username and user ID."},
				{queue.ErrAlreadyExists, "I am already in {user}'s channel."},
				{queue.ErrStoreFailure, "Failed to join {user}'s channel."},
				{errResolve, "Failed to join {user}'s channel."},
			},
		},
	}
}

var errResolve = errors.New("resolve user id")

func (r *Registrar) joinChannel(ctx context.Context, inv *Invocation) (string, error) {
	if inv.Sender.UserID == "" || inv.Sender.Name == "" {
		return "", nil
	}
	if err := r.svc.Register(ctx, inv.Sender.UserID, inv.Sender.Name); err != nil {
		return "", err
	}
	r.join(channelLogin(inv.Login, inv.Sender.Name))
	return inv.Reply("I have joined your channel."), nil
}

func (r *Registrar) leaveChannel(ctx context.Context, inv *Invocation) (string, error) {
	if inv.Sender.UserID == "" || inv.Sender.Name == "" {
		return "", nil
	}
	if err := r.svc.Unregister(ctx, inv.Sender.UserID); err != nil {
		return "", err
	}
	r.depart(channelLogin(inv.Login, inv.Sender.Name))
	return inv.Reply("I have left your channel."), nil
}

func (r *Registrar) manualJoin(ctx context.Context, inv *Invocation) (string, error) {
	if r.ownerID == "" || inv.Sender.UserID != r.ownerID {
		return "", queue.ErrPermissionDenied
	}
	name := queue.TrimName(inv.Arg(0))
	inv.Target = name
	id := inv.Arg(1)
	if name == "" || (id == "" && r.users == nil) {
		return "", &queue.ValidationError{Field: queue.FieldTarget, Reason: queue.ReasonMissing}
	}
	if id == "" {
		resolved, err := r.users.GetUserID(ctx, strings.ToLower(name))
		if err != nil {
			return "", fmt.Errorf("%w %s: %w", errResolve, name, err)
		}
		id = resolved
	}
	if err := r.svc.Register(ctx, id, name); err != nil {
		return "", err
	}
	r.join(strings.ToLower(name))
	return inv.Reply("I have joined %s's channel.", name), nil
}

// JoinAll joins the channel of every registered queue, pausing JoinDelay
// between joins. It returns early when ctx is cancelled.
func (r *Registrar) JoinAll(ctx context.Context) error {
	qs, err := r.svc.Channels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	for i, q := range qs {
		if i > 0 && r.JoinDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.JoinDelay):
			}
		}
		login := strings.ToLower(q.DisplayName)
		r.join(login)
		slog.Info("joined channel", slog.String("channel", login), slog.String("queue_id", q.ID), slog.String("component", "registrar"))
	}
	return nil
}

// Joined returns the channels joined so far.
func (r *Registrar) Joined() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.joined))
	for c := range r.joined {
		out = append(out, c)
	}
	return out
}

func (r *Registrar) join(login string) {
	r.gw.Join(login)
	r.mu.Lock()
	r.joined[login] = struct{}{}
	n := len(r.joined)
	r.mu.Unlock()
	telemetry.SetChannelsJoined(n)
}

func (r *Registrar) depart(login string) {
	r.gw.Depart(login)
	r.mu.Lock()
	delete(r.joined, login)
	n := len(r.joined)
	r.mu.Unlock()
	telemetry.SetChannelsJoined(n)
}

// channelLogin prefers the sender's login and falls back to the lowercased
// display name.
func channelLogin(login, displayName string) string {
	if login != "" {
		return login
	}
	return strings.ToLower(displayName)
}
