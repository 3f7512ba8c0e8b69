package commands

import (
	"context"
	"log/slog"

	"github.com/onnwee/queuebot/queue"
	"github.com/onnwee/queuebot/telemetry"
)

type queueHandlers struct {
	svc *queue.Service
}

func (h *queueHandlers) commands() []Command {
	return []Command{
		{Keyword: "!queue", Handler: h.status, Action: "get the queue"},
		{Keyword: "!join", Handler: h.join, Action: "join the queue"},
		{Keyword: "!leave", Handler: h.leave, Action: "leave the queue"},
		{
			Keyword: "!open", Handler: h.open, Action: "open the queue",
			Rejections: []Rejection{{queue.ErrAlreadyInState, "the queue is already open."}},
		},
		{
			Keyword: "!close", Handler: h.close, Action: "close the queue",
			Rejections: []Rejection{{queue.ErrAlreadyInState, "the queue is already closed."}},
		},
		{
			Keyword: "!clear", Handler: h.clear, Action: "clear the queue",
			Rejections: []Rejection{{queue.ErrEmptyQueue, "the queue is already empty."}},
		},
		{Keyword: "!length", Handler: h.length, Action: "get the queue length"},
		{
			Keyword: "!level", Handler: h.level, Action: "set the queue level",
			Rejections: []Rejection{{queue.ErrValidation, "please use a valid level."}},
		},
		{Keyword: "!list", Handler: h.list, Action: "get the queue list"},
		{Keyword: "!limit", Handler: h.limit, Action: "set the queue length"},
		{Keyword: "!pick", Handler: h.pick(queue.Sequential), Action: "pick a user"},
		{Keyword: "!rand", Handler: h.pick(queue.Random), Action: "pick a user"},
		{
			Keyword: "!remove", Handler: h.remove, Action: "remove a user",
			Rejections: []Rejection{
				{queue.ErrNotMember, "the user {user} is not in the queue."},
				{queue.ErrValidation, "you must specify a user to remove."},
			},
		},
		{
			Keyword: "!blacklist", Handler: h.ban, Action: "blacklist a user",
			Rejections: []Rejection{{queue.ErrValidation, "you must specify a user to blacklist."}},
		},
		{
			Keyword: "!unblacklist", Handler: h.unban, Action: "unblacklist a user",
			Rejections: []Rejection{{queue.ErrValidation, "you must specify a user to unblacklist."}},
		},
		{Keyword: "!qhelp", Handler: qhelp},
		{Keyword: "!help", Handler: qhelp},
	}
}

func (h *queueHandlers) status(ctx context.Context, inv *Invocation) (string, error) {
	q, err := h.svc.Status(ctx, inv.RoomID)
	if err != nil {
		return "", err
	}
	return inv.Reply("%s", statusText(q)), nil
}

func (h *queueHandlers) join(ctx context.Context, inv *Invocation) (string, error) {
	pos, err := h.svc.Join(ctx, inv.RoomID, inv.Sender)
	if err != nil {
		return "", err
	}
	return inv.Reply("you have joined the queue (position %d).", pos), nil
}

func (h *queueHandlers) leave(ctx context.Context, inv *Invocation) (string, error) {
	if err := h.svc.Leave(ctx, inv.RoomID, inv.Sender); err != nil {
		return "", err
	}
	return inv.Reply("you have left the queue."), nil
}

func (h *queueHandlers) open(ctx context.Context, inv *Invocation) (string, error) {
	snap, err := h.svc.Open(ctx, inv.RoomID, inv.Sender, inv.Arg(0), inv.Arg(1))
	if err != nil {
		return "", err
	}
	return inv.Reply("%s", openedText(snap)), nil
}

func (h *queueHandlers) close(ctx context.Context, inv *Invocation) (string, error) {
	if err := h.svc.Close(ctx, inv.RoomID, inv.Sender); err != nil {
		return "", err
	}
	return inv.Reply("the queue is now closed."), nil
}

func (h *queueHandlers) clear(ctx context.Context, inv *Invocation) (string, error) {
	if _, err := h.svc.Clear(ctx, inv.RoomID, inv.Sender); err != nil {
		return "", err
	}
	return inv.Reply("the queue has been cleared."), nil
}

func (h *queueHandlers) length(ctx context.Context, inv *Invocation) (string, error) {
	n, err := h.svc.Length(ctx, inv.RoomID)
	if err != nil {
		return "", err
	}
	return inv.Reply("%s", usersIn(n)), nil
}

func (h *queueHandlers) level(ctx context.Context, inv *Invocation) (string, error) {
	tok := inv.Arg(0)
	r, err := h.svc.Level(ctx, inv.RoomID, inv.Sender, tok)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return inv.Reply("the queue is for %s.", levelPlural(r)), nil
	}
	return inv.Reply("the queue is now for %s.", levelPlural(r)), nil
}

func (h *queueHandlers) list(ctx context.Context, inv *Invocation) (string, error) {
	ms, err := h.svc.List(ctx, inv.RoomID)
	if err != nil {
		return "", err
	}
	if len(ms) == 0 {
		return "", queue.ErrEmptyQueue
	}
	return inv.Reply("the queue is: %s", numbered(ms)), nil
}

func (h *queueHandlers) limit(ctx context.Context, inv *Invocation) (string, error) {
	n, err := h.svc.SetLimit(ctx, inv.RoomID, inv.Sender, inv.Arg(0))
	if err != nil {
		return "", err
	}
	if n == 0 {
		return inv.Reply("the queue limit has been removed."), nil
	}
	return inv.Reply("the queue limit has been set to %d.", n), nil
}

func (h *queueHandlers) pick(mode queue.Mode) HandlerFunc {
	return func(ctx context.Context, inv *Invocation) (string, error) {
		picked, err := h.svc.Select(ctx, inv.RoomID, inv.Sender, queue.ParseCount(inv.Arg(0)), mode)
		if err != nil {
			return "", err
		}
		if len(picked) == 0 {
			return inv.Reply("no users were picked."), nil
		}
		if telemetry.MembersSelected != nil {
			telemetry.MembersSelected.WithLabelValues(mode.String()).Add(float64(len(picked)))
		}
		telemetry.LoggerWithCorr(ctx).Info("picked users",
			slog.String("queue_id", inv.RoomID),
			slog.String("mode", mode.String()),
			slog.Int("count", len(picked)),
			slog.String("component", "commands"))
		return inv.Reply("the picked user(s) is/are: %s", numbered(picked)), nil
	}
}

func (h *queueHandlers) remove(ctx context.Context, inv *Invocation) (string, error) {
	name, err := h.svc.Remove(ctx, inv.RoomID, inv.Sender, inv.Arg(0))
	inv.Target = name
	if err != nil {
		return "", err
	}
	return inv.Reply("%s has been removed from the queue.", name), nil
}

func (h *queueHandlers) ban(ctx context.Context, inv *Invocation) (string, error) {
	name, err := h.svc.Ban(ctx, inv.RoomID, inv.Sender, inv.Arg(0))
	inv.Target = name
	if err != nil {
		return "", err
	}
	return inv.Reply("%s has been blacklisted from the queue.", name), nil
}

func (h *queueHandlers) unban(ctx context.Context, inv *Invocation) (string, error) {
	name, err := h.svc.Unban(ctx, inv.RoomID, inv.Sender, inv.Arg(0))
	inv.Target = name
	if err != nil {
		return "", err
	}
	return inv.Reply("%s has been unblacklisted from the queue.", name), nil
}
