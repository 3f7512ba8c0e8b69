package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/onnwee/queuebot/queue"
)

// Rejection overrides the default phrasing of one outcome for a command.
// {user} in Text is replaced by the invocation's Target.
type Rejection struct {
	Err  error
	Text string
}

var outcomes = []error{
	queue.ErrNotFound,
	queue.ErrInvalidState,
	queue.ErrAlreadyInState,
	queue.ErrPermissionDenied,
	queue.ErrValidation,
	queue.ErrCapacityExceeded,
	queue.ErrAlreadyMember,
	queue.ErrNotMember,
	queue.ErrBanned,
	queue.ErrAlreadyBanned,
	queue.ErrNotBanned,
	queue.ErrEmptyQueue,
	queue.ErrInsufficientMembers,
	queue.ErrAlreadyExists,
}

// isRejection reports whether err is an expected refusal rather than a
// failure of the bot or its store.
func isRejection(err error) bool {
	if errors.Is(err, queue.ErrStoreFailure) {
		return false
	}
	for _, o := range outcomes {
		if errors.Is(err, o) {
			return true
		}
	}
	return false
}

// describe renders a failed command as reply text without the mention.
func describe(cmd *Command, inv *Invocation, err error) string {
	for _, r := range cmd.Rejections {
		if errors.Is(err, r.Err) {
			return strings.ReplaceAll(r.Text, "{user}", inv.Target)
		}
	}

	var perr *queue.PermissionError
	if errors.As(err, &perr) {
		if perr.Required == queue.RankModerator {
			return fmt.Sprintf("you must be at least a mod to %s.", perr.Action)
		}
		return fmt.Sprintf("you must be at least %s to %s this queue.", perr.Required, perr.Action)
	}
	var verr *queue.ValidationError
	if errors.As(err, &verr) {
		return describeValidation(verr)
	}

	switch {
	case errors.Is(err, queue.ErrStoreFailure):
		return failure(cmd)
	case errors.Is(err, queue.ErrNotFound):
		return "could not find a queue for this channel."
	case errors.Is(err, queue.ErrInvalidState):
		return "the queue is currently closed."
	case errors.Is(err, queue.ErrCapacityExceeded):
		return "the queue is currently FULL."
	case errors.Is(err, queue.ErrAlreadyMember):
		return "you are already in the queue."
	case errors.Is(err, queue.ErrNotMember):
		return "you are not in the queue."
	case errors.Is(err, queue.ErrBanned):
		return "you are banned from joining the queue."
	case errors.Is(err, queue.ErrAlreadyBanned):
		return fmt.Sprintf("the user %s is already blacklisted.", inv.Target)
	case errors.Is(err, queue.ErrNotBanned):
		return fmt.Sprintf("the user %s is not blacklisted.", inv.Target)
	case errors.Is(err, queue.ErrEmptyQueue):
		return "the queue is empty."
	case errors.Is(err, queue.ErrInsufficientMembers):
		return "there are not enough users in the queue to pick."
	case errors.Is(err, queue.ErrAlreadyInState):
		return "the queue is already in that state."
	}
	return failure(cmd)
}

func describeValidation(verr *queue.ValidationError) string {
	switch verr.Field {
	case queue.FieldLevel:
		return "invalid queue level. Please use [Viewer, Subscriber, VIP or Moderator]"
	case queue.FieldLimit:
		switch verr.Reason {
		case queue.ReasonMissing:
			return "you must specify a queue limit. (!limit <number>)"
		case queue.ReasonNegative:
			return "the queue limit cannot be negative."
		default:
			return "the queue limit must be a number."
		}
	default:
		return "you must specify a user."
	}
}

func failure(cmd *Command) string {
	if cmd.Action == "" {
		return "something went wrong, please try again."
	}
	return "failed to " + cmd.Action + "."
}

// levelPlural renders a rank the way replies address a group, e.g. "VIPs".
func levelPlural(r queue.Rank) string { return r.String() + "s" }

// numbered renders names as "1. a, 2. b".
func numbered(ms []queue.Member) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = fmt.Sprintf("%d. %s", i+1, m.Name)
	}
	return strings.Join(parts, ", ")
}

func usersIn(n int) string {
	if n == 1 {
		return "there is 1 user in the queue."
	}
	return fmt.Sprintf("there are %d users in the queue.", n)
}

// statusText renders the !queue reply body.
func statusText(q *queue.Queue) string {
	n := len(q.Members)
	switch {
	case !q.Open:
		return "the queue is currently closed."
	case q.Full():
		return fmt.Sprintf("the queue is currently open however it is FULL. There are %d users in the queue. Use !join to join the queue when users are removed.", n)
	case q.Limit == 0:
		return fmt.Sprintf("the queue is currently open. There are %d users in the queue. There is no user limit and is open for %s. Use !join to join the queue.", n, levelPlural(q.Level))
	default:
		return fmt.Sprintf("the queue is currently open. There are %d users in the queue. The queue is currently at %d/%d and is open for %s. Use !join to join the queue.", n, n, q.Limit, levelPlural(q.Level))
	}
}

// openedText renders the !open success body.
func openedText(s queue.Snapshot) string {
	if s.Limit == 0 {
		return fmt.Sprintf("the queue is now open for %s. There is no user limit.", levelPlural(s.Level))
	}
	return fmt.Sprintf("the queue is now open for %s. The queue is currently at %d/%d.", levelPlural(s.Level), s.Count, s.Limit)
}
