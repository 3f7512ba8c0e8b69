package queue

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Mode chooses how Select picks members.
type Mode int

const (
	// Sequential takes members in arrival order.
	Sequential Mode = iota
	// Random takes members from a uniformly shuffled copy of the queue.
	Random
)

func (m Mode) String() string {
	if m == Random {
		return "random"
	}
	return "sequential"
}

// ParseCount reads the pick count argument. Absent or non-numeric input
// means 1; other values pass through unchanged, including zero and negatives.
// Numbers outside the int range saturate so an oversized count still fails
// as insufficient members.
func ParseCount(tok string) int {
	tok = strings.TrimSpace(tok)
	n, err := strconv.Atoi(tok)
	switch {
	case err == nil:
		return n
	case errors.Is(err, strconv.ErrRange) && strings.HasPrefix(tok, "-"):
		return math.MinInt
	case errors.Is(err, strconv.ErrRange):
		return math.MaxInt
	default:
		return 1
	}
}

// Select removes count members from the queue and returns them in the order
// they were picked. A count below 1 picks nobody.
func (s *Service) Select(ctx context.Context, id string, actor Sender, count int, mode Mode) ([]Member, error) {
	if err := requireModerator(actor, "pick a user from the queue"); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(q.Members) == 0 {
		return nil, ErrEmptyQueue
	}
	if count > len(q.Members) {
		return nil, ErrInsufficientMembers
	}
	if count < 1 {
		return nil, nil
	}

	order := q.Members
	if mode == Random {
		order = s.shuffled(q.Members)
	}
	picked := make([]Member, count)
	copy(picked, order[:count])

	chosen := make(map[int64]struct{}, count)
	for _, m := range picked {
		chosen[m.Seq] = struct{}{}
	}
	n, err := s.store.RemoveMembers(ctx, id, func(m Member) bool {
		_, ok := chosen[m.Seq]
		return ok
	})
	if err != nil {
		return nil, storeErr("remove members", err)
	}
	if n != count {
		s.logger.Warn("selection removed unexpected member count",
			slog.String("queue_id", id), slog.Int("want", count), slog.Int("removed", n),
			slog.String("component", "queue_select"))
	}
	return picked, nil
}

// shuffled returns a Fisher–Yates permutation of members without touching
// the input slice.
func (s *Service) shuffled(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	s.rngMu.Lock()
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.rngMu.Unlock()
	return out
}
