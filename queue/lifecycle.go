package queue

import (
	"context"
	"strconv"
	"strings"
)

// Snapshot is the configuration and size reported after a lifecycle change.
type Snapshot struct {
	Open  bool
	Level Rank
	Limit int
	Count int
}

// parseLimit reads a non-negative integer argument.
func parseLimit(tok string) (int, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, &ValidationError{Field: FieldLimit, Reason: ReasonMissing}
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &ValidationError{Field: FieldLimit, Reason: ReasonNotNumber}
	}
	if n < 0 {
		return 0, &ValidationError{Field: FieldLimit, Reason: ReasonNegative}
	}
	return n, nil
}

func parseLevel(tok string) (Rank, error) {
	r, ok := ParseRank(tok)
	if !ok {
		return 0, &ValidationError{Field: FieldLevel, Reason: ReasonUnknown}
	}
	return r, nil
}

// Open moves a closed queue to open. Empty tokens keep the queue's current
// level and limit; present tokens replace them.
func (s *Service) Open(ctx context.Context, id string, actor Sender, levelTok, limitTok string) (Snapshot, error) {
	if err := requireModerator(actor, "open the queue"); err != nil {
		return Snapshot{}, err
	}

	var level *Rank
	if levelTok != "" {
		r, err := parseLevel(levelTok)
		if err != nil {
			return Snapshot{}, err
		}
		level = &r
	}
	var limit *int
	if limitTok != "" {
		n, err := parseLimit(limitTok)
		if err != nil {
			return Snapshot{}, err
		}
		limit = &n
	}

	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if q.Open {
		return Snapshot{}, ErrAlreadyInState
	}

	open := true
	upd := ConfigUpdate{Open: &open}
	if level != nil && *level != q.Level {
		upd.Level = level
		q.Level = *level
	}
	if limit != nil && *limit != q.Limit {
		upd.Limit = limit
		q.Limit = *limit
	}
	if err := s.store.UpdateConfig(ctx, id, upd); err != nil {
		return Snapshot{}, storeErr("update config", err)
	}
	return Snapshot{Open: true, Level: q.Level, Limit: q.Limit, Count: len(q.Members)}, nil
}

// Close moves an open queue to closed. Closing a closed queue writes nothing.
func (s *Service) Close(ctx context.Context, id string, actor Sender) error {
	if err := requireModerator(actor, "close the queue"); err != nil {
		return err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !q.Open {
		return ErrAlreadyInState
	}
	open := false
	return storeErr("update config", s.store.UpdateConfig(ctx, id, ConfigUpdate{Open: &open}))
}

// SetLimit changes the queue's capacity in either lifecycle state. 0 removes
// the limit.
func (s *Service) SetLimit(ctx context.Context, id string, actor Sender, tok string) (int, error) {
	if err := requireModerator(actor, "set the queue limit"); err != nil {
		return 0, err
	}
	n, err := parseLimit(tok)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.load(ctx, id); err != nil {
		return 0, err
	}
	if err := s.store.UpdateConfig(ctx, id, ConfigUpdate{Limit: &n}); err != nil {
		return 0, storeErr("update config", err)
	}
	return n, nil
}

// Level reports the queue's eligibility level when tok is empty and
// otherwise replaces it. Only the change requires moderator rank.
func (s *Service) Level(ctx context.Context, id string, actor Sender, tok string) (Rank, error) {
	if tok == "" {
		q, err := s.load(ctx, id)
		if err != nil {
			return 0, err
		}
		return q.Level, nil
	}

	if err := requireModerator(actor, "change the queue level"); err != nil {
		return 0, err
	}
	r, err := parseLevel(tok)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.load(ctx, id); err != nil {
		return 0, err
	}
	if err := s.store.UpdateConfig(ctx, id, ConfigUpdate{Level: &r}); err != nil {
		return 0, storeErr("update config", err)
	}
	return r, nil
}
