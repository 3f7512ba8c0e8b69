package queue

import "context"

// Ban adds name to the queue's blacklist. Duplicate detection is exact-name;
// enforcement in Join ignores case. Members already enrolled stay enrolled.
func (s *Service) Ban(ctx context.Context, id string, actor Sender, target string) (string, error) {
	if err := requireModerator(actor, "add a blacklist to the queue"); err != nil {
		return "", err
	}
	name := TrimName(target)
	if name == "" {
		return "", &ValidationError{Field: FieldTarget, Reason: ReasonMissing}
	}

	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return name, err
	}
	for _, b := range q.Blacklist {
		if b == name {
			return name, ErrAlreadyBanned
		}
	}
	return name, storeErr("add blacklist entry", s.store.AddBlacklistEntry(ctx, id, name))
}

// Unban removes the exact-name blacklist entry for name.
func (s *Service) Unban(ctx context.Context, id string, actor Sender, target string) (string, error) {
	if err := requireModerator(actor, "remove a blacklist from the queue"); err != nil {
		return "", err
	}
	name := TrimName(target)
	if name == "" {
		return "", &ValidationError{Field: FieldTarget, Reason: ReasonMissing}
	}

	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return name, err
	}
	found := false
	for _, b := range q.Blacklist {
		if b == name {
			found = true
			break
		}
	}
	if !found {
		return name, ErrNotBanned
	}
	return name, storeErr("remove blacklist entry", s.store.RemoveBlacklistEntry(ctx, id, name))
}
