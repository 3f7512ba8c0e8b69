package queue

import (
	"context"
	"strings"
)

// Join enrolls the sender at the back of the queue and returns their
// 1-based position.
//
// Membership is matched on the exact display name while the blacklist is
// matched case-insensitively; Leave also ignores case.
func (s *Service) Join(ctx context.Context, id string, actor Sender) (int, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	for _, m := range q.Members {
		if m.Name == actor.Name {
			return 0, ErrAlreadyMember
		}
	}
	for _, b := range q.Blacklist {
		if strings.EqualFold(b, actor.Name) {
			return 0, ErrBanned
		}
	}
	if !q.Open {
		return 0, ErrInvalidState
	}
	if q.Full() {
		return 0, ErrCapacityExceeded
	}
	if actor.Rank() < q.Level {
		return 0, &PermissionError{Required: q.Level, Action: "join"}
	}

	if err := s.store.AddMember(ctx, id, Member{UserID: actor.UserID, Name: actor.Name}); err != nil {
		return 0, storeErr("add member", err)
	}
	return len(q.Members) + 1, nil
}

// Leave removes every member row whose name matches the sender's,
// ignoring case.
func (s *Service) Leave(ctx context.Context, id string, actor Sender) error {
	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	found := false
	for _, m := range q.Members {
		if strings.EqualFold(m.Name, actor.Name) {
			found = true
			break
		}
	}
	if !found {
		return ErrNotMember
	}
	_, err = s.store.RemoveMembers(ctx, id, func(m Member) bool {
		return strings.EqualFold(m.Name, actor.Name)
	})
	return storeErr("remove members", err)
}

// List returns the members in arrival order.
func (s *Service) List(ctx context.Context, id string) ([]Member, error) {
	q, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.Members, nil
}

// Length returns the number of enrolled members.
func (s *Service) Length(ctx context.Context, id string) (int, error) {
	q, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(q.Members), nil
}

// Remove takes the member with exactly the given name out of the queue and
// returns the name removed.
func (s *Service) Remove(ctx context.Context, id string, actor Sender, target string) (string, error) {
	if err := requireModerator(actor, "remove a user from the queue"); err != nil {
		return "", err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if len(q.Members) == 0 {
		return "", ErrEmptyQueue
	}
	name := TrimName(target)
	if name == "" {
		return "", &ValidationError{Field: FieldTarget, Reason: ReasonMissing}
	}
	found := false
	for _, m := range q.Members {
		if m.Name == name {
			found = true
			break
		}
	}
	if !found {
		return name, ErrNotMember
	}
	if _, err := s.store.RemoveMembers(ctx, id, func(m Member) bool { return m.Name == name }); err != nil {
		return name, storeErr("remove members", err)
	}
	return name, nil
}

// Clear removes every member and returns how many were enrolled.
func (s *Service) Clear(ctx context.Context, id string, actor Sender) (int, error) {
	if err := requireModerator(actor, "clear the queue"); err != nil {
		return 0, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	q, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(q.Members) == 0 {
		return 0, ErrEmptyQueue
	}
	n, err := s.store.RemoveMembers(ctx, id, func(Member) bool { return true })
	if err != nil {
		return 0, storeErr("remove members", err)
	}
	return n, nil
}
