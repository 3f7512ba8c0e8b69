package queue

import (
	"context"
	"strings"
)

// Queue is one channel's sign-up queue, keyed by the channel owner's user id.
type Queue struct {
	ID          string
	DisplayName string
	Open        bool
	Level       Rank
	// Limit caps the member count; 0 means unlimited.
	Limit     int
	Members   []Member
	Blacklist []string
}

// Full reports whether a limited queue has reached its capacity.
func (q *Queue) Full() bool { return q.Limit != 0 && len(q.Members) >= q.Limit }

// Member is a user currently enrolled in a queue. Seq is assigned by the
// store on insert and orders members by arrival.
type Member struct {
	Seq    int64
	UserID string
	Name   string
}

// ConfigUpdate changes a queue's settings. Nil fields are left untouched.
type ConfigUpdate struct {
	Open  *bool
	Level *Rank
	Limit *int
}

// Store is the durable record of every queue. Implementations return
// ErrNotFound for a missing queue and any other error for infrastructure
// failures.
type Store interface {
	// Get returns the queue with its members in insertion order and its blacklist.
	Get(ctx context.Context, id string) (*Queue, error)
	// List returns every queue without members or blacklist.
	List(ctx context.Context) ([]Queue, error)
	Create(ctx context.Context, id, displayName string) error
	Delete(ctx context.Context, id string) error
	UpdateConfig(ctx context.Context, id string, upd ConfigUpdate) error
	// AddMember appends m after every existing member.
	AddMember(ctx context.Context, id string, m Member) error
	// RemoveMembers deletes every member for which match returns true and
	// reports how many were removed.
	RemoveMembers(ctx context.Context, id string, match func(Member) bool) (int, error)
	ListMembers(ctx context.Context, id string) ([]Member, error)
	AddBlacklistEntry(ctx context.Context, id, name string) error
	RemoveBlacklistEntry(ctx context.Context, id, name string) error
	ListBlacklist(ctx context.Context, id string) ([]string, error)
}

// TrimName strips surrounding whitespace and a leading @ from a name argument.
func TrimName(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
