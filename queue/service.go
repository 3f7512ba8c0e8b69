// Package queue implements the per-channel sign-up queue: its open/closed
// lifecycle, membership, selection and blacklist rules, and the permission
// ranks that gate them.
//
// Service is the only entrypoint. It holds no queue state of its own; every
// call reads from and writes to a Store. Mutating calls on the same queue id
// are serialized so that the read, the validation and the write of one
// command complete before the next command on that id observes the queue.
// Calls on different ids never contend.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/onnwee/queuebot/telemetry"
)

// Service coordinates queue operations over a Store.
type Service struct {
	store  Store
	locks  *lockTable
	logger *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the random source used by random selection.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locks:  newLockTable(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// ErrAlreadyExists is returned by Register for a channel that already has a queue.
var ErrAlreadyExists = errors.New("queue already exists")

func (s *Service) load(ctx context.Context, id string) (*Queue, error) {
	var (
		q   *Queue
		err error
	)
	telemetry.TimeFunc(telemetry.StoreObserver("get"), func() {
		q, err = s.store.Get(ctx, id)
	})
	if err != nil {
		return nil, storeErr("get", err)
	}
	return q, nil
}

func requireModerator(actor Sender, action string) error {
	if actor.Rank() < RankModerator {
		return &PermissionError{Required: RankModerator, Action: action}
	}
	return nil
}

// Register creates a closed queue for a channel.
func (s *Service) Register(ctx context.Context, id, displayName string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	_, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		return ErrAlreadyExists
	case !errors.Is(err, ErrNotFound):
		return storeErr("get", err)
	}
	return storeErr("create", s.store.Create(ctx, id, displayName))
}

// Unregister deletes a channel's queue along with its members and blacklist.
func (s *Service) Unregister(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return storeErr("delete", s.store.Delete(ctx, id))
}

// Channels lists every registered queue.
func (s *Service) Channels(ctx context.Context) ([]Queue, error) {
	qs, err := s.store.List(ctx)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return qs, nil
}

// Status returns a snapshot of the queue.
func (s *Service) Status(ctx context.Context, id string) (*Queue, error) {
	return s.load(ctx, id)
}
