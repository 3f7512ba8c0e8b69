package queue

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store. State is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	queues map[string]*memQueue
}

type memQueue struct {
	q       Queue
	nextSeq int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string]*memQueue)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mq, ok := s.queues[id]
	if !ok {
		return nil, ErrNotFound
	}
	q := mq.q
	q.Members = slices.Clone(mq.q.Members)
	q.Blacklist = slices.Clone(mq.q.Blacklist)
	return &q, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Queue, 0, len(s.queues))
	for _, mq := range s.queues {
		q := mq.q
		q.Members = nil
		q.Blacklist = nil
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, id, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[id]; ok {
		return ErrAlreadyExists
	}
	s.queues[id] = &memQueue{q: Queue{ID: id, DisplayName: displayName}}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[id]; !ok {
		return ErrNotFound
	}
	delete(s.queues, id)
	return nil
}

func (s *MemoryStore) UpdateConfig(_ context.Context, id string, upd ConfigUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mq, ok := s.queues[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Open != nil {
		mq.q.Open = *upd.Open
	}
	if upd.Level != nil {
		mq.q.Level = *upd.Level
	}
	if upd.Limit != nil {
		mq.q.Limit = *upd.Limit
	}
	return nil
}

func (s *MemoryStore) AddMember(_ context.Context, id string, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mq, ok := s.queues[id]
	if !ok {
		return ErrNotFound
	}
	mq.nextSeq++
	m.Seq = mq.nextSeq
	mq.q.Members = append(mq.q.Members, m)
	return nil
}

func (s *MemoryStore) RemoveMembers(_ context.Context, id string, match func(Member) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mq, ok := s.queues[id]
	if !ok {
		return 0, ErrNotFound
	}
	before := len(mq.q.Members)
	mq.q.Members = slices.DeleteFunc(mq.q.Members, match)
	return before - len(mq.q.Members), nil
}

func (s *MemoryStore) ListMembers(_ context.Context, id string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mq, ok := s.queues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(mq.q.Members), nil
}

func (s *MemoryStore) AddBlacklistEntry(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mq, ok := s.queues[id]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(mq.q.Blacklist, name) {
		mq.q.Blacklist = append(mq.q.Blacklist, name)
	}
	return nil
}

func (s *MemoryStore) RemoveBlacklistEntry(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mq, ok := s.queues[id]
	if !ok {
		return ErrNotFound
	}
	mq.q.Blacklist = slices.DeleteFunc(mq.q.Blacklist, func(b string) bool { return b == name })
	return nil
}

func (s *MemoryStore) ListBlacklist(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mq, ok := s.queues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(mq.q.Blacklist), nil
}
