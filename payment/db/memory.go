package db

import (
	"sync"
	"time"

	"github.com/google/btree"
)

// expiry orders records by deadline, ties broken by id so every record has
// its own slot in the tree.
type expiry struct {
	at time.Time
	id string
}

func (a expiry) Less(b btree.Item) bool {
	o := b.(expiry)
	if !a.at.Equal(o.at) {
		return a.at.Before(o.at)
	}
	return a.id < o.id
}

// MemoryStore is a process-local Store. Records without an ExpiresAt are
// kept until replaced.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]PendingPayment // payment id → record
	index   *btree.BTree              // expiry items, earliest first
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]PendingPayment),
		index:   btree.New(2),
		now:     time.Now,
	}
}

// WithClock replaces the clock Get and Update use to hide expired records.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Put(p PendingPayment) error {
	if p.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records[p.ID]; ok {
		s.unindex(old)
	}
	s.records[p.ID] = p
	s.reindex(p)
	return nil
}

func (s *MemoryStore) Get(id string) (PendingPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.records[id]
	if !ok || p.Expired(s.now()) {
		return PendingPayment{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Update(id string, fn func(*PendingPayment) error) (PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[id]
	if !ok || old.Expired(s.now()) {
		return PendingPayment{}, ErrNotFound
	}

	p := old
	if err := fn(&p); err != nil {
		return old, err
	}
	p.ID = id // the key is not mutable

	if !p.ExpiresAt.Equal(old.ExpiresAt) {
		s.unindex(old)
		s.reindex(p)
	}
	s.records[id] = p
	return p, nil
}

func (s *MemoryStore) Expire(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []expiry
	s.index.Ascend(func(it btree.Item) bool {
		e := it.(expiry)
		if e.at.After(now) {
			return false
		}
		due = append(due, e)
		return true
	})

	for _, e := range due {
		s.index.Delete(e)
		delete(s.records, e.id)
	}
	return len(due)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) reindex(p PendingPayment) {
	if !p.ExpiresAt.IsZero() {
		s.index.ReplaceOrInsert(expiry{at: p.ExpiresAt, id: p.ID})
	}
}

func (s *MemoryStore) unindex(p PendingPayment) {
	if !p.ExpiresAt.IsZero() {
		s.index.Delete(expiry{at: p.ExpiresAt, id: p.ID})
	}
}
