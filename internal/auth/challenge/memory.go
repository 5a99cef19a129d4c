package challenge

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	challenge Challenge
	expires   time.Time
}

// MemoryStore is a process-local Store. A background sweeper evicts entries
// past their retention until Close is called.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	retention time.Duration
	now       func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore keeps each challenge for retention and sweeps expired ones
// every sweepInterval.
func NewMemoryStore(retention, sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	s := &MemoryStore{
		entries:   make(map[string]memoryEntry),
		retention: retention,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

func (s *MemoryStore) Put(_ context.Context, c Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[c.OwnerKey] = memoryEntry{challenge: c, expires: s.now().Add(s.retention)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || s.now().After(e.expires) {
		return nil, nil
	}
	c := e.challenge
	return &c, nil
}

func (s *MemoryStore) Consume(_ context.Context, key, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.challenge.Nonce != nonce {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Len returns the number of retained entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper and waits for it to exit.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
}

func (s *MemoryStore) sweep(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, key)
		}
	}
}
