// Package memstore is the bare in-memory session backend. Test/dev only:
// not durable, not shared across processes.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/webidscan/auth-server/session"
)

var _ session.Store = (*Store)(nil)

type entry struct {
	snapshot  session.Snapshot
	expiresAt time.Time
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]entry
	byAcct   map[string]map[string]struct{} // accountID -> set of sids
	nowTime  func() time.Time
}

type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = now
	}
}

func New(options ...Option) *Store {
	s := &Store{
		sessions: make(map[string]entry),
		byAcct:   make(map[string]map[string]struct{}),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Put(_ context.Context, sid string, snapshot session.Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sid] = entry{snapshot: snapshot, expiresAt: s.nowTime().Add(ttl)}

	if _, ok := s.byAcct[snapshot.AccountID]; !ok {
		s.byAcct[snapshot.AccountID] = make(map[string]struct{})
	}
	s.byAcct[snapshot.AccountID][sid] = struct{}{}
	return nil
}

func (s *Store) Get(_ context.Context, sid string) (session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sid]
	if !ok {
		return session.Snapshot{}, session.ErrNotFound
	}
	if !e.expiresAt.After(s.nowTime()) {
		s.removeLocked(sid, e.snapshot.AccountID)
		return session.Snapshot{}, session.ErrNotFound
	}
	return e.snapshot, nil
}

func (s *Store) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	s.removeLocked(sid, e.snapshot.AccountID)
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sid := range s.byAcct[accountID] {
		delete(s.sessions, sid)
	}
	delete(s.byAcct, accountID)
	return nil
}

// Purge drops expired entries. Callers may run it periodically; Get already
// treats expired entries as absent, so purging only reclaims memory.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowTime()
	for sid, e := range s.sessions {
		if !e.expiresAt.After(now) {
			s.removeLocked(sid, e.snapshot.AccountID)
		}
	}
}

func (s *Store) removeLocked(sid, accountID string) {
	delete(s.sessions, sid)
	if set, ok := s.byAcct[accountID]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(s.byAcct, accountID)
		}
	}
}
