// Package memory keeps sessions in process memory. It serves single-instance
// deployments and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/larek/internal/domain/state"
)

var _ state.Store = (*SessionStore)(nil)

type sessionEntry struct {
	session   state.Session
	expiresAt time.Time
}

// SessionStore is a state.Store with idle expiry.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// NewSessionStore creates a store whose sessions expire after ttl without
// a Save. A zero ttl keeps sessions forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

func clone(s state.Session) state.Session {
	s.Basket = slices.Clone(s.Basket)
	if s.Preview != nil {
		p := *s.Preview
		s.Preview = &p
	}
	if s.Order != nil {
		o := *s.Order
		o.Items = slices.Clone(o.Items)
		s.Order = &o
	}
	return s
}

func (s *SessionStore) expired(e *sessionEntry, now time.Time) bool {
	return s.ttl > 0 && !now.Before(e.expiresAt)
}

// Get returns a copy of the stored session.
func (s *SessionStore) Get(_ context.Context, id string) (*state.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.expired(e, s.now()) {
		return nil, state.ErrSessionNotFound
	}
	sess := clone(e.session)
	return &sess, nil
}

// Save stores a copy of sess and extends its lifetime.
func (s *SessionStore) Save(_ context.Context, sess *state.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sess.ID] = &sessionEntry{
		session:   clone(*sess),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cleanup removes expired sessions.
func (s *SessionStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
		}
	}
}

// StartCleanup launches a background goroutine that evicts expired sessions
// every interval. It stops when ctx is cancelled.
func (s *SessionStore) StartCleanup(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}
