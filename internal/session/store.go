package session

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// DefaultTTL is how long a session waits for a decision before expiring.
const DefaultTTL = time.Hour

// Store holds live sessions and owns their expiry timers. At most one live
// session exists per key; Put replaces (last-write-wins) and re-arms the
// timer. All mutations are mutex-guarded: Put and the timer firing are the
// only places timers are created or canceled.
type Store struct {
	clk      clock.Clock
	expireFn func(sess Session)

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sess  Session
	timer clock.Timer
}

// NewStore creates a Store. expireFn observes sessions whose TTL elapsed (on
// a timer goroutine); the session is already removed when it runs. The state
// machine installs itself here.
func NewStore(clk clock.Clock, expireFn func(sess Session)) *Store {
	return &Store{
		clk:      clk,
		expireFn: expireFn,
		entries:  make(map[string]*entry),
	}
}

// Put inserts or replaces the session for sess.SessionKey, canceling any
// existing expiry timer and arming a new one for sess.ExpiresAt.
func (s *Store) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sess.SessionKey
	if old, ok := s.entries[key]; ok {
		old.timer.Stop()
	}
	e := &entry{sess: sess}
	d := sess.ExpiresAt.Sub(s.clk.Now())
	// Run off the timer goroutine so expireFn never blocks the clock.
	e.timer = s.clk.AfterFunc(d, func() { go s.expireEntry(key, e) })
	s.entries[key] = e
}

// expireEntry removes the entry whose timer fired and reports it. The
// pointer comparison is the guard against a stale firing: a timer that went
// off just before its session was replaced or removed finds a different (or
// no) entry under the key and must not touch it.
func (s *Store) expireEntry(key string, e *entry) {
	s.mu.Lock()
	if cur, ok := s.entries[key]; !ok || cur != e {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.mu.Unlock()
	s.expireFn(e.sess)
}

// Get returns the session for key, if present.
func (s *Store) Get(key string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Session{}, false
	}
	return e.sess, true
}

// Remove deletes the session for key and cancels its timer. Removing an
// absent key is not an error. Returns the removed session when one existed.
func (s *Store) Remove(key string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Session{}, false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return e.sess, true
}

// Size returns the number of live sessions.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// List returns a point-in-time copy of all live sessions, never a live alias.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.sess)
	}
	return out
}

// Snapshot returns a key/session copy of the store, used by the status
// surface and for durable backup on shutdown.
func (s *Store) Snapshot() map[string]Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Session, len(s.entries))
	for k, e := range s.entries {
		out[k] = e.sess
	}
	return out
}

// Shutdown cancels all timers and returns a final snapshot.
func (s *Store) Shutdown() map[string]Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Session, len(s.entries))
	for k, e := range s.entries {
		e.timer.Stop()
		out[k] = e.sess
	}
	s.entries = make(map[string]*entry)
	return out
}
