package rpc

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// Iterator is the host-owned enumeration object an invoke* script may
// leave behind on the stack as an InteropInterface. The VM
// never inspects it; only the RPC session layer steps it.
type Iterator interface {
	// Next advances the iterator and reports whether a value was
	// produced. Once it returns false it is exhausted permanently.
	Next() (stackitem.Item, bool)
}

// session is a collection of named iterators plus a last-activity clock.
type session struct {
	id           string
	iterators    map[string]Iterator
	lastActivity time.Time
}

// SessionStore is the process-wide iterator session registry. GC runs on
// every RPC call rather than on its own ticker, so an idle server holds
// no timers for it.
type SessionStore struct {
	mu           sync.Mutex
	sessions     map[string]*session
	ttl          time.Duration
	maxIterators int
	now          func() time.Time
}

func NewSessionStore(ttl time.Duration, maxIterators int) *SessionStore {
	return &SessionStore{
		sessions:     make(map[string]*session),
		ttl:          ttl,
		maxIterators: maxIterators,
		now:          time.Now,
	}
}

// gc drops every session whose last_activity is older than ttl. Must be
// called with mu held.
func (s *SessionStore) gc() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActivity) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

// GC drops expired sessions. Dispatch calls it on every request, so an
// idle store needs no ticker of its own.
func (s *SessionStore) GC() {
	s.mu.Lock()
	s.gc()
	s.mu.Unlock()
}

// errTooManyIterators is returned by Put once a session already holds
// maxIterators open iterators.
var errTooManyIterators = &Error{Code: codeInternal, Message: "too many open iterators for this session"}

// Put registers it under sessionID, allocating both a session and an
// iterator id if sessionID names no live session.
func (s *SessionStore) Put(sessionID string, it Iterator) (outSessionID, iteratorID string, rpcErr *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gc()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sessionID = uuid.New().String()
		sess = &session{id: sessionID, iterators: make(map[string]Iterator)}
		s.sessions[sessionID] = sess
	}
	if len(sess.iterators) >= s.maxIterators {
		return "", "", errTooManyIterators
	}
	iteratorID = uuid.New().String()
	sess.iterators[iteratorID] = it
	sess.lastActivity = s.now()
	return sessionID, iteratorID, nil
}

// Traverse steps the named iterator up to count times or until
// exhaustion, returning the collected items and refreshing the session's
// activity clock.
func (s *SessionStore) Traverse(sessionID, iteratorID string, count int) ([]stackitem.Item, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gc()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errUnknown("session")
	}
	it, ok := sess.iterators[iteratorID]
	if !ok {
		return nil, errUnknown("iterator")
	}
	sess.lastActivity = s.now()

	items := make([]stackitem.Item, 0, count)
	for i := 0; i < count; i++ {
		item, ok := it.Next()
		if !ok {
			break
		}
		items = append(items, item)
	}
	return items, nil
}

// Terminate drops sessionID entirely, reporting whether it existed.
func (s *SessionStore) Terminate(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gc()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}
