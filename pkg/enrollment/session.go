package enrollment

import (
	"sync"
	"sync/atomic"
)

// Session is the in-progress token for one caller. Only one enrollment may run
// on a session at a time.
type Session struct {
	committing atomic.Bool
}

// NewSession creates an idle session
func NewSession() *Session {
	return &Session{}
}

// Begin marks the session busy. The returned func releases it.
func (s *Session) Begin() (func(), error) {
	if !s.committing.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	var once sync.Once
	return func() {
		once.Do(func() { s.committing.Store(false) })
	}, nil
}

// InProgress reports whether an enrollment is running on the session
func (s *Session) InProgress() bool {
	return s.committing.Load()
}

// Sessions hands out one Session per (challenge, user), so concurrent requests
// for the same participant share a guard.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// For returns the session of a (challenge, user) pair, creating it if needed
func (r *Sessions) For(challengeID, userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := challengeID + "\x00" + userID
	s, ok := r.sessions[key]
	if !ok {
		s = NewSession()
		r.sessions[key] = s
	}
	return s
}
