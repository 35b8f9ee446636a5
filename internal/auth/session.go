// Package auth tracks the signed-in operator and tells interested parts of
// the system when that changes.
package auth

import "sync"

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DisplayName is the name stamped on records, falling back to "unknown".
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return "unknown"
}

type EventType string

const (
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

type Event struct {
	Type EventType
	User User
}

// Provider is the authentication status signal the core consumes.
type Provider interface {
	IsAuthenticated() bool
	CurrentUser() (User, bool)
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Session is an in-process Provider driven by explicit sign in and out calls.
type Session struct {
	mu     sync.RWMutex
	user   *User
	nextID int
	subs   map[int]func(Event)
}

func NewSession() *Session {
	return &Session{subs: make(map[int]func(Event))}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *Session) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// SignIn replaces the current user and notifies subscribers.
func (s *Session) SignIn(u User) {
	s.mu.Lock()
	s.user = &u
	subs := s.snapshot()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Type: SignedIn, User: u})
	}
}

// SignOut clears the session. Signing out twice notifies once.
func (s *Session) SignOut() {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	u := *s.user
	s.user = nil
	subs := s.snapshot()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Type: SignedOut, User: u})
	}
}

func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// snapshot must be called with mu held.
func (s *Session) snapshot() []func(Event) {
	out := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
