package auth

import (
	"sync"

	"github.com/google/uuid"
)

type SessionState string

const (
	StateSignedIn  SessionState = "signed-in"
	StateExpired   SessionState = "expired"
	StateSignedOut SessionState = "signed-out"
)

// Session holds the client's access token and tells observers when it changes.
// Observers are called synchronously, outside the session lock.
type Session struct {
	mu        sync.Mutex
	token     string
	userID    uuid.UUID
	state     SessionState
	nextID    int
	observers map[int]func(SessionState)
}

func NewSession() *Session {
	return &Session{state: StateSignedOut, observers: map[int]func(SessionState){}}
}

// Subscribe registers fn and returns the function that removes it. Callers
// own the returned function and should call it when they stop listening.
func (s *Session) Subscribe(fn func(SessionState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) SignIn(token string, userID uuid.UUID) {
	s.set(StateSignedIn, token, userID, nil)
}

// Expire drops the token after the server rejected it. It is a no-op unless
// the session is signed in.
func (s *Session) Expire() {
	s.set(StateExpired, "", uuid.Nil, func(current SessionState) bool {
		return current == StateSignedIn
	})
}

func (s *Session) SignOut() {
	s.set(StateSignedOut, "", uuid.Nil, nil)
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token
}

func (s *Session) UserID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userID
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) set(state SessionState, token string, userID uuid.UUID, allowed func(SessionState) bool) {
	s.mu.Lock()
	if allowed != nil && !allowed(s.state) {
		s.mu.Unlock()
		return
	}

	s.state = state
	s.token = token
	s.userID = userID

	observers := make([]func(SessionState), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}
