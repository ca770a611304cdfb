package session

import (
	"context"
	"sync"

	"github.com/weiliu/h5client/internal/models"
)

// NewMemoryStore returns a Store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// MemoryStore implements Store for tests and throwaway CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	session models.Session
	saved   bool
}

// Load returns the stored session or ErrSessionNotFound when nothing was saved.
func (s *MemoryStore) Load(_ context.Context) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return models.Session{}, ErrSessionNotFound
	}
	return cloneSession(s.session), nil
}

// Save replaces the stored session.
func (s *MemoryStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	s.session = cloneSession(session)
	s.saved = true
	s.mu.Unlock()
	return nil
}

// Clear forgets the stored session.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.session = models.Session{}
	s.saved = false
	s.mu.Unlock()
	return nil
}

// Has reports whether a session is stored. Useful for tests.
func (s *MemoryStore) Has() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved
}

func cloneSession(in models.Session) models.Session {
	out := models.Session{Token: in.Token}
	if in.Profile != nil {
		p := *in.Profile
		if in.Profile.MemberID != nil {
			id := *in.Profile.MemberID
			p.MemberID = &id
		}
		if in.Profile.MemberPrice != nil {
			price := *in.Profile.MemberPrice
			p.MemberPrice = &price
		}
		out.Profile = &p
	}
	return out
}
