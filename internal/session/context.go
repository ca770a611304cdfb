package session

import (
	"context"
	"errors"
	"sync"

	"github.com/weiliu/h5client/internal/models"
)

var (
	// ErrSessionNotFound indicates the store holds no session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotLoggedIn indicates an operation needs a token that is not present.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Store persists the token and cached profile so they survive process restarts.
type Store interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, session models.Session) error
	Clear(ctx context.Context) error
}

// Context is the single source of truth for the viewer's session. Views receive
// it explicitly instead of reaching for ambient storage.
type Context struct {
	store Store

	mu      sync.RWMutex
	current models.Session
}

// NewContext constructs a Context persisting through the provided store.
func NewContext(store Store) *Context {
	if store == nil {
		panic("session: store must not be nil")
	}
	return &Context{store: store}
}

// Restore loads the persisted session into memory. A missing session is not an error.
func (c *Context) Restore(ctx context.Context) error {
	loaded, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.mu.Lock()
			c.current = models.Session{}
			c.mu.Unlock()
			return nil
		}
		return err
	}
	if loaded.Token == "" {
		// A profile never outlives its token.
		loaded.Profile = nil
	}
	c.mu.Lock()
	c.current = cloneSession(loaded)
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current session.
func (c *Context) Snapshot() models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSession(c.current)
}

// Token returns the stored bearer credential, empty when logged out.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Token
}

// Profile returns a copy of the cached profile, or nil.
func (c *Context) Profile() *models.Profile {
	return c.Snapshot().Profile
}

// IsLoggedIn reports whether a token is present.
func (c *Context) IsLoggedIn() bool {
	return c.Token() != ""
}

// IsVIP reports whether the cached profile carries a membership.
func (c *Context) IsVIP() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Profile.IsVIP()
}

// SetToken stores a new credential. Any cached profile belongs to the previous
// credential and is dropped.
func (c *Context) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return c.Clear(ctx)
	}
	return c.write(ctx, models.Session{Token: token})
}

// SetProfile replaces the cached profile while keeping the current token.
func (c *Context) SetProfile(ctx context.Context, profile models.Profile) error {
	c.mu.RLock()
	token := c.current.Token
	c.mu.RUnlock()
	if token == "" {
		return ErrNotLoggedIn
	}
	return c.write(ctx, models.Session{Token: token, Profile: &profile})
}

// Clear removes token and profile together, in memory and in the store.
func (c *Context) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.current = models.Session{}
	c.mu.Unlock()
	return c.store.Clear(ctx)
}

func (c *Context) write(ctx context.Context, next models.Session) error {
	if err := c.store.Save(ctx, next); err != nil {
		return err
	}
	c.mu.Lock()
	c.current = cloneSession(next)
	c.mu.Unlock()
	return nil
}
