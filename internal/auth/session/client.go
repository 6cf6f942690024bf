package session

import (
	"context"
	"errors"
	"sync"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/users/domain"
)

// TokenStore persists the token of a single-identity client between runs.
// Load returns "" when nothing is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Client holds the current session of one local identity, as used by the
// CLI. The zero session is "not signed in", not an error.
type Client struct {
	m      *Manager
	tokens TokenStore

	mu  sync.RWMutex
	cur *Session
}

// NewClient restores a previously stored session when it is still valid.
func NewClient(ctx context.Context, m *Manager, tokens TokenStore) (*Client, error) {
	c := &Client{m: m, tokens: tokens}

	token, err := tokens.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return c, nil
	}

	s, err := m.Session(ctx, token)
	switch {
	case errors.Is(err, apperr.ErrSessionExpired):
		return c, tokens.Clear()
	case err != nil:
		return nil, err
	}
	c.cur = s
	return c, nil
}

// GetSession returns the cached session or nil.
func (c *Client) GetSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil {
		return nil
	}
	s := *c.cur
	return &s
}

func (c *Client) set(s *Session) error {
	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()
	return c.tokens.Save(s.Token)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s, err := c.m.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s, c.set(s)
}

func (c *Client) SignUp(ctx context.Context, email, password string, profile domain.Profile) (*Session, error) {
	s, err := c.m.SignUp(ctx, email, password, profile)
	if err != nil {
		return nil, err
	}
	return s, c.set(s)
}

// SignOut clears the local session unconditionally.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cur := c.cur
	c.cur = nil
	c.mu.Unlock()

	var err error
	if cur != nil {
		err = c.m.SignOut(ctx, cur.Token)
	}
	return errors.Join(err, c.tokens.Clear())
}
