package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/users/domain"
	"github.com/clytar/clytar-backend/internal/users/repository"
)

const stageSession = "session"

// Identity is what an external identity provider vouches for.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// ProviderVerifier checks a provider-issued ID token.
type ProviderVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type Options struct {
	TTL         time.Duration
	AdminEmails []string
	Provider    ProviderVerifier
	BcryptCost  int
	Logger      *zap.Logger
}

// Manager issues and resolves sessions. Listeners registered with
// Subscribe receive exactly one Event per transition, in transition order;
// they run synchronously and must not call back into the Manager.
type Manager struct {
	users    repository.Repository
	backend  Backend
	ttl      time.Duration
	admins   map[string]struct{}
	provider ProviderVerifier
	cost     int
	log      *zap.Logger
	now      func() time.Time

	// dispatchMu orders state changes with their notifications.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	listeners map[uint64]func(Event)
	nextID    uint64
}

func NewManager(users repository.Repository, backend Backend, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = BcryptCost
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		if e = domain.NormalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}

	return &Manager{
		users:     users,
		backend:   backend,
		ttl:       opts.TTL,
		admins:    admins,
		provider:  opts.Provider,
		cost:      opts.BcryptCost,
		log:       opts.Logger,
		now:       time.Now,
		listeners: make(map[uint64]func(Event)),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// emit must be called with dispatchMu held.
func (m *Manager) emit(kind EventKind, s *Session) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.listeners))
	// registration order
	for i := uint64(0); i < m.nextID; i++ {
		if fn, ok := m.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	ev := Event{Kind: kind, Session: *s, At: m.now().UTC()}
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *Manager) roleFor(email string) domain.Role {
	if _, ok := m.admins[email]; ok {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

// issue stores a fresh session for u and notifies listeners.
func (m *Manager) issue(ctx context.Context, u *domain.User) (*Session, error) {
	now := m.now().UTC()
	s := &Session{
		Token:     uuid.NewString(),
		User:      *u,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	s.User.PasswordHash = ""

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	if err := m.backend.Put(ctx, s); err != nil {
		return nil, err
	}
	m.emit(SignedIn, s)
	return s, nil
}

// SignUp creates an account and signs it in. Emails listed in the admin
// configuration are given the admin role once, here.
func (m *Manager) SignUp(ctx context.Context, email, password string, profile domain.Profile) (*Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Missing("sign_up", "email")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Invalid("sign_up", "email", email)
	}
	if password == "" {
		return nil, apperr.Missing("sign_up", "password")
	}

	hash, err := hashPassword(password, m.cost)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Email:        email,
		FullName:     strings.TrimSpace(profile.FullName),
		Company:      strings.TrimSpace(profile.Company),
		JobTitle:     strings.TrimSpace(profile.JobTitle),
		Role:         m.roleFor(email),
		Plan:         domain.PlanFree,
		PasswordHash: hash,
	}
	if err := m.users.Create(ctx, u); err != nil {
		return nil, apperr.WithStage(err, "sign_up")
	}

	m.log.Info("user signed up", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return m.issue(ctx, u)
}

// SignIn checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	invalid := &apperr.AuthError{Kind: apperr.InvalidCredentials, Stage: "sign_in", Email: email}

	u, err := m.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrUnknownUser) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}

	ok, err := checkPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalid
	}

	m.touch(ctx, u)
	return m.issue(ctx, u)
}

// SignInWithProvider signs in with an external ID token, creating the
// account on first use.
func (m *Manager) SignInWithProvider(ctx context.Context, idToken string) (*Session, error) {
	if m.provider == nil {
		return nil, apperr.Invalid("provider_sign_in", "provider", "disabled")
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, apperr.Missing("provider_sign_in", "id_token")
	}

	id, err := m.provider.Verify(ctx, idToken)
	if err != nil {
		m.log.Debug("provider token rejected", zap.Error(err))
		return nil, &apperr.AuthError{Kind: apperr.InvalidCredentials, Stage: "provider_sign_in"}
	}
	email := domain.NormalizeEmail(id.Email)
	if email == "" {
		return nil, apperr.Missing("provider_sign_in", "email")
	}

	u, err := m.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrUnknownUser) {
		u = &domain.User{
			Email:    email,
			FullName: id.Name,
			Role:     m.roleFor(email),
			Plan:     domain.PlanFree,
		}
		err = m.users.Create(ctx, u)
		if errors.Is(err, apperr.ErrDuplicateEmail) {
			u, err = m.users.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, err
	}

	m.touch(ctx, u)
	return m.issue(ctx, u)
}

func (m *Manager) touch(ctx context.Context, u *domain.User) {
	at := m.now().UTC()
	if err := m.users.TouchLogin(ctx, u.ID, at); err != nil {
		m.log.Warn("record login failed", zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	u.LastLoginAt = &at
}

// SignOut ends the session. Unknown tokens are ignored.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	s, err := m.backend.Get(ctx, token)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	if err := m.backend.Delete(ctx, token); err != nil {
		return err
	}
	m.emit(SignedOut, s)
	return nil
}

// Session resolves a token. The user record is reloaded so role and plan
// changes apply to live sessions.
func (m *Manager) Session(ctx context.Context, token string) (*Session, error) {
	return m.resolve(ctx, token)
}

func (m *Manager) resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, &apperr.AuthError{Kind: apperr.SessionExpired, Stage: stageSession}
	}
	s, err := m.backend.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &apperr.AuthError{Kind: apperr.SessionExpired, Stage: stageSession}
	}
	if s.Expired(m.now()) {
		_ = m.backend.Delete(ctx, token)
		return nil, &apperr.AuthError{Kind: apperr.SessionExpired, Stage: stageSession, Email: s.User.Email}
	}

	u, err := m.users.GetByID(ctx, s.User.ID)
	if errors.Is(err, apperr.ErrUnknownUser) {
		_ = m.backend.Delete(ctx, token)
		return nil, &apperr.AuthError{Kind: apperr.SessionExpired, Stage: stageSession, Email: s.User.Email}
	}
	if err != nil {
		return nil, err
	}
	s.User = *u
	s.User.PasswordHash = ""
	return s, nil
}

// Refresh extends a live session by the configured TTL. The lookup and
// the write happen under dispatchMu so a concurrent SignOut wins cleanly.
func (m *Manager) Refresh(ctx context.Context, token string) (*Session, error) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	s, err := m.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	s.ExpiresAt = m.now().UTC().Add(m.ttl)
	if err := m.backend.Put(ctx, s); err != nil {
		return nil, err
	}
	m.emit(Refreshed, s)
	return s, nil
}
