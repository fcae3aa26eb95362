package session

import (
	"context"
	"time"

	"github.com/spec-kit/fixmate-service/internal/auth"
	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/store"
)

// Manager handles login, registration, logout, and session lookup on top of
// the store facade. It also issues the JWT used by the HTTP surface; the
// store keeps its own session record so a restarted client can resume.
type Manager struct {
	store  store.Store
	tokens *auth.TokenManager
}

// NewManager constructs the manager.
func NewManager(st store.Store, tokens *auth.TokenManager) *Manager {
	return &Manager{store: st, tokens: tokens}
}

// LoginResult bundles the authenticated user with their API token.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Login authenticates credentials. A credential mismatch returns (nil, nil)
// so the caller can render an inline failure; errors are reserved for
// backend failures that prevent a login outcome at all.
func (m *Manager) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	user, err := m.store.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return m.withToken(user)
}

// Register creates an account and logs it in. Duplicate emails and the
// ADMIN role surface as validation errors from the store.
func (m *Manager) Register(ctx context.Context, name, email, secret string, role domain.UserRole) (*LoginResult, error) {
	user, err := m.store.Register(ctx, name, email, secret, role)
	if err != nil {
		return nil, err
	}
	return m.withToken(user)
}

// Current returns the persisted session's user, or nil when none exists.
func (m *Manager) Current(ctx context.Context) (*domain.User, error) {
	return m.store.CurrentSession(ctx)
}

// Logout ends the persisted session.
func (m *Manager) Logout(ctx context.Context) error {
	return m.store.Logout(ctx)
}

func (m *Manager) withToken(user *domain.User) (*LoginResult, error) {
	token, expiresAt, err := m.tokens.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	user.Secret = ""
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
