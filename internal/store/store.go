package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/fixmate-service/internal/config"
	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/store/local"
	"github.com/spec-kit/fixmate-service/internal/store/remote"
)

// Store is the single data-access contract shared by the embedded local
// backend and the hosted remote backend. Callers never branch on which
// backend is behind it.
//
// Error contract: Authenticate returns (nil, nil) on a credential mismatch,
// never an error. CurrentSession returns (nil, nil) when no session exists.
// Read operations on the remote backend degrade to empty collections on
// transient failures. Register and Authenticate are the only operations
// allowed to surface backend write failures, because they cannot produce a
// return value without them.
type Store interface {
	GetUsers(ctx context.Context) ([]domain.User, error)
	GetIssues(ctx context.Context) ([]domain.Issue, error)
	AddIssue(ctx context.Context, issue domain.Issue) (*domain.Issue, error)
	UpdateIssueStatus(ctx context.Context, id string, status domain.IssueStatus, notes string) error
	AssignIssue(ctx context.Context, issueID, technicianID, technicianName string) error
	GetMessages(ctx context.Context, userID string, role domain.UserRole) ([]domain.Message, error)
	SendMessage(ctx context.Context, msg domain.Message) (*domain.Message, error)
	Authenticate(ctx context.Context, email, secret string) (*domain.User, error)
	Register(ctx context.Context, name, email, secret string, role domain.UserRole) (*domain.User, error)
	CurrentSession(ctx context.Context) (*domain.User, error)
	Logout(ctx context.Context) error
	Close() error
}

// New selects the backend once, at construction. Force-local wins over any
// remote configuration; a missing remote DSN means local; a remote backend
// that cannot be reached degrades to local with a logged warning so the
// service still comes up in demo mode.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if cfg.Store.UseLocal() {
		logger.Info("using embedded local store", zap.String("path", cfg.Store.LocalPath))
		return local.Open(cfg.Store.LocalPath, cfg.Auth.BcryptCost, logger)
	}

	rs, err := remote.New(ctx, cfg, logger)
	if err != nil {
		logger.Warn("remote store unavailable, falling back to local store", zap.Error(err))
		return local.Open(cfg.Store.LocalPath, cfg.Auth.BcryptCost, logger)
	}
	logger.Info("using remote store")
	return rs, nil
}
