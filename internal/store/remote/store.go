package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/fixmate-service/internal/config"
	"github.com/spec-kit/fixmate-service/internal/domain"
	apperrors "github.com/spec-kit/fixmate-service/pkg/util"
)

// sessionCacheKey holds the current session record in Redis, mirroring the
// local store's session document.
const sessionCacheKey = "fixmate:session:v1"

// Store is the hosted-backend adapter. It translates between the entity
// model and the snake_case wire schema, delegates credentials to the
// external provider, and degrades read failures to empty collections so
// that polling callers never crash on a transient outage.
//
// There is no cross-request transaction guarantee: concurrent assignment of
// the same issue is last-write-wins, same as the backing schema allows.
type Store struct {
	pool    *pgxpool.Pool
	cache   *redis.Client
	authcli *AuthClient
	logger  *zap.Logger
}

// sessionRecord is the cached session: the profile plus the provider token
// needed for sign-out.
type sessionRecord struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"accessToken"`
}

// New connects to the relational backend and the session cache. A backend
// that cannot be reached is an error here; the facade decides whether to
// fall back to the local store.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Store.RemoteDSN)
	if err != nil {
		return nil, fmt.Errorf("parse remote DSN: %w", err)
	}
	if cfg.Store.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Store.MaxConns
	}
	if cfg.Store.MinConns > 0 {
		poolCfg.MinConns = cfg.Store.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to remote backend")

	if cfg.Store.RunMigrations {
		if err := runMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := cache.Ping(ctx).Err(); err != nil {
		logger.Warn("session cache unreachable", zap.Error(err))
	}

	return &Store{
		pool:    pool,
		cache:   cache,
		authcli: NewAuthClient(cfg.Store.RemoteAuthURL, cfg.Store.RemoteAPIKey),
		logger:  logger,
	}, nil
}

// Close releases pool and cache resources.
func (s *Store) Close() error {
	s.pool.Close()
	return s.cache.Close()
}

// GetUsers lists all profiles. Failures degrade to an empty slice.
func (s *Store) GetUsers(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT id, email, name, role, avatar FROM profiles`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		s.logger.Error("failed to list profiles", zap.Error(err))
		return []domain.User{}, nil
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var avatar *string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &avatar); err != nil {
			s.logger.Error("failed to scan profile row", zap.Error(err))
			return []domain.User{}, nil
		}
		u.Avatar = deref(avatar)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("failed to list profiles", zap.Error(err))
		return []domain.User{}, nil
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// GetIssues lists all issues the backend's row-level policies expose.
// Failures degrade to an empty slice so UI polling survives outages.
func (s *Store) GetIssues(ctx context.Context) ([]domain.Issue, error) {
	const query = `
        SELECT id, resident_id, resident_name, category, description, photo_url,
               status, priority, assigned_to, assigned_to_name, resolution_notes,
               created_at, updated_at
        FROM issues`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		s.logger.Error("failed to list issues", zap.Error(err))
		return []domain.Issue{}, nil
	}
	defer rows.Close()

	issues, err := scanIssues(rows)
	if err != nil {
		s.logger.Error("failed to scan issue rows", zap.Error(err))
		return []domain.Issue{}, nil
	}
	return issues, nil
}

// AddIssue inserts a new issue row with status forced to OPEN and both
// timestamps set by the backend. The insert must succeed to return a value,
// so its failure is reported rather than swallowed.
func (s *Store) AddIssue(ctx context.Context, issue domain.Issue) (*domain.Issue, error) {
	const query = `
        INSERT INTO issues (resident_id, resident_name, category, description, photo_url,
                            status, priority, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
        RETURNING id, created_at, updated_at`
	var photo *string
	if issue.PhotoURL != "" {
		photo = &issue.PhotoURL
	}
	var createdAt, updatedAt time.Time
	err := s.pool.QueryRow(ctx, query,
		issue.ResidentID,
		issue.ResidentName,
		issue.Category,
		issue.Description,
		photo,
		domain.IssueStatusOpen,
		issue.Priority,
	).Scan(&issue.ID, &createdAt, &updatedAt)
	if err != nil {
		s.logger.Error("failed to insert issue", zap.Error(err))
		return nil, apperrors.MapError(err)
	}

	issue.Status = domain.IssueStatusOpen
	issue.AssignedTo = nil
	issue.AssignedToName = nil
	issue.ResolutionNotes = ""
	issue.CreatedAt = createdAt.UnixMilli()
	issue.UpdatedAt = updatedAt.UnixMilli()
	return &issue, nil
}

// UpdateIssueStatus updates status (and notes, when non-empty) on the row.
// Write failures are logged, not propagated.
func (s *Store) UpdateIssueStatus(ctx context.Context, id string, status domain.IssueStatus, notes string) error {
	var err error
	if strings.TrimSpace(notes) != "" {
		const query = `UPDATE issues SET status=$1, resolution_notes=$2, updated_at=NOW() WHERE id=$3`
		_, err = s.pool.Exec(ctx, query, status, notes, id)
	} else {
		const query = `UPDATE issues SET status=$1, updated_at=NOW() WHERE id=$2`
		_, err = s.pool.Exec(ctx, query, status, id)
	}
	if err != nil {
		s.logger.Error("failed to update issue status", zap.String("issue_id", id), zap.Error(err))
	}
	return nil
}

// AssignIssue sets or clears the assignment columns. The technician name is
// denormalized onto the row at write time. Write failures are logged, not
// propagated.
func (s *Store) AssignIssue(ctx context.Context, issueID, technicianID, technicianName string) error {
	var err error
	if technicianID == "" {
		const query = `
            UPDATE issues SET assigned_to=NULL, assigned_to_name=NULL,
                   status=$1, updated_at=NOW()
            WHERE id=$2`
		_, err = s.pool.Exec(ctx, query, domain.IssueStatusOpen, issueID)
	} else {
		const query = `
            UPDATE issues SET assigned_to=$1, assigned_to_name=$2,
                   status=$3, updated_at=NOW()
            WHERE id=$4`
		_, err = s.pool.Exec(ctx, query, technicianID, technicianName, domain.IssueStatusAssigned, issueID)
	}
	if err != nil {
		s.logger.Error("failed to assign issue", zap.String("issue_id", issueID), zap.Error(err))
	}
	return nil
}

// GetMessages returns messages visible to the caller, oldest first. Admins
// see every row; everyone else only rows where they are sender or receiver.
// Failures degrade to an empty slice.
func (s *Store) GetMessages(ctx context.Context, userID string, role domain.UserRole) ([]domain.Message, error) {
	base := `
        SELECT id, sender_id, sender_name, sender_role, receiver_id, text, timestamp, created_at
        FROM messages`
	var (
		rows pgx.Rows
		err  error
	)
	if role == domain.RoleAdmin {
		rows, err = s.pool.Query(ctx, base+` ORDER BY created_at ASC`)
	} else {
		rows, err = s.pool.Query(ctx, base+` WHERE sender_id=$1 OR receiver_id=$1 ORDER BY created_at ASC`, userID)
	}
	if err != nil {
		s.logger.Error("failed to list messages", zap.Error(err))
		return []domain.Message{}, nil
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var (
			m         domain.Message
			ts        *int64
			createdAt time.Time
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.SenderRole, &m.ReceiverID, &m.Text, &ts, &createdAt); err != nil {
			s.logger.Error("failed to scan message row", zap.Error(err))
			return []domain.Message{}, nil
		}
		if ts != nil {
			m.Timestamp = *ts
		} else {
			m.Timestamp = createdAt.UnixMilli()
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("failed to list messages", zap.Error(err))
		return []domain.Message{}, nil
	}
	return msgs, nil
}

// SendMessage inserts a message row. Write failures are logged, not
// propagated; the stamped message is returned on success.
func (s *Store) SendMessage(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	const query = `
        INSERT INTO messages (sender_id, sender_name, sender_role, receiver_id, text, timestamp, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,NOW())
        RETURNING id`
	msg.Timestamp = time.Now().UnixMilli()
	err := s.pool.QueryRow(ctx, query,
		msg.SenderID,
		msg.SenderName,
		msg.SenderRole,
		msg.ReceiverID,
		msg.Text,
		msg.Timestamp,
	).Scan(&msg.ID)
	if err != nil {
		s.logger.Error("failed to insert message", zap.Error(err))
		return nil, nil
	}
	return &msg, nil
}

// Authenticate delegates to the credential provider, then fetches the
// profile row for the identity. A credential mismatch is a (nil, nil)
// no-match; provider or profile failures on an otherwise valid login are
// reported because login cannot return without them.
func (s *Store) Authenticate(ctx context.Context, email, secret string) (*domain.User, error) {
	session, err := s.authcli.SignIn(ctx, email, secret)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}

	user, err := s.getProfile(ctx, session.Identity.ID)
	if err != nil {
		return nil, apperrors.NewDomainError("PROFILE_MISSING",
			"authenticated identity has no profile", 500,
			map[string]any{"identity_id": session.Identity.ID})
	}
	s.saveSession(ctx, user, session.AccessToken)
	return user, nil
}

// Register creates the provider identity first, then the profile row in the
// same operation. A profile insert failure after the identity was created is
// a reported error: the account now exists without a usable profile.
func (s *Store) Register(ctx context.Context, name, email, secret string, role domain.UserRole) (*domain.User, error) {
	if role == domain.RoleAdmin {
		return nil, apperrors.NewForbiddenRole(string(role))
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	session, err := s.authcli.SignUp(ctx, email, secret)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, apperrors.NewDuplicateEmail(email)
		}
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		ID:     session.Identity.ID,
		Name:   name,
		Email:  email,
		Role:   role,
		Avatar: fmt.Sprintf("https://picsum.photos/seed/%s/200", session.Identity.ID),
	}

	const query = `INSERT INTO profiles (id, email, name, role, avatar) VALUES ($1,$2,$3,$4,$5)`
	if _, err := s.pool.Exec(ctx, query, user.ID, user.Email, user.Name, user.Role, user.Avatar); err != nil {
		s.logger.Error("profile creation failed after credential creation",
			zap.String("identity_id", user.ID), zap.Error(err))
		return nil, apperrors.NewDomainError("PROFILE_CREATE_FAILED",
			"account created but profile could not be stored", 500,
			map[string]any{"identity_id": user.ID})
	}
	s.saveSession(ctx, user, session.AccessToken)
	return user, nil
}

// CurrentSession reads the cached session record. Absent or unparseable
// records yield (nil, nil).
func (s *Store) CurrentSession(ctx context.Context) (*domain.User, error) {
	raw, err := s.cache.Get(ctx, sessionCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to read session cache", zap.Error(err))
		return nil, nil
	}

	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		s.logger.Error("unparseable session record", zap.Error(err))
		return nil, nil
	}
	return &record.User, nil
}

// Logout revokes the provider session (best effort) and drops the cached
// record.
func (s *Store) Logout(ctx context.Context) error {
	raw, err := s.cache.Get(ctx, sessionCacheKey).Bytes()
	if err == nil {
		var record sessionRecord
		if json.Unmarshal(raw, &record) == nil && record.AccessToken != "" {
			if err := s.authcli.SignOut(ctx, record.AccessToken); err != nil {
				s.logger.Warn("provider sign-out failed", zap.Error(err))
			}
		}
	}
	if err := s.cache.Del(ctx, sessionCacheKey).Err(); err != nil {
		s.logger.Error("failed to drop session cache", zap.Error(err))
	}
	return nil
}

func (s *Store) getProfile(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, name, role, avatar FROM profiles WHERE id=$1`
	var (
		u      domain.User
		avatar *string
	)
	if err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &avatar); err != nil {
		return nil, err
	}
	u.Avatar = deref(avatar)
	return &u, nil
}

func (s *Store) saveSession(ctx context.Context, user *domain.User, accessToken string) {
	raw, err := json.Marshal(sessionRecord{User: *user, AccessToken: accessToken})
	if err != nil {
		s.logger.Error("failed to serialize session record", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, sessionCacheKey, raw, 0).Err(); err != nil {
		s.logger.Error("failed to persist session record", zap.Error(err))
	}
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	issues := []domain.Issue{}
	for rows.Next() {
		var (
			issue                domain.Issue
			photoURL, notes      *string
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(
			&issue.ID,
			&issue.ResidentID,
			&issue.ResidentName,
			&issue.Category,
			&issue.Description,
			&photoURL,
			&issue.Status,
			&issue.Priority,
			&issue.AssignedTo,
			&issue.AssignedToName,
			&notes,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, err
		}
		issue.PhotoURL = deref(photoURL)
		issue.ResolutionNotes = deref(notes)
		issue.CreatedAt = createdAt.UnixMilli()
		issue.UpdatedAt = updatedAt.UnixMilli()
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
