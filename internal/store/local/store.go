package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/fixmate-service/internal/domain"
	apperrors "github.com/spec-kit/fixmate-service/pkg/util"
)

// Storage keys inside the Badger keyspace. The whole dataset lives under one
// key as a single JSON document; the current session is a second document.
const (
	datasetKey = "fixmate:db:v1"
	sessionKey = "fixmate:session:v1"
)

// dataset is the serialized shape of the entire local state.
type dataset struct {
	Users    []domain.User    `json:"users"`
	Issues   []domain.Issue   `json:"issues"`
	Messages []domain.Message `json:"messages"`
}

// Store is the embedded, durable backend. All state is held in memory and
// rewritten to Badger in full after every mutation; there is no write
// buffering and no partial write. A mutex stands in for the single-threaded
// event loop the dataset was designed for, so no caller can observe a
// half-updated entity.
type Store struct {
	db         *badger.DB
	logger     *zap.Logger
	bcryptCost int

	mu   sync.Mutex
	data dataset
}

// Open opens (or creates) the Badger database at path and loads the dataset.
// An empty path opens an in-memory database, used by tests. A missing or
// corrupt dataset falls back to the seed data; corruption is logged, never
// fatal.
func Open(path string, bcryptCost int, logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	s := &Store{db: db, logger: logger, bcryptCost: bcryptCost}
	s.load()
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(datasetKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})

	seed := seedDataset(s.bcryptCost)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		s.data = seed
		s.persistLocked()
		return
	case err != nil:
		s.logger.Error("failed to load local dataset, using seed data", zap.Error(err))
		s.data = seed
		return
	}

	var data dataset
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Error("corrupt local dataset, using seed data", zap.Error(err))
		s.data = seed
		return
	}
	// Collections absent from an older document fall back individually.
	if data.Users == nil {
		data.Users = seed.Users
	}
	if data.Issues == nil {
		data.Issues = seed.Issues
	}
	if data.Messages == nil {
		data.Messages = []domain.Message{}
	}
	s.data = data
}

// persistLocked serializes the full dataset back to storage. Callers hold mu.
// Write failures are logged, matching the durable-storage error policy.
func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.data)
	if err != nil {
		s.logger.Error("failed to serialize local dataset", zap.Error(err))
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(datasetKey), raw)
	})
	if err != nil {
		s.logger.Error("failed to persist local dataset", zap.Error(err))
	}
}

// GetUsers returns a copy of all users.
func (s *Store) GetUsers(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.User(nil), s.data.Users...), nil
}

// GetIssues returns a copy of all issues.
func (s *Store) GetIssues(_ context.Context) ([]domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Issue, len(s.data.Issues))
	for i := range s.data.Issues {
		out[i] = cloneIssue(s.data.Issues[i])
	}
	return out, nil
}

// AddIssue appends a new issue. Status is forced to OPEN and both timestamps
// are stamped to the current time regardless of what the caller supplied.
func (s *Store) AddIssue(_ context.Context, issue domain.Issue) (*domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMillis()
	issue.ID = uuid.NewString()
	issue.Status = domain.IssueStatusOpen
	issue.AssignedTo = nil
	issue.AssignedToName = nil
	issue.ResolutionNotes = ""
	issue.CreatedAt = now
	issue.UpdatedAt = now

	s.data.Issues = append(s.data.Issues, issue)
	s.persistLocked()
	result := cloneIssue(issue)
	return &result, nil
}

// UpdateIssueStatus sets the status of the issue with the given id. Unknown
// ids are a no-op. Notes are stored only when non-empty; an omitted note
// never clears previously stored notes.
func (s *Store) UpdateIssueStatus(_ context.Context, id string, status domain.IssueStatus, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue := s.findIssueLocked(id)
	if issue == nil {
		return nil
	}
	issue.Status = status
	if strings.TrimSpace(notes) != "" {
		issue.ResolutionNotes = notes
	}
	touch(issue)
	s.persistLocked()
	return nil
}

// AssignIssue links or unlinks a technician. An empty technicianID clears the
// assignment and forces the issue back to OPEN. A technicianID that does not
// resolve to a TECHNICIAN account leaves the assignment fields untouched.
// UpdatedAt is refreshed whenever the issue exists.
func (s *Store) AssignIssue(_ context.Context, issueID, technicianID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue := s.findIssueLocked(issueID)
	if issue == nil {
		return nil
	}

	if technicianID == "" {
		issue.AssignedTo = nil
		issue.AssignedToName = nil
		issue.Status = domain.IssueStatusOpen
	} else if tech := s.findUserLocked(technicianID); tech != nil && tech.Role == domain.RoleTechnician {
		id, name := tech.ID, tech.Name
		issue.AssignedTo = &id
		issue.AssignedToName = &name
		issue.Status = domain.IssueStatusAssigned
	}
	touch(issue)
	s.persistLocked()
	return nil
}

// GetMessages returns messages visible to the given user: everything for
// admins, otherwise only rows where the user is sender or receiver.
func (s *Store) GetMessages(_ context.Context, userID string, role domain.UserRole) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, 0, len(s.data.Messages))
	for _, m := range s.data.Messages {
		if m.VisibleTo(userID, role) {
			out = append(out, m)
		}
	}
	return out, nil
}

// SendMessage stamps an id and timestamp, appends, and persists.
func (s *Store) SendMessage(_ context.Context, msg domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = uuid.NewString()
	msg.Timestamp = nowMillis()
	s.data.Messages = append(s.data.Messages, msg)
	s.persistLocked()
	return &msg, nil
}

// Authenticate matches email case-insensitively and the secret exactly.
// A mismatch yields (nil, nil), not an error. A successful login persists
// the session record.
func (s *Store) Authenticate(_ context.Context, email, secret string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Users {
		u := &s.data.Users[i]
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.Secret), []byte(secret)) != nil {
			return nil, nil
		}
		user := *u
		s.saveSessionLocked(&user)
		return &user, nil
	}
	return nil, nil
}

// Register creates a new account. Duplicate emails (case-insensitive) and
// the ADMIN role are rejected. A successful registration persists the
// session record for the new user.
func (s *Store) Register(_ context.Context, name, email, secret string, role domain.UserRole) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Users {
		if strings.EqualFold(s.data.Users[i].Email, email) {
			return nil, apperrors.NewDuplicateEmail(email)
		}
	}
	if role == domain.RoleAdmin {
		return nil, apperrors.NewForbiddenRole(string(role))
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := domain.User{
		ID:     newUserID(role),
		Name:   name,
		Email:  email,
		Secret: string(hash),
		Role:   role,
	}
	user.Avatar = fmt.Sprintf("https://picsum.photos/seed/%s/200", user.ID)

	s.data.Users = append(s.data.Users, user)
	s.persistLocked()
	s.saveSessionLocked(&user)
	return &user, nil
}

// CurrentSession reads the persisted session record. Absent or unparseable
// records yield (nil, nil).
func (s *Store) CurrentSession(_ context.Context) (*domain.User, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to read session record", zap.Error(err))
		return nil, nil
	}

	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.logger.Error("unparseable session record", zap.Error(err))
		return nil, nil
	}
	return &user, nil
}

// Logout deletes the session record.
func (s *Store) Logout(_ context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKey))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		s.logger.Error("failed to delete session record", zap.Error(err))
	}
	return nil
}

func (s *Store) saveSessionLocked(user *domain.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		s.logger.Error("failed to serialize session record", zap.Error(err))
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKey), raw)
	})
	if err != nil {
		s.logger.Error("failed to persist session record", zap.Error(err))
	}
}

func (s *Store) findIssueLocked(id string) *domain.Issue {
	for i := range s.data.Issues {
		if s.data.Issues[i].ID == id {
			return &s.data.Issues[i]
		}
	}
	return nil
}

func (s *Store) findUserLocked(id string) *domain.User {
	for i := range s.data.Users {
		if s.data.Users[i].ID == id {
			return &s.data.Users[i]
		}
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// touch refreshes UpdatedAt, clamped to strictly increase even when the
// clock has not advanced a full millisecond between mutations.
func touch(issue *domain.Issue) {
	now := nowMillis()
	if now <= issue.UpdatedAt {
		now = issue.UpdatedAt + 1
	}
	issue.UpdatedAt = now
}

func cloneIssue(issue domain.Issue) domain.Issue {
	if issue.AssignedTo != nil {
		v := *issue.AssignedTo
		issue.AssignedTo = &v
	}
	if issue.AssignedToName != nil {
		v := *issue.AssignedToName
		issue.AssignedToName = &v
	}
	return issue
}

// newUserID builds a role-prefixed identifier such as "res-1b9f03aa".
func newUserID(role domain.UserRole) string {
	prefix := strings.ToLower(string(role))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return prefix + "-" + uuid.NewString()[:8]
}
