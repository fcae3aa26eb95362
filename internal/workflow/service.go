package workflow

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/events"
	"github.com/spec-kit/fixmate-service/internal/store"
	apperrors "github.com/spec-kit/fixmate-service/pkg/util"
)

// StatusAll is the admin search wildcard matching every status.
const StatusAll = "ALL"

// Service implements the issue lifecycle on top of the store facade:
// who may move an issue between states, and how each role's list is
// sorted and filtered.
type Service struct {
	store      store.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewService constructs the workflow service.
func NewService(st store.Store, dispatcher events.Dispatcher, logger *zap.Logger) *Service {
	return &Service{store: st, dispatcher: dispatcher, logger: logger}
}

// SubmitIssueInput describes a resident's new request.
type SubmitIssueInput struct {
	Category    domain.IssueCategory
	Description string
	Priority    domain.IssuePriority
	PhotoURL    string
}

// SubmitIssue files a new issue for the resident. The store forces status
// OPEN and stamps both timestamps.
func (s *Service) SubmitIssue(ctx context.Context, resident *domain.User, input SubmitIssueInput) (*domain.Issue, error) {
	if resident == nil || resident.Role != domain.RoleResident {
		return nil, apperrors.NewForbidden("only residents can file issues")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}

	issue, err := s.store.AddIssue(ctx, domain.Issue{
		ResidentID:   resident.ID,
		ResidentName: resident.Name,
		Category:     input.Category,
		Description:  strings.TrimSpace(input.Description),
		PhotoURL:     input.PhotoURL,
		Priority:     input.Priority,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventIssueCreated,
		IssueID:   issue.ID,
		ActorID:   resident.ID,
		ActorRole: string(resident.Role),
		Payload: events.IssueCreatedPayload{
			Category:    issue.Category,
			Priority:    issue.Priority,
			Description: issue.Description,
		},
	})
	return issue, nil
}

// Assign links the issue to a technician on behalf of an admin, driving
// status to ASSIGNED. An empty technicianID unassigns: technician fields are
// cleared and status reverts to OPEN. Resolution notes from an earlier
// resolution deliberately survive unassignment.
//
// A technicianID that does not resolve to a TECHNICIAN account is a silent
// no-op on the assignment fields, mirroring the store contract.
func (s *Service) Assign(ctx context.Context, actor *domain.User, issueID, technicianID string) error {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins can assign issues")
	}
	if _, err := s.findIssue(ctx, issueID); err != nil {
		return err
	}

	if technicianID == "" {
		if err := s.store.AssignIssue(ctx, issueID, "", ""); err != nil {
			return err
		}
		s.publish(ctx, events.Event{
			Type:      events.EventIssueAssigned,
			IssueID:   issueID,
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Payload:   events.IssueAssignedPayload{},
		})
		return nil
	}

	tech, err := s.findTechnician(ctx, technicianID)
	if err != nil {
		return err
	}
	if tech == nil {
		// Unknown or wrong-role id: leave the assignment fields untouched.
		s.logger.Warn("assignment to unresolvable technician ignored",
			zap.String("issue_id", issueID), zap.String("technician_id", technicianID))
		return nil
	}

	if err := s.store.AssignIssue(ctx, issueID, tech.ID, tech.Name); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventIssueAssigned,
		IssueID:   issueID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Payload: events.IssueAssignedPayload{
			TechnicianID:   &tech.ID,
			TechnicianName: &tech.Name,
		},
	})
	return nil
}

// StartWork moves an ASSIGNED issue to IN_PROGRESS. Only the assigned
// technician may trigger it; there is no other precondition.
func (s *Service) StartWork(ctx context.Context, actor *domain.User, issueID string) error {
	issue, err := s.requireAssignedTechnician(ctx, actor, issueID)
	if err != nil {
		return err
	}
	if issue.Status != domain.IssueStatusAssigned {
		return apperrors.NewConflict("issue is not in ASSIGNED state",
			map[string]any{"status": issue.Status})
	}

	if err := s.store.UpdateIssueStatus(ctx, issueID, domain.IssueStatusInProgress, ""); err != nil {
		return err
	}
	s.publishStatusChange(ctx, actor, issueID, issue.Status, domain.IssueStatusInProgress, "")
	return nil
}

// Resolve moves an IN_PROGRESS issue to RESOLVED. Non-empty resolution notes
// are mandatory; whitespace-only notes reject the transition and the issue
// stays IN_PROGRESS.
func (s *Service) Resolve(ctx context.Context, actor *domain.User, issueID, notes string) error {
	if strings.TrimSpace(notes) == "" {
		return apperrors.NewValidationError("resolution notes are required", nil)
	}
	issue, err := s.requireAssignedTechnician(ctx, actor, issueID)
	if err != nil {
		return err
	}
	if issue.Status != domain.IssueStatusInProgress {
		return apperrors.NewConflict("issue is not in IN_PROGRESS state",
			map[string]any{"status": issue.Status})
	}

	if err := s.store.UpdateIssueStatus(ctx, issueID, domain.IssueStatusResolved, notes); err != nil {
		return err
	}
	s.publishStatusChange(ctx, actor, issueID, issue.Status, domain.IssueStatusResolved, notes)
	return nil
}

// Issues returns every issue, unsorted, for admin consumption.
func (s *Service) Issues(ctx context.Context) ([]domain.Issue, error) {
	return s.store.GetIssues(ctx)
}

// TechnicianQueue returns the technician's task list: priority descending,
// then within each priority band unresolved before resolved, then most
// recently updated first.
func (s *Service) TechnicianQueue(ctx context.Context, technicianID string) ([]domain.Issue, error) {
	issues, err := s.store.GetIssues(ctx)
	if err != nil {
		return nil, err
	}
	queue := lo.Filter(issues, func(i domain.Issue, _ int) bool {
		return i.AssignedTo != nil && *i.AssignedTo == technicianID
	})
	sort.SliceStable(queue, func(a, b int) bool {
		ia, ib := queue[a], queue[b]
		if ia.Priority.Weight() != ib.Priority.Weight() {
			return ia.Priority.Weight() > ib.Priority.Weight()
		}
		aResolved := ia.Status == domain.IssueStatusResolved
		bResolved := ib.Status == domain.IssueStatusResolved
		if aResolved != bResolved {
			return !aResolved
		}
		return ia.UpdatedAt > ib.UpdatedAt
	})
	return queue, nil
}

// ResidentIssues returns the resident's own issues, newest first.
func (s *Service) ResidentIssues(ctx context.Context, residentID string) ([]domain.Issue, error) {
	issues, err := s.store.GetIssues(ctx)
	if err != nil {
		return nil, err
	}
	own := lo.Filter(issues, func(i domain.Issue, _ int) bool {
		return i.ResidentID == residentID
	})
	sort.SliceStable(own, func(a, b int) bool {
		return own[a].CreatedAt > own[b].CreatedAt
	})
	return own, nil
}

// SearchIssues applies the admin filter: status equality (or ALL) AND a
// case-insensitive substring match against description or resident name.
func (s *Service) SearchIssues(ctx context.Context, status, term string) ([]domain.Issue, error) {
	issues, err := s.store.GetIssues(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	return lo.Filter(issues, func(i domain.Issue, _ int) bool {
		if status != "" && status != StatusAll && string(i.Status) != status {
			return false
		}
		if needle == "" {
			return true
		}
		return strings.Contains(strings.ToLower(i.Description), needle) ||
			strings.Contains(strings.ToLower(i.ResidentName), needle)
	}), nil
}

// Technicians lists the accounts eligible for assignment.
func (s *Service) Technicians(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(users, func(u domain.User, _ int) bool {
		return u.Role == domain.RoleTechnician
	}), nil
}

// Messages returns the chat visible to the user.
func (s *Service) Messages(ctx context.Context, user *domain.User) ([]domain.Message, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("login required")
	}
	return s.store.GetMessages(ctx, user.ID, user.Role)
}

// SendMessage stamps the sender snapshot onto the message and stores it.
// Non-admin senders always address the admin channel.
func (s *Service) SendMessage(ctx context.Context, sender *domain.User, receiverID, text string) (*domain.Message, error) {
	if sender == nil {
		return nil, apperrors.NewUnauthorized("login required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("message text is required", nil)
	}
	if sender.Role != domain.RoleAdmin {
		receiverID = domain.AdminChannel
	}
	if receiverID == "" {
		return nil, apperrors.NewValidationError("receiver is required", nil)
	}

	msg, err := s.store.SendMessage(ctx, domain.Message{
		SenderID:   sender.ID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		ReceiverID: receiverID,
		Text:       text,
	})
	if err != nil || msg == nil {
		return msg, err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventMessageSent,
		ActorID:   sender.ID,
		ActorRole: string(sender.Role),
		Payload:   map[string]any{"message_id": msg.ID, "receiver_id": msg.ReceiverID},
	})
	return msg, nil
}

func (s *Service) requireAssignedTechnician(ctx context.Context, actor *domain.User, issueID string) (*domain.Issue, error) {
	if actor == nil || actor.Role != domain.RoleTechnician {
		return nil, apperrors.NewForbidden("only technicians can work issues")
	}
	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.AssignedTo == nil || *issue.AssignedTo != actor.ID {
		return nil, apperrors.NewForbidden("issue is not assigned to you")
	}
	return issue, nil
}

func (s *Service) findIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	issues, err := s.store.GetIssues(ctx)
	if err != nil {
		return nil, err
	}
	issue, found := lo.Find(issues, func(i domain.Issue) bool { return i.ID == issueID })
	if !found {
		return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
	}
	return &issue, nil
}

func (s *Service) findTechnician(ctx context.Context, technicianID string) (*domain.User, error) {
	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	tech, found := lo.Find(users, func(u domain.User) bool {
		return u.ID == technicianID && u.Role == domain.RoleTechnician
	})
	if !found {
		return nil, nil
	}
	return &tech, nil
}

func (s *Service) publishStatusChange(ctx context.Context, actor *domain.User, issueID string, from, to domain.IssueStatus, notes string) {
	s.publish(ctx, events.Event{
		Type:      events.EventIssueStatusChanged,
		IssueID:   issueID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Payload: events.IssueStatusChangedPayload{
			OldStatus: from,
			NewStatus: to,
			Notes:     notes,
		},
	})
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
