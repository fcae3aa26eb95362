package workflow

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/events"
	"github.com/spec-kit/fixmate-service/internal/store/local"
	apperrors "github.com/spec-kit/fixmate-service/pkg/util"
)

var (
	seedResident   = &domain.User{ID: "res-1", Name: "Alice Resident", Role: domain.RoleResident}
	seedTechnician = &domain.User{ID: "tech-1", Name: "Tom Tech", Role: domain.RoleTechnician}
	seedAdmin      = &domain.User{ID: "admin-1", Name: "Admin User", Role: domain.RoleAdmin}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := local.Open("", bcrypt.MinCost, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, events.NewInMemoryDispatcher(), zap.NewNop())
}

func submit(t *testing.T, s *Service, resident *domain.User, priority domain.IssuePriority, desc string) *domain.Issue {
	t.Helper()
	issue, err := s.SubmitIssue(context.Background(), resident, SubmitIssueInput{
		Category:    domain.CategoryPlumbing,
		Description: desc,
		Priority:    priority,
	})
	require.NoError(t, err)
	return issue
}

func getIssue(t *testing.T, s *Service, id string) domain.Issue {
	t.Helper()
	issues, err := s.Issues(context.Background())
	require.NoError(t, err)
	for _, i := range issues {
		if i.ID == id {
			return i
		}
	}
	t.Fatalf("issue %s not found", id)
	return domain.Issue{}
}

func Test_SubmitIssue_Requires_Resident(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)

	_, err := s.SubmitIssue(context.Background(), seedAdmin, SubmitIssueInput{
		Category: domain.CategoryOther, Description: "x", Priority: domain.PriorityLow,
	})
	req.Error(err)
	req.Equal("FORBIDDEN", apperrors.ToDomainError(err).Code)

	_, err = s.SubmitIssue(context.Background(), seedResident, SubmitIssueInput{
		Category: domain.CategoryOther, Description: "   ",
	})
	req.Error(err)
	req.Equal("VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func Test_SubmitIssue_Defaults_Priority_To_Medium(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)

	issue, err := s.SubmitIssue(context.Background(), seedResident, SubmitIssueInput{
		Category: domain.CategoryCleaning, Description: "stain",
	})
	req.NoError(err)
	req.Equal(domain.PriorityMedium, issue.Priority)
	req.Equal(domain.IssueStatusOpen, issue.Status)
}

func Test_Assign_Requires_Admin_And_Valid_Technician(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	issue := submit(t, s, seedResident, domain.PriorityHigh, "leak")

	err := s.Assign(ctx, seedTechnician, issue.ID, "tech-1")
	req.Error(err)
	req.Equal("FORBIDDEN", apperrors.ToDomainError(err).Code)

	// Unresolvable technician ids are a silent no-op on assignment fields.
	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, "ghost"))
	got := getIssue(t, s, issue.ID)
	req.Equal(domain.IssueStatusOpen, got.Status)
	req.Nil(got.AssignedTo)

	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, "tech-1"))
	got = getIssue(t, s, issue.ID)
	req.Equal(domain.IssueStatusAssigned, got.Status)
	req.Equal("Tom Tech", *got.AssignedToName)

	err = s.Assign(ctx, seedAdmin, "missing-issue", "tech-1")
	req.Error(err)
	req.Equal("NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func Test_StartWork_Only_By_Assigned_Technician(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	issue := submit(t, s, seedResident, domain.PriorityHigh, "leak")

	err := s.StartWork(ctx, seedTechnician, issue.ID)
	req.Error(err)
	req.Equal("FORBIDDEN", apperrors.ToDomainError(err).Code)

	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, "tech-1"))

	other := &domain.User{ID: "tech-2", Name: "Sarah Tech", Role: domain.RoleTechnician}
	err = s.StartWork(ctx, other, issue.ID)
	req.Error(err)
	req.Equal("FORBIDDEN", apperrors.ToDomainError(err).Code)

	req.NoError(s.StartWork(ctx, seedTechnician, issue.ID))
	req.Equal(domain.IssueStatusInProgress, getIssue(t, s, issue.ID).Status)

	// Starting twice conflicts: the issue is no longer ASSIGNED.
	err = s.StartWork(ctx, seedTechnician, issue.ID)
	req.Error(err)
	req.Equal("CONFLICT", apperrors.ToDomainError(err).Code)
}

func Test_Resolve_Requires_Non_Empty_Notes(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	issue := submit(t, s, seedResident, domain.PriorityHigh, "leak")
	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, "tech-1"))
	req.NoError(s.StartWork(ctx, seedTechnician, issue.ID))

	for _, notes := range []string{"", "   ", "\t\n"} {
		err := s.Resolve(ctx, seedTechnician, issue.ID, notes)
		req.Error(err)
		req.Equal("VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
		req.Equal(domain.IssueStatusInProgress, getIssue(t, s, issue.ID).Status)
	}

	req.NoError(s.Resolve(ctx, seedTechnician, issue.ID, "fixed pipe"))
	got := getIssue(t, s, issue.ID)
	req.Equal(domain.IssueStatusResolved, got.Status)
	req.Equal("fixed pipe", got.ResolutionNotes)
}

func Test_Unassign_Reverts_To_Open_And_Keeps_Notes(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	issue := submit(t, s, seedResident, domain.PriorityHigh, "leak")
	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, "tech-1"))
	req.NoError(s.StartWork(ctx, seedTechnician, issue.ID))
	req.NoError(s.Resolve(ctx, seedTechnician, issue.ID, "fixed pipe"))

	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, ""))
	got := getIssue(t, s, issue.ID)
	req.Equal(domain.IssueStatusOpen, got.Status)
	req.Nil(got.AssignedTo)
	req.Nil(got.AssignedToName)
	// Stale resolution notes survive unassignment on purpose.
	req.Equal("fixed pipe", got.ResolutionNotes)
}

func Test_Full_Lifecycle_Scenario(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	alice, err := s.store.Register(ctx, "Alice", "alice@x.com", "pw1", domain.RoleResident)
	req.NoError(err)

	issue, err := s.SubmitIssue(ctx, alice, SubmitIssueInput{
		Category:    domain.CategoryPlumbing,
		Priority:    domain.PriorityHigh,
		Description: "leak",
	})
	req.NoError(err)

	mine, err := s.ResidentIssues(ctx, alice.ID)
	req.NoError(err)
	req.Len(mine, 1)
	req.Equal(domain.IssueStatusOpen, mine[0].Status)

	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, "tech-1"))
	got := getIssue(t, s, issue.ID)
	req.Equal(domain.IssueStatusAssigned, got.Status)
	req.Equal("Tom Tech", *got.AssignedToName)

	req.NoError(s.StartWork(ctx, seedTechnician, issue.ID))
	req.Equal(domain.IssueStatusInProgress, getIssue(t, s, issue.ID).Status)

	req.NoError(s.Resolve(ctx, seedTechnician, issue.ID, "fixed pipe"))
	got = getIssue(t, s, issue.ID)
	req.Equal(domain.IssueStatusResolved, got.Status)
	req.Equal("fixed pipe", got.ResolutionNotes)

	req.NoError(s.Assign(ctx, seedAdmin, issue.ID, ""))
	got = getIssue(t, s, issue.ID)
	req.Equal(domain.IssueStatusOpen, got.Status)
	req.Nil(got.AssignedTo)
	req.Equal("fixed pipe", got.ResolutionNotes)
}

func Test_TechnicianQueue_Sorting(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	low := submit(t, s, seedResident, domain.PriorityLow, "low prio")
	high := submit(t, s, seedResident, domain.PriorityHigh, "high prio")
	highDone := submit(t, s, seedResident, domain.PriorityHigh, "high resolved")
	for _, issue := range []*domain.Issue{low, high, highDone} {
		req.NoError(s.Assign(ctx, seedAdmin, issue.ID, "tech-1"))
	}
	req.NoError(s.StartWork(ctx, seedTechnician, highDone.ID))
	req.NoError(s.Resolve(ctx, seedTechnician, highDone.ID, "done"))

	queue, err := s.TechnicianQueue(ctx, "tech-1")
	req.NoError(err)
	// Seed data already assigns two issues to tech-1: one HIGH ASSIGNED and
	// one MEDIUM IN_PROGRESS.
	req.Len(queue, 5)

	// Priority descending; within HIGH, unresolved issues sort before the
	// resolved one and by most recent update.
	want := []string{
		"high prio",
		"Light flickering in the hallway.",
		"high resolved",
		"Common area carpet stain removal.",
		"low prio",
	}
	got := lo.Map(queue, func(i domain.Issue, _ int) string { return i.Description })
	req.Equal(want, got)

	for _, i := range queue {
		req.Equal("tech-1", *i.AssignedTo)
	}
}

func Test_ResidentIssues_Newest_First(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	first := submit(t, s, seedResident, domain.PriorityLow, "first")
	second := submit(t, s, seedResident, domain.PriorityLow, "second")

	mine, err := s.ResidentIssues(ctx, seedResident.ID)
	req.NoError(err)
	req.GreaterOrEqual(len(mine), 2)
	for i := 1; i < len(mine); i++ {
		req.GreaterOrEqual(mine[i-1].CreatedAt, mine[i].CreatedAt)
	}
	req.NotEqual(first.ID, second.ID)
}

func Test_SearchIssues_Status_And_Substring(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	all, err := s.SearchIssues(ctx, StatusAll, "")
	req.NoError(err)
	req.Len(all, 5) // seed data

	open, err := s.SearchIssues(ctx, string(domain.IssueStatusOpen), "")
	req.NoError(err)
	for _, i := range open {
		req.Equal(domain.IssueStatusOpen, i.Status)
	}

	// Case-insensitive match against description or resident name.
	byDesc, err := s.SearchIssues(ctx, StatusAll, "FAUCET")
	req.NoError(err)
	req.Len(byDesc, 1)

	byName, err := s.SearchIssues(ctx, StatusAll, "bob")
	req.NoError(err)
	req.Len(byName, 2)

	none, err := s.SearchIssues(ctx, string(domain.IssueStatusResolved), "faucet")
	req.NoError(err)
	req.Empty(none)
}

func Test_SendMessage_Forces_Admin_Channel_For_Non_Admins(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)
	ctx := context.Background()

	msg, err := s.SendMessage(ctx, seedResident, "tech-1", "hello")
	req.NoError(err)
	req.Equal(domain.AdminChannel, msg.ReceiverID)
	req.Equal(seedResident.Name, msg.SenderName)
	req.Equal(domain.RoleResident, msg.SenderRole)

	reply, err := s.SendMessage(ctx, seedAdmin, seedResident.ID, "on it")
	req.NoError(err)
	req.Equal(seedResident.ID, reply.ReceiverID)

	_, err = s.SendMessage(ctx, seedResident, "", "  ")
	req.Error(err)
	req.Equal("VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	visible, err := s.Messages(ctx, seedResident)
	req.NoError(err)
	req.Len(visible, 2) // own message plus the admin reply addressed to them

	techView, err := s.Messages(ctx, seedTechnician)
	req.NoError(err)
	req.Empty(techView)
}

func Test_Technicians_Lists_Only_Technicians(t *testing.T) {
	req := require.New(t)
	s := newTestService(t)

	techs, err := s.Technicians(context.Background())
	req.NoError(err)
	req.Len(techs, 2)
	for _, u := range techs {
		req.Equal(domain.RoleTechnician, u.Role)
	}
}
