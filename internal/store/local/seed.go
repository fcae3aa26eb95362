package local

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/fixmate-service/internal/domain"
)

// seedDataset builds the demo dataset used when no persisted document exists:
// five users covering all three roles and five issues spanning every status,
// priority, and category. Residents and technicians log in with "password",
// the admin with "admin".
func seedDataset(bcryptCost int) dataset {
	userHash := mustHash("password", bcryptCost)
	adminHash := mustHash("admin", bcryptCost)
	now := time.Now().UnixMilli()

	const day = int64(24 * time.Hour / time.Millisecond)
	const hour = int64(time.Hour / time.Millisecond)

	users := []domain.User{
		{ID: "res-1", Name: "Alice Resident", Email: "alice@res.com", Secret: userHash, Role: domain.RoleResident, Avatar: "https://picsum.photos/seed/alice/200"},
		{ID: "res-2", Name: "Bob Resident", Email: "bob@res.com", Secret: userHash, Role: domain.RoleResident, Avatar: "https://picsum.photos/seed/bob/200"},
		{ID: "tech-1", Name: "Tom Tech", Email: "tom@tech.com", Secret: userHash, Role: domain.RoleTechnician, Avatar: "https://picsum.photos/seed/tom/200"},
		{ID: "tech-2", Name: "Sarah Tech", Email: "sarah@tech.com", Secret: userHash, Role: domain.RoleTechnician, Avatar: "https://picsum.photos/seed/sarah/200"},
		{ID: "admin-1", Name: "Admin User", Email: "admin@fixmate.com", Secret: adminHash, Role: domain.RoleAdmin, Avatar: "https://picsum.photos/seed/admin/200"},
	}

	tech1, tech1Name := "tech-1", "Tom Tech"
	tech2, tech2Name := "tech-2", "Sarah Tech"

	issues := []domain.Issue{
		{
			ID:           "1",
			ResidentID:   "res-1",
			ResidentName: "Alice Resident",
			Category:     domain.CategoryPlumbing,
			Description:  "Leaky faucet in the kitchen.",
			Status:       domain.IssueStatusOpen,
			Priority:     domain.PriorityMedium,
			CreatedAt:    now - 2*day,
			UpdatedAt:    now - 2*day,
		},
		{
			ID:             "2",
			ResidentID:     "res-2",
			ResidentName:   "Bob Resident",
			Category:       domain.CategoryElectrical,
			Description:    "Light flickering in the hallway.",
			Status:         domain.IssueStatusAssigned,
			Priority:       domain.PriorityHigh,
			AssignedTo:     &tech1,
			AssignedToName: &tech1Name,
			CreatedAt:      now - day,
			UpdatedAt:      now,
		},
		{
			ID:              "3",
			ResidentID:      "res-1",
			ResidentName:    "Alice Resident",
			Category:        domain.CategoryCarpentry,
			Description:     "Cabinet door hinge is broken.",
			Status:          domain.IssueStatusResolved,
			Priority:        domain.PriorityLow,
			AssignedTo:      &tech2,
			AssignedToName:  &tech2Name,
			ResolutionNotes: "Replaced the hinge with a new soft-close model.",
			CreatedAt:       now - 3*day,
			UpdatedAt:       now - day,
		},
		{
			ID:             "4",
			ResidentID:     "res-2",
			ResidentName:   "Bob Resident",
			Category:       domain.CategoryCleaning,
			Description:    "Common area carpet stain removal.",
			Status:         domain.IssueStatusInProgress,
			Priority:       domain.PriorityMedium,
			AssignedTo:     &tech1,
			AssignedToName: &tech1Name,
			CreatedAt:      now - 12*hour,
			UpdatedAt:      now - hour,
		},
		{
			ID:           "5",
			ResidentID:   "res-1",
			ResidentName: "Alice Resident",
			Category:     domain.CategoryOther,
			Description:  "The main entrance gate is making a very loud screeching noise whenever it opens or closes. Please check ASAP as neighbors are complaining.",
			Status:       domain.IssueStatusOpen,
			Priority:     domain.PriorityHigh,
			CreatedAt:    now - hour,
			UpdatedAt:    now - hour,
		},
	}

	return dataset{
		Users:    users,
		Issues:   issues,
		Messages: []domain.Message{},
	}
}

func mustHash(secret string, cost int) string {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		// bcrypt only fails on an out-of-range cost, which is clamped above.
		panic(err)
	}
	return string(hash)
}
