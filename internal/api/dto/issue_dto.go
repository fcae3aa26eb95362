package dto

// SubmitIssueRequest payload for a resident filing an issue.
type SubmitIssueRequest struct {
	Category    string `json:"category" validate:"required,oneof=Electrical Plumbing Carpentry Cleaning Other"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	PhotoURL    string `json:"photoUrl" validate:"omitempty,url"`
}

// AssignRequest payload for an admin assignment action. An empty
// technicianId unassigns the issue.
type AssignRequest struct {
	TechnicianID string `json:"technicianId"`
}

// ResolveRequest payload for a technician resolving an issue.
type ResolveRequest struct {
	Notes string `json:"notes" validate:"required"`
}
