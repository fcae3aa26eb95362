package domain

// IssueStatus enumerates lifecycle states for maintenance issues.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "OPEN"
	IssueStatusAssigned   IssueStatus = "ASSIGNED"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
)

// Valid reports whether the status is one of the known values.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusAssigned, IssueStatusInProgress, IssueStatusResolved:
		return true
	}
	return false
}

// IssueCategory enumerates maintenance trades.
type IssueCategory string

const (
	CategoryElectrical IssueCategory = "Electrical"
	CategoryPlumbing   IssueCategory = "Plumbing"
	CategoryCarpentry  IssueCategory = "Carpentry"
	CategoryCleaning   IssueCategory = "Cleaning"
	CategoryOther      IssueCategory = "Other"
)

// IssuePriority enumerates urgency.
type IssuePriority string

const (
	PriorityLow    IssuePriority = "LOW"
	PriorityMedium IssuePriority = "MEDIUM"
	PriorityHigh   IssuePriority = "HIGH"
)

// Weight maps a priority to a sortable rank (higher is more urgent).
func (p IssuePriority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Issue is a maintenance request filed by a resident.
//
// ResidentName and AssignedToName are denormalized snapshots taken at write
// time; a later rename of the user does not cascade into historical records.
// Timestamps are epoch milliseconds. UpdatedAt increases monotonically and is
// refreshed on every mutation.
type Issue struct {
	ID              string        `json:"id"`
	ResidentID      string        `json:"residentId"`
	ResidentName    string        `json:"residentName"`
	Category        IssueCategory `json:"category"`
	Description     string        `json:"description"`
	PhotoURL        string        `json:"photoUrl,omitempty"`
	Status          IssueStatus   `json:"status"`
	Priority        IssuePriority `json:"priority"`
	AssignedTo      *string       `json:"assignedTo,omitempty"`
	AssignedToName  *string       `json:"assignedToName,omitempty"`
	ResolutionNotes string        `json:"resolutionNotes,omitempty"`
	CreatedAt       int64         `json:"createdAt"`
	UpdatedAt       int64         `json:"updatedAt"`
}

// Assigned reports whether a technician is currently assigned.
func (i *Issue) Assigned() bool {
	return i.AssignedTo != nil && *i.AssignedTo != ""
}
