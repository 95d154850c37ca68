package types

import "fmt"

// IssueStatus represents the administrative status of an issue
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
)

// AllIssueStatuses returns all valid issue statuses in lifecycle order
func AllIssueStatuses() []IssueStatus {
	return []IssueStatus{
		IssueStatusOpen,
		IssueStatusInProgress,
		IssueStatusResolved,
	}
}

// IsValid checks if the issue status is valid
func (s IssueStatus) IsValid() bool {
	switch s {
	case IssueStatusOpen,
		IssueStatusInProgress,
		IssueStatusResolved:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as IssueStatusOpen.
func (s IssueStatus) Normalize() IssueStatus {
	if s == "" {
		return IssueStatusOpen
	}
	return s
}

func (s IssueStatus) rank() int {
	switch s {
	case IssueStatusOpen:
		return 0
	case IssueStatusInProgress:
		return 1
	case IssueStatusResolved:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only forward moves and same-status no-ops are allowed; resolved is final.
func (s IssueStatus) CanTransitionTo(next IssueStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return next.rank() >= s.rank()
}

// String returns the string representation of the issue status
func (s IssueStatus) String() string {
	return string(s)
}

// ParseIssueStatus parses a string into an IssueStatus
func ParseIssueStatus(s string) (IssueStatus, error) {
	status := IssueStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid issue status: %s", s)
	}
	return status, nil
}
