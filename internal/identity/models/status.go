package models

import "slices"

// Status is the lifecycle state of an identity.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusSuspended Status = "Suspended"
	StatusInactive  Status = "Inactive"
	StatusArchived  Status = "Archived"
)

// Statuses lists every lifecycle state.
func Statuses() []Status {
	return []Status{StatusPending, StatusActive, StatusSuspended, StatusInactive, StatusArchived}
}

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses(), s)
}

func (s Status) String() string {
	return string(s)
}
