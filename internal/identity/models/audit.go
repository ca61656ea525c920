package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one field change of one edit. Entries are write-once.
type AuditEntry struct {
	ID         uuid.UUID
	IdentityID string
	ChangedAt  time.Time
	Field      Field
	OldValue   string
	NewValue   string
}

// EditRequest carries the submitted fields of an edit. Fields absent from
// Values are left untouched.
type EditRequest struct {
	ID     string
	Values FieldValues
}

// EditResult is the outcome of a successful edit.
type EditResult struct {
	Record  *IdentityRecord
	Changes []AuditEntry
}

// IdentityDetails is an identity together with its audit trail, newest first.
type IdentityDetails struct {
	Record *IdentityRecord
	Audit  []AuditEntry
}

// Mutation is the persisted effect of one edit: new field values, the new
// status_changed_at when the status moved, and the audit entries.
type Mutation struct {
	Values          FieldValues
	StatusChangedAt time.Time
	Audit           []AuditEntry
}

// IsEmpty reports whether the mutation changes nothing.
func (m Mutation) IsEmpty() bool {
	return len(m.Values) == 0 && m.StatusChangedAt.IsZero() && len(m.Audit) == 0
}
