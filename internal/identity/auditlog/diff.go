// Package auditlog turns an edit into field-level audit entries.
package auditlog

import (
	"time"

	"github.com/google/uuid"

	"campusid/internal/identity/models"
)

// Diff compares before and after over fields and returns one entry per changed
// field, in field order, all stamped with at. No change yields no entries.
func Diff(before, after *models.IdentityRecord, fields models.FieldSet, at time.Time) []models.AuditEntry {
	var entries []models.AuditEntry
	for _, f := range fields {
		oldVal, _ := before.Value(f)
		newVal, _ := after.Value(f)
		if oldVal == newVal {
			continue
		}
		entries = append(entries, models.AuditEntry{
			ID:         uuid.New(),
			IdentityID: before.ID,
			ChangedAt:  at,
			Field:      f,
			OldValue:   oldVal,
			NewValue:   newVal,
		})
	}
	return entries
}

// Changes returns the subset of values that differ from rec.
func Changes(rec *models.IdentityRecord, values models.FieldValues) models.FieldValues {
	out := make(models.FieldValues, len(values))
	for f, v := range values {
		if cur, _ := rec.Value(f); cur != v {
			out[f] = v
		}
	}
	return out
}
