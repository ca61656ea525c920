package handler

import (
	"time"

	"campusid/internal/identity/models"
)

// IdentityResponse is an identity as a flat field map, including only the
// extension group of its category.
type IdentityResponse map[string]any

func toIdentityResponse(rec *models.IdentityRecord) IdentityResponse {
	resp := IdentityResponse{
		string(models.FieldID):          rec.ID,
		string(models.FieldCategory):    rec.Category,
		string(models.FieldSubCategory): rec.SubCategory,
		string(models.FieldStatus):      rec.Status,
		"status_changed_at":             rec.StatusChangedAt.UTC().Format(time.RFC3339),
		"created_at":                    rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	fields := append(models.PersonFields(), models.ExtensionFields(rec.Category)...)
	for _, f := range fields {
		v, _ := rec.Value(f)
		resp[string(f)] = v
	}
	return resp
}

type AuditEntryResponse struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	ChangedAt  time.Time `json:"changed_at"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
}

func toAuditResponses(entries []models.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:         e.ID.String(),
			IdentityID: e.IdentityID,
			ChangedAt:  e.ChangedAt.UTC(),
			Field:      string(e.Field),
			OldValue:   e.OldValue,
			NewValue:   e.NewValue,
		}
	}
	return out
}

type IdentityDetailsResponse struct {
	Identity IdentityResponse     `json:"identity"`
	Audit    []AuditEntryResponse `json:"audit"`
}

type EditResponse struct {
	Identity IdentityResponse     `json:"identity"`
	Changes  []AuditEntryResponse `json:"changes"`
}

type SearchResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Count      int                `json:"count"`
}

type AuditListResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}
