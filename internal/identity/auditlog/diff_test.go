package auditlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusid/internal/identity/models"
)

func facultyRecord() *models.IdentityRecord {
	rec := &models.IdentityRecord{ID: "FAC202400001", Status: models.StatusActive}
	rec.Category = models.CategoryFaculty
	rec.SubCategory = models.SubTenured
	rec.FirstName = "Karim"
	rec.LastName = "Haddad"
	rec.Faculty.Rank = "Associate Professor"
	rec.Faculty.PrimaryDepartment = "Physics"
	return rec
}

func TestDiff(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fields := models.DefaultCatalog().EditableFields(models.SubTenured)

	t.Run("one changed field yields one entry", func(t *testing.T) {
		before := facultyRecord()
		after := before.Clone()
		after.Faculty.Rank = "Professor"

		entries := Diff(before, after, fields, at)
		require.Len(t, entries, 1)
		e := entries[0]
		assert.Equal(t, "FAC202400001", e.IdentityID)
		assert.Equal(t, models.FieldFacultyRank, e.Field)
		assert.Equal(t, "Associate Professor", e.OldValue)
		assert.Equal(t, "Professor", e.NewValue)
		assert.Equal(t, at, e.ChangedAt)
	})

	t.Run("no change yields no entries", func(t *testing.T) {
		before := facultyRecord()
		assert.Empty(t, Diff(before, before.Clone(), fields, at))
	})

	t.Run("batch shares timestamp and follows field order", func(t *testing.T) {
		before := facultyRecord()
		after := before.Clone()
		after.Faculty.PrimaryDepartment = "Chemistry"
		after.Status = models.StatusSuspended
		after.FirstName = "Karima"

		entries := Diff(before, after, fields, at)
		require.Len(t, entries, 3)
		assert.Equal(t, models.FieldFirstName, entries[0].Field)
		assert.Equal(t, models.FieldStatus, entries[1].Field)
		assert.Equal(t, models.FieldFacultyPrimaryDept, entries[2].Field)
		for _, e := range entries {
			assert.Equal(t, at, e.ChangedAt)
		}
		assert.NotEqual(t, entries[0].ID, entries[1].ID)
	})

	t.Run("fields outside the set are ignored", func(t *testing.T) {
		before := facultyRecord()
		after := before.Clone()
		after.Email = "new@univ.dz"
		after.SubCategory = models.SubAdjunct
		assert.Empty(t, Diff(before, after, fields, at))
	})
}

func TestChanges(t *testing.T) {
	rec := facultyRecord()
	got := Changes(rec, models.FieldValues{
		models.FieldFacultyRank: "Associate Professor",
		models.FieldStatus:      "Suspended",
	})
	assert.Equal(t, models.FieldValues{models.FieldStatus: "Suspended"}, got)
}
