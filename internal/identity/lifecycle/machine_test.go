package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusid/internal/identity/models"
)

func TestCanTransition(t *testing.T) {
	m := Default()
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)

	tests := []struct {
		name    string
		from    models.Status
		to      models.Status
		allowed bool
	}{
		{"pending to active", models.StatusPending, models.StatusActive, true},
		{"active to suspended", models.StatusActive, models.StatusSuspended, true},
		{"suspended to active", models.StatusSuspended, models.StatusActive, true},
		{"active to archived", models.StatusActive, models.StatusArchived, false},
		{"pending to suspended", models.StatusPending, models.StatusSuspended, false},
		{"active to inactive", models.StatusActive, models.StatusInactive, false},
		{"archived to active", models.StatusArchived, models.StatusActive, false},
		{"archived to pending", models.StatusArchived, models.StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.CanTransition(tt.from, tt.to, recent, now)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var transErr *models.InvalidTransitionError
			require.ErrorAs(t, err, &transErr)
			assert.Equal(t, tt.from, transErr.From)
			assert.Equal(t, tt.to, transErr.To)
			assert.Zero(t, transErr.Required)
		})
	}

	t.Run("self transition always allowed", func(t *testing.T) {
		for _, s := range models.Statuses() {
			assert.NoError(t, m.CanTransition(s, s, recent, now), s)
		}
	})
}

func TestArchiveGate(t *testing.T) {
	m := Default()
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("four years inactive is rejected with elapsed time", func(t *testing.T) {
		changed := now.AddDate(-4, 0, 0)
		err := m.CanTransition(models.StatusInactive, models.StatusArchived, changed, now)
		var transErr *models.InvalidTransitionError
		require.ErrorAs(t, err, &transErr)
		assert.Equal(t, now.Sub(changed), transErr.Elapsed)
		assert.Equal(t, ArchiveAfter, transErr.Required)
		assert.Contains(t, err.Error(), "requires 5 years before archiving")
	})

	t.Run("six years inactive is accepted", func(t *testing.T) {
		err := m.CanTransition(models.StatusInactive, models.StatusArchived, now.AddDate(-6, 0, 0), now)
		assert.NoError(t, err)
	})

	t.Run("exactly five 365-day years is accepted", func(t *testing.T) {
		err := m.CanTransition(models.StatusInactive, models.StatusArchived, now.Add(-ArchiveAfter), now)
		assert.NoError(t, err)
	})
}

func TestEnsureMutable(t *testing.T) {
	m := Default()
	rec := &models.IdentityRecord{ID: "STU202400001", Status: models.StatusArchived}

	var archived *models.ArchivedImmutableError
	require.ErrorAs(t, m.EnsureMutable(rec), &archived)
	assert.Equal(t, "STU202400001", archived.ID)

	rec.Status = models.StatusInactive
	assert.NoError(t, m.EnsureMutable(rec))
}

func TestTargets(t *testing.T) {
	m := Default()
	assert.Equal(t, []models.Status{models.StatusSuspended}, m.Targets(models.StatusActive))
	assert.Empty(t, m.Targets(models.StatusArchived))
}
