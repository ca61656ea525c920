// Package lifecycle decides which identity status transitions are legal.
package lifecycle

import (
	"time"

	"campusid/internal/identity/models"
)

// ArchiveAfter is how long an identity must stay Inactive before it may be archived.
const ArchiveAfter = 5 * 365 * 24 * time.Hour

// Edge is one allowed transition. MinElapsed, when non-zero, is the minimum
// time since the last status change.
type Edge struct {
	From       models.Status
	To         models.Status
	MinElapsed time.Duration
}

// Machine is an immutable transition table.
type Machine struct {
	edges map[models.Status]map[models.Status]time.Duration
}

// New builds a machine from edges.
func New(edges ...Edge) *Machine {
	m := &Machine{edges: make(map[models.Status]map[models.Status]time.Duration)}
	for _, e := range edges {
		if m.edges[e.From] == nil {
			m.edges[e.From] = make(map[models.Status]time.Duration)
		}
		m.edges[e.From][e.To] = e.MinElapsed
	}
	return m
}

// Default returns the identity lifecycle: Pending→Active, Active⇄Suspended,
// Inactive→Archived after ArchiveAfter. Archived is terminal.
func Default() *Machine {
	return New(
		Edge{From: models.StatusPending, To: models.StatusActive},
		Edge{From: models.StatusActive, To: models.StatusSuspended},
		Edge{From: models.StatusSuspended, To: models.StatusActive},
		Edge{From: models.StatusInactive, To: models.StatusArchived, MinElapsed: ArchiveAfter},
	)
}

// EnsureMutable rejects any change to an Archived identity.
func (m *Machine) EnsureMutable(rec *models.IdentityRecord) error {
	if rec.IsArchived() {
		return &models.ArchivedImmutableError{ID: rec.ID}
	}
	return nil
}

// CanTransition checks from→to given the time of the last status change.
// A self-transition is always allowed.
func (m *Machine) CanTransition(from, to models.Status, changedAt, now time.Time) error {
	if from == to {
		return nil
	}
	minElapsed, ok := m.edges[from][to]
	if !ok {
		return &models.InvalidTransitionError{From: from, To: to}
	}
	if minElapsed > 0 {
		elapsed := now.Sub(changedAt)
		if elapsed < minElapsed {
			return &models.InvalidTransitionError{From: from, To: to, Elapsed: elapsed, Required: minElapsed}
		}
	}
	return nil
}

// Targets lists the statuses reachable from from, excluding from itself.
func (m *Machine) Targets(from models.Status) []models.Status {
	var out []models.Status
	for _, s := range models.Statuses() {
		if _, ok := m.edges[from][s]; ok {
			out = append(out, s)
		}
	}
	return out
}
