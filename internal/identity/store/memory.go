package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"campusid/internal/identity/models"
	"campusid/pkg/platform/sentinel"
)

// InMemoryStore keeps identities in process memory for tests and local runs.
// Records are copied in and out so callers never share state with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.IdentityRecord
	emails  map[string]string // lower-cased email -> id
	audit   map[string][]models.AuditEntry
}

// NewInMemory constructs an empty store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*models.IdentityRecord),
		emails:  make(map[string]string),
		audit:   make(map[string][]models.AuditEntry),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, rec *models.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return &DuplicateKeyError{Key: KeyID, Value: rec.ID}
	}
	key := strings.ToLower(rec.Email)
	if _, ok := s.emails[key]; ok {
		return &DuplicateKeyError{Key: KeyEmail, Value: rec.Email}
	}
	s.records[rec.ID] = rec.Clone()
	s.emails[key] = rec.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, fmt.Errorf("identity with email %q: %w", email, sentinel.ErrNotFound)
	}
	return s.records[id].Clone(), nil
}

func (s *InMemoryStore) CountBySubCategory(_ context.Context, sub models.SubCategory) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.SubCategory == sub {
			n++
		}
	}
	return n, nil
}

// CountByNameDobSubCategory expects first and last already lower-cased.
func (s *InMemoryStore) CountByNameDobSubCategory(_ context.Context, first, last, dob string, sub models.SubCategory) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if strings.ToLower(rec.FirstName) == first && strings.ToLower(rec.LastName) == last &&
			rec.DateOfBirth == dob && rec.SubCategory == sub {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) UpdateFields(_ context.Context, id string, m models.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, m)
}

func (s *InMemoryStore) updateLocked(id string, m models.Mutation) error {
	rec, ok := s.records[id]
	if !ok {
		return notFound(id)
	}
	rec.Apply(m.Values)
	if !m.StatusChangedAt.IsZero() {
		rec.StatusChangedAt = m.StatusChangedAt
	}
	return nil
}

func (s *InMemoryStore) AppendAuditEntries(_ context.Context, entries []models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(entries)
	return nil
}

func (s *InMemoryStore) appendLocked(entries []models.AuditEntry) {
	for _, e := range entries {
		s.audit[e.IdentityID] = append(s.audit[e.IdentityID], e)
	}
}

// ListAuditByIdentity returns entries newest first. Entries of one batch
// share a timestamp and keep their insertion order.
func (s *InMemoryStore) ListAuditByIdentity(_ context.Context, id string) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.audit[id])
	slices.SortStableFunc(out, func(a, b models.AuditEntry) int {
		return b.ChangedAt.Compare(a.ChangedAt)
	})
	return out, nil
}

// Execute loads the identity under the store lock, runs validateFn and
// applyFn on a copy, and persists the resulting mutation before releasing
// the lock. Nothing is written when either callback fails.
func (s *InMemoryStore) Execute(
	_ context.Context,
	id string,
	validateFn func(*models.IdentityRecord) error,
	applyFn func(*models.IdentityRecord) (models.Mutation, error),
) (*models.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	current := stored.Clone()
	if err := validateFn(current); err != nil {
		return nil, err
	}
	m, err := applyFn(current)
	if err != nil {
		return nil, err
	}
	if m.IsEmpty() {
		return stored.Clone(), nil
	}
	if err := s.updateLocked(id, m); err != nil {
		return nil, err
	}
	s.appendLocked(m.Audit)
	return s.records[id].Clone(), nil
}

func (s *InMemoryStore) Search(_ context.Context, f models.SearchFilter) ([]*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.IdentityRecord
	for _, rec := range s.records {
		if matches(rec, f) {
			out = append(out, rec.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.IdentityRecord) int {
		return cmp.Or(
			cmp.Compare(a.FirstName, b.FirstName),
			cmp.Compare(a.LastName, b.LastName),
			cmp.Compare(a.ID, b.ID),
		)
	})
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(rec *models.IdentityRecord, f models.SearchFilter) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(rec.FirstName), q) &&
			!strings.Contains(strings.ToLower(rec.LastName), q) &&
			!strings.Contains(strings.ToLower(rec.Email), q) {
			return false
		}
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Year != "" && rec.Student.EntryYear != f.Year && rec.Student.HighSchoolDiplomaYear != f.Year {
		return false
	}
	if d := strings.ToLower(strings.TrimSpace(f.Department)); d != "" {
		if !strings.Contains(strings.ToLower(rec.Student.FacultyDepartment), d) &&
			!strings.Contains(strings.ToLower(rec.Faculty.PrimaryDepartment), d) &&
			!strings.Contains(strings.ToLower(rec.Staff.AssignedDepartment), d) {
			return false
		}
	}
	return true
}

// Delete removes the identity and its audit trail.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return notFound(id)
	}
	delete(s.emails, strings.ToLower(rec.Email))
	delete(s.audit, id)
	delete(s.records, id)
	return nil
}
