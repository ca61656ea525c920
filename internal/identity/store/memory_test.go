package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"campusid/internal/identity/models"
	"campusid/pkg/platform/sentinel"
)

// Memory store tests pin the error contract and Execute's all-or-nothing
// write, which the service relies on for edit atomicity.
type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newRecord(id, email string) *models.IdentityRecord {
	rec, err := models.NewIdentityRecord(id, models.Profile{
		Category:    models.CategoryStudent,
		SubCategory: models.SubUndergraduate,
		FirstName:   "Amina",
		LastName:    "Benali",
		DateOfBirth: "2003-05-10",
		Email:       email,
		Student:     models.StudentDetails{Major: "Math", EntryYear: "2024", FacultyDepartment: "Sciences"},
	}, s.now)
	s.Require().NoError(err)
	return rec
}

func (s *InMemoryStoreSuite) TestInsert() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newRecord("STU202400001", "a@univ.dz")))

	s.Run("duplicate id", func() {
		err := s.store.Insert(ctx, s.newRecord("STU202400001", "b@univ.dz"))
		var dup *DuplicateKeyError
		s.Require().ErrorAs(err, &dup)
		s.Equal(KeyID, dup.Key)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("duplicate email in another case", func() {
		rec := s.newRecord("STU202400002", "a@univ.dz")
		rec.Email = "A@UNIV.DZ"
		err := s.store.Insert(ctx, rec)
		var dup *DuplicateKeyError
		s.Require().ErrorAs(err, &dup)
		s.Equal(KeyEmail, dup.Key)
	})

	s.Run("stored copy is isolated from the caller", func() {
		rec := s.newRecord("STU202400003", "c@univ.dz")
		s.Require().NoError(s.store.Insert(ctx, rec))
		rec.FirstName = "Changed"

		got, err := s.store.FindByID(ctx, "STU202400003")
		s.Require().NoError(err)
		s.Equal("Amina", got.FirstName)
	})
}

func (s *InMemoryStoreSuite) TestLookups() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newRecord("STU202400001", "a@univ.dz")))

	got, err := s.store.FindByEmail(ctx, " A@Univ.DZ ")
	s.Require().NoError(err)
	s.Equal("STU202400001", got.ID)

	_, err = s.store.FindByID(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByEmail(ctx, "missing@univ.dz")
	s.ErrorIs(err, sentinel.ErrNotFound)

	n, err := s.store.CountBySubCategory(ctx, models.SubUndergraduate)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.store.CountBySubCategory(ctx, models.SubAlumni)
	s.Require().NoError(err)
	s.Zero(n)

	n, err = s.store.CountByNameDobSubCategory(ctx, "amina", "benali", "2003-05-10", models.SubUndergraduate)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.store.CountByNameDobSubCategory(ctx, "amina", "benali", "2003-05-10", models.SubPhDCandidates)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *InMemoryStoreSuite) TestExecute() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newRecord("STU202400001", "a@univ.dz")))
	later := s.now.Add(time.Hour)

	s.Run("persists values, status time and audit together", func() {
		got, err := s.store.Execute(ctx, "STU202400001",
			func(*models.IdentityRecord) error { return nil },
			func(r *models.IdentityRecord) (models.Mutation, error) {
				return models.Mutation{
					Values:          models.FieldValues{models.FieldStatus: "Active"},
					StatusChangedAt: later,
					Audit: []models.AuditEntry{{
						IdentityID: r.ID, ChangedAt: later, Field: models.FieldStatus,
						OldValue: "Pending", NewValue: "Active",
					}},
				}, nil
			},
		)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, got.Status)
		s.Equal(later, got.StatusChangedAt)

		audit, err := s.store.ListAuditByIdentity(ctx, "STU202400001")
		s.Require().NoError(err)
		s.Len(audit, 1)
	})

	s.Run("writes nothing when validation fails", func() {
		boom := errors.New("rejected")
		_, err := s.store.Execute(ctx, "STU202400001",
			func(*models.IdentityRecord) error { return boom },
			func(*models.IdentityRecord) (models.Mutation, error) {
				s.Fail("apply must not run")
				return models.Mutation{}, nil
			},
		)
		s.ErrorIs(err, boom)
	})

	s.Run("writes nothing when apply fails even if it mutated its copy", func() {
		boom := errors.New("apply failed")
		_, err := s.store.Execute(ctx, "STU202400001",
			func(*models.IdentityRecord) error { return nil },
			func(r *models.IdentityRecord) (models.Mutation, error) {
				r.FirstName = "Mutated"
				return models.Mutation{}, boom
			},
		)
		s.ErrorIs(err, boom)

		got, err := s.store.FindByID(ctx, "STU202400001")
		s.Require().NoError(err)
		s.Equal("Amina", got.FirstName)
	})

	s.Run("missing identity", func() {
		_, err := s.store.Execute(ctx, "missing",
			func(*models.IdentityRecord) error { return nil },
			func(*models.IdentityRecord) (models.Mutation, error) { return models.Mutation{}, nil },
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestExecuteSerializesPerRecord() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newRecord("STU202400001", "a@univ.dz")))

	const goroutines = 50
	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, "STU202400001",
				func(r *models.IdentityRecord) error {
					if r.Status != models.StatusPending {
						return errors.New("already activated")
					}
					return nil
				},
				func(r *models.IdentityRecord) (models.Mutation, error) {
					return models.Mutation{
						Values: models.FieldValues{models.FieldStatus: "Active", models.FieldFirstName: fmt.Sprintf("N%d", i)},
						Audit:  []models.AuditEntry{{IdentityID: r.ID, Field: models.FieldStatus, NewValue: "Active"}},
					}, nil
				},
			)
			if err == nil {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), applied.Load())
	audit, err := s.store.ListAuditByIdentity(ctx, "STU202400001")
	s.Require().NoError(err)
	s.Len(audit, 1)
}

func (s *InMemoryStoreSuite) TestAuditOrder() {
	ctx := context.Background()
	s.Require().NoError(s.store.AppendAuditEntries(ctx, []models.AuditEntry{
		{IdentityID: "X", ChangedAt: s.now, Field: models.FieldFirstName},
		{IdentityID: "X", ChangedAt: s.now, Field: models.FieldLastName},
		{IdentityID: "X", ChangedAt: s.now.Add(time.Minute), Field: models.FieldStatus},
	}))

	audit, err := s.store.ListAuditByIdentity(ctx, "X")
	s.Require().NoError(err)
	s.Require().Len(audit, 3)
	s.Equal(models.FieldStatus, audit[0].Field)
	s.Equal(models.FieldFirstName, audit[1].Field)
	s.Equal(models.FieldLastName, audit[2].Field)
}

func (s *InMemoryStoreSuite) TestSearch() {
	ctx := context.Background()
	a := s.newRecord("STU202400001", "zineb@univ.dz")
	a.FirstName = "Zineb"
	b := s.newRecord("STU202400002", "adam@univ.dz")
	b.FirstName = "Adam"
	b.Student.FacultyDepartment = "Medicine"
	b.Status = models.StatusActive
	for _, r := range []*models.IdentityRecord{a, b} {
		s.Require().NoError(s.store.Insert(ctx, r))
	}

	all, err := s.store.Search(ctx, models.SearchFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("Adam", all[0].FirstName)

	got, err := s.store.Search(ctx, models.SearchFilter{Query: "ZIN"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("STU202400001", got[0].ID)

	got, err = s.store.Search(ctx, models.SearchFilter{Status: models.StatusActive, Department: "medic"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("STU202400002", got[0].ID)

	got, err = s.store.Search(ctx, models.SearchFilter{Category: models.CategoryFaculty})
	s.Require().NoError(err)
	s.Empty(got)

	got, err = s.store.Search(ctx, models.SearchFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *InMemoryStoreSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newRecord("STU202400001", "a@univ.dz")))
	s.Require().NoError(s.store.AppendAuditEntries(ctx, []models.AuditEntry{{IdentityID: "STU202400001"}}))

	s.Require().NoError(s.store.Delete(ctx, "STU202400001"))
	s.ErrorIs(s.store.Delete(ctx, "STU202400001"), sentinel.ErrNotFound)

	audit, err := s.store.ListAuditByIdentity(ctx, "STU202400001")
	s.Require().NoError(err)
	s.Empty(audit)

	// Email is free again.
	s.NoError(s.store.Insert(ctx, s.newRecord("STU202400009", "a@univ.dz")))
}
