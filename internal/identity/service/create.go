package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusid/internal/identity/allocator"
	"campusid/internal/identity/models"
	"campusid/internal/identity/store"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/sentinel"
	"campusid/pkg/requestcontext"
)

// storeLookups adapts Store to the validation engine's lookups.
type storeLookups struct {
	store Store
}

func (l storeLookups) CountByNameDobSubCategory(ctx context.Context, first, last, dob string, sub models.SubCategory) (int, error) {
	return l.store.CountByNameDobSubCategory(ctx, first, last, dob, sub)
}

func (l storeLookups) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := l.store.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func allocationLockKey(sub models.SubCategory) string {
	return "identity:alloc:" + string(sub)
}

// Create validates p, allocates an identifier and stores a Pending identity.
// A confirmation is sent afterwards; its failure never undoes the create.
func (s *Service) Create(ctx context.Context, p models.Profile) (rec *models.IdentityRecord, err error) {
	ctx, finish := s.operation(ctx, "create", subCategoryAttr(string(p.SubCategory)))
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	p.Normalize()

	rec, err = s.register(ctx, p, now)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "identity_created",
		"identity_id", rec.ID,
		"sub_category", string(rec.SubCategory),
	)
	s.metrics.IncrementCreated(string(rec.SubCategory))
	s.notifyCreated(ctx, rec)
	return rec, nil
}

// register validates and stores p under the sub-category lock. The
// duplicate-identity key includes the sub-category, so the check and the
// insert it guards see the same rows.
func (s *Service) register(ctx context.Context, p models.Profile, now time.Time) (*models.IdentityRecord, error) {
	unlock, err := s.locker.Lock(ctx, allocationLockKey(p.SubCategory))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identifier allocation lock unavailable")
	}
	defer unlock()

	problems, err := s.validator.Validate(ctx, &p, storeLookups{s.store}, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate identity")
	}
	if len(problems) > 0 {
		return nil, s.rejectProblems(ctx, problems)
	}
	return s.allocateAndInsert(ctx, p, now)
}

func (s *Service) rejectProblems(ctx context.Context, problems models.Problems) error {
	for _, p := range problems {
		s.metrics.IncrementValidationRejected(string(p.Rule))
	}
	s.logger.InfoContext(ctx, "identity rejected by validation",
		"request_id", requestcontext.RequestID(ctx),
		"problems", problems.Messages(),
	)
	return dErrors.Wrap(problems.Err(), dErrors.CodeValidation, "identity failed validation")
}

// allocateAndInsert runs count, allocate and insert; the caller holds the
// sub-category lock. An id collision means either a writer outside the lock
// got there first (the count moved, so retry) or an id beyond the count is
// still taken after a delete (the count did not move, so probe the next id).
func (s *Service) allocateAndInsert(ctx context.Context, p models.Profile, now time.Time) (*models.IdentityRecord, error) {
	var (
		attempts  int
		skip      int
		lastCount = -1
	)
	for probes := 0; probes < maxGapProbes; probes++ {
		count, err := s.store.CountBySubCategory(ctx, p.SubCategory)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count identities")
		}
		if count != lastCount {
			attempts++
			if attempts > s.maxAttempts {
				break
			}
			lastCount = count
			skip = 0
		}

		alloc := s.allocator.Allocate(p.SubCategory, count+skip, now)
		s.observeAllocation(ctx, p.SubCategory, alloc)

		rec, err := models.NewIdentityRecord(alloc.ID, p, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build identity")
		}

		err = s.store.Insert(ctx, rec)
		if err == nil {
			return rec, nil
		}

		var dup *store.DuplicateKeyError
		if !errors.As(err, &dup) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store identity")
		}
		if dup.Key == store.KeyEmail {
			var problems models.Problems
			problems.Add(models.FieldEmail, models.RuleDuplicateEmail, "Email already exists")
			return nil, s.rejectProblems(ctx, problems)
		}

		skip++
		s.metrics.IncrementAllocationRetry(string(p.SubCategory))
		s.logger.WarnContext(ctx, "identifier already taken, retrying allocation",
			"identity_id", alloc.ID,
			"sub_category", string(p.SubCategory),
			"attempt", attempts,
		)
	}

	raceErr := &models.AllocationRaceError{SubCategory: p.SubCategory, Attempts: min(attempts, s.maxAttempts)}
	s.logger.ErrorContext(ctx, "identifier allocation exhausted",
		"sub_category", string(p.SubCategory),
		"attempts", raceErr.Attempts,
	)
	return nil, dErrors.Wrap(raceErr, dErrors.CodeUnavailable, "identifier allocation contended, retry the request")
}

func (s *Service) observeAllocation(ctx context.Context, sub models.SubCategory, alloc allocator.Allocation) {
	if alloc.Fallback {
		s.metrics.IncrementFallback()
		s.logger.WarnContext(ctx, "sub-category not in catalog, using fallback identifier",
			"sub_category", string(sub),
			"identity_id", alloc.ID,
		)
	}
	if alloc.OverRange {
		s.metrics.IncrementOverRange(string(sub))
		s.logger.WarnContext(ctx, "identifier allocated past nominal range end",
			"sub_category", string(sub),
			"identity_id", alloc.ID,
			"sequence", alloc.Sequence,
		)
	}
}

func (s *Service) notifyCreated(ctx context.Context, rec *models.IdentityRecord) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyIdentityCreated(nctx, rec.Email, rec.ID); err != nil {
		s.metrics.IncrementNotifyFailure("identity_created")
		s.logger.WarnContext(ctx, "identity created notification failed",
			"identity_id", rec.ID,
			"error", fmt.Sprint(err),
		)
	}
}
