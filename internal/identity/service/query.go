package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"campusid/internal/identity/models"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/sentinel"
)

// Get returns an identity with its audit trail, newest first.
func (s *Service) Get(ctx context.Context, id string) (details *models.IdentityDetails, err error) {
	ctx, finish := s.operation(ctx, "get", identityAttr(id))
	defer func() { finish(err) }()

	var (
		rec   *models.IdentityRecord
		audit []models.AuditEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = s.store.FindByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		audit, err = s.store.ListAuditByIdentity(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, lookupError(err, "failed to load identity")
	}
	return &models.IdentityDetails{Record: rec, Audit: audit}, nil
}

// ListAudit returns the audit trail of an existing identity, newest first.
func (s *Service) ListAudit(ctx context.Context, id string) (entries []models.AuditEntry, err error) {
	ctx, finish := s.operation(ctx, "list_audit", identityAttr(id))
	defer func() { finish(err) }()

	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, lookupError(err, "failed to load identity")
	}
	entries, err = s.store.ListAuditByIdentity(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return entries, nil
}

// Search lists identities matching f, ordered by name.
func (s *Service) Search(ctx context.Context, f models.SearchFilter) (records []*models.IdentityRecord, err error) {
	ctx, finish := s.operation(ctx, "search")
	defer func() { finish(err) }()

	if f.Category != "" && !f.Category.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown category")
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status")
	}
	if f.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "limit must not be negative")
	}

	records, err = s.store.Search(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search identities")
	}
	return records, nil
}

// Delete removes an identity and its audit trail regardless of status.
// It is an administrative operation outside the lifecycle.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := s.operation(ctx, "delete", identityAttr(id))
	defer func() { finish(err) }()

	if err := s.store.Delete(ctx, id); err != nil {
		return lookupError(err, "failed to delete identity")
	}
	s.logAudit(ctx, "identity_deleted", "identity_id", id)
	return nil
}

func lookupError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "identity not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
