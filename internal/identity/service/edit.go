package service

import (
	"context"
	"errors"
	"strings"

	"campusid/internal/identity/auditlog"
	"campusid/internal/identity/models"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/sentinel"
	"campusid/pkg/requestcontext"
)

// Edit applies the submitted fields to an identity. Read, transition check,
// update and audit append run under the store's per-record lock, so two edits
// of the same identity never interleave.
func (s *Service) Edit(ctx context.Context, req models.EditRequest) (res *models.EditResult, err error) {
	ctx, finish := s.operation(ctx, "edit", identityAttr(req.ID))
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	values := trimValues(req.Values)

	var (
		changes    []models.AuditEntry
		fromStatus models.Status
	)
	rec, err := s.store.Execute(ctx, req.ID,
		func(current *models.IdentityRecord) error {
			if err := s.machine.EnsureMutable(current); err != nil {
				return err
			}
			if err := s.validator.ValidateEdit(current, values).Err(); err != nil {
				return err
			}
			if to, ok := values[models.FieldStatus]; ok {
				return s.machine.CanTransition(current.Status, models.Status(to), current.StatusChangedAt, now)
			}
			return nil
		},
		func(current *models.IdentityRecord) (models.Mutation, error) {
			diff := auditlog.Changes(current, values)
			if len(diff) == 0 {
				return models.Mutation{}, nil
			}
			before := current.Clone()
			current.Apply(diff)

			m := models.Mutation{
				Values: diff,
				Audit:  auditlog.Diff(before, current, s.catalog.EditableFields(current.SubCategory), now),
			}
			if current.Status != before.Status {
				m.StatusChangedAt = now
				current.StatusChangedAt = now
				fromStatus = before.Status
			}
			changes = m.Audit
			return m, nil
		},
	)
	if err != nil {
		return nil, s.editError(ctx, req.ID, values, err)
	}

	if fromStatus != "" {
		s.metrics.IncrementTransition(string(fromStatus), string(rec.Status))
	}
	if len(changes) > 0 {
		s.metrics.AddAuditEntries(len(changes))
		fields := make([]string, len(changes))
		for i, c := range changes {
			fields[i] = string(c.Field)
		}
		s.logAudit(ctx, "identity_updated",
			"identity_id", rec.ID,
			"fields", fields,
		)
	}
	return &models.EditResult{Record: rec, Changes: changes}, nil
}

func (s *Service) editError(ctx context.Context, id string, values models.FieldValues, err error) error {
	var (
		validationErr *models.ValidationError
		transitionErr *models.InvalidTransitionError
		archivedErr   *models.ArchivedImmutableError
	)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "identity not found")
	case errors.As(err, &validationErr):
		return s.rejectProblems(ctx, validationErr.Problems)
	case errors.As(err, &transitionErr):
		s.metrics.IncrementTransitionRejected(string(transitionErr.From), string(transitionErr.To))
		s.logger.InfoContext(ctx, "status transition rejected",
			"identity_id", id,
			"from", string(transitionErr.From),
			"to", string(transitionErr.To),
		)
		return dErrors.Wrap(err, dErrors.CodeConflict, transitionErr.Error())
	case errors.As(err, &archivedErr):
		if to, ok := values[models.FieldStatus]; ok {
			s.metrics.IncrementTransitionRejected(string(models.StatusArchived), statusLabel(to))
		}
		return dErrors.Wrap(err, dErrors.CodeConflict, archivedErr.Error())
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
}

// statusLabel keeps metric labels to the known statuses. Values on archived
// records are never validated.
func statusLabel(v string) string {
	if models.Status(v).IsValid() {
		return v
	}
	return invalidStatusLabel
}

func trimValues(values models.FieldValues) models.FieldValues {
	out := make(models.FieldValues, len(values))
	for f, v := range values {
		out[f] = strings.TrimSpace(v)
	}
	return out
}
