package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"campusid/internal/identity/models"
	"campusid/internal/platform/postgres"
	"campusid/pkg/platform/sentinel"
)

const (
	uniqueViolation     = "23505"
	constraintPrimary   = "identities_pkey"
	constraintEmailKey  = "identities_email_key"
	identitiesTable     = "identities"
	auditEntriesColumns = "id, identity_id, changed_at, field, old_value, new_value"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore persists identities in PostgreSQL. Every method joins the
// transaction carried on ctx, if any.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// textFields are the string columns after the fixed leading columns.
func textFields() models.FieldSet {
	return append(models.PersonFields(), models.AllExtensionFields()...)
}

func selectColumns() []string {
	cols := []string{"id", "category", "sub_category", "status", "status_changed_at", "created_at"}
	for _, f := range textFields() {
		cols = append(cols, string(f))
	}
	return cols
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.IdentityRecord, error) {
	var (
		rec       models.IdentityRecord
		category  string
		sub       string
		status    string
		textCols  = textFields()
		textVals  = make([]string, len(textCols))
		scanDests = []any{&rec.ID, &category, &sub, &status, &rec.StatusChangedAt, &rec.CreatedAt}
	)
	for i := range textVals {
		scanDests = append(scanDests, &textVals[i])
	}
	if err := row.Scan(scanDests...); err != nil {
		return nil, err
	}
	rec.Category = models.Category(category)
	rec.SubCategory = models.SubCategory(sub)
	rec.Status = models.Status(status)
	for i, f := range textCols {
		rec.SetValue(f, textVals[i])
	}
	return &rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *models.IdentityRecord) error {
	values := []any{
		rec.ID, string(rec.Category), string(rec.SubCategory), string(rec.Status),
		rec.StatusChangedAt, rec.CreatedAt,
	}
	for _, f := range textFields() {
		v, _ := rec.Value(f)
		values = append(values, v)
	}
	query, args, err := psql.Insert(identitiesTable).Columns(selectColumns()...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity: %w", err)
	}
	if _, err := postgres.Conn(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		if dup := duplicateKey(err, rec); dup != nil {
			return dup
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// duplicateKey maps a unique violation to the key it hit.
func duplicateKey(err error, rec *models.IdentityRecord) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintEmailKey:
		return &DuplicateKeyError{Key: KeyEmail, Value: rec.Email}
	case constraintPrimary:
		return &DuplicateKeyError{Key: KeyID, Value: rec.ID}
	default:
		return fmt.Errorf("unique violation on %s: %w", pgErr.ConstraintName, sentinel.ErrAlreadyUsed)
	}
}

func (s *PostgresStore) findOne(ctx context.Context, forUpdate bool, where sq.Sqlizer) (*models.IdentityRecord, error) {
	b := psql.Select(selectColumns()...).From(identitiesTable).Where(where)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity: %w", err)
	}
	return scanRecord(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.IdentityRecord, error) {
	rec, err := s.findOne(ctx, false, sq.Eq{"id": id})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("find identity by id: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.IdentityRecord, error) {
	rec, err := s.findOne(ctx, false, sq.Expr("lower(email) = lower(?)", strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity with email %q: %w", email, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CountBySubCategory(ctx context.Context, sub models.SubCategory) (int, error) {
	var n int
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities WHERE sub_category = $1`, string(sub)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count identities by sub-category: %w", err)
	}
	return n, nil
}

// CountByNameDobSubCategory expects first and last already lower-cased.
func (s *PostgresStore) CountByNameDobSubCategory(ctx context.Context, first, last, dob string, sub models.SubCategory) (int, error) {
	var n int
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM identities
		WHERE lower(first_name) = $1 AND lower(last_name) = $2 AND dob = $3 AND sub_category = $4
	`, first, last, dob, string(sub)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count duplicate identities: %w", err)
	}
	return n, nil
}

// UpdateFields writes m's values and status_changed_at. Only profile fields
// and status are accepted as columns.
func (s *PostgresStore) UpdateFields(ctx context.Context, id string, m models.Mutation) error {
	var (
		sets []string
		args []any
	)
	for _, f := range slices.Sorted(maps.Keys(m.Values)) {
		if f != models.FieldStatus && !models.IsProfileField(f) {
			return fmt.Errorf("update identity: unknown column %q", f)
		}
		args = append(args, m.Values[f])
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(string(f)), len(args)))
	}
	if !m.StatusChangedAt.IsZero() {
		args = append(args, m.StatusChangedAt)
		sets = append(sets, fmt.Sprintf("status_changed_at = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE identities SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update identity fields: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity fields: %w", err)
	}
	if rows == 0 {
		return notFound(id)
	}
	return nil
}

// AppendAuditEntries inserts the batch in one round trip with unnest.
func (s *PostgresStore) AppendAuditEntries(ctx context.Context, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var (
		ids        = make([]string, len(entries))
		identities = make([]string, len(entries))
		changedAt  = make([]string, len(entries))
		fields     = make([]string, len(entries))
		oldValues  = make([]string, len(entries))
		newValues  = make([]string, len(entries))
	)
	for i, e := range entries {
		ids[i] = e.ID.String()
		identities[i] = e.IdentityID
		changedAt[i] = e.ChangedAt.Format(time.RFC3339Nano)
		fields[i] = string(e.Field)
		oldValues[i] = e.OldValue
		newValues[i] = e.NewValue
	}

	query := `
		INSERT INTO audit_entries (` + auditEntriesColumns + `)
		SELECT * FROM unnest($1::uuid[], $2::text[], $3::timestamptz[], $4::text[], $5::text[], $6::text[])
	`
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx, query,
		pq.Array(ids), pq.Array(identities), pq.Array(changedAt),
		pq.Array(fields), pq.Array(oldValues), pq.Array(newValues),
	)
	if err != nil {
		return fmt.Errorf("append audit entries: %w", err)
	}
	return nil
}

// ListAuditByIdentity returns entries newest first; entries of one batch keep
// insertion order.
func (s *PostgresStore) ListAuditByIdentity(ctx context.Context, id string) ([]models.AuditEntry, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT `+auditEntriesColumns+`
		FROM audit_entries
		WHERE identity_id = $1
		ORDER BY changed_at DESC, seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e     models.AuditEntry
			field string
		)
		if err := rows.Scan(&e.ID, &e.IdentityID, &e.ChangedAt, &field, &e.OldValue, &e.NewValue); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Field = models.Field(field)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// Execute locks the identity row with SELECT ... FOR UPDATE, runs validateFn
// and applyFn, and writes the mutation in the same transaction.
func (s *PostgresStore) Execute(
	ctx context.Context,
	id string,
	validateFn func(*models.IdentityRecord) error,
	applyFn func(*models.IdentityRecord) (models.Mutation, error),
) (*models.IdentityRecord, error) {
	var result *models.IdentityRecord
	err := postgres.RunInTx(ctx, s.db, func(ctx context.Context) error {
		rec, err := s.findOne(ctx, true, sq.Eq{"id": id})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(id)
			}
			return fmt.Errorf("lock identity: %w", err)
		}
		if err := validateFn(rec); err != nil {
			return err
		}
		m, err := applyFn(rec.Clone())
		if err != nil {
			return err
		}
		if err := s.UpdateFields(ctx, id, m); err != nil {
			return err
		}
		if err := s.AppendAuditEntries(ctx, m.Audit); err != nil {
			return err
		}
		rec.Apply(m.Values)
		if !m.StatusChangedAt.IsZero() {
			rec.StatusChangedAt = m.StatusChangedAt
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Search(ctx context.Context, f models.SearchFilter) ([]*models.IdentityRecord, error) {
	b := psql.Select(selectColumns()...).From(identitiesTable).
		OrderBy("first_name", "last_name", "id").
		Limit(uint64(f.EffectiveLimit()))

	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		b = b.Where(sq.Or{
			sq.ILike{"first_name": like},
			sq.ILike{"last_name": like},
			sq.ILike{"email": like},
		})
	}
	if f.Category != "" {
		b = b.Where(sq.Eq{"category": string(f.Category)})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Year != "" {
		b = b.Where(sq.Or{
			sq.Eq{string(models.FieldStudentEntryYear): f.Year},
			sq.Eq{string(models.FieldStudentDiplomaYear): f.Year},
		})
	}
	if d := strings.TrimSpace(f.Department); d != "" {
		like := "%" + d + "%"
		b = b.Where(sq.Or{
			sq.ILike{string(models.FieldStudentFacultyDept): like},
			sq.ILike{string(models.FieldFacultyPrimaryDept): like},
			sq.ILike{string(models.FieldStaffDepartment): like},
		})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identity search: %w", err)
	}
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search identities: %w", err)
	}
	defer rows.Close()

	var out []*models.IdentityRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Delete removes the identity; its audit entries go with it via ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if rows == 0 {
		return notFound(id)
	}
	return nil
}
