// Package validation checks identity profiles before they are stored and
// edit requests before they are applied.
//
// Every rule runs on every call; problems accumulate so the caller can report
// all of them at once. Bad input never yields an error: the error return is
// reserved for lookup failures.
package validation

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"campusid/internal/identity/models"
	"campusid/pkg/email"
)

const (
	minAgeYears = 16
	daysPerYear = 365.25
	minNameLen  = 2
)

// Lookups are the store queries the uniqueness rules need.
type Lookups interface {
	CountByNameDobSubCategory(ctx context.Context, firstName, lastName, dob string, sub models.SubCategory) (int, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Engine validates profiles against a sub-category catalog.
type Engine struct {
	catalog *models.Catalog
}

// New creates an engine.
func New(catalog *models.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

type requiredField struct {
	field models.Field
	label string
	value func(*models.Profile) string
}

var profileRequired = []requiredField{
	{models.FieldFirstName, "first name", func(p *models.Profile) string { return p.FirstName }},
	{models.FieldLastName, "last name", func(p *models.Profile) string { return p.LastName }},
	{models.FieldEmail, "email", func(p *models.Profile) string { return p.Email }},
	{models.FieldDateOfBirth, "dob", func(p *models.Profile) string { return p.DateOfBirth }},
	{models.FieldCategory, "category", func(p *models.Profile) string { return string(p.Category) }},
	{models.FieldSubCategory, "sub category", func(p *models.Profile) string { return string(p.SubCategory) }},
}

type groupRule struct {
	field   models.Field
	message string
}

func groupRules(cat models.Category) []groupRule {
	switch cat {
	case models.CategoryStudent:
		return []groupRule{
			{models.FieldStudentMajor, "Major/Program is required for students"},
			{models.FieldStudentEntryYear, "Entry year is required for students"},
			{models.FieldStudentFacultyDept, "Faculty & Department is required for students"},
		}
	case models.CategoryFaculty:
		return []groupRule{
			{models.FieldFacultyRank, "Rank is required for faculty"},
			{models.FieldFacultyPrimaryDept, "Primary Department is required for faculty"},
			{models.FieldFacultyAppointmentStart, "Appointment Start Date is required for faculty"},
		}
	case models.CategoryStaff:
		return []groupRule{
			{models.FieldStaffDepartment, "Assigned Department/Service is required for staff"},
			{models.FieldStaffJobTitle, "Job Title is required for staff"},
			{models.FieldStaffEntryDate, "Date of Entry to University is required for staff"},
		}
	case models.CategoryExternal:
		return []groupRule{
			{models.FieldExternalOrganization, "Organization is required for external members"},
		}
	}
	return nil
}

// Validate checks p as a create request evaluated at now.
func (e *Engine) Validate(ctx context.Context, p *models.Profile, lookups Lookups, now time.Time) (models.Problems, error) {
	var problems models.Problems

	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	addr := email.Normalize(p.Email)

	dupCount, emailTaken, err := e.lookup(ctx, p, lookups, first, last, addr)
	if err != nil {
		return nil, err
	}

	for _, rf := range profileRequired {
		if strings.TrimSpace(rf.value(p)) == "" {
			problems.Add(rf.field, models.RuleRequired, rf.label+" cannot be empty")
		}
	}

	if dupCount > 0 {
		problems.Add(models.FieldSubCategory, models.RuleDuplicateIdentity,
			"An identity with the same name, date of birth, and sub-category already exists")
	}

	checkNameLength(&problems, first, last)

	if p.Category != "" && !p.Category.IsValid() {
		problems.Add(models.FieldCategory, models.RuleInvalidCategory,
			fmt.Sprintf("Category %q is not recognized", p.Category))
	}

	// Group requirements follow the sub-category; the submitted category must agree.
	if info, ok := e.catalog.Lookup(p.SubCategory); ok {
		if p.Category.IsValid() && info.Category != p.Category {
			problems.Add(models.FieldSubCategory, models.RuleCategoryMismatch,
				fmt.Sprintf("Sub-category %s does not belong to category %s", p.SubCategory, p.Category))
		}
		for _, gr := range groupRules(info.Category) {
			if v, _ := p.Value(gr.field); strings.TrimSpace(v) == "" {
				problems.Add(gr.field, models.RuleGroupRequired, gr.message)
			}
		}
	}

	if addr != "" && !email.IsValid(addr) {
		problems.Add(models.FieldEmail, models.RuleEmailFormat, "Invalid email format")
	}
	if emailTaken {
		problems.Add(models.FieldEmail, models.RuleDuplicateEmail, "Email already exists")
	}

	if phone := strings.TrimSpace(p.Phone); phone != "" && !isDigits(phone) {
		problems.Add(models.FieldPhone, models.RulePhoneDigits, "Phone must contain only numbers")
	}

	checkBirthDate(&problems, strings.TrimSpace(p.DateOfBirth), now)

	return problems, nil
}

// lookup runs both uniqueness queries concurrently.
func (e *Engine) lookup(ctx context.Context, p *models.Profile, lookups Lookups, first, last, addr string) (int, bool, error) {
	var (
		dupCount   int
		emailTaken bool
	)
	g, gctx := errgroup.WithContext(ctx)

	dob := strings.TrimSpace(p.DateOfBirth)
	if first != "" && last != "" && dob != "" && p.SubCategory != "" {
		g.Go(func() error {
			n, err := lookups.CountByNameDobSubCategory(gctx, strings.ToLower(first), strings.ToLower(last), dob, p.SubCategory)
			if err != nil {
				return fmt.Errorf("count duplicate identities: %w", err)
			}
			dupCount = n
			return nil
		})
	}
	if addr != "" {
		g.Go(func() error {
			taken, err := lookups.EmailExists(gctx, addr)
			if err != nil {
				return fmt.Errorf("check email uniqueness: %w", err)
			}
			emailTaken = taken
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, false, err
	}
	return dupCount, emailTaken, nil
}

// ValidateEdit checks submitted edit values against the editable set of rec.
// It does not judge status transitions; that is the lifecycle machine's job.
func (e *Engine) ValidateEdit(rec *models.IdentityRecord, values models.FieldValues) models.Problems {
	var problems models.Problems
	editable := e.catalog.EditableFields(rec.SubCategory)

	for _, f := range sortedFields(values) {
		if !editable.Contains(f) {
			problems.Add(f, models.RuleNotEditable, fmt.Sprintf("Field %s cannot be edited", f))
		}
	}

	if v, ok := values[models.FieldStatus]; ok && !models.Status(v).IsValid() {
		problems.Add(models.FieldStatus, models.RuleInvalidStatus, fmt.Sprintf("Unknown status %q", v))
	}

	first, firstSet := values[models.FieldFirstName]
	last, lastSet := values[models.FieldLastName]
	if firstSet && strings.TrimSpace(first) == "" {
		problems.Add(models.FieldFirstName, models.RuleRequired, "first name cannot be empty")
	}
	if lastSet && strings.TrimSpace(last) == "" {
		problems.Add(models.FieldLastName, models.RuleRequired, "last name cannot be empty")
	}
	checkNameLength(&problems, strings.TrimSpace(first), strings.TrimSpace(last))

	return problems
}

func checkNameLength(problems *models.Problems, first, last string) {
	if first != "" && utf8.RuneCountInString(first) < minNameLen {
		problems.Add(models.FieldFirstName, models.RuleMinLength, "First name must be at least 2 characters")
	}
	if last != "" && utf8.RuneCountInString(last) < minNameLen {
		problems.Add(models.FieldLastName, models.RuleMinLength, "Last name must be at least 2 characters")
	}
}

func checkBirthDate(problems *models.Problems, dob string, now time.Time) {
	if dob == "" {
		return
	}
	born, err := models.ParseDate(dob, now.Location())
	if err != nil {
		problems.Add(models.FieldDateOfBirth, models.RuleDateFormat, "Invalid date format")
		return
	}
	if born.After(now) {
		problems.Add(models.FieldDateOfBirth, models.RuleFutureDate, "Birth date cannot be in the future")
	}
	if AgeYears(born, now) < minAgeYears {
		problems.Add(models.FieldDateOfBirth, models.RuleMinimumAge, "You must be at least 16 years old")
	}
}

// AgeYears is whole elapsed days divided by 365.25.
func AgeYears(born, now time.Time) float64 {
	days := now.Sub(born) / (24 * time.Hour)
	return float64(days) / daysPerYear
}

func sortedFields(values models.FieldValues) []models.Field {
	return slices.Sorted(maps.Keys(values))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
