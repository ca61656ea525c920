package models

import (
	"fmt"
	"strings"
	"time"
)

// Rule names the validation rule a problem violates.
type Rule string

const (
	RuleRequired          Rule = "required"
	RuleDuplicateIdentity Rule = "duplicate_identity"
	RuleMinLength         Rule = "min_length"
	RuleGroupRequired     Rule = "group_required"
	RuleEmailFormat       Rule = "email_format"
	RuleDuplicateEmail    Rule = "duplicate_email"
	RulePhoneDigits       Rule = "phone_digits"
	RuleDateFormat        Rule = "date_format"
	RuleFutureDate        Rule = "future_date"
	RuleMinimumAge        Rule = "minimum_age"
	RuleInvalidCategory   Rule = "invalid_category"
	RuleCategoryMismatch  Rule = "category_mismatch"
	RuleNotEditable       Rule = "not_editable"
	RuleInvalidStatus     Rule = "invalid_status"
)

// Problem is one violated rule.
type Problem struct {
	Field   Field  `json:"field"`
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// Problems accumulates every violated rule of one evaluation.
type Problems []Problem

// Add appends a problem.
func (p *Problems) Add(field Field, rule Rule, msg string) {
	*p = append(*p, Problem{Field: field, Rule: rule, Message: msg})
}

// Messages returns the human-readable messages in evaluation order.
func (p Problems) Messages() []string {
	out := make([]string, len(p))
	for i, pr := range p {
		out[i] = pr.Message
	}
	return out
}

// HasRule reports whether any problem violates rule.
func (p Problems) HasRule(rule Rule) bool {
	for _, pr := range p {
		if pr.Rule == rule {
			return true
		}
	}
	return false
}

// Err returns nil when empty, otherwise a *ValidationError.
func (p Problems) Err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}

// ValidationError reports every problem found in a create or edit request.
type ValidationError struct {
	Problems Problems
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems.Messages(), "; ")
}

// ProblemDetails exposes the problems to the HTTP error writer.
func (e *ValidationError) ProblemDetails() any {
	return e.Problems
}

// InvalidTransitionError rejects a status change. Required is non-zero only
// for a time-gated transition attempted too early.
type InvalidTransitionError struct {
	From     Status
	To       Status
	Elapsed  time.Duration
	Required time.Duration
}

func (e *InvalidTransitionError) Error() string {
	if e.Required > 0 {
		years := float64(int64(e.Elapsed/(24*time.Hour))) / 365
		return fmt.Sprintf("Cannot transition %s → %s: %s status requires %d years before archiving (current: %.1f years)",
			e.From, e.To, e.From, int64(e.Required/(365*24*time.Hour)), years)
	}
	return fmt.Sprintf("Invalid status transition: %s → %s is not allowed", e.From, e.To)
}

// ArchivedImmutableError rejects any edit of an Archived identity.
type ArchivedImmutableError struct {
	ID string
}

func (e *ArchivedImmutableError) Error() string {
	return fmt.Sprintf("identity %s is archived and cannot be modified", e.ID)
}

// AllocationRaceError means concurrent creates kept claiming the same
// identifier. The create can be retried.
type AllocationRaceError struct {
	SubCategory SubCategory
	Attempts    int
}

func (e *AllocationRaceError) Error() string {
	return fmt.Sprintf("could not allocate an identifier for %s after %d attempts", e.SubCategory, e.Attempts)
}

// Retryable is always true.
func (e *AllocationRaceError) Retryable() bool {
	return true
}
