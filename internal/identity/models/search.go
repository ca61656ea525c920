package models

const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 500
)

// SearchFilter narrows an identity listing. Zero values match everything.
type SearchFilter struct {
	// Query matches first name, last name or email, case-insensitively.
	Query    string
	Category Category
	Status   Status
	// Year matches a student's entry year or diploma year.
	Year string
	// Department matches a student's faculty, a faculty member's primary
	// department or a staff member's assigned department.
	Department string
	Limit      int
}

// EffectiveLimit clamps Limit to (0, MaxSearchLimit].
func (f SearchFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultSearchLimit
	case f.Limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return f.Limit
	}
}
