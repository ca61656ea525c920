package models

import (
	"strings"
	"time"

	dErrors "campusid/pkg/domain-errors"
)

// DateLayout is the stored form of calendar dates.
const DateLayout = "2006-01-02"

// inputDateLayout also accepts unpadded month and day, as in 2000-1-5.
const inputDateLayout = "2006-1-2"

// ParseDate reads a YYYY-MM-DD date, with or without zero padding, in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(inputDateLayout, s, loc)
}

// StudentDetails is the extension group of Student sub-categories.
type StudentDetails struct {
	HighSchoolDiplomaType string
	HighSchoolDiplomaYear string
	HighSchoolHonors      string
	Major                 string
	EntryYear             string
	Status                string
	FacultyDepartment     string
	Group                 string
	ScholarshipStatus     string
}

// FacultyDetails is the extension group of Faculty sub-categories.
type FacultyDetails struct {
	Rank                  string
	EmploymentCategory    string
	AppointmentStartDate  string
	PrimaryDepartment     string
	SecondaryDepartments  string
	OfficeBuilding        string
	OfficeFloor           string
	OfficeRoom            string
	PhDInstitution        string
	ResearchAreas         string
	HabilitationSupervise string
	ContractType          string
	ContractStartDate     string
	ContractEndDate       string
	TeachingHours         string
}

// StaffDetails is the extension group of Staff sub-categories.
type StaffDetails struct {
	AssignedDepartment string
	JobTitle           string
	Grade              string
	EntryDate          string
}

// ExternalDetails is the extension group of External sub-categories.
type ExternalDetails struct {
	Organization  string
	ContactPerson string
}

// Profile holds everything a caller supplies about a person. A create request
// is a Profile; a stored identity embeds one. Only the extension group matching
// Category is meaningful; the others stay zero.
type Profile struct {
	Category    Category
	SubCategory SubCategory

	FirstName    string
	LastName     string
	DateOfBirth  string // YYYY-MM-DD
	PlaceOfBirth string
	Nationality  string
	Gender       string
	Email        string
	Phone        string

	Student  StudentDetails
	Faculty  FacultyDetails
	Staff    StaffDetails
	External ExternalDetails
}

// Normalize trims person fields, pads the birth date, lower-cases the email
// and drops extension groups that do not belong to the profile's category.
func (p *Profile) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
	if d, err := ParseDate(p.DateOfBirth, time.UTC); err == nil {
		p.DateOfBirth = d.Format(DateLayout)
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.Category = Category(strings.TrimSpace(string(p.Category)))
	p.SubCategory = SubCategory(strings.TrimSpace(string(p.SubCategory)))

	if p.Category != CategoryStudent {
		p.Student = StudentDetails{}
	}
	if p.Category != CategoryFaculty {
		p.Faculty = FacultyDetails{}
	}
	if p.Category != CategoryStaff {
		p.Staff = StaffDetails{}
	}
	if p.Category != CategoryExternal {
		p.External = ExternalDetails{}
	}
}

// IdentityRecord is a persisted identity.
type IdentityRecord struct {
	ID string
	Profile

	Status          Status
	StatusChangedAt time.Time
	CreatedAt       time.Time
}

// NewIdentityRecord creates a Pending identity from a validated profile.
func NewIdentityRecord(id string, p Profile, now time.Time) (*IdentityRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity id cannot be empty")
	}
	if !p.Category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity category is invalid")
	}
	if p.SubCategory == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity sub-category cannot be empty")
	}
	if p.Email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity email cannot be empty")
	}
	if now.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "created time cannot be zero")
	}

	p.Normalize()
	if p.Category == CategoryStudent {
		p.Student.Status = string(StatusPending)
	}

	return &IdentityRecord{
		ID:              id,
		Profile:         p,
		Status:          StatusPending,
		StatusChangedAt: now,
		CreatedAt:       now,
	}, nil
}

// IsArchived reports whether the record is frozen.
func (r *IdentityRecord) IsArchived() bool {
	return r.Status == StatusArchived
}

// Clone returns an independent copy.
func (r *IdentityRecord) Clone() *IdentityRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
