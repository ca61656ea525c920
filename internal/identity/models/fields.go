package models

import "slices"

// Field is the wire and audit name of an identity attribute.
type Field string

const (
	FieldID           Field = "id"
	FieldCategory     Field = "category"
	FieldSubCategory  Field = "sub_category"
	FieldFirstName    Field = "first_name"
	FieldLastName     Field = "last_name"
	FieldDateOfBirth  Field = "dob"
	FieldPlaceOfBirth Field = "place_of_birth"
	FieldNationality  Field = "nationality"
	FieldGender       Field = "gender"
	FieldEmail        Field = "email"
	FieldPhone        Field = "phone"
	FieldStatus       Field = "status"

	FieldStudentDiplomaType      Field = "student_high_school_diploma_type"
	FieldStudentDiplomaYear      Field = "student_high_school_diploma_year"
	FieldStudentHonors           Field = "student_high_school_honors"
	FieldStudentMajor            Field = "student_major"
	FieldStudentEntryYear        Field = "student_entry_year"
	FieldStudentStatus           Field = "student_status"
	FieldStudentFacultyDept      Field = "student_faculty_department"
	FieldStudentGroup            Field = "student_group"
	FieldStudentScholarship      Field = "student_scholarship_status"
	FieldFacultyRank             Field = "faculty_rank"
	FieldFacultyEmployment       Field = "faculty_employment_category"
	FieldFacultyAppointmentStart Field = "faculty_appointment_start_date"
	FieldFacultyPrimaryDept      Field = "faculty_primary_department"
	FieldFacultySecondaryDepts   Field = "faculty_secondary_departments"
	FieldFacultyOfficeBuilding   Field = "faculty_office_building"
	FieldFacultyOfficeFloor      Field = "faculty_office_floor"
	FieldFacultyOfficeRoom       Field = "faculty_office_room"
	FieldFacultyPhDInstitution   Field = "faculty_phd_institution"
	FieldFacultyResearchAreas    Field = "faculty_research_areas"
	FieldFacultyHabilitation     Field = "faculty_habilitation_supervise"
	FieldFacultyContractType     Field = "faculty_contract_type"
	FieldFacultyContractStart    Field = "faculty_contract_start_date"
	FieldFacultyContractEnd      Field = "faculty_contract_end_date"
	FieldFacultyTeachingHours    Field = "faculty_teaching_hours"
	FieldStaffDepartment         Field = "staff_assigned_department"
	FieldStaffJobTitle           Field = "staff_job_title"
	FieldStaffGrade              Field = "staff_grade"
	FieldStaffEntryDate          Field = "staff_entry_date"
	FieldExternalOrganization    Field = "external_organization"
	FieldExternalContactPerson   Field = "external_contact_person"
)

// FieldSet is an ordered list of fields.
type FieldSet []Field

// Contains reports whether f is in the set.
func (fs FieldSet) Contains(f Field) bool {
	return slices.Contains(fs, f)
}

type accessor struct {
	get func(*Profile) *string
}

// profileFields maps every string-valued profile field to its storage slot.
// Read-only after initialization.
var profileFields = map[Field]accessor{
	FieldFirstName:    {func(p *Profile) *string { return &p.FirstName }},
	FieldLastName:     {func(p *Profile) *string { return &p.LastName }},
	FieldDateOfBirth:  {func(p *Profile) *string { return &p.DateOfBirth }},
	FieldPlaceOfBirth: {func(p *Profile) *string { return &p.PlaceOfBirth }},
	FieldNationality:  {func(p *Profile) *string { return &p.Nationality }},
	FieldGender:       {func(p *Profile) *string { return &p.Gender }},
	FieldEmail:        {func(p *Profile) *string { return &p.Email }},
	FieldPhone:        {func(p *Profile) *string { return &p.Phone }},

	FieldStudentDiplomaType: {func(p *Profile) *string { return &p.Student.HighSchoolDiplomaType }},
	FieldStudentDiplomaYear: {func(p *Profile) *string { return &p.Student.HighSchoolDiplomaYear }},
	FieldStudentHonors:      {func(p *Profile) *string { return &p.Student.HighSchoolHonors }},
	FieldStudentMajor:       {func(p *Profile) *string { return &p.Student.Major }},
	FieldStudentEntryYear:   {func(p *Profile) *string { return &p.Student.EntryYear }},
	FieldStudentStatus:      {func(p *Profile) *string { return &p.Student.Status }},
	FieldStudentFacultyDept: {func(p *Profile) *string { return &p.Student.FacultyDepartment }},
	FieldStudentGroup:       {func(p *Profile) *string { return &p.Student.Group }},
	FieldStudentScholarship: {func(p *Profile) *string { return &p.Student.ScholarshipStatus }},

	FieldFacultyRank:             {func(p *Profile) *string { return &p.Faculty.Rank }},
	FieldFacultyEmployment:       {func(p *Profile) *string { return &p.Faculty.EmploymentCategory }},
	FieldFacultyAppointmentStart: {func(p *Profile) *string { return &p.Faculty.AppointmentStartDate }},
	FieldFacultyPrimaryDept:      {func(p *Profile) *string { return &p.Faculty.PrimaryDepartment }},
	FieldFacultySecondaryDepts:   {func(p *Profile) *string { return &p.Faculty.SecondaryDepartments }},
	FieldFacultyOfficeBuilding:   {func(p *Profile) *string { return &p.Faculty.OfficeBuilding }},
	FieldFacultyOfficeFloor:      {func(p *Profile) *string { return &p.Faculty.OfficeFloor }},
	FieldFacultyOfficeRoom:       {func(p *Profile) *string { return &p.Faculty.OfficeRoom }},
	FieldFacultyPhDInstitution:   {func(p *Profile) *string { return &p.Faculty.PhDInstitution }},
	FieldFacultyResearchAreas:    {func(p *Profile) *string { return &p.Faculty.ResearchAreas }},
	FieldFacultyHabilitation:     {func(p *Profile) *string { return &p.Faculty.HabilitationSupervise }},
	FieldFacultyContractType:     {func(p *Profile) *string { return &p.Faculty.ContractType }},
	FieldFacultyContractStart:    {func(p *Profile) *string { return &p.Faculty.ContractStartDate }},
	FieldFacultyContractEnd:      {func(p *Profile) *string { return &p.Faculty.ContractEndDate }},
	FieldFacultyTeachingHours:    {func(p *Profile) *string { return &p.Faculty.TeachingHours }},

	FieldStaffDepartment: {func(p *Profile) *string { return &p.Staff.AssignedDepartment }},
	FieldStaffJobTitle:   {func(p *Profile) *string { return &p.Staff.JobTitle }},
	FieldStaffGrade:      {func(p *Profile) *string { return &p.Staff.Grade }},
	FieldStaffEntryDate:  {func(p *Profile) *string { return &p.Staff.EntryDate }},

	FieldExternalOrganization:  {func(p *Profile) *string { return &p.External.Organization }},
	FieldExternalContactPerson: {func(p *Profile) *string { return &p.External.ContactPerson }},
}

// ExtensionFields returns the extension group fields of cat in storage order.
func ExtensionFields(cat Category) FieldSet {
	switch cat {
	case CategoryStudent:
		return FieldSet{
			FieldStudentDiplomaType, FieldStudentDiplomaYear, FieldStudentHonors,
			FieldStudentMajor, FieldStudentEntryYear, FieldStudentStatus,
			FieldStudentFacultyDept, FieldStudentGroup, FieldStudentScholarship,
		}
	case CategoryFaculty:
		return FieldSet{
			FieldFacultyRank, FieldFacultyEmployment, FieldFacultyAppointmentStart,
			FieldFacultyPrimaryDept, FieldFacultySecondaryDepts, FieldFacultyOfficeBuilding,
			FieldFacultyOfficeFloor, FieldFacultyOfficeRoom, FieldFacultyPhDInstitution,
			FieldFacultyResearchAreas, FieldFacultyHabilitation, FieldFacultyContractType,
			FieldFacultyContractStart, FieldFacultyContractEnd, FieldFacultyTeachingHours,
		}
	case CategoryStaff:
		return FieldSet{FieldStaffDepartment, FieldStaffJobTitle, FieldStaffGrade, FieldStaffEntryDate}
	case CategoryExternal:
		return FieldSet{FieldExternalOrganization, FieldExternalContactPerson}
	default:
		return nil
	}
}

// AllExtensionFields returns the extension fields of every category.
func AllExtensionFields() FieldSet {
	var out FieldSet
	for _, cat := range Categories() {
		out = append(out, ExtensionFields(cat)...)
	}
	return out
}

// CommonEditableFields are editable on every identity. Identity fields such as
// id, email, dob and sub_category never are.
func CommonEditableFields() FieldSet {
	return FieldSet{FieldFirstName, FieldLastName, FieldStatus}
}

// editableGroup is the category's extension group minus system-set fields.
func editableGroup(cat Category) FieldSet {
	return slices.DeleteFunc(ExtensionFields(cat), func(f Field) bool {
		return f == FieldStudentStatus
	})
}

// PersonFields are the person attributes accepted on create.
func PersonFields() FieldSet {
	return FieldSet{
		FieldFirstName, FieldLastName, FieldDateOfBirth, FieldPlaceOfBirth,
		FieldNationality, FieldGender, FieldEmail, FieldPhone,
	}
}

// IsProfileField reports whether f names a settable profile attribute.
func IsProfileField(f Field) bool {
	_, ok := profileFields[f]
	return ok
}

// Value returns the string value of f on p.
func (p *Profile) Value(f Field) (string, bool) {
	switch f {
	case FieldCategory:
		return string(p.Category), true
	case FieldSubCategory:
		return string(p.SubCategory), true
	}
	acc, ok := profileFields[f]
	if !ok {
		return "", false
	}
	return *acc.get(p), true
}

// SetValue assigns v to f on p. Category and sub-category are settable only
// here, on a profile that is not yet an identity.
func (p *Profile) SetValue(f Field, v string) bool {
	switch f {
	case FieldCategory:
		p.Category = Category(v)
		return true
	case FieldSubCategory:
		p.SubCategory = SubCategory(v)
		return true
	}
	acc, ok := profileFields[f]
	if !ok {
		return false
	}
	*acc.get(p) = v
	return true
}

// Value returns the string value of f on r, including id and status.
func (r *IdentityRecord) Value(f Field) (string, bool) {
	switch f {
	case FieldID:
		return r.ID, true
	case FieldStatus:
		return string(r.Status), true
	}
	return r.Profile.Value(f)
}

// FieldValues is a set of field assignments.
type FieldValues map[Field]string

// Apply writes values onto r. Status is written as-is; callers gate it
// through the lifecycle machine first.
func (r *IdentityRecord) Apply(values FieldValues) {
	for f, v := range values {
		if f == FieldStatus {
			r.Status = Status(v)
			continue
		}
		if f == FieldCategory || f == FieldSubCategory {
			continue
		}
		r.Profile.SetValue(f, v)
	}
}
