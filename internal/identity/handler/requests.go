package handler

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"campusid/internal/identity/models"
	dErrors "campusid/pkg/domain-errors"
)

const (
	maxRequestFields = 64
	maxValueLength   = 1024
	// typeAlias is accepted in place of category, as older clients send it.
	typeAlias = "type"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("query"), ","); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// CreateIdentityRequest is the flat field map of a new identity, keyed by
// field name (first_name, sub_category, student_major, ...).
type CreateIdentityRequest map[string]string

// Validate checks shape only. Business rules run in the service so that all
// problems are reported together.
func (r *CreateIdentityRequest) Validate() error {
	if r == nil || len(*r) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "request body must contain identity fields")
	}
	if len(*r) > maxRequestFields {
		return dErrors.New(dErrors.CodeBadRequest, "too many fields")
	}
	var unknown []string
	for _, key := range slices.Sorted(maps.Keys(*r)) {
		if len((*r)[key]) > maxValueLength {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("field %s is too long", key))
		}
		if !settableOnCreate(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		return dErrors.New(dErrors.CodeBadRequest, "unknown or read-only fields: "+strings.Join(unknown, ", "))
	}
	if _, hasType := (*r)[typeAlias]; hasType {
		if _, hasCategory := (*r)[string(models.FieldCategory)]; hasCategory {
			return dErrors.New(dErrors.CodeBadRequest, "send either category or type, not both")
		}
	}
	return nil
}

func settableOnCreate(key string) bool {
	switch models.Field(key) {
	case models.FieldCategory, models.FieldSubCategory:
		return true
	}
	return key == typeAlias || models.IsProfileField(models.Field(key))
}

// Profile converts the request into a profile.
func (r CreateIdentityRequest) Profile() models.Profile {
	var p models.Profile
	for key, v := range r {
		if key == typeAlias {
			key = string(models.FieldCategory)
		}
		p.SetValue(models.Field(key), v)
	}
	return p
}

// EditIdentityRequest carries the submitted fields of an edit.
type EditIdentityRequest struct {
	Fields map[string]string `json:"fields"`
}

func (r *EditIdentityRequest) Validate() error {
	if len(r.Fields) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "fields must not be empty")
	}
	if len(r.Fields) > maxRequestFields {
		return dErrors.New(dErrors.CodeBadRequest, "too many fields")
	}
	for k, v := range r.Fields {
		if len(v) > maxValueLength {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("field %s is too long", k))
		}
	}
	return nil
}

// EditRequest converts the request for identity id.
func (r *EditIdentityRequest) EditRequest(id string) models.EditRequest {
	values := make(models.FieldValues, len(r.Fields))
	for k, v := range r.Fields {
		values[models.Field(k)] = v
	}
	return models.EditRequest{ID: id, Values: values}
}

// SearchIdentitiesRequest is the query string of an identity search.
type SearchIdentitiesRequest struct {
	Query      string `query:"q"          validate:"max=100"`
	Category   string `query:"category"   validate:"omitempty,oneof=Student Faculty Staff External"`
	Status     string `query:"status"     validate:"omitempty,oneof=Pending Active Suspended Inactive Archived"`
	Year       string `query:"year"       validate:"omitempty,numeric,len=4"`
	Department string `query:"department" validate:"max=100"`
	Limit      int    `query:"limit"      validate:"gte=0,lte=500"`
}

func parseSearchRequest(q url.Values) (*SearchIdentitiesRequest, error) {
	req := &SearchIdentitiesRequest{
		Query:      strings.TrimSpace(q.Get("q")),
		Category:   strings.TrimSpace(q.Get("category")),
		Status:     strings.TrimSpace(q.Get("status")),
		Year:       strings.TrimSpace(q.Get("year")),
		Department: strings.TrimSpace(q.Get("department")),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer")
		}
		req.Limit = n
	}
	return req, req.Validate()
}

func (r *SearchIdentitiesRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate search")
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = describe(fe)
	}
	return dErrors.New(dErrors.CodeBadRequest, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "lte", "gte":
		return fmt.Sprintf("%s must be between 0 and %d", fe.Field(), models.MaxSearchLimit)
	case "numeric", "len":
		return fmt.Sprintf("%s must be a four-digit year", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Filter converts the request.
func (r *SearchIdentitiesRequest) Filter() models.SearchFilter {
	return models.SearchFilter{
		Query:      r.Query,
		Category:   models.Category(r.Category),
		Status:     models.Status(r.Status),
		Year:       r.Year,
		Department: r.Department,
		Limit:      r.Limit,
	}
}
