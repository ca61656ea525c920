package handler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"campusid/internal/identity/models"
	dErrors "campusid/pkg/domain-errors"
)

type RequestsSuite struct {
	suite.Suite
}

func TestRequestsSuite(t *testing.T) {
	suite.Run(t, new(RequestsSuite))
}

func (s *RequestsSuite) TestCreateIdentityRequest() {
	s.Run("maps fields onto the profile", func() {
		req := CreateIdentityRequest{
			"type":           "Faculty",
			"sub_category":   "Tenured",
			"first_name":     "Karim",
			"faculty_rank":   "Lecturer",
			"place_of_birth": "Oran",
		}
		s.Require().NoError(req.Validate())

		p := req.Profile()
		s.Equal(models.CategoryFaculty, p.Category)
		s.Equal(models.SubTenured, p.SubCategory)
		s.Equal("Lecturer", p.Faculty.Rank)
		s.Equal("Oran", p.PlaceOfBirth)
	})

	s.Run("rejects read-only and unknown fields in sorted order", func() {
		req := CreateIdentityRequest{"status": "Active", "id": "X", "first_name": "Karim"}
		err := req.Validate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Contains(err.Error(), "id, status")
	})

	s.Run("rejects both category and type", func() {
		req := CreateIdentityRequest{"type": "Staff", "category": "Staff"}
		s.Error(req.Validate())
	})

	s.Run("rejects oversized values", func() {
		req := CreateIdentityRequest{"first_name": strings.Repeat("a", maxValueLength+1)}
		s.Error(req.Validate())
	})

	s.Run("rejects an empty body", func() {
		var req CreateIdentityRequest
		s.Error(req.Validate())
	})
}

func (s *RequestsSuite) TestSearchRequest() {
	s.Run("valid query", func() {
		req, err := parseSearchRequest(url.Values{
			"q":          {" ben "},
			"category":   {"Student"},
			"status":     {"Active"},
			"year":       {"2024"},
			"department": {"Sciences"},
			"limit":      {"25"},
		})
		s.Require().NoError(err)
		f := req.Filter()
		s.Equal("ben", f.Query)
		s.Equal(models.CategoryStudent, f.Category)
		s.Equal(models.StatusActive, f.Status)
		s.Equal(25, f.Limit)
	})

	s.Run("names the offending parameter", func() {
		_, err := parseSearchRequest(url.Values{"category": {"Alien"}})
		s.Require().Error(err)
		s.Contains(err.Error(), "category must be one of")

		_, err = parseSearchRequest(url.Values{"limit": {"-1"}})
		s.Require().Error(err)
		s.Contains(err.Error(), "limit must be between 0 and 500")
	})
}
