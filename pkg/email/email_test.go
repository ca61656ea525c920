package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a.benali@univ.dz", Normalize("  A.Benali@Univ.DZ "))
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"a@b.co", true},
		{"first.last@faculty.univ.dz", true},
		{"no-at-sign.com", false},
		{"a@nodot", false},
		{"a b@c.de", false},
		{"@b.co", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValid(tt.addr))
		})
	}
}
