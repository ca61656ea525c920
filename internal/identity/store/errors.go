// Package store persists identity records and their audit trail.
//
// Error contract, shared by every implementation:
//   - ErrNotFound (wrapped) when the identity does not exist
//   - *DuplicateKeyError, which unwraps to sentinel.ErrAlreadyUsed, when an
//     insert collides on id or email
//   - wrapped driver errors for infrastructure failures
package store

import (
	"fmt"

	"campusid/pkg/platform/sentinel"
)

// Unique keys of an identity.
const (
	KeyID    = "id"
	KeyEmail = "email"
)

// DuplicateKeyError reports which unique key an insert collided on.
type DuplicateKeyError struct {
	Key   string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("identity %s %q already exists", e.Key, e.Value)
}

func (e *DuplicateKeyError) Unwrap() error {
	return sentinel.ErrAlreadyUsed
}

func notFound(id string) error {
	return fmt.Errorf("identity %s: %w", id, sentinel.ErrNotFound)
}
