// Package sentinel holds the storage facts stores report and services
// translate into coded errors. Stores wrap them with context; callers test
// with errors.Is.
package sentinel

import "errors"

var (
	// ErrNotFound: no identity with the requested id or email.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed: a unique key (identity id, email) is taken.
	ErrAlreadyUsed = errors.New("already used")
)
