// Package storeerr holds the sentinel errors shared by every storage backend,
// so callers can test results with errors.Is regardless of where data lives.
package storeerr

import "errors"

var (
	// ErrNotFound is returned when a lookup or update targets a missing record.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateInstance is returned when a course already has an auto enrolment instance.
	ErrDuplicateInstance = errors.New("course already has an auto enrolment instance")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrRoleRequired is returned when an instance or enrolment has no role.
	ErrRoleRequired = errors.New("role is required")
)
