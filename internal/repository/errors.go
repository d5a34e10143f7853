package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error classes used to classify storage failures.
const (
	pgUniqueViolation   = "23505"
	pgConnectionFailure = "08" // class prefix
)

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Acquire and review creation rely on this to resolve races:
// the constraint, not application logic, decides the winner.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}

// IsTransient reports whether err looks like a momentary storage failure
// that a caller may retry.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == pgConnectionFailure
	}
	return false
}
