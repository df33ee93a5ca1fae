package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("not found")

// Postgres SQLSTATE codes the service reacts to
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

// IsLockTimeout reports whether err came from waiting too long on a row lock
func IsLockTimeout(err error) bool {
	code := pqCode(err)
	return code == codeLockNotAvailable || code == codeQueryCanceled
}

// IsRetryable reports whether the whole transaction can be safely retried
func IsRetryable(err error) bool {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
		return true
	}
	return false
}
