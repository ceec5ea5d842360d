package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/lib/pq"
)

// Postgres error classes. Serialization failures and deadlocks are the
// transient conflicts the transaction runner retries.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

func isRetryableConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqSerializationFailure || string(pqErr.Code) == pqDeadlockDetected
}

// mapScanErr converts driver-level errors to taxonomy errors: no rows
// becomes NotFound, a unique violation becomes a DuplicateError naming
// the colliding column derived from the constraint name.
func mapScanErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return services.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return &services.DuplicateError{Field: fieldFromConstraint(pqErr.Constraint)}
	}
	return err
}

// fieldFromConstraint extracts the column from constraint names of the
// form <table>_<column>_key that Postgres generates for UNIQUE columns.
func fieldFromConstraint(constraint string) string {
	trimmed := strings.TrimSuffix(constraint, "_key")
	if i := strings.LastIndex(trimmed, "_"); i >= 0 {
		return trimmed[i+1:]
	}
	if trimmed == "" {
		return "value"
	}
	return trimmed
}
