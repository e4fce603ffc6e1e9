package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate")
	// ErrConflict is returned when a conditional write lost a race.
	ErrConflict = errors.New("version conflict")
)

// isUniqueViolation recognises unique violations across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
