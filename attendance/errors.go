/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place. The engine itself never fails: malformed
  input degrades to "no match" and projection input is clamped. Errors
  only arise at the tracked-record write boundary (quota gate) and in the
  stores that implement RecordStore.

ERROR CATEGORIES:
  1. Quota errors - the store refused a 6th duty-leave record
  2. Record errors - duplicate slot, missing record, malformed record

USAGE:
  records, err := tracker.Add(ctx, records, rec)
  var quota *attendance.QuotaExceededError
  if errors.As(err, &quota) {
      fmt.Printf("duty leave limit %d reached for %s\n", quota.Limit, quota.Course)
  }

SEE ALSO:
  - quota.go: Tracker surfaces these errors
  - store/sqlite/sqlite.go: maps trigger failures onto them
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDutyLeaveQuota is returned when the store rejects a duty-leave record
	// beyond the per-course, per-semester limit. Expected and recoverable.
	ErrDutyLeaveQuota = errors.New("duty leave limit exceeded")

	// ErrDuplicateRecord is returned when a tracked record already exists for
	// the same (username, course, date, session).
	ErrDuplicateRecord = errors.New("tracked record already exists for slot")

	// ErrRecordNotFound is returned when deleting a record that does not exist.
	ErrRecordNotFound = errors.New("tracked record not found")

	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("invalid tracked record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// QuotaExceededError identifies which course and limit a rejected duty-leave
// write hit.
type QuotaExceededError struct {
	Username     string
	Course       string
	Semester     string
	AcademicYear string
	Limit        int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("duty leave limit of %d reached for course %q (semester %s, year %s)",
		e.Limit, e.Course, e.Semester, e.AcademicYear)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrDutyLeaveQuota
}

// quotaErrorFor builds the structured error for a rejected record.
func quotaErrorFor(r TrackedRecord) *QuotaExceededError {
	return &QuotaExceededError{
		Username:     r.Username,
		Course:       r.Course,
		Semester:     r.Semester,
		AcademicYear: r.AcademicYear,
		Limit:        DutyLeaveLimit,
	}
}

// NewQuotaExceededError is used by stores to report a rejected write.
func NewQuotaExceededError(r TrackedRecord) error {
	return quotaErrorFor(r)
}

// InvalidRecordError names the offending field.
type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid tracked record: %s %s", e.Field, e.Reason)
}

func (e *InvalidRecordError) Unwrap() error {
	return ErrInvalidRecord
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the user's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDutyLeaveQuota) ||
		errors.Is(err, ErrDuplicateRecord) ||
		errors.Is(err, ErrInvalidRecord)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
