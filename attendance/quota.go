/*
quota.go - Duty-leave quota gate

PURPOSE:
  Tracked records are written to an external store. That store, not this
  engine, enforces the duty-leave cap: at most DutyLeaveLimit records with
  Duty Leave status per (user, course, semester, academic year).

  The Tracker is the engine's side of that boundary. A write has exactly
  two outcomes:
    applied   -> the caller's record set gains (or loses) the record
    rejected  -> the caller's record set is returned untouched

  A quota rejection is an expected outcome. It comes back as a
  *QuotaExceededError naming the course and limit, and nothing is applied
  optimistically.

CANCELLATION:
  Belongs to the caller, through ctx.
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DutyLeaveLimit is the per-course, per-semester duty-leave cap enforced by
// the store.
const DutyLeaveLimit = 5

// RecordStore persists tracked records. Implementations enforce the
// duty-leave cap and report violations wrapping ErrDutyLeaveQuota.
type RecordStore interface {
	// Insert stores rec and returns it with ID and CreatedAt filled in.
	Insert(ctx context.Context, rec TrackedRecord) (TrackedRecord, error)

	// Delete removes the record at ref. Returns ErrRecordNotFound if absent.
	Delete(ctx context.Context, ref RecordRef) error

	// List returns the user's records, restricted to scope unless the scope
	// is unscoped.
	List(ctx context.Context, username string, scope Scope) ([]TrackedRecord, error)

	// CountDutyLeave returns how many duty-leave records the user holds for
	// course within scope, under the same identity the cap is enforced on.
	CountDutyLeave(ctx context.Context, username, course string, scope Scope) (int, error)
}

// QuotaKey identifies one duty-leave allowance. Course is normalized and
// the period compares without case or surrounding spaces.
type QuotaKey struct {
	Username     string
	Course       string
	Semester     string
	AcademicYear string
}

// QuotaKeyFor returns the allowance a duty leave for course in scope draws
// from.
func QuotaKeyFor(username, course string, scope Scope) QuotaKey {
	return QuotaKey{
		Username:     username,
		Course:       NormalizeCourse(course),
		Semester:     strings.ToLower(strings.TrimSpace(scope.Semester)),
		AcademicYear: strings.ToLower(strings.TrimSpace(scope.AcademicYear)),
	}
}

// QuotaKey returns the allowance r draws from when it is a duty leave.
func (r TrackedRecord) QuotaKey() QuotaKey {
	return QuotaKeyFor(r.Username, r.Course, Scope{Semester: r.Semester, AcademicYear: r.AcademicYear})
}

// Tracker submits tracked-record writes and applies them to a local record
// set only once the store has accepted them.
type Tracker struct {
	Store RecordStore
}

func NewTracker(store RecordStore) *Tracker {
	return &Tracker{Store: store}
}

// Add writes rec and returns current plus the stored record. On any failure
// current is returned unchanged alongside the error.
func (t *Tracker) Add(ctx context.Context, current []TrackedRecord, rec TrackedRecord) ([]TrackedRecord, error) {
	if err := ValidateRecord(rec); err != nil {
		return current, err
	}

	stored, err := t.Store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrDutyLeaveQuota) {
			var quota *QuotaExceededError
			if errors.As(err, &quota) {
				return current, quota
			}
			return current, quotaErrorFor(rec)
		}
		return current, fmt.Errorf("failed to store tracked record: %w", err)
	}

	return append(slices.Clone(current), stored), nil
}

// Remove deletes the record at ref and returns current without it. On
// failure current is returned unchanged.
func (t *Tracker) Remove(ctx context.Context, current []TrackedRecord, ref RecordRef) ([]TrackedRecord, error) {
	if err := t.Store.Delete(ctx, ref); err != nil {
		return current, fmt.Errorf("failed to delete tracked record: %w", err)
	}
	return slices.DeleteFunc(slices.Clone(current), ref.Matches), nil
}

// Load fetches the user's records for scope.
func (t *Tracker) Load(ctx context.Context, username string, scope Scope) ([]TrackedRecord, error) {
	records, err := t.Store.List(ctx, username, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked records: %w", err)
	}
	return records, nil
}

// DutyLeaveUsed reports how many duty leaves the user has spent on course
// in scope.
func (t *Tracker) DutyLeaveUsed(ctx context.Context, username, course string, scope Scope) (int, error) {
	n, err := t.Store.CountDutyLeave(ctx, username, course, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to count duty leave: %w", err)
	}
	return n, nil
}

// ValidateRecord checks the fields every tracked record needs. It does not
// check the quota.
func ValidateRecord(rec TrackedRecord) error {
	switch {
	case strings.TrimSpace(rec.Username) == "":
		return &InvalidRecordError{Field: "username", Reason: "is required"}
	case NormalizeCourse(rec.Course) == "":
		return &InvalidRecordError{Field: "course", Reason: "is required"}
	case strings.TrimSpace(rec.Date) == "":
		return &InvalidRecordError{Field: "date", Reason: "is required"}
	case !rec.Kind.Valid():
		return &InvalidRecordError{Field: "status", Reason: fmt.Sprintf("must be %q or %q", KindCorrection, KindExtra)}
	case !rec.Status.Valid():
		return &InvalidRecordError{Field: "attendance", Reason: fmt.Sprintf("unknown code %d", rec.Status.Code())}
	case strings.TrimSpace(rec.Semester) == "" || strings.TrimSpace(rec.AcademicYear) == "":
		return &InvalidRecordError{Field: "semester", Reason: "and year are required"}
	}
	return nil
}
