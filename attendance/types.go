/*
Package attendance provides the attendance reconciliation and projection engine.

PURPOSE:
  Reconciles an institution's official attendance feed with the corrections
  and extra sessions a student records, and projects how many further
  classes may be missed ("bunked") or must be attended to reach a target
  attendance percentage.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: the closed attendance enumeration (Present, Absent, ...)
  - OfficialSession: one mark from the institution's feed
  - TrackedRecord: a user-authored correction or extra session
  - Scope: the active (semester, academic year, target) period
  - ReconciledSession / CourseAggregate: derived views

DESIGN PRINCIPLES:
  1. Purity: nothing in this package performs I/O or keeps state
  2. One vocabulary: every status flows through Status and its label table
  3. Explicit scope: the active period is a parameter, never ambient

USAGE:
  sessions := report.Flatten()
  result := attendance.Reconcile(sessions, records, scope)
  for _, s := range attendance.Summarize(result) {
      fmt.Println(s.Aggregate.CourseName, s.Safe.CanBunk, s.Extra.CanBunk)
  }

SEE ALSO:
  - normalize.go: slot key normalization
  - projection.go: bunk projection calculator
  - merge.go: reconciliation merge engine
  - quota.go: duty-leave quota gate
*/
package attendance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// STATUS - Closed attendance enumeration
// =============================================================================

// Status is an attendance mark. The numeric values are the institution's
// attendance codes and are what gets stored and exchanged.
type Status int

const (
	StatusUnknown    Status = 0
	StatusPresent    Status = 110
	StatusAbsent     Status = 111
	StatusOtherLeave Status = 112
	StatusDutyLeave  Status = 225
)

// statusLabels is the single code <-> label table. Every conversion goes
// through it.
var statusLabels = map[Status]string{
	StatusPresent:    "Present",
	StatusAbsent:     "Absent",
	StatusOtherLeave: "Other Leave",
	StatusDutyLeave:  "Duty Leave",
}

// labelAliases maps normalized label spellings seen across data sources.
var labelAliases = map[string]Status{
	"present":    StatusPresent,
	"absent":     StatusAbsent,
	"otherleave": StatusOtherLeave,
	"leave":      StatusOtherLeave,
	"dutyleave":  StatusDutyLeave,
}

// StatusFromCode returns the status for a numeric attendance code.
func StatusFromCode(code int) (Status, bool) {
	s := Status(code)
	_, ok := statusLabels[s]
	return s, ok
}

// ParseStatus accepts a numeric code ("110") or a label ("Duty Leave",
// "duty_leave", "Leave").
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		return StatusFromCode(code)
	}
	st, ok := labelAliases[NormalizeCourse(s)]
	return st, ok
}

// Code returns the numeric attendance code.
func (s Status) Code() int { return int(s) }

// Label returns the display label, or "Unknown" for values outside the
// enumeration.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

func (s Status) String() string { return s.Label() }

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsPositive reports whether the status counts as attended.
func (s Status) IsPositive() bool {
	return s == StatusPresent || s == StatusDutyLeave
}

// MarshalJSON encodes the status as its numeric code.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(s))
}

// UnmarshalJSON accepts either the numeric code or a label string. Unknown
// numeric codes are kept as-is so one odd mark cannot fail a whole report;
// Valid reports them.
func (s *Status) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		*s = Status(code)
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("attendance status must be a code or label: %w", err)
	}
	st, ok := ParseStatus(label)
	if !ok {
		return fmt.Errorf("unknown attendance status %q", label)
	}
	*s = st
	return nil
}

// =============================================================================
// RECORD KIND
// =============================================================================

// Kind distinguishes the two kinds of tracked record.
type Kind string

const (
	KindCorrection Kind = "correction" // Overrides an official mark
	KindExtra      Kind = "extra"      // A class the official feed never reported
)

// Valid reports whether k is a correction or an extra.
func (k Kind) Valid() bool { return k == KindCorrection || k == KindExtra }

// =============================================================================
// OFFICIAL SESSION - One mark from the institution's feed
// =============================================================================

// OfficialSession is read-only; the engine never mutates it.
type OfficialSession struct {
	CourseID     string
	CourseName   string
	CourseCode   string
	Date         string // packed YYYYMMDD as received
	SessionLabel string
	Status       Status
}

// =============================================================================
// TRACKED RECORD - User-authored correction or extra
// =============================================================================

// TrackedRecord is created and deleted by explicit user action. It is never
// updated in place; an edit is a delete followed by an insert.
type TrackedRecord struct {
	ID           string    `json:"id,omitempty"`
	Username     string    `json:"username"`
	Course       string    `json:"course"`
	Session      string    `json:"session"`
	Date         string    `json:"date"`
	Kind         Kind      `json:"status"`
	Status       Status    `json:"attendance"`
	Semester     string    `json:"semester"`
	AcademicYear string    `json:"year"`
	Remarks      string    `json:"remarks,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Ref returns the slot reference the store uses to address this record.
func (r TrackedRecord) Ref() RecordRef {
	return RecordRef{Username: r.Username, Course: r.Course, Date: r.Date, Session: r.Session}
}

// RecordRef addresses a tracked record by (principal, course, date, session).
type RecordRef struct {
	Username string
	Course   string
	Date     string
	Session  string
}

// Matches reports whether the record sits at this reference. Course, date
// and session compare by their normalized form.
func (ref RecordRef) Matches(r TrackedRecord) bool {
	return ref.StorageKey() == r.Ref().StorageKey()
}

// =============================================================================
// SCOPE - The active reporting period
// =============================================================================

// DefaultTargetPercentage applies when a scope carries no target.
const DefaultTargetPercentage = 75

// Scope is threaded explicitly into every engine call.
type Scope struct {
	Semester         string  `json:"semester"`
	AcademicYear     string  `json:"academicYear"`
	TargetPercentage float64 `json:"targetPercentage,omitempty"`
}

// Includes reports whether a tracked record belongs to this scope.
// Comparison ignores case and surrounding spaces.
func (sc Scope) Includes(r TrackedRecord) bool {
	return sameScopeValue(sc.Semester, r.Semester) && sameScopeValue(sc.AcademicYear, r.AcademicYear)
}

// Unscoped reports whether sc names no semester and no year.
func (sc Scope) Unscoped() bool {
	return strings.TrimSpace(sc.Semester) == "" && strings.TrimSpace(sc.AcademicYear) == ""
}

// Target returns the scope's target, falling back to the default.
func (sc Scope) Target() float64 {
	if sc.TargetPercentage == 0 {
		return DefaultTargetPercentage
	}
	return sc.TargetPercentage
}

func sameScopeValue(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// =============================================================================
// RECONCILED VIEW
// =============================================================================

// ReconciledSession is one official session joined with at most one tracked
// record, or a synthesized extra session.
type ReconciledSession struct {
	Key           SlotKey `json:"-"`
	CourseID      string  `json:"courseId"`
	CourseName    string  `json:"courseName"`
	Date          string  `json:"date"`
	SessionLabel  string  `json:"session"`
	SessionNumber int     `json:"sessionNumber"`

	// Status is the effective mark after any correction.
	Status Status `json:"status"`
	// OriginalStatus is the official mark when a correction overrode it,
	// StatusUnknown otherwise.
	OriginalStatus Status `json:"originalStatus,omitempty"`

	IsCorrection bool   `json:"isCorrection"`
	IsExtra      bool   `json:"isExtra"`
	Remarks      string `json:"remarks,omitempty"`
}

// officialStatus is the mark the institution recorded.
func (rs ReconciledSession) officialStatus() Status {
	if rs.IsCorrection {
		return rs.OriginalStatus
	}
	return rs.Status
}

// CourseAggregate rolls a course up for the projection calculator.
type CourseAggregate struct {
	CourseID   string `json:"courseId"`
	CourseName string `json:"courseName"`

	OfficialPresent int `json:"officialPresent"`
	OfficialTotal   int `json:"officialTotal"`
	OfficialAbsent  int `json:"officialAbsent"`

	// CorrectionPositive counts corrections that moved an official Absent to
	// Present or Duty Leave. They never change the total.
	CorrectionPositive int `json:"correctionPositive"`

	// Extras always add to the total.
	ExtraPositive int `json:"extraPositive"`
	ExtraCount    int `json:"extraCount"`

	// DutyLeaveUsed counts in-scope duty-leave records. Informational only.
	DutyLeaveUsed int `json:"dutyLeaveUsed"`
}

// AdjustedPresent counts official, corrected and extra attendance.
func (a CourseAggregate) AdjustedPresent() int {
	return a.OfficialPresent + a.CorrectionPositive + a.ExtraPositive
}

// AdjustedTotal is the official total plus every extra session.
func (a CourseAggregate) AdjustedTotal() int {
	return a.OfficialTotal + a.ExtraCount
}

// DutyLeaveRemaining is how many more duty-leave records the store would
// accept for this course, never negative.
func (a CourseAggregate) DutyLeaveRemaining() int {
	if r := DutyLeaveLimit - a.DutyLeaveUsed; r > 0 {
		return r
	}
	return 0
}
