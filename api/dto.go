/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  engine's types so fields can be renamed without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator struct tags. Handlers call
  h.validate.Struct before touching the engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ScopeRequest selects the active period.
type ScopeRequest struct {
	Semester         string  `json:"semester" validate:"required"`
	AcademicYear     string  `json:"academicYear" validate:"required"`
	TargetPercentage float64 `json:"targetPercentage" validate:"omitempty,gte=1,lte=100"`
}

// ReconcileRequest carries the official report; tracked records are read
// from the store for Username.
type ReconcileRequest struct {
	Username string            `json:"username" validate:"required"`
	Scope    ScopeRequest      `json:"scope"`
	Official attendance.Report `json:"official"`
}

// CreateRecordRequest is the body for adding a tracked record.
type CreateRecordRequest struct {
	Course     string            `json:"course" validate:"required"`
	Session    string            `json:"session"`
	Date       string            `json:"date" validate:"required"`
	Kind       attendance.Kind   `json:"status" validate:"required,oneof=correction extra"`
	Attendance attendance.Status `json:"attendance" validate:"required,oneof=110 111 112 225"`
	Semester   string            `json:"semester" validate:"required"`
	Year       string            `json:"year" validate:"required"`
	Remarks    string            `json:"remarks" validate:"max=500"`
}

func (r CreateRecordRequest) toRecord(username string) attendance.TrackedRecord {
	return attendance.TrackedRecord{
		Username:     username,
		Course:       r.Course,
		Session:      r.Session,
		Date:         r.Date,
		Kind:         r.Kind,
		Status:       r.Attendance,
		Semester:     r.Semester,
		AcademicYear: r.Year,
		Remarks:      r.Remarks,
	}
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ProjectionDTO is a bunk projection.
type ProjectionDTO struct {
	IsExact          bool    `json:"isExact"`
	CanBunk          int     `json:"canBunk"`
	RequiredToAttend int     `json:"requiredToAttend"`
	CurrentPercent   string  `json:"currentPercent"`
	Target           float64 `json:"target,omitempty"`
}

// SessionDTO is one reconciled session.
type SessionDTO struct {
	CourseID       string `json:"courseId"`
	CourseName     string `json:"courseName"`
	Date           string `json:"date"`
	Session        string `json:"session"`
	SessionNumber  int    `json:"sessionNumber"`
	Status         string `json:"status"`
	OriginalStatus string `json:"originalStatus,omitempty"`
	IsCorrection   bool   `json:"isCorrection"`
	IsExtra        bool   `json:"isExtra"`
	Remarks        string `json:"remarks,omitempty"`
}

// DayDTO groups the sessions of a date.
type DayDTO struct {
	Date     string       `json:"date"`
	Sessions []SessionDTO `json:"sessions"`
}

// CourseDTO is a course roll-up with both projections.
type CourseDTO struct {
	CourseID           string        `json:"courseId"`
	CourseName         string        `json:"courseName"`
	OfficialPresent    int           `json:"officialPresent"`
	OfficialAbsent     int           `json:"officialAbsent"`
	OfficialTotal      int           `json:"officialTotal"`
	CorrectionPositive int           `json:"correctionPositive"`
	ExtraPositive      int           `json:"extraPositive"`
	ExtraCount         int           `json:"extraCount"`
	AdjustedPresent    int           `json:"adjustedPresent"`
	AdjustedTotal      int           `json:"adjustedTotal"`
	DutyLeaveUsed      int           `json:"dutyLeaveUsed"`
	DutyLeaveRemaining int           `json:"dutyLeaveRemaining"`
	Safe               ProjectionDTO `json:"safe"`
	Extra              ProjectionDTO `json:"extra"`
	Diverges           bool          `json:"diverges"`
}

// ReconcileResponse is the reconciled view for a scope.
type ReconcileResponse struct {
	Semester     string      `json:"semester"`
	AcademicYear string      `json:"academicYear"`
	Target       float64     `json:"target"`
	Days         []DayDTO    `json:"days"`
	Courses      []CourseDTO `json:"courses"`
}

// RecordDTO is a stored tracked record.
type RecordDTO struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Course     string `json:"course"`
	Session    string `json:"session"`
	Date       string `json:"date"`
	Kind       string `json:"status"`
	Attendance int    `json:"attendance"`
	Label      string `json:"label"`
	Semester   string `json:"semester"`
	Year       string `json:"year"`
	Remarks    string `json:"remarks,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// DutyLeaveDTO reports a course's duty-leave allowance for one semester.
type DutyLeaveDTO struct {
	Course       string `json:"course"`
	Semester     string `json:"semester"`
	AcademicYear string `json:"year"`
	Used         int    `json:"used"`
	Limit        int    `json:"limit"`
	Remaining    int    `json:"remaining"`
}

// QuotaErrorResponse reports a rejected duty-leave record.
type QuotaErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Course string `json:"course"`
	Limit  int    `json:"limit"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toProjectionDTO(p attendance.Projection, target float64) ProjectionDTO {
	return ProjectionDTO{
		IsExact:          p.IsExact,
		CanBunk:          p.CanBunk,
		RequiredToAttend: p.RequiredToAttend,
		CurrentPercent:   p.CurrentPercent.StringFixed(2),
		Target:           target,
	}
}

func toSessionDTO(s attendance.ReconciledSession) SessionDTO {
	dto := SessionDTO{
		CourseID:      s.CourseID,
		CourseName:    s.CourseName,
		Date:          s.Date,
		Session:       s.SessionLabel,
		SessionNumber: s.SessionNumber,
		Status:        s.Status.Label(),
		IsCorrection:  s.IsCorrection,
		IsExtra:       s.IsExtra,
		Remarks:       s.Remarks,
	}
	if s.IsCorrection {
		dto.OriginalStatus = s.OriginalStatus.Label()
	}
	return dto
}

func toDayDTOs(days []attendance.Day) []DayDTO {
	dtos := make([]DayDTO, len(days))
	for i, d := range days {
		sessions := make([]SessionDTO, len(d.Sessions))
		for j, s := range d.Sessions {
			sessions[j] = toSessionDTO(s)
		}
		dtos[i] = DayDTO{Date: d.Date, Sessions: sessions}
	}
	return dtos
}

func toCourseDTO(s attendance.CourseSummary, target float64) CourseDTO {
	a := s.Aggregate
	return CourseDTO{
		CourseID:           a.CourseID,
		CourseName:         a.CourseName,
		OfficialPresent:    a.OfficialPresent,
		OfficialAbsent:     a.OfficialAbsent,
		OfficialTotal:      a.OfficialTotal,
		CorrectionPositive: a.CorrectionPositive,
		ExtraPositive:      a.ExtraPositive,
		ExtraCount:         a.ExtraCount,
		AdjustedPresent:    a.AdjustedPresent(),
		AdjustedTotal:      a.AdjustedTotal(),
		DutyLeaveUsed:      a.DutyLeaveUsed,
		DutyLeaveRemaining: a.DutyLeaveRemaining(),
		Safe:               toProjectionDTO(s.Safe, target),
		Extra:              toProjectionDTO(s.Extra, target),
		Diverges:           s.Diverges,
	}
}

func toRecordDTO(r attendance.TrackedRecord) RecordDTO {
	return RecordDTO{
		ID:         r.ID,
		Username:   r.Username,
		Course:     r.Course,
		Session:    r.Session,
		Date:       r.Date,
		Kind:       string(r.Kind),
		Attendance: r.Status.Code(),
		Label:      r.Status.Label(),
		Semester:   r.Semester,
		Year:       r.AcademicYear,
		Remarks:    r.Remarks,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordDTOs(records []attendance.TrackedRecord) []RecordDTO {
	dtos := make([]RecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}
