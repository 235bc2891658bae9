/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes reconciliation, projection and tracked-record management over
  REST. Handles HTTP request/response, JSON serialization and validation,
  and delegates to the attendance package.

ENDPOINTS:
  Projection:
    GET    /api/projection?present=&total=&target=   Bunk projection

  Reconciliation:
    POST   /api/reconcile                           Merge an official report
                                                    with the user's records

  Tracked records:
    GET    /api/users/{username}/records            List (?semester=&year=)
    POST   /api/users/{username}/records            Add a correction or extra
    DELETE /api/users/{username}/records            Remove (?course=&date=&session=)
    GET    /api/users/{username}/duty-leave         Allowance (?course=&semester=&year=)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Tracker: quota-gated writes against the record store
  - Projection: target policy (default and floor)
  - validate: struct-tag validation of request bodies

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call engine (Reconcile, Summarize, Project, Tracker)
  4. Serialize response
  5. Map errors in writeTrackerError

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Slot already has a tracked record
  - 422: Duty leave limit reached for the course
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The username in the path is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/log"
	"github.com/warp/attendance-engine/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Tracker    *attendance.Tracker
	Projection config.ProjectionConfig

	logger   zerolog.Logger
	validate *validator.Validate
}

// NewHandler creates a new handler over the given record store.
func NewHandler(store attendance.RecordStore, projection config.ProjectionConfig) *Handler {
	return &Handler{
		Tracker:    attendance.NewTracker(store),
		Projection: projection,
		logger:     log.WithComponent("api"),
		validate:   validator.New(),
	}
}

// =============================================================================
// PROJECTION
// =============================================================================

// GetProjection projects a single present/total pair. Negative counts and
// out-of-range targets are clamped the way Project clamps them.
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	present, err := strconv.Atoi(q.Get("present"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "present must be an integer", err)
		return
	}
	total, err := strconv.Atoi(q.Get("total"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "total must be an integer", err)
		return
	}

	// Transient UI values are clamped, not rejected.
	var requested float64
	if raw := q.Get("target"); raw != "" {
		requested, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "target must be a number", err)
			return
		}
	}

	target := h.Projection.EffectiveTarget(requested)
	p := attendance.Project(present, total, target)
	metrics.ProjectionsTotal.Inc()

	writeJSON(w, http.StatusOK, toProjectionDTO(p, target))
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile merges the posted official report with the user's stored
// records for the requested scope.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	scope := attendance.Scope{
		Semester:         req.Scope.Semester,
		AcademicYear:     req.Scope.AcademicYear,
		TargetPercentage: h.Projection.EffectiveTarget(req.Scope.TargetPercentage),
	}

	records, err := h.Tracker.Load(r.Context(), req.Username, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load tracked records", err)
		return
	}

	official := req.Official.Flatten()

	timer := metrics.NewTimer()
	result := attendance.Reconcile(official, records, scope)
	summaries := attendance.Summarize(result)
	timer.ObserveDuration(metrics.ReconcileDuration)
	metrics.ReconciliationsTotal.Inc()
	observeProvenance(result.Sessions)

	logger := log.WithUser(h.logger, req.Username)
	logger.Info().
		Int("official", len(official)).
		Int("tracked", len(records)).
		Int("sessions", len(result.Sessions)).
		Int("courses", len(summaries)).
		Msg("Reconciled attendance")

	courses := make([]CourseDTO, len(summaries))
	for i, s := range summaries {
		courses[i] = toCourseDTO(s, scope.Target())
	}

	writeJSON(w, http.StatusOK, ReconcileResponse{
		Semester:     scope.Semester,
		AcademicYear: scope.AcademicYear,
		Target:       scope.Target(),
		Days:         toDayDTOs(result.Days()),
		Courses:      courses,
	})
}

func observeProvenance(sessions []attendance.ReconciledSession) {
	for _, s := range sessions {
		switch {
		case s.IsExtra:
			metrics.ReconciledSessions.WithLabelValues("extra").Inc()
		case s.IsCorrection:
			metrics.ReconciledSessions.WithLabelValues("correction").Inc()
		default:
			metrics.ReconciledSessions.WithLabelValues("official").Inc()
		}
	}
}

// =============================================================================
// TRACKED RECORDS
// =============================================================================

// ListRecords returns the user's tracked records, optionally scoped.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	scope := attendance.Scope{
		Semester:     r.URL.Query().Get("semester"),
		AcademicYear: r.URL.Query().Get("year"),
	}

	records, err := h.Tracker.Load(r.Context(), username, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tracked records", err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// CreateRecord adds a correction or extra. The store enforces the slot
// uniqueness and duty-leave quota.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.TrackedWritesTotal.WithLabelValues("insert", metrics.OutcomeInvalid).Inc()
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		metrics.TrackedWritesTotal.WithLabelValues("insert", metrics.OutcomeInvalid).Inc()
		writeValidationError(w, err)
		return
	}

	updated, err := h.Tracker.Add(r.Context(), nil, req.toRecord(username))
	if err != nil {
		h.writeTrackerError(w, "insert", username, err)
		return
	}
	metrics.TrackedWritesTotal.WithLabelValues("insert", metrics.OutcomeApplied).Inc()

	writeJSON(w, http.StatusCreated, toRecordDTO(updated[len(updated)-1]))
}

// DeleteRecord removes the record occupying a slot.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := attendance.RecordRef{
		Username: chi.URLParam(r, "username"),
		Course:   q.Get("course"),
		Date:     q.Get("date"),
		Session:  q.Get("session"),
	}
	if ref.Course == "" || ref.Date == "" {
		metrics.TrackedWritesTotal.WithLabelValues("delete", metrics.OutcomeInvalid).Inc()
		writeError(w, http.StatusBadRequest, "course and date are required", nil)
		return
	}

	if _, err := h.Tracker.Remove(r.Context(), nil, ref); err != nil {
		h.writeTrackerError(w, "delete", ref.Username, err)
		return
	}
	metrics.TrackedWritesTotal.WithLabelValues("delete", metrics.OutcomeApplied).Inc()

	w.WriteHeader(http.StatusNoContent)
}

// GetDutyLeave reports how much of a course's duty-leave allowance the user
// has spent, counted by the store on the keys it enforces the cap on.
func (h *Handler) GetDutyLeave(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	q := r.URL.Query()
	course := q.Get("course")
	scope := attendance.Scope{Semester: q.Get("semester"), AcademicYear: q.Get("year")}
	if attendance.NormalizeCourse(course) == "" || scope.Semester == "" || scope.AcademicYear == "" {
		writeError(w, http.StatusBadRequest, "course, semester and year are required", nil)
		return
	}

	used, err := h.Tracker.DutyLeaveUsed(r.Context(), username, course, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count duty leave", err)
		return
	}

	writeJSON(w, http.StatusOK, DutyLeaveDTO{
		Course:       course,
		Semester:     scope.Semester,
		AcademicYear: scope.AcademicYear,
		Used:         used,
		Limit:        attendance.DutyLeaveLimit,
		Remaining:    max(attendance.DutyLeaveLimit-used, 0),
	})
}

// writeTrackerError maps a rejected write to its HTTP status and outcome.
func (h *Handler) writeTrackerError(w http.ResponseWriter, op, username string, err error) {
	logger := log.WithUser(h.logger, username)

	var quota *attendance.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		metrics.TrackedWritesTotal.WithLabelValues(op, metrics.OutcomeQuota).Inc()
		logger.Warn().
			Str("course", quota.Course).
			Str("semester", quota.Semester).
			Str("year", quota.AcademicYear).
			Msg("Duty leave limit reached")
		writeJSON(w, http.StatusUnprocessableEntity, QuotaErrorResponse{
			Error:  quota.Error(),
			Code:   "duty_leave_limit",
			Course: quota.Course,
			Limit:  quota.Limit,
		})
	case errors.Is(err, attendance.ErrDuplicateRecord):
		metrics.TrackedWritesTotal.WithLabelValues(op, metrics.OutcomeDuplicate).Inc()
		writeError(w, http.StatusConflict, "A tracked record already exists for this session", err)
	case errors.Is(err, attendance.ErrInvalidRecord):
		metrics.TrackedWritesTotal.WithLabelValues(op, metrics.OutcomeInvalid).Inc()
		writeError(w, http.StatusBadRequest, "Invalid tracked record", err)
	case attendance.IsNotFound(err):
		metrics.TrackedWritesTotal.WithLabelValues(op, metrics.OutcomeNotFound).Inc()
		writeError(w, http.StatusNotFound, "Tracked record not found", err)
	default:
		metrics.TrackedWritesTotal.WithLabelValues(op, metrics.OutcomeError).Inc()
		logger.Error().Err(err).Str("op", op).Msg("Tracked record write failed")
		writeError(w, http.StatusInternalServerError, "Failed to write tracked record", err)
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeValidationError reports every failed field of a validator error.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		fields[fieldPath(fe.Namespace())] = rule
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation",
		Details: fields,
	})
}

// fieldPath drops the root struct name: "ReconcileRequest.Scope.Semester"
// becomes "Scope.Semester".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
