/*
Package sqlite provides a SQLite-backed attendance.RecordStore.

PURPOSE:
  Persists tracked records (corrections and extras) and enforces the two
  storage-side rules the engine relies on but never checks itself:
  - one record per (username, course, date, session)
  - at most 5 Duty Leave records per (username, course, semester, year)

  Both rules run on the *_key columns, filled from attendance.StorageKey
  and attendance.QuotaKey, so spelling variants of one slot or course
  share a row or an allowance. The raw columns keep what the user typed.

KEY TABLES:
  tracked_records: user-authored corrections and extras

ENFORCEMENT:
  idx_tracked_records_slot:      unique index, duplicate slot -> ErrDuplicateRecord
  trg_duty_leave_quota:          BEFORE INSERT trigger, RAISE(ABORT) on the
                                 sixth duty-leave row -> *QuotaExceededError

  The trigger is the authority. A concurrent writer cannot slip past it the
  way an application-side count could.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  tracker := attendance.NewTracker(store)

SEE ALSO:
  - attendance/quota.go: RecordStore interface and Tracker
  - store/memory/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/attendance"
)

const (
	// quotaMessage is the RAISE text of the duty-leave trigger.
	quotaMessage = "duty leave limit exceeded"

	// timeLayout is fixed-width so created_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store implements attendance.RecordStore using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS tracked_records (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		course TEXT NOT NULL,
		session TEXT NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('correction', 'extra')),
		attendance INTEGER NOT NULL,
		semester TEXT NOT NULL,
		academic_year TEXT NOT NULL,
		remarks TEXT,
		created_at TEXT NOT NULL,
		course_key TEXT NOT NULL,
		date_key TEXT NOT NULL,
		session_key TEXT NOT NULL,
		semester_key TEXT NOT NULL,
		year_key TEXT NOT NULL
	);

	-- One record per normalized slot for a user
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tracked_records_slot
		ON tracked_records(username, course_key, date_key, session_key);

	-- Hot path: listing a user's records for a semester
	CREATE INDEX IF NOT EXISTS idx_tracked_records_scope
		ON tracked_records(username, semester_key, year_key);

	-- Duty leave cap per course and semester
	CREATE TRIGGER IF NOT EXISTS trg_duty_leave_quota
	BEFORE INSERT ON tracked_records
	WHEN NEW.attendance = %[1]d
	BEGIN
		SELECT RAISE(ABORT, '%[3]s')
		WHERE (
			SELECT COUNT(*) FROM tracked_records
			WHERE username = NEW.username
			  AND course_key = NEW.course_key
			  AND semester_key = NEW.semester_key
			  AND year_key = NEW.year_key
			  AND attendance = %[1]d
		) >= %[2]d;
	END;
	`, attendance.StatusDutyLeave.Code(), attendance.DutyLeaveLimit, quotaMessage)

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE IMPLEMENTATION
// =============================================================================

// Insert stores a tracked record.
func (s *Store) Insert(ctx context.Context, rec attendance.TrackedRecord) (attendance.TrackedRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	slot := rec.Ref().StorageKey()
	quota := rec.QuotaKey()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_records
			(id, username, course, session, date, kind, attendance, semester, academic_year, remarks, created_at,
			 course_key, date_key, session_key, semester_key, year_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Username, rec.Course, rec.Session, rec.Date,
		string(rec.Kind), rec.Status.Code(), rec.Semester, rec.AcademicYear,
		nullString(rec.Remarks), rec.CreatedAt.UTC().Format(timeLayout),
		slot.Course, slot.Date, slot.Session, quota.Semester, quota.AcademicYear,
	)
	switch {
	case err == nil:
		return rec, nil
	case isQuotaError(err):
		return attendance.TrackedRecord{}, attendance.NewQuotaExceededError(rec)
	case isUniqueConstraintError(err):
		return attendance.TrackedRecord{}, attendance.ErrDuplicateRecord
	default:
		return attendance.TrackedRecord{}, fmt.Errorf("failed to insert tracked record: %w", err)
	}
}

// Delete removes the record at ref, matched on the normalized slot.
func (s *Store) Delete(ctx context.Context, ref attendance.RecordRef) error {
	key := ref.StorageKey()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tracked_records
		WHERE username = ? AND course_key = ? AND date_key = ? AND session_key = ?`,
		key.Username, key.Course, key.Date, key.Session,
	)
	if err != nil {
		return fmt.Errorf("failed to delete tracked record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}

// List returns the user's records in insertion order.
func (s *Store) List(ctx context.Context, username string, scope attendance.Scope) ([]attendance.TrackedRecord, error) {
	query := `
		SELECT id, username, course, session, date, kind, attendance, semester, academic_year, remarks, created_at
		FROM tracked_records
		WHERE username = ?`
	args := []any{username}
	if !scope.Unscoped() {
		key := attendance.QuotaKeyFor(username, "", scope)
		query += `
		  AND semester_key = ?
		  AND year_key = ?`
		args = append(args, key.Semester, key.AcademicYear)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked records: %w", err)
	}
	defer rows.Close()

	var result []attendance.TrackedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// CountDutyLeave returns how many duty-leave records the user holds for the
// course in scope, on the same keys the trigger counts.
func (s *Store) CountDutyLeave(ctx context.Context, username, course string, scope attendance.Scope) (int, error) {
	key := attendance.QuotaKeyFor(username, course, scope)
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tracked_records
		WHERE username = ? AND course_key = ? AND semester_key = ? AND year_key = ? AND attendance = ?`,
		key.Username, key.Course, key.Semester, key.AcademicYear, attendance.StatusDutyLeave.Code(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count duty leave: %w", err)
	}
	return n, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func scanRecord(rows *sql.Rows) (attendance.TrackedRecord, error) {
	var (
		rec       attendance.TrackedRecord
		kind      string
		code      int
		remarks   sql.NullString
		createdAt string
	)
	if err := rows.Scan(&rec.ID, &rec.Username, &rec.Course, &rec.Session, &rec.Date,
		&kind, &code, &rec.Semester, &rec.AcademicYear, &remarks, &createdAt); err != nil {
		return attendance.TrackedRecord{}, fmt.Errorf("failed to scan tracked record: %w", err)
	}
	rec.Kind = attendance.Kind(kind)
	rec.Status = attendance.Status(code)
	rec.Remarks = remarks.String
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isQuotaError(err error) bool {
	return err != nil && strings.Contains(err.Error(), quotaMessage)
}
