package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(course string, day int, status attendance.Status) attendance.TrackedRecord {
	return attendance.TrackedRecord{
		Username:     "alice",
		Course:       course,
		Session:      "1",
		Date:         fmt.Sprintf("2024-03-%02d", day),
		Kind:         attendance.KindCorrection,
		Status:       status,
		Semester:     "S1",
		AcademicYear: "2024",
	}
}

// =============================================================================
// INSERT / LIST
// =============================================================================

func TestStore_InsertAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := record("CS201", 5, attendance.StatusPresent)
	rec.Remarks = "marked late by mistake"

	stored, err := store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	extra := record("CS301", 6, attendance.StatusAbsent)
	extra.Kind = attendance.KindExtra
	_, err = store.Insert(ctx, extra)
	require.NoError(t, err)

	list, err := store.List(ctx, "alice", attendance.Scope{Semester: "S1", AcademicYear: "2024"})
	require.NoError(t, err)
	require.Len(t, list, 2)

	got := list[0]
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, "CS201", got.Course)
	assert.Equal(t, "2024-03-05", got.Date)
	assert.Equal(t, attendance.KindCorrection, got.Kind)
	assert.Equal(t, attendance.StatusPresent, got.Status)
	assert.Equal(t, "marked late by mistake", got.Remarks)
	assert.True(t, stored.CreatedAt.Equal(got.CreatedAt))

	assert.Equal(t, attendance.KindExtra, list[1].Kind)
	assert.Empty(t, list[1].Remarks)
}

func TestStore_ListScopes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, record("CS201", 1, attendance.StatusPresent))
	require.NoError(t, err)
	other := record("CS201", 2, attendance.StatusPresent)
	other.Semester = "S2"
	_, err = store.Insert(ctx, other)
	require.NoError(t, err)
	bob := record("CS201", 3, attendance.StatusPresent)
	bob.Username = "bob"
	_, err = store.Insert(ctx, bob)
	require.NoError(t, err)

	list, err := store.List(ctx, "alice", attendance.Scope{Semester: " s1", AcademicYear: "2024 "})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = store.List(ctx, "alice", attendance.Scope{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.List(ctx, "carol", attendance.Scope{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_ListKeepsInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, day := range []int{9, 3, 7} {
		rec := record("CS201", day, attendance.StatusPresent)
		// Sub-second stamps that differ only in trailing zeros
		rec.CreatedAt = base.Add(time.Duration(i) * 100 * time.Millisecond)
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)
	}

	list, err := store.List(ctx, "alice", attendance.Scope{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-03-09", list[0].Date)
	assert.Equal(t, "2024-03-03", list[1].Date)
	assert.Equal(t, "2024-03-07", list[2].Date)
}

// =============================================================================
// CONSTRAINTS
// =============================================================================

func TestStore_DuplicateSlot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, record("CS201", 5, attendance.StatusPresent))
	require.NoError(t, err)

	_, err = store.Insert(ctx, record("CS201", 5, attendance.StatusAbsent))
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)

	// A different user may hold the same slot
	bob := record("CS201", 5, attendance.StatusPresent)
	bob.Username = "bob"
	_, err = store.Insert(ctx, bob)
	assert.NoError(t, err)
}

func TestStore_DutyLeaveTrigger(t *testing.T) {
	// GIVEN: Five duty leaves for CS201 in S1 2024
	store := newTestStore(t)
	ctx := context.Background()

	for day := 1; day <= attendance.DutyLeaveLimit; day++ {
		_, err := store.Insert(ctx, record("CS201", day, attendance.StatusDutyLeave))
		require.NoError(t, err)
	}

	// WHEN: Inserting a sixth
	_, err := store.Insert(ctx, record("CS201", 6, attendance.StatusDutyLeave))

	// THEN: The trigger rejects it as a quota error
	var quota *attendance.QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, "CS201", quota.Course)
	assert.Equal(t, attendance.DutyLeaveLimit, quota.Limit)

	n, err := store.CountDutyLeave(ctx, "alice", "CS201", attendance.Scope{Semester: "S1", AcademicYear: "2024"})
	require.NoError(t, err)
	assert.Equal(t, attendance.DutyLeaveLimit, n)

	// AND: Other statuses, courses and semesters are unaffected
	_, err = store.Insert(ctx, record("CS201", 7, attendance.StatusPresent))
	assert.NoError(t, err)
	_, err = store.Insert(ctx, record("CS301", 7, attendance.StatusDutyLeave))
	assert.NoError(t, err)
	next := record("CS201", 8, attendance.StatusDutyLeave)
	next.AcademicYear = "2025"
	_, err = store.Insert(ctx, next)
	assert.NoError(t, err)
}

func TestStore_DutyLeaveTriggerIgnoresSpelling(t *testing.T) {
	// GIVEN: Five duty leaves for CS201 in S1 2024
	store := newTestStore(t)
	ctx := context.Background()
	for day := 1; day <= attendance.DutyLeaveLimit; day++ {
		_, err := store.Insert(ctx, record("CS201", day, attendance.StatusDutyLeave))
		require.NoError(t, err)
	}

	// WHEN: A sixth names the course and period differently
	for i, course := range []string{"cs-201", "CS 201"} {
		rec := record(course, 10+i, attendance.StatusDutyLeave)
		rec.Semester = " s1"
		_, err := store.Insert(ctx, rec)

		// THEN: The trigger still counts it against the same allowance
		assert.ErrorIs(t, err, attendance.ErrDutyLeaveQuota, course)
	}

	n, err := store.CountDutyLeave(ctx, "alice", "cs 201", attendance.Scope{Semester: "s1", AcademicYear: " 2024"})
	require.NoError(t, err)
	assert.Equal(t, attendance.DutyLeaveLimit, n)
}

func TestStore_DuplicateSlotIgnoresFormat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, record("CS201", 1, attendance.StatusPresent))
	require.NoError(t, err)

	// Same slot as a slashed date, a Roman numeral and a spaced course
	dup := record("CS 201", 1, attendance.StatusAbsent)
	dup.Date = "01/03/2024"
	dup.Session = "I"
	_, err = store.Insert(ctx, dup)
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)

	// Unrecognized labels only collide with themselves
	lab := record("CS201", 1, attendance.StatusPresent)
	lab.Session = "Lab A"
	_, err = store.Insert(ctx, lab)
	require.NoError(t, err)
	lab.Session = "Lab B"
	_, err = store.Insert(ctx, lab)
	require.NoError(t, err)
	lab.Session = "lab a "
	_, err = store.Insert(ctx, lab)
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)

	// Delete addresses the slot in any accepted spelling
	require.NoError(t, store.Delete(ctx, attendance.RecordRef{Username: "alice", Course: "cs-201", Date: "20240301", Session: "1st"}))
	list, err := store.List(ctx, "alice", attendance.Scope{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_DeleteFreesQuota(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for day := 1; day <= attendance.DutyLeaveLimit; day++ {
		_, err := store.Insert(ctx, record("CS201", day, attendance.StatusDutyLeave))
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, record("CS201", 1, attendance.StatusDutyLeave).Ref()))

	_, err := store.Insert(ctx, record("CS201", 6, attendance.StatusDutyLeave))
	assert.NoError(t, err)

	err = store.Delete(ctx, record("CS201", 1, attendance.StatusDutyLeave).Ref())
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)
	_, err = store.Insert(ctx, record("CS201", 1, attendance.StatusPresent))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()

	list, err := store.List(ctx, "alice", attendance.Scope{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// The slot index survives the reopen
	_, err = store.Insert(ctx, record("CS201", 1, attendance.StatusAbsent))
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)
}

func TestStore_WorksWithTracker(t *testing.T) {
	tracker := attendance.NewTracker(newTestStore(t))
	ctx := context.Background()

	var records []attendance.TrackedRecord
	var err error
	for day := 1; day <= attendance.DutyLeaveLimit+1; day++ {
		records, err = tracker.Add(ctx, records, record("CS201", day, attendance.StatusDutyLeave))
	}

	assert.ErrorIs(t, err, attendance.ErrDutyLeaveQuota)
	assert.Len(t, records, attendance.DutyLeaveLimit)
}
