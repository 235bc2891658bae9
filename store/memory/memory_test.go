package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

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

func TestMemory_InsertFillsIDAndTime(t *testing.T) {
	m := NewMemory()
	fixed := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	stored, err := m.Insert(context.Background(), record("CS201", 5, attendance.StatusPresent))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, fixed, stored.CreatedAt)

	// Caller-provided values are kept
	rec := record("CS201", 6, attendance.StatusPresent)
	rec.ID = "rec-1"
	stored, err = m.Insert(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", stored.ID)
}

func TestMemory_DuplicateAndQuota(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for day := 1; day <= attendance.DutyLeaveLimit; day++ {
		_, err := m.Insert(ctx, record("CS201", day, attendance.StatusDutyLeave))
		require.NoError(t, err)
	}

	_, err := m.Insert(ctx, record("CS201", 1, attendance.StatusPresent))
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)

	_, err = m.Insert(ctx, record("CS201", 6, attendance.StatusDutyLeave))
	assert.ErrorIs(t, err, attendance.ErrDutyLeaveQuota)

	// The cap is per user
	bob := record("CS201", 6, attendance.StatusDutyLeave)
	bob.Username = "bob"
	_, err = m.Insert(ctx, bob)
	assert.NoError(t, err)
}

func TestMemory_DeleteAndList(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		_, err := m.Insert(ctx, record("CS201", day, attendance.StatusPresent))
		require.NoError(t, err)
	}
	snapshot, err := m.List(ctx, "alice", attendance.Scope{})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, record("CS201", 2, attendance.StatusPresent).Ref()))
	assert.ErrorIs(t, m.Delete(ctx, record("CS201", 2, attendance.StatusPresent).Ref()), attendance.ErrRecordNotFound)

	list, err := m.List(ctx, "alice", attendance.Scope{Semester: "S1", AcademicYear: "2024"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-03-01", list[0].Date)
	assert.Equal(t, "2024-03-03", list[1].Date)

	// Earlier snapshots are not disturbed by the delete
	assert.Len(t, snapshot, 3)
	assert.Equal(t, "2024-03-02", snapshot[1].Date)

	list, err = m.List(ctx, "alice", attendance.Scope{Semester: "S2", AcademicYear: "2024"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemory_NormalizedSlotAndQuota(t *testing.T) {
	// GIVEN: Five duty leaves for CS201 in S1 2024
	m := NewMemory()
	ctx := context.Background()
	for day := 1; day <= attendance.DutyLeaveLimit; day++ {
		_, err := m.Insert(ctx, record("CS201", day, attendance.StatusDutyLeave))
		require.NoError(t, err)
	}

	// WHEN: A sixth is spelled differently
	variant := record("cs-201", 6, attendance.StatusDutyLeave)
	variant.Semester = "s1"
	_, err := m.Insert(ctx, variant)

	// THEN: It still hits the cap
	assert.ErrorIs(t, err, attendance.ErrDutyLeaveQuota)

	n, err := m.CountDutyLeave(ctx, "alice", "CS 201", attendance.Scope{Semester: "S1 ", AcademicYear: "2024"})
	require.NoError(t, err)
	assert.Equal(t, attendance.DutyLeaveLimit, n)

	// AND: The same slot under another date format is a duplicate
	dup := record("CS 201", 1, attendance.StatusPresent)
	dup.Date = "01/03/2024"
	dup.Session = "I"
	_, err = m.Insert(ctx, dup)
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)

	// AND: Distinct unrecognized session labels are distinct slots
	labA := record("CS201", 1, attendance.StatusPresent)
	labA.Session = "Lab A"
	_, err = m.Insert(ctx, labA)
	require.NoError(t, err)
	labB := labA
	labB.Session = "lab b"
	_, err = m.Insert(ctx, labB)
	assert.NoError(t, err)
	labA.Session = " LAB A"
	_, err = m.Insert(ctx, labA)
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)
}

func TestMemory_ConcurrentDutyLeaveRespectsCap(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for day := 1; day <= 20; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			if _, err := m.Insert(ctx, record("CS201", day, attendance.StatusDutyLeave)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(day)
	}
	wg.Wait()

	assert.Equal(t, attendance.DutyLeaveLimit, accepted)
}
