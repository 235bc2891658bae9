// Package memory provides an in-memory attendance.RecordStore.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory mirrors the SQLite store's rules: one record per normalized slot
// and the duty-leave cap per attendance.QuotaKey.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]attendance.TrackedRecord // by username, insertion order
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string][]attendance.TrackedRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Insert adds a record. Fails with ErrDuplicateRecord when the slot is taken
// and with a *QuotaExceededError on the sixth duty-leave record.
func (m *Memory) Insert(_ context.Context, rec attendance.TrackedRecord) (attendance.TrackedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.records[rec.Username]
	ref := rec.Ref()
	if slices.ContainsFunc(existing, ref.Matches) {
		return attendance.TrackedRecord{}, attendance.ErrDuplicateRecord
	}

	if rec.Status == attendance.StatusDutyLeave {
		if countDutyLeave(existing, rec.QuotaKey()) >= attendance.DutyLeaveLimit {
			return attendance.TrackedRecord{}, attendance.NewQuotaExceededError(rec)
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.records[rec.Username] = append(existing, rec)
	return rec, nil
}

func (m *Memory) Delete(_ context.Context, ref attendance.RecordRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.records[ref.Username]
	i := slices.IndexFunc(existing, ref.Matches)
	if i < 0 {
		return attendance.ErrRecordNotFound
	}
	m.records[ref.Username] = slices.Delete(slices.Clone(existing), i, i+1)
	return nil
}

func (m *Memory) List(_ context.Context, username string, scope attendance.Scope) ([]attendance.TrackedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.TrackedRecord
	for _, r := range m.records[username] {
		if scope.Unscoped() || scope.Includes(r) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *Memory) CountDutyLeave(_ context.Context, username, course string, scope attendance.Scope) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return countDutyLeave(m.records[username], attendance.QuotaKeyFor(username, course, scope)), nil
}

func countDutyLeave(records []attendance.TrackedRecord, k attendance.QuotaKey) int {
	n := 0
	for _, r := range records {
		if r.Status == attendance.StatusDutyLeave && r.QuotaKey() == k {
			n++
		}
	}
	return n
}
