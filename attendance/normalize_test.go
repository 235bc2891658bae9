package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/attendance-engine/attendance"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"20240305", "2024-03-05"},
		{"2024-03-05", "2024-03-05"},
		{"2024-3-5", "2024-03-05"},
		{"05/03/2024", "2024-03-05"},
		{"5/3/2024", "2024-03-05"},
		{" 20240305 ", "2024-03-05"},

		// Unrecognized shapes come back unchanged
		{"March 5, 2024", "March 5, 2024"},
		{"2024/03/05", "2024/03/05"},
		{"20241305", "20241305"},
		{"2024030", "2024030"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, attendance.NormalizeDate(tt.in), "NormalizeDate(%q)", tt.in)
	}
}

func TestNormalizeSession(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"I", 1},
		{"iv", 4},
		{"VIII", 8},
		{"3", 3},
		{"1st", 1},
		{"2nd", 2},
		{"3rd", 3},
		{"8th", 8},
		{"Second", 2},
		{"Session IV", 4},
		{"Period 5", 5},
		{"2nd Hour", 2},
		{" vi ", 6},

		{"", attendance.SessionUnknown},
		{"IX", attendance.SessionUnknown},
		{"0", attendance.SessionUnknown},
		{"9", attendance.SessionUnknown},
		{"12th", attendance.SessionUnknown},
		{"lab", attendance.SessionUnknown},
		{"I II", attendance.SessionUnknown},
		{"Session", attendance.SessionUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, attendance.NormalizeSession(tt.in), "NormalizeSession(%q)", tt.in)
	}
}

func TestNormalizeCourse(t *testing.T) {
	assert.Equal(t, "cs201", attendance.NormalizeCourse("CS-201"))
	assert.Equal(t, "cs201", attendance.NormalizeCourse(" cs 201 "))
	assert.Equal(t, "datastructures", attendance.NormalizeCourse("Data Structures"))
	assert.Equal(t, "ab", attendance.NormalizeCourse("A|B"))
	assert.Equal(t, "", attendance.NormalizeCourse("--"))
}

func TestSlotKey_DateFormatsAreEquivalent(t *testing.T) {
	// GIVEN: The same class written three ways
	base := attendance.TrackedRecord{Course: "CS201", Session: "III", Date: "2024-03-05"}
	packed := base
	packed.Date = "20240305"
	slashed := base
	slashed.Date = "05/03/2024"

	// THEN: All three produce the same key
	assert.Equal(t, base.Key(), packed.Key())
	assert.Equal(t, base.Key(), slashed.Key())
	assert.Equal(t, attendance.SlotKey{Course: "cs201", Session: 3, Date: "2024-03-05"}, base.Key())
}

func TestSlotKey_SeparatorsCannotCollide(t *testing.T) {
	// A string key joined on "/" could confuse these two; the struct key
	// keeps the fields apart.
	a := attendance.SlotKey{Course: "cs", Session: 1, Date: "2024-03-05"}
	b := attendance.SlotKey{Course: "cs1", Session: 1, Date: "2024-03-05"}
	assert.NotEqual(t, a, b)
}

func TestSlotKey_Matchable(t *testing.T) {
	assert.True(t, attendance.SlotKey{Course: "cs201", Session: 3, Date: "2024-03-05"}.Matchable())
	assert.False(t, attendance.SlotKey{Course: "cs201", Session: attendance.SessionUnknown, Date: "2024-03-05"}.Matchable())
	assert.False(t, attendance.SlotKey{Course: "cs201", Session: 3, Date: "5th March"}.Matchable())
	assert.False(t, attendance.SlotKey{Session: 3, Date: "2024-03-05"}.Matchable())
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "4", attendance.SessionKey("Session IV"))
	assert.Equal(t, "4", attendance.SessionKey("4th"))
	assert.Equal(t, "lab a", attendance.SessionKey(" Lab A "))
	assert.NotEqual(t, attendance.SessionKey("Lab A"), attendance.SessionKey("Lab B"))
}

func TestRecordRef_StorageKey(t *testing.T) {
	a := attendance.RecordRef{Username: "alice", Course: "CS201", Date: "2024-03-01", Session: "I"}
	b := attendance.RecordRef{Username: "alice", Course: "cs-201", Date: " 01/03/2024", Session: "1st"}

	assert.Equal(t, a.StorageKey(), b.StorageKey())
	assert.Equal(t, attendance.StorageKey{Username: "alice", Course: "cs201", Date: "2024-03-01", Session: "1"}, a.StorageKey())

	b.Username = "bob"
	assert.NotEqual(t, a.StorageKey(), b.StorageKey())
}

func TestOfficialSession_Keys(t *testing.T) {
	s := attendance.OfficialSession{
		CourseID:     "101",
		CourseName:   "Data Structures",
		CourseCode:   "CS-201",
		Date:         "20240305",
		SessionLabel: "III",
	}

	assert.Equal(t, attendance.SlotKey{Course: "101", Session: 3, Date: "2024-03-05"}, s.Key())
	assert.Equal(t, []attendance.SlotKey{
		{Course: "datastructures", Session: 3, Date: "2024-03-05"},
		{Course: "cs201", Session: 3, Date: "2024-03-05"},
		{Course: "101", Session: 3, Date: "2024-03-05"},
	}, s.CandidateKeys())

	// Without an ID the code becomes the primary key
	s.CourseID = ""
	assert.Equal(t, "cs201", s.Key().Course)

	// Name and code that normalize alike yield one candidate
	s.CourseName = "cs 201"
	assert.Len(t, s.CandidateKeys(), 1)
}

func TestStatus_Table(t *testing.T) {
	tests := []struct {
		status   attendance.Status
		code     int
		label    string
		positive bool
	}{
		{attendance.StatusPresent, 110, "Present", true},
		{attendance.StatusAbsent, 111, "Absent", false},
		{attendance.StatusOtherLeave, 112, "Other Leave", false},
		{attendance.StatusDutyLeave, 225, "Duty Leave", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.status.Code())
		assert.Equal(t, tt.label, tt.status.Label())
		assert.Equal(t, tt.positive, tt.status.IsPositive())
		assert.True(t, tt.status.Valid())

		fromCode, ok := attendance.StatusFromCode(tt.code)
		assert.True(t, ok)
		assert.Equal(t, tt.status, fromCode)

		fromLabel, ok := attendance.ParseStatus(tt.label)
		assert.True(t, ok)
		assert.Equal(t, tt.status, fromLabel)
	}

	leave, ok := attendance.ParseStatus("Leave")
	assert.True(t, ok)
	assert.Equal(t, attendance.StatusOtherLeave, leave)

	duty, ok := attendance.ParseStatus("duty_leave")
	assert.True(t, ok)
	assert.Equal(t, attendance.StatusDutyLeave, duty)

	_, ok = attendance.ParseStatus("999")
	assert.False(t, ok)
	assert.False(t, attendance.Status(999).Valid())
	assert.Equal(t, "Unknown", attendance.Status(999).Label())
}
