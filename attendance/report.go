package attendance

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// =============================================================================
// OFFICIAL REPORT - Nested shape of the institution's feed
// =============================================================================

// Report is the official attendance report as received:
//
//	{
//	  "attendance": {"20240305": {"3": {"course": "101", "session": "3", "attendance": 110}}},
//	  "courses":    {"101": {"name": "Data Structures", "code": "CS201"}},
//	  "sessions":   {"3": {"name": "III"}}
//	}
type Report struct {
	Attendance map[string]map[string]ReportEntry `json:"attendance"`
	Courses    map[string]CourseInfo             `json:"courses"`
	Sessions   map[string]SessionInfo            `json:"sessions"`
}

type ReportEntry struct {
	Course     Ref    `json:"course"`
	Session    Ref    `json:"session,omitempty"`
	Attendance Status `json:"attendance"`
}

type CourseInfo struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type SessionInfo struct {
	Name string `json:"name"`
}

// Ref is an identifier the feed sends either as a string or as a number.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Ref(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = Ref(n.String())
	return nil
}

// Flatten returns the report's marks in ascending date order and, within a
// date, ascending session-key order (numeric keys compare numerically).
func (rep Report) Flatten() []OfficialSession {
	dates := sortedKeys(rep.Attendance)
	var out []OfficialSession
	for _, date := range dates {
		day := rep.Attendance[date]
		for _, key := range sortedKeys(day) {
			entry := day[key]
			course := rep.Courses[string(entry.Course)]
			out = append(out, OfficialSession{
				CourseID:     string(entry.Course),
				CourseName:   course.Name,
				CourseCode:   course.Code,
				Date:         date,
				SessionLabel: rep.sessionLabel(key, entry),
				Status:       entry.Attendance,
			})
		}
	}
	return out
}

// sessionLabel resolves the display label of an entry: the session table
// name for the entry's session, the entry's raw session, the session table
// name for the slot key, and finally the slot key itself.
func (rep Report) sessionLabel(key string, entry ReportEntry) string {
	if entry.Session != "" {
		if info, ok := rep.Sessions[string(entry.Session)]; ok && info.Name != "" {
			return info.Name
		}
		return string(entry.Session)
	}
	if info, ok := rep.Sessions[key]; ok && info.Name != "" {
		return info.Name
	}
	return key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil && a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
