/*
merge.go - Reconciliation merge engine

PURPOSE:
  Overlays the user's tracked records onto the official feed and rolls the
  result up per course.

ALGORITHM:
  1. Index in-scope tracked records by SlotKey (O(n), last record wins).
     Keys with an unknown session or unparsed date are never indexed.
  2. Deduplicate official sessions by their primary key; the later entry
     replaces the earlier one in place. Unknown session labels only
     collapse when the labels themselves are equal.
  3. Probe each official session's candidate keys (name, code, ID). The
     first hit becomes a correction: the tracked status is displayed and
     the official one kept as OriginalStatus. An "extra" record that lands
     on an official session is treated as a correction.
  4. Every in-scope extra that matched nothing becomes a synthetic session.
  5. Sort stably by (date, session number).
  6. Roll up CourseAggregate in one pass over the final list.

PRECEDENCE:
  correction  >  official mark
  official entry N  >  official entry N-1 at the same slot
  out-of-scope tracked records never participate

DETERMINISM:
  Same inputs, same output. No state survives a call, so callers are free
  to re-run Reconcile on every change of either collection.
*/
package attendance

import (
	"sort"
)

// Result is the reconciled view for one scope.
type Result struct {
	Scope      Scope                      `json:"scope"`
	Sessions   []ReconciledSession        `json:"sessions"`
	Aggregates map[string]CourseAggregate `json:"aggregates"`
}

// Day groups the sessions of one calendar date.
type Day struct {
	Date     string              `json:"date"`
	Sessions []ReconciledSession `json:"sessions"`
}

// Reconcile merges official sessions with tracked records for scope.
func Reconcile(official []OfficialSession, tracked []TrackedRecord, scope Scope) *Result {
	records, lookup := indexTracked(tracked, scope)
	courses := newCourseIndex(official)

	deduped := dedupeOfficial(official)
	sessions := make([]ReconciledSession, 0, len(deduped)+len(records))
	matched := make(map[SlotKey]bool, len(records))

	for _, s := range deduped {
		rs := ReconciledSession{
			Key:           s.Key(),
			CourseID:      s.CourseID,
			CourseName:    s.CourseName,
			Date:          NormalizeDate(s.Date),
			SessionLabel:  s.SessionLabel,
			SessionNumber: NormalizeSession(s.SessionLabel),
			Status:        s.Status,
		}
		for _, k := range s.CandidateKeys() {
			i, ok := lookup[k]
			if !ok {
				continue
			}
			rec := records[i]
			rs.OriginalStatus = s.Status
			rs.Status = rec.Status
			rs.IsCorrection = true
			rs.Remarks = rec.Remarks
			matched[k] = true
			break
		}
		sessions = append(sessions, rs)
	}

	for _, rec := range records {
		k := rec.Key()
		if rec.Kind != KindExtra || matched[k] {
			continue
		}
		id, name := courses.resolve(rec.Course)
		sessions = append(sessions, ReconciledSession{
			Key:           k,
			CourseID:      id,
			CourseName:    name,
			Date:          k.Date,
			SessionLabel:  rec.Session,
			SessionNumber: k.Session,
			Status:        rec.Status,
			IsExtra:       true,
			Remarks:       rec.Remarks,
		})
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date < sessions[j].Date
		}
		return sessions[i].SessionNumber < sessions[j].SessionNumber
	})

	return &Result{
		Scope:      scope,
		Sessions:   sessions,
		Aggregates: rollup(sessions, records, courses),
	}
}

// indexTracked keeps in-scope records in first-seen order; a later record at
// the same key replaces the earlier one. Records whose key is not Matchable
// are kept but left out of the lookup.
func indexTracked(tracked []TrackedRecord, scope Scope) ([]TrackedRecord, map[SlotKey]int) {
	records := make([]TrackedRecord, 0, len(tracked))
	lookup := make(map[SlotKey]int, len(tracked))
	for _, rec := range tracked {
		if !scope.Includes(rec) {
			continue
		}
		k := rec.Key()
		if !k.Matchable() {
			records = append(records, rec)
			continue
		}
		if i, ok := lookup[k]; ok {
			records[i] = rec
			continue
		}
		lookup[k] = len(records)
		records = append(records, rec)
	}
	return records, lookup
}

// officialSlot is the dedup identity of an official session. Unrecognized
// session labels only collide with the same label.
type officialSlot struct {
	SlotKey
	Label string
}

func officialSlotOf(s OfficialSession) officialSlot {
	k := officialSlot{SlotKey: s.Key()}
	if k.Session == SessionUnknown {
		k.Label = SessionKey(s.SessionLabel)
	}
	return k
}

// dedupeOfficial keeps the last entry per slot, at the first entry's position.
func dedupeOfficial(official []OfficialSession) []OfficialSession {
	out := make([]OfficialSession, 0, len(official))
	pos := make(map[officialSlot]int, len(official))
	for _, s := range official {
		k := officialSlotOf(s)
		if i, ok := pos[k]; ok {
			out[i] = s
			continue
		}
		pos[k] = len(out)
		out = append(out, s)
	}
	return out
}

func rollup(sessions []ReconciledSession, records []TrackedRecord, courses courseIndex) map[string]CourseAggregate {
	aggs := make(map[string]*CourseAggregate)
	get := func(id, name string) *CourseAggregate {
		a, ok := aggs[id]
		if !ok {
			a = &CourseAggregate{CourseID: id, CourseName: name}
			aggs[id] = a
		}
		return a
	}

	for _, rs := range sessions {
		a := get(rs.CourseID, rs.CourseName)
		if rs.IsExtra {
			a.ExtraCount++
			if rs.Status.IsPositive() {
				a.ExtraPositive++
			}
			continue
		}

		a.OfficialTotal++
		official := rs.officialStatus()
		switch {
		case official.IsPositive():
			a.OfficialPresent++
		case official == StatusAbsent:
			a.OfficialAbsent++
		}
		if rs.IsCorrection && official == StatusAbsent && rs.Status.IsPositive() {
			a.CorrectionPositive++
		}
	}

	for _, rec := range records {
		if rec.Status != StatusDutyLeave {
			continue
		}
		get(courses.resolve(rec.Course)).DutyLeaveUsed++
	}

	out := make(map[string]CourseAggregate, len(aggs))
	for id, a := range aggs {
		out[id] = *a
	}
	return out
}

// Days groups sessions by date, in date order.
func (r *Result) Days() []Day {
	var days []Day
	for _, s := range r.Sessions {
		if n := len(days); n > 0 && days[n-1].Date == s.Date {
			days[n-1].Sessions = append(days[n-1].Sessions, s)
			continue
		}
		days = append(days, Day{Date: s.Date, Sessions: []ReconciledSession{s}})
	}
	return days
}

// Courses returns the aggregates ordered by course ID.
func (r *Result) Courses() []CourseAggregate {
	out := make([]CourseAggregate, 0, len(r.Aggregates))
	for _, a := range r.Aggregates {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

// =============================================================================
// COURSE INDEX - Attributes tracked records to official courses
// =============================================================================

type courseRef struct {
	ID   string
	Name string
}

// courseIndex maps every normalized name, code and ID seen in the official
// feed to its course. The first course to claim an identity keeps it.
type courseIndex map[string]courseRef

func newCourseIndex(official []OfficialSession) courseIndex {
	idx := make(courseIndex)
	for _, s := range official {
		for _, n := range []string{s.CourseID, s.CourseCode, s.CourseName} {
			c := NormalizeCourse(n)
			if c == "" {
				continue
			}
			if _, ok := idx[c]; !ok {
				idx[c] = courseRef{ID: s.CourseID, Name: s.CourseName}
			}
		}
	}
	return idx
}

// resolve returns the official course for a tracked course string, or the
// string itself when no official course matches.
func (idx courseIndex) resolve(course string) (id, name string) {
	if ref, ok := idx[NormalizeCourse(course)]; ok {
		return ref.ID, ref.Name
	}
	return course, course
}
