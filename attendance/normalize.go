/*
normalize.go - Slot identity across the two data sources

PURPOSE:
  The official feed and the tracked records describe the same class in
  different shapes: packed vs dashed vs slashed dates, Roman numerals vs
  ordinals vs digits for the session, course IDs vs names vs codes. This
  file reduces both to one comparable SlotKey.

RULES:
  Date:    YYYYMMDD | YYYY-MM-DD | DD/MM/YYYY  ->  YYYY-MM-DD
           anything else is returned unchanged and simply never matches
  Session: I..VIII, 1st..8th, first..eighth, 1..8  ->  1..8
           anything else -> SessionUnknown (sorts last, never matches a
           real session)
  Course:  lower-case, all non-alphanumeric runes removed

  Matching is map equality on SlotKey. There is no fuzzy comparison beyond
  these rules. A key with SessionUnknown or an unparsed date is not
  Matchable and never joins another session.

STORAGE IDENTITY:
  Stores key slot uniqueness and the duty-leave cap on StorageKey, so
  "CS 201" / "cs-201" and "01/03/2024" / "2024-03-01" land on one row.
  Unrecognized session labels keep their own (lower-cased) text instead of
  collapsing onto SessionUnknown.
*/
package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// SessionUnknown is the session number for unrecognized labels.
const SessionUnknown = 999

const maxSessionNumber = 8

// SlotKey is the canonical identity of one physical class session.
type SlotKey struct {
	Course  string
	Session int
	Date    string
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Course, k.Session, k.Date)
}

// Matchable reports whether k may join a session from the other source.
func (k SlotKey) Matchable() bool {
	if k.Course == "" || k.Session == SessionUnknown {
		return false
	}
	_, err := time.Parse(time.DateOnly, k.Date)
	return err == nil
}

// =============================================================================
// DATE
// =============================================================================

// dateLayouts are tried in order. "2006-1-2" also accepts zero-padded input.
var dateLayouts = []string{"20060102", "2006-1-2", "2/1/2006"}

// NormalizeDate returns the ISO form of s, or s unchanged when it matches
// none of the accepted shapes.
func NormalizeDate(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if layout == "20060102" && !isPackedDate(trimmed) {
			continue
		}
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

func isPackedDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// SESSION
// =============================================================================

var romanSessions = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5, "vi": 6, "vii": 7, "viii": 8,
}

var wordSessions = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4,
	"fifth": 5, "sixth": 6, "seventh": 7, "eighth": 8,
}

// sessionFillers are words that decorate a label without identifying it,
// as in "Session IV" or "2nd Hour".
var sessionFillers = map[string]bool{
	"session": true, "period": true, "hour": true, "slot": true,
	"class": true, "lecture": true, "no": true,
}

// SessionKey returns the session number as text for recognized labels and
// the trimmed, lower-cased label otherwise.
func SessionKey(label string) string {
	if n := NormalizeSession(label); n != SessionUnknown {
		return strconv.Itoa(n)
	}
	return strings.ToLower(strings.TrimSpace(label))
}

// NormalizeSession maps a session label to 1..8, or SessionUnknown.
func NormalizeSession(label string) int {
	var tokens []string
	for _, f := range strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if !sessionFillers[f] {
			tokens = append(tokens, f)
		}
	}
	if len(tokens) != 1 {
		return SessionUnknown
	}
	n := sessionToken(tokens[0])
	if n < 1 || n > maxSessionNumber {
		return SessionUnknown
	}
	return n
}

func sessionToken(tok string) int {
	if n, ok := romanSessions[tok]; ok {
		return n
	}
	if n, ok := wordSessions[tok]; ok {
		return n
	}
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		if digits, ok := strings.CutSuffix(tok, suffix); ok && digits != "" {
			tok = digits
			break
		}
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return SessionUnknown
	}
	return n
}

// =============================================================================
// COURSE
// =============================================================================

// NormalizeCourse lower-cases s and strips every non-alphanumeric rune.
func NormalizeCourse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// =============================================================================
// KEYS
// =============================================================================

// Key returns the slot key of a tracked record.
func (r TrackedRecord) Key() SlotKey {
	return SlotKey{
		Course:  NormalizeCourse(r.Course),
		Session: NormalizeSession(r.Session),
		Date:    NormalizeDate(r.Date),
	}
}

// StorageKey is the normalized identity under which stores keep a tracked
// record unique.
type StorageKey struct {
	Username string
	Course   string
	Date     string
	Session  string
}

// StorageKey returns the normalized identity of the slot ref addresses.
func (ref RecordRef) StorageKey() StorageKey {
	return StorageKey{
		Username: ref.Username,
		Course:   NormalizeCourse(ref.Course),
		Date:     strings.TrimSpace(NormalizeDate(ref.Date)),
		Session:  SessionKey(ref.Session),
	}
}

// Key returns the primary slot key of an official session, built from the
// first available of course ID, code, name. Used for deduplication.
func (s OfficialSession) Key() SlotKey {
	identities := s.courseIdentities()
	course := ""
	if len(identities) > 0 {
		course = identities[0]
	}
	return s.keyFor(course)
}

// CandidateKeys returns every key a tracked record may use to refer to this
// session: by course name, code or ID, in that order.
func (s OfficialSession) CandidateKeys() []SlotKey {
	names := []string{s.CourseName, s.CourseCode, s.CourseID}
	keys := make([]SlotKey, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		c := NormalizeCourse(n)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		keys = append(keys, s.keyFor(c))
	}
	return keys
}

func (s OfficialSession) courseIdentities() []string {
	var out []string
	for _, n := range []string{s.CourseID, s.CourseCode, s.CourseName} {
		if c := NormalizeCourse(n); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s OfficialSession) keyFor(course string) SlotKey {
	return SlotKey{
		Course:  course,
		Session: NormalizeSession(s.SessionLabel),
		Date:    NormalizeDate(s.Date),
	}
}
