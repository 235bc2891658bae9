package attendance

// CourseSummary pairs the official-only ("safe") projection with the one
// that counts corrections and extras, so the caller can show both.
type CourseSummary struct {
	Aggregate CourseAggregate `json:"aggregate"`
	Safe      Projection      `json:"safe"`
	Extra     Projection      `json:"extra"`

	// Diverges is set when the two projections disagree.
	Diverges bool `json:"diverges"`
}

// Summarize projects every course of r against the scope's target.
func Summarize(r *Result) []CourseSummary {
	target := r.Scope.Target()
	courses := r.Courses()
	out := make([]CourseSummary, 0, len(courses))
	for _, a := range courses {
		safe := ProjectSafe(a, target)
		extra := ProjectAdjusted(a, target)
		out = append(out, CourseSummary{
			Aggregate: a,
			Safe:      safe,
			Extra:     extra,
			Diverges:  !safe.Equal(extra),
		})
	}
	return out
}
