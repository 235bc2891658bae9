/*
projection.go - Bunk projection calculator

PURPOSE:
  Answers two questions for a course:
  - "How many more classes can I miss and still be at or above target?"
  - "How many classes in a row must I attend to get back to target?"

FORMULAS:
  current = 100 * present / total

  Below target (attend x more, added to both sides):
    (present + x) / (total + x) = t / 100
    x = ceil((t*total - 100*present) / (100 - t))
    at t = 100 the formula is undefined; x = total - present

  Above target (miss x more, added to the denominator only):
    present / (total + x) = t / 100
    x = floor((100*present - t*total) / t)
    a margin in (0, 0.9) that floors to zero is reported as exact

INPUT HANDLING:
  Inputs are clamped, never rejected: the caller may show transient values
  while data loads. total <= 0 yields the zero projection.

PRECISION:
  All arithmetic is decimal. The "exactly at target" branch compares
  100*present with t*total exactly instead of comparing binary floats.
*/
package attendance

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// nearTargetMargin is the bunk margin below which the state reads as
	// exactly at target.
	nearTargetMargin = decimal.RequireFromString("0.9")
)

// Projection is the calculator's answer. At most one of IsExact,
// CanBunk > 0 and RequiredToAttend > 0 holds.
type Projection struct {
	IsExact          bool `json:"isExact"`
	CanBunk          int  `json:"canBunk"`
	RequiredToAttend int  `json:"requiredToAttend"`

	// CurrentPercent is informational, rounded to two places.
	CurrentPercent decimal.Decimal `json:"currentPercent"`
}

// Equal compares the actionable fields.
func (p Projection) Equal(o Projection) bool {
	return p.IsExact == o.IsExact && p.CanBunk == o.CanBunk && p.RequiredToAttend == o.RequiredToAttend
}

// Project computes the bunk projection for present out of total classes
// against targetPercent.
func Project(present, total int, targetPercent float64) Projection {
	if total <= 0 {
		return Projection{}
	}
	present = max(0, min(present, total))

	t := clampTarget(targetPercent)
	p := decimal.NewFromInt(int64(present))
	n := decimal.NewFromInt(int64(total))

	attended := p.Mul(hundred) // 100 * present
	needed := t.Mul(n)         // t * total

	result := Projection{CurrentPercent: attended.Div(n).Round(2)}

	switch attended.Cmp(needed) {
	case 0:
		result.IsExact = true

	case -1:
		if t.GreaterThanOrEqual(hundred) {
			result.RequiredToAttend = total - present
			break
		}
		x := needed.Sub(attended).Div(hundred.Sub(t)).Ceil()
		result.RequiredToAttend = int(x.IntPart())

	default:
		bunkable := attended.Sub(needed).Div(t)
		whole := bunkable.Floor()
		if bunkable.IsPositive() && bunkable.LessThan(nearTargetMargin) && whole.IsZero() {
			result.IsExact = true
			break
		}
		result.CanBunk = int(whole.IntPart())
	}
	return result
}

// clampTarget maps targets outside [1, 100], and NaN, to the default.
func clampTarget(target float64) decimal.Decimal {
	if math.IsNaN(target) || target < 1 || target > 100 {
		target = DefaultTargetPercentage
	}
	return decimal.NewFromFloat(target)
}

// ProjectSafe projects from the official-only figures.
func ProjectSafe(a CourseAggregate, targetPercent float64) Projection {
	return Project(a.OfficialPresent, a.OfficialTotal, targetPercent)
}

// ProjectAdjusted projects from the figures including corrections and extras.
func ProjectAdjusted(a CourseAggregate, targetPercent float64) Projection {
	return Project(a.AdjustedPresent(), a.AdjustedTotal(), targetPercent)
}
