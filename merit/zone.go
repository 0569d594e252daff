/*
zone.go - Compa-ratio classification

PURPOSE:
  Buckets a compa-ratio (pay / band midpoint) into one of the four
  ordered pay-position zones using the scenario's three ascending
  thresholds. Boundaries are half-open on the lower side: a ratio
  exactly equal to a threshold belongs to the higher zone.

  Classification only happens when a pay band exists; an employee with
  no band gets ZoneNone and a MISSING_BAND flag rather than a default
  bucket (see calculator.go).
*/
package merit

import "github.com/shopspring/decimal"

// ClassifyCompaRatio buckets a compa-ratio against thresholds t1 < t2 < t3.
//
//	ratio <  t1         -> BELOW_MIN
//	t1 <= ratio < t2    -> BELOW_MID
//	t2 <= ratio < t3    -> ABOVE_MID
//	ratio >= t3         -> ABOVE_MAX
func ClassifyCompaRatio(ratio, t1, t2, t3 decimal.Decimal) Zone {
	switch {
	case ratio.LessThan(t1):
		return ZoneBelowMin
	case ratio.LessThan(t2):
		return ZoneBelowMid
	case ratio.LessThan(t3):
		return ZoneAboveMid
	default:
		return ZoneAboveMax
	}
}

// CompaRatio computes pay / midpoint. ok is false when the midpoint is
// not positive (a degenerate band), in which case no ratio exists.
func CompaRatio(pay, midpoint decimal.Decimal) (decimal.Decimal, bool) {
	if !midpoint.IsPositive() {
		return decimal.Decimal{}, false
	}
	return pay.Div(midpoint), true
}
