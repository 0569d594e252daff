/*
matrix.go - Guideline matrix construction

PURPOSE:
  Builds the rating x zone multiplier table that drives guideline
  increase percentages. The builder is a pure function of the step
  factor; the caller scales matrix multipliers by the scenario's
  approved budget percentage.

SHAPE:
  Five rating rows (FE, E, FM, PM, DNM) by four zone columns
  (BELOW_MIN, BELOW_MID, ABOVE_MID, ABOVE_MAX). Multipliers decrease
  as pay position rises and as the rating drops. PM and DNM rows are
  all zero: underperformers receive no guideline increase regardless
  of pay position. That is intentional policy, not a gap.

ARITHMETIC:
  cap = 1.0
  FE  = {cap+4s, cap+3s, cap+2s, cap}
  E   = FE shifted down by s per cell, except ABOVE_MAX which stays at cap
  FM  = FE shifted down by 2s per cell, including ABOVE_MAX
  Every cell is floored at zero and rounded to 10 decimal places to
  keep floating-point noise out of guideline percentages.

SEE ALSO:
  - calculator.go: Multiplies matrix cells by the budget percentage
*/
package merit

import "github.com/shopspring/decimal"

// Matrix is an immutable guideline multiplier table. Build one with
// BuildMatrix; the zero value returns zero for every lookup.
type Matrix struct {
	cells map[Rating]map[Zone]decimal.Decimal
}

// Multiplier returns the guideline multiplier for a rating/zone pair.
// Unknown ratings or the none-zone resolve to zero.
func (m Matrix) Multiplier(rating Rating, zone Zone) decimal.Decimal {
	row, ok := m.cells[rating]
	if !ok {
		return decimal.Zero
	}
	return row[zone]
}

// BuildMatrix constructs the guideline multiplier table for a step factor.
// The step factor must be positive.
func BuildMatrix(stepFactor decimal.Decimal) (Matrix, error) {
	if !stepFactor.IsPositive() {
		return Matrix{}, &RuleError{Field: "step_factor", Reason: "must be > 0"}
	}

	cap := decimal.NewFromInt(1)
	s := stepFactor
	two := decimal.NewFromInt(2)

	fe := map[Zone]decimal.Decimal{
		ZoneBelowMin: clampCell(cap.Add(s.Mul(decimal.NewFromInt(4)))),
		ZoneBelowMid: clampCell(cap.Add(s.Mul(decimal.NewFromInt(3)))),
		ZoneAboveMid: clampCell(cap.Add(s.Mul(two))),
		ZoneAboveMax: clampCell(cap),
	}

	// E keeps FE's ABOVE_MAX unshifted; FM subtracts 2s from it. The FM
	// ABOVE_MAX cell preserves the source policy table's literal arithmetic.
	e := map[Zone]decimal.Decimal{
		ZoneBelowMin: clampCell(fe[ZoneBelowMin].Sub(s)),
		ZoneBelowMid: clampCell(fe[ZoneBelowMid].Sub(s)),
		ZoneAboveMid: clampCell(fe[ZoneAboveMid].Sub(s)),
		ZoneAboveMax: fe[ZoneAboveMax],
	}

	twoS := s.Mul(two)
	fm := map[Zone]decimal.Decimal{
		ZoneBelowMin: clampCell(fe[ZoneBelowMin].Sub(twoS)),
		ZoneBelowMid: clampCell(fe[ZoneBelowMid].Sub(twoS)),
		ZoneAboveMid: clampCell(fe[ZoneAboveMid].Sub(twoS)),
		ZoneAboveMax: clampCell(fe[ZoneAboveMax].Sub(twoS)),
	}

	zeroRow := func() map[Zone]decimal.Decimal {
		return map[Zone]decimal.Decimal{
			ZoneBelowMin: decimal.Zero,
			ZoneBelowMid: decimal.Zero,
			ZoneAboveMid: decimal.Zero,
			ZoneAboveMax: decimal.Zero,
		}
	}

	return Matrix{cells: map[Rating]map[Zone]decimal.Decimal{
		RatingFarExceeds:    fe,
		RatingExceeds:       e,
		RatingFullyMeets:    fm,
		RatingPartiallyMeet: zeroRow(),
		RatingDoesNotMeet:   zeroRow(),
	}}, nil
}

// clampCell floors a cell at zero and rounds away float noise.
func clampCell(v decimal.Decimal) decimal.Decimal {
	v = v.Round(10)
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
