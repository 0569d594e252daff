/*
calculator.go - Per-employee increase calculation

PURPOSE:
  Runs one employee snapshot row through the full recommendation
  pipeline: basis selection, hours normalization, annualization,
  currency normalization, band lookup, rating normalization, zone
  classification, and guideline application.

PIPELINE:
  1. Select the basis amount per the scenario comp basis; a missing
     non-default basis field falls back to base salary and flags
     MISSING_BASIS_FIELD.
  2. Weekly hours outside (0, 168] flag INVALID_HOURS; the scenario's
     standard hours substitute for annualization.
  3. Annualize by standardHours / effectiveHours so part-time and
     full-time compa-ratios are comparable.
  4. Convert to the scenario base currency using the precomputed rate
     table. A currency with no rate is a structural failure that aborts
     the whole run - it cannot be scored per-employee.
  5. Look up the pay band: (grade, basis, country) first, then the
     country-agnostic (grade, basis) band. Absence flags MISSING_BAND.
  6. Normalize the rating; unrecognized text flags INVALID_RATING.
  7. Blocked employees (any blocking flag) keep zero ratio/zone/
     guideline/applied/increase and new = basis. They stay in the
     output for review.
  8. Otherwise guideline = matrix multiplier x budget pct, applied
     starts equal to guideline, increase = basis x applied.
  9. Non-blocking boundary flags BELOW_BAND_MIN / ABOVE_BAND_MAX
     annotate risk alongside a computed increase.

SEE ALSO:
  - matrix.go, zone.go, rating.go: Steps 5-8 building blocks
  - aggregate.go: Run-level rollup of calculator output
*/
package merit

import "github.com/shopspring/decimal"

// maxWeeklyHours bounds a plausible work week.
var maxWeeklyHours = decimal.NewFromInt(168)

// =============================================================================
// BAND INDEX - Country-specific-then-agnostic band lookup
// =============================================================================

// BandIndex resolves pay bands with country fallback. Country-specific
// bands win over the country-agnostic band for the same (grade, basis).
type BandIndex struct {
	byKey map[string]PayBand
}

func NewBandIndex(bands []PayBand) *BandIndex {
	ix := &BandIndex{byKey: make(map[string]PayBand, len(bands))}
	for _, b := range bands {
		ix.byKey[bandKey(b.Grade, b.Basis, b.Country)] = b
	}
	return ix
}

// Lookup returns the band for (grade, basis, country), falling back to
// the country-agnostic band.
func (ix *BandIndex) Lookup(grade string, basis CompBasis, country string) (PayBand, bool) {
	if country != "" {
		if b, ok := ix.byKey[bandKey(grade, basis, country)]; ok {
			return b, true
		}
	}
	b, ok := ix.byKey[bandKey(grade, basis, "")]
	return b, ok
}

func bandKey(grade string, basis CompBasis, country string) string {
	return grade + "|" + string(basis) + "|" + country
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes one Result per snapshot employee. It is stateless
// across employees; rows can be computed in any order.
type Calculator struct {
	Rules        Rules
	Matrix       Matrix
	Bands        *BandIndex
	Rates        RateTable
	BaseCurrency string
}

// NewCalculator builds the guideline matrix for the rules and returns a
// ready calculator.
func NewCalculator(rules Rules, bands []PayBand, rates RateTable, baseCurrency string) (*Calculator, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	matrix, err := BuildMatrix(rules.StepFactor)
	if err != nil {
		return nil, err
	}
	return &Calculator{
		Rules:        rules,
		Matrix:       matrix,
		Bands:        NewBandIndex(bands),
		Rates:        rates,
		BaseCurrency: baseCurrency,
	}, nil
}

// Calculate runs the pipeline for one employee. The only error condition
// is a structural one (missing FX rate); every data problem becomes a
// flag on the returned Result.
func (c *Calculator) Calculate(emp SnapshotEmployee) (Result, error) {
	res := Result{
		EmployeeExternalID: emp.ExternalID,
		Currency:           c.BaseCurrency,
	}

	// 1. Basis selection.
	basisLocal, basisMissing := selectBasis(emp, c.Rules.CompBasis)
	if basisMissing {
		res.Flags = append(res.Flags, FlagMissingBasisField)
	}

	// 2. Hours normalization.
	effectiveHours := emp.WeeklyHours
	if !effectiveHours.IsPositive() || effectiveHours.GreaterThan(maxWeeklyHours) {
		res.Flags = append(res.Flags, FlagInvalidHours)
		effectiveHours = c.Rules.StandardWeeklyHours
	}

	// 3. Annualize to the standard full-time week.
	annualized := basisLocal.Mul(c.Rules.StandardWeeklyHours).Div(effectiveHours)

	// 4. Currency normalization.
	rate, ok := c.Rates.Rate(emp.Currency, c.BaseCurrency)
	if !ok {
		return Result{}, &MissingRateError{Currency: emp.Currency, BaseCurrency: c.BaseCurrency}
	}
	res.BasisAmount = annualized.Div(rate)

	// 5. Band lookup. A band whose midpoint is not positive cannot yield
	// a compa-ratio and counts as missing.
	band, haveBand := c.Bands.Lookup(emp.PayGrade, c.Rules.CompBasis, emp.CountryCode)
	if haveBand && band.Mid.IsPositive() {
		res.BandMin = decimal.NewNullDecimal(band.Min)
		res.BandMid = decimal.NewNullDecimal(band.Mid)
		res.BandMax = decimal.NewNullDecimal(band.Max)
	} else {
		haveBand = false
		res.Flags = append(res.Flags, FlagMissingBand)
	}

	// 6. Rating normalization.
	rating, ratingOK := NormalizeRating(emp.RatingRaw)
	if !ratingOK {
		res.Flags = append(res.Flags, FlagInvalidRating)
	}
	res.Rating = rating

	// 7. Blocked employees keep zeroes and new = basis.
	if res.Flags.Blocked() {
		res.NewAmount = res.BasisAmount
		return res, nil
	}

	// 8. Ratio, zone, guideline.
	ratio, _ := CompaRatio(res.BasisAmount, band.Mid)
	res.CompaRatio = decimal.NewNullDecimal(ratio)
	res.Zone = ClassifyCompaRatio(ratio, c.Rules.Threshold1, c.Rules.Threshold2, c.Rules.Threshold3)

	res.GuidelinePct = c.Matrix.Multiplier(rating, res.Zone).Mul(c.Rules.BudgetPct)
	res.AppliedPct = res.GuidelinePct
	res.IncreaseAmount = res.BasisAmount.Mul(res.AppliedPct)
	res.NewAmount = res.BasisAmount.Add(res.IncreaseAmount)

	// 9. Boundary annotations.
	if ratio.LessThan(c.Rules.Threshold1) {
		res.Flags = append(res.Flags, FlagBelowBandMin)
	}
	if ratio.GreaterThanOrEqual(c.Rules.Threshold3) {
		res.Flags = append(res.Flags, FlagAboveBandMax)
	}

	return res, nil
}

// selectBasis picks the configured pay field, falling back to base salary
// when a non-default field is absent. missing reports the fallback.
func selectBasis(emp SnapshotEmployee, basis CompBasis) (amount decimal.Decimal, missing bool) {
	switch basis {
	case BasisTargetCash:
		if emp.TargetCash.Valid && emp.TargetCash.Decimal.IsPositive() {
			return emp.TargetCash.Decimal, false
		}
		return emp.BaseSalary, true
	case BasisTotalGuaranteed:
		if emp.TotalGuaranteed.Valid && emp.TotalGuaranteed.Decimal.IsPositive() {
			return emp.TotalGuaranteed.Decimal, false
		}
		return emp.BaseSalary, true
	default:
		return emp.BaseSalary, false
	}
}
