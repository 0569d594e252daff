package merit_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/merit-engine/merit"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func testRules() merit.Rules {
	r := merit.DefaultRules()
	r.BudgetPct = d("0.03")
	r.StepFactor = d("0.2")
	return r
}

func usBand() merit.PayBand {
	return merit.PayBand{
		Grade: "L4", Basis: merit.BasisBaseSalary, Country: "US",
		Min: d("80000"), Mid: d("100000"), Max: d("120000"),
	}
}

func anyCountryBand() merit.PayBand {
	return merit.PayBand{
		Grade: "L4", Basis: merit.BasisBaseSalary, Country: "",
		Min: d("70000"), Mid: d("90000"), Max: d("110000"),
	}
}

func fullTimer(salary string) merit.SnapshotEmployee {
	return merit.SnapshotEmployee{
		ExternalID:  "emp-1",
		CountryCode: "US",
		Currency:    "USD",
		RatingRaw:   "FM",
		PayGrade:    "L4",
		BaseSalary:  d(salary),
		WeeklyHours: d("40"),
	}
}

func newCalc(t *testing.T, bands []merit.PayBand, rates merit.RateTable) *merit.Calculator {
	t.Helper()
	calc, err := merit.NewCalculator(testRules(), bands, rates, "USD")
	require.NoError(t, err)
	return calc
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestCalculate_FullyMeetsAtMidpoint(t *testing.T) {
	// GIVEN: FM employee exactly at band midpoint, step 0.2, budget 3%
	// WHEN: Calculating
	// THEN: ratio 1.0 -> ABOVE_MID, FM multiplier = 1 + 2*0.2 - 2*0.2 = 1.0,
	//       guideline = 1.0 * 3% = 3%, increase = 3000

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(fullTimer("100000"))
	require.NoError(t, err)

	require.False(t, res.Blocked())
	require.True(t, res.CompaRatio.Valid)
	assert.True(t, res.CompaRatio.Decimal.Equal(d("1")))
	assert.Equal(t, merit.ZoneAboveMid, res.Zone)
	assert.True(t, res.GuidelinePct.Equal(d("0.03")))
	assert.True(t, res.IncreaseAmount.Equal(d("3000")))
	assert.True(t, res.NewAmount.Equal(d("103000")))
	assert.Empty(t, res.Flags)
}

func TestCalculate_GuidelineScalesWithMatrixMultiplier(t *testing.T) {
	// GIVEN: FE employee deep below the band minimum
	// WHEN: Calculating
	// THEN: FE BELOW_MIN multiplier = 1 + 4*0.2 = 1.8, guideline = 5.4%

	emp := fullTimer("70000")
	emp.RatingRaw = "FE"

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	assert.Equal(t, merit.ZoneBelowMin, res.Zone)
	assert.True(t, res.GuidelinePct.Equal(d("0.054")))
	// Below t1 is annotated but not blocking.
	assert.True(t, res.Flags.Has(merit.FlagBelowBandMin))
	assert.False(t, res.Blocked())
	assert.True(t, res.IncreaseAmount.Equal(d("70000").Mul(d("0.054"))))
}

func TestCalculate_PartTimeHoursAnnualized(t *testing.T) {
	// GIVEN: A half-time employee paid 50000 at 20 hours/week
	// WHEN: Calculating against a band with midpoint 100000
	// THEN: The annualized basis is 100000 and the ratio is 1.0

	emp := fullTimer("50000")
	emp.WeeklyHours = d("20")

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	assert.True(t, res.BasisAmount.Equal(d("100000")))
	require.True(t, res.CompaRatio.Valid)
	assert.True(t, res.CompaRatio.Decimal.Equal(d("1")))
	assert.Empty(t, res.Flags)
}

func TestCalculate_CurrencyNormalizedBeforeBandComparison(t *testing.T) {
	// GIVEN: A EUR employee and a rate of 0.9 EUR per USD
	// WHEN: Calculating against a USD band
	// THEN: The basis is divided by the rate before the ratio

	emp := fullTimer("90000")
	emp.Currency = "EUR"

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{"EUR": d("0.9")})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	assert.True(t, res.BasisAmount.Equal(d("100000")))
	assert.Equal(t, "USD", res.Currency)
}

func TestCalculate_CountrySpecificBandWinsOverFallback(t *testing.T) {
	// GIVEN: Both a US band (mid 100000) and an any-country band (mid 90000)
	// WHEN: Calculating a US employee at 100000
	// THEN: The US band is used and the ratio is 1.0

	calc := newCalc(t, []merit.PayBand{anyCountryBand(), usBand()}, merit.RateTable{})
	res, err := calc.Calculate(fullTimer("100000"))
	require.NoError(t, err)

	require.True(t, res.BandMid.Valid)
	assert.True(t, res.BandMid.Decimal.Equal(d("100000")))
}

func TestCalculate_FallbackBandUsedForUnknownCountry(t *testing.T) {
	emp := fullTimer("90000")
	emp.CountryCode = "DE"

	calc := newCalc(t, []merit.PayBand{anyCountryBand(), usBand()}, merit.RateTable{})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	require.True(t, res.BandMid.Valid)
	assert.True(t, res.BandMid.Decimal.Equal(d("90000")))
}

// =============================================================================
// FLAGS AND BLOCKING
// =============================================================================

func TestCalculate_MissingBandBlocks(t *testing.T) {
	// GIVEN: No band for the employee's grade
	// WHEN: Calculating
	// THEN: MISSING_BAND blocks; new amount equals the basis, no increase

	emp := fullTimer("100000")
	emp.PayGrade = "L9"

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	assert.True(t, res.Flags.Has(merit.FlagMissingBand))
	assert.True(t, res.Blocked())
	assert.Equal(t, merit.ZoneNone, res.Zone)
	assert.False(t, res.CompaRatio.Valid)
	assert.True(t, res.IncreaseAmount.IsZero())
	assert.True(t, res.NewAmount.Equal(res.BasisAmount))
}

func TestCalculate_DegenerateBandCountsAsMissing(t *testing.T) {
	band := usBand()
	band.Mid = decimal.Zero

	calc := newCalc(t, []merit.PayBand{band}, merit.RateTable{})
	res, err := calc.Calculate(fullTimer("100000"))
	require.NoError(t, err)

	assert.True(t, res.Flags.Has(merit.FlagMissingBand))
	assert.True(t, res.Blocked())
}

func TestCalculate_InvalidRatingBlocks(t *testing.T) {
	emp := fullTimer("100000")
	emp.RatingRaw = "stellar"

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	assert.True(t, res.Flags.Has(merit.FlagInvalidRating))
	assert.True(t, res.Blocked())
	assert.Equal(t, merit.RatingUnknown, res.Rating)
}

func TestCalculate_InvalidHoursBlocksButStillAnnualizes(t *testing.T) {
	// GIVEN: Zero weekly hours
	// WHEN: Calculating
	// THEN: INVALID_HOURS blocks the increase; the basis amount is still
	//       computed using the standard week so the row is reviewable

	emp := fullTimer("100000")
	emp.WeeklyHours = decimal.Zero

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	assert.True(t, res.Flags.Has(merit.FlagInvalidHours))
	assert.True(t, res.Blocked())
	assert.True(t, res.BasisAmount.Equal(d("100000")))
	assert.True(t, res.IncreaseAmount.IsZero())
}

func TestCalculate_HoursAbovePlausibleWeekBlock(t *testing.T) {
	emp := fullTimer("100000")
	emp.WeeklyHours = d("200")

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(emp)
	require.NoError(t, err)

	assert.True(t, res.Flags.Has(merit.FlagInvalidHours))
}

func TestCalculate_MissingBasisFieldFallsBackToBaseSalary(t *testing.T) {
	// GIVEN: A target-cash scenario and an employee without target cash
	// WHEN: Calculating
	// THEN: Base salary substitutes, MISSING_BASIS_FIELD annotates, and
	//       the increase is still computed

	rules := testRules()
	rules.CompBasis = merit.BasisTargetCash
	band := usBand()
	band.Basis = merit.BasisTargetCash

	calc, err := merit.NewCalculator(rules, []merit.PayBand{band}, merit.RateTable{}, "USD")
	require.NoError(t, err)

	res, err := calc.Calculate(fullTimer("100000"))
	require.NoError(t, err)

	assert.True(t, res.Flags.Has(merit.FlagMissingBasisField))
	assert.False(t, res.Blocked())
	assert.False(t, res.IncreaseAmount.IsZero())
}

func TestCalculate_AboveBandMaxAnnotated(t *testing.T) {
	// GIVEN: FM employee at 1.3x the midpoint
	// WHEN: Calculating
	// THEN: ABOVE_MAX zone uses the FM cell 1.0 - 2*0.2 = 0.6 and the
	//       ABOVE_BAND_MAX annotation is present without blocking

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{})
	res, err := calc.Calculate(fullTimer("130000"))
	require.NoError(t, err)

	assert.Equal(t, merit.ZoneAboveMax, res.Zone)
	assert.True(t, res.Flags.Has(merit.FlagAboveBandMax))
	assert.False(t, res.Blocked())
	assert.True(t, res.GuidelinePct.Equal(d("0.6").Mul(d("0.03"))))
}

// =============================================================================
// STRUCTURAL FAILURES
// =============================================================================

func TestCalculate_MissingRateAbortsWithStructuredError(t *testing.T) {
	// GIVEN: A GBP employee and no GBP rate on file
	// WHEN: Calculating
	// THEN: The error identifies the currency and unwraps to ErrMissingRate

	emp := fullTimer("80000")
	emp.Currency = "GBP"

	calc := newCalc(t, []merit.PayBand{usBand()}, merit.RateTable{"EUR": d("0.9")})
	_, err := calc.Calculate(emp)
	require.Error(t, err)

	var rateErr *merit.MissingRateError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "GBP", rateErr.Currency)
	assert.Equal(t, "USD", rateErr.BaseCurrency)
	assert.ErrorIs(t, err, merit.ErrMissingRate)
	assert.True(t, merit.IsStructural(err))
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestAggregate_BudgetIdentityHoldsExactly(t *testing.T) {
	// GIVEN: A mix of computed and blocked results
	// WHEN: Aggregating
	// THEN: approved - applied == remaining exactly, and blocked rows
	//       count toward the baseline but not the applied total

	rules := testRules()
	results := []merit.Result{
		{BasisAmount: d("100000"), IncreaseAmount: d("3000")},
		{BasisAmount: d("80000"), IncreaseAmount: d("1600")},
		{BasisAmount: d("60000"), Flags: merit.FlagSet{merit.FlagMissingBand}},
	}

	totals := merit.Aggregate(rules, results)

	assert.True(t, totals.BaselineTotal.Equal(d("240000")))
	assert.True(t, totals.ApprovedBudgetAmount.Equal(d("7200")))
	assert.True(t, totals.TotalAppliedAmount.Equal(d("4600")))
	assert.True(t, totals.RemainingBudgetAmount.Equal(
		totals.ApprovedBudgetAmount.Sub(totals.TotalAppliedAmount)))
	assert.Equal(t, merit.BudgetWithin, totals.BudgetStatus)
}

func TestAggregate_OverBudgetExactlyAtBoundary(t *testing.T) {
	// GIVEN: Applied equal to approved
	// WHEN: Aggregating
	// THEN: Status stays WITHIN; OVER requires strictly greater

	rules := testRules()
	results := []merit.Result{
		{BasisAmount: d("100000"), IncreaseAmount: d("3000")},
	}
	totals := merit.Aggregate(rules, results)
	assert.Equal(t, merit.BudgetWithin, totals.BudgetStatus)
	assert.True(t, totals.RemainingBudgetAmount.IsZero())

	results[0].IncreaseAmount = d("3000.01")
	totals = merit.Aggregate(rules, results)
	assert.Equal(t, merit.BudgetOver, totals.BudgetStatus)
	assert.True(t, totals.RemainingBudgetAmount.IsNegative())
}

func TestBuildQualityReport_CountsEveryFlagKind(t *testing.T) {
	results := []merit.Result{
		{Flags: merit.FlagSet{merit.FlagMissingBand, merit.FlagInvalidRating}},
		{Flags: merit.FlagSet{merit.FlagMissingBand}},
		{Flags: merit.FlagSet{merit.FlagInvalidHours}},
		{Flags: merit.FlagSet{merit.FlagMissingBasisField, merit.FlagBelowBandMin}},
		{Flags: merit.FlagSet{merit.FlagAboveBandMax}},
		{},
	}
	qr := merit.BuildQualityReport(results)

	assert.Equal(t, 2, qr.MissingBand)
	assert.Equal(t, 1, qr.InvalidRating)
	assert.Equal(t, 1, qr.InvalidHours)
	assert.Equal(t, 1, qr.MissingBasisField)
	assert.Equal(t, 1, qr.BelowBandMin)
	assert.Equal(t, 1, qr.AboveBandMax)
}
