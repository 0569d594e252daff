/*
Package merit provides the core merit-increase computation engine.

PURPOSE:
  This package contains the deterministic computation pipeline for a
  compensation review cycle: the guideline matrix, compa-ratio
  classification, per-employee increase calculation, and run-level
  budget aggregation. It knows nothing about HTTP, storage engines,
  or the approval workflow - those live in api/, store/, and cycle/.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rules: Scenario-level parameters (budget %, step factor, thresholds)
  - SnapshotEmployee: Immutable employee input row
  - PayBand: Salary range for a (grade, basis, country)
  - Result: One employee's computed recommendation with quality flags
  - Run: The aggregate outcome of one scenario execution

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every pay amount, ratio, and percentage
  2. Immutability: Results are append-only; reruns create new runs
  3. Flags over failures: Bad per-employee input flags the row, never
     aborts the run
  4. Type safety: Strong typing for tenant/cycle/scenario/run IDs

SEE ALSO:
  - matrix.go: Guideline matrix construction
  - calculator.go: Per-employee pipeline
  - aggregate.go: Budget totals and quality report
  - engine.go: Run orchestration and persistence
*/
package merit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type CycleID string
type ScenarioID string
type SnapshotID string
type RunID string

// =============================================================================
// COMP BASIS - Which pay field the review is computed against
// =============================================================================

type CompBasis string

const (
	BasisBaseSalary      CompBasis = "BASE_SALARY"
	BasisTargetCash      CompBasis = "ANNUAL_TARGET_CASH"
	BasisTotalGuaranteed CompBasis = "TOTAL_GUARANTEED"
)

func (b CompBasis) Valid() bool {
	switch b {
	case BasisBaseSalary, BasisTargetCash, BasisTotalGuaranteed:
		return true
	}
	return false
}

// =============================================================================
// RATING - Canonical five-point performance scale
// =============================================================================

type Rating string

const (
	RatingFarExceeds    Rating = "FE"
	RatingExceeds       Rating = "E"
	RatingFullyMeets    Rating = "FM"
	RatingPartiallyMeet Rating = "PM"
	RatingDoesNotMeet   Rating = "DNM"
	RatingUnknown       Rating = ""
)

// Ratings lists the canonical codes in descending performance order.
var Ratings = []Rating{RatingFarExceeds, RatingExceeds, RatingFullyMeets, RatingPartiallyMeet, RatingDoesNotMeet}

// =============================================================================
// ZONE - Pay position bucket derived from compa-ratio
// =============================================================================

type Zone string

const (
	ZoneBelowMin Zone = "BELOW_MIN"
	ZoneBelowMid Zone = "BELOW_MID"
	ZoneAboveMid Zone = "ABOVE_MID"
	ZoneAboveMax Zone = "ABOVE_MAX"
	ZoneNone     Zone = "" // no band on file; classification skipped
)

// Zones lists the buckets in ascending pay-position order.
var Zones = []Zone{ZoneBelowMin, ZoneBelowMid, ZoneAboveMid, ZoneAboveMax}

// =============================================================================
// FLAGS - Per-employee data-quality annotations
// =============================================================================

type Flag string

const (
	// Blocking flags: the increase cannot be computed.
	FlagMissingBand   Flag = "MISSING_BAND"
	FlagInvalidRating Flag = "INVALID_RATING"
	FlagInvalidHours  Flag = "INVALID_HOURS"

	// Informational flags: the increase is still computed.
	FlagMissingBasisField Flag = "MISSING_BASIS_FIELD"
	FlagBelowBandMin      Flag = "BELOW_BAND_MIN"
	FlagAboveBandMax      Flag = "ABOVE_BAND_MAX"
)

// Blocking reports whether this flag prevents computing an increase.
// INVALID_HOURS is blocking per policy even though the engine substitutes
// standard hours for annualization: the substituted compa-ratio is not
// trusted enough to drive a pay change without review.
func (f Flag) Blocking() bool {
	switch f {
	case FlagMissingBand, FlagInvalidRating, FlagInvalidHours:
		return true
	}
	return false
}

// FlagSet is an ordered collection of flags for one employee result.
type FlagSet []Flag

func (fs FlagSet) Has(f Flag) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// Blocked reports whether any blocking flag is present.
func (fs FlagSet) Blocked() bool {
	for _, x := range fs {
		if x.Blocking() {
			return true
		}
	}
	return false
}

// =============================================================================
// RULES - Scenario-level computation parameters
// =============================================================================

// Rules are the scenario parameters that shape the guideline matrix and
// the classifier thresholds. Thresholds must satisfy t1 < t2 < t3.
type Rules struct {
	CompBasis           CompBasis
	BudgetPct           decimal.Decimal // approved budget as fraction of baseline, [0, 1]
	StepFactor          decimal.Decimal // matrix step, > 0
	Threshold1          decimal.Decimal
	Threshold2          decimal.Decimal
	Threshold3          decimal.Decimal
	StandardWeeklyHours decimal.Decimal // full-time reference for annualization
}

// DefaultRules mirrors the engine defaults applied when a scenario omits
// rule parameters.
func DefaultRules() Rules {
	return Rules{
		CompBasis:           BasisBaseSalary,
		BudgetPct:           decimal.NewFromFloat(0.03),
		StepFactor:          decimal.NewFromFloat(0.005),
		Threshold1:          decimal.NewFromFloat(0.8),
		Threshold2:          decimal.NewFromFloat(1.0),
		Threshold3:          decimal.NewFromFloat(1.2),
		StandardWeeklyHours: decimal.NewFromInt(40),
	}
}

// Validate checks the structural constraints on rule parameters.
func (r Rules) Validate() error {
	if !r.CompBasis.Valid() {
		return &RuleError{Field: "comp_basis", Reason: "unknown comp basis"}
	}
	if !r.StepFactor.IsPositive() {
		return &RuleError{Field: "step_factor", Reason: "must be > 0"}
	}
	if r.BudgetPct.IsNegative() || r.BudgetPct.GreaterThan(decimal.NewFromInt(1)) {
		return &RuleError{Field: "budget_pct", Reason: "must be within [0, 1]"}
	}
	if !r.Threshold1.LessThan(r.Threshold2) || !r.Threshold2.LessThan(r.Threshold3) {
		return &RuleError{Field: "thresholds", Reason: "must be strictly ascending"}
	}
	if !r.StandardWeeklyHours.IsPositive() {
		return &RuleError{Field: "standard_weekly_hours", Reason: "must be > 0"}
	}
	return nil
}

// =============================================================================
// SCENARIO & CYCLE INPUTS
// =============================================================================

type ScenarioStatus string

const (
	ScenarioDraft    ScenarioStatus = "DRAFT"
	ScenarioComplete ScenarioStatus = "COMPLETE"
	ScenarioArchived ScenarioStatus = "ARCHIVED"
)

// Scenario selects a snapshot, a comp basis and rule parameters for one
// computation variant within a cycle.
type Scenario struct {
	ID           ScenarioID
	TenantID     TenantID
	CycleID      CycleID
	SnapshotID   SnapshotID
	Name         string
	Status       ScenarioStatus
	BaseCurrency string
	Rules        Rules
	CreatedAt    time.Time
}

// SnapshotEmployee is one immutable employee row from the import subsystem.
// Target cash and total guaranteed pay are optional; WeeklyHours may be
// zero or garbage and is normalized by the calculator.
type SnapshotEmployee struct {
	ExternalID      string
	CountryCode     string
	Currency        string
	RatingRaw       string
	PayGrade        string
	BaseSalary      decimal.Decimal
	TargetCash      decimal.NullDecimal
	TotalGuaranteed decimal.NullDecimal
	WeeklyHours     decimal.Decimal
}

// PayBand is a salary range for a (grade, basis) pair, optionally scoped
// to one country. Country "" matches any country (fallback band).
// Amounts are in the scenario base currency.
type PayBand struct {
	Grade   string
	Basis   CompBasis
	Country string
	Min     decimal.Decimal
	Mid     decimal.Decimal
	Max     decimal.Decimal
}

// RateTable maps a currency code to its precomputed exchange rate into the
// scenario base currency. Rate sourcing is an external concern; the engine
// only consumes the table.
type RateTable map[string]decimal.Decimal

// Rate returns the conversion rate for a currency. The base currency
// itself always resolves to 1.
func (rt RateTable) Rate(currency, baseCurrency string) (decimal.Decimal, bool) {
	if currency == baseCurrency {
		return decimal.NewFromInt(1), true
	}
	r, ok := rt[currency]
	if !ok || !r.IsPositive() {
		return decimal.Decimal{}, false
	}
	return r, true
}

// =============================================================================
// RESULT - One employee's computed recommendation
// =============================================================================

// Result is the per-(run, employee) output row. Owned exclusively by the
// run that created it and never mutated after insert. All amounts are in
// the scenario base currency.
type Result struct {
	RunID              RunID
	EmployeeExternalID string
	Currency           string

	BasisAmount decimal.Decimal // annualized, currency-normalized

	BandMin decimal.NullDecimal
	BandMid decimal.NullDecimal
	BandMax decimal.NullDecimal

	CompaRatio decimal.NullDecimal
	Zone       Zone
	Rating     Rating

	GuidelinePct   decimal.Decimal
	AppliedPct     decimal.Decimal
	IncreaseAmount decimal.Decimal
	NewAmount      decimal.Decimal

	Flags FlagSet
}

// Blocked reports whether the increase was withheld due to a blocking flag.
func (r Result) Blocked() bool { return r.Flags.Blocked() }

// =============================================================================
// RUN - Aggregate outcome of one scenario execution
// =============================================================================

type RunStatus string

const (
	RunRunning  RunStatus = "RUNNING"
	RunComplete RunStatus = "COMPLETE"
	RunFailed   RunStatus = "FAILED"
)

type BudgetStatus string

const (
	BudgetWithin BudgetStatus = "WITHIN"
	BudgetOver   BudgetStatus = "OVER"
)

// QualityReport tallies flag occurrences across a run. Descriptive only:
// it never blocks run completion, it only informs later publication gates.
type QualityReport struct {
	MissingBand       int `json:"missing_band"`
	InvalidRating     int `json:"invalid_rating"`
	InvalidHours      int `json:"invalid_hours"`
	MissingBasisField int `json:"missing_basis_field"`
	BelowBandMin      int `json:"below_band_min"`
	AboveBandMax      int `json:"above_band_max"`
}

// Run records one complete execution of a scenario. Once COMPLETE it is
// append-only; recomputation creates a new run.
type Run struct {
	ID         RunID
	TenantID   TenantID
	ScenarioID ScenarioID
	Status     RunStatus
	Processed  int

	BaselineTotal         decimal.Decimal
	ApprovedBudgetAmount  decimal.Decimal
	TotalAppliedAmount    decimal.Decimal
	RemainingBudgetAmount decimal.Decimal
	BudgetStatus          BudgetStatus

	Quality       QualityReport
	EngineVersion string
	RulesSnapshot Rules
	ExecutedBy    string
	ErrorMessage  string

	StartedAt  time.Time
	FinishedAt time.Time
}
