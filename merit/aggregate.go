/*
aggregate.go - Run-level budget aggregation and quality report

PURPOSE:
  Rolls calculator output up into the run record: baseline pay total,
  approved budget amount, applied total, remaining budget, and the
  WITHIN/OVER status. Also tallies the per-flag quality report.

INVARIANTS:
  approved - applied == remaining, exactly (decimal arithmetic)
  status == OVER  iff  applied > approved
  Blocked employees contribute their basis amount to the baseline but
  zero to the applied total.
*/
package merit

import "github.com/shopspring/decimal"

// Totals is the budget arithmetic for one run.
type Totals struct {
	BaselineTotal         decimal.Decimal
	ApprovedBudgetAmount  decimal.Decimal
	TotalAppliedAmount    decimal.Decimal
	RemainingBudgetAmount decimal.Decimal
	BudgetStatus          BudgetStatus
}

// Aggregate computes run totals from all result rows, blocked or not.
func Aggregate(rules Rules, results []Result) Totals {
	baseline := decimal.Zero
	applied := decimal.Zero
	for _, r := range results {
		baseline = baseline.Add(r.BasisAmount)
		applied = applied.Add(r.IncreaseAmount)
	}

	approved := baseline.Mul(rules.BudgetPct)
	status := BudgetWithin
	if applied.GreaterThan(approved) {
		status = BudgetOver
	}

	return Totals{
		BaselineTotal:         baseline,
		ApprovedBudgetAmount:  approved,
		TotalAppliedAmount:    applied,
		RemainingBudgetAmount: approved.Sub(applied),
		BudgetStatus:          status,
	}
}

// BuildQualityReport counts each flag kind across a run. Descriptive
// only: completion is never blocked by a bad quality report.
func BuildQualityReport(results []Result) QualityReport {
	var qr QualityReport
	for _, r := range results {
		for _, f := range r.Flags {
			switch f {
			case FlagMissingBand:
				qr.MissingBand++
			case FlagInvalidRating:
				qr.InvalidRating++
			case FlagInvalidHours:
				qr.InvalidHours++
			case FlagMissingBasisField:
				qr.MissingBasisField++
			case FlagBelowBandMin:
				qr.BelowBandMin++
			case FlagAboveBandMax:
				qr.AboveBandMax++
			}
		}
	}
	return qr
}
