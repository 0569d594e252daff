/*
validator.go - Payroll readiness validation

PURPOSE:
  Produces a structured report on whether a cycle is payroll-ready:
  plans exist and are all locked, effective recommendations exist,
  the budget envelope holds, currencies are consistent, and coverage
  against the snapshot headcount looks sane. The report is consumed
  both directly (ValidatePayrollReadiness operation) and by the
  publication gate, which requires zero error-severity issues.

PROSPECTIVE MODE:
  Before the first publication no effective recommendations exist yet,
  so the gate validates against the candidate run's result rows as the
  prospective recommendation set. The report logic is identical; only
  the row source differs.

ISSUE CODES:
  NO_MANAGER_PLANS             error
  PLANS_NOT_LOCKED             error
  NO_EFFECTIVE_RECS            error
  BUDGET_EXCEEDED_AMOUNT       error
  BUDGET_CLOSE_TO_LIMIT        warning (> 98% of budget)
  MULTI_CURRENCY_RECS          warning
  LOW_REC_COVERAGE_VS_SNAPSHOT warning (< 50% of snapshot headcount)
*/
package publish

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Issue struct {
	Code     string         `json:"code"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

type ReportSummary struct {
	PlansTotal             int             `json:"manager_plans_total"`
	PlansLocked            int             `json:"manager_plans_locked"`
	EffectiveRecsCount     int             `json:"effective_recommendations_count"`
	TotalRecommendedAmount decimal.Decimal `json:"total_recommended_amount"`
}

// Report is the validator output. OK is true when no error-severity
// issue is present; warnings alone do not fail readiness.
type Report struct {
	OK          bool          `json:"ok"`
	CycleID     merit.CycleID `json:"cycle_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     ReportSummary `json:"summary"`
	Issues      []Issue       `json:"issues"`
}

// HasErrors reports whether any error-severity issue is present.
func (r *Report) HasErrors() bool { return !r.OK }

// budgetWarnRatio is the utilization above which a warning fires.
var budgetWarnRatio = decimal.NewFromFloat(0.98)

// coverageWarnRatio is the rec/headcount ratio below which a warning fires.
var coverageWarnRatio = decimal.NewFromFloat(0.5)

// recRow is the minimal view the checks need, so live recommendations
// and prospective run results share one code path.
type recRow struct {
	amount   decimal.Decimal
	currency string
}

// Validator builds payroll readiness reports.
type Validator struct {
	Cycles    cycle.CycleStore
	Plans     cycle.PlanStore
	Pubs      PublicationStore
	Scenarios merit.ScenarioStore
	Snapshots merit.SnapshotStore

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now().UTC()
}

// Validate reports readiness against the live effective recommendations.
func (v *Validator) Validate(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) (*Report, error) {
	recs, err := v.Pubs.Recommendations(ctx, tenant, cycleID)
	if err != nil {
		return nil, err
	}
	rows := make([]recRow, len(recs))
	for i, r := range recs {
		rows[i] = recRow{amount: r.RecommendedIncreaseAmount, currency: r.Currency}
	}

	var snapshot merit.SnapshotID
	pub, err := v.Pubs.LivePublication(ctx, tenant, cycleID)
	if err != nil {
		return nil, err
	}
	if pub != nil {
		sc, err := v.Scenarios.GetScenario(ctx, tenant, pub.ScenarioID)
		if err != nil {
			return nil, err
		}
		snapshot = sc.SnapshotID
	}
	return v.report(ctx, tenant, cycleID, snapshot, rows)
}

// ValidateProspective reports readiness as if the given run results were
// already the published recommendation set. Used by the publication gate.
func (v *Validator) ValidateProspective(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID, snapshot merit.SnapshotID, results []merit.Result) (*Report, error) {
	rows := make([]recRow, len(results))
	for i, r := range results {
		rows[i] = recRow{amount: r.IncreaseAmount, currency: r.Currency}
	}
	return v.report(ctx, tenant, cycleID, snapshot, rows)
}

func (v *Validator) report(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID, snapshot merit.SnapshotID, rows []recRow) (*Report, error) {
	cyc, err := v.Cycles.GetCycle(ctx, tenant, cycleID)
	if err != nil {
		return nil, err
	}

	issues := []Issue{}

	// 1) Manager plans all locked.
	plans, err := v.Plans.ListPlansByCycle(ctx, tenant, cycleID)
	if err != nil {
		return nil, err
	}
	locked := 0
	var notLocked []map[string]any
	for _, p := range plans {
		if p.IsLocked {
			locked++
		} else {
			notLocked = append(notLocked, map[string]any{
				"id": string(p.ID), "status": string(p.Status), "manager_id": p.ManagerID,
			})
		}
	}
	if len(plans) == 0 {
		issues = append(issues, Issue{
			Code: string(CodeNoManagerPlans), Severity: SeverityError,
			Message: "No manager plans found for this cycle.",
		})
	} else if locked != len(plans) {
		issues = append(issues, Issue{
			Code: "PLANS_NOT_LOCKED", Severity: SeverityError,
			Message: "Not all manager plans are locked.",
			Details: map[string]any{"total": len(plans), "locked": locked, "not_locked": notLocked},
		})
	}

	// 2) Effective recommendations exist.
	if len(rows) == 0 {
		issues = append(issues, Issue{
			Code: "NO_EFFECTIVE_RECS", Severity: SeverityError,
			Message: "No effective recommendations exist for this cycle.",
		})
	}

	total := decimal.Zero
	currencies := map[string]bool{}
	for _, r := range rows {
		total = total.Add(r.amount)
		if r.currency != "" {
			currencies[r.currency] = true
		}
	}

	// 3) Budget sanity, only when the cycle carries a budget envelope.
	if cyc.BudgetAmount.Valid {
		budget := cyc.BudgetAmount.Decimal
		switch {
		case total.GreaterThan(budget):
			issues = append(issues, Issue{
				Code: "BUDGET_EXCEEDED_AMOUNT", Severity: SeverityError,
				Message: "Total recommended increase exceeds the cycle budget amount.",
				Details: map[string]any{
					"budget_amount": budget.String(), "total_recommended_amount": total.String(),
					"currency": cyc.Currency,
				},
			})
		case total.GreaterThan(budget.Mul(budgetWarnRatio)):
			issues = append(issues, Issue{
				Code: "BUDGET_CLOSE_TO_LIMIT", Severity: SeverityWarning,
				Message: "Total recommended increase is close to the cycle budget amount.",
				Details: map[string]any{
					"budget_amount": budget.String(), "total_recommended_amount": total.String(),
					"currency": cyc.Currency,
				},
			})
		}
	}

	// 4) Currency consistency.
	if len(currencies) > 1 {
		list := make([]string, 0, len(currencies))
		for c := range currencies {
			list = append(list, c)
		}
		issues = append(issues, Issue{
			Code: "MULTI_CURRENCY_RECS", Severity: SeverityWarning,
			Message: "Effective recommendations contain multiple currencies. Ensure FX normalization before payroll.",
			Details: map[string]any{"currencies": list},
		})
	}

	// 5) Coverage against snapshot headcount, best effort.
	if snapshot != "" && len(rows) > 0 {
		if emps, err := v.Snapshots.ListSnapshotEmployees(ctx, tenant, snapshot); err == nil && len(emps) > 0 {
			headcount := decimal.NewFromInt(int64(len(emps)))
			recCount := decimal.NewFromInt(int64(len(rows)))
			if recCount.LessThan(headcount.Mul(coverageWarnRatio)) {
				issues = append(issues, Issue{
					Code: "LOW_REC_COVERAGE_VS_SNAPSHOT", Severity: SeverityWarning,
					Message: "Effective recommendations count is low compared to snapshot headcount.",
					Details: map[string]any{
						"snapshot_headcount":        len(emps),
						"effective_recommendations": len(rows),
					},
				})
			}
		}
	}

	ok := true
	for _, i := range issues {
		if i.Severity == SeverityError {
			ok = false
			break
		}
	}

	return &Report{
		OK:          ok,
		CycleID:     cycleID,
		GeneratedAt: v.now(),
		Summary: ReportSummary{
			PlansTotal:             len(plans),
			PlansLocked:            locked,
			EffectiveRecsCount:     len(rows),
			TotalRecommendedAmount: total,
		},
		Issues: issues,
	}, nil
}
