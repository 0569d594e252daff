/*
publisher.go - The publication gate and the publish action

PURPOSE:
  Publishing turns one completed run's result rows into the cycle's
  effective recommendations. The gate demands, in order:

    1. publish capability on the actor
    2. cycle exists; run exists, is COMPLETE, and belongs to a COMPLETE
       scenario of this cycle
    3. at least one manager plan exists          -> NO_MANAGER_PLANS
    4. cycle closed, every plan locked, payroll
       validator clean (prospective mode)        -> GATING_FAILED
    5. run payload numerically alive             -> DEAD_RUN_DATA
    6. no live publication, or overwrite asked   -> ALREADY_PUBLISHED
    7. a reason when the run is not the one the
       system recommends                         -> ErrReasonRequired

  The write is a single atomic replace: the prior publication and its
  rows disappear in the same transaction that inserts the new set.

SEE ALSO:
  - recommend.go: Which run skips the reason requirement
  - validator.go: The prospective readiness report the gate consumes
  - exporter.go: Consuming the published rows
*/
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
)

// Capability names checked against the authz policy table.
const (
	PermPublish  = "publish"
	PermExport   = "export"
	PermValidate = "validate"
)

// PublishRequest carries one publish attempt.
type PublishRequest struct {
	TenantID merit.TenantID
	CycleID  merit.CycleID
	RunID    merit.RunID
	ActorID  string

	// Reason is mandatory unless RunID is the recommended run.
	Reason string

	// Overwrite replaces an existing live publication.
	Overwrite bool
}

// Status is the read-side view of a cycle's publication state.
type Status struct {
	Published        bool         `json:"published"`
	Publication      *Publication `json:"publication,omitempty"`
	RecommendedRunID merit.RunID  `json:"recommended_run_id,omitempty"`
}

// Publisher owns the gate and the publish/status operations.
type Publisher struct {
	Cycles    cycle.CycleStore
	Plans     cycle.PlanStore
	Closures  cycle.ClosureStore
	Scenarios merit.ScenarioStore
	Runs      merit.RunStore
	Pubs      PublicationStore
	Validator *Validator
	Perm      cycle.Permission

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Publish runs the full gate and, on success, atomically replaces the
// cycle's effective recommendations with the run's result rows.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*Publication, error) {
	ok, err := p.Perm.Can(req.ActorID, PermPublish, cycle.ResourceCycle)
	if err != nil {
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if !ok {
		return nil, cycle.ErrForbidden
	}

	if _, err := p.Cycles.GetCycle(ctx, req.TenantID, req.CycleID); err != nil {
		return nil, err
	}

	run, err := p.Runs.GetRun(ctx, req.TenantID, req.RunID)
	if err != nil {
		return nil, err
	}
	if run.Status != merit.RunComplete {
		return nil, &GateError{
			Code:    CodeGatingFailed,
			Message: "run is not complete",
			Details: map[string]any{"run_id": string(run.ID), "run_status": string(run.Status)},
		}
	}
	scenario, err := p.Scenarios.GetScenario(ctx, req.TenantID, run.ScenarioID)
	if err != nil {
		return nil, err
	}
	if scenario.CycleID != req.CycleID {
		return nil, merit.ErrRunNotFound
	}
	if scenario.Status != merit.ScenarioComplete {
		return nil, &GateError{
			Code:    CodeGatingFailed,
			Message: "scenario is not complete",
			Details: map[string]any{"scenario_id": string(scenario.ID), "scenario_status": string(scenario.Status)},
		}
	}

	// Governance preconditions, checked together so the caller sees the
	// full breakdown rather than the first failure.
	plans, err := p.Plans.ListPlansByCycle(ctx, req.TenantID, req.CycleID)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, &GateError{
			Code:    CodeNoManagerPlans,
			Message: "cycle has no manager plans; nothing has been reviewed",
		}
	}
	locked := 0
	for _, pl := range plans {
		if pl.IsLocked {
			locked++
		}
	}
	closures, err := p.Closures.ListClosures(ctx, req.TenantID, req.CycleID)
	if err != nil {
		return nil, err
	}
	closed := cycle.IsClosed(closures)

	results, err := p.Runs.ResultsByRun(ctx, req.TenantID, run.ID)
	if err != nil {
		return nil, err
	}
	report, err := p.Validator.ValidateProspective(ctx, req.TenantID, req.CycleID, scenario.SnapshotID, results)
	if err != nil {
		return nil, err
	}

	if !closed || locked != len(plans) || report.HasErrors() {
		return nil, &GateError{
			Code:    CodeGatingFailed,
			Message: "publication preconditions not met",
			Details: map[string]any{
				"cycle_closed":     closed,
				"plans_total":      len(plans),
				"plans_locked":     locked,
				"all_plans_locked": locked == len(plans),
				"validator_ok":     report.OK,
				"validator_issues": report.Issues,
			},
		}
	}

	if err := checkRunAlive(run, results); err != nil {
		return nil, err
	}

	existing, err := p.Pubs.LivePublication(ctx, req.TenantID, req.CycleID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !req.Overwrite {
		return nil, &GateError{
			Code:    CodeAlreadyPublished,
			Message: "cycle already has a live publication",
			Details: map[string]any{
				"publication_id": string(existing.ID),
				"run_id":         string(existing.RunID),
				"published_at":   existing.PublishedAt,
			},
		}
	}

	recommended, err := p.recommendedRun(ctx, req.TenantID, req.CycleID)
	if err != nil {
		return nil, err
	}
	isRecommended := recommended != nil && recommended.ID == run.ID
	if !isRecommended && req.Reason == "" {
		return nil, ErrReasonRequired
	}

	at := p.now()
	pub := Publication{
		ID:                 PublicationID(uuid.NewString()),
		TenantID:           req.TenantID,
		CycleID:            req.CycleID,
		ScenarioID:         scenario.ID,
		RunID:              run.ID,
		EmployeeCount:      len(results),
		TotalAppliedAmount: run.TotalAppliedAmount,
		Reason:             req.Reason,
		IsRecommended:      isRecommended,
		ActorID:            req.ActorID,
		PublishedAt:        at,
	}
	recs := make([]EffectiveRecommendation, len(results))
	for i, r := range results {
		recs[i] = EffectiveRecommendation{
			TenantID:                  req.TenantID,
			CycleID:                   req.CycleID,
			ScenarioID:                scenario.ID,
			RunID:                     run.ID,
			EmployeeExternalID:        r.EmployeeExternalID,
			CurrentBasePay:            r.BasisAmount,
			RecommendedIncreasePct:    r.AppliedPct,
			RecommendedIncreaseAmount: r.IncreaseAmount,
			EffectiveNewBasePay:       r.NewAmount,
			Currency:                  r.Currency,
			CompBasis:                 scenario.Rules.CompBasis,
			ActorID:                   req.ActorID,
			PublishedAt:               at,
		}
	}
	if err := p.Pubs.Replace(ctx, pub, recs); err != nil {
		return nil, fmt.Errorf("failed to replace publication: %w", err)
	}
	return &pub, nil
}

// GetStatus reports the cycle's live publication and which run the
// system currently recommends.
func (p *Publisher) GetStatus(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) (*Status, error) {
	pub, err := p.Pubs.LivePublication(ctx, tenant, cycleID)
	if err != nil {
		return nil, err
	}
	st := &Status{Published: pub != nil, Publication: pub}
	rec, err := p.recommendedRun(ctx, tenant, cycleID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		st.RecommendedRunID = rec.ID
	}
	return st, nil
}

func (p *Publisher) recommendedRun(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) (*merit.Run, error) {
	runs, err := p.Runs.ListRunsByCycle(ctx, tenant, cycleID)
	if err != nil {
		return nil, err
	}
	return Recommended(runs), nil
}

// checkRunAlive rejects runs whose payload is numerically dead: zero
// rows, a zero baseline, or rows missing identity fields. A dead run
// is fixed by re-running the scenario, not by re-approving anything,
// so it carries its own code.
func checkRunAlive(run *merit.Run, results []merit.Result) error {
	if len(results) == 0 {
		return &GateError{
			Code:    CodeDeadRunData,
			Message: "run has no result rows",
			Details: map[string]any{"run_id": string(run.ID)},
		}
	}
	if run.BaselineTotal.Equal(decimal.Zero) {
		return &GateError{
			Code:    CodeDeadRunData,
			Message: "run baseline total is zero",
			Details: map[string]any{"run_id": string(run.ID)},
		}
	}
	for _, r := range results {
		if r.EmployeeExternalID == "" || r.Currency == "" {
			return &GateError{
				Code:    CodeDeadRunData,
				Message: "run contains result rows without employee identity or currency",
				Details: map[string]any{"run_id": string(run.ID)},
			}
		}
	}
	return nil
}
