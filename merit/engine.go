/*
engine.go - Scenario run orchestration

PURPOSE:
  Executes one scenario end to end: load inputs, compute every
  employee, aggregate totals, persist the run and its result rows.
  Each run is a single stateless computation triggered by one caller;
  every invocation re-reads its inputs fresh.

RUN FLOW:
  CreateRun(RUNNING)
    -> load snapshot employees, pay bands, fx rates
    -> Calculator per employee (order-independent; rows never read
       each other's output)
    -> Aggregate totals + quality report
    -> SaveResults in fixed-size chunks
    -> CompleteRun, mark scenario COMPLETE

FAILURE MODEL:
  Structural problems (empty snapshot, missing FX rate) mark the run
  FAILED and surface the error. Per-employee data problems never fail
  a run; they land as flags on individual result rows.

SEE ALSO:
  - calculator.go: Per-employee pipeline
  - aggregate.go: Totals and quality report
*/
package merit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EngineVersion is stamped on every run record.
const EngineVersion = "2.1.0"

// DefaultResultChunkSize bounds one result insert batch.
const DefaultResultChunkSize = 200

// Engine orchestrates scenario runs.
type Engine struct {
	Scenarios ScenarioStore
	Snapshots SnapshotStore
	Bands     BandStore
	Rates     RateStore
	Runs      RunStore

	// ChunkSize overrides DefaultResultChunkSize when positive.
	ChunkSize int

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) chunkSize() int {
	if e.ChunkSize > 0 {
		return e.ChunkSize
	}
	return DefaultResultChunkSize
}

// Run executes the scenario and returns the completed run record.
func (e *Engine) Run(ctx context.Context, tenant TenantID, scenarioID ScenarioID, actor string) (*Run, error) {
	scenario, err := e.Scenarios.GetScenario(ctx, tenant, scenarioID)
	if err != nil {
		return nil, err
	}
	if err := scenario.Rules.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:            RunID(uuid.NewString()),
		TenantID:      tenant,
		ScenarioID:    scenario.ID,
		Status:        RunRunning,
		EngineVersion: EngineVersion,
		RulesSnapshot: scenario.Rules,
		ExecutedBy:    actor,
		StartedAt:     e.now(),
	}
	if err := e.Runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	completed, err := e.execute(ctx, scenario, run)
	if err != nil {
		if failErr := e.Runs.FailRun(ctx, tenant, run.ID, err.Error()); failErr != nil {
			return nil, fmt.Errorf("run failed (%v) and could not be marked failed: %w", err, failErr)
		}
		return nil, err
	}
	return completed, nil
}

func (e *Engine) execute(ctx context.Context, scenario *Scenario, run *Run) (*Run, error) {
	employees, err := e.Snapshots.ListSnapshotEmployees(ctx, scenario.TenantID, scenario.SnapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if len(employees) == 0 {
		return nil, ErrEmptySnapshot
	}

	bands, err := e.Bands.ListPayBands(ctx, scenario.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pay bands: %w", err)
	}
	rates, err := e.Rates.RateTable(ctx, scenario.TenantID, scenario.BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to load fx rates: %w", err)
	}

	calc, err := NewCalculator(scenario.Rules, bands, rates, scenario.BaseCurrency)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(employees))
	for _, emp := range employees {
		res, err := calc.Calculate(emp)
		if err != nil {
			return nil, err
		}
		res.RunID = run.ID
		results = append(results, res)
	}

	totals := Aggregate(scenario.Rules, results)
	run.Processed = len(results)
	run.BaselineTotal = totals.BaselineTotal
	run.ApprovedBudgetAmount = totals.ApprovedBudgetAmount
	run.TotalAppliedAmount = totals.TotalAppliedAmount
	run.RemainingBudgetAmount = totals.RemainingBudgetAmount
	run.BudgetStatus = totals.BudgetStatus
	run.Quality = BuildQualityReport(results)
	run.FinishedAt = e.now()
	run.Status = RunComplete

	// Chunked writes are an I/O concern only; ordering within the run
	// carries no meaning.
	size := e.chunkSize()
	for start := 0; start < len(results); start += size {
		end := start + size
		if end > len(results) {
			end = len(results)
		}
		if err := e.Runs.SaveResults(ctx, scenario.TenantID, results[start:end]); err != nil {
			return nil, fmt.Errorf("failed to save results: %w", err)
		}
	}

	if err := e.Runs.CompleteRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}
	if err := e.Scenarios.SetScenarioStatus(ctx, scenario.TenantID, scenario.ID, ScenarioComplete); err != nil {
		return nil, fmt.Errorf("failed to mark scenario complete: %w", err)
	}
	return run, nil
}
