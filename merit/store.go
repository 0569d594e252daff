/*
store.go - Persistence interfaces for the computation side

PURPOSE:
  Defines the interfaces between the run engine and the database.
  Implementations live in store/sqlite (production) and store/memory
  (tests). Every method is tenant-scoped.

APPEND-ONLY CONTRACT:
  Result rows are write-once: SaveResults inserts, nothing updates or
  deletes them. A completed run's totals never change; reruns create
  new run records. CompleteRun/FailRun are the only run mutations and
  each fires at most once per run, guarded by the RUNNING status.

SEE ALSO:
  - engine.go: The only consumer of RunStore's write side
  - store/sqlite/sqlite.go: Production implementation
  - store/memory/memory.go: In-memory implementation for tests
*/
package merit

import "context"

// ScenarioStore reads scenario definitions and tracks their status.
type ScenarioStore interface {
	GetScenario(ctx context.Context, tenant TenantID, id ScenarioID) (*Scenario, error)
	SetScenarioStatus(ctx context.Context, tenant TenantID, id ScenarioID, status ScenarioStatus) error
}

// SnapshotStore reads immutable employee snapshot rows. The import
// subsystem owns the write side.
type SnapshotStore interface {
	ListSnapshotEmployees(ctx context.Context, tenant TenantID, snapshot SnapshotID) ([]SnapshotEmployee, error)
}

// BandStore reads pay bands. Bands are reference data for the calculator.
type BandStore interface {
	ListPayBands(ctx context.Context, tenant TenantID) ([]PayBand, error)
}

// RateStore reads the precomputed FX rate table into a base currency.
type RateStore interface {
	RateTable(ctx context.Context, tenant TenantID, baseCurrency string) (RateTable, error)
}

// RunStore persists runs and their result rows.
type RunStore interface {
	// CreateRun inserts a new run in RUNNING state.
	CreateRun(ctx context.Context, run *Run) error

	// CompleteRun stamps totals, quality report and COMPLETE status.
	// Fails with ErrConcurrentModification if the run is not RUNNING.
	CompleteRun(ctx context.Context, run *Run) error

	// FailRun records a structural failure. Same RUNNING guard.
	FailRun(ctx context.Context, tenant TenantID, id RunID, message string) error

	// SaveResults appends result rows for a run. Implementations batch
	// the insert; the chunking is an I/O concern only.
	SaveResults(ctx context.Context, tenant TenantID, results []Result) error

	GetRun(ctx context.Context, tenant TenantID, id RunID) (*Run, error)
	ListRunsByScenario(ctx context.Context, tenant TenantID, scenario ScenarioID) ([]Run, error)
	ListRunsByCycle(ctx context.Context, tenant TenantID, cycle CycleID) ([]Run, error)
	ResultsByRun(ctx context.Context, tenant TenantID, id RunID) ([]Result, error)
}
