/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (merit stores, cycle stores,
  publish.PublicationStore) using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  merit.ScenarioStore / SnapshotStore / BandStore / RateStore / RunStore
  cycle.CycleStore / PlanStore / ClosureStore
  publish.PublicationStore

APPEND-ONLY ENFORCEMENT:
  - run_results rows are insert-only; a completed run's totals never change
  - approval_events, plan_lock_events and cycle_closure_events are
    insert-only audit trails
  - effective_recommendations are replaced as a whole set inside one
    transaction, never row-by-row

CONDITIONAL UPDATES:
  Plan transitions and lock flips are guarded UPDATEs (WHERE status IN
  expected / WHERE is_locked = opposite). Zero rows affected means the
  row moved underneath us: merit.ErrConcurrentModification.

KEY TABLES:
  cycles, scenarios:         Review configuration
  snapshot_employees:        Immutable import rows
  pay_bands, fx_rates:       Reference data for the calculator
  runs, run_results:         Computation outputs
  manager_plans:             Cached governance state
  approval_events,
  plan_lock_events,
  cycle_closure_events:      Append-only audit trails
  publications,
  effective_recommendations: The payroll-facing artifact

TENANT SCOPING:
  Every query filters on tenant_id. No cross-tenant read path exists.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/merit.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - merit/store.go, cycle/store.go, publish/types.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/factory"
	"github.com/warp/merit-engine/merit"
	"github.com/warp/merit-engine/publish"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db    *sql.DB
	rules *factory.RulesFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, rules: factory.NewRulesFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		starts_on TEXT NOT NULL,
		ends_on TEXT NOT NULL,
		budget_amount TEXT,
		currency TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		cycle_id TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		base_currency TEXT NOT NULL,
		rules_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_scenarios_cycle
		ON scenarios(tenant_id, cycle_id);

	-- Immutable import rows; the import subsystem owns the write side.
	CREATE TABLE IF NOT EXISTS snapshot_employees (
		tenant_id TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		external_id TEXT NOT NULL,
		country_code TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL,
		rating_raw TEXT NOT NULL DEFAULT '',
		pay_grade TEXT NOT NULL DEFAULT '',
		base_salary TEXT NOT NULL,
		target_cash TEXT,
		total_guaranteed TEXT,
		weekly_hours TEXT NOT NULL,
		PRIMARY KEY (tenant_id, snapshot_id, external_id)
	);

	CREATE TABLE IF NOT EXISTS pay_bands (
		tenant_id TEXT NOT NULL,
		grade TEXT NOT NULL,
		basis TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		min_amount TEXT NOT NULL,
		mid_amount TEXT NOT NULL,
		max_amount TEXT NOT NULL,
		PRIMARY KEY (tenant_id, grade, basis, country)
	);

	CREATE TABLE IF NOT EXISTS fx_rates (
		tenant_id TEXT NOT NULL,
		base_currency TEXT NOT NULL,
		currency TEXT NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (tenant_id, base_currency, currency)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		scenario_id TEXT NOT NULL,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		baseline_total TEXT NOT NULL DEFAULT '0',
		approved_budget_amount TEXT NOT NULL DEFAULT '0',
		total_applied_amount TEXT NOT NULL DEFAULT '0',
		remaining_budget_amount TEXT NOT NULL DEFAULT '0',
		budget_status TEXT NOT NULL DEFAULT '',
		quality_json TEXT NOT NULL DEFAULT '{}',
		engine_version TEXT NOT NULL,
		rules_json TEXT NOT NULL,
		executed_by TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT,
		PRIMARY KEY (tenant_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_scenario
		ON runs(tenant_id, scenario_id);

	-- Append-only: no UPDATE or DELETE path exists for result rows.
	CREATE TABLE IF NOT EXISTS run_results (
		run_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		employee_external_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		basis_amount TEXT NOT NULL,
		band_min TEXT,
		band_mid TEXT,
		band_max TEXT,
		compa_ratio TEXT,
		zone TEXT NOT NULL DEFAULT '',
		rating TEXT NOT NULL DEFAULT '',
		guideline_pct TEXT NOT NULL,
		applied_pct TEXT NOT NULL,
		increase_amount TEXT NOT NULL,
		new_amount TEXT NOT NULL,
		flags_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (tenant_id, run_id, employee_external_id)
	);

	CREATE TABLE IF NOT EXISTS manager_plans (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		cycle_id TEXT NOT NULL,
		manager_id TEXT NOT NULL,
		approver_id TEXT NOT NULL,
		status TEXT NOT NULL,
		is_locked INTEGER NOT NULL DEFAULT 0,
		locked_at TEXT,
		approved_at TEXT,
		applied_total TEXT NOT NULL DEFAULT '0',
		employees INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_plans_cycle
		ON manager_plans(tenant_id, cycle_id);

	CREATE TABLE IF NOT EXISTS approval_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_approval_events_plan
		ON approval_events(tenant_id, plan_id, seq);

	CREATE TABLE IF NOT EXISTS plan_lock_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		bulk INTEGER NOT NULL DEFAULT 0,
		at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plan_lock_events_plan
		ON plan_lock_events(tenant_id, plan_id, seq);

	CREATE TABLE IF NOT EXISTS cycle_closure_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		cycle_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_closure_events_cycle
		ON cycle_closure_events(tenant_id, cycle_id, seq);

	-- At most one live publication per cycle.
	CREATE TABLE IF NOT EXISTS publications (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		cycle_id TEXT NOT NULL,
		scenario_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		employee_count INTEGER NOT NULL,
		total_applied_amount TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		is_recommended INTEGER NOT NULL DEFAULT 0,
		actor_id TEXT NOT NULL,
		published_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, cycle_id)
	);

	CREATE TABLE IF NOT EXISTS effective_recommendations (
		tenant_id TEXT NOT NULL,
		cycle_id TEXT NOT NULL,
		scenario_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		employee_external_id TEXT NOT NULL,
		current_base_pay TEXT NOT NULL,
		recommended_increase_pct TEXT NOT NULL,
		recommended_increase_amount TEXT NOT NULL,
		effective_new_base_pay TEXT NOT NULL,
		currency TEXT NOT NULL,
		comp_basis TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		published_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, cycle_id, employee_external_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside one transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// DECIMAL / TIME HELPERS
// =============================================================================

func decFrom(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullDec(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func scanNullDec(s sql.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decFrom(s.String), Valid: true}
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func scanNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// =============================================================================
// CYCLES (cycle.CycleStore + seeding)
// =============================================================================

// CreateCycle inserts a cycle row.
func (s *Store) CreateCycle(ctx context.Context, c cycle.Cycle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (id, tenant_id, name, starts_on, ends_on, budget_amount, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, fmtTime(c.StartsOn), fmtTime(c.EndsOn),
		nullDec(c.BudgetAmount), c.Currency, fmtTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}
	return nil
}

func (s *Store) GetCycle(ctx context.Context, tenant merit.TenantID, id merit.CycleID) (*cycle.Cycle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, starts_on, ends_on, budget_amount, currency, created_at
		FROM cycles WHERE tenant_id = ? AND id = ?`, tenant, id)

	var c cycle.Cycle
	var startsOn, endsOn, createdAt string
	var budget sql.NullString
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &startsOn, &endsOn, &budget, &c.Currency, &createdAt)
	if err == sql.ErrNoRows {
		return nil, merit.ErrCycleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle: %w", err)
	}
	c.StartsOn = parseTime(startsOn)
	c.EndsOn = parseTime(endsOn)
	c.BudgetAmount = scanNullDec(budget)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// =============================================================================
// SCENARIOS (merit.ScenarioStore + seeding)
// =============================================================================

// CreateScenario inserts a scenario row with its rules serialized as JSON.
func (s *Store) CreateScenario(ctx context.Context, sc merit.Scenario) error {
	rulesJSON, err := json.Marshal(s.rules.ToJSON(sc.Rules))
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, tenant_id, cycle_id, snapshot_id, name, status, base_currency, rules_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.TenantID, sc.CycleID, sc.SnapshotID, sc.Name, sc.Status,
		sc.BaseCurrency, string(rulesJSON), fmtTime(sc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scenario: %w", err)
	}
	return nil
}

func (s *Store) GetScenario(ctx context.Context, tenant merit.TenantID, id merit.ScenarioID) (*merit.Scenario, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, cycle_id, snapshot_id, name, status, base_currency, rules_json, created_at
		FROM scenarios WHERE tenant_id = ? AND id = ?`, tenant, id)

	var sc merit.Scenario
	var rulesJSON, createdAt string
	err := row.Scan(&sc.ID, &sc.TenantID, &sc.CycleID, &sc.SnapshotID, &sc.Name,
		&sc.Status, &sc.BaseCurrency, &rulesJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, merit.ErrScenarioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario: %w", err)
	}
	rules, err := s.rules.ParseRules(rulesJSON)
	if err != nil {
		return nil, fmt.Errorf("stored rules are invalid: %w", err)
	}
	sc.Rules = rules
	sc.CreatedAt = parseTime(createdAt)
	return &sc, nil
}

func (s *Store) SetScenarioStatus(ctx context.Context, tenant merit.TenantID, id merit.ScenarioID, status merit.ScenarioStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scenarios SET status = ? WHERE tenant_id = ? AND id = ?`,
		status, tenant, id)
	if err != nil {
		return fmt.Errorf("failed to update scenario status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return merit.ErrScenarioNotFound
	}
	return nil
}

// =============================================================================
// SNAPSHOT EMPLOYEES / PAY BANDS / FX RATES
// =============================================================================

// InsertSnapshotEmployees bulk-inserts snapshot rows in one transaction.
func (s *Store) InsertSnapshotEmployees(ctx context.Context, tenant merit.TenantID, snapshot merit.SnapshotID, emps []merit.SnapshotEmployee) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range emps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO snapshot_employees
				(tenant_id, snapshot_id, external_id, country_code, currency, rating_raw,
				 pay_grade, base_salary, target_cash, total_guaranteed, weekly_hours)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				tenant, snapshot, e.ExternalID, e.CountryCode, e.Currency, e.RatingRaw,
				e.PayGrade, e.BaseSalary.String(), nullDec(e.TargetCash),
				nullDec(e.TotalGuaranteed), e.WeeklyHours.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert snapshot employee %s: %w", e.ExternalID, err)
			}
		}
		return nil
	})
}

func (s *Store) ListSnapshotEmployees(ctx context.Context, tenant merit.TenantID, snapshot merit.SnapshotID) ([]merit.SnapshotEmployee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, country_code, currency, rating_raw, pay_grade,
		       base_salary, target_cash, total_guaranteed, weekly_hours
		FROM snapshot_employees
		WHERE tenant_id = ? AND snapshot_id = ?
		ORDER BY external_id`, tenant, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot employees: %w", err)
	}
	defer rows.Close()

	var out []merit.SnapshotEmployee
	for rows.Next() {
		var e merit.SnapshotEmployee
		var base, hours string
		var target, guaranteed sql.NullString
		if err := rows.Scan(&e.ExternalID, &e.CountryCode, &e.Currency, &e.RatingRaw,
			&e.PayGrade, &base, &target, &guaranteed, &hours); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot employee: %w", err)
		}
		e.BaseSalary = decFrom(base)
		e.TargetCash = scanNullDec(target)
		e.TotalGuaranteed = scanNullDec(guaranteed)
		e.WeeklyHours = decFrom(hours)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertPayBands replaces matching band rows.
func (s *Store) UpsertPayBands(ctx context.Context, tenant merit.TenantID, bands []merit.PayBand) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, b := range bands {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pay_bands (tenant_id, grade, basis, country, min_amount, mid_amount, max_amount)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (tenant_id, grade, basis, country) DO UPDATE SET
					min_amount = excluded.min_amount,
					mid_amount = excluded.mid_amount,
					max_amount = excluded.max_amount`,
				tenant, b.Grade, b.Basis, b.Country,
				b.Min.String(), b.Mid.String(), b.Max.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert pay band: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ListPayBands(ctx context.Context, tenant merit.TenantID) ([]merit.PayBand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT grade, basis, country, min_amount, mid_amount, max_amount
		FROM pay_bands WHERE tenant_id = ?`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to query pay bands: %w", err)
	}
	defer rows.Close()

	var out []merit.PayBand
	for rows.Next() {
		var b merit.PayBand
		var min, mid, max string
		if err := rows.Scan(&b.Grade, &b.Basis, &b.Country, &min, &mid, &max); err != nil {
			return nil, fmt.Errorf("failed to scan pay band: %w", err)
		}
		b.Min, b.Mid, b.Max = decFrom(min), decFrom(mid), decFrom(max)
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetRates replaces the tenant's FX rate table into a base currency.
func (s *Store) SetRates(ctx context.Context, tenant merit.TenantID, baseCurrency string, rates merit.RateTable) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM fx_rates WHERE tenant_id = ? AND base_currency = ?`,
			tenant, baseCurrency); err != nil {
			return fmt.Errorf("failed to clear fx rates: %w", err)
		}
		for currency, rate := range rates {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO fx_rates (tenant_id, base_currency, currency, rate)
				VALUES (?, ?, ?, ?)`,
				tenant, baseCurrency, currency, rate.String()); err != nil {
				return fmt.Errorf("failed to insert fx rate: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) RateTable(ctx context.Context, tenant merit.TenantID, baseCurrency string) (merit.RateTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT currency, rate FROM fx_rates
		WHERE tenant_id = ? AND base_currency = ?`, tenant, baseCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to query fx rates: %w", err)
	}
	defer rows.Close()

	table := make(merit.RateTable)
	for rows.Next() {
		var currency, rate string
		if err := rows.Scan(&currency, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan fx rate: %w", err)
		}
		table[currency] = decFrom(rate)
	}
	return table, rows.Err()
}

// =============================================================================
// RUNS (merit.RunStore)
// =============================================================================

const runColumns = `id, tenant_id, scenario_id, status, processed,
	baseline_total, approved_budget_amount, total_applied_amount,
	remaining_budget_amount, budget_status, quality_json, engine_version,
	rules_json, executed_by, error_message, started_at, finished_at`

func (s *Store) CreateRun(ctx context.Context, run *merit.Run) error {
	rulesJSON, err := json.Marshal(s.rules.ToJSON(run.RulesSnapshot))
	if err != nil {
		return fmt.Errorf("failed to marshal rules snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, tenant_id, scenario_id, status, engine_version, rules_json, executed_by, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TenantID, run.ScenarioID, run.Status,
		run.EngineVersion, string(rulesJSON), run.ExecutedBy, fmtTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *Store) CompleteRun(ctx context.Context, run *merit.Run) error {
	quality, err := json.Marshal(run.Quality)
	if err != nil {
		return fmt.Errorf("failed to marshal quality report: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, processed = ?, baseline_total = ?, approved_budget_amount = ?,
			total_applied_amount = ?, remaining_budget_amount = ?, budget_status = ?,
			quality_json = ?, finished_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?`,
		merit.RunComplete, run.Processed, run.BaselineTotal.String(),
		run.ApprovedBudgetAmount.String(), run.TotalAppliedAmount.String(),
		run.RemainingBudgetAmount.String(), run.BudgetStatus,
		string(quality), fmtTime(run.FinishedAt),
		run.TenantID, run.ID, merit.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return merit.ErrConcurrentModification
	}
	return nil
}

func (s *Store) FailRun(ctx context.Context, tenant merit.TenantID, id merit.RunID, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_message = ?, finished_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?`,
		merit.RunFailed, message, fmtTime(time.Now()),
		tenant, id, merit.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return merit.ErrConcurrentModification
	}
	return nil
}

func (s *Store) SaveResults(ctx context.Context, tenant merit.TenantID, results []merit.Result) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range results {
			flags, err := json.Marshal(r.Flags)
			if err != nil {
				return fmt.Errorf("failed to marshal flags: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO run_results
				(run_id, tenant_id, employee_external_id, currency, basis_amount,
				 band_min, band_mid, band_max, compa_ratio, zone, rating,
				 guideline_pct, applied_pct, increase_amount, new_amount, flags_json)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.RunID, tenant, r.EmployeeExternalID, r.Currency, r.BasisAmount.String(),
				nullDec(r.BandMin), nullDec(r.BandMid), nullDec(r.BandMax),
				nullDec(r.CompaRatio), r.Zone, r.Rating,
				r.GuidelinePct.String(), r.AppliedPct.String(),
				r.IncreaseAmount.String(), r.NewAmount.String(), string(flags),
			)
			if err != nil {
				return fmt.Errorf("failed to insert result row: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) GetRun(ctx context.Context, tenant merit.TenantID, id merit.RunID) (*merit.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE tenant_id = ? AND id = ?`, tenant, id)
	run, err := s.scanRun(row)
	if err == sql.ErrNoRows {
		return nil, merit.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

func (s *Store) ListRunsByScenario(ctx context.Context, tenant merit.TenantID, scenario merit.ScenarioID) ([]merit.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE tenant_id = ? AND scenario_id = ?
		 ORDER BY started_at, id`, tenant, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return s.collectRuns(rows)
}

func (s *Store) ListRunsByCycle(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]merit.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.tenant_id, r.scenario_id, r.status, r.processed,
		        r.baseline_total, r.approved_budget_amount, r.total_applied_amount,
		        r.remaining_budget_amount, r.budget_status, r.quality_json,
		        r.engine_version, r.rules_json, r.executed_by, r.error_message,
		        r.started_at, r.finished_at
		 FROM runs r
		 JOIN scenarios s ON s.tenant_id = r.tenant_id AND s.id = r.scenario_id
		 WHERE r.tenant_id = ? AND s.cycle_id = ?
		 ORDER BY r.started_at, r.id`, tenant, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs by cycle: %w", err)
	}
	return s.collectRuns(rows)
}

func (s *Store) ResultsByRun(ctx context.Context, tenant merit.TenantID, id merit.RunID) ([]merit.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, employee_external_id, currency, basis_amount,
		       band_min, band_mid, band_max, compa_ratio, zone, rating,
		       guideline_pct, applied_pct, increase_amount, new_amount, flags_json
		FROM run_results
		WHERE tenant_id = ? AND run_id = ?
		ORDER BY employee_external_id`, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()

	var out []merit.Result
	for rows.Next() {
		var r merit.Result
		var basis, guideline, applied, increase, newAmount, flagsJSON string
		var bandMin, bandMid, bandMax, ratio sql.NullString
		if err := rows.Scan(&r.RunID, &r.EmployeeExternalID, &r.Currency, &basis,
			&bandMin, &bandMid, &bandMax, &ratio, &r.Zone, &r.Rating,
			&guideline, &applied, &increase, &newAmount, &flagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.BasisAmount = decFrom(basis)
		r.BandMin = scanNullDec(bandMin)
		r.BandMid = scanNullDec(bandMid)
		r.BandMax = scanNullDec(bandMax)
		r.CompaRatio = scanNullDec(ratio)
		r.GuidelinePct = decFrom(guideline)
		r.AppliedPct = decFrom(applied)
		r.IncreaseAmount = decFrom(increase)
		r.NewAmount = decFrom(newAmount)
		if err := json.Unmarshal([]byte(flagsJSON), &r.Flags); err != nil {
			return nil, fmt.Errorf("stored flags are invalid: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(row rowScanner) (*merit.Run, error) {
	var r merit.Run
	var baseline, approved, applied, remaining, quality, rulesJSON, startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.TenantID, &r.ScenarioID, &r.Status, &r.Processed,
		&baseline, &approved, &applied, &remaining, &r.BudgetStatus, &quality,
		&r.EngineVersion, &rulesJSON, &r.ExecutedBy, &r.ErrorMessage,
		&startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.BaselineTotal = decFrom(baseline)
	r.ApprovedBudgetAmount = decFrom(approved)
	r.TotalAppliedAmount = decFrom(applied)
	r.RemainingBudgetAmount = decFrom(remaining)
	if err := json.Unmarshal([]byte(quality), &r.Quality); err != nil {
		return nil, fmt.Errorf("stored quality report is invalid: %w", err)
	}
	rules, err := s.rules.ParseRules(rulesJSON)
	if err != nil {
		return nil, fmt.Errorf("stored rules snapshot is invalid: %w", err)
	}
	r.RulesSnapshot = rules
	r.StartedAt = parseTime(startedAt)
	if t := scanNullTime(finishedAt); t != nil {
		r.FinishedAt = *t
	}
	return &r, nil
}

func (s *Store) collectRuns(rows *sql.Rows) ([]merit.Run, error) {
	defer rows.Close()
	var out []merit.Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// =============================================================================
// MANAGER PLANS (cycle.PlanStore)
// =============================================================================

const planColumns = `id, tenant_id, cycle_id, manager_id, approver_id, status,
	is_locked, locked_at, approved_at, applied_total, employees, created_at, updated_at`

// CreatePlan inserts a manager plan row.
func (s *Store) CreatePlan(ctx context.Context, p cycle.ManagerPlan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manager_plans
		(id, tenant_id, cycle_id, manager_id, approver_id, status, is_locked,
		 locked_at, approved_at, applied_total, employees, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.CycleID, p.ManagerID, p.ApproverID, p.Status,
		p.IsLocked, nullTime(p.LockedAt), nullTime(p.ApprovedAt),
		p.AppliedTotal.String(), p.Employees, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, tenant merit.TenantID, id cycle.PlanID) (*cycle.ManagerPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM manager_plans WHERE tenant_id = ? AND id = ?`, tenant, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, merit.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query plan: %w", err)
	}
	return p, nil
}

func (s *Store) ListPlansByCycle(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]cycle.ManagerPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM manager_plans
		 WHERE tenant_id = ? AND cycle_id = ? ORDER BY id`, tenant, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var out []cycle.ManagerPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPlan(row rowScanner) (*cycle.ManagerPlan, error) {
	var p cycle.ManagerPlan
	var appliedTotal, createdAt, updatedAt string
	var lockedAt, approvedAt sql.NullString
	err := row.Scan(&p.ID, &p.TenantID, &p.CycleID, &p.ManagerID, &p.ApproverID,
		&p.Status, &p.IsLocked, &lockedAt, &approvedAt, &appliedTotal,
		&p.Employees, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.LockedAt = scanNullTime(lockedAt)
	p.ApprovedAt = scanNullTime(approvedAt)
	p.AppliedTotal = decFrom(appliedTotal)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (s *Store) TransitionPlan(ctx context.Context, tenant merit.TenantID, id cycle.PlanID, allowedFrom []cycle.PlanStatus, to cycle.PlanStatus, stampApproval bool, ev cycle.ApprovalEvent) (cycle.PlanStatus, error) {
	var prev cycle.PlanStatus
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT status FROM manager_plans WHERE tenant_id = ? AND id = ?`, tenant, id)
		if err := row.Scan(&prev); err != nil {
			if err == sql.ErrNoRows {
				return merit.ErrPlanNotFound
			}
			return fmt.Errorf("failed to read plan status: %w", err)
		}

		placeholders := make([]string, len(allowedFrom))
		args := []any{to, fmtTime(ev.At)}
		set := `status = ?, updated_at = ?`
		if stampApproval {
			set += `, approved_at = ?`
			args = append(args, fmtTime(ev.At))
		}
		args = append(args, tenant, id)
		for i, st := range allowedFrom {
			placeholders[i] = "?"
			args = append(args, st)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE manager_plans SET `+set+`
			 WHERE tenant_id = ? AND id = ? AND is_locked = 0
			   AND status IN (`+strings.Join(placeholders, ", ")+`)`, args...)
		if err != nil {
			return fmt.Errorf("failed to transition plan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return merit.ErrConcurrentModification
		}
		return appendApprovalEvent(ctx, tx, ev)
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

func (s *Store) SetPlanLock(ctx context.Context, tenant merit.TenantID, id cycle.PlanID, locked bool, restoredStatus cycle.PlanStatus, ev cycle.PlanClosureEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		lockedAt := any(nil)
		if locked {
			lockedAt = fmtTime(ev.At)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE manager_plans
			SET is_locked = ?, status = ?, locked_at = ?, updated_at = ?
			WHERE tenant_id = ? AND id = ? AND is_locked = ?`,
			locked, restoredStatus, lockedAt, fmtTime(ev.At),
			tenant, id, !locked,
		)
		if err != nil {
			return fmt.Errorf("failed to set plan lock: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return merit.ErrConcurrentModification
		}
		return appendLockEvent(ctx, tx, ev)
	})
}

func (s *Store) LockAll(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID, events func(cycle.ManagerPlan) cycle.PlanClosureEvent) (int, error) {
	locked := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+planColumns+` FROM manager_plans
			 WHERE tenant_id = ? AND cycle_id = ? AND is_locked = 0 ORDER BY id`,
			tenant, cycleID)
		if err != nil {
			return fmt.Errorf("failed to query unlocked plans: %w", err)
		}
		var plans []cycle.ManagerPlan
		for rows.Next() {
			p, err := scanPlan(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan plan: %w", err)
			}
			plans = append(plans, *p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, p := range plans {
			ev := events(p)
			res, err := tx.ExecContext(ctx, `
				UPDATE manager_plans
				SET is_locked = 1, status = ?, locked_at = ?, updated_at = ?
				WHERE tenant_id = ? AND id = ? AND is_locked = 0`,
				cycle.PlanLocked, fmtTime(ev.At), fmtTime(ev.At), tenant, p.ID)
			if err != nil {
				return fmt.Errorf("failed to lock plan %s: %w", p.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return merit.ErrConcurrentModification
			}
			if err := appendLockEvent(ctx, tx, ev); err != nil {
				return err
			}
			locked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return locked, nil
}

func appendApprovalEvent(ctx context.Context, tx *sql.Tx, ev cycle.ApprovalEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO approval_events (id, tenant_id, plan_id, action, actor_id, reason, at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM approval_events WHERE tenant_id = ? AND plan_id = ?))`,
		ev.ID, ev.TenantID, ev.PlanID, ev.Action, ev.ActorID, ev.Reason, fmtTime(ev.At),
		ev.TenantID, ev.PlanID,
	)
	if err != nil {
		return fmt.Errorf("failed to append approval event: %w", err)
	}
	return nil
}

func appendLockEvent(ctx context.Context, tx *sql.Tx, ev cycle.PlanClosureEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO plan_lock_events (id, tenant_id, plan_id, action, actor_id, note, bulk, at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM plan_lock_events WHERE tenant_id = ? AND plan_id = ?))`,
		ev.ID, ev.TenantID, ev.PlanID, ev.Action, ev.ActorID, ev.Note, ev.Bulk, fmtTime(ev.At),
		ev.TenantID, ev.PlanID,
	)
	if err != nil {
		return fmt.Errorf("failed to append lock event: %w", err)
	}
	return nil
}

func (s *Store) ApprovalHistory(ctx context.Context, tenant merit.TenantID, id cycle.PlanID) ([]cycle.ApprovalEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, plan_id, action, actor_id, reason, at
		FROM approval_events
		WHERE tenant_id = ? AND plan_id = ?
		ORDER BY seq`, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval history: %w", err)
	}
	defer rows.Close()

	var out []cycle.ApprovalEvent
	for rows.Next() {
		var ev cycle.ApprovalEvent
		var at string
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.PlanID, &ev.Action,
			&ev.ActorID, &ev.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan approval event: %w", err)
		}
		ev.At = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) LockHistory(ctx context.Context, tenant merit.TenantID, id cycle.PlanID) ([]cycle.PlanClosureEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, plan_id, action, actor_id, note, bulk, at
		FROM plan_lock_events
		WHERE tenant_id = ? AND plan_id = ?
		ORDER BY seq`, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lock history: %w", err)
	}
	defer rows.Close()

	var out []cycle.PlanClosureEvent
	for rows.Next() {
		var ev cycle.PlanClosureEvent
		var at string
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.PlanID, &ev.Action,
			&ev.ActorID, &ev.Note, &ev.Bulk, &at); err != nil {
			return nil, fmt.Errorf("failed to scan lock event: %w", err)
		}
		ev.At = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// =============================================================================
// CYCLE CLOSURE LEDGER (cycle.ClosureStore)
// =============================================================================

func (s *Store) AppendClosure(ctx context.Context, ev cycle.AdminClosureEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_closure_events (id, tenant_id, cycle_id, action, actor_id, reason, at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM cycle_closure_events WHERE tenant_id = ? AND cycle_id = ?))`,
		ev.ID, ev.TenantID, ev.CycleID, ev.Action, ev.ActorID, ev.Reason, fmtTime(ev.At),
		ev.TenantID, ev.CycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to append closure event: %w", err)
	}
	return nil
}

func (s *Store) ListClosures(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]cycle.AdminClosureEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, cycle_id, action, actor_id, reason, at
		FROM cycle_closure_events
		WHERE tenant_id = ? AND cycle_id = ?
		ORDER BY seq`, tenant, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query closure events: %w", err)
	}
	defer rows.Close()

	var out []cycle.AdminClosureEvent
	for rows.Next() {
		var ev cycle.AdminClosureEvent
		var at string
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.CycleID, &ev.Action,
			&ev.ActorID, &ev.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan closure event: %w", err)
		}
		ev.At = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// =============================================================================
// PUBLICATIONS (publish.PublicationStore)
// =============================================================================

func (s *Store) LivePublication(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) (*publish.Publication, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, cycle_id, scenario_id, run_id, employee_count,
		       total_applied_amount, reason, is_recommended, actor_id, published_at
		FROM publications WHERE tenant_id = ? AND cycle_id = ?`, tenant, cycleID)

	var p publish.Publication
	var total, publishedAt string
	err := row.Scan(&p.ID, &p.TenantID, &p.CycleID, &p.ScenarioID, &p.RunID,
		&p.EmployeeCount, &total, &p.Reason, &p.IsRecommended, &p.ActorID, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query publication: %w", err)
	}
	p.TotalAppliedAmount = decFrom(total)
	p.PublishedAt = parseTime(publishedAt)
	return &p, nil
}

// Replace removes any prior publication and its recommendation rows for
// the cycle and inserts the new set, all in one transaction.
func (s *Store) Replace(ctx context.Context, pub publish.Publication, recs []publish.EffectiveRecommendation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM publications WHERE tenant_id = ? AND cycle_id = ?`,
			pub.TenantID, pub.CycleID); err != nil {
			return fmt.Errorf("failed to delete prior publication: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM effective_recommendations WHERE tenant_id = ? AND cycle_id = ?`,
			pub.TenantID, pub.CycleID); err != nil {
			return fmt.Errorf("failed to delete prior recommendations: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO publications
			(id, tenant_id, cycle_id, scenario_id, run_id, employee_count,
			 total_applied_amount, reason, is_recommended, actor_id, published_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pub.ID, pub.TenantID, pub.CycleID, pub.ScenarioID, pub.RunID,
			pub.EmployeeCount, pub.TotalAppliedAmount.String(), pub.Reason,
			pub.IsRecommended, pub.ActorID, fmtTime(pub.PublishedAt),
		); err != nil {
			return fmt.Errorf("failed to insert publication: %w", err)
		}

		for _, r := range recs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO effective_recommendations
				(tenant_id, cycle_id, scenario_id, run_id, employee_external_id,
				 current_base_pay, recommended_increase_pct, recommended_increase_amount,
				 effective_new_base_pay, currency, comp_basis, actor_id, published_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.TenantID, r.CycleID, r.ScenarioID, r.RunID, r.EmployeeExternalID,
				r.CurrentBasePay.String(), r.RecommendedIncreasePct.String(),
				r.RecommendedIncreaseAmount.String(), r.EffectiveNewBasePay.String(),
				r.Currency, r.CompBasis, r.ActorID, fmtTime(r.PublishedAt),
			); err != nil {
				return fmt.Errorf("failed to insert recommendation for %s: %w", r.EmployeeExternalID, err)
			}
		}
		return nil
	})
}

func (s *Store) Recommendations(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]publish.EffectiveRecommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, cycle_id, scenario_id, run_id, employee_external_id,
		       current_base_pay, recommended_increase_pct, recommended_increase_amount,
		       effective_new_base_pay, currency, comp_basis, actor_id, published_at
		FROM effective_recommendations
		WHERE tenant_id = ? AND cycle_id = ?
		ORDER BY employee_external_id`, tenant, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var out []publish.EffectiveRecommendation
	for rows.Next() {
		var r publish.EffectiveRecommendation
		var base, pct, amount, newBase, publishedAt string
		if err := rows.Scan(&r.TenantID, &r.CycleID, &r.ScenarioID, &r.RunID,
			&r.EmployeeExternalID, &base, &pct, &amount, &newBase,
			&r.Currency, &r.CompBasis, &r.ActorID, &publishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		r.CurrentBasePay = decFrom(base)
		r.RecommendedIncreasePct = decFrom(pct)
		r.RecommendedIncreaseAmount = decFrom(amount)
		r.EffectiveNewBasePay = decFrom(newBase)
		r.PublishedAt = parseTime(publishedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
