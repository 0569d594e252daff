// Package memory provides an in-memory implementation of every store
// interface, for tests and local development. Semantics mirror
// store/sqlite: tenant scoping on every call, conditional updates for
// plan transitions, atomic publication replace.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
	"github.com/warp/merit-engine/publish"
)

type scenarioKey struct {
	Tenant merit.TenantID
	ID     merit.ScenarioID
}

type cycleKey struct {
	Tenant merit.TenantID
	ID     merit.CycleID
}

type snapshotKey struct {
	Tenant merit.TenantID
	ID     merit.SnapshotID
}

type runKey struct {
	Tenant merit.TenantID
	ID     merit.RunID
}

type planKey struct {
	Tenant merit.TenantID
	ID     cycle.PlanID
}

// Store is the in-memory implementation. Zero value is not usable;
// construct with New.
type Store struct {
	mu sync.RWMutex

	cycles    map[cycleKey]cycle.Cycle
	scenarios map[scenarioKey]merit.Scenario
	snapshots map[snapshotKey][]merit.SnapshotEmployee
	bands     map[merit.TenantID][]merit.PayBand
	rates     map[merit.TenantID]merit.RateTable

	runs    map[runKey]merit.Run
	results map[runKey][]merit.Result

	plans        map[planKey]cycle.ManagerPlan
	approvals    map[planKey][]cycle.ApprovalEvent
	lockEvents   map[planKey][]cycle.PlanClosureEvent
	closures     map[cycleKey][]cycle.AdminClosureEvent
	publications map[cycleKey]publish.Publication
	recs         map[cycleKey][]publish.EffectiveRecommendation
}

func New() *Store {
	return &Store{
		cycles:       make(map[cycleKey]cycle.Cycle),
		scenarios:    make(map[scenarioKey]merit.Scenario),
		snapshots:    make(map[snapshotKey][]merit.SnapshotEmployee),
		bands:        make(map[merit.TenantID][]merit.PayBand),
		rates:        make(map[merit.TenantID]merit.RateTable),
		runs:         make(map[runKey]merit.Run),
		results:      make(map[runKey][]merit.Result),
		plans:        make(map[planKey]cycle.ManagerPlan),
		approvals:    make(map[planKey][]cycle.ApprovalEvent),
		lockEvents:   make(map[planKey][]cycle.PlanClosureEvent),
		closures:     make(map[cycleKey][]cycle.AdminClosureEvent),
		publications: make(map[cycleKey]publish.Publication),
		recs:         make(map[cycleKey][]publish.EffectiveRecommendation),
	}
}

// =============================================================================
// SEEDING - Write side for reference data owned by other subsystems
// =============================================================================

func (m *Store) AddCycle(c cycle.Cycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[cycleKey{c.TenantID, c.ID}] = c
}

func (m *Store) AddScenario(s merit.Scenario) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[scenarioKey{s.TenantID, s.ID}] = s
}

func (m *Store) AddSnapshotEmployees(tenant merit.TenantID, snapshot merit.SnapshotID, emps ...merit.SnapshotEmployee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := snapshotKey{tenant, snapshot}
	m.snapshots[k] = append(m.snapshots[k], emps...)
}

func (m *Store) AddPayBands(tenant merit.TenantID, bands ...merit.PayBand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bands[tenant] = append(m.bands[tenant], bands...)
}

func (m *Store) SetRates(tenant merit.TenantID, rates merit.RateTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[tenant] = rates
}

func (m *Store) AddPlan(p cycle.ManagerPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[planKey{p.TenantID, p.ID}] = p
}

// =============================================================================
// merit.ScenarioStore
// =============================================================================

func (m *Store) GetScenario(_ context.Context, tenant merit.TenantID, id merit.ScenarioID) (*merit.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[scenarioKey{tenant, id}]
	if !ok {
		return nil, merit.ErrScenarioNotFound
	}
	cp := s
	return &cp, nil
}

func (m *Store) SetScenarioStatus(_ context.Context, tenant merit.TenantID, id merit.ScenarioID, status merit.ScenarioStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scenarioKey{tenant, id}
	s, ok := m.scenarios[k]
	if !ok {
		return merit.ErrScenarioNotFound
	}
	s.Status = status
	m.scenarios[k] = s
	return nil
}

// =============================================================================
// merit.SnapshotStore / BandStore / RateStore
// =============================================================================

func (m *Store) ListSnapshotEmployees(_ context.Context, tenant merit.TenantID, snapshot merit.SnapshotID) ([]merit.SnapshotEmployee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.snapshots[snapshotKey{tenant, snapshot}]
	out := make([]merit.SnapshotEmployee, len(src))
	copy(out, src)
	return out, nil
}

func (m *Store) ListPayBands(_ context.Context, tenant merit.TenantID) ([]merit.PayBand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.bands[tenant]
	out := make([]merit.PayBand, len(src))
	copy(out, src)
	return out, nil
}

func (m *Store) RateTable(_ context.Context, tenant merit.TenantID, _ string) (merit.RateTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(merit.RateTable, len(m.rates[tenant]))
	for k, v := range m.rates[tenant] {
		out[k] = v
	}
	return out, nil
}

// =============================================================================
// merit.RunStore
// =============================================================================

func (m *Store) CreateRun(_ context.Context, run *merit.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runKey{run.TenantID, run.ID}] = *run
	return nil
}

func (m *Store) CompleteRun(_ context.Context, run *merit.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := runKey{run.TenantID, run.ID}
	prev, ok := m.runs[k]
	if !ok {
		return merit.ErrRunNotFound
	}
	if prev.Status != merit.RunRunning {
		return merit.ErrConcurrentModification
	}
	m.runs[k] = *run
	return nil
}

func (m *Store) FailRun(_ context.Context, tenant merit.TenantID, id merit.RunID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := runKey{tenant, id}
	run, ok := m.runs[k]
	if !ok {
		return merit.ErrRunNotFound
	}
	if run.Status != merit.RunRunning {
		return merit.ErrConcurrentModification
	}
	run.Status = merit.RunFailed
	run.ErrorMessage = message
	m.runs[k] = run
	return nil
}

func (m *Store) SaveResults(_ context.Context, tenant merit.TenantID, results []merit.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		k := runKey{tenant, r.RunID}
		m.results[k] = append(m.results[k], r)
	}
	return nil
}

func (m *Store) GetRun(_ context.Context, tenant merit.TenantID, id merit.RunID) (*merit.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runKey{tenant, id}]
	if !ok {
		return nil, merit.ErrRunNotFound
	}
	cp := run
	return &cp, nil
}

func (m *Store) ListRunsByScenario(_ context.Context, tenant merit.TenantID, scenario merit.ScenarioID) ([]merit.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []merit.Run
	for k, run := range m.runs {
		if k.Tenant == tenant && run.ScenarioID == scenario {
			out = append(out, run)
		}
	}
	sortRuns(out)
	return out, nil
}

func (m *Store) ListRunsByCycle(_ context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]merit.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []merit.Run
	for k, run := range m.runs {
		if k.Tenant != tenant {
			continue
		}
		if s, ok := m.scenarios[scenarioKey{tenant, run.ScenarioID}]; ok && s.CycleID == cycleID {
			out = append(out, run)
		}
	}
	sortRuns(out)
	return out, nil
}

func (m *Store) ResultsByRun(_ context.Context, tenant merit.TenantID, id merit.RunID) ([]merit.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.results[runKey{tenant, id}]
	out := make([]merit.Result, len(src))
	copy(out, src)
	return out, nil
}

func sortRuns(runs []merit.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
}

// =============================================================================
// cycle.CycleStore / PlanStore / ClosureStore
// =============================================================================

func (m *Store) GetCycle(_ context.Context, tenant merit.TenantID, id merit.CycleID) (*cycle.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cycles[cycleKey{tenant, id}]
	if !ok {
		return nil, merit.ErrCycleNotFound
	}
	cp := c
	return &cp, nil
}

func (m *Store) GetPlan(_ context.Context, tenant merit.TenantID, id cycle.PlanID) (*cycle.ManagerPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[planKey{tenant, id}]
	if !ok {
		return nil, merit.ErrPlanNotFound
	}
	cp := p
	return &cp, nil
}

func (m *Store) ListPlansByCycle(_ context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]cycle.ManagerPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []cycle.ManagerPlan
	for k, p := range m.plans {
		if k.Tenant == tenant && p.CycleID == cycleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) TransitionPlan(_ context.Context, tenant merit.TenantID, id cycle.PlanID, allowedFrom []cycle.PlanStatus, to cycle.PlanStatus, stampApproval bool, ev cycle.ApprovalEvent) (cycle.PlanStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := planKey{tenant, id}
	p, ok := m.plans[k]
	if !ok {
		return "", merit.ErrPlanNotFound
	}
	allowed := false
	for _, s := range allowedFrom {
		if p.Status == s {
			allowed = true
			break
		}
	}
	if !allowed || p.IsLocked {
		return "", merit.ErrConcurrentModification
	}
	prev := p.Status
	p.Status = to
	p.UpdatedAt = ev.At
	if stampApproval {
		at := ev.At
		p.ApprovedAt = &at
	}
	m.plans[k] = p
	m.approvals[k] = append(m.approvals[k], ev)
	return prev, nil
}

func (m *Store) SetPlanLock(_ context.Context, tenant merit.TenantID, id cycle.PlanID, locked bool, restoredStatus cycle.PlanStatus, ev cycle.PlanClosureEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := planKey{tenant, id}
	p, ok := m.plans[k]
	if !ok {
		return merit.ErrPlanNotFound
	}
	if p.IsLocked == locked {
		return merit.ErrConcurrentModification
	}
	p.IsLocked = locked
	p.Status = restoredStatus
	p.UpdatedAt = ev.At
	if locked {
		at := ev.At
		p.LockedAt = &at
	} else {
		p.LockedAt = nil
	}
	m.plans[k] = p
	m.lockEvents[k] = append(m.lockEvents[k], ev)
	return nil
}

func (m *Store) LockAll(_ context.Context, tenant merit.TenantID, cycleID merit.CycleID, events func(cycle.ManagerPlan) cycle.PlanClosureEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locked := 0
	for k, p := range m.plans {
		if k.Tenant != tenant || p.CycleID != cycleID || p.IsLocked {
			continue
		}
		ev := events(p)
		p.IsLocked = true
		p.Status = cycle.PlanLocked
		at := ev.At
		p.LockedAt = &at
		p.UpdatedAt = ev.At
		m.plans[k] = p
		m.lockEvents[k] = append(m.lockEvents[k], ev)
		locked++
	}
	return locked, nil
}

func (m *Store) ApprovalHistory(_ context.Context, tenant merit.TenantID, id cycle.PlanID) ([]cycle.ApprovalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.approvals[planKey{tenant, id}]
	out := make([]cycle.ApprovalEvent, len(src))
	copy(out, src)
	return out, nil
}

func (m *Store) LockHistory(_ context.Context, tenant merit.TenantID, id cycle.PlanID) ([]cycle.PlanClosureEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.lockEvents[planKey{tenant, id}]
	out := make([]cycle.PlanClosureEvent, len(src))
	copy(out, src)
	return out, nil
}

func (m *Store) AppendClosure(_ context.Context, ev cycle.AdminClosureEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := cycleKey{ev.TenantID, ev.CycleID}
	m.closures[k] = append(m.closures[k], ev)
	return nil
}

func (m *Store) ListClosures(_ context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]cycle.AdminClosureEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.closures[cycleKey{tenant, cycleID}]
	out := make([]cycle.AdminClosureEvent, len(src))
	copy(out, src)
	return out, nil
}

// =============================================================================
// publish.PublicationStore
// =============================================================================

func (m *Store) LivePublication(_ context.Context, tenant merit.TenantID, cycleID merit.CycleID) (*publish.Publication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pub, ok := m.publications[cycleKey{tenant, cycleID}]
	if !ok {
		return nil, nil
	}
	cp := pub
	return &cp, nil
}

func (m *Store) Replace(_ context.Context, pub publish.Publication, recs []publish.EffectiveRecommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := cycleKey{pub.TenantID, pub.CycleID}
	m.publications[k] = pub
	cp := make([]publish.EffectiveRecommendation, len(recs))
	copy(cp, recs)
	m.recs[k] = cp
	return nil
}

func (m *Store) Recommendations(_ context.Context, tenant merit.TenantID, cycleID merit.CycleID) ([]publish.EffectiveRecommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.recs[cycleKey{tenant, cycleID}]
	out := make([]publish.EffectiveRecommendation, len(src))
	copy(out, src)
	return out, nil
}
