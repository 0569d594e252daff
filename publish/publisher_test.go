package publish_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
	"github.com/warp/merit-engine/publish"
	"github.com/warp/merit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testTenant = merit.TenantID("acme")

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type allowAll struct{}

func (allowAll) Can(string, string, string) (bool, error) { return true, nil }

type denyAll struct{}

func (denyAll) Can(string, string, string) (bool, error) { return false, nil }

// fixture is a fully publishable cycle: closed, one locked plan, one
// COMPLETE run with live result rows. Tests break individual
// preconditions from here.
type fixture struct {
	store *memory.Store
	pub   *publish.Publisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	store.AddCycle(cycle.Cycle{
		ID:       "cyc-1",
		TenantID: testTenant,
		Name:     "FY26 annual",
	})
	store.AddScenario(merit.Scenario{
		ID:           "scn-1",
		TenantID:     testTenant,
		CycleID:      "cyc-1",
		SnapshotID:   "snap-1",
		Status:       merit.ScenarioComplete,
		BaseCurrency: "USD",
		Rules:        merit.DefaultRules(),
	})
	store.AddSnapshotEmployees(testTenant, "snap-1",
		merit.SnapshotEmployee{ExternalID: "emp-1"},
		merit.SnapshotEmployee{ExternalID: "emp-2"},
	)
	store.AddPlan(cycle.ManagerPlan{
		ID: "plan-1", TenantID: testTenant, CycleID: "cyc-1",
		ManagerID: "mgr-1", ApproverID: "appr-1",
		Status: cycle.PlanApproved, IsLocked: true,
	})
	require.NoError(t, store.AppendClosure(ctx, cycle.AdminClosureEvent{
		ID: "ev-1", TenantID: testTenant, CycleID: "cyc-1",
		Action: cycle.ClosureClose, ActorID: "admin-1", At: time.Now().UTC(),
	}))

	f := &fixture{store: store}
	f.addRun(t, "run-1", "200000", "6000", merit.BudgetWithin, "0")
	f.pub = &publish.Publisher{
		Cycles:    store,
		Plans:     store,
		Closures:  store,
		Scenarios: store,
		Runs:      store,
		Pubs:      store,
		Validator: &publish.Validator{
			Cycles: store, Plans: store, Pubs: store,
			Scenarios: store, Snapshots: store,
		},
		Perm: allowAll{},
	}
	return f
}

// addRun seeds one COMPLETE run with two result rows splitting the
// applied amount.
func (f *fixture) addRun(t *testing.T, id, baseline, applied string, status merit.BudgetStatus, remaining string) {
	t.Helper()
	ctx := context.Background()
	run := &merit.Run{
		ID:                    merit.RunID(id),
		TenantID:              testTenant,
		ScenarioID:            "scn-1",
		Status:                merit.RunComplete,
		Processed:             2,
		BaselineTotal:         d(baseline),
		ApprovedBudgetAmount:  d(baseline).Mul(d("0.03")),
		TotalAppliedAmount:    d(applied),
		RemainingBudgetAmount: d(remaining),
		BudgetStatus:          status,
		StartedAt:             time.Now().UTC(),
	}
	require.NoError(t, f.store.CreateRun(ctx, run))

	half := d(applied).Div(d("2"))
	basis := d(baseline).Div(d("2"))
	results := []merit.Result{
		{
			RunID: merit.RunID(id), EmployeeExternalID: "emp-1", Currency: "USD",
			BasisAmount: basis, AppliedPct: d("0.03"),
			IncreaseAmount: half, NewAmount: basis.Add(half),
		},
		{
			RunID: merit.RunID(id), EmployeeExternalID: "emp-2", Currency: "USD",
			BasisAmount: basis, AppliedPct: d("0.03"),
			IncreaseAmount: half, NewAmount: basis.Add(half),
		},
	}
	require.NoError(t, f.store.SaveResults(ctx, testTenant, results))
}

func (f *fixture) publish(req publish.PublishRequest) (*publish.Publication, error) {
	if req.TenantID == "" {
		req.TenantID = testTenant
	}
	if req.CycleID == "" {
		req.CycleID = "cyc-1"
	}
	if req.ActorID == "" {
		req.ActorID = "admin-1"
	}
	return f.pub.Publish(context.Background(), req)
}

// =============================================================================
// THE GATE
// =============================================================================

func TestPublish_RecommendedRunNeedsNoReason(t *testing.T) {
	// GIVEN: A publishable cycle whose only run is the recommended one
	// WHEN: Publishing without a reason
	// THEN: Success; the publication and its rows are live

	f := newFixture(t)
	ctx := context.Background()

	pub, err := f.publish(publish.PublishRequest{RunID: "run-1"})
	require.NoError(t, err)
	assert.True(t, pub.IsRecommended)
	assert.Equal(t, 2, pub.EmployeeCount)
	assert.True(t, pub.TotalAppliedAmount.Equal(d("6000")))

	recs, err := f.store.Recommendations(ctx, testTenant, "cyc-1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	st, err := f.pub.GetStatus(ctx, testTenant, "cyc-1")
	require.NoError(t, err)
	assert.True(t, st.Published)
	assert.Equal(t, merit.RunID("run-1"), st.RecommendedRunID)
}

func TestPublish_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.pub.Perm = denyAll{}

	_, err := f.publish(publish.PublishRequest{RunID: "run-1"})
	assert.ErrorIs(t, err, cycle.ErrForbidden)
}

func TestPublish_RunNotComplete(t *testing.T) {
	// GIVEN: A run still RUNNING
	// WHEN: Publishing it
	// THEN: GATING_FAILED naming the run status

	f := newFixture(t)
	require.NoError(t, f.store.CreateRun(context.Background(), &merit.Run{
		ID: "run-live", TenantID: testTenant, ScenarioID: "scn-1",
		Status: merit.RunRunning, StartedAt: time.Now().UTC(),
	}))

	_, err := f.publish(publish.PublishRequest{RunID: "run-live"})
	ge, ok := publish.AsGateError(err)
	require.True(t, ok)
	assert.Equal(t, publish.CodeGatingFailed, ge.Code)
	assert.Equal(t, "RUNNING", ge.Details["run_status"])
}

func TestPublish_RunFromAnotherCycleIsHidden(t *testing.T) {
	// GIVEN: A run whose scenario belongs to a different cycle
	// WHEN: Publishing it against cyc-1
	// THEN: Not found, as if the run did not exist

	f := newFixture(t)
	f.store.AddCycle(cycle.Cycle{ID: "cyc-2", TenantID: testTenant})
	f.store.AddScenario(merit.Scenario{
		ID: "scn-2", TenantID: testTenant, CycleID: "cyc-2",
		SnapshotID: "snap-1", Status: merit.ScenarioComplete, BaseCurrency: "USD",
		Rules: merit.DefaultRules(),
	})
	require.NoError(t, f.store.CreateRun(context.Background(), &merit.Run{
		ID: "run-other", TenantID: testTenant, ScenarioID: "scn-2",
		Status: merit.RunComplete, BaselineTotal: d("100"),
	}))

	_, err := f.publish(publish.PublishRequest{RunID: "run-other"})
	assert.ErrorIs(t, err, merit.ErrRunNotFound)
}

func TestPublish_NoManagerPlans(t *testing.T) {
	// GIVEN: A cycle with zero plans but everything else in order
	// WHEN: Publishing
	// THEN: NO_MANAGER_PLANS, distinct from the generic gating failure

	store := memory.New()
	ctx := context.Background()
	store.AddCycle(cycle.Cycle{ID: "cyc-1", TenantID: testTenant})
	store.AddScenario(merit.Scenario{
		ID: "scn-1", TenantID: testTenant, CycleID: "cyc-1",
		SnapshotID: "snap-1", Status: merit.ScenarioComplete, BaseCurrency: "USD",
		Rules: merit.DefaultRules(),
	})
	require.NoError(t, store.CreateRun(ctx, &merit.Run{
		ID: "run-1", TenantID: testTenant, ScenarioID: "scn-1",
		Status: merit.RunComplete, BaselineTotal: d("100"),
	}))
	p := &publish.Publisher{
		Cycles: store, Plans: store, Closures: store, Scenarios: store,
		Runs: store, Pubs: store,
		Validator: &publish.Validator{
			Cycles: store, Plans: store, Pubs: store,
			Scenarios: store, Snapshots: store,
		},
		Perm: allowAll{},
	}

	_, err := p.Publish(ctx, publish.PublishRequest{
		TenantID: testTenant, CycleID: "cyc-1", RunID: "run-1", ActorID: "admin-1",
	})
	ge, ok := publish.AsGateError(err)
	require.True(t, ok)
	assert.Equal(t, publish.CodeNoManagerPlans, ge.Code)
}

func TestPublish_GatingFailureCarriesFullBreakdown(t *testing.T) {
	// GIVEN: An open cycle with an unlocked plan
	// WHEN: Publishing
	// THEN: One GATING_FAILED whose details name every failed condition

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AppendClosure(ctx, cycle.AdminClosureEvent{
		ID: "ev-2", TenantID: testTenant, CycleID: "cyc-1",
		Action: cycle.ClosureReopen, ActorID: "admin-1", At: time.Now().UTC(),
	}))
	f.store.AddPlan(cycle.ManagerPlan{
		ID: "plan-2", TenantID: testTenant, CycleID: "cyc-1",
		ManagerID: "mgr-2", ApproverID: "appr-1", Status: cycle.PlanDraft,
	})

	_, err := f.publish(publish.PublishRequest{RunID: "run-1"})
	ge, ok := publish.AsGateError(err)
	require.True(t, ok)
	assert.Equal(t, publish.CodeGatingFailed, ge.Code)
	assert.Equal(t, false, ge.Details["cycle_closed"])
	assert.Equal(t, 2, ge.Details["plans_total"])
	assert.Equal(t, 1, ge.Details["plans_locked"])
	assert.Equal(t, false, ge.Details["all_plans_locked"])
}

func TestPublish_DeadRunData(t *testing.T) {
	// GIVEN: A COMPLETE run whose baseline total is zero
	// WHEN: Publishing
	// THEN: DEAD_RUN_DATA; the fix is re-running, not re-approving

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateRun(ctx, &merit.Run{
		ID: "run-dead", TenantID: testTenant, ScenarioID: "scn-1",
		Status: merit.RunComplete, StartedAt: time.Now().UTC(),
	}))
	require.NoError(t, f.store.SaveResults(ctx, testTenant, []merit.Result{
		{RunID: "run-dead", EmployeeExternalID: "emp-1", Currency: "USD",
			IncreaseAmount: d("10")},
	}))

	_, err := f.publish(publish.PublishRequest{
		RunID: "run-dead", Reason: "forced for verification",
	})
	ge, ok := publish.AsGateError(err)
	require.True(t, ok)
	assert.Equal(t, publish.CodeDeadRunData, ge.Code)
}

func TestPublish_AlreadyPublishedUnlessOverwrite(t *testing.T) {
	// GIVEN: A cycle published from run-1
	// WHEN: Publishing run-2 without, then with, overwrite
	// THEN: First refused with the live publication's identity; second
	//       replaces the rows atomically

	f := newFixture(t)
	ctx := context.Background()
	f.addRun(t, "run-2", "200000", "5900", merit.BudgetWithin, "100")

	_, err := f.publish(publish.PublishRequest{RunID: "run-1", Reason: "tightest fit"})
	require.NoError(t, err)

	_, err = f.publish(publish.PublishRequest{RunID: "run-2", Reason: "conservative"})
	ge, ok := publish.AsGateError(err)
	require.True(t, ok)
	assert.Equal(t, publish.CodeAlreadyPublished, ge.Code)
	assert.Equal(t, "run-1", ge.Details["run_id"])

	pub, err := f.publish(publish.PublishRequest{
		RunID: "run-2", Reason: "conservative", Overwrite: true,
	})
	require.NoError(t, err)
	assert.Equal(t, merit.RunID("run-2"), pub.RunID)

	live, err := f.store.LivePublication(ctx, testTenant, "cyc-1")
	require.NoError(t, err)
	assert.Equal(t, pub.ID, live.ID)
	recs, err := f.store.Recommendations(ctx, testTenant, "cyc-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, merit.RunID("run-2"), recs[0].RunID)
}

func TestPublish_OverwriteSameRunIsIdempotent(t *testing.T) {
	// GIVEN: A cycle published from run-1
	// WHEN: Republishing run-1 with overwrite
	// THEN: The recommendation set is content-identical and the
	//       publication state unchanged apart from identity and timestamp

	f := newFixture(t)
	ctx := context.Background()

	first, err := f.publish(publish.PublishRequest{RunID: "run-1"})
	require.NoError(t, err)
	before, err := f.store.Recommendations(ctx, testTenant, "cyc-1")
	require.NoError(t, err)

	second, err := f.publish(publish.PublishRequest{RunID: "run-1", Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.ScenarioID, second.ScenarioID)
	assert.Equal(t, first.EmployeeCount, second.EmployeeCount)
	assert.True(t, second.TotalAppliedAmount.Equal(first.TotalAppliedAmount))
	assert.True(t, second.IsRecommended)

	after, err := f.store.Recommendations(ctx, testTenant, "cyc-1")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range after {
		assert.Equal(t, before[i].EmployeeExternalID, after[i].EmployeeExternalID)
		assert.Equal(t, before[i].RunID, after[i].RunID)
		assert.Equal(t, before[i].Currency, after[i].Currency)
		assert.True(t, after[i].CurrentBasePay.Equal(before[i].CurrentBasePay))
		assert.True(t, after[i].RecommendedIncreasePct.Equal(before[i].RecommendedIncreasePct))
		assert.True(t, after[i].RecommendedIncreaseAmount.Equal(before[i].RecommendedIncreaseAmount))
		assert.True(t, after[i].EffectiveNewBasePay.Equal(before[i].EffectiveNewBasePay))
	}
}

func TestPublish_NonRecommendedRunNeedsReason(t *testing.T) {
	// GIVEN: run-1 leaves zero budget, run-2 leaves some
	// WHEN: Publishing run-2, the non-recommended one
	// THEN: Refused without a reason, accepted with one

	f := newFixture(t)
	f.addRun(t, "run-2", "200000", "5000", merit.BudgetWithin, "1000")

	_, err := f.publish(publish.PublishRequest{RunID: "run-2"})
	assert.ErrorIs(t, err, publish.ErrReasonRequired)

	pub, err := f.publish(publish.PublishRequest{
		RunID: "run-2", Reason: "board asked for the conservative scenario",
	})
	require.NoError(t, err)
	assert.False(t, pub.IsRecommended)
	assert.Equal(t, "board asked for the conservative scenario", pub.Reason)
}

func TestGetStatus_Unpublished(t *testing.T) {
	f := newFixture(t)

	st, err := f.pub.GetStatus(context.Background(), testTenant, "cyc-1")
	require.NoError(t, err)
	assert.False(t, st.Published)
	assert.Nil(t, st.Publication)
	assert.Equal(t, merit.RunID("run-1"), st.RecommendedRunID)
}

type failingRunStore struct {
	merit.RunStore
}

func (failingRunStore) ListRunsByCycle(context.Context, merit.TenantID, merit.CycleID) ([]merit.Run, error) {
	return nil, errors.New("run listing unavailable")
}

func TestGetStatus_RunLookupFailureSurfaces(t *testing.T) {
	// GIVEN: A run store whose listing fails
	// WHEN: Reading publication status
	// THEN: The failure surfaces instead of hiding the recommended run

	f := newFixture(t)
	f.pub.Runs = failingRunStore{f.store}

	_, err := f.pub.GetStatus(context.Background(), testTenant, "cyc-1")
	require.EqualError(t, err, "run listing unavailable")
}
