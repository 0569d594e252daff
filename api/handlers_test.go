/*
handlers_test.go - HTTP surface tests

Exercises the full router against the in-memory store with the real
casbin enforcer: identity headers, role gating, the publish flow, and
the domain-error to status-code mapping.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/merit-engine/api"
	"github.com/warp/merit-engine/authz"
	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
	"github.com/warp/merit-engine/publish"
	"github.com/warp/merit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testTenant = "acme"

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type testServer struct {
	store  *memory.Store
	router http.Handler
}

// newTestServer wires the whole stack the way cmd/server does, backed
// by the in-memory store. admin-1 holds the admin role; mgr-1 and
// appr-1 hold none.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()

	enf, err := authz.New()
	require.NoError(t, err)
	require.NoError(t, enf.Grant("admin-1", authz.RoleAdmin))

	engine := &merit.Engine{
		Scenarios: store, Snapshots: store, Bands: store, Rates: store, Runs: store,
	}
	planSvc := &cycle.Service{Cycles: store, Plans: store, Closures: store, Perm: enf}
	readiness := &publish.Validator{
		Cycles: store, Plans: store, Pubs: store, Scenarios: store, Snapshots: store,
	}
	publisher := &publish.Publisher{
		Cycles: store, Plans: store, Closures: store, Scenarios: store,
		Runs: store, Pubs: store, Validator: readiness, Perm: enf,
	}
	exporter := &publish.Exporter{Pubs: store}

	h := api.NewHandler(engine, planSvc, publisher, readiness, exporter, store, store, store, enf)
	return &testServer{store: store, router: api.NewRouter(h)}
}

// seed populates one runnable scenario with a single employee and one
// draft manager plan.
func (ts *testServer) seed(t *testing.T) {
	t.Helper()
	ts.store.AddCycle(cycle.Cycle{ID: "cyc-1", TenantID: testTenant, Name: "FY26"})
	ts.store.AddScenario(merit.Scenario{
		ID: "scn-1", TenantID: testTenant, CycleID: "cyc-1",
		SnapshotID: "snap-1", Status: merit.ScenarioDraft,
		BaseCurrency: "USD", Rules: merit.DefaultRules(),
	})
	ts.store.AddSnapshotEmployees(testTenant, "snap-1", merit.SnapshotEmployee{
		ExternalID: "emp-1", CountryCode: "US", Currency: "USD",
		RatingRaw: "FM", PayGrade: "L4",
		BaseSalary: d("100000"), WeeklyHours: d("40"),
	})
	ts.store.AddPayBands(testTenant, merit.PayBand{
		Grade: "L4", Basis: merit.BasisBaseSalary,
		Min: d("80000"), Mid: d("100000"), Max: d("120000"),
	})
	ts.store.SetRates(testTenant, merit.RateTable{})
	ts.store.AddPlan(cycle.ManagerPlan{
		ID: "plan-1", TenantID: testTenant, CycleID: "cyc-1",
		ManagerID: "mgr-1", ApproverID: "appr-1", Status: cycle.PlanDraft,
	})
}

// do issues a request as the given actor. An empty actor omits both
// identity headers.
func (ts *testServer) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if actor != "" {
		req.Header.Set("X-Tenant-ID", testTenant)
		req.Header.Set("X-Actor-ID", actor)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

// adminAction is the request body for POST /api/admin/actions.
type adminAction struct {
	Action  string `json:"action"`
	CycleID string `json:"cycle_id,omitempty"`
	PlanID  string `json:"plan_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// makePublishable drives the cycle to a publishable state through the
// API: run the scenario, walk the plan to approved, lock everything,
// close the cycle. Returns the run ID.
func (ts *testServer) makePublishable(t *testing.T) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/scenarios/scn-1/run", "admin-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var run struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &run)

	steps := []adminAction{
		{Action: "submit_plan", PlanID: "plan-1"},
		{Action: "approve_plan", PlanID: "plan-1"},
		{Action: "lock_all_plans", CycleID: "cyc-1", Reason: "closing"},
		{Action: "close_cycle", CycleID: "cyc-1", Reason: "cycle done"},
	}
	actors := []string{"mgr-1", "appr-1", "admin-1", "admin-1"}
	for i, step := range steps {
		rec := ts.do(t, http.MethodPost, "/api/admin/actions", actors[i], step)
		require.Equal(t, http.StatusOK, rec.Code, "step %s: %s", step.Action, rec.Body.String())
	}
	return run.ID
}

// =============================================================================
// IDENTITY AND ROLES
// =============================================================================

func TestAPI_MissingIdentityHeaders(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/scn-1/run", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_RoleGatedEndpoints(t *testing.T) {
	// GIVEN: mgr-1 holds no admin role
	// WHEN: Hitting validate and export
	// THEN: 403 from the casbin check

	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/cycles/cyc-1/validate", "mgr-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/cycles/cyc-1/export", "mgr-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// RUNS
// =============================================================================

func TestAPI_RunScenarioAndList(t *testing.T) {
	// GIVEN: A seeded scenario
	// WHEN: Running it, then listing its runs
	// THEN: 201 with the run payload, then a one-element list

	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/scn-1/run", "admin-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var run struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		Processed     int    `json:"processed"`
		BaselineTotal string `json:"baseline_total"`
		BudgetStatus  string `json:"budget_status"`
	}
	decodeBody(t, rec, &run)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "COMPLETE", run.Status)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, "100000", run.BaselineTotal)
	assert.Equal(t, "WITHIN", run.BudgetStatus)

	rec = ts.do(t, http.MethodGet, "/api/scenarios/scn-1/runs", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []json.RawMessage
	decodeBody(t, rec, &runs)
	assert.Len(t, runs, 1)
}

func TestAPI_RunUnknownScenario(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/nope/run", "admin-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// GOVERNANCE ACTIONS
// =============================================================================

func TestAPI_AdminActionValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	// Unknown action fails struct validation.
	rec := ts.do(t, http.MethodPost, "/api/admin/actions", "admin-1",
		adminAction{Action: "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Cycle-level action without cycle_id.
	rec = ts.do(t, http.MethodPost, "/api/admin/actions", "admin-1",
		adminAction{Action: "close_cycle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Plan-level action without plan_id.
	rec = ts.do(t, http.MethodPost, "/api/admin/actions", "admin-1",
		adminAction{Action: "lock_plan"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_PlanLifecycleOverHTTP(t *testing.T) {
	// GIVEN: A draft plan
	// WHEN: submit (manager), reject without reason, reject with reason
	// THEN: Statuses move and the reason rule maps to 400

	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/actions", "mgr-1",
		adminAction{Action: "submit_plan", PlanID: "plan-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.AdminActionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "draft", resp.PreviousStatus)
	assert.Equal(t, "submitted", resp.NewStatus)

	rec = ts.do(t, http.MethodPost, "/api/admin/actions", "appr-1",
		adminAction{Action: "reject_plan", PlanID: "plan-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/admin/actions", "appr-1",
		adminAction{Action: "reject_plan", PlanID: "plan-1", Reason: "over budget"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_WrongActorMapsTo403(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/actions", "appr-1",
		adminAction{Action: "submit_plan", PlanID: "plan-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_InvalidTransitionMapsTo409(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/actions", "appr-1",
		adminAction{Action: "approve_plan", PlanID: "plan-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_PlanHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)
	ts.makePublishable(t)

	rec := ts.do(t, http.MethodGet, "/api/plans/plan-1/history", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist api.PlanHistoryResponse
	decodeBody(t, rec, &hist)
	assert.Len(t, hist.Approvals, 2)
	require.Len(t, hist.Locks, 1)
	assert.True(t, hist.Locks[0].Bulk)
}

func TestAPI_ClosureLedger(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)
	ts.makePublishable(t)

	rec := ts.do(t, http.MethodGet, "/api/cycles/cyc-1/closures", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []api.ClosureEventDTO
	decodeBody(t, rec, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "close", events[0].Action)
}

// =============================================================================
// PUBLISH FLOW
// =============================================================================

func TestAPI_PublishFlow(t *testing.T) {
	// GIVEN: A cycle made publishable entirely through the API
	// WHEN: Validating, publishing the recommended run, reading status,
	//       and exporting
	// THEN: Each step succeeds with the documented payloads

	ts := newTestServer(t)
	ts.seed(t)
	runID := ts.makePublishable(t)

	rec := ts.do(t, http.MethodPost, "/api/cycles/cyc-1/validate", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/cycles/cyc-1/publish", "admin-1",
		api.PublishRequest{RunID: runID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pub api.PublicationDTO
	decodeBody(t, rec, &pub)
	assert.Equal(t, runID, pub.RunID)
	assert.True(t, pub.IsRecommended)
	assert.Equal(t, 1, pub.EmployeeCount)

	rec = ts.do(t, http.MethodGet, "/api/cycles/cyc-1/publication", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st api.PublishStatusDTO
	decodeBody(t, rec, &st)
	assert.True(t, st.Published)
	assert.Equal(t, runID, st.RecommendedRunID)

	rec = ts.do(t, http.MethodGet, "/api/cycles/cyc-1/export", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Row-Count"))
	assert.Contains(t, rec.Body.String(), "employee_external_id")
	assert.Contains(t, rec.Body.String(), "emp-1")
}

func TestAPI_PublishGatingFailure(t *testing.T) {
	// GIVEN: A run on an open cycle with an unlocked plan
	// WHEN: Publishing
	// THEN: 409 with the GATING_FAILED code and its details

	ts := newTestServer(t)
	ts.seed(t)
	rec := ts.do(t, http.MethodPost, "/api/scenarios/scn-1/run", "admin-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var run struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &run)

	rec = ts.do(t, http.MethodPost, "/api/cycles/cyc-1/publish", "admin-1",
		api.PublishRequest{RunID: run.ID, Reason: "trying anyway"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "GATING_FAILED", resp.Code)
}

func TestAPI_PublishMissingRunID(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/cycles/cyc-1/publish", "admin-1",
		api.PublishRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ExportBeforePublish(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/cycles/cyc-1/export", "admin-1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "NOT_PUBLISHED", resp.Code)
}

// =============================================================================
// CONCURRENT GOVERNANCE
// =============================================================================

func TestAPI_ConcurrentSubmitsOneWinner(t *testing.T) {
	// GIVEN: One draft plan and two racing submits
	// WHEN: Both fire
	// THEN: Exactly one 200; the loser sees a conflict-class status

	ts := newTestServer(t)
	ts.seed(t)

	results := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			rec := ts.do(t, http.MethodPost, "/api/admin/actions", "mgr-1",
				adminAction{Action: "submit_plan", PlanID: "plan-1"})
			results <- rec.Code
		}()
	}

	codes := []int{<-results, <-results}
	ok := 0
	for _, c := range codes {
		if c == http.StatusOK {
			ok++
		}
	}
	assert.Equal(t, 1, ok, "codes: %v", codes)

	// The plan ends up submitted exactly once either way.
	plan, err := ts.store.GetPlan(context.Background(), testTenant, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, cycle.PlanSubmitted, plan.Status)
	hist, err := ts.store.ApprovalHistory(context.Background(), testTenant, "plan-1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}
