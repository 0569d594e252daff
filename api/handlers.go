/*
handlers.go - HTTP API handlers for the merit review engine

PURPOSE:
  Exposes the review engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Scenarios:
    POST   /api/scenarios/{id}/run       Execute a scenario run
    GET    /api/scenarios/{id}/runs      List a scenario's runs

  Cycles:
    POST   /api/cycles/{id}/validate     Payroll readiness report
    POST   /api/cycles/{id}/publish      Publish a run
    GET    /api/cycles/{id}/publication  Publish status
    GET    /api/cycles/{id}/export       Payroll CSV download
    GET    /api/cycles/{id}/plans        List manager plans
    GET    /api/cycles/{id}/closures     Closure ledger

  Plans:
    GET    /api/plans/{id}/history       Approval + lock history

  Admin:
    POST   /api/admin/actions            Governance actions (close_cycle,
                                         reopen_cycle, lock_plan, reopen_plan,
                                         lock_all_plans, submit_plan,
                                         approve_plan, reject_plan,
                                         return_to_manager, revoke_approval)

IDENTITY:
  The transport layer upstream authenticates callers; this API consumes
  the already-verified identity from X-Tenant-ID and X-Actor-ID headers.
  Requests without both headers get 401.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, missing reason
  - 401: Missing identity headers
  - 403: Role or identity guard rejected the actor
  - 404: Unknown cycle/scenario/run/plan
  - 409: Gating failures, invalid transitions, lost concurrent updates
  - 422: Dead run payloads, structural run failures
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
	"github.com/warp/merit-engine/publish"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *merit.Engine
	Plans     *cycle.Service
	Publisher *publish.Publisher
	Readiness *publish.Validator
	Exporter  *publish.Exporter

	Runs      merit.RunStore
	PlanStore cycle.PlanStore
	Closures  cycle.ClosureStore
	Perm      cycle.Permission

	validate *validator.Validate
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(engine *merit.Engine, plans *cycle.Service, publisher *publish.Publisher, readiness *publish.Validator, exporter *publish.Exporter, runs merit.RunStore, planStore cycle.PlanStore, closures cycle.ClosureStore, perm cycle.Permission) *Handler {
	return &Handler{
		Engine:    engine,
		Plans:     plans,
		Publisher: publisher,
		Readiness: readiness,
		Exporter:  exporter,
		Runs:      runs,
		PlanStore: planStore,
		Closures:  closures,
		Perm:      perm,
		validate:  validator.New(),
	}
}

// identity extracts the authenticated tenant and actor from headers.
func identity(r *http.Request) (merit.TenantID, string, bool) {
	tenant := r.Header.Get("X-Tenant-ID")
	actor := r.Header.Get("X-Actor-ID")
	if tenant == "" || actor == "" {
		return "", "", false
	}
	return merit.TenantID(tenant), actor, true
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (merit.TenantID, string, bool) {
	tenant, actor, ok := identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Tenant-ID or X-Actor-ID header", nil)
	}
	return tenant, actor, ok
}

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

// RunScenario executes a scenario run.
// POST /api/scenarios/{id}/run
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	tenant, actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	scenarioID := merit.ScenarioID(chi.URLParam(r, "id"))

	run, err := h.Engine.Run(r.Context(), tenant, scenarioID, actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(*run))
}

// ListRuns returns a scenario's runs, oldest first.
// GET /api/scenarios/{id}/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	scenarioID := merit.ScenarioID(chi.URLParam(r, "id"))

	runs, err := h.Runs.ListRunsByScenario(r.Context(), tenant, scenarioID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CYCLE ENDPOINTS
// =============================================================================

// ValidateCycle produces the payroll readiness report.
// POST /api/cycles/{id}/validate
func (h *Handler) ValidateCycle(w http.ResponseWriter, r *http.Request) {
	tenant, actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if !h.allow(w, actor, publish.PermValidate) {
		return
	}
	cycleID := merit.CycleID(chi.URLParam(r, "id"))

	report, err := h.Readiness.Validate(r.Context(), tenant, cycleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Publish publishes one run as the cycle's effective recommendations.
// POST /api/cycles/{id}/publish
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	tenant, actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	cycleID := merit.CycleID(chi.URLParam(r, "id"))

	var req PublishRequest
	if !h.decode(w, r, &req) {
		return
	}

	pub, err := h.Publisher.Publish(r.Context(), publish.PublishRequest{
		TenantID:  tenant,
		CycleID:   cycleID,
		RunID:     merit.RunID(req.RunID),
		ActorID:   actor,
		Reason:    req.Reason,
		Overwrite: req.Overwrite,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPublicationDTO(pub))
}

// PublishStatus returns the cycle's live publication, if any.
// GET /api/cycles/{id}/publication
func (h *Handler) PublishStatus(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	cycleID := merit.CycleID(chi.URLParam(r, "id"))

	st, err := h.Publisher.GetStatus(r.Context(), tenant, cycleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PublishStatusDTO{
		Published:        st.Published,
		Publication:      toPublicationDTO(st.Publication),
		RecommendedRunID: string(st.RecommendedRunID),
	})
}

// Export streams the payroll CSV for a published cycle.
// GET /api/cycles/{id}/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	tenant, actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if !h.allow(w, actor, publish.PermExport) {
		return
	}
	cycleID := merit.CycleID(chi.URLParam(r, "id"))

	// Buffer the CSV so a failure mid-export never sends a partial file.
	var buf bytes.Buffer
	rows, err := h.Exporter.Export(r.Context(), &buf, tenant, cycleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="payroll-%s.csv"`, cycleID))
	w.Header().Set("X-Row-Count", fmt.Sprintf("%d", rows))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ListPlans returns the cycle's manager plans.
// GET /api/cycles/{id}/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	cycleID := merit.CycleID(chi.URLParam(r, "id"))

	plans, err := h.PlanStore.ListPlansByCycle(r.Context(), tenant, cycleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListClosures returns the cycle's closure ledger, oldest first.
// GET /api/cycles/{id}/closures
func (h *Handler) ListClosures(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	cycleID := merit.CycleID(chi.URLParam(r, "id"))

	events, err := h.Closures.ListClosures(r.Context(), tenant, cycleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ClosureEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = ClosureEventDTO{
			ID: string(ev.ID), Action: string(ev.Action),
			ActorID: ev.ActorID, Reason: ev.Reason, At: ev.At,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PLAN ENDPOINTS
// =============================================================================

// PlanHistory returns a plan's approval and lock audit trails.
// GET /api/plans/{id}/history
func (h *Handler) PlanHistory(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	planID := cycle.PlanID(chi.URLParam(r, "id"))

	if _, err := h.PlanStore.GetPlan(r.Context(), tenant, planID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	approvals, err := h.PlanStore.ApprovalHistory(r.Context(), tenant, planID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	locks, err := h.PlanStore.LockHistory(r.Context(), tenant, planID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := PlanHistoryResponse{
		PlanID:    string(planID),
		Approvals: make([]ApprovalEventDTO, len(approvals)),
		Locks:     make([]LockEventDTO, len(locks)),
	}
	for i, ev := range approvals {
		resp.Approvals[i] = ApprovalEventDTO{
			ID: string(ev.ID), Action: string(ev.Action),
			ActorID: ev.ActorID, Reason: ev.Reason, At: ev.At,
		}
	}
	for i, ev := range locks {
		resp.Locks[i] = LockEventDTO{
			ID: string(ev.ID), Action: string(ev.Action),
			ActorID: ev.ActorID, Note: ev.Note, Bulk: ev.Bulk, At: ev.At,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// AdminAction executes one governance action.
// POST /api/admin/actions
func (h *Handler) AdminAction(w http.ResponseWriter, r *http.Request) {
	tenant, actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req AdminActionRequest
	if !h.decode(w, r, &req) {
		return
	}

	cycleID := merit.CycleID(req.CycleID)
	planID := cycle.PlanID(req.PlanID)
	ctx := r.Context()

	switch req.Action {
	case "close_cycle", "reopen_cycle", "lock_all_plans":
		if req.CycleID == "" {
			writeError(w, http.StatusBadRequest, "cycle_id is required for "+req.Action, nil)
			return
		}
	default:
		if req.PlanID == "" {
			writeError(w, http.StatusBadRequest, "plan_id is required for "+req.Action, nil)
			return
		}
	}

	var (
		res cycle.TransitionResult
		err error
	)
	switch req.Action {
	case "close_cycle":
		if err = h.Plans.Close(ctx, tenant, cycleID, actor, req.Reason); err == nil {
			writeJSON(w, http.StatusOK, AdminActionResponse{OK: true, Action: req.Action})
			return
		}
	case "reopen_cycle":
		if err = h.Plans.ReopenCycle(ctx, tenant, cycleID, actor, req.Reason); err == nil {
			writeJSON(w, http.StatusOK, AdminActionResponse{OK: true, Action: req.Action})
			return
		}
	case "lock_all_plans":
		var locked int
		if locked, err = h.Plans.LockAll(ctx, tenant, cycleID, actor, req.Reason); err == nil {
			writeJSON(w, http.StatusOK, AdminActionResponse{OK: true, Action: req.Action, PlansLocked: locked})
			return
		}
	case "lock_plan":
		res, err = h.Plans.Lock(ctx, tenant, planID, actor, req.Reason)
	case "reopen_plan":
		res, err = h.Plans.Reopen(ctx, tenant, planID, actor, req.Reason)
	case "submit_plan":
		res, err = h.Plans.Submit(ctx, tenant, planID, actor, req.Reason)
	case "approve_plan":
		res, err = h.Plans.Approve(ctx, tenant, planID, actor, req.Reason)
	case "reject_plan":
		res, err = h.Plans.Reject(ctx, tenant, planID, actor, req.Reason)
	case "return_to_manager":
		res, err = h.Plans.ReturnToManager(ctx, tenant, planID, actor, req.Reason)
	case "revoke_approval":
		res, err = h.Plans.RevokeApproval(ctx, tenant, planID, actor, req.Reason)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminActionResponse{
		OK:             true,
		Action:         req.Action,
		PreviousStatus: string(res.Previous),
		NewStatus:      string(res.New),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// allow checks a cycle-level capability for the actor.
func (h *Handler) allow(w http.ResponseWriter, actor, action string) bool {
	ok, err := h.Perm.Can(actor, action, cycle.ResourceCycle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Permission check failed", err)
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "Action not permitted", nil)
		return false
	}
	return true
}

// writeDomainError maps domain errors to transport status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	if ge, ok := publish.AsGateError(err); ok {
		status := http.StatusConflict
		if ge.Code == publish.CodeDeadRunData {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, ErrorResponse{Error: ge.Message, Code: string(ge.Code), Details: ge.Details})
		return
	}

	var invalid *cycle.InvalidTransitionError
	switch {
	case merit.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, cycle.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, cycle.ErrReasonRequired), errors.Is(err, publish.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &invalid),
		errors.Is(err, cycle.ErrPlanLocked),
		errors.Is(err, cycle.ErrPlanNotLocked),
		errors.Is(err, merit.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, publish.ErrNotPublished):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: string(publish.CodeNotPublished)})
	case merit.IsStructural(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		var ruleErr *merit.RuleError
		if errors.As(err, &ruleErr) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
