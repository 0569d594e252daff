/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All pay amounts and percentages are serialized as decimal strings,
  never JSON numbers. Clients must not round-trip them through floats.

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  the validator before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - publish/validator.go: Report is returned as-is (it carries its own tags)
*/
package api

import (
	"time"

	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
	"github.com/warp/merit-engine/publish"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AdminActionRequest is the single admin/governance mutation endpoint.
// Cycle-level actions need cycle_id; plan-level actions need plan_id.
type AdminActionRequest struct {
	Action  string `json:"action" validate:"required,oneof=close_cycle reopen_cycle lock_plan reopen_plan lock_all_plans submit_plan approve_plan reject_plan return_to_manager revoke_approval"`
	CycleID string `json:"cycle_id,omitempty"`
	PlanID  string `json:"plan_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// PublishRequest publishes one run as the cycle's effective
// recommendations.
type PublishRequest struct {
	RunID     string `json:"run_id" validate:"required"`
	Reason    string `json:"reason,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is the JSON error envelope. Code carries the
// machine-readable failure code when one exists.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// AdminActionResponse reports a completed governance action.
type AdminActionResponse struct {
	OK             bool   `json:"ok"`
	Action         string `json:"action"`
	PreviousStatus string `json:"previous_status,omitempty"`
	NewStatus      string `json:"new_status,omitempty"`
	PlansLocked    int    `json:"plans_locked,omitempty"`
}

// RunDTO represents a scenario run in API responses.
type RunDTO struct {
	ID                    string              `json:"id"`
	ScenarioID            string              `json:"scenario_id"`
	Status                string              `json:"status"`
	Processed             int                 `json:"processed"`
	BaselineTotal         string              `json:"baseline_total"`
	ApprovedBudgetAmount  string              `json:"approved_budget_amount"`
	TotalAppliedAmount    string              `json:"total_applied_amount"`
	RemainingBudgetAmount string              `json:"remaining_budget_amount"`
	BudgetStatus          string              `json:"budget_status"`
	Quality               merit.QualityReport `json:"quality"`
	EngineVersion         string              `json:"engine_version"`
	ExecutedBy            string              `json:"executed_by"`
	ErrorMessage          string              `json:"error_message,omitempty"`
	StartedAt             time.Time           `json:"started_at"`
	FinishedAt            time.Time           `json:"finished_at,omitempty"`
}

func toRunDTO(r merit.Run) RunDTO {
	return RunDTO{
		ID:                    string(r.ID),
		ScenarioID:            string(r.ScenarioID),
		Status:                string(r.Status),
		Processed:             r.Processed,
		BaselineTotal:         r.BaselineTotal.String(),
		ApprovedBudgetAmount:  r.ApprovedBudgetAmount.String(),
		TotalAppliedAmount:    r.TotalAppliedAmount.String(),
		RemainingBudgetAmount: r.RemainingBudgetAmount.String(),
		BudgetStatus:          string(r.BudgetStatus),
		Quality:               r.Quality,
		EngineVersion:         r.EngineVersion,
		ExecutedBy:            r.ExecutedBy,
		ErrorMessage:          r.ErrorMessage,
		StartedAt:             r.StartedAt,
		FinishedAt:            r.FinishedAt,
	}
}

// PlanDTO represents a manager plan in API responses.
type PlanDTO struct {
	ID           string     `json:"id"`
	CycleID      string     `json:"cycle_id"`
	ManagerID    string     `json:"manager_id"`
	ApproverID   string     `json:"approver_id"`
	Status       string     `json:"status"`
	IsLocked     bool       `json:"is_locked"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	AppliedTotal string     `json:"applied_total"`
	Employees    int        `json:"employees"`
}

func toPlanDTO(p cycle.ManagerPlan) PlanDTO {
	return PlanDTO{
		ID:           string(p.ID),
		CycleID:      string(p.CycleID),
		ManagerID:    p.ManagerID,
		ApproverID:   p.ApproverID,
		Status:       string(p.Status),
		IsLocked:     p.IsLocked,
		LockedAt:     p.LockedAt,
		ApprovedAt:   p.ApprovedAt,
		AppliedTotal: p.AppliedTotal.String(),
		Employees:    p.Employees,
	}
}

// ApprovalEventDTO is one approval history row.
type ApprovalEventDTO struct {
	ID      string    `json:"id"`
	Action  string    `json:"action"`
	ActorID string    `json:"actor_id"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// LockEventDTO is one lock history row.
type LockEventDTO struct {
	ID      string    `json:"id"`
	Action  string    `json:"action"`
	ActorID string    `json:"actor_id"`
	Note    string    `json:"note,omitempty"`
	Bulk    bool      `json:"bulk,omitempty"`
	At      time.Time `json:"at"`
}

// PlanHistoryResponse bundles both per-plan audit trails.
type PlanHistoryResponse struct {
	PlanID    string             `json:"plan_id"`
	Approvals []ApprovalEventDTO `json:"approvals"`
	Locks     []LockEventDTO     `json:"locks"`
}

// ClosureEventDTO is one cycle closure ledger row.
type ClosureEventDTO struct {
	ID      string    `json:"id"`
	Action  string    `json:"action"`
	ActorID string    `json:"actor_id"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// PublicationDTO represents a live publication.
type PublicationDTO struct {
	ID                 string    `json:"id"`
	CycleID            string    `json:"cycle_id"`
	ScenarioID         string    `json:"scenario_id"`
	RunID              string    `json:"run_id"`
	EmployeeCount      int       `json:"employee_count"`
	TotalAppliedAmount string    `json:"total_applied_amount"`
	Reason             string    `json:"reason,omitempty"`
	IsRecommended      bool      `json:"is_recommended"`
	ActorID            string    `json:"actor_id"`
	PublishedAt        time.Time `json:"published_at"`
}

func toPublicationDTO(p *publish.Publication) *PublicationDTO {
	if p == nil {
		return nil
	}
	return &PublicationDTO{
		ID:                 string(p.ID),
		CycleID:            string(p.CycleID),
		ScenarioID:         string(p.ScenarioID),
		RunID:              string(p.RunID),
		EmployeeCount:      p.EmployeeCount,
		TotalAppliedAmount: p.TotalAppliedAmount.String(),
		Reason:             p.Reason,
		IsRecommended:      p.IsRecommended,
		ActorID:            p.ActorID,
		PublishedAt:        p.PublishedAt,
	}
}

// PublishStatusDTO is the publish-status read view.
type PublishStatusDTO struct {
	Published        bool            `json:"published"`
	Publication      *PublicationDTO `json:"publication,omitempty"`
	RecommendedRunID string          `json:"recommended_run_id,omitempty"`
}
