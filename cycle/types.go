/*
Package cycle provides the governance side of a compensation review:
manager plan approvals and the cycle closure ledger.

PURPOSE:
  A cycle's path to payroll runs through two independent audit trails:
  - Per-plan approval history (submit/approve/reject/return/revoke)
    plus lock history, driven by managers, approvers and admins.
  - A cycle-level closure ledger (close/reopen), driven by admins.

  Status transitions are the single source of truth for governance
  state. Every transition appends exactly one immutable history event;
  the plan's status column is a derived cache of the last successful
  transition, updated in the same storage transaction that appends
  the event.

KEY CONCEPTS IN THIS FILE (types.go):
  - ManagerPlan: One manager's slice of the cycle with approval status
  - ApprovalEvent / PlanClosureEvent: Append-only per-plan audit rows
  - AdminClosureEvent: Cycle-level close/reopen ledger row
  - FoldStatus: Derives current status from the ordered history

SEE ALSO:
  - plan.go: Transition guards and the state machine service
  - closure.go: Cycle closed-ness derivation
*/
package cycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/merit-engine/merit"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type EventID string

// =============================================================================
// CYCLE - The review period under governance
// =============================================================================

// Cycle is a compensation review window. Whether it is closed is always
// derived from the closure ledger, never stored as a boolean.
type Cycle struct {
	ID       merit.CycleID
	TenantID merit.TenantID
	Name     string
	StartsOn time.Time
	EndsOn   time.Time

	// Optional budget envelope used by the payroll readiness validator.
	BudgetAmount decimal.NullDecimal
	Currency     string

	CreatedAt time.Time
}

// =============================================================================
// MANAGER PLAN
// =============================================================================

type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanSubmitted PlanStatus = "submitted"
	PlanInReview  PlanStatus = "in_review"
	PlanApproved  PlanStatus = "approved"
	PlanRejected  PlanStatus = "rejected"
	PlanLocked    PlanStatus = "locked"
)

// ManagerPlan is one manager's approval unit within a cycle. Status and
// lock state are mutated only through the Service.
type ManagerPlan struct {
	ID           PlanID
	TenantID     merit.TenantID
	CycleID      merit.CycleID
	ManagerID    string
	ApproverID   string
	Status       PlanStatus
	IsLocked     bool
	LockedAt     *time.Time
	ApprovedAt   *time.Time
	AppliedTotal decimal.Decimal
	Employees    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// APPROVAL HISTORY - Append-only per-plan audit trail
// =============================================================================

type ApprovalAction string

const (
	ActionSubmit          ApprovalAction = "submit"
	ActionApprove         ApprovalAction = "approve"
	ActionReject          ApprovalAction = "reject"
	ActionReturnToManager ApprovalAction = "return_to_manager"
	ActionRevokeApproval  ApprovalAction = "revoke_approval"
)

// ApprovalEvent mirrors one state machine transition. Immutable.
type ApprovalEvent struct {
	ID       EventID
	TenantID merit.TenantID
	PlanID   PlanID
	Action   ApprovalAction
	ActorID  string
	Reason   string
	At       time.Time
}

// =============================================================================
// LOCK HISTORY - Append-only per-plan lock/reopen trail
// =============================================================================

type ClosureHistoryAction string

const (
	HistoryLock   ClosureHistoryAction = "lock"
	HistoryReopen ClosureHistoryAction = "reopen"
)

// PlanClosureEvent records one admin lock or reopen on a plan. Bulk lock
// produces one event per affected plan.
type PlanClosureEvent struct {
	ID       EventID
	TenantID merit.TenantID
	PlanID   PlanID
	Action   ClosureHistoryAction
	ActorID  string
	Note     string
	Bulk     bool
	At       time.Time
}

// =============================================================================
// CYCLE CLOSURE LEDGER
// =============================================================================

type ClosureAction string

const (
	ClosureClose  ClosureAction = "close"
	ClosureReopen ClosureAction = "reopen"
)

// AdminClosureEvent is one row of the cycle-level closure ledger.
type AdminClosureEvent struct {
	ID       EventID
	TenantID merit.TenantID
	CycleID  merit.CycleID
	Action   ClosureAction
	ActorID  string
	Reason   string
	At       time.Time
}

// =============================================================================
// STATUS FOLDING - History is the source of truth
// =============================================================================

// FoldStatus derives a plan's approval status by folding its ordered
// approval history. An empty history is a draft. The cached status
// column must always equal this fold (modulo the locked overlay).
func FoldStatus(events []ApprovalEvent) PlanStatus {
	status := PlanDraft
	for _, ev := range events {
		switch ev.Action {
		case ActionSubmit:
			status = PlanSubmitted
		case ActionApprove:
			status = PlanApproved
		case ActionReject:
			status = PlanRejected
		case ActionReturnToManager:
			status = PlanDraft
		case ActionRevokeApproval:
			status = PlanInReview
		}
	}
	return status
}

// IsClosed derives cycle closed-ness from the ordered closure ledger:
// at least one event exists and the most recent action is close.
func IsClosed(events []AdminClosureEvent) bool {
	if len(events) == 0 {
		return false
	}
	return events[len(events)-1].Action == ClosureClose
}
