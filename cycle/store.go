/*
store.go - Persistence interfaces for governance state

PURPOSE:
  Defines how the state machine and the closure ledger touch storage.
  Both are append-only logs guarded by read-then-write checks: the
  store's transition methods are conditional on the expected prior
  state so that two simultaneous conflicting transitions cannot both
  succeed silently.

ATOMICITY CONTRACT:
  TransitionPlan and SetPlanLock update the cached status/lock columns
  AND append the corresponding history event inside one storage
  transaction. LockAll does the same per plan, as a single batch.
  A conditional update that matches zero rows returns
  merit.ErrConcurrentModification (or the guard-specific sentinel).

SEE ALSO:
  - plan.go: The only caller of the write side
  - store/sqlite/sqlite.go, store/memory/memory.go: Implementations
*/
package cycle

import (
	"context"

	"github.com/warp/merit-engine/merit"
)

// CycleStore reads cycle records.
type CycleStore interface {
	GetCycle(ctx context.Context, tenant merit.TenantID, id merit.CycleID) (*Cycle, error)
}

// PlanStore persists manager plans and their two history trails.
type PlanStore interface {
	GetPlan(ctx context.Context, tenant merit.TenantID, id PlanID) (*ManagerPlan, error)
	ListPlansByCycle(ctx context.Context, tenant merit.TenantID, cycle merit.CycleID) ([]ManagerPlan, error)

	// TransitionPlan conditionally moves a plan from one of the allowed
	// statuses to the target status, appending the approval event in the
	// same transaction. stampApproval also sets approved_at. Returns the
	// status the plan actually held before the update.
	TransitionPlan(ctx context.Context, tenant merit.TenantID, id PlanID, allowedFrom []PlanStatus, to PlanStatus, stampApproval bool, ev ApprovalEvent) (PlanStatus, error)

	// SetPlanLock conditionally flips the lock flag (guarded on the
	// current flag being the opposite), sets the status overlay, and
	// appends the lock history event in the same transaction.
	// restoredStatus is the status to surface after an unlock.
	SetPlanLock(ctx context.Context, tenant merit.TenantID, id PlanID, locked bool, restoredStatus PlanStatus, ev PlanClosureEvent) error

	// LockAll locks every not-yet-locked plan in the cycle as one batch,
	// one history event per plan. Returns the number of plans locked.
	LockAll(ctx context.Context, tenant merit.TenantID, cycle merit.CycleID, events func(plan ManagerPlan) PlanClosureEvent) (int, error)

	ApprovalHistory(ctx context.Context, tenant merit.TenantID, id PlanID) ([]ApprovalEvent, error)
	LockHistory(ctx context.Context, tenant merit.TenantID, id PlanID) ([]PlanClosureEvent, error)
}

// ClosureStore persists the cycle-level closure ledger.
type ClosureStore interface {
	AppendClosure(ctx context.Context, ev AdminClosureEvent) error

	// ListClosures returns the ledger ordered oldest first.
	ListClosures(ctx context.Context, tenant merit.TenantID, cycle merit.CycleID) ([]AdminClosureEvent, error)
}
