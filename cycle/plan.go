/*
plan.go - Manager plan approval state machine

PURPOSE:
  Implements the per-manager approval workflow with actor and role
  guards:

    draft ──submit──▶ submitted ──┬─approve─▶ approved ──lock──▶ locked
      ▲                           ├─reject──▶ rejected ──submit─▶ (again)
      │                           └─return──▶ draft
      └────────return_to_manager──┘
    approved ──revoke_approval (admin)──▶ in_review

  Locking is orthogonal to approval: an administrator can freeze a plan
  wherever it sits. A locked plan accepts no approval transitions until
  it is reopened; reopening restores the status derived by folding the
  approval history.

GUARDS:
  submit            the plan's own manager; from draft or rejected
  approve           the assigned approver; from submitted or in_review
  reject            the assigned approver; non-empty reason; from
                    submitted or in_review
  return_to_manager the assigned approver; from submitted or in_review
  revoke_approval   admin role; from approved
  lock/reopen/      admin role; independent of approval status
  lock_all

CONCURRENCY:
  Guards are read-then-write; the store's conditional update is what
  prevents two conflicting transitions from both succeeding. A lost
  race surfaces as merit.ErrConcurrentModification.

SEE ALSO:
  - types.go: FoldStatus, event types
  - closure.go: The cycle-level ledger
*/
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/merit-engine/merit"
)

// Permission answers capability checks for role-gated actions,
// independent of how roles are stored. Implemented by authz.Enforcer.
type Permission interface {
	Can(actorID, action, resource string) (bool, error)
}

// Role-gated action names, shared with the authz policy table.
const (
	PermCloseCycle     = "close_cycle"
	PermReopenCycle    = "reopen_cycle"
	PermLockPlan       = "lock_plan"
	PermReopenPlan     = "reopen_plan"
	PermLockAllPlans   = "lock_all_plans"
	PermRevokeApproval = "revoke_approval"

	ResourceCycle = "cycle"
	ResourcePlan  = "plan"
)

// TransitionResult reports a completed transition for the caller.
type TransitionResult struct {
	PlanID   PlanID
	Previous PlanStatus
	New      PlanStatus
}

// Service drives every governance mutation. Construct with all stores
// and a Permission checker.
type Service struct {
	Cycles   CycleStore
	Plans    PlanStore
	Closures ClosureStore
	Perm     Permission

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) requireRole(actor, action, resource string) error {
	ok, err := s.Perm.Can(actor, action, resource)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// =============================================================================
// APPROVAL TRANSITIONS
// =============================================================================

// Submit moves a draft or rejected plan to submitted. Only the plan's
// own manager may submit.
func (s *Service) Submit(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, note string) (TransitionResult, error) {
	return s.transition(ctx, tenant, planID, actor, note, ActionSubmit)
}

// Approve moves a submitted or in-review plan to approved and stamps
// the approval timestamp. Only the assigned approver may approve.
func (s *Service) Approve(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, note string) (TransitionResult, error) {
	return s.transition(ctx, tenant, planID, actor, note, ActionApprove)
}

// Reject moves a submitted or in-review plan to rejected. Requires a
// non-empty reason; only the assigned approver may reject.
func (s *Service) Reject(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, reason string) (TransitionResult, error) {
	if reason == "" {
		return TransitionResult{}, ErrReasonRequired
	}
	return s.transition(ctx, tenant, planID, actor, reason, ActionReject)
}

// ReturnToManager hands a submitted or in-review plan back to draft.
// Only the assigned approver may return it.
func (s *Service) ReturnToManager(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, note string) (TransitionResult, error) {
	return s.transition(ctx, tenant, planID, actor, note, ActionReturnToManager)
}

// RevokeApproval is the admin-only escape hatch: approved back to
// in_review.
func (s *Service) RevokeApproval(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, note string) (TransitionResult, error) {
	if err := s.requireRole(actor, PermRevokeApproval, ResourcePlan); err != nil {
		return TransitionResult{}, err
	}
	return s.transition(ctx, tenant, planID, actor, note, ActionRevokeApproval)
}

// transitionRule describes one action's guard set.
type transitionRule struct {
	allowedFrom   []PlanStatus
	target        PlanStatus
	stampApproval bool
	// guard checks actor identity against the plan. Role-gated actions
	// check before lookup instead.
	guard func(p *ManagerPlan, actor string) error
}

func managerGuard(p *ManagerPlan, actor string) error {
	if p.ManagerID != actor {
		return ErrForbidden
	}
	return nil
}

func approverGuard(p *ManagerPlan, actor string) error {
	if p.ApproverID != actor {
		return ErrForbidden
	}
	return nil
}

var transitionRules = map[ApprovalAction]transitionRule{
	ActionSubmit:          {allowedFrom: []PlanStatus{PlanDraft, PlanRejected}, target: PlanSubmitted, guard: managerGuard},
	ActionApprove:         {allowedFrom: []PlanStatus{PlanSubmitted, PlanInReview}, target: PlanApproved, stampApproval: true, guard: approverGuard},
	ActionReject:          {allowedFrom: []PlanStatus{PlanSubmitted, PlanInReview}, target: PlanRejected, guard: approverGuard},
	ActionReturnToManager: {allowedFrom: []PlanStatus{PlanSubmitted, PlanInReview}, target: PlanDraft, guard: approverGuard},
	ActionRevokeApproval:  {allowedFrom: []PlanStatus{PlanApproved}, target: PlanInReview, guard: nil},
}

func (s *Service) transition(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, reason string, action ApprovalAction) (TransitionResult, error) {
	rule := transitionRules[action]

	plan, err := s.Plans.GetPlan(ctx, tenant, planID)
	if err != nil {
		return TransitionResult{}, err
	}
	if plan.IsLocked {
		return TransitionResult{}, ErrPlanLocked
	}
	if rule.guard != nil {
		if err := rule.guard(plan, actor); err != nil {
			return TransitionResult{}, err
		}
	}
	if !statusIn(plan.Status, rule.allowedFrom) {
		return TransitionResult{}, &InvalidTransitionError{PlanID: planID, From: plan.Status, Action: action}
	}

	ev := ApprovalEvent{
		ID:       EventID(uuid.NewString()),
		TenantID: tenant,
		PlanID:   planID,
		Action:   action,
		ActorID:  actor,
		Reason:   reason,
		At:       s.now(),
	}
	prev, err := s.Plans.TransitionPlan(ctx, tenant, planID, rule.allowedFrom, rule.target, rule.stampApproval, ev)
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{PlanID: planID, Previous: prev, New: rule.target}, nil
}

func statusIn(status PlanStatus, set []PlanStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// =============================================================================
// LOCK OPERATIONS - Admin-only, orthogonal to approval status
// =============================================================================

// Lock freezes a plan regardless of its approval status.
func (s *Service) Lock(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, note string) (TransitionResult, error) {
	if err := s.requireRole(actor, PermLockPlan, ResourcePlan); err != nil {
		return TransitionResult{}, err
	}
	plan, err := s.Plans.GetPlan(ctx, tenant, planID)
	if err != nil {
		return TransitionResult{}, err
	}
	if plan.IsLocked {
		return TransitionResult{}, ErrPlanLocked
	}

	ev := PlanClosureEvent{
		ID:       EventID(uuid.NewString()),
		TenantID: tenant,
		PlanID:   planID,
		Action:   HistoryLock,
		ActorID:  actor,
		Note:     note,
		At:       s.now(),
	}
	if err := s.Plans.SetPlanLock(ctx, tenant, planID, true, PlanLocked, ev); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{PlanID: planID, Previous: plan.Status, New: PlanLocked}, nil
}

// Reopen unlocks a plan. The restored status is derived by folding the
// approval history, keeping the cached column honest with the log.
func (s *Service) Reopen(ctx context.Context, tenant merit.TenantID, planID PlanID, actor, note string) (TransitionResult, error) {
	if err := s.requireRole(actor, PermReopenPlan, ResourcePlan); err != nil {
		return TransitionResult{}, err
	}
	plan, err := s.Plans.GetPlan(ctx, tenant, planID)
	if err != nil {
		return TransitionResult{}, err
	}
	if !plan.IsLocked {
		return TransitionResult{}, ErrPlanNotLocked
	}

	history, err := s.Plans.ApprovalHistory(ctx, tenant, planID)
	if err != nil {
		return TransitionResult{}, err
	}
	restored := FoldStatus(history)

	ev := PlanClosureEvent{
		ID:       EventID(uuid.NewString()),
		TenantID: tenant,
		PlanID:   planID,
		Action:   HistoryReopen,
		ActorID:  actor,
		Note:     note,
		At:       s.now(),
	}
	if err := s.Plans.SetPlanLock(ctx, tenant, planID, false, restored, ev); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{PlanID: planID, Previous: PlanLocked, New: restored}, nil
}

// LockAll locks every not-yet-locked plan in the cycle as one batched
// operation, one history row per plan. Returns the number locked.
func (s *Service) LockAll(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID, actor, note string) (int, error) {
	if err := s.requireRole(actor, PermLockAllPlans, ResourceCycle); err != nil {
		return 0, err
	}
	if _, err := s.Cycles.GetCycle(ctx, tenant, cycleID); err != nil {
		return 0, err
	}
	at := s.now()
	return s.Plans.LockAll(ctx, tenant, cycleID, func(p ManagerPlan) PlanClosureEvent {
		return PlanClosureEvent{
			ID:       EventID(uuid.NewString()),
			TenantID: tenant,
			PlanID:   p.ID,
			Action:   HistoryLock,
			ActorID:  actor,
			Note:     note,
			Bulk:     true,
			At:       at,
		}
	})
}
