/*
closure.go - Cycle closure ledger

PURPOSE:
  Admin-gated close/reopen of a review cycle as an append-only ledger.
  "Is the cycle closed" is always computed from the ledger's most
  recent event, never from a mutable boolean that could drift from its
  own audit trail.
*/
package cycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/warp/merit-engine/merit"
)

// Close appends a close event to the cycle's ledger.
func (s *Service) Close(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID, actor, reason string) error {
	return s.appendClosure(ctx, tenant, cycleID, actor, reason, ClosureClose, PermCloseCycle)
}

// ReopenCycle appends a reopen event to the cycle's ledger.
func (s *Service) ReopenCycle(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID, actor, reason string) error {
	return s.appendClosure(ctx, tenant, cycleID, actor, reason, ClosureReopen, PermReopenCycle)
}

func (s *Service) appendClosure(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID, actor, reason string, action ClosureAction, perm string) error {
	if err := s.requireRole(actor, perm, ResourceCycle); err != nil {
		return err
	}
	if _, err := s.Cycles.GetCycle(ctx, tenant, cycleID); err != nil {
		return err
	}
	return s.Closures.AppendClosure(ctx, AdminClosureEvent{
		ID:       EventID(uuid.NewString()),
		TenantID: tenant,
		CycleID:  cycleID,
		Action:   action,
		ActorID:  actor,
		Reason:   reason,
		At:       s.now(),
	})
}

// Closed reports whether the cycle is currently closed per the ledger.
func (s *Service) Closed(ctx context.Context, tenant merit.TenantID, cycleID merit.CycleID) (bool, error) {
	events, err := s.Closures.ListClosures(ctx, tenant, cycleID)
	if err != nil {
		return false, err
	}
	return IsClosed(events), nil
}
