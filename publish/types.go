/*
Package publish governs the path from a completed scenario run to
payroll: the multi-condition publication gate, the idempotent
"effective recommendations" snapshot, the payroll readiness validator,
and the flat-file exporter.

PURPOSE:
  Publication is the only write that leaves the review system's world:
  once effective recommendations exist, payroll consumes them. The gate
  therefore demands everything at once - cycle closed, every plan
  locked, validator clean, run payload structurally alive - and the
  write itself is an atomic replace so a failed overwrite can never
  leave a half-written publication.

KEY CONCEPTS IN THIS FILE (types.go):
  - Publication: The at-most-one live publication per cycle
  - EffectiveRecommendation: The payroll-facing per-employee artifact
  - PublicationStore: Atomic replace semantics

SEE ALSO:
  - publisher.go: The gate and the publish action
  - validator.go: Payroll readiness report
  - recommend.go: Which run the system recommends publishing
  - exporter.go: CSV serialization
*/
package publish

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/merit-engine/merit"
)

type PublicationID string

// Publication records one live publication of a cycle. At most one
// exists per cycle; overwrite replaces it together with its
// recommendation rows.
type Publication struct {
	ID         PublicationID
	TenantID   merit.TenantID
	CycleID    merit.CycleID
	ScenarioID merit.ScenarioID
	RunID      merit.RunID

	EmployeeCount      int
	TotalAppliedAmount decimal.Decimal

	// Reason is required unless the published run was the algorithmically
	// recommended one.
	Reason        string
	IsRecommended bool

	ActorID     string
	PublishedAt time.Time
}

// EffectiveRecommendation is the payroll-bound increase record for one
// employee, derived entirely from one run's result rows at publish time.
type EffectiveRecommendation struct {
	TenantID   merit.TenantID
	CycleID    merit.CycleID
	ScenarioID merit.ScenarioID
	RunID      merit.RunID

	EmployeeExternalID        string
	CurrentBasePay            decimal.Decimal
	RecommendedIncreasePct    decimal.Decimal
	RecommendedIncreaseAmount decimal.Decimal
	EffectiveNewBasePay       decimal.Decimal
	Currency                  string
	CompBasis                 merit.CompBasis

	ActorID     string
	PublishedAt time.Time
}

// PublicationStore persists publications and their recommendation rows.
type PublicationStore interface {
	// LivePublication returns the cycle's current publication, or nil.
	LivePublication(ctx context.Context, tenant merit.TenantID, cycle merit.CycleID) (*Publication, error)

	// Replace atomically removes any prior publication and its
	// recommendation rows for the cycle and inserts the new set. A
	// partial failure must leave the prior publication intact.
	Replace(ctx context.Context, pub Publication, recs []EffectiveRecommendation) error

	// Recommendations returns the live recommendation rows for a cycle.
	Recommendations(ctx context.Context, tenant merit.TenantID, cycle merit.CycleID) ([]EffectiveRecommendation, error)
}
