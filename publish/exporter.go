/*
exporter.go - Payroll flat-file export

PURPOSE:
  Serializes a cycle's live effective recommendations as CSV with a
  fixed column set consumed by downstream payroll tooling. Column
  order is part of the contract; do not reorder.
*/
package publish

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/warp/merit-engine/merit"
)

// exportColumns is the fixed payroll header row.
var exportColumns = []string{
	"employee_external_id",
	"current_base_salary",
	"recommended_increase_pct",
	"recommended_increase_amount",
	"effective_new_base_salary",
	"currency",
	"published_at",
}

// Exporter writes the payroll CSV for a published cycle.
type Exporter struct {
	Pubs PublicationStore
}

// Export streams the live recommendations as CSV. Returns
// ErrNotPublished when the cycle has no live publication.
func (e *Exporter) Export(ctx context.Context, w io.Writer, tenant merit.TenantID, cycleID merit.CycleID) (int, error) {
	pub, err := e.Pubs.LivePublication(ctx, tenant, cycleID)
	if err != nil {
		return 0, err
	}
	if pub == nil {
		return 0, ErrNotPublished
	}
	recs, err := e.Pubs.Recommendations(ctx, tenant, cycleID)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range recs {
		row := []string{
			r.EmployeeExternalID,
			r.CurrentBasePay.String(),
			r.RecommendedIncreasePct.String(),
			r.RecommendedIncreaseAmount.String(),
			r.EffectiveNewBasePay.String(),
			r.Currency,
			r.PublishedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(recs), nil
}
