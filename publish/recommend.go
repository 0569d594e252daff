/*
recommend.go - Recommended-run selection

PURPOSE:
  Picks which run the system recommends publishing: the complete run
  closest to full budget utilization without exceeding it. Expressed
  as a pure, total-order comparator so the selection is deterministic
  and independently testable.

ORDERING:
  1. WITHIN-budget runs sort before OVER-budget runs (any amount of
     overspend is worse than any underspend)
  2. Smaller absolute remaining budget wins
  3. Run ID breaks exact ties for a stable total order
*/
package publish

import (
	"sort"
	"strings"

	"github.com/warp/merit-engine/merit"
)

// Compare is a total order over runs: negative when a should be
// recommended over b.
func Compare(a, b merit.Run) int {
	aOver, bOver := 0, 0
	if a.BudgetStatus == merit.BudgetOver {
		aOver = 1
	}
	if b.BudgetStatus == merit.BudgetOver {
		bOver = 1
	}
	if aOver != bOver {
		return aOver - bOver
	}

	ar := a.RemainingBudgetAmount.Abs()
	br := b.RemainingBudgetAmount.Abs()
	if c := ar.Cmp(br); c != 0 {
		return c
	}
	return strings.Compare(string(a.ID), string(b.ID))
}

// Recommended returns the best COMPLETE run under Compare, or nil when
// no complete runs exist.
func Recommended(runs []merit.Run) *merit.Run {
	complete := make([]merit.Run, 0, len(runs))
	for _, r := range runs {
		if r.Status == merit.RunComplete {
			complete = append(complete, r)
		}
	}
	if len(complete) == 0 {
		return nil
	}
	sort.Slice(complete, func(i, j int) bool {
		return Compare(complete[i], complete[j]) < 0
	})
	best := complete[0]
	return &best
}
