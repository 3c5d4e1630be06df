// Package decision implements the strategies that drive how many times,
// and with what additional bookkeeping, the scheduler runs one timestep's
// dependency graph: pre-specified (exactly once), rule-based (once, then
// an expr-lang rule records a choice into decision state), and iterating
// (a bounded fixed-point loop watching named convergence variables).
package decision

import (
	"context"
	"math"

	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

// Module drives one timestep of a ModelRun across however many scheduler
// iterations it needs, returning the final per-model JobStatus map.
type Module interface {
	RunTimestep(ctx context.Context, sched *scheduler.JobScheduler, st store.Store, run domain.ModelRun, timestep int) (map[string]scheduler.JobStatus, error)
}

// linfRelativeDelta computes the L-infinity norm of the element-wise
// relative change between two same-shaped DataArrays: max over all
// elements of |cur-prev| / max(|prev|, 1). NaNs on both sides count as no
// change; a NaN appearing where the other side is a number is treated as
// maximal change so a newly-diverging variable cannot be mistaken for
// convergence.
func linfRelativeDelta(prev, cur domain.DataArray) float64 {
	p := prev.Values()
	c := cur.Values()
	maxDelta := 0.0
	n := len(c)
	if len(p) < n {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		pNaN, cNaN := math.IsNaN(p[i]), math.IsNaN(c[i])
		if pNaN && cNaN {
			continue
		}
		if pNaN != cNaN {
			return math.Inf(1)
		}
		denom := math.Abs(p[i])
		if denom < 1 {
			denom = 1
		}
		delta := math.Abs(c[i]-p[i]) / denom
		if delta > maxDelta {
			maxDelta = delta
		}
	}
	return maxDelta
}

// linfAbsoluteDelta computes the L-infinity norm of the element-wise
// absolute change between two same-shaped DataArrays, for callers that
// compare against an absolute rather than relative tolerance.
func linfAbsoluteDelta(prev, cur domain.DataArray) float64 {
	p := prev.Values()
	c := cur.Values()
	maxDelta := 0.0
	n := len(c)
	if len(p) < n {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		pNaN, cNaN := math.IsNaN(p[i]), math.IsNaN(c[i])
		if pNaN && cNaN {
			continue
		}
		if pNaN != cNaN {
			return math.Inf(1)
		}
		delta := math.Abs(c[i] - p[i])
		if delta > maxDelta {
			maxDelta = delta
		}
	}
	return maxDelta
}
