package decision

import (
	"context"
	"fmt"

	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

// ConvergenceVariable names one model output an Iterating module watches:
// its full DataArray, not a scalar summary, is compared between
// iterations, since spec.md §9 resolves the convergence norm as the
// L-infinity of each watched variable's per-element relative delta.
type ConvergenceVariable struct {
	ModelName  string
	OutputName string
}

// Iterating re-invokes the scheduler for the same timestep, iteration by
// iteration, until every ConvergenceVariable's relative change against the
// previous iteration falls under run.Tolerance (spec.md §4.6 step 4), or,
// when run.AbsoluteTolerance is positive, every absolute change falls
// under that, or run.MaxIterations is exhausted, in which case it raises
// ConvergenceError (spec.md §7) with the last iteration's results left in
// the Store as spec.md requires.
type Iterating struct {
	ConvergenceVariables []ConvergenceVariable
}

func (m Iterating) RunTimestep(ctx context.Context, sched *scheduler.JobScheduler, st store.Store, run domain.ModelRun, timestep int) (map[string]scheduler.JobStatus, error) {
	statuses, err := sched.RunTimestep(ctx, timestep, 0)
	if err != nil {
		return statuses, err
	}

	for i := 1; i < run.MaxIterations; i++ {
		statuses, err = sched.RunTimestep(ctx, timestep, i)
		if err != nil {
			return statuses, err
		}
		relDelta, absDelta, err := m.maxDelta(ctx, st, run.Name, timestep, i)
		if err != nil {
			return statuses, err
		}
		converged := relDelta < run.Tolerance
		if run.AbsoluteTolerance > 0 && absDelta < run.AbsoluteTolerance {
			converged = true
		}
		if converged {
			if err := sched.SettleIteration(ctx, timestep, i); err != nil {
				return statuses, err
			}
			return statuses, nil
		}
	}
	return statuses, domain.NewDomainError(domain.ErrCodeConvergence,
		fmt.Sprintf("model run %q: timestep %d: iterating decision module did not converge within %d iterations",
			run.Name, timestep, run.MaxIterations), nil)
}

// maxDelta returns the L-infinity norm, across every ConvergenceVariable,
// of both the relative and the absolute change between iteration-1 and
// iteration.
func (m Iterating) maxDelta(ctx context.Context, st store.Store, runName string, timestep, iteration int) (relDelta, absDelta float64, err error) {
	for _, v := range m.ConvergenceVariables {
		cur, err := st.ReadResults(ctx, store.ResultKey{ModelRunName: runName, ModelName: v.ModelName, OutputName: v.OutputName, Timestep: timestep, Iteration: iteration})
		if err != nil {
			return 0, 0, err
		}
		prev, err := st.ReadResults(ctx, store.ResultKey{ModelRunName: runName, ModelName: v.ModelName, OutputName: v.OutputName, Timestep: timestep, Iteration: iteration - 1})
		if err != nil {
			return 0, 0, err
		}
		if d := linfRelativeDelta(prev, cur); d > relDelta {
			relDelta = d
		}
		if d := linfAbsoluteDelta(prev, cur); d > absDelta {
			absDelta = d
		}
	}
	return relDelta, absDelta, nil
}
