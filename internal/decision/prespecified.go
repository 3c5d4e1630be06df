package decision

import (
	"context"

	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

// PreSpecified runs the scheduler exactly once per timestep, at
// iteration 0. It is the right choice when no model in the SosModel
// needs within-timestep feedback.
type PreSpecified struct{}

func (PreSpecified) RunTimestep(ctx context.Context, sched *scheduler.JobScheduler, st store.Store, run domain.ModelRun, timestep int) (map[string]scheduler.JobStatus, error) {
	return sched.RunTimestep(ctx, timestep, 0)
}
