package decision

import (
	"context"
	"strconv"

	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

// Result is the aggregate outcome of driving a ModelRun's full timestep
// sequence: DONE iff every job at every timestep/iteration reached
// scheduler.JobDone (spec.md §7), else FAILED with the timestep and error
// of the first failure.
type Result struct {
	Status      string
	PerTimestep map[int]map[string]scheduler.JobStatus
	FailedAt    int
	Err         error
}

const (
	StatusDone   = "DONE"
	StatusFailed = "FAILED"
)

// DecisionLoop drives a JobScheduler across a ModelRun's timestep
// sequence (spec.md §4.6), delegating to Module for how many scheduler
// iterations each timestep needs.
type DecisionLoop struct {
	Scheduler *scheduler.JobScheduler
	Store     store.Store
	Run       domain.ModelRun
	Module    Module
}

// Execute runs BeforeModelRun once, then every timestep from the first
// one not yet fully persisted in the Store onward (resumability: spec.md
// §4.6 "on restart at timestep t, the loop reads the latest persisted
// state and continues"), through to the run's last timestep or the first
// failure.
func (l *DecisionLoop) Execute(ctx context.Context) (Result, error) {
	res := Result{PerTimestep: make(map[int]map[string]scheduler.JobStatus), FailedAt: -1}

	if err := l.Scheduler.BeforeModelRun(ctx); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res, err
	}

	start := l.resumeFrom(ctx)
	for _, t := range l.Run.Timesteps {
		if t < start {
			continue
		}
		statuses, err := l.Module.RunTimestep(ctx, l.Scheduler, l.Store, l.Run, t)
		res.PerTimestep[t] = statuses
		if err != nil || !allDone(statuses) {
			res.Status = StatusFailed
			res.FailedAt = t
			res.Err = err
			return res, err
		}
	}
	res.Status = StatusDone
	return res, nil
}

func allDone(statuses map[string]scheduler.JobStatus) bool {
	for _, s := range statuses {
		if s != scheduler.JobDone {
			return false
		}
	}
	return true
}

// resumeFrom returns the earliest timestep in the run's sequence that is
// not yet fully covered by persisted results for every sector model
// output, so re-entering Execute on a process restart skips completed
// timesteps rather than recomputing them (the scheduler's idempotence
// guarantees this is safe either way). An output that feeds a lagged
// dependency does not count as computed at the base timestep, since that
// slot holds the seeded initial condition the first timestep reads.
func (l *DecisionLoop) resumeFrom(ctx context.Context) int {
	sos := l.Scheduler.SosModel()
	available, err := l.Store.AvailableResults(ctx, l.Run.Name)
	if err != nil {
		return l.Run.Timesteps[0]
	}
	done := make(map[string]bool, len(available))
	for _, k := range available {
		if k.Iteration == 0 {
			done[keyFor(k.ModelName, k.OutputName, k.Timestep)] = true
		}
	}
	for _, d := range sos.Dependencies {
		if d.IsLagged() {
			delete(done, keyFor(d.SourceModel, d.SourceOutput, l.Run.BaseTimestep()))
		}
	}

	for _, t := range l.Run.Timesteps {
		complete := true
	outputs:
		for _, m := range sos.Models {
			if m.Kind != domain.ModelKindSector {
				continue
			}
			for _, out := range m.Outputs {
				if !done[keyFor(m.Name, out.Name(), t)] {
					complete = false
					break outputs
				}
			}
		}
		if !complete {
			return t
		}
	}
	// Every timestep already has persisted results: resume past the end,
	// so Execute's loop is a no-op and Result reports DONE immediately.
	return l.Run.Timesteps[len(l.Run.Timesteps)-1] + 1
}

func keyFor(model, output string, timestep int) string {
	return model + "\x00" + output + "\x00" + strconv.Itoa(timestep)
}
