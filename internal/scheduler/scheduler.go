// Package scheduler runs one timestep (or one decision iteration within a
// timestep) of an SosModel's dependency graph: it groups models into
// waves via the graph package, runs each wave's models concurrently
// bounded by errgroup, and contains failures so that one model's error
// only skips its own descendants rather than aborting sibling work.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/smif-sim/smif/internal/adaptor"
	"github.com/smif-sim/smif/internal/datahandle"
	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/graph"
	"github.com/smif-sim/smif/internal/store"
)

// JobStatus is the lifecycle state of one model's invocation within a
// timestep/iteration.
type JobStatus string

const (
	JobUnstarted JobStatus = "unstarted"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	// JobSkipped marks a model that was never run because a model it
	// depends on failed; it is not itself at fault.
	JobSkipped JobStatus = "skipped"
)

// Simulator is implemented by sector model code. BeforeModelRun runs once
// per model at the start of a ModelRun, before any timestep executes;
// Simulate runs once per (timestep, iteration) the scheduler invokes the
// model for.
type Simulator interface {
	BeforeModelRun(ctx context.Context, dh *datahandle.DataHandle) error
	Simulate(ctx context.Context, dh *datahandle.DataHandle) error
}

// JobScheduler executes an SosModel's models, wave by wave, against a
// Store, for one ModelRun.
type JobScheduler struct {
	sos          domain.SosModel
	run          domain.ModelRun
	store        store.Store
	pipeline     *adaptor.Pipeline
	simulators   map[string]Simulator
	maxParallel  int
	waves        [][]string
	executionID  string
}

// New validates sos (including the acyclicity of its non-lagged edges),
// computes its execution waves, and returns a JobScheduler ready to run
// timesteps. Every sector model named in sos must have a Simulator
// registered in simulators.
func New(sos domain.SosModel, run domain.ModelRun, st store.Store, pipeline *adaptor.Pipeline, simulators map[string]Simulator, maxParallel int) (*JobScheduler, error) {
	if err := sos.Validate(pipeline); err != nil {
		return nil, err
	}
	g := graph.Build(sos)
	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}
	for _, m := range sos.Models {
		if m.Kind == domain.ModelKindSector {
			if _, ok := simulators[m.Name]; !ok {
				return nil, domain.NewDomainError(domain.ErrCodeValidation,
					fmt.Sprintf("no simulator registered for sector model %q", m.Name), nil)
			}
		}
	}
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &JobScheduler{
		sos: sos, run: run, store: st, pipeline: pipeline, simulators: simulators,
		maxParallel: maxParallel, waves: waves, executionID: uuid.NewString(),
	}, nil
}

// ExecutionID uniquely identifies one JobScheduler's lifetime (one
// ModelRunner.Run invocation), so every log line and job-meta write it
// produces can be correlated across a run's many timesteps and waves.
func (s *JobScheduler) ExecutionID() string { return s.executionID }

// SosModel returns the SosModel this scheduler was built from, so callers
// (the decision loop's resume logic) can enumerate its models and outputs
// without duplicating the scheduler's own configuration.
func (s *JobScheduler) SosModel() domain.SosModel { return s.sos }

// BeforeModelRun calls BeforeModelRun on every sector model's Simulator
// once, ahead of the first timestep, scoped to the run's base timestep.
func (s *JobScheduler) BeforeModelRun(ctx context.Context) error {
	for _, m := range s.sos.Models {
		if m.Kind != domain.ModelKindSector {
			continue
		}
		dh := datahandle.New(s.store, s.pipeline, s.sos, s.run, m, s.run.BaseTimestep(), 0)
		if err := s.simulators[m.Name].BeforeModelRun(ctx, dh); err != nil {
			return domain.NewDomainError(domain.ErrCodeModelRun,
				fmt.Sprintf("model %q: before_model_run failed", m.Name), err)
		}
	}
	return nil
}

// RunTimestep executes every model for one (timestep, iteration),
// wave by wave. A model whose non-lagged dependency failed or was
// skipped is itself marked skipped without being invoked; a model's own
// failure does not stop its siblings or unrelated waves from running.
// The returned map holds every model's final JobStatus; the returned
// error, if non-nil, wraps the first model failure encountered.
func (s *JobScheduler) RunTimestep(ctx context.Context, timestep, iteration int) (map[string]JobStatus, error) {
	statuses := make(map[string]JobStatus, len(s.sos.Models))
	for _, m := range s.sos.Models {
		statuses[m.Name] = JobUnstarted
	}

	var mu sync.Mutex
	var firstErr error
	blocked := make(map[string]bool)

	for _, wave := range s.waves {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(s.maxParallel)

		for _, name := range wave {
			name := name

			mu.Lock()
			skip := false
			for _, dep := range s.sos.DependenciesInto(name) {
				if dep.IsLagged() {
					continue
				}
				if blocked[dep.SourceModel] {
					skip = true
					break
				}
			}
			if skip {
				statuses[name] = JobSkipped
				blocked[name] = true
				mu.Unlock()
				log.Warn().Str("execution_id", s.executionID).Str("model", name).Int("timestep", timestep).Int("iteration", iteration).
					Msg("skipping model: upstream dependency failed or was skipped")
				now := time.Now()
				s.writeJobMeta(ctx, name, timestep, iteration, JobSkipped, now, now, "")
				continue
			}
			statuses[name] = JobRunning
			mu.Unlock()

			eg.Go(func() error {
				started := time.Now()
				model, _ := s.sos.ModelByName(name)
				jobErr := s.runOne(egCtx, model, timestep, iteration)
				ended := time.Now()

				mu.Lock()
				if jobErr != nil {
					statuses[name] = JobFailed
					blocked[name] = true
					if firstErr == nil {
						firstErr = jobErr
					}
				} else {
					statuses[name] = JobDone
				}
				mu.Unlock()

				if jobErr != nil {
					log.Error().Err(jobErr).Str("execution_id", s.executionID).Str("model", name).Int("timestep", timestep).Int("iteration", iteration).
						Msg("model run failed")
					s.writeJobMeta(ctx, name, timestep, iteration, JobFailed, started, ended, jobErr.Error())
					// Swallowed here: containment means a failure must not
					// cancel egCtx for sibling jobs already in flight in
					// this wave, only block this model's descendants in
					// later waves.
					return nil
				}
				log.Debug().Str("execution_id", s.executionID).Str("model", name).Int("timestep", timestep).Int("iteration", iteration).Msg("model run completed")
				s.writeJobMeta(ctx, name, timestep, iteration, JobDone, started, ended, "")
				return nil
			})
		}

		if err := eg.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return statuses, firstErr
}

// SettleIteration copies the results an iterating decision module wrote
// at iteration > 0 into the iteration-0 slot once convergence is reached,
// since lagged dependencies and cross-timestep state always read
// iteration 0 as the timestep's settled value.
func (s *JobScheduler) SettleIteration(ctx context.Context, timestep, iteration int) error {
	if iteration == 0 {
		return nil
	}
	for _, m := range s.sos.Models {
		if m.Kind != domain.ModelKindSector {
			continue
		}
		for _, out := range m.Outputs {
			key := store.ResultKey{ModelRunName: s.run.Name, ModelName: m.Name, OutputName: out.Name(), Timestep: timestep, Iteration: iteration}
			da, err := s.store.ReadResults(ctx, key)
			if err != nil {
				if domain.IsCode(err, domain.ErrCodeMissingData) {
					continue
				}
				return err
			}
			settled := key
			settled.Iteration = 0
			if err := s.store.WriteResults(ctx, settled, da); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeJobMeta persists one model's status and timing to the meta
// namespace. Failures to write meta are logged but never surfaced as job
// failures: meta is observability, not correctness.
func (s *JobScheduler) writeJobMeta(ctx context.Context, name string, timestep, iteration int, status JobStatus, started, ended time.Time, errMsg string) {
	key := store.JobMetaKey{ModelRunName: s.run.Name, Timestep: timestep, Iteration: iteration, ModelName: name}
	meta := store.JobMeta{Status: string(status), StartedAt: started, EndedAt: ended, Error: errMsg}
	if err := s.store.WriteJobMeta(ctx, key, meta); err != nil {
		log.Warn().Err(err).Str("execution_id", s.executionID).Str("model", name).Msg("failed to write job meta")
	}
}

func (s *JobScheduler) runOne(ctx context.Context, model domain.Model, timestep, iteration int) error {
	if model.Kind == domain.ModelKindScenario {
		// Scenario models have no Simulate step: their outputs are read
		// directly out of scenario data by consumers via DataHandle.
		return nil
	}
	sim, ok := s.simulators[model.Name]
	if !ok {
		return domain.NewDomainError(domain.ErrCodeModelRun, fmt.Sprintf("no simulator registered for model %q", model.Name), nil)
	}
	dh := datahandle.New(s.store, s.pipeline, s.sos, s.run, model, timestep, iteration)
	if err := sim.Simulate(ctx, dh); err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, fmt.Sprintf("model %q simulate failed", model.Name), err)
	}
	return nil
}
