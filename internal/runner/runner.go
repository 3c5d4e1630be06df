// Package runner implements ModelRunner, the entry point spec.md §2
// names for executing one ModelRun: it validates the run and its
// SosModel, builds the JobScheduler, selects the DecisionModule the run's
// config names, and drives the DecisionLoop to completion.
package runner

import (
	"context"
	"fmt"

	"github.com/smif-sim/smif/internal/adaptor"
	"github.com/smif-sim/smif/internal/decision"
	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

// Options carries the decision-module configuration that a ModelRun's
// DecisionModuleKind needs beyond what domain.ModelRun itself records:
// rule-based rules, or iterating convergence variables.
type Options struct {
	Rules                []decision.Rule
	ConvergenceVariables []decision.ConvergenceVariable
	MaxParallel          int
}

// ModelRunner validates a ModelRun, initializes the scheduler against the
// Store's namespace for that run, and constructs the DecisionLoop that
// drives it.
type ModelRunner struct {
	run  domain.ModelRun
	sos  domain.SosModel
	loop *decision.DecisionLoop
}

// New validates sos and run (spec.md §3 invariants) and wires a
// ModelRunner ready to Run. simulators must have one entry per sector
// model named in sos.
func New(sos domain.SosModel, run domain.ModelRun, st store.Store, pipeline *adaptor.Pipeline, simulators map[string]scheduler.Simulator, opts Options) (*ModelRunner, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}
	if err := sos.Validate(pipeline); err != nil {
		return nil, err
	}

	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sched, err := scheduler.New(sos, run, st, pipeline, simulators, maxParallel)
	if err != nil {
		return nil, err
	}

	module, err := selectModule(run, opts)
	if err != nil {
		return nil, err
	}

	return &ModelRunner{
		run: run,
		sos: sos,
		loop: &decision.DecisionLoop{
			Scheduler: sched,
			Store:     st,
			Run:       run,
			Module:    module,
		},
	}, nil
}

func selectModule(run domain.ModelRun, opts Options) (decision.Module, error) {
	switch run.DecisionModule {
	case domain.DecisionPreSpecified:
		return decision.PreSpecified{}, nil
	case domain.DecisionRuleBased:
		return decision.RuleBased{Rules: opts.Rules}, nil
	case domain.DecisionIterating:
		return decision.Iterating{ConvergenceVariables: opts.ConvergenceVariables}, nil
	default:
		return nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("model run %q: unknown decision module %q", run.Name, run.DecisionModule), nil)
	}
}

// Run drives the DecisionLoop across every timestep of r.run, returning
// the aggregate result (DONE iff every job at every timestep/iteration
// reached JobDone).
func (r *ModelRunner) Run(ctx context.Context) (decision.Result, error) {
	return r.loop.Execute(ctx)
}

// ModelRun returns the ModelRun this ModelRunner was built for.
func (r *ModelRunner) ModelRun() domain.ModelRun { return r.run }

// SosModel returns the SosModel this ModelRunner was built for.
func (r *ModelRunner) SosModel() domain.SosModel { return r.sos }

// ExecutionID returns the identifier generated for this ModelRunner's
// underlying JobScheduler, for correlating logs and job-meta records with
// one Run invocation.
func (r *ModelRunner) ExecutionID() string { return r.loop.Scheduler.ExecutionID() }
