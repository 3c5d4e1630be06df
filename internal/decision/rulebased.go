package decision

import (
	"context"
	"fmt"
	"sort"

	"github.com/expr-lang/expr"

	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

// RuleVariable binds an expr-lang variable name, as referenced in a Rule's
// Expression, to the model output it reads: the rule sees the sum of that
// output's current-timestep, iteration-0 values.
type RuleVariable struct {
	Name       string
	ModelName  string
	OutputName string
}

// Rule is one named, independently-evaluated condition a RuleBased module
// checks at every timestep. Expression is an expr-lang boolean expression
// (the same library and evaluation pattern the teacher's executor package
// uses for conditional edges), evaluated against the scalars named in
// Variables. A missing variable (output not yet produced this timestep)
// resolves to 0 rather than failing the rule, since a rule guarding on a
// not-yet-computed quantity should read as false, not abort the run.
type Rule struct {
	Name       string
	Expression string
	Variables  []RuleVariable
}

func (r Rule) evaluate(ctx context.Context, st store.Store, runName string, timestep int) (bool, error) {
	env := make(map[string]any, len(r.Variables))
	for _, v := range r.Variables {
		da, err := st.ReadResults(ctx, store.ResultKey{ModelRunName: runName, ModelName: v.ModelName, OutputName: v.OutputName, Timestep: timestep, Iteration: 0})
		if err != nil {
			if domain.IsCode(err, domain.ErrCodeMissingData) {
				env[v.Name] = 0.0
				continue
			}
			return false, err
		}
		env[v.Name] = da.Sum()
	}

	program, err := expr.Compile(r.Expression, expr.Env(env), expr.AsBool())
	if err != nil {
		program, err = expr.Compile(r.Expression, expr.AsBool())
		if err != nil {
			return false, domain.NewDomainError(domain.ErrCodeValidation,
				fmt.Sprintf("rule %q: failed to compile expression %q", r.Name, r.Expression), err)
		}
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("rule %q: failed to evaluate expression %q", r.Name, r.Expression), err)
	}
	ok, _ := result.(bool)
	return ok, nil
}

// RuleState is the decision state a RuleBased module persists via
// Store.WriteState: the set of rule names active as of Timestep. Once a
// rule fires it stays active in every subsequent timestep's state, the
// same way a triggered infrastructure intervention stays built.
type RuleState struct {
	Timestep    int
	ActiveRules []string
}

// RuleBased evaluates every Rule once per timestep after the scheduler
// runs, and folds newly-true rules into the running set of active
// decisions, persisted as RuleState.
type RuleBased struct {
	Rules []Rule
}

func (m RuleBased) RunTimestep(ctx context.Context, sched *scheduler.JobScheduler, st store.Store, run domain.ModelRun, timestep int) (map[string]scheduler.JobStatus, error) {
	statuses, err := sched.RunTimestep(ctx, timestep, 0)
	if err != nil {
		return statuses, err
	}

	active := map[string]bool{}
	if prevTs, ok := run.PreviousTimestep(timestep); ok {
		var prev RuleState
		if err := st.ReadState(ctx, run.Name, prevTs, &prev); err == nil {
			for _, name := range prev.ActiveRules {
				active[name] = true
			}
		} else if !domain.IsCode(err, domain.ErrCodeMissingData) {
			return statuses, err
		}
	}

	for _, r := range m.Rules {
		if active[r.Name] {
			continue
		}
		ok, err := r.evaluate(ctx, st, run.Name, timestep)
		if err != nil {
			return statuses, err
		}
		if ok {
			active[r.Name] = true
		}
	}

	names := make([]string, 0, len(active))
	for name := range active {
		names = append(names, name)
	}
	sort.Strings(names)
	state := RuleState{Timestep: timestep, ActiveRules: names}
	if err := st.WriteState(ctx, run.Name, timestep, state); err != nil {
		return statuses, err
	}
	return statuses, nil
}
