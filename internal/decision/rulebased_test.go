package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smif-sim/smif/internal/adaptor"
	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

func TestRule_Evaluate_MissingVariableDefaultsToZero(t *testing.T) {
	r := Rule{
		Name:       "build_reservoir",
		Expression: "demand > 10",
		Variables:  []RuleVariable{{Name: "demand", ModelName: "water_supply", OutputName: "supply"}},
	}
	st := store.NewMemoryStore()
	ok, err := r.evaluate(context.Background(), st, "baseline", 2020)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRule_Evaluate_ReadsSummedOutput(t *testing.T) {
	spec := scalarSpec(t, "supply")
	da, err := domain.NewDataArray(spec, []float64{20})
	require.NoError(t, err)
	st := store.NewMemoryStore()
	require.NoError(t, st.WriteResults(context.Background(), store.ResultKey{
		ModelRunName: "baseline", ModelName: "water_supply", OutputName: "supply", Timestep: 2020, Iteration: 0,
	}, da))

	r := Rule{
		Name:       "build_reservoir",
		Expression: "demand > 10",
		Variables:  []RuleVariable{{Name: "demand", ModelName: "water_supply", OutputName: "supply"}},
	}
	ok, err := r.evaluate(context.Background(), st, "baseline", 2020)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRuleBased_FiredRuleStaysActive(t *testing.T) {
	a := domain.Model{Name: "water_supply", Kind: domain.ModelKindSector, Outputs: []domain.Spec{scalarSpec(t, "supply")}}
	sos := domain.SosModel{Name: "test_sos", Models: []domain.Model{a}}
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020, 2025}, DecisionModule: domain.DecisionRuleBased}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	sched, err := scheduler.New(sos, run, st, pipeline, map[string]scheduler.Simulator{"water_supply": nullSim{}}, 1)
	require.NoError(t, err)

	rule := Rule{Name: "build_reservoir", Expression: "true"}
	module := RuleBased{Rules: []Rule{rule}}

	statuses, err := module.RunTimestep(context.Background(), sched, st, run, 2020)
	require.NoError(t, err)
	assert.Equal(t, scheduler.JobDone, statuses["water_supply"])

	var state RuleState
	require.NoError(t, st.ReadState(context.Background(), "baseline", 2020, &state))
	assert.Equal(t, []string{"build_reservoir"}, state.ActiveRules)

	// A second timestep with a rule that would never fire on its own must
	// still see the previously-fired rule as active.
	module2 := RuleBased{Rules: []Rule{{Name: "build_reservoir", Expression: "false"}}}
	_, err = module2.RunTimestep(context.Background(), sched, st, run, 2025)
	require.NoError(t, err)

	var state2 RuleState
	require.NoError(t, st.ReadState(context.Background(), "baseline", 2025, &state2))
	assert.Equal(t, []string{"build_reservoir"}, state2.ActiveRules)
}
