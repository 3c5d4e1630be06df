package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smif-sim/smif/internal/adaptor"
	"github.com/smif-sim/smif/internal/datahandle"
	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/store"
)

func scalarSpec(t *testing.T, name string) domain.Spec {
	t.Helper()
	s, err := domain.NewSpec(name, nil, map[string][]string{}, "Ml/day", domain.DTypeFloat64, true)
	require.NoError(t, err)
	return s
}

func TestNull_Simulate_WritesZeroForEveryOutput(t *testing.T) {
	model := domain.Model{
		Name: "water_supply", Kind: domain.ModelKindSector,
		Outputs: []domain.Spec{scalarSpec(t, "supply")},
	}
	sos := domain.SosModel{Name: "test_sos", Models: []domain.Model{model}}
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020}}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	dh := datahandle.New(st, pipeline, sos, run, model, 2020, 0)

	n := Null{Model: model}
	require.NoError(t, n.BeforeModelRun(context.Background(), dh))
	require.NoError(t, n.Simulate(context.Background(), dh))

	got, err := st.ReadResults(context.Background(), store.ResultKey{
		ModelRunName: "baseline", ModelName: "water_supply", OutputName: "supply", Timestep: 2020, Iteration: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, got.Values())
}

func TestBuildRegistry_OnlyRegistersSectorModels(t *testing.T) {
	population := domain.Model{Name: "population", Kind: domain.ModelKindScenario, Outputs: []domain.Spec{scalarSpec(t, "population")}}
	waterSupply := domain.Model{Name: "water_supply", Kind: domain.ModelKindSector, Outputs: []domain.Spec{scalarSpec(t, "supply")}}
	sos := domain.SosModel{Name: "test_sos", Models: []domain.Model{population, waterSupply}}

	reg := BuildRegistry(sos)
	assert.Len(t, reg, 1)
	_, ok := reg["water_supply"]
	assert.True(t, ok)
	_, ok = reg["population"]
	assert.False(t, ok)
}
