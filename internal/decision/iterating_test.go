package decision

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smif-sim/smif/internal/adaptor"
	"github.com/smif-sim/smif/internal/datahandle"
	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/store"
)

func TestLinfRelativeDelta(t *testing.T) {
	spec := scalarSpec(t, "x")
	prev, err := domain.NewDataArray(spec, []float64{100})
	require.NoError(t, err)
	cur, err := domain.NewDataArray(spec, []float64{101})
	require.NoError(t, err)
	assert.InDelta(t, 0.01, linfRelativeDelta(prev, cur), 1e-9)
}

func TestLinfRelativeDelta_BothNaNIsNoChange(t *testing.T) {
	spec := scalarSpec(t, "x")
	prev, err := domain.NewDataArray(spec, []float64{math.NaN()})
	require.NoError(t, err)
	cur, err := domain.NewDataArray(spec, []float64{math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, 0.0, linfRelativeDelta(prev, cur))
}

func TestLinfRelativeDelta_OneSidedNaNIsMaximalChange(t *testing.T) {
	spec := scalarSpec(t, "x")
	prev, err := domain.NewDataArray(spec, []float64{math.NaN()})
	require.NoError(t, err)
	cur, err := domain.NewDataArray(spec, []float64{1})
	require.NoError(t, err)
	assert.True(t, math.IsInf(linfRelativeDelta(prev, cur), 1))
}

func TestLinfAbsoluteDelta(t *testing.T) {
	spec := scalarSpec(t, "x")
	prev, err := domain.NewDataArray(spec, []float64{100})
	require.NoError(t, err)
	cur, err := domain.NewDataArray(spec, []float64{100.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, linfAbsoluteDelta(prev, cur))
}

// stepSimulator writes the next value in sequence on each Simulate call,
// for exercising Iterating's convergence loop end to end.
type stepSimulator struct {
	spec     domain.Spec
	sequence []float64
	calls    int
}

func (s *stepSimulator) BeforeModelRun(ctx context.Context, dh *datahandle.DataHandle) error {
	return nil
}

func (s *stepSimulator) Simulate(ctx context.Context, dh *datahandle.DataHandle) error {
	v := s.sequence[s.calls]
	if s.calls < len(s.sequence)-1 {
		s.calls++
	}
	da, err := domain.NewDataArray(s.spec, []float64{v})
	if err != nil {
		return err
	}
	return dh.SetResults(ctx, "x", da)
}

// oscillatingSimulator alternates between two values forever, so a tight
// tolerance never converges within MaxIterations.
type oscillatingSimulator struct {
	spec  domain.Spec
	calls int
}

func (s *oscillatingSimulator) BeforeModelRun(ctx context.Context, dh *datahandle.DataHandle) error {
	return nil
}

func (s *oscillatingSimulator) Simulate(ctx context.Context, dh *datahandle.DataHandle) error {
	v := 1.0
	if s.calls%2 == 1 {
		v = 2.0
	}
	s.calls++
	da, err := domain.NewDataArray(s.spec, []float64{v})
	if err != nil {
		return err
	}
	return dh.SetResults(ctx, "x", da)
}

func TestIterating_ConvergesWithinMaxIterations(t *testing.T) {
	a := domain.Model{Name: "a", Kind: domain.ModelKindSector, Outputs: []domain.Spec{scalarSpec(t, "x")}}
	sos := domain.SosModel{Name: "test_sos", Models: []domain.Model{a}}
	run := domain.ModelRun{
		Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020},
		DecisionModule: domain.DecisionIterating, MaxIterations: 10, Tolerance: 1e-3,
	}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)

	sim := &stepSimulator{spec: scalarSpec(t, "x"), sequence: []float64{10, 9, 8.999, 8.999}}
	sched, err := scheduler.New(sos, run, st, pipeline, map[string]scheduler.Simulator{"a": sim}, 1)
	require.NoError(t, err)

	module := Iterating{ConvergenceVariables: []ConvergenceVariable{{ModelName: "a", OutputName: "x"}}}
	statuses, err := module.RunTimestep(context.Background(), sched, st, run, 2020)
	require.NoError(t, err)
	assert.Equal(t, scheduler.JobDone, statuses["a"])

	settled, err := st.ReadResults(context.Background(), store.ResultKey{ModelRunName: "baseline", ModelName: "a", OutputName: "x", Timestep: 2020, Iteration: 0})
	require.NoError(t, err)
	assert.Equal(t, 8.999, settled.Values()[0])
}

func TestIterating_NonConvergenceRaisesConvergenceError(t *testing.T) {
	a := domain.Model{Name: "a", Kind: domain.ModelKindSector, Outputs: []domain.Spec{scalarSpec(t, "x")}}
	sos := domain.SosModel{Name: "test_sos", Models: []domain.Model{a}}
	run := domain.ModelRun{
		Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020},
		DecisionModule: domain.DecisionIterating, MaxIterations: 3, Tolerance: 1e-9,
	}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)

	sim := &oscillatingSimulator{spec: scalarSpec(t, "x")}
	sched, err := scheduler.New(sos, run, st, pipeline, map[string]scheduler.Simulator{"a": sim}, 1)
	require.NoError(t, err)

	module := Iterating{ConvergenceVariables: []ConvergenceVariable{{ModelName: "a", OutputName: "x"}}}
	_, err = module.RunTimestep(context.Background(), sched, st, run, 2020)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeConvergence))
}
