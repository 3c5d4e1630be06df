package scheduler

import (
	"context"
	"errors"
	"sync"
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

// recordingSimulator writes no outputs and optionally fails, tracking how
// many times it ran.
type recordingSimulator struct {
	mu      sync.Mutex
	runs    int
	failErr error
}

func (s *recordingSimulator) BeforeModelRun(ctx context.Context, dh *datahandle.DataHandle) error {
	return nil
}

func (s *recordingSimulator) Simulate(ctx context.Context, dh *datahandle.DataHandle) error {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	// nothing to write for a scalar output in these tests
	return nil
}

func linearSos(t *testing.T) domain.SosModel {
	t.Helper()
	a := domain.Model{Name: "a", Kind: domain.ModelKindSector, Outputs: []domain.Spec{scalarSpec(t, "out_a")}}
	b := domain.Model{Name: "b", Kind: domain.ModelKindSector, Inputs: []domain.Spec{scalarSpec(t, "in_b")}, Outputs: []domain.Spec{scalarSpec(t, "out_b")}}
	return domain.SosModel{
		Name:   "test_sos",
		Models: []domain.Model{a, b},
		Dependencies: []domain.Dependency{
			{SourceModel: "a", SourceOutput: "out_a", SinkModel: "b", SinkInput: "in_b", Offset: domain.TimestepCurrent},
		},
	}
}

func TestJobScheduler_New_RequiresSimulatorForEverySectorModel(t *testing.T) {
	sos := linearSos(t)
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020}, DecisionModule: domain.DecisionPreSpecified}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)

	_, err := New(sos, run, st, pipeline, map[string]Simulator{"a": &recordingSimulator{}}, 2)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestJobScheduler_RunTimestep_AllDone(t *testing.T) {
	sos := linearSos(t)
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020}, DecisionModule: domain.DecisionPreSpecified}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	simA := &recordingSimulator{}
	simB := &recordingSimulator{}

	sched, err := New(sos, run, st, pipeline, map[string]Simulator{"a": simA, "b": simB}, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, sched.ExecutionID())

	statuses, err := sched.RunTimestep(context.Background(), 2020, 0)
	require.NoError(t, err)
	assert.Equal(t, JobDone, statuses["a"])
	assert.Equal(t, JobDone, statuses["b"])
	assert.Equal(t, 1, simA.runs)
	assert.Equal(t, 1, simB.runs)

	meta, err := st.ReadJobMeta(context.Background(), store.JobMetaKey{ModelRunName: "baseline", Timestep: 2020, Iteration: 0, ModelName: "a"})
	require.NoError(t, err)
	assert.Equal(t, string(JobDone), meta.Status)
}

func TestJobScheduler_RunTimestep_FailureSkipsDescendantOnly(t *testing.T) {
	sos := linearSos(t)
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020}, DecisionModule: domain.DecisionPreSpecified}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	simA := &recordingSimulator{failErr: errors.New("boom")}
	simB := &recordingSimulator{}

	sched, err := New(sos, run, st, pipeline, map[string]Simulator{"a": simA, "b": simB}, 2)
	require.NoError(t, err)

	statuses, err := sched.RunTimestep(context.Background(), 2020, 0)
	require.Error(t, err)
	assert.Equal(t, JobFailed, statuses["a"])
	assert.Equal(t, JobSkipped, statuses["b"])
	assert.Equal(t, 0, simB.runs)

	meta, err := st.ReadJobMeta(context.Background(), store.JobMetaKey{ModelRunName: "baseline", Timestep: 2020, Iteration: 0, ModelName: "a"})
	require.NoError(t, err)
	assert.Equal(t, string(JobFailed), meta.Status)
	assert.Contains(t, meta.Error, "boom")
}

func TestJobScheduler_RunTimestep_IndependentSiblingsUnaffectedByFailure(t *testing.T) {
	a := domain.Model{Name: "a", Kind: domain.ModelKindSector, Outputs: []domain.Spec{scalarSpec(t, "out_a")}}
	c := domain.Model{Name: "c", Kind: domain.ModelKindSector, Outputs: []domain.Spec{scalarSpec(t, "out_c")}}
	sos := domain.SosModel{Name: "test_sos", Models: []domain.Model{a, c}}
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020}, DecisionModule: domain.DecisionPreSpecified}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	simA := &recordingSimulator{failErr: errors.New("boom")}
	simC := &recordingSimulator{}

	sched, err := New(sos, run, st, pipeline, map[string]Simulator{"a": simA, "c": simC}, 2)
	require.NoError(t, err)

	statuses, err := sched.RunTimestep(context.Background(), 2020, 0)
	require.Error(t, err)
	assert.Equal(t, JobFailed, statuses["a"])
	assert.Equal(t, JobDone, statuses["c"])
	assert.Equal(t, 1, simC.runs)
}

func TestJobScheduler_SettleIteration_CopiesToIterationZero(t *testing.T) {
	sos := linearSos(t)
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020}, DecisionModule: domain.DecisionIterating, MaxIterations: 5, Tolerance: 1e-3}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	sched, err := New(sos, run, st, pipeline, map[string]Simulator{"a": &recordingSimulator{}, "b": &recordingSimulator{}}, 2)
	require.NoError(t, err)

	spec := scalarSpec(t, "out_a")
	da, err := domain.NewDataArray(spec, []float64{42})
	require.NoError(t, err)
	key := store.ResultKey{ModelRunName: "baseline", ModelName: "a", OutputName: "out_a", Timestep: 2020, Iteration: 2}
	require.NoError(t, st.WriteResults(context.Background(), key, da))

	require.NoError(t, sched.SettleIteration(context.Background(), 2020, 2))

	settledKey := key
	settledKey.Iteration = 0
	_, err = st.ReadResults(context.Background(), settledKey)
	assert.NoError(t, err)
}

func TestJobScheduler_SettleIteration_NoOpAtIterationZero(t *testing.T) {
	sos := linearSos(t)
	run := domain.ModelRun{Name: "baseline", SosModelName: sos.Name, Timesteps: []int{2020}, DecisionModule: domain.DecisionPreSpecified}
	st := store.NewMemoryStore()
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	sched, err := New(sos, run, st, pipeline, map[string]Simulator{"a": &recordingSimulator{}, "b": &recordingSimulator{}}, 2)
	require.NoError(t, err)

	assert.NoError(t, sched.SettleIteration(context.Background(), 2020, 0))
}
