package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRun_Validate_NoName(t *testing.T) {
	err := ModelRun{Timesteps: []int{2020}, DecisionModule: DecisionPreSpecified}.Validate()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestModelRun_Validate_NoTimesteps(t *testing.T) {
	err := ModelRun{Name: "baseline", DecisionModule: DecisionPreSpecified}.Validate()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestModelRun_Validate_NonIncreasingTimesteps(t *testing.T) {
	err := ModelRun{Name: "baseline", Timesteps: []int{2020, 2020}, DecisionModule: DecisionPreSpecified}.Validate()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))

	err = ModelRun{Name: "baseline", Timesteps: []int{2025, 2020}, DecisionModule: DecisionPreSpecified}.Validate()
	require.Error(t, err)
}

func TestModelRun_Validate_PreSpecifiedOK(t *testing.T) {
	err := ModelRun{Name: "baseline", Timesteps: []int{2020, 2025}, DecisionModule: DecisionPreSpecified}.Validate()
	assert.NoError(t, err)
}

func TestModelRun_Validate_IteratingRequiresMaxIterationsAndTolerance(t *testing.T) {
	base := ModelRun{Name: "baseline", Timesteps: []int{2020}, DecisionModule: DecisionIterating}
	err := base.Validate()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))

	base.MaxIterations = 10
	err = base.Validate()
	require.Error(t, err)

	base.Tolerance = 1e-3
	assert.NoError(t, base.Validate())
}

func TestModelRun_Validate_UnknownDecisionModule(t *testing.T) {
	err := ModelRun{Name: "baseline", Timesteps: []int{2020}, DecisionModule: "not-a-real-kind"}.Validate()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestModelRun_BaseAndPreviousTimestep(t *testing.T) {
	run := ModelRun{Name: "baseline", Timesteps: []int{2020, 2025, 2030}, DecisionModule: DecisionPreSpecified}
	assert.Equal(t, 2020, run.BaseTimestep())

	_, ok := run.PreviousTimestep(2020)
	assert.False(t, ok)

	prev, ok := run.PreviousTimestep(2025)
	require.True(t, ok)
	assert.Equal(t, 2020, prev)

	prev, ok = run.PreviousTimestep(2030)
	require.True(t, ok)
	assert.Equal(t, 2025, prev)

	_, ok = run.PreviousTimestep(9999)
	assert.False(t, ok)
}
