package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alwaysConvertible treats every dim and unit pair as convertible, so
// Validate's tests can focus on structural wiring rather than adaptor
// availability.
type alwaysConvertible struct{}

func (alwaysConvertible) DimConvertible(dim string, sourceCoords, sinkCoords []string) bool { return true }
func (alwaysConvertible) UnitConvertible(sourceUnit, sinkUnit string) bool                  { return true }

func scalarSpec(t *testing.T, name string) Spec {
	t.Helper()
	s, err := NewSpec(name, []string{"region"}, map[string][]string{"region": {"NW", "NE"}}, "Ml/day", DTypeFloat64, true)
	require.NoError(t, err)
	return s
}

func TestSosModel_ModelByNameAndDependencies(t *testing.T) {
	sos := SosModel{
		Name: "national_infrastructure",
		Models: []Model{
			{Name: "population", Kind: ModelKindScenario, Outputs: []Spec{scalarSpec(t, "count")}},
			{Name: "water_supply", Kind: ModelKindSector, Inputs: []Spec{scalarSpec(t, "demand")}, Outputs: []Spec{scalarSpec(t, "supply")}},
		},
		Dependencies: []Dependency{
			{SourceModel: "population", SourceOutput: "count", SinkModel: "water_supply", SinkInput: "demand", Offset: TimestepCurrent},
		},
	}

	m, ok := sos.ModelByName("water_supply")
	require.True(t, ok)
	assert.Equal(t, ModelKindSector, m.Kind)

	_, ok = sos.ModelByName("missing")
	assert.False(t, ok)

	into := sos.DependenciesInto("water_supply")
	require.Len(t, into, 1)
	assert.Equal(t, "population", into[0].SourceModel)

	from := sos.DependenciesFrom("population")
	require.Len(t, from, 1)
	assert.Equal(t, "water_supply", from[0].SinkModel)
}

func validSosModel(t *testing.T) SosModel {
	t.Helper()
	return SosModel{
		Name: "national_infrastructure",
		Models: []Model{
			{Name: "population", Kind: ModelKindScenario, Outputs: []Spec{scalarSpec(t, "count")}},
			{Name: "water_supply", Kind: ModelKindSector, Inputs: []Spec{scalarSpec(t, "demand")}, Outputs: []Spec{scalarSpec(t, "supply")}},
		},
		Dependencies: []Dependency{
			{SourceModel: "population", SourceOutput: "count", SinkModel: "water_supply", SinkInput: "demand", Offset: TimestepCurrent},
		},
	}
}

func TestSosModel_Validate_OK(t *testing.T) {
	assert.NoError(t, validSosModel(t).Validate(alwaysConvertible{}))
}

func TestSosModel_Validate_DuplicateModelName(t *testing.T) {
	sos := validSosModel(t)
	sos.Models = append(sos.Models, sos.Models[0])
	err := sos.Validate(alwaysConvertible{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestSosModel_Validate_UnsatisfiedInput(t *testing.T) {
	sos := validSosModel(t)
	sos.Dependencies = nil
	err := sos.Validate(alwaysConvertible{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestSosModel_Validate_MultipleDependenciesForOneInput(t *testing.T) {
	sos := validSosModel(t)
	sos.Dependencies = append(sos.Dependencies, sos.Dependencies[0])
	err := sos.Validate(alwaysConvertible{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestSosModel_Validate_UnknownSourceModel(t *testing.T) {
	sos := validSosModel(t)
	sos.Dependencies[0].SourceModel = "ghost"
	err := sos.Validate(alwaysConvertible{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestSosModel_Validate_UnknownSourceOutput(t *testing.T) {
	sos := validSosModel(t)
	sos.Dependencies[0].SourceOutput = "ghost"
	err := sos.Validate(alwaysConvertible{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestSosModel_Validate_InconvertibleSpecs(t *testing.T) {
	sos := validSosModel(t)
	err := sos.Validate(fakeRegistry{dims: map[string]bool{}})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeConversion))
}

func TestDependency_IsLagged(t *testing.T) {
	assert.False(t, Dependency{Offset: TimestepCurrent}.IsLagged())
	assert.True(t, Dependency{Offset: TimestepPrevious}.IsLagged())
}
