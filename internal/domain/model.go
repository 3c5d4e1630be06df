package domain

// ModelKind distinguishes a scenario model, which supplies pre-recorded
// external data, from a sector model, which simulates behaviour.
type ModelKind string

const (
	ModelKindScenario ModelKind = "scenario"
	ModelKindSector   ModelKind = "sector"
)

// Model is the abstract description of a named participant in an SosModel:
// its name and the Specs of its inputs, outputs, and parameters. A scenario
// model has no Inputs: it produces outputs purely from persisted data. A
// sector model calls out to user simulation code at execution time.
type Model struct {
	Name       string
	Kind       ModelKind
	Inputs     []Spec
	Outputs    []Spec
	Parameters []Spec
}

// OutputSpec looks up one of the model's declared outputs by name.
func (m Model) OutputSpec(name string) (Spec, bool) {
	for _, s := range m.Outputs {
		if s.Name() == name {
			return s, true
		}
	}
	return Spec{}, false
}

// InputSpec looks up one of the model's declared inputs by name.
func (m Model) InputSpec(name string) (Spec, bool) {
	for _, s := range m.Inputs {
		if s.Name() == name {
			return s, true
		}
	}
	return Spec{}, false
}

// ParameterSpec looks up one of the model's declared parameters by name.
func (m Model) ParameterSpec(name string) (Spec, bool) {
	for _, s := range m.Parameters {
		if s.Name() == name {
			return s, true
		}
	}
	return Spec{}, false
}
