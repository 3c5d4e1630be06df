// Package configfile parses the on-disk YAML configuration records
// spec.md §6 describes (sector model, scenario, SoS model, model run)
// into the domain package's structs, using gopkg.in/yaml.v3 the way
// mensylisir-kubexm and Mindburn-Labs-helm/core parse their own
// declarative configuration. This package is the only place in the core
// that knows the YAML shape; everything downstream of it works with
// domain values.
package configfile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/utils"
)

// SpecRecord is the YAML shape of one Spec (spec.md §6): name, ordered
// dims, per-dim coordinate labels, unit, dtype, and the extensive flag
// the region/interval adaptors key off.
type SpecRecord struct {
	Name      string              `yaml:"name"`
	Dims      []string            `yaml:"dims"`
	Coords    map[string][]string `yaml:"coords"`
	Unit      string              `yaml:"unit"`
	DType     string              `yaml:"dtype"`
	Extensive bool                `yaml:"extensive"`
}

// ToDomain builds a domain.Spec from the record, defaulting DType to
// float64 when omitted since every example in spec.md §8 is numeric.
func (r SpecRecord) ToDomain() (domain.Spec, error) {
	dtype := utils.DefaultValue(domain.DType(r.DType), domain.DTypeFloat64)
	return domain.NewSpec(r.Name, r.Dims, r.Coords, r.Unit, dtype, r.Extensive)
}

// SectorModelRecord is the YAML shape of a sector model (spec.md §6).
// Interventions and InitialConditions are carried opaquely: the core
// validates and schedules sector models through their Spec-level
// contract only, and never interprets intervention content itself.
type SectorModelRecord struct {
	Name              string       `yaml:"name"`
	Inputs            []SpecRecord `yaml:"inputs"`
	Outputs           []SpecRecord `yaml:"outputs"`
	Parameters        []SpecRecord `yaml:"parameters"`
	Interventions     []string     `yaml:"interventions"`
	InitialConditions []string     `yaml:"initial_conditions"`
}

// ToDomain builds a domain.Model of kind Sector.
func (r SectorModelRecord) ToDomain() (domain.Model, error) {
	return toModel(r.Name, domain.ModelKindSector, r.Inputs, r.Outputs, r.Parameters)
}

// ScenarioVariantRecord is one named variant of a scenario: the data key
// used to look its values up in the Store's scenario namespace per
// variable.
type ScenarioVariantRecord struct {
	Name string            `yaml:"name"`
	Data map[string]string `yaml:"data"`
}

// ScenarioRecord is the YAML shape of a scenario (spec.md §6): a name,
// the Specs it provides, and its named variants.
type ScenarioRecord struct {
	Name     string                  `yaml:"name"`
	Provides []SpecRecord            `yaml:"provides"`
	Variants []ScenarioVariantRecord `yaml:"variants"`
}

// ToDomain builds a domain.Model of kind Scenario: no inputs or
// parameters, since a scenario supplies pre-recorded data rather than
// computing from anything.
func (r ScenarioRecord) ToDomain() (domain.Model, error) {
	return toModel(r.Name, domain.ModelKindScenario, nil, r.Provides, nil)
}

func toModel(name string, kind domain.ModelKind, inputs, outputs, params []SpecRecord) (domain.Model, error) {
	in, err := toSpecs(inputs)
	if err != nil {
		return domain.Model{}, fmt.Errorf("model %q: inputs: %w", name, err)
	}
	out, err := toSpecs(outputs)
	if err != nil {
		return domain.Model{}, fmt.Errorf("model %q: outputs: %w", name, err)
	}
	par, err := toSpecs(params)
	if err != nil {
		return domain.Model{}, fmt.Errorf("model %q: parameters: %w", name, err)
	}
	return domain.Model{Name: name, Kind: kind, Inputs: in, Outputs: out, Parameters: par}, nil
}

func toSpecs(records []SpecRecord) ([]domain.Spec, error) {
	specs := make([]domain.Spec, 0, len(records))
	for _, r := range records {
		s, err := r.ToDomain()
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// DependencyRecord is the YAML shape of a dependency edge (spec.md §6):
// `{source, source_output, sink, sink_input, timestep?}`, where an
// optional `timestep: PREVIOUS` marks a lagged edge.
type DependencyRecord struct {
	Source       string `yaml:"source"`
	SourceOutput string `yaml:"source_output"`
	Sink         string `yaml:"sink"`
	SinkInput    string `yaml:"sink_input"`
	Timestep     string `yaml:"timestep"`
}

// ToDomain builds a domain.Dependency, defaulting the offset to CURRENT
// unless Timestep names PREVIOUS.
func (r DependencyRecord) ToDomain() domain.Dependency {
	offset := domain.TimestepCurrent
	if r.Timestep == "PREVIOUS" || r.Timestep == "previous" {
		offset = domain.TimestepPrevious
	}
	return domain.Dependency{
		SourceModel:  r.Source,
		SourceOutput: r.SourceOutput,
		SinkModel:    r.Sink,
		SinkInput:    r.SinkInput,
		Offset:       offset,
	}
}

// SosModelRecord is the YAML shape of an SoS model (spec.md §6): its
// member sector models and scenarios by name, its dependency edges, and
// its narratives. Resolving it into a domain.SosModel requires the
// referenced sector model and scenario records, held by a Registry.
type SosModelRecord struct {
	Name                 string             `yaml:"name"`
	SectorModels         []string           `yaml:"sector_models"`
	Scenarios            []string           `yaml:"scenarios"`
	ScenarioDependencies []DependencyRecord `yaml:"scenario_dependencies"`
	ModelDependencies    []DependencyRecord `yaml:"model_dependencies"`
	Narratives           []string           `yaml:"narratives"`
}

// ModelRunRecord is the YAML shape of a model run (spec.md §6).
type ModelRunRecord struct {
	Name                         string            `yaml:"name"`
	SosModel                     string            `yaml:"sos_model"`
	Timesteps                    []int             `yaml:"timesteps"`
	Scenarios                    map[string]string `yaml:"scenarios"`
	Narratives                   map[string]string `yaml:"narratives"`
	DecisionModule               string            `yaml:"decision_module"`
	MaxIterations                int               `yaml:"max_iterations"`
	ConvergenceRelativeTolerance float64           `yaml:"convergence_relative_tolerance"`
	ConvergenceAbsoluteTolerance float64           `yaml:"convergence_absolute_tolerance"`
}

// ToDomain builds a domain.ModelRun. decision_module is one of
// "pre-specified", "rule-based", or any other name, which is treated as a
// named iterating decision module per spec.md §6.
func (r ModelRunRecord) ToDomain() domain.ModelRun {
	var kind domain.DecisionModuleKind
	switch r.DecisionModule {
	case "pre-specified", "":
		kind = domain.DecisionPreSpecified
	case "rule-based":
		kind = domain.DecisionRuleBased
	default:
		kind = domain.DecisionIterating
	}
	return domain.ModelRun{
		Name:              r.Name,
		SosModelName:      r.SosModel,
		Timesteps:         r.Timesteps,
		ScenarioVariants:  r.Scenarios,
		NarrativeVariants: r.Narratives,
		DecisionModule:    kind,
		MaxIterations:     r.MaxIterations,
		Tolerance:         r.ConvergenceRelativeTolerance,
		AbsoluteTolerance: r.ConvergenceAbsoluteTolerance,
	}
}

// ParseSectorModel unmarshals one sector_model YAML document.
func ParseSectorModel(raw []byte) (SectorModelRecord, error) {
	var r SectorModelRecord
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return SectorModelRecord{}, fmt.Errorf("parsing sector_model: %w", err)
	}
	return r, nil
}

// ParseScenario unmarshals one scenario YAML document.
func ParseScenario(raw []byte) (ScenarioRecord, error) {
	var r ScenarioRecord
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return ScenarioRecord{}, fmt.Errorf("parsing scenario: %w", err)
	}
	return r, nil
}

// ParseSosModel unmarshals one sos_model YAML document.
func ParseSosModel(raw []byte) (SosModelRecord, error) {
	var r SosModelRecord
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return SosModelRecord{}, fmt.Errorf("parsing sos_model: %w", err)
	}
	return r, nil
}

// ParseModelRun unmarshals one model_run YAML document.
func ParseModelRun(raw []byte) (ModelRunRecord, error) {
	var r ModelRunRecord
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return ModelRunRecord{}, fmt.Errorf("parsing model_run: %w", err)
	}
	return r, nil
}
