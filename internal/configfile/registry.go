package configfile

import (
	"fmt"

	"github.com/smif-sim/smif/internal/domain"
)

// Registry accumulates parsed sector model and scenario records so a
// SosModelRecord, which refers to its members by name, can be resolved
// into a fully-populated domain.SosModel.
type Registry struct {
	sectorModels map[string]SectorModelRecord
	scenarios    map[string]ScenarioRecord
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sectorModels: make(map[string]SectorModelRecord),
		scenarios:    make(map[string]ScenarioRecord),
	}
}

// AddSectorModel parses and registers a sector_model YAML document.
func (r *Registry) AddSectorModel(raw []byte) error {
	rec, err := ParseSectorModel(raw)
	if err != nil {
		return err
	}
	r.sectorModels[rec.Name] = rec
	return nil
}

// AddScenario parses and registers a scenario YAML document.
func (r *Registry) AddScenario(raw []byte) error {
	rec, err := ParseScenario(raw)
	if err != nil {
		return err
	}
	r.scenarios[rec.Name] = rec
	return nil
}

// ResolveSosModel parses an sos_model YAML document and resolves its
// sector_models/scenarios member lists against records already added to
// the Registry, building the full domain.SosModel including every
// dependency edge.
func (r *Registry) ResolveSosModel(raw []byte) (domain.SosModel, error) {
	rec, err := ParseSosModel(raw)
	if err != nil {
		return domain.SosModel{}, err
	}

	var models []domain.Model
	for _, name := range rec.SectorModels {
		smRec, ok := r.sectorModels[name]
		if !ok {
			return domain.SosModel{}, fmt.Errorf("sos_model %q: unknown sector model %q", rec.Name, name)
		}
		m, err := smRec.ToDomain()
		if err != nil {
			return domain.SosModel{}, fmt.Errorf("sos_model %q: %w", rec.Name, err)
		}
		models = append(models, m)
	}
	for _, name := range rec.Scenarios {
		scRec, ok := r.scenarios[name]
		if !ok {
			return domain.SosModel{}, fmt.Errorf("sos_model %q: unknown scenario %q", rec.Name, name)
		}
		m, err := scRec.ToDomain()
		if err != nil {
			return domain.SosModel{}, fmt.Errorf("sos_model %q: %w", rec.Name, err)
		}
		models = append(models, m)
	}

	var deps []domain.Dependency
	for _, d := range rec.ScenarioDependencies {
		deps = append(deps, d.ToDomain())
	}
	for _, d := range rec.ModelDependencies {
		deps = append(deps, d.ToDomain())
	}

	return domain.SosModel{
		Name:         rec.Name,
		Models:       models,
		Dependencies: deps,
		Narratives:   rec.Narratives,
	}, nil
}
