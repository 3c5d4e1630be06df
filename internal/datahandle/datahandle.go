// Package datahandle implements the per-invocation view a model sees when
// it runs: DataHandle narrows the full Store down to exactly the inputs,
// parameters, and output slots one model instance is entitled to at one
// (timestep, iteration), resolving dependency wiring and adaptor
// conversion along the way so model code never touches the Store or the
// rest of the SosModel directly.
package datahandle

import (
	"context"
	"fmt"

	"github.com/smif-sim/smif/internal/adaptor"
	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/store"
)

// DataHandle is constructed fresh for every (model, timestep, iteration)
// triple the scheduler invokes.
type DataHandle struct {
	store     store.Store
	pipeline  *adaptor.Pipeline
	sos       domain.SosModel
	run       domain.ModelRun
	model     domain.Model
	timestep  int
	iteration int
}

// New builds a DataHandle scoped to one model's invocation within one
// timestep and decision iteration.
func New(st store.Store, pipeline *adaptor.Pipeline, sos domain.SosModel, run domain.ModelRun, model domain.Model, timestep, iteration int) *DataHandle {
	return &DataHandle{store: st, pipeline: pipeline, sos: sos, run: run, model: model, timestep: timestep, iteration: iteration}
}

// Timestep returns the timestep this handle is scoped to.
func (h *DataHandle) Timestep() int { return h.timestep }

// Iteration returns the decision iteration this handle is scoped to.
func (h *DataHandle) Iteration() int { return h.iteration }

// GetData resolves one of the model's declared inputs: it finds the
// dependency that supplies inputName, reads the source model's output at
// the appropriate timestep (the current one, or the previous one for a
// lagged dependency), and adapts it to the input's Spec if the source and
// sink Specs differ.
func (h *DataHandle) GetData(ctx context.Context, inputName string) (domain.DataArray, error) {
	sinkSpec, ok := h.model.InputSpec(inputName)
	if !ok {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeMissingData,
			fmt.Sprintf("model %q has no input %q", h.model.Name, inputName), nil)
	}

	var dep domain.Dependency
	found := false
	for _, d := range h.sos.DependenciesInto(h.model.Name) {
		if d.SinkInput == inputName {
			dep = d
			found = true
			break
		}
	}
	if !found {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeMissingData,
			fmt.Sprintf("no dependency supplies input %q of model %q", inputName, h.model.Name), nil)
	}

	sourceModel, ok := h.sos.ModelByName(dep.SourceModel)
	if !ok {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeMissingData,
			fmt.Sprintf("dependency for input %q of model %q references unknown model %q", inputName, h.model.Name, dep.SourceModel), nil)
	}
	sourceSpec, ok := sourceModel.OutputSpec(dep.SourceOutput)
	if !ok {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeMissingData,
			fmt.Sprintf("dependency for input %q of model %q references unknown output %q of model %q",
				inputName, h.model.Name, dep.SourceOutput, dep.SourceModel), nil)
	}

	timestep := h.timestep
	iteration := h.iteration
	if dep.IsLagged() {
		if prev, ok := h.run.PreviousTimestep(h.timestep); ok {
			timestep = prev
		} else {
			timestep = h.run.BaseTimestep()
		}
		// Lagged dependencies always read the settled value a timestep
		// converged to, never an in-progress iteration.
		iteration = 0
	}

	var da domain.DataArray
	var err error
	if sourceModel.Kind == domain.ModelKindScenario {
		variant := h.run.ScenarioVariants[dep.SourceModel]
		da, err = h.store.ReadScenarioVariantData(ctx, dep.SourceModel, variant, dep.SourceOutput, timestep)
	} else {
		key := store.ResultKey{
			ModelRunName: h.run.Name,
			ModelName:    dep.SourceModel,
			OutputName:   dep.SourceOutput,
			Timestep:     timestep,
			Iteration:    iteration,
		}
		da, err = h.store.ReadResults(ctx, key)
	}
	if err != nil {
		return domain.DataArray{}, err
	}

	if sourceSpec.Equal(sinkSpec) {
		return da, nil
	}
	if !sourceSpec.IsConvertibleTo(sinkSpec, h.pipeline) {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
			fmt.Sprintf("input %q of model %q: %s is not convertible to %s",
				inputName, h.model.Name, sourceSpec.PrettyPrint(), sinkSpec.PrettyPrint()), nil)
	}
	return h.pipeline.Convert(da, sinkSpec)
}

// GetParameter resolves one of the model's declared parameters: a
// narrative variant override if the active ModelRun selects one that
// supplies this parameter name, otherwise the model's own default.
func (h *DataHandle) GetParameter(ctx context.Context, paramName string) (domain.DataArray, error) {
	if _, ok := h.model.ParameterSpec(paramName); !ok {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeMissingData,
			fmt.Sprintf("model %q has no parameter %q", h.model.Name, paramName), nil)
	}
	for narrative, variant := range h.run.NarrativeVariants {
		da, err := h.store.ReadNarrativeVariantData(ctx, narrative, variant, paramName)
		if err == nil {
			return da, nil
		}
		if !domain.IsCode(err, domain.ErrCodeMissingData) {
			return domain.DataArray{}, err
		}
	}
	return h.store.ReadModelParameterDefault(ctx, h.model.Name, paramName)
}

// SetResults persists one of the model's declared outputs for the current
// (timestep, iteration).
func (h *DataHandle) SetResults(ctx context.Context, outputName string, data domain.DataArray) error {
	spec, ok := h.model.OutputSpec(outputName)
	if !ok {
		return domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("model %q has no output %q", h.model.Name, outputName), nil)
	}
	if !data.Spec().Equal(spec) {
		return domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("model %q output %q: expected spec %s, got %s", h.model.Name, outputName, spec.PrettyPrint(), data.Spec().PrettyPrint()), nil)
	}
	key := store.ResultKey{
		ModelRunName: h.run.Name,
		ModelName:    h.model.Name,
		OutputName:   outputName,
		Timestep:     h.timestep,
		Iteration:    h.iteration,
	}
	return h.store.WriteResults(ctx, key, data)
}

// GetPreviousTimestepData reads this model's own output, as it stood at
// the end of the previous timestep. Used by models that carry internal
// state across timesteps without a formal lagged Dependency edge.
func (h *DataHandle) GetPreviousTimestepData(ctx context.Context, outputName string) (domain.DataArray, error) {
	prev, ok := h.run.PreviousTimestep(h.timestep)
	if !ok {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeMissingData,
			fmt.Sprintf("model %q: timestep %d has no previous timestep", h.model.Name, h.timestep), nil)
	}
	return h.readOwnOutput(ctx, outputName, prev)
}

// GetBaseTimestepData reads this model's own output as recorded at the
// run's first timestep, the initial condition for lagged state.
func (h *DataHandle) GetBaseTimestepData(ctx context.Context, outputName string) (domain.DataArray, error) {
	return h.readOwnOutput(ctx, outputName, h.run.BaseTimestep())
}

func (h *DataHandle) readOwnOutput(ctx context.Context, outputName string, timestep int) (domain.DataArray, error) {
	if _, ok := h.model.OutputSpec(outputName); !ok {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeMissingData,
			fmt.Sprintf("model %q has no output %q", h.model.Name, outputName), nil)
	}
	key := store.ResultKey{
		ModelRunName: h.run.Name,
		ModelName:    h.model.Name,
		OutputName:   outputName,
		Timestep:     timestep,
		Iteration:    0,
	}
	return h.store.ReadResults(ctx, key)
}
