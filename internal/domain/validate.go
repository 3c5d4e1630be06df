package domain

import "fmt"

// Validate checks the structural invariants of an SosModel that can be
// established without walking the dependency graph for cycles (cycle
// detection over the non-lagged edges is the job of the graph package,
// which imports this one): every declared model input is satisfied by
// exactly one dependency, every dependency's endpoints name real
// model/spec pairs, and the source and sink Specs of each dependency are
// convertible under reg.
func (s SosModel) Validate(reg ConversionRegistry) error {
	if s.Name == "" {
		return NewDomainError(ErrCodeValidation, "sos model has no name", nil)
	}
	seen := make(map[string]bool, len(s.Models))
	for _, m := range s.Models {
		if seen[m.Name] {
			return NewDomainError(ErrCodeValidation,
				fmt.Sprintf("sos model %q: duplicate model name %q", s.Name, m.Name), nil)
		}
		seen[m.Name] = true
	}

	// Every sink input must be satisfied by exactly one dependency.
	satisfiedBy := make(map[string][]Dependency) // "model.input" -> deps
	for _, d := range s.Dependencies {
		key := d.SinkModel + "." + d.SinkInput
		satisfiedBy[key] = append(satisfiedBy[key], d)
	}
	for _, m := range s.Models {
		for _, in := range m.Inputs {
			key := m.Name + "." + in.Name()
			deps := satisfiedBy[key]
			switch len(deps) {
			case 0:
				return NewDomainError(ErrCodeValidation,
					fmt.Sprintf("sos model %q: input %q of model %q has no dependency supplying it", s.Name, in.Name(), m.Name), nil)
			case 1:
				// satisfied
			default:
				return NewDomainError(ErrCodeValidation,
					fmt.Sprintf("sos model %q: input %q of model %q is supplied by %d dependencies, want exactly 1", s.Name, in.Name(), m.Name, len(deps)), nil)
			}
		}
	}

	// Every dependency's endpoints must resolve to real models and Specs,
	// and the Specs must be convertible source-to-sink.
	for _, d := range s.Dependencies {
		srcModel, ok := s.ModelByName(d.SourceModel)
		if !ok {
			return NewDomainError(ErrCodeValidation,
				fmt.Sprintf("sos model %q: dependency references unknown source model %q", s.Name, d.SourceModel), nil)
		}
		srcSpec, ok := srcModel.OutputSpec(d.SourceOutput)
		if !ok {
			return NewDomainError(ErrCodeValidation,
				fmt.Sprintf("sos model %q: model %q has no output %q", s.Name, d.SourceModel, d.SourceOutput), nil)
		}
		sinkModel, ok := s.ModelByName(d.SinkModel)
		if !ok {
			return NewDomainError(ErrCodeValidation,
				fmt.Sprintf("sos model %q: dependency references unknown sink model %q", s.Name, d.SinkModel), nil)
		}
		sinkSpec, ok := sinkModel.InputSpec(d.SinkInput)
		if !ok {
			return NewDomainError(ErrCodeValidation,
				fmt.Sprintf("sos model %q: model %q has no input %q", s.Name, d.SinkModel, d.SinkInput), nil)
		}
		if !srcSpec.IsConvertibleTo(sinkSpec, reg) {
			return NewDomainError(ErrCodeConversion,
				fmt.Sprintf("sos model %q: output %q of %q (%s) cannot be adapted to input %q of %q (%s)",
					s.Name, d.SourceOutput, d.SourceModel, srcSpec.PrettyPrint(),
					d.SinkInput, d.SinkModel, sinkSpec.PrettyPrint()), nil)
		}
	}
	return nil
}
