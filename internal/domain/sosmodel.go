package domain

// SosModel ("system-of-systems model") is a named collection of scenario
// and sector models wired together by dependencies. It is the unit that a
// ModelRun selects and executes; models and dependencies are validated
// together by Validate.
type SosModel struct {
	Name         string
	Models       []Model
	Dependencies []Dependency
	Narratives   []string
}

// ModelByName returns the named model, if present.
func (s SosModel) ModelByName(name string) (Model, bool) {
	for _, m := range s.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// DependenciesInto returns every dependency whose sink is modelName.
func (s SosModel) DependenciesInto(modelName string) []Dependency {
	var out []Dependency
	for _, d := range s.Dependencies {
		if d.SinkModel == modelName {
			out = append(out, d)
		}
	}
	return out
}

// DependenciesFrom returns every dependency whose source is modelName.
func (s SosModel) DependenciesFrom(modelName string) []Dependency {
	var out []Dependency
	for _, d := range s.Dependencies {
		if d.SourceModel == modelName {
			out = append(out, d)
		}
	}
	return out
}
