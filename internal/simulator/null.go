// Package simulator provides stand-in scheduler.Simulator implementations
// for running a ModelRun without a real, user-authored sector model
// wrapper attached: the orchestration core only ever talks to a sector
// model through the before_model_run/simulate contract (spec.md §1 keeps
// user-authored wrappers external), so a concrete implementation is
// needed to drive the CLI end to end against configuration alone.
package simulator

import (
	"context"

	"github.com/smif-sim/smif/internal/datahandle"
	"github.com/smif-sim/smif/internal/domain"
	"github.com/smif-sim/smif/internal/scheduler"
)

// Null satisfies scheduler.Simulator by writing a zero-valued DataArray
// for every output Spec and otherwise doing nothing. It is the default
// registered for every sector model the CLI's config directory names,
// which is enough to exercise the graph, scheduler, and decision loop
// without a real sector model implementation present.
type Null struct {
	Model domain.Model
}

func (n Null) BeforeModelRun(ctx context.Context, dh *datahandle.DataHandle) error {
	return nil
}

func (n Null) Simulate(ctx context.Context, dh *datahandle.DataHandle) error {
	for _, out := range n.Model.Outputs {
		if err := dh.SetResults(ctx, out.Name(), domain.ZeroDataArray(out)); err != nil {
			return err
		}
	}
	return nil
}

// BuildRegistry returns a Null simulator for every sector model in sos,
// keyed by model name, for use where no real simulators are registered.
func BuildRegistry(sos domain.SosModel) map[string]scheduler.Simulator {
	reg := make(map[string]scheduler.Simulator)
	for _, m := range sos.Models {
		if m.Kind == domain.ModelKindSector {
			reg[m.Name] = Null{Model: m}
		}
	}
	return reg
}
