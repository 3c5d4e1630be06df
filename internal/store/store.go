// Package store defines the persistence contract the orchestration core
// runs against: a namespaced key-value store split into configuration
// records (sector models, scenarios, sos models, model runs), scenario
// and narrative data, model parameters, simulation results, and decision
// state. Three backings implement it: an in-memory map for tests, a
// file-tree for local runs, and a Postgres-backed store via bun for
// shared deployments.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/smif-sim/smif/internal/domain"
)

// ConfigKind names one of the record kinds the config namespace holds.
type ConfigKind string

const (
	ConfigKindSectorModel ConfigKind = "sector_model"
	ConfigKindScenario    ConfigKind = "scenario"
	ConfigKindSosModel    ConfigKind = "sos_model"
	ConfigKindModelRun    ConfigKind = "model_run"
)

// ResultKey addresses one DataArray produced by a model run: the output
// of modelName at timestep, under decision iteration.
type ResultKey struct {
	ModelRunName string
	ModelName    string
	OutputName   string
	Timestep     int
	Iteration    int
}

// JobMetaKey addresses one model's job-status record within the meta
// namespace: (run, timestep, iteration, model), per spec.md §4.2/§6.
type JobMetaKey struct {
	ModelRunName string
	Timestep     int
	Iteration    int
	ModelName    string
}

// JobMeta is the status and timing the scheduler records for one model's
// invocation at one (timestep, iteration). Error is the first failure's
// message, empty unless Status is "failed".
type JobMeta struct {
	Status    string
	StartedAt time.Time
	EndedAt   time.Time
	Error     string
}

// Store is the persistence contract every orchestration component runs
// against. Implementations must be safe for concurrent use: the scheduler
// calls Store methods from multiple goroutines within one timestep wave.
type Store interface {
	// Configuration records (sector_model, scenario, sos_model, model_run).
	WriteConfig(ctx context.Context, kind ConfigKind, name string, record any) error
	ReadConfig(ctx context.Context, kind ConfigKind, name string, out any) error
	ListConfigs(ctx context.Context, kind ConfigKind) ([]string, error)
	DeleteConfig(ctx context.Context, kind ConfigKind, name string) error

	// Scenario and narrative data, and model parameter defaults, each
	// keyed by the name of the variant selected in the ModelRun.
	ReadScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int) (domain.DataArray, error)
	WriteScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int, data domain.DataArray) error
	ReadNarrativeVariantData(ctx context.Context, narrativeName, variant, parameter string) (domain.DataArray, error)
	ReadModelParameterDefault(ctx context.Context, modelName, parameter string) (domain.DataArray, error)

	// Results: the outputs models produce at each timestep/iteration.
	ReadResults(ctx context.Context, key ResultKey) (domain.DataArray, error)
	WriteResults(ctx context.Context, key ResultKey, data domain.DataArray) error
	AvailableResults(ctx context.Context, modelRunName string) ([]ResultKey, error)

	// State: opaque decision-module bookkeeping (e.g. which rule fired,
	// the iterating loop's convergence history) carried between timesteps.
	ReadState(ctx context.Context, modelRunName string, timestep int, out any) error
	WriteState(ctx context.Context, modelRunName string, timestep int, state any) error

	// Meta: per-job status and wall-clock timing, written by the
	// scheduler for every model it invokes.
	WriteJobMeta(ctx context.Context, key JobMetaKey, meta JobMeta) error
	ReadJobMeta(ctx context.Context, key JobMetaKey) (JobMeta, error)
	ListJobMeta(ctx context.Context, modelRunName string) ([]JobMetaKey, error)
}

// missingDataError builds the domain.DomainError with ErrCodeMissingData
// that every backing returns when a read finds no record at the given key.
func missingDataError(format string, args ...any) error {
	return domain.NewDomainError(domain.ErrCodeMissingData, fmt.Sprintf(format, args...), nil)
}
