package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/smif-sim/smif/internal/domain"
)

// MemoryStore is an in-process Store backed by maps, guarded by a single
// RWMutex. Config records and decision state are round-tripped through
// JSON so ReadConfig/ReadState can populate an arbitrary out pointer
// without the store needing to know concrete record types.
type MemoryStore struct {
	mu        sync.RWMutex
	configs   map[string][]byte
	scenario  map[string]domain.DataArray
	narrative map[string]domain.DataArray
	params    map[string]domain.DataArray
	results   map[ResultKey]domain.DataArray
	state     map[string][]byte
	jobMeta   map[JobMetaKey]JobMeta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:   make(map[string][]byte),
		scenario:  make(map[string]domain.DataArray),
		narrative: make(map[string]domain.DataArray),
		params:    make(map[string]domain.DataArray),
		results:   make(map[ResultKey]domain.DataArray),
		state:     make(map[string][]byte),
		jobMeta:   make(map[JobMetaKey]JobMeta),
	}
}

func configKey(kind ConfigKind, name string) string {
	return string(kind) + "/" + name
}

func (s *MemoryStore) WriteConfig(ctx context.Context, kind ConfigKind, name string, record any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "marshalling config record", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[configKey(kind, name)] = b
	return nil
}

func (s *MemoryStore) ReadConfig(ctx context.Context, kind ConfigKind, name string, out any) error {
	s.mu.RLock()
	b, ok := s.configs[configKey(kind, name)]
	s.mu.RUnlock()
	if !ok {
		return missingDataError("no %s config named %q", kind, name)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "unmarshalling config record", err)
	}
	return nil
}

func (s *MemoryStore) ListConfigs(ctx context.Context, kind ConfigKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := string(kind) + "/"
	var names []string
	for k := range s.configs {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			names = append(names, k[len(prefix):])
		}
	}
	return names, nil
}

func (s *MemoryStore) DeleteConfig(ctx context.Context, kind ConfigKind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, configKey(kind, name))
	return nil
}

func (s *MemoryStore) ReadScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int) (domain.DataArray, error) {
	key := fmt.Sprintf("%s/%s/%s/%d", scenarioName, variant, variable, timestep)
	s.mu.RLock()
	defer s.mu.RUnlock()
	da, ok := s.scenario[key]
	if !ok {
		return domain.DataArray{}, missingDataError("no scenario data for %s variant %s variable %s timestep %d", scenarioName, variant, variable, timestep)
	}
	return da, nil
}

func (s *MemoryStore) WriteScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int, data domain.DataArray) error {
	key := fmt.Sprintf("%s/%s/%s/%d", scenarioName, variant, variable, timestep)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario[key] = data
	return nil
}

func (s *MemoryStore) ReadNarrativeVariantData(ctx context.Context, narrativeName, variant, parameter string) (domain.DataArray, error) {
	key := narrativeName + "/" + variant + "/" + parameter
	s.mu.RLock()
	defer s.mu.RUnlock()
	da, ok := s.narrative[key]
	if !ok {
		return domain.DataArray{}, missingDataError("no narrative data for %s variant %s parameter %s", narrativeName, variant, parameter)
	}
	return da, nil
}

func (s *MemoryStore) WriteNarrativeVariantData(scenarioName, variant, parameter string, data domain.DataArray) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narrative[scenarioName+"/"+variant+"/"+parameter] = data
}

func (s *MemoryStore) ReadModelParameterDefault(ctx context.Context, modelName, parameter string) (domain.DataArray, error) {
	key := modelName + "/" + parameter
	s.mu.RLock()
	defer s.mu.RUnlock()
	da, ok := s.params[key]
	if !ok {
		return domain.DataArray{}, missingDataError("no parameter default for model %s parameter %s", modelName, parameter)
	}
	return da, nil
}

func (s *MemoryStore) WriteModelParameterDefault(modelName, parameter string, data domain.DataArray) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[modelName+"/"+parameter] = data
}

func (s *MemoryStore) ReadResults(ctx context.Context, key ResultKey) (domain.DataArray, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	da, ok := s.results[key]
	if !ok {
		return domain.DataArray{}, missingDataError("no results for model %s output %s timestep %d iteration %d",
			key.ModelName, key.OutputName, key.Timestep, key.Iteration)
	}
	return da, nil
}

func (s *MemoryStore) WriteResults(ctx context.Context, key ResultKey, data domain.DataArray) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = data
	return nil
}

func (s *MemoryStore) AvailableResults(ctx context.Context, modelRunName string) ([]ResultKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ResultKey
	for k := range s.results {
		if k.ModelRunName == modelRunName {
			out = append(out, k)
		}
	}
	return out, nil
}

func stateKey(modelRunName string, timestep int) string {
	return fmt.Sprintf("%s/%d", modelRunName, timestep)
}

func (s *MemoryStore) ReadState(ctx context.Context, modelRunName string, timestep int, out any) error {
	s.mu.RLock()
	b, ok := s.state[stateKey(modelRunName, timestep)]
	s.mu.RUnlock()
	if !ok {
		return missingDataError("no decision state for model run %s timestep %d", modelRunName, timestep)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "unmarshalling decision state", err)
	}
	return nil
}

func (s *MemoryStore) WriteState(ctx context.Context, modelRunName string, timestep int, state any) error {
	b, err := json.Marshal(state)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "marshalling decision state", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[stateKey(modelRunName, timestep)] = b
	return nil
}

func (s *MemoryStore) WriteJobMeta(ctx context.Context, key JobMetaKey, meta JobMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobMeta[key] = meta
	return nil
}

func (s *MemoryStore) ReadJobMeta(ctx context.Context, key JobMetaKey) (JobMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.jobMeta[key]
	if !ok {
		return JobMeta{}, missingDataError("no job meta for run %s model %s timestep %d iteration %d",
			key.ModelRunName, key.ModelName, key.Timestep, key.Iteration)
	}
	return m, nil
}

func (s *MemoryStore) ListJobMeta(ctx context.Context, modelRunName string) ([]JobMetaKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []JobMetaKey
	for k := range s.jobMeta {
		if k.ModelRunName == modelRunName {
			out = append(out, k)
		}
	}
	return out, nil
}
