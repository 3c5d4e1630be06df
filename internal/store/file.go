package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smif-sim/smif/internal/domain"
)

// FileStore persists every namespace as JSON files under a base
// directory, laid out as:
//
//	<base>/config/<kind>/<name>.json
//	<base>/scenario/<scenario>/<variant>/<variable>/<timestep>.json
//	<base>/narrative/<narrative>/<variant>/<parameter>.json
//	<base>/parameter/<model>/<parameter>.json
//	<base>/results/<model_run>/<model>/<output>/<timestep>_<iteration>.json
//	<base>/state/<model_run>/<timestep>.json
//
// This is the backing used for local single-machine runs, where a
// Postgres instance would be overkill.
type FileStore struct {
	base string
}

func NewFileStore(base string) *FileStore {
	return &FileStore{base: base}
}

func (s *FileStore) path(parts ...string) string {
	return filepath.Join(append([]string{s.base}, parts...)...)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "creating store directory", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "marshalling record", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "writing store file", err)
	}
	return nil
}

func readJSON(path string, out any, notFoundFmt string, notFoundArgs ...any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return missingDataError(notFoundFmt, notFoundArgs...)
		}
		return domain.NewDomainError(domain.ErrCodeModelRun, "reading store file", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "unmarshalling record", err)
	}
	return nil
}

func (s *FileStore) WriteConfig(ctx context.Context, kind ConfigKind, name string, record any) error {
	return writeJSON(s.path("config", string(kind), name+".json"), record)
}

func (s *FileStore) ReadConfig(ctx context.Context, kind ConfigKind, name string, out any) error {
	return readJSON(s.path("config", string(kind), name+".json"), out, "no %s config named %q", kind, name)
}

func (s *FileStore) ListConfigs(ctx context.Context, kind ConfigKind) ([]string, error) {
	dir := s.path("config", string(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.NewDomainError(domain.ErrCodeModelRun, "listing config directory", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, trimJSONExt(e.Name()))
	}
	return names, nil
}

func trimJSONExt(name string) string {
	const ext = ".json"
	if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
		return name[:len(name)-len(ext)]
	}
	return name
}

func (s *FileStore) DeleteConfig(ctx context.Context, kind ConfigKind, name string) error {
	err := os.Remove(s.path("config", string(kind), name+".json"))
	if err != nil && !os.IsNotExist(err) {
		return domain.NewDomainError(domain.ErrCodeModelRun, "deleting config file", err)
	}
	return nil
}

type dataArrayRecord struct {
	Dims      []string            `json:"dims"`
	Coords    map[string][]string `json:"coords"`
	Unit      string              `json:"unit"`
	DType     domain.DType        `json:"dtype"`
	Extensive bool                `json:"extensive"`
	Name      string              `json:"name"`
	Values    []float64           `json:"values"`
}

func toRecord(da domain.DataArray) dataArrayRecord {
	spec := da.Spec()
	coords := make(map[string][]string, len(spec.Dims()))
	for _, d := range spec.Dims() {
		coords[d] = spec.Coords(d)
	}
	return dataArrayRecord{
		Dims:      spec.Dims(),
		Coords:    coords,
		Unit:      spec.Unit(),
		DType:     spec.DType(),
		Extensive: spec.Extensive(),
		Name:      spec.Name(),
		Values:    da.Values(),
	}
}

func fromRecord(r dataArrayRecord) (domain.DataArray, error) {
	spec, err := domain.NewSpec(r.Name, r.Dims, r.Coords, r.Unit, r.DType, r.Extensive)
	if err != nil {
		return domain.DataArray{}, err
	}
	return domain.NewDataArray(spec, r.Values)
}

func (s *FileStore) ReadScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int) (domain.DataArray, error) {
	path := s.path("scenario", scenarioName, variant, variable, strconv.Itoa(timestep)+".json")
	var rec dataArrayRecord
	if err := readJSON(path, &rec, "no scenario data for %s variant %s variable %s timestep %d", scenarioName, variant, variable, timestep); err != nil {
		return domain.DataArray{}, err
	}
	return fromRecord(rec)
}

func (s *FileStore) WriteScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int, data domain.DataArray) error {
	path := s.path("scenario", scenarioName, variant, variable, strconv.Itoa(timestep)+".json")
	return writeJSON(path, toRecord(data))
}

func (s *FileStore) ReadNarrativeVariantData(ctx context.Context, narrativeName, variant, parameter string) (domain.DataArray, error) {
	path := s.path("narrative", narrativeName, variant, parameter+".json")
	var rec dataArrayRecord
	if err := readJSON(path, &rec, "no narrative data for %s variant %s parameter %s", narrativeName, variant, parameter); err != nil {
		return domain.DataArray{}, err
	}
	return fromRecord(rec)
}

func (s *FileStore) ReadModelParameterDefault(ctx context.Context, modelName, parameter string) (domain.DataArray, error) {
	path := s.path("parameter", modelName, parameter+".json")
	var rec dataArrayRecord
	if err := readJSON(path, &rec, "no parameter default for model %s parameter %s", modelName, parameter); err != nil {
		return domain.DataArray{}, err
	}
	return fromRecord(rec)
}

func resultPath(base string, key ResultKey) string {
	return filepath.Join(base, "results", key.ModelRunName, key.ModelName, key.OutputName,
		fmt.Sprintf("%d_%d.json", key.Timestep, key.Iteration))
}

func (s *FileStore) ReadResults(ctx context.Context, key ResultKey) (domain.DataArray, error) {
	var rec dataArrayRecord
	if err := readJSON(resultPath(s.base, key), &rec,
		"no results for model %s output %s timestep %d iteration %d", key.ModelName, key.OutputName, key.Timestep, key.Iteration); err != nil {
		return domain.DataArray{}, err
	}
	return fromRecord(rec)
}

func (s *FileStore) WriteResults(ctx context.Context, key ResultKey, data domain.DataArray) error {
	return writeJSON(resultPath(s.base, key), toRecord(data))
}

func (s *FileStore) AvailableResults(ctx context.Context, modelRunName string) ([]ResultKey, error) {
	root := filepath.Join(s.base, "results", modelRunName)
	var out []ResultKey
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		var modelName, outputName string
		var timestep, iteration int
		segs := splitPath(rel)
		if len(segs) != 3 {
			return nil
		}
		modelName = segs[0]
		outputName = segs[1]
		fileName := trimJSONExt(segs[2])
		if _, err := fmt.Sscanf(fileName, "%d_%d", &timestep, &iteration); err != nil {
			return nil
		}
		out = append(out, ResultKey{
			ModelRunName: modelRunName,
			ModelName:    modelName,
			OutputName:   outputName,
			Timestep:     timestep,
			Iteration:    iteration,
		})
		return nil
	})
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeModelRun, "walking results directory", err)
	}
	return out, nil
}

func splitPath(rel string) []string {
	var out []string
	for _, p := range strings.Split(filepath.ToSlash(rel), "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *FileStore) ReadState(ctx context.Context, modelRunName string, timestep int, out any) error {
	path := s.path("state", modelRunName, strconv.Itoa(timestep)+".json")
	return readJSON(path, out, "no decision state for model run %s timestep %d", modelRunName, timestep)
}

func (s *FileStore) WriteState(ctx context.Context, modelRunName string, timestep int, state any) error {
	path := s.path("state", modelRunName, strconv.Itoa(timestep)+".json")
	return writeJSON(path, state)
}

func jobMetaPath(base string, key JobMetaKey) string {
	return filepath.Join(base, "meta", key.ModelRunName, key.ModelName,
		fmt.Sprintf("%d_%d.json", key.Timestep, key.Iteration))
}

func (s *FileStore) WriteJobMeta(ctx context.Context, key JobMetaKey, meta JobMeta) error {
	return writeJSON(jobMetaPath(s.base, key), meta)
}

func (s *FileStore) ReadJobMeta(ctx context.Context, key JobMetaKey) (JobMeta, error) {
	var m JobMeta
	err := readJSON(jobMetaPath(s.base, key), &m,
		"no job meta for run %s model %s timestep %d iteration %d", key.ModelRunName, key.ModelName, key.Timestep, key.Iteration)
	return m, err
}

func (s *FileStore) ListJobMeta(ctx context.Context, modelRunName string) ([]JobMetaKey, error) {
	root := filepath.Join(s.base, "meta", modelRunName)
	var out []JobMetaKey
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		segs := splitPath(rel)
		if len(segs) != 2 {
			return nil
		}
		modelName := segs[0]
		fileName := trimJSONExt(segs[1])
		var timestep, iteration int
		if _, err := fmt.Sscanf(fileName, "%d_%d", &timestep, &iteration); err != nil {
			return nil
		}
		out = append(out, JobMetaKey{ModelRunName: modelRunName, ModelName: modelName, Timestep: timestep, Iteration: iteration})
		return nil
	})
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeModelRun, "walking meta directory", err)
	}
	return out, nil
}
