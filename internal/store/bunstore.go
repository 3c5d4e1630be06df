package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smif-sim/smif/internal/domain"
)

// BunStore is the Postgres-backed Store, for shared deployments where
// several model runs persist results to one database.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []any{
		(*configRow)(nil),
		(*dataRow)(nil),
		(*resultRow)(nil),
		(*stateRow)(nil),
		(*jobMetaRow)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return domain.NewDomainError(domain.ErrCodeModelRun, "creating store schema", err)
		}
	}
	return nil
}

func (s *BunStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *BunStore) Close() error                   { return s.db.Close() }

type configRow struct {
	bun.BaseModel `bun:"table:configs,alias:c"`

	Kind string `bun:"kind,pk"`
	Name string `bun:"name,pk"`
	Body []byte `bun:"body,type:jsonb"`
}

func (s *BunStore) WriteConfig(ctx context.Context, kind ConfigKind, name string, record any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "marshalling config record", err)
	}
	row := &configRow{Kind: string(kind), Name: name, Body: b}
	_, err = s.db.NewInsert().Model(row).On("CONFLICT (kind, name) DO UPDATE").Exec(ctx)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "writing config row", err)
	}
	return nil
}

func (s *BunStore) ReadConfig(ctx context.Context, kind ConfigKind, name string, out any) error {
	row := new(configRow)
	err := s.db.NewSelect().Model(row).Where("kind = ?", string(kind)).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return missingDataError("no %s config named %q", kind, name)
		}
		return domain.NewDomainError(domain.ErrCodeModelRun, "reading config row", err)
	}
	if err := json.Unmarshal(row.Body, out); err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "unmarshalling config record", err)
	}
	return nil
}

func (s *BunStore) ListConfigs(ctx context.Context, kind ConfigKind) ([]string, error) {
	var rows []configRow
	err := s.db.NewSelect().Model(&rows).Where("kind = ?", string(kind)).Scan(ctx)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeModelRun, "listing config rows", err)
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names, nil
}

func (s *BunStore) DeleteConfig(ctx context.Context, kind ConfigKind, name string) error {
	_, err := s.db.NewDelete().Model((*configRow)(nil)).Where("kind = ?", string(kind)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "deleting config row", err)
	}
	return nil
}

// dataRow backs scenario, narrative, and parameter data: all three are the
// same shape (a named DataArray keyed by a namespace and up to three
// string/int coordinates), so one table serves all three namespaces.
type dataRow struct {
	bun.BaseModel `bun:"table:data,alias:d"`

	Namespace string         `bun:"namespace,pk"` // "scenario" | "narrative" | "parameter"
	Key1      string         `bun:"key1,pk"`
	Key2      string         `bun:"key2,pk"`
	Key3      string         `bun:"key3,pk"`
	Timestep  int            `bun:"timestep,pk"`
	Record    dataArrayRecord `bun:"record,type:jsonb"`
}

func (s *BunStore) writeData(ctx context.Context, namespace, key1, key2, key3 string, timestep int, data domain.DataArray) error {
	row := &dataRow{Namespace: namespace, Key1: key1, Key2: key2, Key3: key3, Timestep: timestep, Record: toRecord(data)}
	_, err := s.db.NewInsert().Model(row).On("CONFLICT (namespace, key1, key2, key3, timestep) DO UPDATE").Exec(ctx)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "writing data row", err)
	}
	return nil
}

func (s *BunStore) readData(ctx context.Context, namespace, key1, key2, key3 string, timestep int, notFoundFmt string, notFoundArgs ...any) (domain.DataArray, error) {
	row := new(dataRow)
	err := s.db.NewSelect().Model(row).
		Where("namespace = ?", namespace).Where("key1 = ?", key1).Where("key2 = ?", key2).
		Where("key3 = ?", key3).Where("timestep = ?", timestep).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.DataArray{}, missingDataError(notFoundFmt, notFoundArgs...)
		}
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeModelRun, "reading data row", err)
	}
	return fromRecord(row.Record)
}

func (s *BunStore) ReadScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int) (domain.DataArray, error) {
	return s.readData(ctx, "scenario", scenarioName, variant, variable, timestep,
		"no scenario data for %s variant %s variable %s timestep %d", scenarioName, variant, variable, timestep)
}

func (s *BunStore) WriteScenarioVariantData(ctx context.Context, scenarioName, variant, variable string, timestep int, data domain.DataArray) error {
	return s.writeData(ctx, "scenario", scenarioName, variant, variable, timestep, data)
}

func (s *BunStore) ReadNarrativeVariantData(ctx context.Context, narrativeName, variant, parameter string) (domain.DataArray, error) {
	return s.readData(ctx, "narrative", narrativeName, variant, parameter, 0,
		"no narrative data for %s variant %s parameter %s", narrativeName, variant, parameter)
}

func (s *BunStore) ReadModelParameterDefault(ctx context.Context, modelName, parameter string) (domain.DataArray, error) {
	return s.readData(ctx, "parameter", modelName, parameter, "", 0,
		"no parameter default for model %s parameter %s", modelName, parameter)
}

type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ModelRunName string          `bun:"model_run_name,pk"`
	ModelName    string          `bun:"model_name,pk"`
	OutputName   string          `bun:"output_name,pk"`
	Timestep     int             `bun:"timestep,pk"`
	Iteration    int             `bun:"iteration,pk"`
	Record       dataArrayRecord `bun:"record,type:jsonb"`
}

func (s *BunStore) ReadResults(ctx context.Context, key ResultKey) (domain.DataArray, error) {
	row := new(resultRow)
	err := s.db.NewSelect().Model(row).
		Where("model_run_name = ?", key.ModelRunName).Where("model_name = ?", key.ModelName).
		Where("output_name = ?", key.OutputName).Where("timestep = ?", key.Timestep).
		Where("iteration = ?", key.Iteration).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.DataArray{}, missingDataError("no results for model %s output %s timestep %d iteration %d",
				key.ModelName, key.OutputName, key.Timestep, key.Iteration)
		}
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeModelRun, "reading result row", err)
	}
	return fromRecord(row.Record)
}

func (s *BunStore) WriteResults(ctx context.Context, key ResultKey, data domain.DataArray) error {
	row := &resultRow{
		ModelRunName: key.ModelRunName, ModelName: key.ModelName, OutputName: key.OutputName,
		Timestep: key.Timestep, Iteration: key.Iteration, Record: toRecord(data),
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (model_run_name, model_name, output_name, timestep, iteration) DO UPDATE").Exec(ctx)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "writing result row", err)
	}
	return nil
}

func (s *BunStore) AvailableResults(ctx context.Context, modelRunName string) ([]ResultKey, error) {
	var rows []resultRow
	err := s.db.NewSelect().Model(&rows).Where("model_run_name = ?", modelRunName).Scan(ctx)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeModelRun, "listing result rows", err)
	}
	out := make([]ResultKey, len(rows))
	for i, r := range rows {
		out[i] = ResultKey{
			ModelRunName: r.ModelRunName, ModelName: r.ModelName, OutputName: r.OutputName,
			Timestep: r.Timestep, Iteration: r.Iteration,
		}
	}
	return out, nil
}

type stateRow struct {
	bun.BaseModel `bun:"table:decision_state,alias:s"`

	ModelRunName string `bun:"model_run_name,pk"`
	Timestep     int    `bun:"timestep,pk"`
	Body         []byte `bun:"body,type:jsonb"`
}

func (s *BunStore) ReadState(ctx context.Context, modelRunName string, timestep int, out any) error {
	row := new(stateRow)
	err := s.db.NewSelect().Model(row).Where("model_run_name = ?", modelRunName).Where("timestep = ?", timestep).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return missingDataError("no decision state for model run %s timestep %d", modelRunName, timestep)
		}
		return domain.NewDomainError(domain.ErrCodeModelRun, "reading decision state row", err)
	}
	if err := json.Unmarshal(row.Body, out); err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "unmarshalling decision state", err)
	}
	return nil
}

func (s *BunStore) WriteState(ctx context.Context, modelRunName string, timestep int, state any) error {
	b, err := json.Marshal(state)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "marshalling decision state", err)
	}
	row := &stateRow{ModelRunName: modelRunName, Timestep: timestep, Body: b}
	_, err = s.db.NewInsert().Model(row).On("CONFLICT (model_run_name, timestep) DO UPDATE").Exec(ctx)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "writing decision state row", err)
	}
	return nil
}

type jobMetaRow struct {
	bun.BaseModel `bun:"table:job_meta,alias:j"`

	ModelRunName string    `bun:"model_run_name,pk"`
	Timestep     int       `bun:"timestep,pk"`
	Iteration    int       `bun:"iteration,pk"`
	ModelName    string    `bun:"model_name,pk"`
	Status       string    `bun:"status"`
	StartedAt    time.Time `bun:"started_at"`
	EndedAt      time.Time `bun:"ended_at"`
	Error        string    `bun:"error"`
}

func (s *BunStore) WriteJobMeta(ctx context.Context, key JobMetaKey, meta JobMeta) error {
	row := &jobMetaRow{
		ModelRunName: key.ModelRunName, Timestep: key.Timestep, Iteration: key.Iteration, ModelName: key.ModelName,
		Status: meta.Status, StartedAt: meta.StartedAt, EndedAt: meta.EndedAt, Error: meta.Error,
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (model_run_name, timestep, iteration, model_name) DO UPDATE").Exec(ctx)
	if err != nil {
		return domain.NewDomainError(domain.ErrCodeModelRun, "writing job meta row", err)
	}
	return nil
}

func (s *BunStore) ReadJobMeta(ctx context.Context, key JobMetaKey) (JobMeta, error) {
	row := new(jobMetaRow)
	err := s.db.NewSelect().Model(row).
		Where("model_run_name = ?", key.ModelRunName).Where("timestep = ?", key.Timestep).
		Where("iteration = ?", key.Iteration).Where("model_name = ?", key.ModelName).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return JobMeta{}, missingDataError("no job meta for run %s model %s timestep %d iteration %d",
				key.ModelRunName, key.ModelName, key.Timestep, key.Iteration)
		}
		return JobMeta{}, domain.NewDomainError(domain.ErrCodeModelRun, "reading job meta row", err)
	}
	return JobMeta{Status: row.Status, StartedAt: row.StartedAt, EndedAt: row.EndedAt, Error: row.Error}, nil
}

func (s *BunStore) ListJobMeta(ctx context.Context, modelRunName string) ([]JobMetaKey, error) {
	var rows []jobMetaRow
	err := s.db.NewSelect().Model(&rows).Where("model_run_name = ?", modelRunName).Scan(ctx)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeModelRun, "listing job meta rows", err)
	}
	out := make([]JobMetaKey, len(rows))
	for i, r := range rows {
		out[i] = JobMetaKey{ModelRunName: r.ModelRunName, Timestep: r.Timestep, Iteration: r.Iteration, ModelName: r.ModelName}
	}
	return out, nil
}
