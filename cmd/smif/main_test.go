package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smif-sim/smif/internal/domain"
	infraconfig "github.com/smif-sim/smif/internal/infrastructure/config"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestWalkYAML_SkipsMissingDirectory(t *testing.T) {
	err := walkYAML(filepath.Join(t.TempDir(), "nonexistent"), func(raw []byte) error {
		t.Fatal("should not be called")
		return nil
	})
	require.NoError(t, err)
}

func TestWalkYAML_SkipsNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "ignore me")
	writeFile(t, dir, "a.yaml", "name: a")

	var seen []string
	err := walkYAML(dir, func(raw []byte) error {
		seen = append(seen, string(raw))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name: a"}, seen)
}

func setupConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scenarios"), "population.yaml", `
name: population
provides:
  - name: population
    unit: people
variants:
  - name: baseline
    data:
      population: population_baseline.csv
`)
	writeFile(t, filepath.Join(dir, "sector_models"), "water_supply.yaml", `
name: water_supply
inputs:
  - name: population
    unit: people
outputs:
  - name: supply
    unit: Ml/day
`)
	writeFile(t, filepath.Join(dir, "sos_models"), "test_sos.yaml", `
name: test_sos
sector_models: [water_supply]
scenarios: [population]
scenario_dependencies:
  - source: population
    source_output: population
    sink: water_supply
    sink_input: population
`)
	writeFile(t, filepath.Join(dir, "model_runs"), "baseline.yaml", `
name: baseline
sos_model: test_sos
timesteps: [2020, 2025]
scenarios:
  population: baseline
decision_module: pre-specified
`)
	return dir
}

func TestLoadRegistry_AndFindSosModel(t *testing.T) {
	dir := setupConfigDir(t)
	reg, err := loadRegistry(dir)
	require.NoError(t, err)

	sos, err := findSosModel(dir, reg, "test_sos")
	require.NoError(t, err)
	assert.Equal(t, "test_sos", sos.Name)
	assert.Len(t, sos.Models, 2)
}

func TestFindSosModel_NotFound(t *testing.T) {
	dir := setupConfigDir(t)
	reg, err := loadRegistry(dir)
	require.NoError(t, err)

	_, err = findSosModel(dir, reg, "missing_sos")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_sos")
}

func TestFindModelRun_Found(t *testing.T) {
	dir := setupConfigDir(t)
	run, err := findModelRun(dir, "baseline")
	require.NoError(t, err)
	assert.Equal(t, "test_sos", run.SosModelName)
	assert.Equal(t, []int{2020, 2025}, run.Timesteps)
	assert.Equal(t, domain.DecisionPreSpecified, run.DecisionModule)
}

func TestFindModelRun_NotFound(t *testing.T) {
	dir := setupConfigDir(t)
	_, err := findModelRun(dir, "missing_run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_run")
}

func TestRunModelRun_EndToEnd(t *testing.T) {
	dir := setupConfigDir(t)
	cfg := &infraconfig.Config{StoreDir: t.TempDir(), MaxParallel: 2}
	err := runModelRun(context.Background(), dir, cfg, "baseline")
	require.NoError(t, err)
}
