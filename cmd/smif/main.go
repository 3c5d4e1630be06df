// Command smif is the CLI front end for the orchestration core: it loads
// the on-disk YAML configuration (spec.md §6), runs a model run to
// completion, and reports on the Store's contents. The core itself never
// parses YAML or touches a terminal; this is the thin external
// collaborator spec.md §1 describes.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smif-sim/smif/internal/adaptor"
	"github.com/smif-sim/smif/internal/configfile"
	"github.com/smif-sim/smif/internal/decision"
	"github.com/smif-sim/smif/internal/domain"
	infraconfig "github.com/smif-sim/smif/internal/infrastructure/config"
	"github.com/smif-sim/smif/internal/infrastructure/logger"
	"github.com/smif-sim/smif/internal/runner"
	"github.com/smif-sim/smif/internal/scheduler"
	"github.com/smif-sim/smif/internal/simulator"
	"github.com/smif-sim/smif/internal/store"
)

const usage = `smif - System-of-Systems model orchestration core

USAGE:
    smif <command> [args]

COMMANDS:
    run <model_run_name>             Run a model run to completion
    list <kind>                      List configured sector_model|scenario|sos_model|model_run records
    available_results <model_run_name>   Print (model, output, timestep, iteration) tuples already in the Store

ENVIRONMENT:
    SMIF_CONFIG_DIR    directory holding sector_models/, scenarios/, sos_models/, model_runs/ (default ./config)
    SMIF_STORE_DIR     file-tree Store base directory (default ./smif_data)
    SMIF_LOG_LEVEL     debug|info|warn|error (default info)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := infraconfig.Load()
	logger.Setup(cfg.LogLevel)

	configDir := getEnv("SMIF_CONFIG_DIR", "./config")
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "run":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "run requires a model_run_name")
			os.Exit(1)
		}
		err = runModelRun(ctx, configDir, cfg, os.Args[2])
	case "list":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "list requires a kind: sector_model|scenario|sos_model|model_run")
			os.Exit(1)
		}
		err = listConfigs(configDir, os.Args[2])
	case "available_results":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "available_results requires a model_run_name")
			os.Exit(1)
		}
		err = availableResults(ctx, cfg, os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "smif:", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// loadRegistry walks configDir's sector_models/ and scenarios/
// subdirectories, registering every record found.
func loadRegistry(configDir string) (*configfile.Registry, error) {
	reg := configfile.NewRegistry()
	if err := walkYAML(filepath.Join(configDir, "sector_models"), func(raw []byte) error {
		return reg.AddSectorModel(raw)
	}); err != nil {
		return nil, err
	}
	if err := walkYAML(filepath.Join(configDir, "scenarios"), func(raw []byte) error {
		return reg.AddScenario(raw)
	}); err != nil {
		return nil, err
	}
	return reg, nil
}

func walkYAML(dir string, fn func(raw []byte) error) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if err := fn(raw); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func findModelRun(configDir, name string) (domain.ModelRun, error) {
	var run domain.ModelRun
	found := false
	err := walkYAML(filepath.Join(configDir, "model_runs"), func(raw []byte) error {
		rec, err := configfile.ParseModelRun(raw)
		if err != nil {
			return err
		}
		if rec.Name == name {
			run = rec.ToDomain()
			found = true
		}
		return nil
	})
	if err != nil {
		return domain.ModelRun{}, err
	}
	if !found {
		return domain.ModelRun{}, fmt.Errorf("model run %q not found under %s/model_runs", name, configDir)
	}
	return run, nil
}

func findSosModel(configDir string, reg *configfile.Registry, name string) (domain.SosModel, error) {
	var sos domain.SosModel
	found := false
	err := walkYAML(filepath.Join(configDir, "sos_models"), func(raw []byte) error {
		resolved, err := reg.ResolveSosModel(raw)
		if err != nil {
			return err
		}
		if resolved.Name == name {
			sos = resolved
			found = true
		}
		return nil
	})
	if err != nil {
		return domain.SosModel{}, err
	}
	if !found {
		return domain.SosModel{}, fmt.Errorf("sos model %q not found under %s/sos_models", name, configDir)
	}
	return sos, nil
}

func runModelRun(ctx context.Context, configDir string, cfg *infraconfig.Config, name string) error {
	reg, err := loadRegistry(configDir)
	if err != nil {
		return err
	}
	run, err := findModelRun(configDir, name)
	if err != nil {
		return err
	}
	sos, err := findSosModel(configDir, reg, run.SosModelName)
	if err != nil {
		return err
	}

	st := store.NewFileStore(cfg.StoreDir)
	pipeline := adaptor.NewPipeline(nil, nil, nil)
	sims := simulator.BuildRegistry(sos)

	mr, err := runner.New(sos, run, st, pipeline, sims, runner.Options{MaxParallel: cfg.MaxParallel})
	if err != nil {
		return err
	}

	result, err := mr.Run(ctx)
	if err != nil && result.Status == "" {
		return err
	}

	fmt.Printf("model run %q (execution %s): %s\n", name, mr.ExecutionID(), result.Status)
	if result.Status != decision.StatusDone {
		for _, t := range run.Timesteps {
			statuses, ok := result.PerTimestep[t]
			if !ok {
				continue
			}
			for model, s := range statuses {
				if s != scheduler.JobDone {
					fmt.Printf("  timestep %d: %s: %s\n", t, model, s)
				}
			}
		}
		os.Exit(1)
	}
	return nil
}

func listConfigs(configDir, kind string) error {
	var dir string
	switch kind {
	case "sector_model":
		dir = "sector_models"
	case "scenario":
		dir = "scenarios"
	case "sos_model":
		dir = "sos_models"
	case "model_run":
		dir = "model_runs"
	default:
		return fmt.Errorf("unknown kind %q: want sector_model|scenario|sos_model|model_run", kind)
	}

	var names []string
	err := walkYAML(filepath.Join(configDir, dir), func(raw []byte) error {
		// Every record shape shares a top-level `name` field; a minimal
		// record is enough to pull it without parsing the full kind.
		type named struct {
			Name string `yaml:"name"`
		}
		var n named
		if err := yaml.Unmarshal(raw, &n); err != nil {
			return err
		}
		names = append(names, n.Name)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func availableResults(ctx context.Context, cfg *infraconfig.Config, runName string) error {
	st := store.NewFileStore(cfg.StoreDir)
	keys, err := st.AvailableResults(ctx, runName)
	if err != nil {
		return err
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ModelName != b.ModelName {
			return a.ModelName < b.ModelName
		}
		if a.OutputName != b.OutputName {
			return a.OutputName < b.OutputName
		}
		if a.Timestep != b.Timestep {
			return a.Timestep < b.Timestep
		}
		return a.Iteration < b.Iteration
	})
	for _, k := range keys {
		fmt.Printf("%s\t%s\ttimestep=%d\titeration=%d\n", k.ModelName, k.OutputName, k.Timestep, k.Iteration)
	}
	return nil
}
