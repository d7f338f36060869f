package runtime

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/executor"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/runner"
)

// Runtime is the per-installation execution context: where things go, how commands run and
// which environment they see.
type Runtime struct {
	RunID      string
	Env        *Environment
	Runner     runner.Runner
	Log        *logrus.Entry
	BuildDir   string
	InstallDir string
	Parallel   int
	DryRun     bool
}

// Config for creating a new Runtime.
type Config struct {
	// Name and Version identify the software; together with the paths they determine the build and install dirs.
	Name        string
	Version     string
	BuildPath   string
	InstallPath string
	Parallel    int
	// Easyblock is the easyblock name used for log fields.
	Easyblock string
	// Env defaults to a copy of the process environment.
	Env *Environment
	// Runner defaults to a local bash runner reading Env.
	Runner runner.Runner
	Log    *logger.BuildLog
	DryRun bool
}

// NewRuntime creates a Runtime with a fresh run id.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.Name == "" || cfg.Version == "" {
		return nil, fmt.Errorf("runtime needs a software name and version")
	}
	if cfg.InstallPath == "" || cfg.BuildPath == "" {
		return nil, fmt.Errorf("runtime needs a build path and an install path")
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Env == nil {
		cfg.Env = FromProcess()
	}
	if cfg.Log == nil {
		cfg.Log = logger.Log
	}

	runID := uuid.NewString()
	log := cfg.Log.ForRun(runID, cfg.Easyblock)
	if cfg.Runner == nil {
		if cfg.DryRun {
			cfg.Runner = runner.NewRecorder()
		} else {
			cfg.Runner = runner.NewCmdRunner(executor.NewLocalExecutor(""), cfg.Env, log)
		}
	}

	return &Runtime{
		RunID:      runID,
		Env:        cfg.Env,
		Runner:     cfg.Runner,
		Log:        log,
		BuildDir:   filepath.Join(cfg.BuildPath, cfg.Name, cfg.Version),
		InstallDir: filepath.Join(cfg.InstallPath, cfg.Name, cfg.Version),
		Parallel:   cfg.Parallel,
		DryRun:     cfg.DryRun,
	}, nil
}

// ShortID is the first block of the run id, used in scratch directory names.
func (r *Runtime) ShortID() string {
	if len(r.RunID) >= 8 {
		return r.RunID[:8]
	}
	return r.RunID
}
