package easyblock

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/deps"
	"github.com/mensylisir/xmbuild/hook"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/runtime"
)

// Context is everything a step of one installation can see. It is never shared between installations.
type Context struct {
	Config   *config.EasyConfig
	Settings *config.Settings
	Runtime  *runtime.Runtime
	Deps     *deps.Resolver
	// ModEnv collects module contributions made by steps.
	ModEnv *modenv.Description
	// Log is narrowed to the running step.
	Log *logrus.Entry

	sources  []string
	patches  []PatchSpec
	startDir string
	workDir  string
}

func newContext(cfg *config.EasyConfig, settings *config.Settings, rt *runtime.Runtime) *Context {
	c := &Context{
		Config:   cfg,
		Settings: settings,
		Runtime:  rt,
		Deps:     deps.NewResolver(rt.Env),
		ModEnv:   modenv.NewDescription(),
		Log:      rt.Log,
	}
	cfg.SetTemplate("installdir", rt.InstallDir)
	cfg.SetTemplate("builddir", rt.BuildDir)
	cfg.SetTemplate("parallel", strconv.Itoa(c.Parallel()))
	return c
}

// Env is the environment context commands run with.
func (c *Context) Env() *runtime.Environment { return c.Runtime.Env }

// InstallDir is the installation prefix.
func (c *Context) InstallDir() string { return c.Runtime.InstallDir }

// BuildDir is where sources are unpacked.
func (c *Context) BuildDir() string { return c.Runtime.BuildDir }

// StartDir is the unpacked source tree builds start in.
func (c *Context) StartDir() string {
	if c.startDir == "" {
		return c.BuildDir()
	}
	return c.startDir
}

// SetStartDir changes the start dir; a relative dir is taken relative to the build dir.
func (c *Context) SetStartDir(dir string) {
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(c.BuildDir(), dir)
	}
	c.startDir = dir
	c.Config.SetTemplate("start_dir", c.StartDir())
}

// WorkDir is the directory commands run in, the start dir unless changed with ChangeDir.
func (c *Context) WorkDir() string {
	if c.workDir == "" {
		return c.StartDir()
	}
	return c.workDir
}

// ChangeDir runs fn with the working directory set to dir and restores it afterwards.
func (c *Context) ChangeDir(dir string, fn func() error) error {
	prev := c.workDir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(c.WorkDir(), dir)
	}
	return hook.Call(hook.Funcs{
		TryFn: func() error {
			c.workDir = dir
			return fn()
		},
		FinallyFn: func() { c.workDir = prev },
	})
}

// Run executes command in the working directory. A non-zero exit is a *eberr.CommandError.
func (c *Context) Run(ctx context.Context, command string, opts ...runner.Option) (*runner.Result, error) {
	all := append([]runner.Option{runner.WithDir(c.WorkDir()), runner.WithEnv(c.Env().Environ())}, opts...)
	return c.Runtime.Runner.Run(ctx, command, all...)
}

// RunTolerant executes command and reports a non-zero exit through the result only.
func (c *Context) RunTolerant(ctx context.Context, command string, opts ...runner.Option) (*runner.Result, error) {
	return c.Run(ctx, command, append(opts, runner.WithTolerate())...)
}

// Parallel is the build parallelism: the global setting, overridden by the easyconfig's
// parallel and capped by maxparallel.
func (c *Context) Parallel() int {
	n := c.Settings.Parallel
	if v, ok := c.Config.GetInt(config.ParamParallel); ok && v > 0 {
		n = v
	}
	if max, ok := c.Config.GetInt(config.ParamMaxParallel); ok && max > 0 && n > max {
		n = max
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Sources are the local paths of the fetched sources.
func (c *Context) Sources() []string { return append([]string(nil), c.sources...) }

// Patches are the fetched patch files.
func (c *Context) Patches() []PatchSpec { return append([]PatchSpec(nil), c.patches...) }

// Opt returns a string parameter with templates resolved.
func (c *Context) Opt(key string) string { return c.Config.GetString(key) }
