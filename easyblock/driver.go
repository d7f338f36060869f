package easyblock

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/sanity"
	"github.com/mensylisir/xmbuild/step"
)

// Options tune a Driver beyond what the settings say.
type Options struct {
	Skip   []step.Name
	StopAt step.Name
	Only   []step.Name
	// Env defaults to a copy of the process environment.
	Env *runtime.Environment
	// Runner defaults to running commands locally.
	Runner runner.Runner
	Log    *logger.BuildLog
	DryRun bool
	// Out receives step progress lines.
	Out io.Writer
}

// Driver runs one installation of one easyconfig with one easyblock.
type Driver struct {
	block  EasyBlock
	ctx    *Context
	opts   Options
	gen    modenv.Generator
	writer *modenv.Writer
	engine *sanity.Engine

	lastSanity *sanity.Result
}

// NewDriver sets up an installation. The easyconfig must carry every mandatory parameter and
// the easyblock's Init must accept it; both are checked before any command can run.
func NewDriver(block EasyBlock, cfg *config.EasyConfig, settings *config.Settings, opts Options) (*Driver, error) {
	if block == nil {
		return nil, errors.New("easyblock cannot be nil")
	}
	if cfg == nil || settings == nil {
		return nil, errors.New("easyconfig and settings are required")
	}
	if eo, ok := block.(ExtraOptioner); ok {
		for _, p := range eo.ExtraOptions() {
			if !cfg.Declared(p.Name) {
				return nil, eberr.NewConfigError(p.Name, "easyconfig does not declare the %s option of easyblock %s", p.Category, block.Name())
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	gen, err := modenv.NewGenerator(settings.ModuleSyntax)
	if err != nil {
		return nil, eberr.NewConfigError("module_syntax", "%v", err)
	}

	rt, err := runtime.NewRuntime(runtime.Config{
		Name:        cfg.Name(),
		Version:     cfg.ModuleVersion(),
		BuildPath:   settings.BuildPath,
		InstallPath: settings.InstallPath,
		Parallel:    settings.Parallel,
		Easyblock:   block.Name(),
		Env:         opts.Env,
		Runner:      opts.Runner,
		Log:         opts.Log,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		return nil, err
	}

	c := newContext(cfg, settings, rt)
	d := &Driver{
		block:  block,
		ctx:    c,
		opts:   opts,
		gen:    gen,
		writer: modenv.NewWriter(settings.ModulePath, gen),
		engine: sanity.NewEngine(rt.Runner, rt.Log),
	}
	if in, ok := block.(Initializer); ok {
		if err := in.Init(c); err != nil {
			return nil, errors.Wrapf(err, "easyblock %s rejected %s", block.Name(), cfg.Name())
		}
	}
	return d, nil
}

// Context exposes the installation context.
func (d *Driver) Context() *Context { return d.ctx }

// Block returns the easyblock.
func (d *Driver) Block() EasyBlock { return d.block }

// ModulePath is where the module file is written.
func (d *Driver) ModulePath() string { return d.writer.Path(d.meta()) }

// LastSanity returns the result of the most recent sanity check step, if it ran.
func (d *Driver) LastSanity() (sanity.Result, bool) {
	if d.lastSanity == nil {
		return sanity.Result{}, false
	}
	return *d.lastSanity, true
}

// Steps builds the lifecycle for this easyblock.
func (d *Driver) Steps() []step.Step {
	c := d.ctx
	b := d.block
	var steps []step.Step
	add := func(n step.Name, funcs ...func(context.Context) error) {
		var wrapped []step.Func
		for _, fn := range funcs {
			if fn == nil {
				continue
			}
			wrapped = append(wrapped, d.scoped(n, fn))
		}
		steps = append(steps, step.New(n, wrapped...))
	}

	if f, ok := b.(Fetcher); ok {
		add(step.Fetch, func(ctx context.Context) error { return f.Fetch(ctx, c) })
	} else {
		add(step.Fetch, c.defaultFetch)
	}
	if e, ok := b.(Extractor); ok {
		add(step.Extract, func(ctx context.Context) error { return e.Extract(ctx, c) })
	} else {
		add(step.Extract, c.defaultExtract)
	}
	add(step.Patch, func(ctx context.Context) error { return d.patchStep(ctx) })
	prepare := []func(context.Context) error{func(context.Context) error { return d.prepareStep() }}
	if p, ok := b.(Preparer); ok {
		prepare = append(prepare, func(ctx context.Context) error { return p.Prepare(ctx, c) })
	}
	add(step.Prepare, prepare...)
	if cf, ok := b.(Configurer); ok {
		add(step.Configure, func(ctx context.Context) error { return cf.Configure(ctx, c) })
	} else {
		add(step.Configure)
	}
	if bd, ok := b.(Builder); ok {
		add(step.Build, func(ctx context.Context) error { return bd.Build(ctx, c) })
	} else {
		add(step.Build)
	}
	add(step.Test, d.testStep)
	if in, ok := b.(Installer); ok {
		add(step.Install, func(ctx context.Context) error { return in.Install(ctx, c) })
	} else {
		add(step.Install)
	}
	if pi, ok := b.(PostInstaller); ok {
		add(step.PostInstall, func(ctx context.Context) error { return pi.PostInstall(ctx, c) })
	} else {
		add(step.PostInstall)
	}
	add(step.SanityCheck, d.sanityStep)
	cleanup := []func(context.Context) error{}
	if cl, ok := b.(Cleaner); ok {
		cleanup = append(cleanup, func(ctx context.Context) error { return cl.Cleanup(ctx, c) })
	}
	cleanup = append(cleanup, func(context.Context) error { return d.cleanupStep() })
	add(step.Cleanup, cleanup...)
	add(step.Module, func(context.Context) error { return d.moduleStep() })
	return steps
}

// scoped narrows the log to the step and restores the environment context when the callable
// returns. The prepare step is exempt: the dependencies it loads are the build environment.
func (d *Driver) scoped(n step.Name, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		base := d.ctx.Runtime.Log
		d.ctx.Log = logger.ForStep(base, string(n))
		defer func() { d.ctx.Log = base }()
		if n == step.Prepare {
			return fn(ctx)
		}
		return d.ctx.Env().Scoped(func() error { return fn(ctx) })
	}
}

func (d *Driver) stepOptions() (step.Options, error) {
	skip := append([]step.Name{}, d.opts.Skip...)
	fromSettings, err := step.ParseList(d.ctx.Settings.SkipSteps)
	if err != nil {
		return step.Options{}, err
	}
	fromConfig, err := step.ParseList(d.ctx.Config.GetStringSlice(config.ParamSkipSteps))
	if err != nil {
		return step.Options{}, eberr.NewConfigError(config.ParamSkipSteps, "%v", err)
	}
	skip = append(append(skip, fromSettings...), fromConfig...)

	stop := d.opts.StopAt
	if stop == "" && d.ctx.Settings.Stop != "" {
		if stop, err = step.ParseName(d.ctx.Settings.Stop); err != nil {
			return step.Options{}, err
		}
	}
	return step.Options{Skip: skip, StopAt: stop, Only: d.opts.Only}, nil
}

// Run executes the lifecycle. The environment context is restored when the run ends; files
// written by completed steps stay in place after a failure.
func (d *Driver) Run(ctx context.Context) (*step.Report, error) {
	opts, err := d.stepOptions()
	if err != nil {
		return nil, err
	}
	ex := step.NewExecutor(d.ctx.Runtime.Log)
	ex.Out = d.opts.Out

	var report *step.Report
	err = d.ctx.Env().Scoped(func() error {
		var runErr error
		report, runErr = ex.Run(ctx, d.Steps(), opts)
		return runErr
	})
	if err != nil {
		d.ctx.Runtime.Log.WithError(err).Errorf("installation of %s failed", d.meta().ModuleName())
		return report, err
	}
	d.ctx.Runtime.Log.Infof("installation of %s finished", d.meta().ModuleName())
	return report, nil
}

// SanityCheckOnly re-runs the sanity check of an existing installation against its written
// module file, without rebuilding anything.
func (d *Driver) SanityCheckOnly(ctx context.Context) (sanity.Result, error) {
	path := d.writer.Path(d.meta())
	mod, err := modenv.ReadFile(d.gen.Syntax(), path)
	if err != nil {
		return sanity.Result{}, errors.Wrap(err, "sanity check only mode needs an existing module file")
	}
	var res sanity.Result
	err = d.ctx.Env().Scoped(func() error {
		if err := d.loadDependencies(d.ctx); err != nil {
			return err
		}
		var checkErr error
		res, checkErr = d.checkWith(ctx, mod)
		return checkErr
	})
	return res, err
}

// ModuleOnly regenerates the module file of an existing installation.
func (d *Driver) ModuleOnly() (string, error) {
	return d.writeModule()
}
