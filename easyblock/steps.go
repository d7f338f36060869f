package easyblock

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/patch"
	"github.com/mensylisir/xmbuild/sanity"
	"github.com/mensylisir/xmbuild/util"
)

// defaultExtract unpacks archives into a fresh build dir and copies other sources next to them.
// The start dir is the start_dir parameter, else the top-level dir of the first archive.
func (c *Context) defaultExtract(ctx context.Context) error {
	if err := file.RemoveAll(c.BuildDir()); err != nil {
		return errors.Wrap(err, "failed to clear build dir")
	}
	if err := file.CreateDir(c.BuildDir()); err != nil {
		return err
	}
	start := ""
	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Runtime.DryRun {
			c.Log.Infof("dry run: would unpack %s", src)
			continue
		}
		if !file.IsArchive(src) {
			if file.LooksLikeArchive(src) {
				return eberr.NewConfigError(config.ParamSources, "cannot unpack %s: unsupported archive format", filepath.Base(src))
			}
			if err := file.CopyFile(src, filepath.Join(c.BuildDir(), filepath.Base(src))); err != nil {
				return err
			}
			continue
		}
		c.Log.Infof("unpacking %s", filepath.Base(src))
		dir, err := file.Extract(src, c.BuildDir())
		if err != nil {
			return err
		}
		if start == "" {
			start = dir
		}
	}
	if sd := c.Opt(config.ParamStartDir); sd != "" {
		start = sd
	}
	c.SetStartDir(start)
	return nil
}

func (d *Driver) patchStep(ctx context.Context) error {
	c := d.ctx
	for _, ps := range c.patches {
		c.Log.Infof("applying patch %s", ps.Name)
		pf := patch.PatchFile{Path: ps.Path, Level: ps.Level, SubDir: ps.SubDir}
		if err := patch.ApplyPatchFile(ctx, c.Runtime.Runner, c.StartDir(), pf); err != nil {
			return err
		}
	}
	p, ok := d.block.(Patcher)
	if !ok {
		return nil
	}
	ops, err := p.PatchOps(c)
	if err != nil {
		return err
	}
	if err := patch.Apply(c.StartDir(), ops.Subs...); err != nil {
		return err
	}
	return patch.ApplyFileOps(c.StartDir(), ops.Files...)
}

// prepareStep creates the install dir, replacing a previous installation unless
// keeppreviousinstall is set, and loads the dependencies.
func (d *Driver) prepareStep() error {
	c := d.ctx
	if err := file.CreateDir(c.BuildDir()); err != nil {
		return err
	}
	exists, err := file.PathExists(c.InstallDir())
	if err != nil {
		return err
	}
	if exists && !c.Config.GetBool(config.ParamKeepPreviousInstall) && !c.Runtime.DryRun {
		c.Log.Infof("removing previous installation in %s", c.InstallDir())
		if err := file.RemoveAll(c.InstallDir()); err != nil {
			return err
		}
	}
	if err := file.CreateDir(c.InstallDir()); err != nil {
		return err
	}
	return d.loadDependencies(c)
}

// testStep runs the easyblock's test or the runtest command. Failures are downgraded to
// warnings when test failures are ignored.
func (d *Driver) testStep(ctx context.Context) error {
	c := d.ctx
	var err error
	if t, ok := d.block.(Tester); ok {
		err = t.Test(ctx, c)
	} else if cmd := c.Opt(config.ParamRunTest); cmd != "" {
		_, err = c.Run(ctx, util.JoinNonEmpty(" ", c.Opt(config.ParamPreTestOpts), cmd))
	}
	if err != nil && (c.Config.GetBool(config.ParamIgnoreTestFailure) || c.Settings.IgnoreTestFailure) {
		c.Log.WithError(err).Warn("ignoring test failure")
		return eberr.NonFatal(err)
	}
	return err
}

// sanitySpec merges the framework default, the easyblock spec and the easyconfig.
func (d *Driver) sanitySpec() (sanity.Spec, error) {
	c := d.ctx
	spec := sanity.DefaultSpec()
	if sc, ok := d.block.(SanityChecker); ok {
		custom, err := sc.SanityCheckSpec(c)
		if err != nil {
			return sanity.Spec{}, err
		}
		spec = sanity.Merge(spec, custom, false)
	}
	files, dirs, err := sanity.ParsePaths(c.Config.Get(config.ParamSanityCheckPaths), c.Config.Resolve)
	if err != nil {
		return sanity.Spec{}, eberr.NewConfigError(config.ParamSanityCheckPaths, "%v", err)
	}
	fromConfig := sanity.Spec{Files: files, Dirs: dirs, Commands: c.Config.GetStringSlice(config.ParamSanityCheckCommands)}
	return sanity.Merge(spec, fromConfig, c.Config.GetBool(config.ParamEnhanceSanityCheck)), nil
}

// checkWith runs the sanity check with mod loaded into the environment context.
func (d *Driver) checkWith(ctx context.Context, mod *modenv.Module) (sanity.Result, error) {
	spec, err := d.sanitySpec()
	if err != nil {
		return sanity.Result{}, err
	}
	var res sanity.Result
	err = d.ctx.Env().Scoped(func() error {
		modenv.Apply(d.ctx.Env(), mod.Meta, mod.Desc)
		var checkErr error
		res, checkErr = d.engine.Check(ctx, d.ctx.InstallDir(), spec, d.ctx.Env())
		return checkErr
	})
	return res, err
}

// sanityStep checks the installation under a fake module built from the same description the
// module step writes.
func (d *Driver) sanityStep(ctx context.Context) error {
	if d.ctx.Runtime.DryRun {
		d.ctx.Log.Info("dry run: sanity check skipped")
		return nil
	}
	desc, err := d.moduleDescription()
	if err != nil {
		return err
	}
	fake, err := modenv.NewFakeModule(d.gen, d.meta(), desc)
	if err != nil {
		return err
	}
	defer func() {
		if err := fake.Cleanup(); err != nil {
			d.ctx.Log.WithError(err).Warn("failed to remove fake module")
		}
	}()
	res, err := d.checkWith(ctx, fake.Module)
	if err != nil {
		return err
	}
	d.lastSanity = &res
	return res.Err()
}

func (d *Driver) cleanupStep() error {
	c := d.ctx
	if c.Settings.KeepBuildDir || !c.Config.GetBool(config.ParamCleanupBuildDir) {
		c.Log.Infof("keeping build dir %s", c.BuildDir())
		return nil
	}
	return file.RemoveAll(c.BuildDir())
}

func (d *Driver) moduleStep() error {
	path, err := d.writeModule()
	if err != nil {
		return err
	}
	d.ctx.Log.Infof("module file written to %s", path)
	return nil
}

func (d *Driver) writeModule() (string, error) {
	desc, err := d.moduleDescription()
	if err != nil {
		return "", err
	}
	return d.writer.Render(d.meta(), desc)
}

func (d *Driver) meta() modenv.Meta {
	cfg := d.ctx.Config
	list, _ := ParseDependencies(cfg)
	return modenv.Meta{
		Name:         cfg.Name(),
		Version:      cfg.ModuleVersion(),
		Description:  cfg.GetString(config.ParamDescription),
		Homepage:     cfg.GetString(config.ParamHomepage),
		ModuleClass:  cfg.GetString(config.ParamModuleClass),
		InstallDir:   d.ctx.InstallDir(),
		Dependencies: runtimeModules(list),
		LoadMessage:  cfg.GetString(config.ParamModLoadMsg),
	}
}

// moduleDescription assembles the module: guessed paths, contributions made by steps, the
// easyblock's extras, then modextrapaths, modextravars and modaliases.
func (d *Driver) moduleDescription() (*modenv.Description, error) {
	c := d.ctx
	guesses := modenv.DefaultPathGuesses()
	if pg, ok := d.block.(PathGuesser); ok {
		guesses = pg.PathGuesses(c)
	}
	desc, err := modenv.GuessPaths(c.InstallDir(), guesses)
	if err != nil {
		return nil, err
	}
	desc.Merge(c.ModEnv)
	if me, ok := d.block.(ModuleExtender); ok {
		if err := me.MakeModuleExtra(c, desc); err != nil {
			return nil, err
		}
	}
	extraPaths := c.Config.GetStringSliceMap(config.ParamModExtraPaths)
	for _, k := range util.SortedKeys(extraPaths) {
		desc.PrependPaths(k, extraPaths[k]...)
	}
	extraVars := c.Config.GetStringMap(config.ParamModExtraVars)
	for _, k := range util.SortedKeys(extraVars) {
		desc.SetEnv(k, extraVars[k])
	}
	aliases := c.Config.GetStringMap(config.ParamModAliases)
	for _, k := range util.SortedKeys(aliases) {
		desc.SetAlias(k, aliases[k])
	}
	return desc, nil
}
