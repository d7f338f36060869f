package easyblock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/sanity"
	"github.com/mensylisir/xmbuild/step"
)

type toolBlock struct {
	extra         []config.Parameter
	configuredEnv string
	zlibRoot      string
}

func (b *toolBlock) Name() string                     { return "Tool" }
func (b *toolBlock) ExtraOptions() []config.Parameter { return b.extra }

func (b *toolBlock) Configure(ctx context.Context, c *Context) error {
	c.Env().Set("TOOL_CONFIGURED", "1")
	c.ModEnv.PrependPaths("PATH", "bin")
	b.zlibRoot, _ = c.Deps.Root("zlib")
	_, err := c.Run(ctx, runner.Command("./configure", "--prefix="+c.InstallDir()))
	return err
}

func (b *toolBlock) Build(ctx context.Context, c *Context) error {
	b.configuredEnv = c.Env().Get("TOOL_CONFIGURED")
	_, err := c.Run(ctx, runner.Line("make", "-j", strconv.Itoa(c.Parallel())))
	return err
}

func (b *toolBlock) Install(ctx context.Context, c *Context) error {
	c.ModEnv.PrependPaths("PATH", "bin")
	_, err := c.Run(ctx, "make install")
	return err
}

func (b *toolBlock) SanityCheckSpec(c *Context) (sanity.Spec, error) {
	return sanity.Spec{
		Files: []sanity.PathGroup{sanity.Group("bin/tool")},
		Dirs:  []sanity.PathGroup{sanity.Group("lib", "lib64")},
	}, nil
}

type fixture struct {
	settings *config.Settings
	env      *runtime.Environment
	rec      *runner.Recorder
	log      *logger.BuildLog
}

func (f *fixture) installDir() string {
	return filepath.Join(f.settings.InstallPath, "tool", "1.0")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	s := &config.Settings{ModuleSyntax: config.ModuleSyntaxLua, Parallel: 4}
	config.SetDefaultSettings(s, t.TempDir())

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "tool-1.0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "tool-1.0", "configure"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.MkdirAll(s.SourcePath[0], 0o755))
	require.NoError(t, file.TarGz(src, filepath.Join(s.SourcePath[0], "tool-1.0.tar.gz")))

	log, err := logger.New(logger.Options{Quiet: true})
	require.NoError(t, err)

	f := &fixture{settings: s, env: runtime.NewEnvironment([]string{"PATH=/usr/bin"}), log: log}
	f.rec = runner.NewRecorder().
		On(`^make install$`, runner.Response{Do: func(runner.Call) error {
			for _, p := range []string{"bin/tool", "lib/libtool.so"} {
				if err := file.WriteFile(filepath.Join(f.installDir(), p), []byte("x")); err != nil {
					return err
				}
			}
			return nil
		}}).
		On(`^tool --version$`, runner.Response{Do: func(call runner.Call) error {
			for _, kv := range call.Env {
				if strings.HasPrefix(kv, "PATH=") && strings.Contains(kv, filepath.Join(f.installDir(), "bin")) {
					return nil
				}
			}
			return os.ErrNotExist
		}})
	return f
}

func (f *fixture) config(t *testing.T, extra []config.Parameter, values map[string]interface{}) *config.EasyConfig {
	t.Helper()
	ec, err := config.New(extra...)
	require.NoError(t, err)
	sum, err := file.FileSHA256(filepath.Join(f.settings.SourcePath[0], "tool-1.0.tar.gz"))
	require.NoError(t, err)
	ec.MustSet(config.ParamName, "tool")
	ec.MustSet(config.ParamVersion, "1.0")
	ec.MustSet(config.ParamDescription, "A tool")
	ec.MustSet(config.ParamSources, []interface{}{"%(name)s-%(version)s.tar.gz"})
	ec.MustSet(config.ParamChecksums, []interface{}{"sha256:" + sum})
	for k, v := range values {
		require.NoError(t, ec.Set(k, v))
	}
	return ec
}

func (f *fixture) driver(t *testing.T, b EasyBlock, ec *config.EasyConfig) *Driver {
	t.Helper()
	d, err := NewDriver(b, ec, f.settings, Options{Env: f.env, Runner: f.rec, Log: f.log})
	require.NoError(t, err)
	return d
}

func TestNewDriver_MissingMandatoryParameter(t *testing.T) {
	f := newFixture(t)
	extra := []config.Parameter{{Name: "mandatory_param", Description: "must be given", Category: config.Mandatory}}
	ec := f.config(t, extra, nil)

	_, err := NewDriver(&toolBlock{extra: extra}, ec, f.settings, Options{Env: f.env, Runner: f.rec, Log: f.log})
	require.Error(t, err)
	var ce *eberr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "mandatory_param", ce.Param)
	assert.Empty(t, f.rec.Calls)

	require.NoError(t, ec.Set("mandatory_param", "given"))
	_, err = NewDriver(&toolBlock{extra: extra}, ec, f.settings, Options{Env: f.env, Runner: f.rec, Log: f.log})
	assert.NoError(t, err)
}

func TestNewDriver_UndeclaredExtraOption(t *testing.T) {
	f := newFixture(t)
	extra := []config.Parameter{{Name: "with_x", Default: false, Category: config.Custom}}
	_, err := NewDriver(&toolBlock{extra: extra}, f.config(t, nil, nil), f.settings, Options{Env: f.env, Runner: f.rec, Log: f.log})
	assert.True(t, eberr.IsConfig(err))
}

func TestRun_InstallsAndWritesModule(t *testing.T) {
	f := newFixture(t)
	b := &toolBlock{}
	d := f.driver(t, b, f.config(t, nil, map[string]interface{}{
		config.ParamSanityCheckCommands: []interface{}{"tool --version"},
		config.ParamModExtraVars:        map[string]interface{}{"TOOL_HOME": "%(installdir)s"},
	}))

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []step.Name{step.Fetch, step.Extract, step.Patch, step.Prepare, step.Configure, step.Build,
		step.Test, step.Install, step.SanityCheck, step.Cleanup, step.Module}, report.Executed())
	assert.Equal(t, []step.Name{step.PostInstall}, report.Skipped())

	assert.Equal(t, []string{
		"./configure --prefix=" + f.installDir(),
		"make -j 4",
		"make install",
		"tool --version",
	}, f.rec.Commands())
	assert.Equal(t, filepath.Join(f.settings.BuildPath, "tool", "1.0", "tool-1.0"), f.rec.Calls[0].Dir)

	assert.Empty(t, b.configuredEnv, "environment changes must not leak across steps")
	_, leaked := f.env.Lookup("TOOL_CONFIGURED")
	assert.False(t, leaked)
	assert.NoDirExists(t, filepath.Join(f.settings.BuildPath, "tool", "1.0"))

	text, err := os.ReadFile(d.ModulePath())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(text), `prepend_path("PATH", pathJoin(root, "bin"))`))
	assert.Contains(t, string(text), `setenv("TOOL_HOME", "`+f.installDir()+`")`)
	assert.Contains(t, string(text), `prepend_path("LD_LIBRARY_PATH", pathJoin(root, "lib"))`)
}

func TestSanityCheckOnly_MatchesInlineResult(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, &toolBlock{}, f.config(t, nil, map[string]interface{}{
		config.ParamSanityCheckCommands: []interface{}{"tool --version"},
		config.ParamEnhanceSanityCheck:  true,
	}))
	_, err := d.Run(context.Background())
	require.NoError(t, err)

	inline, ok := d.LastSanity()
	require.True(t, ok)
	assert.True(t, inline.Success, inline.Reasons)

	again, err := d.SanityCheckOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, inline, again)

	require.NoError(t, os.Remove(filepath.Join(f.installDir(), "bin", "tool")))
	broken, err := d.SanityCheckOnly(context.Background())
	require.NoError(t, err)
	assert.False(t, broken.Success)
	assert.Contains(t, strings.Join(broken.Reasons, "\n"), "bin/tool")
}

func TestSanityCheckOnly_NeedsModuleFile(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, &toolBlock{}, f.config(t, nil, nil))
	_, err := d.SanityCheckOnly(context.Background())
	assert.Error(t, err)
}

func TestRun_BuildFailureStopsBeforeInstall(t *testing.T) {
	f := newFixture(t)
	f.rec = runner.NewRecorder().On(`^make -j`, runner.Response{ExitCode: 1, Stderr: "foo.c:1: error\n"})
	d := f.driver(t, &toolBlock{}, f.config(t, nil, nil))

	report, err := d.Run(context.Background())
	require.Error(t, err)
	ce, ok := eberr.AsCommand(err)
	require.True(t, ok)
	assert.Equal(t, 1, ce.ExitCode)
	assert.Equal(t, "make -j 4", ce.Cmd)
	se, ok := eberr.AsStep(err)
	require.True(t, ok)
	assert.Equal(t, "build", se.Step)

	assert.NotContains(t, f.rec.Commands(), "make install")
	assert.Equal(t, step.Build, report.Failed().Name)
	assert.NoFileExists(t, d.ModulePath())
}

func TestRun_IgnoredTestFailure(t *testing.T) {
	f := newFixture(t)
	f.rec.On(`^make check$`, runner.Response{ExitCode: 2, Stdout: "FAIL: t1\n"})
	d := f.driver(t, &toolBlock{}, f.config(t, nil, map[string]interface{}{
		config.ParamRunTest:           "make check",
		config.ParamIgnoreTestFailure: true,
	}))
	report, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Warnings(), 1)
	assert.Contains(t, f.rec.Commands(), "make install")
}

func TestRun_FailedTest(t *testing.T) {
	f := newFixture(t)
	f.rec.On(`^make check$`, runner.Response{ExitCode: 2})
	d := f.driver(t, &toolBlock{}, f.config(t, nil, map[string]interface{}{config.ParamRunTest: "make check"}))
	_, err := d.Run(context.Background())
	se, ok := eberr.AsStep(err)
	require.True(t, ok)
	assert.Equal(t, "test", se.Step)
}

func TestRun_LoadsDependencyModules(t *testing.T) {
	f := newFixture(t)
	zlibRoot := t.TempDir()
	gen, err := modenv.NewGenerator(f.settings.ModuleSyntax)
	require.NoError(t, err)
	_, err = modenv.NewWriter(f.settings.ModulePath, gen).Render(
		modenv.Meta{Name: "zlib", Version: "1.3", Description: "zlib", InstallDir: zlibRoot}, nil)
	require.NoError(t, err)

	b := &toolBlock{}
	d := f.driver(t, b, f.config(t, nil, map[string]interface{}{
		config.ParamDependencies: []interface{}{"zlib/1.3"},
	}))
	_, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, zlibRoot, b.zlibRoot)
	_, leaked := f.env.Lookup("EBROOTZLIB")
	assert.False(t, leaked)

	text, err := os.ReadFile(d.ModulePath())
	require.NoError(t, err)
	assert.Contains(t, string(text), `load("zlib/1.3")`)
}

func TestRun_MissingDependency(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, &toolBlock{}, f.config(t, nil, map[string]interface{}{
		config.ParamBuildDependencies: []interface{}{[]interface{}{"hwloc", "2.9.1"}},
	}))
	_, err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, eberr.IsDependency(err))
	assert.Empty(t, f.rec.Commands())
}

func TestRun_StopAndSkip(t *testing.T) {
	f := newFixture(t)
	f.settings.SkipSteps = []string{"configure"}
	d, err := NewDriver(&toolBlock{}, f.config(t, nil, nil), f.settings,
		Options{Env: f.env, Runner: f.rec, Log: f.log, StopAt: step.Build})
	require.NoError(t, err)
	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Stopped)
	assert.Equal(t, []string{"make -j 4"}, f.rec.Commands())
}

func TestRun_ChecksumMismatch(t *testing.T) {
	f := newFixture(t)
	ec := f.config(t, nil, nil)
	require.NoError(t, ec.Set(config.ParamChecksums, []interface{}{strings.Repeat("0", 64)}))
	_, err := f.driver(t, &toolBlock{}, ec).Run(context.Background())
	se, ok := eberr.AsStep(err)
	require.True(t, ok)
	assert.Equal(t, "fetch", se.Step)
}

func TestRun_UnsupportedArchiveFormat(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.settings.SourcePath[0], "tool-1.0.7z"), []byte("7z"), 0o644))
	ec := f.config(t, nil, map[string]interface{}{
		config.ParamSources:   []interface{}{"%(name)s-%(version)s.7z"},
		config.ParamChecksums: []interface{}{},
	})
	report, err := f.driver(t, &toolBlock{}, ec).Run(context.Background())
	se, ok := eberr.AsStep(err)
	require.True(t, ok)
	assert.Equal(t, "extract", se.Step)
	assert.True(t, eberr.IsConfig(err))
	assert.NotContains(t, report.Executed(), step.Configure)
	assert.Empty(t, f.rec.Commands())
}

func TestRun_DryRunWithoutSourcePath(t *testing.T) {
	f := newFixture(t)
	ec := f.config(t, nil, map[string]interface{}{config.ParamSources: []interface{}{"missing-1.0.tar.gz"}})
	f.settings.SourcePath = nil
	d, err := NewDriver(&toolBlock{}, ec, f.settings, Options{
		Env: f.env, Runner: f.rec, Log: f.log, DryRun: true, StopAt: step.Extract,
	})
	require.NoError(t, err)
	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []step.Name{step.Fetch, step.Extract}, report.Executed())
	assert.Equal(t, []string{filepath.Join(d.Context().BuildDir(), "missing-1.0.tar.gz")}, d.Context().Sources())
}

func TestContext_ParallelAndChangeDir(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, &toolBlock{}, f.config(t, nil, map[string]interface{}{config.ParamMaxParallel: 2}))
	c := d.Context()
	assert.Equal(t, 2, c.Parallel())

	start := c.WorkDir()
	err := c.ChangeDir("sub", func() error {
		assert.Equal(t, filepath.Join(start, "sub"), c.WorkDir())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, start, c.WorkDir())
}

func TestParseDependencies(t *testing.T) {
	ec, err := config.New()
	require.NoError(t, err)
	ec.MustSet(config.ParamDependencies, []interface{}{"zlib/1.3", []interface{}{"Python", "3.11.5", "-bare"}})
	ec.MustSet(config.ParamBuildDependencies, []interface{}{"CMake"})
	list, err := ParseDependencies(ec)
	require.NoError(t, err)
	assert.Equal(t, []Dep{
		{Name: "CMake", Build: true},
		{Name: "zlib", Version: "1.3"},
		{Name: "Python", Version: "3.11.5-bare"},
	}, list)
	assert.Equal(t, []string{"zlib/1.3", "Python/3.11.5-bare"}, runtimeModules(list))
}
