package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmbuild/eberr"
)

const sampleRecipe = `
name: OpenMPI
version: 4.1.5
homepage: https://www.open-mpi.org/
description: The Open MPI Project
sources: ["%(namelower)s-%(version)s.tar.bz2"]
source_urls:
  - https://download.open-mpi.org/release/open-mpi/v%(version_major_minor)s
configopts: --enable-shared
dependencies:
  - hwloc
sanity_check_paths:
  files: [bin/mpicc]
  dirs: [include]
modextravars:
  OMPI_MCA_btl: ^openib
`

func writeRecipe(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_LoadAndBuild(t *testing.T) {
	path := writeRecipe(t, sampleRecipe)
	recipe, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "OpenMPI", recipe.Name())
	assert.Equal(t, "", recipe.Easyblock())

	ec, err := Build(recipe, path)
	require.NoError(t, err)
	assert.Equal(t, path, ec.Path)
	assert.Equal(t, "OpenMPI", ec.Name())
	assert.Equal(t, "4.1.5", ec.Version())
	assert.Equal(t, []string{"openmpi-4.1.5.tar.bz2"}, ec.GetStringSlice(ParamSources))
	assert.Equal(t, []string{"https://download.open-mpi.org/release/open-mpi/v4.1"}, ec.GetStringSlice(ParamSourceURLs))
	assert.Equal(t, map[string]string{"OMPI_MCA_btl": "^openib"}, ec.GetStringMap(ParamModExtraVars))
	assert.Equal(t, []string{"bin/mpicc"}, ec.GetStringSliceMap(ParamSanityCheckPaths)["files"])
	assert.True(t, ec.GetBool(ParamCleanupBuildDir), "default applies")
	assert.False(t, ec.IsSet(ParamCleanupBuildDir))
}

func TestParseRecipe_FloatVersionKeepsLiteral(t *testing.T) {
	recipe, err := ParseRecipe([]byte("name: foo\nversion: 1.10\n"), "inline")
	require.NoError(t, err)
	assert.Equal(t, "1.10", recipe["version"])
}

func TestParseRecipe_Rejects(t *testing.T) {
	_, err := ParseRecipe([]byte("  \n"), "empty")
	assert.True(t, eberr.IsConfig(err))

	_, err = ParseRecipe([]byte("- a\n- b\n"), "list")
	assert.True(t, eberr.IsConfig(err))

	_, err = ParseRecipe([]byte("name: [unclosed\n"), "broken")
	assert.True(t, eberr.IsConfig(err))
}

func TestBuild_UnknownParameterRejected(t *testing.T) {
	recipe := Recipe{"name": "Boost", "version": "1.83.0", "boost_mpi": true}
	_, err := Build(recipe, "")
	require.Error(t, err)
	assert.True(t, eberr.IsConfig(err))
	assert.Contains(t, err.Error(), "boost_mpi")

	ec, err := Build(recipe, "", Parameter{Name: "boost_mpi", Default: false, Description: "Build Boost.MPI", Category: Custom})
	require.NoError(t, err)
	assert.True(t, ec.GetBool("boost_mpi"))
}

func TestBuild_MissingMandatory(t *testing.T) {
	_, err := Build(Recipe{"name": "zlib"}, "")
	require.Error(t, err)
	var ce *eberr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ParamVersion, ce.Param)

	extra := Parameter{Name: "mpi_flavor", Category: Mandatory, Description: "MPI flavour"}
	_, err = Build(Recipe{"name": "x", "version": "1"}, "", extra)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "mpi_flavor", ce.Param)
}

func TestNew_ExtraCannotShadowBuiltin(t *testing.T) {
	_, err := New(Parameter{Name: ParamConfigOpts, Category: Custom})
	assert.True(t, eberr.IsConfig(err))
}

func TestEasyConfig_SetAndAppend(t *testing.T) {
	ec, err := New()
	require.NoError(t, err)

	require.NoError(t, ec.Set(ParamBuildOpts, "CC=gcc"))
	require.NoError(t, ec.Append(ParamBuildOpts, "V=1"))
	assert.Equal(t, "CC=gcc V=1", ec.GetString(ParamBuildOpts))

	require.NoError(t, ec.Append(ParamConfigOpts, "--with-x"))
	assert.Equal(t, "--with-x", ec.GetString(ParamConfigOpts))

	require.NoError(t, ec.Append(ParamPatches, "fix.patch"))
	require.NoError(t, ec.Append(ParamPatches, []interface{}{"other.patch"}))
	assert.Equal(t, []string{"fix.patch", "other.patch"}, ec.GetStringSlice(ParamPatches))

	err = ec.Set(ParamEnhanceSanityCheck, []interface{}{"x"})
	assert.True(t, eberr.IsConfig(err))
	err = ec.Set("no_such_key", 1)
	assert.True(t, eberr.IsConfig(err))
	err = ec.Append(ParamBuildOpts, 3)
	assert.True(t, eberr.IsConfig(err))
}

func TestEasyConfig_TypedGetters(t *testing.T) {
	ec, err := New()
	require.NoError(t, err)
	_, ok := ec.GetInt(ParamParallel)
	assert.False(t, ok)
	ec.MustSet(ParamParallel, 8)
	n, ok := ec.GetInt(ParamParallel)
	assert.True(t, ok)
	assert.Equal(t, 8, n)
	ec.MustSet(ParamMaxParallel, "4")
	n, ok = ec.GetInt(ParamMaxParallel)
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	ec.MustSet(ParamIgnoreTestFailure, "true")
	assert.True(t, ec.GetBool(ParamIgnoreTestFailure))
	assert.True(t, ec.Has(ParamParallel))
}

func TestEasyConfig_ResolveTemplates(t *testing.T) {
	ec, err := Build(Recipe{"name": "Python", "version": "3.11.4", "versionsuffix": "-bare"}, "")
	require.NoError(t, err)
	ec.SetTemplate("installdir", "/sw/Python/3.11.4")

	got, err := ec.Resolve("%(installdir)s/lib/python%(version_major_minor)s")
	require.NoError(t, err)
	assert.Equal(t, "/sw/Python/3.11.4/lib/python3.11", got)
	assert.Equal(t, "3.11.4-bare", ec.ModuleVersion())

	_, err = ec.Resolve("%(bogus)s")
	assert.Error(t, err)
}

func TestEasyConfig_ResolveIntVersion(t *testing.T) {
	r, err := ParseRecipe([]byte("name: foo\nversion: 2\nsources: ['%(name)s-%(version)s.tar.gz']\n"), "foo-2.eb.yaml")
	require.NoError(t, err)
	ec, err := Build(r, "foo-2.eb.yaml")
	require.NoError(t, err)

	assert.Equal(t, "2", ec.Version())
	assert.Equal(t, []string{"foo-2.tar.gz"}, ec.GetStringSlice(ParamSources))
	vals := ec.TemplateValues()
	assert.Equal(t, "2", vals["version_major"])
	assert.Equal(t, "2", vals["version_major_minor"])
}

func TestEasyConfig_ValidateRejectsBadTemplate(t *testing.T) {
	_, err := Build(Recipe{"name": "x", "version": "1", "configopts": "--prefix=%(nope)s"}, "")
	require.Error(t, err)
	var ce *eberr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ParamConfigOpts, ce.Param)
}

func TestEasyConfig_SemVer(t *testing.T) {
	ec, err := Build(Recipe{"name": "x", "version": "2.0.1"}, "")
	require.NoError(t, err)
	v, err := ec.SemVer()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, v.Segments())

	ec.MustSet(ParamVersion, "not-a-version!")
	_, err = ec.SemVer()
	assert.True(t, eberr.IsConfig(err))
}

func TestEasyConfig_Parameters(t *testing.T) {
	ec, err := New(Parameter{Name: "only_headers", Default: false, Category: Custom})
	require.NoError(t, err)
	params := ec.Parameters()
	require.NotEmpty(t, params)
	assert.Equal(t, Builtin, params[0].Category)
	last := params[len(params)-1]
	assert.Equal(t, Mandatory, last.Category)
	var found bool
	for _, p := range params {
		if p.Name == "only_headers" {
			found = true
			assert.Equal(t, "CUSTOM", p.Category.String())
		}
	}
	assert.True(t, found)
}

func TestSettings_DefaultsAndEnv(t *testing.T) {
	s := &Settings{ModuleSyntax: "tcl"}
	ApplyEnv(s, func(k string) string {
		return map[string]string{
			EnvPrefix + "INSTALLPATH": "/opt/sw",
			EnvPrefix + "PARALLEL":    "3",
			EnvPrefix + "SKIP_STEPS":  "test,cleanup",
		}[k]
	})
	SetDefaultSettings(s, "/prefix")
	require.NoError(t, s.Validate())

	assert.Equal(t, "/opt/sw", s.InstallPath)
	assert.Equal(t, "/prefix/build", s.BuildPath)
	assert.Equal(t, []string{"/prefix/sources"}, s.SourcePath)
	assert.Equal(t, "/prefix/modules/all", s.ModulePath)
	assert.Equal(t, ModuleSyntaxTcl, s.ModuleSyntax)
	assert.Equal(t, 3, s.Parallel)
	assert.Equal(t, []string{"test", "cleanup"}, s.SkipSteps)
}

func TestSettings_ValidateRejectsSyntax(t *testing.T) {
	s := &Settings{ModuleSyntax: "csh"}
	SetDefaultSettings(s, "/prefix")
	err := s.Validate()
	assert.True(t, eberr.IsConfig(err))
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefix: /p\nmodule_syntax: Lua\nkeep_build_dir: true\n"), 0644))
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.True(t, s.KeepBuildDir)
	assert.Equal(t, ModuleSyntaxLua, s.ModuleSyntax)
	out, err := s.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "keep_build_dir: true")
}
