package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/mensylisir/xmbuild/common"
)

// Default values for Settings.
const (
	DefaultPrefixDirName = ".local/xmbuild"
	DefaultModuleSyntax  = ModuleSyntaxLua
	DefaultModulesSubdir = "modules/all"
	DefaultSoftwareDir   = "software"
	DefaultBuildDir      = "build"
	DefaultSourcesDir    = "sources"
	DefaultLogDir        = "logs"

	// EnvPrefix is prepended to upper-cased settings keys when reading overrides from the environment.
	EnvPrefix = "XMBUILD_"
)

// DefaultPrefix is where settings paths live when nothing else is configured.
func DefaultPrefix() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, DefaultPrefixDirName)
	}
	return filepath.Join(common.GetTmpDir(), "prefix")
}

// DefaultSettings returns settings rooted at DefaultPrefix.
func DefaultSettings() *Settings {
	s := &Settings{}
	SetDefaultSettings(s, DefaultPrefix())
	return s
}

// SetDefaultSettings fills unset fields of s, deriving paths from prefix.
func SetDefaultSettings(s *Settings, prefix string) {
	if s.Prefix == "" {
		s.Prefix = prefix
	}
	if s.BuildPath == "" {
		s.BuildPath = filepath.Join(s.Prefix, DefaultBuildDir)
	}
	if s.InstallPath == "" {
		s.InstallPath = filepath.Join(s.Prefix, DefaultSoftwareDir)
	}
	if len(s.SourcePath) == 0 {
		s.SourcePath = []string{filepath.Join(s.Prefix, DefaultSourcesDir)}
	}
	if s.ModulePath == "" {
		s.ModulePath = filepath.Join(s.Prefix, DefaultModulesSubdir)
	}
	if s.ModuleSyntax == "" {
		s.ModuleSyntax = DefaultModuleSyntax
	}
	if s.Parallel <= 0 {
		s.Parallel = runtime.NumCPU()
	}
	if s.LogDir == "" {
		s.LogDir = filepath.Join(s.Prefix, DefaultLogDir)
	}
	if s.TmpDir == "" {
		s.TmpDir = common.GetTmpDir()
	}
}

// ApplyEnv overrides settings from XMBUILD_* environment variables, e.g. XMBUILD_INSTALLPATH.
func ApplyEnv(s *Settings, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	str("PREFIX", &s.Prefix)
	str("BUILDPATH", &s.BuildPath)
	str("INSTALLPATH", &s.InstallPath)
	str("MODULEPATH", &s.ModulePath)
	str("LOGDIR", &s.LogDir)
	str("TMPDIR", &s.TmpDir)
	str("STOP", &s.Stop)
	if v := getenv(EnvPrefix + "SOURCEPATH"); v != "" {
		s.SourcePath = filepath.SplitList(v)
	}
	if v := getenv(EnvPrefix + "MODULE_SYNTAX"); v != "" {
		s.ModuleSyntax = ModuleSyntax(v)
	}
	if v := getenv(EnvPrefix + "PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Parallel = n
		}
	}
	if v := getenv(EnvPrefix + "SKIP_STEPS"); v != "" {
		s.SkipSteps = strings.Split(v, ",")
	}
	if v := getenv(EnvPrefix + "IGNORE_TEST_FAILURE"); v != "" {
		s.IgnoreTestFailure, _ = strconv.ParseBool(v)
	}
	if v := getenv(EnvPrefix + "KEEP_BUILD_DIR"); v != "" {
		s.KeepBuildDir, _ = strconv.ParseBool(v)
	}
}
