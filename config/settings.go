package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmbuild/eberr"
)

// ModuleSyntax selects the module file language.
type ModuleSyntax string

const (
	ModuleSyntaxLua ModuleSyntax = "Lua"
	ModuleSyntaxTcl ModuleSyntax = "Tcl"
)

// Settings is the global build configuration shared by all installations of one invocation.
type Settings struct {
	Prefix            string       `yaml:"prefix,omitempty"`
	BuildPath         string       `yaml:"buildpath,omitempty"`
	InstallPath       string       `yaml:"installpath,omitempty"`
	SourcePath        []string     `yaml:"sourcepath,omitempty"`
	ModulePath        string       `yaml:"modulepath,omitempty"`
	ModuleSyntax      ModuleSyntax `yaml:"module_syntax,omitempty"`
	Parallel          int          `yaml:"parallel,omitempty"`
	LogDir            string       `yaml:"logdir,omitempty"`
	SkipSteps         []string     `yaml:"skip_steps,omitempty"`
	Stop              string       `yaml:"stop,omitempty"`
	IgnoreTestFailure bool         `yaml:"ignore_test_failure,omitempty"`
	KeepBuildDir      bool         `yaml:"keep_build_dir,omitempty"`
	TmpDir            string       `yaml:"tmpdir,omitempty"`
}

// LoadSettings reads settings from path, applies environment overrides and defaults, and validates.
// An empty path yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{}
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read settings file '%s'", path)
		}
		if err := yaml.Unmarshal(content, s); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal settings YAML from '%s'", path)
		}
	}
	ApplyEnv(s, os.Getenv)
	SetDefaultSettings(s, DefaultPrefix())
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings for contradictions.
func (s *Settings) Validate() error {
	switch ModuleSyntax(strings.ToLower(string(s.ModuleSyntax))) {
	case "lua":
		s.ModuleSyntax = ModuleSyntaxLua
	case "tcl":
		s.ModuleSyntax = ModuleSyntaxTcl
	default:
		return eberr.NewConfigError("module_syntax", "unsupported module syntax %q (use Lua or Tcl)", s.ModuleSyntax)
	}
	if s.Parallel < 1 {
		return eberr.NewConfigError("parallel", "must be at least 1, got %d", s.Parallel)
	}
	if s.InstallPath == "" || s.BuildPath == "" || s.ModulePath == "" {
		return eberr.NewConfigError("", "buildpath, installpath and modulepath must be set")
	}
	return nil
}

// YAML renders the effective settings.
func (s *Settings) YAML() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal settings")
	}
	return string(out), nil
}
