package generic

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/sanity"
)

const (
	OptModuleName = "modulename"
	OptUsePip     = "use_pip"
)

// PythonDep is the dependency name the interpreter is resolved from.
const PythonDep = "Python"

const pythonVersionQuery = `import sys; print("%d.%d" % sys.version_info[:2])`

// PythonPackage installs a Python package into the install prefix.
type PythonPackage struct {
	// Modules are imported by the sanity check; empty means the lowercased software name.
	Modules []string
	UsePip  bool

	python string
	pyVer  string
}

// PythonPackageOptions are the easyconfig options of the PythonPackage adapter.
func PythonPackageOptions() []config.Parameter {
	return []config.Parameter{
		{Name: OptModuleName, Default: "", Description: "Comma separated modules imported by the sanity check", Category: config.Custom},
		{Name: OptUsePip, Default: true, Description: "Install with pip instead of setup.py", Category: config.Custom},
	}
}

// NewPythonPackage returns a PythonPackage configured from cfg.
func NewPythonPackage(cfg *config.EasyConfig) *PythonPackage {
	s := &PythonPackage{UsePip: true}
	if cfg.Declared(OptUsePip) {
		s.UsePip = cfg.GetBool(OptUsePip)
	}
	if cfg.Declared(OptModuleName) {
		for _, m := range strings.Split(cfg.GetString(OptModuleName), ",") {
			if m = strings.TrimSpace(m); m != "" {
				s.Modules = append(s.Modules, m)
			}
		}
	}
	if len(s.Modules) == 0 {
		s.Modules = []string{strings.ToLower(cfg.Name())}
	}
	return s
}

// Python is the interpreter: the one of the Python dependency, else python3 from PATH.
func (s *PythonPackage) Python(c *easyblock.Context) string {
	if s.python != "" {
		return s.python
	}
	if root, ok := c.Deps.Root(PythonDep); ok {
		return filepath.Join(root, "bin", "python")
	}
	return "python3"
}

// PythonVersion is the interpreter's major.minor. It comes from the Python dependency when one
// is loaded, otherwise the interpreter is asked.
func (s *PythonPackage) PythonVersion(ctx context.Context, c *easyblock.Context) (string, error) {
	if s.pyVer != "" {
		return s.pyVer, nil
	}
	if v, ok := c.Deps.ShortVersion(PythonDep); ok {
		s.pyVer = v
		return v, nil
	}
	res, err := c.Run(ctx, runner.Line(runner.Arg(s.Python(c)), "-c", runner.Arg(pythonVersionQuery)), runner.WithQuiet())
	if err != nil {
		return "", eberr.NewDependencyError(PythonDep, "", "cannot determine the Python version: %v", err)
	}
	v := strings.TrimSpace(res.Stdout)
	if v == "" {
		return "", eberr.NewDependencyError(PythonDep, "", "%s printed no version", s.Python(c))
	}
	s.pyVer = v
	return v, nil
}

// SitePackages is the install-relative site-packages dir for version, e.g. lib/python3.11/site-packages.
func SitePackages(version string) string {
	return path.Join("lib", "python"+version, "site-packages")
}

// Prepare pins the interpreter once dependencies are loaded.
func (s *PythonPackage) Prepare(ctx context.Context, c *easyblock.Context) error {
	s.python = s.Python(c)
	logger.ForStrategy(c.Log, "PythonPackage").Infof("using %s", s.python)
	return nil
}

// Build runs setup.py build; pip builds during install.
func (s *PythonPackage) Build(ctx context.Context, c *easyblock.Context) error {
	if s.UsePip {
		return nil
	}
	_, err := c.Run(ctx, runner.Line(c.Opt(config.ParamPreBuildOpts), runner.Arg(s.Python(c)), "setup.py", "build", c.Opt(config.ParamBuildOpts)))
	return err
}

// InstallCommand is the command installing the package into the prefix.
func (s *PythonPackage) InstallCommand(c *easyblock.Context) string {
	prefix := runner.Arg("--prefix=" + c.InstallDir())
	if s.UsePip {
		return runner.Line(c.Opt(config.ParamPreInstallOpts), runner.Arg(s.Python(c)), "-m", "pip", "install",
			prefix, "--no-deps", "--ignore-installed", "--no-build-isolation", c.Opt(config.ParamInstallOpts), ".")
	}
	return runner.Line(c.Opt(config.ParamPreInstallOpts), runner.Arg(s.Python(c)), "setup.py", "install",
		prefix, c.Opt(config.ParamInstallOpts))
}

// Install installs the package, with PYTHONPATH covering the target site-packages.
func (s *PythonPackage) Install(ctx context.Context, c *easyblock.Context) error {
	ver, err := s.PythonVersion(ctx, c)
	if err != nil {
		return err
	}
	c.Env().PrependPath("PYTHONPATH", filepath.Join(c.InstallDir(), SitePackages(ver)))
	_, err = c.Run(ctx, s.InstallCommand(c))
	return err
}

// SanityCheckSpec requires site-packages and imports every module.
func (s *PythonPackage) SanityCheckSpec(c *easyblock.Context) (sanity.Spec, error) {
	ver, err := s.PythonVersion(context.Background(), c)
	if err != nil {
		return sanity.Spec{}, err
	}
	spec := sanity.Spec{Dirs: []sanity.PathGroup{sanity.Group(SitePackages(ver))}}
	for _, m := range s.Modules {
		spec.Commands = append(spec.Commands, runner.Line("python", "-c", runner.Arg("import "+m)))
	}
	return spec, nil
}

// MakeModuleExtra adds site-packages to PYTHONPATH.
func (s *PythonPackage) MakeModuleExtra(c *easyblock.Context, desc *modenv.Description) error {
	ver, err := s.PythonVersion(context.Background(), c)
	if err != nil {
		return err
	}
	desc.PrependPaths("PYTHONPATH", SitePackages(ver))
	return nil
}

// PythonPackageBlock is the PythonPackage strategy used as an easyblock.
type PythonPackageBlock struct {
	*PythonPackage
}

func (b *PythonPackageBlock) Name() string { return "PythonPackage" }

func (b *PythonPackageBlock) ExtraOptions() []config.Parameter { return PythonPackageOptions() }

func (b *PythonPackageBlock) Init(c *easyblock.Context) error {
	b.PythonPackage = NewPythonPackage(c.Config)
	return nil
}

// PathGuesses only looks for scripts; the package itself lives in site-packages.
func (b *PythonPackageBlock) PathGuesses(c *easyblock.Context) []modenv.PathGuess {
	return []modenv.PathGuess{{Variable: "PATH", Fragments: []string{"bin"}}}
}
