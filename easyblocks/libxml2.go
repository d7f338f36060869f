package easyblocks

import (
	"context"
	"path/filepath"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/generic"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/sanity"
)

const OptWithPython = "with_python_bindings"

// Libxml2 builds libxml2 with ConfigureMake and, when Python is a dependency, its Python bindings.
type Libxml2 struct {
	generic.ConfigureMake

	withPython bool
	pyVersion  string
}

func init() {
	mustRegister("libxml2", func() easyblock.EasyBlock { return &Libxml2{} })
}

func (b *Libxml2) Name() string { return "libxml2" }

func (b *Libxml2) ExtraOptions() []config.Parameter {
	return []config.Parameter{
		{Name: OptWithPython, Default: true, Description: "Build the Python bindings when Python is a dependency", Category: config.Custom},
	}
}

func (b *Libxml2) Init(c *easyblock.Context) error {
	b.withPython = c.Config.GetBool(OptWithPython)
	return nil
}

// python returns the Python root and major.minor when the bindings are built.
func (b *Libxml2) python(c *easyblock.Context) (string, string, bool) {
	if !b.withPython {
		return "", "", false
	}
	root, ok := c.Deps.Root(generic.PythonDep)
	if !ok {
		return "", "", false
	}
	ver, ok := c.Deps.ShortVersion(generic.PythonDep)
	if !ok {
		return "", "", false
	}
	return root, ver, true
}

func (b *Libxml2) Configure(ctx context.Context, c *easyblock.Context) error {
	root, ver, ok := b.python(c)
	if !ok {
		return b.ConfigureMake.Configure(ctx, c, "--without-python")
	}
	b.pyVersion = ver
	site := filepath.Join(c.InstallDir(), generic.SitePackages(ver))
	return b.ConfigureMake.Configure(ctx, c,
		runner.Arg("--with-python="+root),
		runner.Arg("--with-python-install-dir="+site))
}

func (b *Libxml2) Build(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Build(ctx, c)
}

func (b *Libxml2) Test(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Test(ctx, c)
}

func (b *Libxml2) Install(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Install(ctx, c)
}

func (b *Libxml2) SanityCheckSpec(c *easyblock.Context) (sanity.Spec, error) {
	spec := sanity.Spec{
		Files: []sanity.PathGroup{
			sanity.Group("bin/xmllint"),
			sanity.Group("lib/libxml2.so", "lib/libxml2.dylib"),
			sanity.Group("include/libxml2/libxml/parser.h"),
		},
		Dirs:     []sanity.PathGroup{sanity.Group("include/libxml2")},
		Commands: []string{"xmllint --version"},
	}
	if _, ver, ok := b.python(c); ok {
		spec.Dirs = append(spec.Dirs, sanity.Group(generic.SitePackages(ver)))
		spec.Commands = append(spec.Commands, runner.Line("python", "-c", runner.Arg("import libxml2")))
	}
	return spec, nil
}

// MakeModuleExtra adds the nested header dir, and site-packages when the bindings put anything there.
func (b *Libxml2) MakeModuleExtra(c *easyblock.Context, desc *modenv.Description) error {
	desc.PrependPaths("CPATH", filepath.Join("include", "libxml2"))
	ver := b.pyVersion
	if ver == "" {
		_, v, ok := b.python(c)
		if !ok {
			return nil
		}
		ver = v
	}
	site := generic.SitePackages(ver)
	nonEmpty, err := file.IsNonEmptyDir(filepath.Join(c.InstallDir(), site))
	if err != nil {
		return err
	}
	if nonEmpty {
		desc.PrependPaths("PYTHONPATH", site)
	}
	return nil
}
