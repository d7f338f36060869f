package easyblocks

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/patch"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/sanity"
	"github.com/mensylisir/xmbuild/util"
)

const (
	OptBoostMPI    = "boost_mpi"
	OptOnlyHeaders = "only_headers"
	OptToolset     = "toolset"
)

const boostUserConfig = "user-config.jam"

const boostUserConfigTmpl = `using mpi : {{ .Wrapper }} ;
`

// MPIFamilies are the dependency names accepted as an MPI implementation.
var MPIFamilies = []string{"OpenMPI", "MPICH", "MVAPICH2", "impi"}

// Boost builds Boost with bootstrap.sh and b2, optionally with Boost.MPI or as headers only.
type Boost struct {
	MPI         bool
	OnlyHeaders bool
	Toolset     string

	mpi     string
	mpiRoot string
}

func init() {
	mustRegister("Boost", func() easyblock.EasyBlock { return &Boost{} })
}

func (b *Boost) Name() string { return "Boost" }

func (b *Boost) ExtraOptions() []config.Parameter {
	return []config.Parameter{
		{Name: OptBoostMPI, Default: false, Description: "Build Boost.MPI", Category: config.Custom},
		{Name: OptOnlyHeaders, Default: false, Description: "Install only the header files", Category: config.Custom},
		{Name: OptToolset, Default: "gcc", Description: "b2 toolset", Category: config.Custom},
	}
}

// mpiDependency returns the first MPI implementation among the easyconfig dependencies.
func mpiDependency(cfg *config.EasyConfig) (string, error) {
	list, err := easyblock.ParseDependencies(cfg)
	if err != nil {
		return "", err
	}
	for _, d := range list {
		for _, fam := range MPIFamilies {
			if key(d.Name) == key(fam) {
				return d.Name, nil
			}
		}
	}
	return "", nil
}

func (b *Boost) Init(c *easyblock.Context) error {
	b.MPI = c.Config.GetBool(OptBoostMPI)
	b.OnlyHeaders = c.Config.GetBool(OptOnlyHeaders)
	b.Toolset = c.Config.GetString(OptToolset)
	if b.Toolset == "" {
		b.Toolset = "gcc"
	}
	if b.MPI && b.OnlyHeaders {
		return eberr.NewConfigError(OptBoostMPI, "%s and %s cannot both be set", OptBoostMPI, OptOnlyHeaders)
	}
	if !b.MPI {
		return nil
	}
	mpi, err := mpiDependency(c.Config)
	if err != nil {
		return err
	}
	if mpi == "" {
		return eberr.NewDependencyError("MPI", "", "%s is set but no MPI implementation is listed in the dependencies", OptBoostMPI)
	}
	b.mpi = mpi
	return nil
}

// Prepare checks the MPI dependency was actually loaded and records its root.
func (b *Boost) Prepare(ctx context.Context, c *easyblock.Context) error {
	if !b.MPI {
		return nil
	}
	dep, err := c.Deps.Require(b.mpi, "")
	if err != nil {
		return err
	}
	b.mpiRoot = dep.Root
	return nil
}

// writeUserConfig writes the user-config.jam b2 reads for the MPI wrapper.
func (b *Boost) writeUserConfig(c *easyblock.Context) error {
	if b.mpiRoot == "" {
		return eberr.NewDependencyError(b.mpi, "", "root unknown when writing %s", boostUserConfig)
	}
	content, err := util.RenderString(boostUserConfigTmpl, util.Data{"Wrapper": filepath.Join(b.mpiRoot, "bin", "mpicxx")})
	if err != nil {
		return err
	}
	return patch.ApplyFileOps(c.StartDir(), patch.FileOp{Kind: patch.Write, Dst: boostUserConfig, Content: content})
}

func (b *Boost) Configure(ctx context.Context, c *easyblock.Context) error {
	if b.OnlyHeaders {
		logger.ForStrategy(c.Log, "Boost").Info("headers only, nothing to configure")
		return nil
	}
	if b.MPI {
		if err := b.writeUserConfig(c); err != nil {
			return err
		}
	}
	cmd := runner.Line(
		c.Opt(config.ParamPreConfigOpts),
		"./bootstrap.sh",
		runner.Arg("--with-toolset="+b.Toolset),
		runner.Arg("--prefix="+c.InstallDir()),
		"--without-libraries=python",
		c.Opt(config.ParamConfigOpts),
	)
	_, err := c.Run(ctx, cmd)
	return err
}

// b2 is the b2 command line shared by build and install.
func (b *Boost) b2(c *easyblock.Context, target string, extra ...string) string {
	parts := []string{
		"./b2",
		"-j", strconv.Itoa(c.Parallel()),
		runner.Arg("toolset=" + b.Toolset),
		"variant=release", "link=shared", "runtime-link=shared", "threading=multi",
	}
	if b.MPI {
		parts = append(parts, runner.Arg("--user-config="+filepath.Join(c.StartDir(), boostUserConfig)))
	}
	parts = append(parts, extra...)
	parts = append(parts, target)
	return runner.Line(parts...)
}

func (b *Boost) Build(ctx context.Context, c *easyblock.Context) error {
	if b.OnlyHeaders {
		return nil
	}
	_, err := c.Run(ctx, runner.Line(c.Opt(config.ParamPreBuildOpts), b.b2(c, "stage", c.Opt(config.ParamBuildOpts))))
	return err
}

func (b *Boost) Install(ctx context.Context, c *easyblock.Context) error {
	if b.OnlyHeaders {
		return file.CopyDir(filepath.Join(c.StartDir(), "boost"), filepath.Join(c.InstallDir(), "include", "boost"))
	}
	cmd := runner.Line(c.Opt(config.ParamPreInstallOpts),
		b.b2(c, "install", runner.Arg("--prefix="+c.InstallDir()), c.Opt(config.ParamInstallOpts)))
	_, err := c.Run(ctx, cmd)
	return err
}

func (b *Boost) SanityCheckSpec(c *easyblock.Context) (sanity.Spec, error) {
	spec := sanity.Spec{
		Files: []sanity.PathGroup{sanity.Group("include/boost/version.hpp")},
		Dirs:  []sanity.PathGroup{sanity.Group("include/boost")},
	}
	if b.OnlyHeaders {
		return spec, nil
	}
	libs := []string{"libboost_system", "libboost_thread", "libboost_filesystem"}
	if b.MPI {
		libs = append(libs, "libboost_mpi")
	}
	for _, lib := range libs {
		spec.Files = append(spec.Files, sanity.Group("lib/"+lib+".so", "lib/"+lib+".dylib"))
	}
	return spec, nil
}

func (b *Boost) MakeModuleExtra(c *easyblock.Context, desc *modenv.Description) error {
	desc.SetEnv("BOOST_ROOT", c.InstallDir())
	return nil
}
