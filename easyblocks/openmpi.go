package easyblocks

import (
	"context"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/generic"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/sanity"
)

var (
	openMPIMinVersion = version.Must(version.NewVersion("2.0"))
	openMPIv5         = version.Must(version.NewVersion("5.0"))
)

// openMPIDeps maps optional dependencies to the configure option that points at them.
var openMPIDeps = []struct {
	dep    string
	option string
}{
	{"hwloc", "hwloc"},
	{"UCX", "ucx"},
	{"libfabric", "ofi"},
	{"CUDA", "cuda"},
}

// OpenMPI builds Open MPI with ConfigureMake, pointing configure at whichever of hwloc, UCX,
// libfabric and CUDA are loaded.
type OpenMPI struct {
	generic.ConfigureMake

	version *version.Version
	enabled map[string]string
}

func init() {
	mustRegister("OpenMPI", func() easyblock.EasyBlock { return &OpenMPI{} })
}

func (b *OpenMPI) Name() string { return "OpenMPI" }

func (b *OpenMPI) Init(c *easyblock.Context) error {
	v, err := c.Config.SemVer()
	if err != nil {
		return err
	}
	if v.LessThan(openMPIMinVersion) {
		return eberr.NewConfigError(config.ParamVersion, "OpenMPI %s is not supported, the minimum is %s", v, openMPIMinVersion)
	}
	b.version = v
	return nil
}

// ConfigureFlags are the options added in front of configopts. An option the easyconfig already
// passes for a dependency is left alone.
func (b *OpenMPI) ConfigureFlags(c *easyblock.Context) []string {
	configopts := c.Opt(config.ParamConfigOpts)
	flags := []string{"--enable-shared", "--enable-mpirun-prefix-by-default"}
	b.enabled = make(map[string]string)
	for _, d := range openMPIDeps {
		if strings.Contains(configopts, "--with-"+d.option) || strings.Contains(configopts, "--without-"+d.option) {
			continue
		}
		root, ok := c.Deps.Root(d.dep)
		if !ok {
			continue
		}
		b.enabled[d.dep] = root
		flags = append(flags, runner.Arg("--with-"+d.option+"="+root))
	}
	return flags
}

func (b *OpenMPI) Configure(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Configure(ctx, c, b.ConfigureFlags(c)...)
}

func (b *OpenMPI) Build(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Build(ctx, c)
}

func (b *OpenMPI) Test(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Test(ctx, c)
}

func (b *OpenMPI) Install(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Install(ctx, c)
}

// SanityCheckSpec checks the compiler wrappers, the launchers and libmpi. CUDA support is
// verified through ompi_info when CUDA was enabled.
func (b *OpenMPI) SanityCheckSpec(c *easyblock.Context) (sanity.Spec, error) {
	bins := []string{"mpicc", "mpicxx", "mpifort", "mpirun", "ompi_info", "opal_wrapper"}
	if b.version != nil && b.version.LessThan(openMPIv5) {
		bins = append(bins, "orterun")
	}
	spec := sanity.Spec{
		Dirs:     []sanity.PathGroup{sanity.Group("include")},
		Commands: []string{"ompi_info"},
	}
	for _, bin := range bins {
		spec.Files = append(spec.Files, sanity.Group("bin/"+bin))
	}
	for _, lib := range []string{"libmpi", "libopen-pal"} {
		spec.Files = append(spec.Files, sanity.Group("lib/"+lib+".so", "lib/"+lib+".dylib"))
	}
	spec.Files = append(spec.Files, sanity.Group("include/mpi.h"))

	if b.cudaEnabled(c) {
		spec.Commands = append(spec.Commands,
			"ompi_info --parsable --all | grep -q 'mpi_built_with_cuda_support:value:true'")
	}
	return spec, nil
}

func (b *OpenMPI) cudaEnabled(c *easyblock.Context) bool {
	if b.enabled != nil {
		_, ok := b.enabled["CUDA"]
		return ok
	}
	_, ok := c.Deps.Root("CUDA")
	return ok
}
