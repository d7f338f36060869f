package easyblocks

import (
	"context"
	"path/filepath"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/generic"
)

// Mpi4py installs mpi4py as a Python package built against the MPI dependency.
type Mpi4py struct {
	*generic.PythonPackage

	mpi string
}

func init() {
	mustRegister("mpi4py", func() easyblock.EasyBlock { return &Mpi4py{} })
}

func (b *Mpi4py) Name() string { return "mpi4py" }

func (b *Mpi4py) ExtraOptions() []config.Parameter { return generic.PythonPackageOptions() }

func (b *Mpi4py) Init(c *easyblock.Context) error {
	mpi, err := mpiDependency(c.Config)
	if err != nil {
		return err
	}
	if mpi == "" {
		return eberr.NewDependencyError("MPI", "", "mpi4py needs an MPI implementation in its dependencies")
	}
	b.mpi = mpi
	b.PythonPackage = generic.NewPythonPackage(c.Config)
	if !c.Config.IsSet(generic.OptModuleName) {
		b.Modules = []string{"mpi4py", "mpi4py.MPI"}
	}
	return nil
}

// Prepare requires the MPI dependency to be loaded and points the build at its compiler wrapper.
func (b *Mpi4py) Prepare(ctx context.Context, c *easyblock.Context) error {
	dep, err := c.Deps.Require(b.mpi, "")
	if err != nil {
		return err
	}
	c.Env().Set("MPICC", filepath.Join(dep.Root, "bin", "mpicc"))
	return b.PythonPackage.Prepare(ctx, c)
}
