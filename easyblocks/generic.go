package easyblocks

import (
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/generic"
)

func init() {
	mustRegister("ConfigureMake", func() easyblock.EasyBlock { return &generic.ConfigureMakeBlock{} })
	mustRegister("CMakeMake", func() easyblock.EasyBlock { return &generic.CMakeMakeBlock{} })
	mustRegister("PythonPackage", func() easyblock.EasyBlock { return &generic.PythonPackageBlock{} })
	mustRegister("Tarball", func() easyblock.EasyBlock { return &generic.TarballBlock{} })
}
