package generic

import (
	"context"

	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/logger"
)

// Tarball installs by copying the unpacked source tree into the install dir.
type Tarball struct{}

func (s *Tarball) Install(ctx context.Context, c *easyblock.Context) error {
	logger.ForStrategy(c.Log, "Tarball").Infof("copying %s to %s", c.StartDir(), c.InstallDir())
	if err := ctx.Err(); err != nil {
		return err
	}
	return file.CopyDir(c.StartDir(), c.InstallDir())
}

// TarballBlock is the Tarball strategy used as an easyblock.
type TarballBlock struct {
	Tarball
}

func (b *TarballBlock) Name() string { return "Tarball" }
