package generic

import (
	"context"
	"path/filepath"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/util"
)

const (
	OptBuildType        = "build_type"
	OptSeparateBuildDir = "separate_build_dir"
	OptCMakeCmd         = "cmake_cmd"
)

// CMakeMake configures with CMake and builds and installs with the composed ConfigureMake.
type CMakeMake struct {
	BuildType        string
	SeparateBuildDir bool
	CMakeCmd         string
	Make             ConfigureMake

	objDir string
}

// CMakeMakeOptions are the easyconfig options of the CMakeMake adapter.
func CMakeMakeOptions() []config.Parameter {
	return []config.Parameter{
		{Name: OptBuildType, Default: "Release", Description: "CMAKE_BUILD_TYPE", Category: config.Custom},
		{Name: OptSeparateBuildDir, Default: true, Description: "Build outside the source tree", Category: config.Custom},
		{Name: OptCMakeCmd, Default: "cmake", Description: "CMake command", Category: config.Custom},
		{Name: OptBuildCmd, Default: "make", Description: "Command used to build", Category: config.Custom},
		{Name: OptInstallCmd, Default: "make install", Description: "Command used to install", Category: config.Custom},
	}
}

// NewCMakeMake returns a CMakeMake configured from cfg, using the defaults for undeclared options.
func NewCMakeMake(cfg *config.EasyConfig) *CMakeMake {
	s := &CMakeMake{BuildType: "Release", SeparateBuildDir: true, CMakeCmd: "cmake"}
	if cfg.Declared(OptBuildType) {
		s.BuildType = util.FirstNonEmpty(cfg.GetString(OptBuildType), s.BuildType)
	}
	if cfg.Declared(OptSeparateBuildDir) {
		s.SeparateBuildDir = cfg.GetBool(OptSeparateBuildDir)
	}
	if cfg.Declared(OptCMakeCmd) {
		s.CMakeCmd = util.FirstNonEmpty(cfg.GetString(OptCMakeCmd), s.CMakeCmd)
	}
	s.Make.FromConfig(cfg)
	return s
}

// ObjDir is where the build runs.
func (s *CMakeMake) ObjDir(c *easyblock.Context) string {
	if s.objDir != "" {
		return s.objDir
	}
	if s.SeparateBuildDir {
		return filepath.Join(c.BuildDir(), common.SeparateBuildDirName)
	}
	return c.StartDir()
}

// ConfigureCommand is the cmake command line.
func (s *CMakeMake) ConfigureCommand(c *easyblock.Context, extra ...string) string {
	parts := []string{
		c.Opt(config.ParamPreConfigOpts),
		util.FirstNonEmpty(s.CMakeCmd, "cmake"),
		runner.Arg("-DCMAKE_INSTALL_PREFIX=" + c.InstallDir()),
	}
	if s.BuildType != "" {
		parts = append(parts, runner.Arg("-DCMAKE_BUILD_TYPE="+s.BuildType))
	}
	parts = append(parts, extra...)
	parts = append(parts, c.Opt(config.ParamConfigOpts), runner.Arg(c.StartDir()))
	return runner.Line(parts...)
}

// Configure runs cmake in the object dir.
func (s *CMakeMake) Configure(ctx context.Context, c *easyblock.Context, extra ...string) error {
	dir := s.ObjDir(c)
	if err := file.CreateDir(dir); err != nil {
		return err
	}
	s.objDir = dir
	logger.ForStrategy(c.Log, "CMakeMake").Infof("configuring in %s", dir)
	return c.ChangeDir(dir, func() error {
		_, err := c.Run(ctx, s.ConfigureCommand(c, extra...))
		return err
	})
}

func (s *CMakeMake) Build(ctx context.Context, c *easyblock.Context) error {
	return c.ChangeDir(s.ObjDir(c), func() error { return s.Make.Build(ctx, c) })
}

func (s *CMakeMake) Test(ctx context.Context, c *easyblock.Context) error {
	return c.ChangeDir(s.ObjDir(c), func() error { return s.Make.Test(ctx, c) })
}

func (s *CMakeMake) Install(ctx context.Context, c *easyblock.Context) error {
	return c.ChangeDir(s.ObjDir(c), func() error { return s.Make.Install(ctx, c) })
}

// CMakeMakeBlock is the CMakeMake strategy used as an easyblock.
type CMakeMakeBlock struct {
	*CMakeMake
}

func (b *CMakeMakeBlock) Name() string { return "CMakeMake" }

func (b *CMakeMakeBlock) ExtraOptions() []config.Parameter { return CMakeMakeOptions() }

func (b *CMakeMakeBlock) Init(c *easyblock.Context) error {
	b.CMakeMake = NewCMakeMake(c.Config)
	return nil
}

func (b *CMakeMakeBlock) Configure(ctx context.Context, c *easyblock.Context) error {
	return b.CMakeMake.Configure(ctx, c)
}
