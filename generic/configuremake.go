// Package generic holds build strategies shared by many easyblocks. A strategy is a plain value
// an easyblock holds and calls from its own step methods; the adapters in this package turn a
// strategy into an easyblock of its own for software that needs nothing more.
package generic

import (
	"context"
	"strconv"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/util"
)

// Option names understood by the ConfigureMake adapter.
const (
	OptConfigureCmd = "configure_cmd"
	OptPrefixOpt    = "prefix_opt"
	OptBuildCmd     = "build_cmd"
	OptInstallCmd   = "install_cmd"
)

// ConfigureMake is the ./configure && make && make install strategy.
type ConfigureMake struct {
	ConfigureCmd string
	PrefixOpt    string
	BuildCmd     string
	InstallCmd   string
}

// ConfigureMakeOptions are the easyconfig options of the ConfigureMake adapter.
func ConfigureMakeOptions() []config.Parameter {
	return []config.Parameter{
		{Name: OptConfigureCmd, Default: "./configure", Description: "Command used to configure", Category: config.Custom},
		{Name: OptPrefixOpt, Default: "--prefix=", Description: "Option the install prefix is passed with", Category: config.Custom},
		{Name: OptBuildCmd, Default: "make", Description: "Command used to build", Category: config.Custom},
		{Name: OptInstallCmd, Default: "make install", Description: "Command used to install", Category: config.Custom},
	}
}

// FromConfig fills empty fields from the easyconfig options, when declared.
func (s *ConfigureMake) FromConfig(cfg *config.EasyConfig) {
	pick := func(dst *string, key string) {
		if *dst == "" && cfg.Declared(key) {
			*dst = cfg.GetString(key)
		}
	}
	pick(&s.ConfigureCmd, OptConfigureCmd)
	pick(&s.PrefixOpt, OptPrefixOpt)
	pick(&s.BuildCmd, OptBuildCmd)
	pick(&s.InstallCmd, OptInstallCmd)
}

// ConfigureCommand is the configure command line with extra options placed before configopts.
func (s *ConfigureMake) ConfigureCommand(c *easyblock.Context, extra ...string) string {
	parts := []string{
		c.Opt(config.ParamPreConfigOpts),
		util.FirstNonEmpty(s.ConfigureCmd, "./configure"),
		runner.Arg(util.FirstNonEmpty(s.PrefixOpt, "--prefix=") + c.InstallDir()),
	}
	parts = append(parts, extra...)
	parts = append(parts, c.Opt(config.ParamConfigOpts))
	return runner.Line(parts...)
}

// Configure runs the configure command.
func (s *ConfigureMake) Configure(ctx context.Context, c *easyblock.Context, extra ...string) error {
	logger.ForStrategy(c.Log, "ConfigureMake").Info("configuring")
	_, err := c.Run(ctx, s.ConfigureCommand(c, extra...))
	return err
}

// BuildCommand is the parallel build command line.
func (s *ConfigureMake) BuildCommand(c *easyblock.Context) string {
	return runner.Line(
		c.Opt(config.ParamPreBuildOpts),
		util.FirstNonEmpty(s.BuildCmd, "make"),
		"-j", strconv.Itoa(c.Parallel()),
		c.Opt(config.ParamBuildOpts),
	)
}

// Build runs the build command.
func (s *ConfigureMake) Build(ctx context.Context, c *easyblock.Context) error {
	_, err := c.Run(ctx, s.BuildCommand(c))
	return err
}

// Test runs the build command with the runtest target, when one is configured.
func (s *ConfigureMake) Test(ctx context.Context, c *easyblock.Context) error {
	target := c.Opt(config.ParamRunTest)
	if target == "" {
		return nil
	}
	_, err := c.Run(ctx, runner.Line(c.Opt(config.ParamPreTestOpts), util.FirstNonEmpty(s.BuildCmd, "make"), target))
	return err
}

// InstallCommand is the install command line.
func (s *ConfigureMake) InstallCommand(c *easyblock.Context) string {
	return runner.Line(c.Opt(config.ParamPreInstallOpts), util.FirstNonEmpty(s.InstallCmd, "make install"), c.Opt(config.ParamInstallOpts))
}

// Install runs the install command.
func (s *ConfigureMake) Install(ctx context.Context, c *easyblock.Context) error {
	_, err := c.Run(ctx, s.InstallCommand(c))
	return err
}

// ConfigureMakeBlock is the ConfigureMake strategy used as an easyblock.
type ConfigureMakeBlock struct {
	ConfigureMake
}

func (b *ConfigureMakeBlock) Name() string { return "ConfigureMake" }

func (b *ConfigureMakeBlock) ExtraOptions() []config.Parameter { return ConfigureMakeOptions() }

func (b *ConfigureMakeBlock) Init(c *easyblock.Context) error {
	b.FromConfig(c.Config)
	return nil
}

func (b *ConfigureMakeBlock) Configure(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Configure(ctx, c)
}

func (b *ConfigureMakeBlock) Build(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Build(ctx, c)
}

func (b *ConfigureMakeBlock) Test(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Test(ctx, c)
}

func (b *ConfigureMakeBlock) Install(ctx context.Context, c *easyblock.Context) error {
	return b.ConfigureMake.Install(ctx, c)
}
