// Package easyblock drives one installation through the lifecycle. An easyblock declares what it
// can do by implementing the narrow capability interfaces below; every step it does not provide
// falls back to the framework default, or is skipped when there is none.
package easyblock

import (
	"context"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/patch"
	"github.com/mensylisir/xmbuild/sanity"
)

// EasyBlock is the minimum every easyblock implements.
type EasyBlock interface {
	Name() string
}

// Initializer validates the easyconfig when the installation is set up, before any command runs.
type Initializer interface {
	Init(c *Context) error
}

// ExtraOptioner declares the easyblock specific parameters accepted in an easyconfig.
type ExtraOptioner interface {
	ExtraOptions() []config.Parameter
}

// Fetcher replaces the default source lookup and download.
type Fetcher interface {
	Fetch(ctx context.Context, c *Context) error
}

// Extractor replaces the default unpacking of sources.
type Extractor interface {
	Extract(ctx context.Context, c *Context) error
}

// Patches are the declarative source edits an easyblock needs.
type Patches struct {
	Subs  []patch.Op
	Files []patch.FileOp
}

// Patcher contributes declarative edits, applied after the easyconfig patch files.
type Patcher interface {
	PatchOps(c *Context) (Patches, error)
}

// Preparer runs after the default prepare step has created the directories and loaded dependencies.
type Preparer interface {
	Prepare(ctx context.Context, c *Context) error
}

type Configurer interface {
	Configure(ctx context.Context, c *Context) error
}

type Builder interface {
	Build(ctx context.Context, c *Context) error
}

// Tester replaces the default test step, which runs the runtest parameter as a command.
type Tester interface {
	Test(ctx context.Context, c *Context) error
}

type Installer interface {
	Install(ctx context.Context, c *Context) error
}

type PostInstaller interface {
	PostInstall(ctx context.Context, c *Context) error
}

// SanityChecker provides the easyblock's sanity check, merged over the framework default and
// under the easyconfig's sanity_check_paths and sanity_check_commands.
type SanityChecker interface {
	SanityCheckSpec(c *Context) (sanity.Spec, error)
}

// PathGuesser replaces the conventional locations inspected for module path variables.
type PathGuesser interface {
	PathGuesses(c *Context) []modenv.PathGuess
}

// ModuleExtender adds entries to the generated module.
type ModuleExtender interface {
	MakeModuleExtra(c *Context, desc *modenv.Description) error
}

// Cleaner runs before the default cleanup step.
type Cleaner interface {
	Cleanup(ctx context.Context, c *Context) error
}
