package easyblocks

import (
	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
)

// Load reads an easyconfig file, picks its easyblock and checks the recipe against the builtin
// parameters plus the easyblock's extra options.
func Load(path string) (easyblock.EasyBlock, *config.EasyConfig, error) {
	recipe, err := config.NewLoader(path).Load()
	if err != nil {
		return nil, nil, err
	}
	return FromRecipe(recipe, path)
}

// FromRecipe is Load for an already parsed recipe.
func FromRecipe(recipe config.Recipe, path string) (easyblock.EasyBlock, *config.EasyConfig, error) {
	block, err := ForRecipe(recipe)
	if err != nil {
		return nil, nil, err
	}
	var extra []config.Parameter
	if eo, ok := block.(easyblock.ExtraOptioner); ok {
		extra = eo.ExtraOptions()
	}
	cfg, err := config.Build(recipe, path, extra...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "easyconfig %s for easyblock %s", path, block.Name())
	}
	return block, cfg, nil
}

// Params lists the parameters an easyconfig for the named easyblock accepts.
func Params(name string) ([]config.Parameter, error) {
	block, err := Get(name)
	if err != nil {
		return nil, err
	}
	var extra []config.Parameter
	if eo, ok := block.(easyblock.ExtraOptioner); ok {
		extra = eo.ExtraOptions()
	}
	cfg, err := config.New(extra...)
	if err != nil {
		return nil, err
	}
	return cfg.Parameters(), nil
}
