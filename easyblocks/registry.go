// Package easyblocks holds the concrete easyblocks and the registry that picks one for an easyconfig.
package easyblocks

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/eberr"
)

// Factory creates a fresh easyblock for one installation.
type Factory func() easyblock.EasyBlock

var (
	// DefaultRegistry holds the registered easyblock factories, keyed by lower-cased name.
	DefaultRegistry = make(map[string]entry)
	registryMutex   = &sync.RWMutex{}
)

type entry struct {
	name    string
	factory Factory
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Register adds an easyblock factory. Names are matched case-insensitively.
// It returns an error if an easyblock with the same name is already registered.
func Register(name string, factory Factory) error {
	if key(name) == "" || factory == nil {
		return errors.Errorf("easyblock registration needs a name and a factory")
	}
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := DefaultRegistry[key(name)]; exists {
		return errors.Errorf("easyblock with name '%s' already registered", name)
	}
	DefaultRegistry[key(name)] = entry{name: name, factory: factory}
	return nil
}

func mustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(fmt.Sprintf("failed to register easyblock '%s': %v", name, err))
	}
}

// Get returns a new instance of the named easyblock.
func Get(name string) (easyblock.EasyBlock, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	e, exists := DefaultRegistry[key(name)]
	if !exists {
		return nil, eberr.NewConfigError(config.ParamEasyblock, "easyblock '%s' not found in registry", name)
	}
	return e.factory(), nil
}

// Names returns the registered easyblock names, sorted.
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	names := make([]string, 0, len(DefaultRegistry))
	for _, e := range DefaultRegistry {
		names = append(names, e.name)
	}
	sort.Slice(names, func(i, j int) bool { return key(names[i]) < key(names[j]) })
	return names
}

// Select picks the easyblock for software name, unless explicit names one.
func Select(explicit, name string) (easyblock.EasyBlock, error) {
	if explicit != "" {
		return Get(explicit)
	}
	if name == "" {
		return nil, eberr.NewConfigError(config.ParamName, "software name is missing")
	}
	registryMutex.RLock()
	_, ok := DefaultRegistry[key(name)]
	registryMutex.RUnlock()
	if !ok {
		return nil, eberr.NewConfigError(config.ParamEasyblock, "no easyblock for software '%s'; set the easyblock parameter, e.g. ConfigureMake", name)
	}
	return Get(name)
}

// ForConfig picks the easyblock for an easyconfig.
func ForConfig(cfg *config.EasyConfig) (easyblock.EasyBlock, error) {
	return Select(cfg.GetString(config.ParamEasyblock), cfg.Name())
}

// ForRecipe picks the easyblock for a recipe that has not been turned into an easyconfig yet.
func ForRecipe(r config.Recipe) (easyblock.EasyBlock, error) {
	return Select(r.Easyblock(), r.Name())
}
