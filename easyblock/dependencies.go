package easyblock

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/modenv"
	"github.com/mensylisir/xmbuild/util"
)

// Dep is an easyconfig dependency entry.
type Dep struct {
	Name    string
	Version string
	// Build marks build-only dependencies, which are not loaded by the generated module.
	Build bool
}

// ModuleName is "name/version", or just the name when no version is pinned.
func (d Dep) ModuleName() string {
	if d.Version == "" {
		return d.Name
	}
	return d.Name + "/" + d.Version
}

// ParseDependencies reads builddependencies then dependencies. An entry is "name/version",
// a bare name, or a [name, version, versionsuffix] list.
func ParseDependencies(cfg *config.EasyConfig) ([]Dep, error) {
	var out []Dep
	for _, key := range []string{config.ParamBuildDependencies, config.ParamDependencies} {
		for _, item := range listOf(cfg.Get(key)) {
			d, err := parseDep(item)
			if err != nil {
				return nil, eberr.NewConfigError(key, "%v", err)
			}
			d.Build = key == config.ParamBuildDependencies
			out = append(out, d)
		}
	}
	return out, nil
}

func parseDep(item interface{}) (Dep, error) {
	switch t := item.(type) {
	case string:
		name, version, _ := strings.Cut(strings.TrimSpace(t), "/")
		if name == "" {
			return Dep{}, errors.Errorf("empty dependency entry")
		}
		return Dep{Name: name, Version: version}, nil
	case []interface{}:
		if len(t) == 0 || len(t) > 3 {
			return Dep{}, errors.Errorf("dependency %v must be [name, version, versionsuffix]", t)
		}
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = fmt.Sprint(p)
		}
		d := Dep{Name: parts[0]}
		if len(parts) > 1 {
			d.Version = parts[1]
		}
		if len(parts) > 2 {
			d.Version += parts[2]
		}
		return d, nil
	default:
		return Dep{}, errors.Errorf("invalid dependency entry %v", item)
	}
}

// listOf normalises a list-valued parameter; a scalar is a one element list.
func listOf(raw interface{}) []interface{} {
	switch t := raw.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []interface{}{t}
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []interface{}{t}
	}
}

// runtimeModules are the module names the generated module loads.
func runtimeModules(list []Dep) []string {
	var out []string
	for _, d := range list {
		if !d.Build {
			out = append(out, d.ModuleName())
		}
	}
	return out
}

// loadDependencies activates every dependency in the environment context: from its module file
// under the module path when there is one, else from EBROOT variables already present.
// Dependencies listed in allow_system_deps may be missing altogether.
func (d *Driver) loadDependencies(c *Context) error {
	list, err := ParseDependencies(c.Config)
	if err != nil {
		return err
	}
	allowed := c.Config.GetStringSlice(config.ParamAllowSystemDeps)
	for _, dep := range list {
		if dep.Version != "" {
			path := d.writer.Path(modenv.Meta{Name: dep.Name, Version: dep.Version})
			if ok, _ := file.PathExists(path); ok {
				mod, err := modenv.ReadFile(d.gen.Syntax(), path)
				if err != nil {
					return eberr.NewDependencyError(dep.Name, dep.Version, "%v", err)
				}
				modenv.Apply(c.Env(), mod.Meta, mod.Desc)
				c.Log.Infof("loaded dependency %s from %s", dep.ModuleName(), path)
				continue
			}
		}
		res := c.Deps.Lookup(dep.Name)
		if res.Found() && (dep.Version == "" || res.Version == dep.Version) {
			c.Log.Infof("dependency %s provided by environment (%s)", dep.ModuleName(), res.Root)
			continue
		}
		if util.ContainsString(allowed, dep.Name) {
			c.Log.Warnf("dependency %s not available, relying on the system", dep.ModuleName())
			continue
		}
		if res.Found() {
			return eberr.NewDependencyError(dep.Name, dep.Version, "found version %s instead", res.Version)
		}
		return eberr.NewDependencyError(dep.Name, dep.Version, "no module file under %s and %s", d.writer.Dir, res.Reason)
	}
	return nil
}
