// Package deps answers whether a dependency is present in the build environment and, if so,
// where it is installed and which version it is.
//
// Loaded modules publish EBROOT<NAME> and EBVERSION<NAME>. Absence is reported through
// Result.Status, never as an error; Require turns it into a dependency error for callers that
// cannot continue without the dependency.
package deps

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/hashicorp/go-version"

	"github.com/mensylisir/xmbuild/cache"
	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/eberr"
)

// Status is the outcome of a lookup.
type Status int

const (
	// NotFound means no root variable is set for the dependency.
	NotFound Status = iota
	// Found means the dependency is present and satisfies the constraint, if any.
	Found
	// VersionMismatch means the dependency is present but its version is outside the constraint.
	VersionMismatch
	// Invalid means the constraint or the published version could not be parsed.
	Invalid
)

func (s Status) String() string {
	switch s {
	case NotFound:
		return "NotFound"
	case Found:
		return "Found"
	case VersionMismatch:
		return "VersionMismatch"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// Dependency is a resolved installation.
type Dependency struct {
	Name    string
	Root    string
	Version string
}

// Result is the typed outcome of Lookup and LookupConstraint.
type Result struct {
	Dependency
	Status     Status
	Constraint string
	// Reason explains a status other than Found.
	Reason string
}

// Found reports whether the dependency can be used.
func (r Result) Found() bool { return r.Status == Found }

// Source is where lookups read published variables from.
type Source interface {
	Lookup(key string) (string, bool)
}

// generational sources signal modification so cached lookups can be dropped.
type generational interface {
	Generation() uint64
}

// NormalizeName strips non-alphanumeric characters and upper-cases: "Python-bare" -> "PYTHONBARE".
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// RootVar is the variable holding the install root of name.
func RootVar(name string) string { return common.EnvRootPrefix + NormalizeName(name) }

// VersionVar is the variable holding the version of name.
func VersionVar(name string) string { return common.EnvVersionPrefix + NormalizeName(name) }

type entry struct {
	dep   Dependency
	found bool
}

// Resolver performs lookups against a Source, caching them until the source changes.
type Resolver struct {
	src   Source
	cache *cache.Cache[string, entry]

	mu  sync.Mutex
	gen uint64
}

// NewResolver creates a Resolver reading from src.
func NewResolver(src Source) *Resolver {
	r := &Resolver{src: src, cache: cache.NewCache[string, entry]()}
	if g, ok := src.(generational); ok {
		r.gen = g.Generation()
	}
	return r
}

// Invalidate drops every cached lookup.
func (r *Resolver) Invalidate() {
	r.cache.Clean()
}

func (r *Resolver) syncGeneration() {
	g, ok := r.src.(generational)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := g.Generation(); cur != r.gen {
		r.gen = cur
		r.cache.Clean()
	}
}

func (r *Resolver) resolve(name string) entry {
	r.syncGeneration()
	e, _ := r.cache.GetOrLoad(NormalizeName(name), func(string) (entry, error) {
		root, ok := r.src.Lookup(RootVar(name))
		if !ok || root == "" {
			return entry{dep: Dependency{Name: name}}, nil
		}
		ver, _ := r.src.Lookup(VersionVar(name))
		return entry{dep: Dependency{Name: name, Root: root, Version: ver}, found: true}, nil
	})
	e.dep.Name = name
	return e
}

// Lookup resolves name without a version constraint.
func (r *Resolver) Lookup(name string) Result {
	e := r.resolve(name)
	if !e.found {
		return Result{Dependency: e.dep, Status: NotFound, Reason: RootVar(name) + " is not set"}
	}
	return Result{Dependency: e.dep, Status: Found}
}

// LookupConstraint resolves name and checks its version against constraint, e.g. ">= 2.0, < 5".
// An empty constraint behaves like Lookup.
func (r *Resolver) LookupConstraint(name, constraint string) Result {
	res := r.Lookup(name)
	res.Constraint = constraint
	if res.Status != Found || strings.TrimSpace(constraint) == "" {
		return res
	}
	cs, err := version.NewConstraint(constraint)
	if err != nil {
		res.Status, res.Reason = Invalid, "invalid version constraint: "+err.Error()
		return res
	}
	if res.Version == "" {
		res.Status, res.Reason = Invalid, VersionVar(name)+" is not set, cannot check "+constraint
		return res
	}
	v, err := version.NewVersion(res.Version)
	if err != nil {
		res.Status, res.Reason = Invalid, "unparsable version "+res.Version+": "+err.Error()
		return res
	}
	if !cs.Check(v) {
		res.Status, res.Reason = VersionMismatch, "version "+res.Version+" does not satisfy "+constraint
	}
	return res
}

// Root returns the install root of name.
func (r *Resolver) Root(name string) (string, bool) {
	res := r.Lookup(name)
	return res.Root, res.Found()
}

// Version returns the published version of name.
func (r *Resolver) Version(name string) (string, bool) {
	res := r.Lookup(name)
	if !res.Found() || res.Version == "" {
		return "", false
	}
	return res.Version, true
}

// Require resolves name and converts anything but Found into a dependency error.
func (r *Resolver) Require(name, constraint string) (Dependency, error) {
	res := r.LookupConstraint(name, constraint)
	if !res.Found() {
		return res.Dependency, eberr.NewDependencyError(name, constraint, "%s", res.Reason)
	}
	return res.Dependency, nil
}

// ShortVersion returns major.minor of the dependency version, e.g. "3.11" for Python 3.11.4.
func (r *Resolver) ShortVersion(name string) (string, bool) {
	ver, ok := r.Version(name)
	if !ok {
		return "", false
	}
	v, err := version.NewVersion(ver)
	if err != nil {
		return "", false
	}
	seg := v.Segments()
	if len(seg) < 2 {
		return "", false
	}
	return fmt.Sprintf("%d.%d", seg[0], seg[1]), true
}
