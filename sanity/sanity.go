// Package sanity verifies an installation: expected files and non-empty directories under the
// install root, and commands that must succeed once the installation is activated.
package sanity

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/runner"
	"github.com/mensylisir/xmbuild/util"
)

// outputTail is how many lines of command output a failure reason keeps.
const outputTail = 5

// PathGroup is a set of alternative paths relative to the install root; any one satisfies it.
type PathGroup []string

// Group is shorthand for a PathGroup literal.
func Group(alternatives ...string) PathGroup { return PathGroup(alternatives) }

func (g PathGroup) String() string {
	if len(g) == 1 {
		return g[0]
	}
	return "(" + strings.Join(g, " | ") + ")"
}

func (g PathGroup) key() string { return strings.Join(g, "\x00") }

// Spec lists what a successful installation must provide.
type Spec struct {
	Files    []PathGroup
	Dirs     []PathGroup
	Commands []string
}

// Empty reports whether the spec checks nothing.
func (s Spec) Empty() bool {
	return len(s.Files) == 0 && len(s.Dirs) == 0 && len(s.Commands) == 0
}

// DefaultSpec is used when neither the easyblock nor the easyconfig say otherwise.
func DefaultSpec() Spec {
	return Spec{
		Dirs: []PathGroup{Group("bin"), Group("lib", "lib64")},
	}
}

// Merge combines defaults with custom entries. Non-empty custom paths or commands replace the
// defaults, unless enhance is set, in which case they are added after them without duplicates.
func Merge(defaults, custom Spec, enhance bool) Spec {
	hasPaths := len(custom.Files) > 0 || len(custom.Dirs) > 0
	out := Spec{
		Files: defaults.Files,
		Dirs:  defaults.Dirs,
	}
	if hasPaths {
		if enhance {
			out.Files = mergeGroups(defaults.Files, custom.Files)
			out.Dirs = mergeGroups(defaults.Dirs, custom.Dirs)
		} else {
			out.Files, out.Dirs = custom.Files, custom.Dirs
		}
	}
	out.Commands = defaults.Commands
	if len(custom.Commands) > 0 {
		if enhance {
			out.Commands = util.UniqueStrings(append(append([]string{}, defaults.Commands...), custom.Commands...))
		} else {
			out.Commands = custom.Commands
		}
	}
	return out
}

func mergeGroups(a, b []PathGroup) []PathGroup {
	seen := make(map[string]bool, len(a)+len(b))
	var out []PathGroup
	for _, g := range append(append([]PathGroup{}, a...), b...) {
		if seen[g.key()] {
			continue
		}
		seen[g.key()] = true
		out = append(out, g)
	}
	return out
}

// ParsePaths converts the sanity_check_paths value of an easyconfig. It holds "files" and
// "dirs" lists whose items are a path or a list of alternative paths.
func ParsePaths(raw interface{}, resolve func(string) (string, error)) (files, dirs []PathGroup, err error) {
	if raw == nil {
		return nil, nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil, errors.Errorf("sanity_check_paths must be a mapping, got %T", raw)
	}
	for key := range m {
		if key != "files" && key != "dirs" {
			return nil, nil, errors.Errorf("sanity_check_paths: unknown key %q (use files and dirs)", key)
		}
	}
	if files, err = parseGroups(m["files"], resolve); err != nil {
		return nil, nil, errors.Wrap(err, "sanity_check_paths files")
	}
	if dirs, err = parseGroups(m["dirs"], resolve); err != nil {
		return nil, nil, errors.Wrap(err, "sanity_check_paths dirs")
	}
	return files, dirs, nil
}

func parseGroups(v interface{}, resolve func(string) (string, error)) ([]PathGroup, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}
	var out []PathGroup
	for _, item := range items {
		var alts []interface{}
		switch t := item.(type) {
		case []interface{}:
			alts = t
		default:
			alts = []interface{}{t}
		}
		var g PathGroup
		for _, a := range alts {
			s, ok := a.(string)
			if !ok {
				return nil, errors.Errorf("path %v is not a string", a)
			}
			if resolve != nil {
				r, err := resolve(s)
				if err != nil {
					return nil, err
				}
				s = r
			}
			g = append(g, s)
		}
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out, nil
}

// Result is the outcome of a sanity check. A failed check is a result, not an error.
type Result struct {
	Success bool
	Reasons []string
}

// Err returns a *eberr.SanityError for a failed result, nil otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &eberr.SanityError{Reasons: append([]string(nil), r.Reasons...)}
}

// Engine runs sanity checks.
type Engine struct {
	Runner runner.Runner
	Log    *logrus.Entry
}

// NewEngine returns an Engine running commands through r.
func NewEngine(r runner.Runner, log *logrus.Entry) *Engine {
	return &Engine{Runner: r, Log: log}
}

// Check verifies spec against root. Commands run with env. Missing artifacts and failing commands
// are collected as reasons; an error is returned only when a probe itself cannot be performed.
func (e *Engine) Check(ctx context.Context, root string, spec Spec, env runner.Environ) (Result, error) {
	res := Result{Success: true}
	fail := func(reason string) {
		res.Success = false
		res.Reasons = append(res.Reasons, reason)
		e.Log.Warn("sanity check: " + reason)
	}

	for _, g := range spec.Files {
		ok, err := anyExists(root, g, file.PathExists)
		if err != nil {
			return res, err
		}
		if !ok {
			fail(fmt.Sprintf("no file found at %s in %s", g, root))
		}
	}
	for _, g := range spec.Dirs {
		ok, err := anyExists(root, g, file.IsNonEmptyDir)
		if err != nil {
			return res, err
		}
		if !ok {
			fail(fmt.Sprintf("no non-empty directory found at %s in %s", g, root))
		}
	}

	for _, cmd := range spec.Commands {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		opts := []runner.Option{runner.WithTolerate()}
		if env != nil {
			opts = append(opts, runner.WithEnv(env.Environ()))
		}
		out, err := e.Runner.Run(ctx, cmd, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if ce, ok := eberr.AsCommand(err); ok {
				fail(fmt.Sprintf("command %q could not be run: %v", cmd, ce.Err))
				continue
			}
			return res, err
		}
		if out.ExitCode != 0 {
			reason := fmt.Sprintf("command %q failed with exit code %d", cmd, out.ExitCode)
			if tail := eberr.Tail(out.Output(), outputTail); tail != "" {
				reason += ": " + tail
			}
			fail(reason)
		}
	}

	if res.Success {
		e.Log.Info("sanity check passed")
	}
	return res, nil
}

func anyExists(root string, g PathGroup, probe func(string) (bool, error)) (bool, error) {
	for _, p := range g {
		path := p
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, p)
		}
		ok, err := probe(path)
		if err != nil {
			return false, errors.Wrapf(err, "sanity check could not inspect %s", path)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
