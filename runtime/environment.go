package runtime

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mensylisir/xmbuild/hook"
)

// Environment is the explicit environment context commands and lookups run against.
// It starts as a copy of the process environment and is never written back to it.
type Environment struct {
	mu         sync.RWMutex
	vars       map[string]string
	generation uint64
}

// Snapshot is a saved copy of an Environment.
type Snapshot map[string]string

// NewEnvironment builds an Environment from KEY=VALUE pairs.
func NewEnvironment(pairs []string) *Environment {
	e := &Environment{vars: make(map[string]string, len(pairs))}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		e.vars[k] = v
	}
	return e
}

// FromProcess copies the current process environment.
func FromProcess() *Environment {
	return NewEnvironment(os.Environ())
}

// Get returns the value of key, empty when unset.
func (e *Environment) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// Lookup returns the value of key and whether it is set.
func (e *Environment) Lookup(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[key]
	return v, ok
}

// Set assigns key.
func (e *Environment) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[key] = value
	e.generation++
}

// Unset removes key.
func (e *Environment) Unset(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.vars[key]; ok {
		delete(e.vars, key)
		e.generation++
	}
}

// PrependPath puts paths at the front of the list variable key, dropping existing duplicates.
func (e *Environment) PrependPath(key string, paths ...string) {
	e.editPath(key, paths, true)
}

// AppendPath adds paths at the end of the list variable key unless already present.
func (e *Environment) AppendPath(key string, paths ...string) {
	e.editPath(key, paths, false)
}

func (e *Environment) editPath(key string, paths []string, prepend bool) {
	if len(paths) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var existing []string
	if cur := e.vars[key]; cur != "" {
		existing = filepath.SplitList(cur)
	}
	var merged []string
	if prepend {
		merged = dedupe(append(append([]string{}, paths...), existing...))
	} else {
		merged = dedupe(append(existing, paths...))
	}
	e.vars[key] = strings.Join(merged, string(os.PathListSeparator))
	e.generation++
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// Environ returns the variables as sorted KEY=VALUE pairs.
func (e *Environment) Environ() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Keys returns the sorted variable names.
func (e *Environment) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.vars))
	for k := range e.vars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Generation changes whenever the environment is modified.
func (e *Environment) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Snapshot copies the current variables.
func (e *Environment) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := make(Snapshot, len(e.vars))
	for k, v := range e.vars {
		s[k] = v
	}
	return s
}

// Restore replaces the variables with a snapshot.
func (e *Environment) Restore(s Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars = make(map[string]string, len(s))
	for k, v := range s {
		e.vars[k] = v
	}
	e.generation++
}

// Clone returns an independent copy.
func (e *Environment) Clone() *Environment {
	return &Environment{vars: e.Snapshot()}
}

// Scoped runs fn and restores the environment afterwards, also when fn fails or panics.
func (e *Environment) Scoped(fn func() error) error {
	snap := e.Snapshot()
	return hook.Call(hook.Funcs{
		TryFn:     fn,
		FinallyFn: func() { e.Restore(snap) },
	})
}
