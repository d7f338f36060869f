// Package modenv builds the environment description of an installation and turns it into a
// module file. Contributions accumulate per variable in first-contribution order without
// duplicates, so rendering the same sequence of calls always yields the same text.
package modenv

import (
	"path/filepath"
	"strings"
)

// Op is how a path list is applied to a variable.
type Op int

const (
	Prepend Op = iota
	Append
	Set
)

func (o Op) String() string {
	switch o {
	case Prepend:
		return "prepend"
	case Append:
		return "append"
	case Set:
		return "set"
	default:
		return "unknown"
	}
}

type pathKey struct {
	op       Op
	variable string
}

// PathEntry is the accumulated fragment list of one variable under one operation.
type PathEntry struct {
	Op        Op
	Variable  string
	Fragments []string
}

// Literal is a setenv or alias entry.
type Literal struct {
	Name  string
	Value string
}

// Description is the environment an installation contributes when its module is loaded.
// Path fragments are relative to the install root; "" denotes the root itself.
type Description struct {
	pathOrder []pathKey
	paths     map[pathKey][]string
	envOrder  []string
	env       map[string]string
	aliasOrd  []string
	aliases   map[string]string
}

// NewDescription returns an empty description.
func NewDescription() *Description {
	return &Description{
		paths:   make(map[pathKey][]string),
		env:     make(map[string]string),
		aliases: make(map[string]string),
	}
}

// normalizeFragment cleans a fragment; the root is "".
func normalizeFragment(frag string) string {
	frag = strings.TrimSpace(frag)
	if frag == "" || frag == "." {
		return ""
	}
	frag = filepath.Clean(frag)
	if frag == "." {
		return ""
	}
	return frag
}

func (d *Description) addPaths(op Op, variable string, fragments []string) {
	if variable == "" {
		return
	}
	key := pathKey{op: op, variable: variable}
	cur, seen := d.paths[key]
	if !seen {
		d.pathOrder = append(d.pathOrder, key)
	}
	for _, f := range fragments {
		f = normalizeFragment(f)
		if !contains(cur, f) {
			cur = append(cur, f)
		}
	}
	d.paths[key] = cur
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// PrependPaths adds fragments to be prepended to variable.
func (d *Description) PrependPaths(variable string, fragments ...string) {
	d.addPaths(Prepend, variable, fragments)
}

// AppendPaths adds fragments to be appended to variable.
func (d *Description) AppendPaths(variable string, fragments ...string) {
	d.addPaths(Append, variable, fragments)
}

// SetPaths adds fragments that variable is set to, joined with the path list separator.
func (d *Description) SetPaths(variable string, fragments ...string) {
	d.addPaths(Set, variable, fragments)
}

// SetEnv sets a literal variable. A later value replaces an earlier one but keeps its position.
func (d *Description) SetEnv(name, value string) {
	if _, ok := d.env[name]; !ok {
		d.envOrder = append(d.envOrder, name)
	}
	d.env[name] = value
}

// SetAlias defines a shell alias, with the same replacement rule as SetEnv.
func (d *Description) SetAlias(name, value string) {
	if _, ok := d.aliases[name]; !ok {
		d.aliasOrd = append(d.aliasOrd, name)
	}
	d.aliases[name] = value
}

// Merge replays every contribution of other into d.
func (d *Description) Merge(other *Description) {
	if other == nil {
		return
	}
	for _, e := range other.PathEntries() {
		d.addPaths(e.Op, e.Variable, e.Fragments)
	}
	for _, l := range other.Env() {
		d.SetEnv(l.Name, l.Value)
	}
	for _, l := range other.Aliases() {
		d.SetAlias(l.Name, l.Value)
	}
}

// PathEntries returns the path contributions in first-contribution order.
func (d *Description) PathEntries() []PathEntry {
	out := make([]PathEntry, 0, len(d.pathOrder))
	for _, k := range d.pathOrder {
		frags := d.paths[k]
		if len(frags) == 0 {
			continue
		}
		out = append(out, PathEntry{Op: k.op, Variable: k.variable, Fragments: append([]string(nil), frags...)})
	}
	return out
}

// Paths returns the fragments recorded for variable under op.
func (d *Description) Paths(op Op, variable string) []string {
	return append([]string(nil), d.paths[pathKey{op: op, variable: variable}]...)
}

// Variables returns every variable touched by a path contribution, in order.
func (d *Description) Variables() []string {
	var out []string
	for _, e := range d.PathEntries() {
		if !contains(out, e.Variable) {
			out = append(out, e.Variable)
		}
	}
	return out
}

// Env returns the literal variables in first-set order.
func (d *Description) Env() []Literal {
	out := make([]Literal, 0, len(d.envOrder))
	for _, k := range d.envOrder {
		out = append(out, Literal{Name: k, Value: d.env[k]})
	}
	return out
}

// Aliases returns the aliases in first-set order.
func (d *Description) Aliases() []Literal {
	out := make([]Literal, 0, len(d.aliasOrd))
	for _, k := range d.aliasOrd {
		out = append(out, Literal{Name: k, Value: d.aliases[k]})
	}
	return out
}

// Empty reports whether nothing was contributed.
func (d *Description) Empty() bool {
	return len(d.PathEntries()) == 0 && len(d.envOrder) == 0 && len(d.aliasOrd) == 0
}

// Clone returns an independent copy.
func (d *Description) Clone() *Description {
	c := NewDescription()
	c.Merge(d)
	return c
}
