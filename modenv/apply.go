package modenv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mensylisir/xmbuild/file"
)

// Env is the part of an environment context loading a module mutates.
type Env interface {
	Set(key, value string)
	PrependPath(key string, paths ...string)
	AppendPath(key string, paths ...string)
}

func absolute(root, frag string) string {
	switch {
	case frag == "":
		return root
	case filepath.IsAbs(frag):
		return frag
	default:
		return filepath.Join(root, frag)
	}
}

// Apply mutates env the way loading the module of meta and desc would.
func Apply(env Env, meta Meta, desc *Description) {
	root := meta.InstallDir
	rootVar, versionVar := publishedEnv(meta)
	env.Set(rootVar, root)
	env.Set(versionVar, meta.Version)
	if desc == nil {
		return
	}
	for _, e := range desc.PathEntries() {
		switch e.Op {
		case Prepend:
			for _, f := range e.Fragments {
				env.PrependPath(e.Variable, absolute(root, f))
			}
		case Append:
			for _, f := range e.Fragments {
				env.AppendPath(e.Variable, absolute(root, f))
			}
		case Set:
			parts := make([]string, len(e.Fragments))
			for i, f := range e.Fragments {
				parts[i] = absolute(root, f)
			}
			env.Set(e.Variable, strings.Join(parts, string(os.PathListSeparator)))
		}
	}
	for _, l := range desc.Env() {
		env.Set(l.Name, l.Value)
	}
}

// PathGuess maps a variable to the fragments that are tried for it.
type PathGuess struct {
	Variable  string
	Fragments []string
}

// DefaultPathGuesses are the conventional locations inspected after an install.
func DefaultPathGuesses() []PathGuess {
	return []PathGuess{
		{Variable: "PATH", Fragments: []string{"bin", "sbin"}},
		{Variable: "LD_LIBRARY_PATH", Fragments: []string{"lib", "lib64"}},
		{Variable: "LIBRARY_PATH", Fragments: []string{"lib", "lib64"}},
		{Variable: "CPATH", Fragments: []string{"include"}},
		{Variable: "MANPATH", Fragments: []string{"man", filepath.Join("share", "man")}},
		{Variable: "PKG_CONFIG_PATH", Fragments: []string{
			filepath.Join("lib", "pkgconfig"),
			filepath.Join("lib64", "pkgconfig"),
			filepath.Join("share", "pkgconfig"),
		}},
		{Variable: "CMAKE_PREFIX_PATH", Fragments: []string{""}},
	}
}

// GuessPaths prepends every guessed fragment that exists under root and is non-empty.
func GuessPaths(root string, guesses []PathGuess) (*Description, error) {
	desc := NewDescription()
	for _, g := range guesses {
		var keep []string
		for _, frag := range g.Fragments {
			ok, err := file.IsNonEmptyDir(absolute(root, frag))
			if err != nil {
				return nil, err
			}
			if ok {
				keep = append(keep, frag)
			}
		}
		if len(keep) > 0 {
			desc.PrependPaths(g.Variable, keep...)
		}
	}
	return desc, nil
}
