package modenv

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/deps"
)

// Meta describes the installation a module file belongs to.
type Meta struct {
	Name        string
	Version     string
	Description string
	Homepage    string
	ModuleClass string
	InstallDir  string
	// Dependencies are module names ("name/version") loaded before this module.
	Dependencies []string
	// LoadMessage is printed when the module is loaded.
	LoadMessage string
}

// ModuleName is "name/version".
func (m Meta) ModuleName() string {
	return m.Name + "/" + m.Version
}

func (m Meta) validate() error {
	if m.Name == "" || m.Version == "" {
		return errors.Errorf("module metadata needs a name and a version")
	}
	if m.InstallDir == "" {
		return errors.Errorf("module metadata for %s needs an install dir", m.ModuleName())
	}
	return nil
}

// Generator renders module files in one syntax.
type Generator interface {
	Syntax() config.ModuleSyntax
	// Extension is the module file suffix ("" for Tcl, ".lua" for Lua).
	Extension() string
	Render(meta Meta, desc *Description) (string, error)
}

// NewGenerator returns the generator for syntax.
func NewGenerator(syntax config.ModuleSyntax) (Generator, error) {
	switch config.ModuleSyntax(strings.ToLower(string(syntax))) {
	case "lua":
		return luaGenerator{}, nil
	case "tcl":
		return tclGenerator{}, nil
	default:
		return nil, errors.Errorf("unsupported module syntax %q", syntax)
	}
}

// helpText is shared by both syntaxes.
func helpText(meta Meta) string {
	var b strings.Builder
	b.WriteString("\nDescription\n===========\n")
	b.WriteString(strings.TrimSpace(meta.Description))
	b.WriteString("\n")
	if meta.Homepage != "" {
		b.WriteString("\n\nMore information\n================\n - Homepage: ")
		b.WriteString(meta.Homepage)
		b.WriteString("\n")
	}
	return b.String()
}

// whatis lines, in a fixed order.
func whatis(meta Meta) []string {
	lines := []string{"Description: " + firstLine(meta.Description)}
	if meta.Homepage != "" {
		lines = append(lines, "Homepage: "+meta.Homepage)
	}
	if meta.ModuleClass != "" {
		lines = append(lines, "Category: "+meta.ModuleClass)
	}
	return lines
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// publishedEnv is what every module sets so dependants can find the installation.
func publishedEnv(meta Meta) (rootVar, versionVar string) {
	return deps.RootVar(meta.Name), deps.VersionVar(meta.Name)
}

// absFragment reports whether a fragment is used verbatim rather than under the root.
func absFragment(frag string) bool {
	return filepath.IsAbs(frag)
}
