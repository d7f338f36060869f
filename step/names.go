package step

import (
	"strings"

	"github.com/mensylisir/xmbuild/eberr"
)

// Name identifies a lifecycle step.
type Name string

const (
	Fetch       Name = "fetch"
	Extract     Name = "extract"
	Patch       Name = "patch"
	Prepare     Name = "prepare"
	Configure   Name = "configure"
	Build       Name = "build"
	Test        Name = "test"
	Install     Name = "install"
	PostInstall Name = "post-install"
	SanityCheck Name = "sanity-check"
	Cleanup     Name = "cleanup"
	Module      Name = "module"
)

var order = []Name{
	Fetch, Extract, Patch, Prepare, Configure, Build, Test, Install, PostInstall, SanityCheck, Cleanup, Module,
}

var descriptions = map[Name]string{
	Fetch:       "fetching sources and patches",
	Extract:     "unpacking sources",
	Patch:       "patching",
	Prepare:     "preparing build and install directories",
	Configure:   "configuring",
	Build:       "building",
	Test:        "testing",
	Install:     "installing",
	PostInstall: "post-install fixups",
	SanityCheck: "sanity checking",
	Cleanup:     "cleaning up",
	Module:      "creating module",
}

// Steps that every installation needs; they run even when asked to be skipped.
var mandatory = map[Name]bool{
	Fetch:   true,
	Prepare: true,
	Cleanup: true,
	Module:  true,
}

func (n Name) String() string { return string(n) }

// Order returns the canonical step order.
func Order() []Name {
	out := make([]Name, len(order))
	copy(out, order)
	return out
}

// Index returns the position of n in the canonical order, -1 for unknown names.
func Index(n Name) int {
	for i, o := range order {
		if o == n {
			return i
		}
	}
	return -1
}

// Valid reports whether n is a known step.
func Valid(n Name) bool { return Index(n) >= 0 }

// Description returns the default description of n.
func Description(n Name) string { return descriptions[n] }

// Skippable reports whether n may be skipped on request.
func Skippable(n Name) bool { return Valid(n) && !mandatory[n] }

// ParseName accepts a step name; underscores and case are tolerated ("post_install", "SanityCheck").
func ParseName(s string) (Name, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", "-")
	n := Name(key)
	if Valid(n) {
		return n, nil
	}
	compact := strings.ReplaceAll(key, "-", "")
	for _, o := range order {
		if strings.ReplaceAll(string(o), "-", "") == compact {
			return o, nil
		}
	}
	return "", eberr.NewConfigError("step", "unknown step %q (known: %s)", s, strings.Join(names(order), ", "))
}

// ParseNames parses a comma separated list of step names, skipping empty entries.
func ParseNames(s string) ([]Name, error) {
	var out []Name
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n, err := ParseName(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseList parses each element of list with ParseName.
func ParseList(list []string) ([]Name, error) {
	return ParseNames(strings.Join(list, ","))
}

func names(ns []Name) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = string(n)
	}
	return out
}

func containsName(ns []Name, n Name) bool {
	for _, x := range ns {
		if x == n {
			return true
		}
	}
	return false
}
