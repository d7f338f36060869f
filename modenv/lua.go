package modenv

import (
	"strconv"
	"strings"

	"github.com/mensylisir/xmbuild/config"
)

type luaGenerator struct{}

func (luaGenerator) Syntax() config.ModuleSyntax { return config.ModuleSyntaxLua }
func (luaGenerator) Extension() string           { return ".lua" }

func luaQuote(s string) string { return strconv.Quote(s) }

func luaPath(frag string) string {
	switch {
	case frag == "":
		return "root"
	case absFragment(frag):
		return luaQuote(frag)
	default:
		return "pathJoin(root, " + luaQuote(frag) + ")"
	}
}

func (luaGenerator) Render(meta Meta, desc *Description) (string, error) {
	if err := meta.validate(); err != nil {
		return "", err
	}
	if desc == nil {
		desc = NewDescription()
	}
	var b strings.Builder
	b.WriteString("help([==[\n" + helpText(meta) + "]==])\n\n")
	for _, w := range whatis(meta) {
		b.WriteString("whatis([==[" + w + "]==])\n")
	}
	b.WriteString("\nlocal root = " + luaQuote(meta.InstallDir) + "\n\n")
	b.WriteString("conflict(" + luaQuote(meta.Name) + ")\n\n")

	for _, dep := range meta.Dependencies {
		b.WriteString("if not ( isloaded(" + luaQuote(dep) + ") ) then\n    load(" + luaQuote(dep) + ")\nend\n\n")
	}

	for _, e := range desc.PathEntries() {
		switch e.Op {
		case Prepend, Append:
			fn := "prepend_path"
			if e.Op == Append {
				fn = "append_path"
			}
			for _, f := range e.Fragments {
				b.WriteString(fn + "(" + luaQuote(e.Variable) + ", " + luaPath(f) + ")\n")
			}
		case Set:
			parts := make([]string, len(e.Fragments))
			for i, f := range e.Fragments {
				parts[i] = luaPath(f)
			}
			b.WriteString("setenv(" + luaQuote(e.Variable) + ", " + strings.Join(parts, ` .. ":" .. `) + ")\n")
		}
	}

	rootVar, versionVar := publishedEnv(meta)
	b.WriteString("\nsetenv(" + luaQuote(rootVar) + ", root)\n")
	b.WriteString("setenv(" + luaQuote(versionVar) + ", " + luaQuote(meta.Version) + ")\n")

	for _, l := range desc.Env() {
		b.WriteString("setenv(" + luaQuote(l.Name) + ", " + luaQuote(l.Value) + ")\n")
	}
	for _, l := range desc.Aliases() {
		b.WriteString("set_alias(" + luaQuote(l.Name) + ", " + luaQuote(l.Value) + ")\n")
	}
	if meta.LoadMessage != "" {
		b.WriteString("\nif mode() == \"load\" then\n    io.stderr:write(" + luaQuote(meta.LoadMessage) + ")\nend\n")
	}
	return b.String(), nil
}
