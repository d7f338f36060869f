package modenv

import (
	"strings"

	"github.com/mensylisir/xmbuild/config"
)

type tclGenerator struct{}

func (tclGenerator) Syntax() config.ModuleSyntax { return config.ModuleSyntaxTcl }
func (tclGenerator) Extension() string           { return "" }

var tclEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, `[`, `\[`, `]`, `\]`, "\n", `\n`)

func tclQuote(s string) string { return `"` + tclEscaper.Replace(s) + `"` }

// tclBraced brace-quotes s when Tcl reads it back verbatim and falls back to tclQuote otherwise.
func tclBraced(s string) string {
	if strings.ContainsAny(s, `{}\`) {
		return tclQuote(s)
	}
	return "{" + s + "}"
}

func tclPath(frag string) string {
	switch {
	case frag == "":
		return "$root"
	case absFragment(frag):
		return tclEscaper.Replace(frag)
	default:
		return "$root/" + tclEscaper.Replace(frag)
	}
}

func (tclGenerator) Render(meta Meta, desc *Description) (string, error) {
	if err := meta.validate(); err != nil {
		return "", err
	}
	if desc == nil {
		desc = NewDescription()
	}
	var b strings.Builder
	b.WriteString("#%Module\n")
	b.WriteString("proc ModulesHelp { } {\n    puts stderr ")
	if help := helpText(meta); strings.ContainsAny(help, `{}\`) {
		b.WriteString(tclQuote(help) + "\n}\n\n")
	} else {
		b.WriteString("{" + help + "    }\n}\n\n")
	}
	for _, w := range whatis(meta) {
		b.WriteString("module-whatis " + tclBraced(w) + "\n")
	}
	b.WriteString("\nset root " + tclEscaper.Replace(meta.InstallDir) + "\n\n")
	b.WriteString("conflict " + meta.Name + "\n\n")

	for _, dep := range meta.Dependencies {
		b.WriteString("if { ![ is-loaded " + dep + " ] } {\n    module load " + dep + "\n}\n\n")
	}

	for _, e := range desc.PathEntries() {
		switch e.Op {
		case Prepend, Append:
			cmd := "prepend-path"
			if e.Op == Append {
				cmd = "append-path"
			}
			for _, f := range e.Fragments {
				b.WriteString(cmd + " " + e.Variable + " " + tclPath(f) + "\n")
			}
		case Set:
			parts := make([]string, len(e.Fragments))
			for i, f := range e.Fragments {
				parts[i] = tclPath(f)
			}
			b.WriteString("setenv " + e.Variable + ` "` + strings.Join(parts, ":") + "\"\n")
		}
	}

	rootVar, versionVar := publishedEnv(meta)
	b.WriteString("\nsetenv " + rootVar + ` "$root"` + "\n")
	b.WriteString("setenv " + versionVar + " " + tclQuote(meta.Version) + "\n")

	for _, l := range desc.Env() {
		b.WriteString("setenv " + l.Name + " " + tclQuote(l.Value) + "\n")
	}
	for _, l := range desc.Aliases() {
		b.WriteString("set-alias " + l.Name + " " + tclQuote(l.Value) + "\n")
	}
	if meta.LoadMessage != "" {
		b.WriteString("\nif { [ module-info mode load ] } {\n    puts stderr " + tclQuote(meta.LoadMessage) + "\n}\n")
	}
	return b.String(), nil
}
