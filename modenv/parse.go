package modenv

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
)

// Module is a module file read back into its metadata and description.
type Module struct {
	Meta Meta
	Desc *Description
}

// Parse reads a module file produced by a Generator of the given syntax.
// The EBROOT/EBVERSION entries every module publishes are folded back into Meta.
func Parse(syntax config.ModuleSyntax, text string) (*Module, error) {
	var (
		m   *Module
		err error
	)
	switch strings.ToLower(string(syntax)) {
	case "tcl":
		m, err = parseTcl(text)
	case "lua":
		m, err = parseLua(text)
	default:
		return nil, errors.Errorf("unsupported module syntax %q", syntax)
	}
	if err != nil {
		return nil, err
	}
	if err := m.Meta.validate(); err != nil {
		return nil, errors.Wrap(err, "incomplete module file")
	}
	return m, nil
}

// splitHelp cuts the help text out of a module file.
func splitHelp(text, open, close string) (help, rest string, err error) {
	start := strings.Index(text, open)
	if start < 0 {
		return "", text, nil
	}
	body := text[start+len(open):]
	end := strings.Index(body, close)
	if end < 0 {
		return "", "", errors.New("unterminated help block")
	}
	return body[:end], text[:start] + body[end+len(close):], nil
}

const (
	helpHeader   = "\nDescription\n===========\n"
	helpMoreInfo = "\n\n\nMore information\n================\n"
)

func parseHelp(help string, meta *Meta) {
	help = strings.TrimPrefix(help, helpHeader)
	if i := strings.Index(help, helpMoreInfo); i >= 0 {
		meta.Description = help[:i]
		return
	}
	meta.Description = strings.TrimSuffix(help, "\n")
}

func parseWhatis(line string, meta *Meta) {
	switch {
	case strings.HasPrefix(line, "Homepage: "):
		meta.Homepage = strings.TrimPrefix(line, "Homepage: ")
	case strings.HasPrefix(line, "Category: "):
		meta.ModuleClass = strings.TrimPrefix(line, "Category: ")
	}
}

var (
	tclWhatis   = regexp.MustCompile(`^module-whatis \{(.*)\}$`)
	tclQWhatis  = regexp.MustCompile(`^module-whatis "(.*)"$`)
	tclQHelp    = regexp.MustCompile(`proc ModulesHelp \{ \} \{\n    puts stderr "((?:[^"\\]|\\.)*)"\n\}\n`)
	tclRoot     = regexp.MustCompile(`^set root (.*)$`)
	tclConflict = regexp.MustCompile(`^conflict (\S+)$`)
	tclLoad     = regexp.MustCompile(`^\s+module load (\S+)$`)
	tclPathLine = regexp.MustCompile(`^(prepend-path|append-path) (\S+) (.+)$`)
	tclSetenv   = regexp.MustCompile(`^setenv (\S+) "(.*)"$`)
	tclAlias    = regexp.MustCompile(`^set-alias (\S+) "(.*)"$`)
	tclMessage  = regexp.MustCompile(`^\s+puts stderr "(.*)"$`)

	tclUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\$`, `$`, `\[`, `[`, `\]`, `]`, `\n`, "\n")
)

func tclFragment(expr string) string {
	switch {
	case expr == "$root":
		return ""
	case strings.HasPrefix(expr, "$root/"):
		return tclUnescaper.Replace(strings.TrimPrefix(expr, "$root/"))
	default:
		return tclUnescaper.Replace(expr)
	}
}

func parseTcl(text string) (*Module, error) {
	if !strings.HasPrefix(text, "#%Module") {
		return nil, errors.New("not a Tcl module file: missing #%Module header")
	}
	var help, rest string
	if g := tclQHelp.FindStringSubmatchIndex(text); g != nil {
		help = tclUnescaper.Replace(text[g[2]:g[3]])
		rest = text[:g[0]] + text[g[1]:]
	} else {
		var err error
		if help, rest, err = splitHelp(text, "puts stderr {", "    }\n}\n"); err != nil {
			return nil, err
		}
	}
	m := &Module{Desc: NewDescription()}
	parseHelp(help, &m.Meta)

	published := false
	sc := bufio.NewScanner(strings.NewReader(rest))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case tclWhatis.MatchString(line):
			parseWhatis(tclWhatis.FindStringSubmatch(line)[1], &m.Meta)
		case tclQWhatis.MatchString(line):
			parseWhatis(tclUnescaper.Replace(tclQWhatis.FindStringSubmatch(line)[1]), &m.Meta)
		case tclRoot.MatchString(line):
			m.Meta.InstallDir = tclUnescaper.Replace(tclRoot.FindStringSubmatch(line)[1])
		case tclConflict.MatchString(line):
			m.Meta.Name = tclConflict.FindStringSubmatch(line)[1]
		case tclLoad.MatchString(line):
			m.Meta.Dependencies = append(m.Meta.Dependencies, tclLoad.FindStringSubmatch(line)[1])
		case tclPathLine.MatchString(line):
			g := tclPathLine.FindStringSubmatch(line)
			if g[1] == "append-path" {
				m.Desc.AppendPaths(g[2], tclFragment(g[3]))
			} else {
				m.Desc.PrependPaths(g[2], tclFragment(g[3]))
			}
		case tclSetenv.MatchString(line):
			g := tclSetenv.FindStringSubmatch(line)
			rootVar, versionVar := publishedEnv(m.Meta)
			switch {
			case g[1] == rootVar:
				published = true
			case g[1] == versionVar:
				m.Meta.Version = tclUnescaper.Replace(g[2])
			case !published:
				// set-path entries precede the published variables
				var frags []string
				for _, p := range strings.Split(g[2], ":") {
					frags = append(frags, tclFragment(p))
				}
				m.Desc.SetPaths(g[1], frags...)
			default:
				m.Desc.SetEnv(g[1], tclUnescaper.Replace(g[2]))
			}
		case tclAlias.MatchString(line):
			g := tclAlias.FindStringSubmatch(line)
			m.Desc.SetAlias(g[1], tclUnescaper.Replace(g[2]))
		case tclMessage.MatchString(line):
			m.Meta.LoadMessage = tclUnescaper.Replace(tclMessage.FindStringSubmatch(line)[1])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read Tcl module file")
	}
	return m, nil
}

var (
	luaWhatis   = regexp.MustCompile(`^whatis\(\[==\[(.*)\]==\]\)$`)
	luaRoot     = regexp.MustCompile(`^local root = (".*")$`)
	luaConflict = regexp.MustCompile(`^conflict\((".*")\)$`)
	luaLoad     = regexp.MustCompile(`^\s+load\((".*")\)$`)
	luaPathLine = regexp.MustCompile(`^(prepend_path|append_path)\(("[^"]*"), (.+)\)$`)
	luaSetenv   = regexp.MustCompile(`^setenv\(("[^"]*"), (.+)\)$`)
	luaAlias    = regexp.MustCompile(`^set_alias\(("[^"]*"), (".*")\)$`)
	luaMessage  = regexp.MustCompile(`^\s+io\.stderr:write\((".*")\)$`)
	luaJoin     = regexp.MustCompile(`^pathJoin\(root, (".*")\)$`)
)

func unquote(s string) (string, error) {
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", errors.Wrapf(err, "malformed string literal %s", s)
	}
	return v, nil
}

func luaFragment(expr string) (string, error) {
	if expr == "root" {
		return "", nil
	}
	if g := luaJoin.FindStringSubmatch(expr); g != nil {
		return unquote(g[1])
	}
	return unquote(expr)
}

func parseLua(text string) (*Module, error) {
	help, rest, err := splitHelp(text, "help([==[\n", "]==])")
	if err != nil {
		return nil, err
	}
	m := &Module{Desc: NewDescription()}
	parseHelp(help, &m.Meta)

	published := false
	sc := bufio.NewScanner(strings.NewReader(rest))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if err := parseLuaLine(line, m, &published); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read Lua module file")
	}
	return m, nil
}

func parseLuaLine(line string, m *Module, published *bool) error {
	switch {
	case luaWhatis.MatchString(line):
		parseWhatis(luaWhatis.FindStringSubmatch(line)[1], &m.Meta)
	case luaRoot.MatchString(line):
		v, err := unquote(luaRoot.FindStringSubmatch(line)[1])
		if err != nil {
			return err
		}
		m.Meta.InstallDir = v
	case luaConflict.MatchString(line):
		v, err := unquote(luaConflict.FindStringSubmatch(line)[1])
		if err != nil {
			return err
		}
		m.Meta.Name = v
	case luaLoad.MatchString(line):
		v, err := unquote(luaLoad.FindStringSubmatch(line)[1])
		if err != nil {
			return err
		}
		m.Meta.Dependencies = append(m.Meta.Dependencies, v)
	case luaPathLine.MatchString(line):
		g := luaPathLine.FindStringSubmatch(line)
		variable, err := unquote(g[2])
		if err != nil {
			return err
		}
		frag, err := luaFragment(g[3])
		if err != nil {
			return err
		}
		if g[1] == "append_path" {
			m.Desc.AppendPaths(variable, frag)
		} else {
			m.Desc.PrependPaths(variable, frag)
		}
	case luaSetenv.MatchString(line):
		g := luaSetenv.FindStringSubmatch(line)
		name, err := unquote(g[1])
		if err != nil {
			return err
		}
		rootVar, versionVar := publishedEnv(m.Meta)
		switch {
		case name == rootVar:
			*published = true
		case name == versionVar:
			v, err := unquote(g[2])
			if err != nil {
				return err
			}
			m.Meta.Version = v
		case !*published:
			var frags []string
			for _, p := range strings.Split(g[2], ` .. ":" .. `) {
				f, err := luaFragment(p)
				if err != nil {
					return err
				}
				frags = append(frags, f)
			}
			m.Desc.SetPaths(name, frags...)
		default:
			v, err := unquote(g[2])
			if err != nil {
				return err
			}
			m.Desc.SetEnv(name, v)
		}
	case luaAlias.MatchString(line):
		g := luaAlias.FindStringSubmatch(line)
		name, err := unquote(g[1])
		if err != nil {
			return err
		}
		v, err := unquote(g[2])
		if err != nil {
			return err
		}
		m.Desc.SetAlias(name, v)
	case luaMessage.MatchString(line):
		v, err := unquote(luaMessage.FindStringSubmatch(line)[1])
		if err != nil {
			return err
		}
		m.Meta.LoadMessage = v
	}
	return nil
}
