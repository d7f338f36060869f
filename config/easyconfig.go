package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/util"
)

// EasyConfig is the parameter store of one installation.
//
// Values are whatever the recipe parser produced (strings, bools, ints, lists and maps); the
// typed getters convert on read. An EasyConfig belongs to a single installation and is mutated
// by the steps that run against it.
type EasyConfig struct {
	Path string

	params    map[string]Parameter
	values    map[string]interface{}
	set       map[string]bool
	templates map[string]string
}

// New returns an EasyConfig that knows the builtin parameters plus extra.
func New(extra ...Parameter) (*EasyConfig, error) {
	ec := &EasyConfig{
		params:    builtinIndex(),
		values:    make(map[string]interface{}),
		set:       make(map[string]bool),
		templates: make(map[string]string),
	}
	for _, p := range extra {
		if p.Name == "" {
			return nil, eberr.NewConfigError("", "extra option without a name")
		}
		if existing, ok := ec.params[p.Name]; ok && existing.Category == Builtin {
			return nil, eberr.NewConfigError(p.Name, "extra option shadows a builtin parameter")
		}
		ec.params[p.Name] = p
	}
	return ec, nil
}

// Declared reports whether key is a known parameter.
func (ec *EasyConfig) Declared(key string) bool {
	_, ok := ec.params[key]
	return ok
}

// Parameters returns every declaration sorted by category then name.
func (ec *EasyConfig) Parameters() []Parameter {
	out := make([]Parameter, 0, len(ec.params))
	for _, p := range ec.params {
		out = append(out, p)
	}
	sortParameters(out)
	return out
}

// Set stores value for a declared key.
func (ec *EasyConfig) Set(key string, value interface{}) error {
	if !ec.Declared(key) {
		return eberr.NewConfigError(key, "unknown easyconfig parameter")
	}
	if err := checkKind(ec.params[key], value); err != nil {
		return err
	}
	ec.values[key] = value
	ec.set[key] = true
	return nil
}

// MustSet is Set for keys the caller knows are declared; it panics otherwise.
func (ec *EasyConfig) MustSet(key string, value interface{}) {
	if err := ec.Set(key, value); err != nil {
		panic(err)
	}
}

// Append extends a value: strings are joined with a space, lists are concatenated.
func (ec *EasyConfig) Append(key string, value interface{}) error {
	cur := ec.Get(key)
	switch c := cur.(type) {
	case nil:
		return ec.Set(key, value)
	case string:
		s, ok := value.(string)
		if !ok {
			return eberr.NewConfigError(key, "cannot append %T to a string value", value)
		}
		return ec.Set(key, util.JoinNonEmpty(" ", c, s))
	case []interface{}:
		next := append(append([]interface{}{}, c...), toList(value)...)
		return ec.Set(key, next)
	case []string:
		next := make([]interface{}, 0, len(c)+1)
		for _, v := range c {
			next = append(next, v)
		}
		return ec.Set(key, append(next, toList(value)...))
	default:
		return eberr.NewConfigError(key, "cannot append to a %T value", cur)
	}
}

// Has reports whether key resolves to a non-nil value, explicitly or through a default.
func (ec *EasyConfig) Has(key string) bool {
	return ec.Get(key) != nil
}

// IsSet reports whether key was set explicitly.
func (ec *EasyConfig) IsSet(key string) bool {
	return ec.set[key]
}

// Get returns the explicit value of key, else its default.
func (ec *EasyConfig) Get(key string) interface{} {
	if v, ok := ec.values[key]; ok {
		return v
	}
	if p, ok := ec.params[key]; ok {
		return p.Default
	}
	return nil
}

// GetString returns key as a string with %(..)s templates resolved.
func (ec *EasyConfig) GetString(key string) string {
	switch v := ec.Get(key).(type) {
	case nil:
		return ""
	case string:
		if resolved, err := ec.Resolve(v); err == nil {
			return resolved
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

// GetBool returns key as a bool; strings such as "true" and "1" are accepted.
func (ec *EasyConfig) GetBool(key string) bool {
	switch v := ec.Get(key).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case int:
		return v != 0
	default:
		return false
	}
}

// GetInt returns key as an int and whether it holds a usable number.
func (ec *EasyConfig) GetInt(key string) (int, bool) {
	switch v := ec.Get(key).(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// GetStringSlice returns key as a list of resolved strings; a scalar is a one element list.
func (ec *EasyConfig) GetStringSlice(key string) []string {
	raw := toList(ec.Get(key))
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s := fmt.Sprint(item)
		if resolved, err := ec.Resolve(s); err == nil {
			s = resolved
		}
		out = append(out, s)
	}
	return out
}

// GetStringMap returns key as a map of strings; list values are joined with ':'.
func (ec *EasyConfig) GetStringMap(key string) map[string]string {
	out := make(map[string]string)
	for k, vs := range ec.GetStringSliceMap(key) {
		out[k] = strings.Join(vs, ":")
	}
	return out
}

// GetStringSliceMap returns key as a map whose values are lists of resolved strings.
func (ec *EasyConfig) GetStringSliceMap(key string) map[string][]string {
	out := make(map[string][]string)
	m, ok := ec.Get(key).(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range m {
		var items []string
		for _, item := range toList(v) {
			s := fmt.Sprint(item)
			if resolved, err := ec.Resolve(s); err == nil {
				s = resolved
			}
			items = append(items, s)
		}
		out[k] = items
	}
	return out
}

// Name is the software name.
func (ec *EasyConfig) Name() string { return ec.GetString(ParamName) }

// Version is the software version.
func (ec *EasyConfig) Version() string { return ec.GetString(ParamVersion) }

// ModuleVersion is the version plus versionsuffix.
func (ec *EasyConfig) ModuleVersion() string {
	return ec.Version() + ec.GetString(ParamVersionSuffix)
}

// SetTemplate registers an extra %(key)s value, such as installdir once it is known.
func (ec *EasyConfig) SetTemplate(key, value string) {
	ec.templates[key] = value
}

// TemplateValues returns the values %(key)s templates resolve against.
func (ec *EasyConfig) TemplateValues() map[string]string {
	vals := make(map[string]string, len(ec.templates)+8)
	name := ec.rawString(ParamName)
	ver := ec.rawString(ParamVersion)
	vals["name"] = name
	vals["nameletter"] = ""
	if name != "" {
		vals["nameletter"] = strings.ToLower(name[:1])
	}
	vals["namelower"] = strings.ToLower(name)
	vals["version"] = ver
	vals["versionsuffix"] = ec.rawString(ParamVersionSuffix)
	parts := strings.Split(ver, ".")
	vals["version_major"] = parts[0]
	if len(parts) > 1 {
		vals["version_minor"] = parts[1]
		vals["version_major_minor"] = parts[0] + "." + parts[1]
	} else {
		vals["version_minor"] = ""
		vals["version_major_minor"] = parts[0]
	}
	for k, v := range ec.templates {
		vals[k] = v
	}
	return vals
}

// rawString stringifies a scalar value without resolving templates in it.
func (ec *EasyConfig) rawString(key string) string {
	v := ec.Get(key)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Resolve substitutes %(key)s templates in s.
func (ec *EasyConfig) Resolve(s string) (string, error) {
	if !strings.Contains(s, "%(") {
		return s, nil
	}
	out, err := util.ResolveTemplate(s, ec.TemplateValues())
	if err != nil {
		return s, errors.Wrap(err, "failed to resolve easyconfig template")
	}
	return out, nil
}

// Validate checks that every required parameter is present and that the version parses.
func (ec *EasyConfig) Validate() error {
	var missing []string
	for name, p := range ec.params {
		if p.Required() && !ec.IsSet(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return eberr.NewConfigError(missing[0], "mandatory parameter(s) not provided: %s", strings.Join(missing, ", "))
	}
	if ec.Name() == "" {
		return eberr.NewConfigError(ParamName, "must not be empty")
	}
	if ec.Version() == "" {
		return eberr.NewConfigError(ParamVersion, "must not be empty")
	}
	for _, key := range util.SortedKeys(ec.values) {
		if s, ok := ec.values[key].(string); ok {
			if _, err := ec.Resolve(s); err != nil {
				return eberr.NewConfigError(key, "%v", err)
			}
		}
	}
	return nil
}

// SemVer parses the software version. Versions that are not dotted numbers return an error.
func (ec *EasyConfig) SemVer() (*version.Version, error) {
	v, err := version.NewVersion(ec.Version())
	if err != nil {
		return nil, eberr.NewConfigError(ParamVersion, "unparsable version %q: %v", ec.Version(), err)
	}
	return v, nil
}

// Dump returns the explicit values, for display.
func (ec *EasyConfig) Dump() map[string]interface{} {
	out := make(map[string]interface{}, len(ec.values))
	for k, v := range ec.values {
		out[k] = v
	}
	return out
}

func toList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []interface{}{t}
	default:
		return []interface{}{t}
	}
}

// checkKind rejects values whose shape contradicts the default of the declaration.
func checkKind(p Parameter, value interface{}) error {
	if p.Default == nil || value == nil {
		return nil
	}
	switch p.Default.(type) {
	case bool:
		switch value.(type) {
		case bool, string:
			return nil
		}
	case string:
		switch value.(type) {
		case string, int, float64:
			return nil
		}
	case []interface{}:
		switch value.(type) {
		case []interface{}, []string, string:
			return nil
		}
	case map[string]interface{}:
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
	default:
		return nil
	}
	return eberr.NewConfigError(p.Name, "expected a value like %T, got %T", p.Default, value)
}
