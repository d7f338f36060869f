package config

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmbuild/eberr"
)

// Recipe is an easyconfig file as parsed, before its parameters are checked.
type Recipe map[string]interface{}

// Name returns the software name of the recipe, if any.
func (r Recipe) Name() string {
	s, _ := r[ParamName].(string)
	return s
}

// Easyblock returns the explicitly requested easyblock, if any.
func (r Recipe) Easyblock() string {
	s, _ := r[ParamEasyblock].(string)
	return s
}

// Loader reads an easyconfig recipe from a YAML file.
type Loader struct {
	filePath string
}

// NewLoader creates a loader for the given file path.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and unmarshals the recipe. Parameter checks happen in Build, once the easyblock and
// therefore the extra options are known.
func (l *Loader) Load() (Recipe, error) {
	if l.filePath == "" {
		return nil, errors.Errorf("easyconfig file path is empty")
	}
	content, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read easyconfig file '%s'", l.filePath)
	}
	return ParseRecipe(content, l.filePath)
}

// ParseRecipe unmarshals YAML content; source names the origin in error messages.
// Floating point scalars keep their literal text so a version written as 1.10 stays "1.10".
func ParseRecipe(content []byte, source string) (Recipe, error) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, eberr.NewConfigError("", "easyconfig '%s' is empty", source)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, eberr.NewConfigError("", "failed to unmarshal easyconfig YAML from '%s': %v", source, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, eberr.NewConfigError("", "easyconfig '%s' is not a mapping", source)
	}
	value, err := decodeNode(doc.Content[0])
	if err != nil {
		return nil, eberr.NewConfigError("", "invalid easyconfig '%s': %v", source, err)
	}
	return Recipe(value.(map[string]interface{})), nil
}

func decodeNode(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeNode(n.Alias)
	case yaml.MappingNode:
		out := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if _, dup := out[key]; dup {
				return nil, errors.Errorf("duplicate key %q at line %d", key, n.Content[i].Line)
			}
			v, err := decodeNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		if n.Tag == "!!float" {
			return n.Value, nil
		}
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, errors.Errorf("unsupported YAML node at line %d", n.Line)
	}
}

// Build turns a recipe into an EasyConfig. Keys outside the builtin vocabulary and extra are
// rejected, and mandatory parameters must be present.
func Build(recipe Recipe, path string, extra ...Parameter) (*EasyConfig, error) {
	ec, err := New(extra...)
	if err != nil {
		return nil, err
	}
	ec.Path = path

	keys := make([]string, 0, len(recipe))
	for k := range recipe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var unknown []string
	for _, k := range keys {
		if !ec.Declared(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return nil, eberr.NewConfigError(unknown[0], "unknown easyconfig parameter(s): %s", strings.Join(unknown, ", "))
	}
	for _, k := range keys {
		if err := ec.Set(k, recipe[k]); err != nil {
			return nil, err
		}
	}
	if err := ec.Validate(); err != nil {
		return nil, err
	}
	return ec, nil
}
