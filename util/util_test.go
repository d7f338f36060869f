package util

import (
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tmpl, err := template.New("test").Parse("Hello, {{.Name}}! v{{.Version}}")
	require.NoError(t, err)
	got, err := Render(tmpl, Data{"Name": "OpenMPI", "Version": "4.1.5"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, OpenMPI! v4.1.5", got)
}

func TestRenderString_MissingKey(t *testing.T) {
	_, err := RenderString("{{.Nope}}", Data{})
	assert.Error(t, err)
	_, err = RenderString("{{.Broken", Data{})
	assert.Error(t, err)
}

func TestResolveTemplate(t *testing.T) {
	values := map[string]string{"name": "zlib", "version": "1.3"}
	got, err := ResolveTemplate("%(name)s-%(version)s.tar.gz", values)
	require.NoError(t, err)
	assert.Equal(t, "zlib-1.3.tar.gz", got)

	got, err = ResolveTemplate("no templates here", values)
	require.NoError(t, err)
	assert.Equal(t, "no templates here", got)

	_, err = ResolveTemplate("%(nmae)s and %(nmae)s", values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nmae")
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, UniqueStrings([]string{"b", "a", "b", "c", "a"}))
	assert.Equal(t, []string{}, UniqueStrings(nil))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10, "..."))
	assert.Equal(t, "abcd...", TruncateString("abcdefghij", 7, "..."))
	assert.Equal(t, "..", TruncateString("abcdefghij", 2, "..."))
}

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "a b", JoinNonEmpty(" ", "", " a ", "", "b"))
	assert.Equal(t, "", JoinNonEmpty(" "))
}

func TestFirstNonEmptyAndContains(t *testing.T) {
	assert.Equal(t, "x", FirstNonEmpty("", "x", "y"))
	assert.True(t, ContainsString([]string{"a", "b"}, "b"))
	assert.False(t, ContainsString(nil, "b"))
}
