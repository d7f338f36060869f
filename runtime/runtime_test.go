package runtime

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/runner"
)

func TestEnvironment_BasicOps(t *testing.T) {
	env := NewEnvironment([]string{"A=1", "B=two=2", "broken", "=nokey"})
	assert.Equal(t, "1", env.Get("A"))
	assert.Equal(t, "two=2", env.Get("B"))
	assert.Equal(t, []string{"A", "B"}, env.Keys())

	g := env.Generation()
	env.Set("C", "3")
	assert.Greater(t, env.Generation(), g)
	env.Unset("A")
	_, ok := env.Lookup("A")
	assert.False(t, ok)
	assert.Equal(t, []string{"B=two=2", "C=3"}, env.Environ())
}

func TestEnvironment_PathEditing(t *testing.T) {
	env := NewEnvironment([]string{"PATH=/usr/bin:/bin"})
	env.PrependPath("PATH", "/sw/bin", "/bin")
	assert.Equal(t, "/sw/bin:/bin:/usr/bin", env.Get("PATH"))
	env.AppendPath("PATH", "/usr/bin", "/opt/bin")
	assert.Equal(t, "/sw/bin:/bin:/usr/bin:/opt/bin", env.Get("PATH"))
	env.AppendPath("NEWVAR", "/x")
	assert.Equal(t, "/x", env.Get("NEWVAR"))
}

func TestEnvironment_ScopedRestoresOnErrorAndPanic(t *testing.T) {
	env := NewEnvironment([]string{"KEEP=yes"})
	boom := errors.New("boom")
	err := env.Scoped(func() error {
		env.Set("TEMP", "1")
		env.Unset("KEEP")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"KEEP=yes"}, env.Environ())

	err = env.Scoped(func() error {
		env.Set("TEMP", "2")
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, []string{"KEEP=yes"}, env.Environ())
}

func TestEnvironment_CloneIsIndependent(t *testing.T) {
	env := NewEnvironment([]string{"A=1"})
	c := env.Clone()
	c.Set("A", "2")
	assert.Equal(t, "1", env.Get("A"))
}

func TestNewRuntime(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	base := t.TempDir()
	rt, err := NewRuntime(Config{
		Name:        "zlib",
		Version:     "1.3",
		BuildPath:   filepath.Join(base, "build"),
		InstallPath: filepath.Join(base, "sw"),
		Easyblock:   "ConfigureMake",
		Env:         NewEnvironment(nil),
		Log:         &logger.BuildLog{Logger: l},
		DryRun:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "build", "zlib", "1.3"), rt.BuildDir)
	assert.Equal(t, filepath.Join(base, "sw", "zlib", "1.3"), rt.InstallDir)
	assert.Equal(t, 1, rt.Parallel)
	assert.Len(t, rt.ShortID(), 8)
	assert.Equal(t, rt.RunID, rt.Log.Data["RunID"])
	_, isRecorder := rt.Runner.(*runner.Recorder)
	assert.True(t, isRecorder)

	_, err = NewRuntime(Config{Name: "x"})
	assert.Error(t, err)
}
