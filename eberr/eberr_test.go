package eberr

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandError_MessageCarriesCommandAndExitCode(t *testing.T) {
	err := &CommandError{Cmd: "make -j 4", ExitCode: 2, Stderr: "line1\nline2\n"}
	msg := err.Error()
	assert.Contains(t, msg, `"make -j 4"`)
	assert.Contains(t, msg, "exit code 2")
	assert.Contains(t, msg, "line2")
}

func TestTail(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("l%d", i))
	}
	got := Tail(strings.Join(lines, "\n"), 3)
	assert.Equal(t, "l27\nl28\nl29", got)
	assert.Equal(t, "", Tail("", 3))
	assert.Equal(t, "a", Tail("a\n", 5))
}

func TestClassificationThroughWrapping(t *testing.T) {
	cfgErr := errors.Wrap(NewConfigError("version", "unsupported"), "init")
	assert.True(t, IsConfig(cfgErr))
	assert.False(t, IsDependency(cfgErr))

	depErr := fmt.Errorf("configure: %w", NewDependencyError("UCX", "", "not found"))
	assert.True(t, IsDependency(depErr))

	cmdErr := &StepError{Step: "build", Err: &CommandError{Cmd: "false", ExitCode: 1}}
	ce, ok := AsCommand(cmdErr)
	require.True(t, ok)
	assert.Equal(t, 1, ce.ExitCode)
	se, ok := AsStep(cmdErr)
	require.True(t, ok)
	assert.Equal(t, "build", se.Step)
}

func TestNonFatal(t *testing.T) {
	assert.Nil(t, NonFatal(nil))
	base := &CommandError{Cmd: "make check", ExitCode: 2}
	nf := NonFatal(base)
	assert.True(t, IsNonFatal(nf))
	assert.False(t, IsNonFatal(base))
	ce, ok := AsCommand(nf)
	require.True(t, ok)
	assert.Same(t, base, ce)
}

func TestPatchError_Message(t *testing.T) {
	e := &PatchError{File: "Makefile", Pattern: "^CC =.*$", Matches: 0, Want: 0}
	assert.Contains(t, e.Error(), "at least one")
	e = &PatchError{File: "Makefile", Pattern: "x", Matches: 3, Want: 1}
	assert.Contains(t, e.Error(), "exactly 1")
}
