// Package eberr holds the error taxonomy shared by the lifecycle framework and the easyblocks.
//
// Configuration and dependency errors are raised as soon as they are detected. Command failures
// carry the failing command with its exit code and captured output. Sanity failures aggregate
// every missing artifact. Patch errors report the file and pattern that did not behave.
package eberr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// tailLines is how much captured output a CommandError keeps in its message.
const tailLines = 20

// ConfigError reports a missing mandatory parameter, an unsupported version or conflicting options.
type ConfigError struct {
	Param string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Param == "" {
		return "configuration error: " + e.Msg
	}
	return fmt.Sprintf("configuration error for parameter '%s': %s", e.Param, e.Msg)
}

// NewConfigError builds a ConfigError for the given parameter.
func NewConfigError(param, format string, args ...interface{}) error {
	return &ConfigError{Param: param, Msg: fmt.Sprintf(format, args...)}
}

// DependencyError reports a required dependency that could not be resolved.
type DependencyError struct {
	Name       string
	Constraint string
	Msg        string
}

func (e *DependencyError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("dependency error: %s (%s): %s", e.Name, e.Constraint, e.Msg)
	}
	return fmt.Sprintf("dependency error: %s: %s", e.Name, e.Msg)
}

// NewDependencyError builds a DependencyError.
func NewDependencyError(name, constraint, format string, args ...interface{}) error {
	return &DependencyError{Name: name, Constraint: constraint, Msg: fmt.Sprintf(format, args...)}
}

// CommandError reports an external command that exited non-zero or could not be started.
type CommandError struct {
	Cmd      string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command %q failed with exit code %d", e.Cmd, e.ExitCode)
	if e.Dir != "" {
		fmt.Fprintf(&b, " (in %s)", e.Dir)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := Tail(e.Stderr, tailLines); out != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", out)
	} else if out := Tail(e.Stdout, tailLines); out != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", out)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

// PatchError reports a substitution that matched an unexpected number of times or a failed file operation.
type PatchError struct {
	File    string
	Pattern string
	Op      string
	Matches int
	Want    int
	Err     error
}

func (e *PatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("patch error: %s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("patch error: pattern %q in %s matched %d time(s), expected %s",
		e.Pattern, e.File, e.Matches, describeCount(e.Want))
}

func (e *PatchError) Unwrap() error { return e.Err }

func describeCount(want int) string {
	switch {
	case want == 0:
		return "at least one"
	case want < 0:
		return "any number"
	default:
		return fmt.Sprintf("exactly %d", want)
	}
}

// SanityError surfaces a failed sanity check with every collected reason.
type SanityError struct {
	Reasons []string
}

func (e *SanityError) Error() string {
	return "sanity check failed: " + strings.Join(e.Reasons, "; ")
}

// StepError is the failure of one lifecycle step.
type StepError struct {
	Step        string
	Err         error
	Recoverable bool
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step '%s' failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// nonFatal marks an error the step executor logs and continues past.
type nonFatal struct {
	err error
}

func (n *nonFatal) Error() string { return n.err.Error() }
func (n *nonFatal) Unwrap() error { return n.err }

// NonFatal downgrades err so the step executor logs it as a warning.
func NonFatal(err error) error {
	if err == nil {
		return nil
	}
	return &nonFatal{err: err}
}

// IsNonFatal reports whether err was downgraded with NonFatal.
func IsNonFatal(err error) bool {
	var nf *nonFatal
	return errors.As(err, &nf)
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsDependency reports whether err is (or wraps) a DependencyError.
func IsDependency(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

// AsCommand extracts a CommandError from err.
func AsCommand(err error) (*CommandError, bool) {
	var ce *CommandError
	ok := errors.As(err, &ce)
	return ce, ok
}

// AsStep extracts a StepError from err.
func AsStep(err error) (*StepError, bool) {
	var se *StepError
	ok := errors.As(err, &se)
	return se, ok
}

// AsSanity extracts a SanityError from err.
func AsSanity(err error) (*SanityError, bool) {
	var se *SanityError
	ok := errors.As(err, &se)
	return se, ok
}

// AsPatch extracts a PatchError from err.
func AsPatch(err error) (*PatchError, bool) {
	var pe *PatchError
	ok := errors.As(err, &pe)
	return pe, ok
}

// Tail returns the last n lines of s.
func Tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
