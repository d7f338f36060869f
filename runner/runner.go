package runner

import (
	"context"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/executor"
	"github.com/mensylisir/xmbuild/time"
	"github.com/mensylisir/xmbuild/util"
)

// Result is the outcome of one command.
type Result struct {
	Cmd      string
	Dir      string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout followed by stderr.
func (r *Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + r.Stderr
}

// Runner executes build commands. A non-zero exit is returned as *eberr.CommandError unless
// the call tolerates failure, in which case the caller inspects Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, command string, opts ...Option) (*Result, error)
}

// Environ supplies the environment commands run with.
type Environ interface {
	Environ() []string
}

type options struct {
	dir      string
	env      []string
	tolerate bool
	stdin    io.Reader
	quiet    bool
}

// Option adjusts a single Run call.
type Option func(*options)

// WithDir runs the command in dir.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithEnv replaces the environment for this call.
func WithEnv(env []string) Option {
	return func(o *options) { o.env = env }
}

// WithTolerate returns non-zero exits in the Result instead of as an error.
func WithTolerate() Option {
	return func(o *options) { o.tolerate = true }
}

// WithStdin feeds input to the command.
func WithStdin(input string) Option {
	return func(o *options) { o.stdin = strings.NewReader(input) }
}

// WithQuiet keeps command output out of the debug log.
func WithQuiet() Option {
	return func(o *options) { o.quiet = true }
}

// cmdRunner implements Runner on top of an executor.Executor.
type cmdRunner struct {
	exec executor.Executor
	env  Environ
	log  *logrus.Entry
}

// NewCmdRunner creates a Runner. env provides the default environment of every command and may be nil
// to inherit the process environment.
func NewCmdRunner(exec executor.Executor, env Environ, log *logrus.Entry) Runner {
	return &cmdRunner{exec: exec, env: env, log: log}
}

func (r *cmdRunner) Run(ctx context.Context, command string, opts ...Option) (*Result, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.env == nil && r.env != nil {
		o.env = r.env.Environ()
	}

	log := r.log.WithField(common.CommandField, command)
	if o.dir != "" {
		log = log.WithField("Dir", o.dir)
	}
	log.Info("running command")

	var output io.Writer
	if !o.quiet && r.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		output = log.WriterLevel(logrus.DebugLevel)
		defer output.(io.Closer).Close()
	}

	sw := time.NewStopwatch()
	stdout, stderr, code, err := r.exec.Execute(ctx, executor.Request{
		Command: command,
		Dir:     o.dir,
		Env:     o.env,
		Stdin:   o.stdin,
		Output:  output,
	})
	res := &Result{Cmd: command, Dir: o.dir, Stdout: stdout, Stderr: stderr, ExitCode: code}
	log = log.WithFields(logrus.Fields{"ExitCode": code, "Elapsed": time.ShortDur(sw.Elapsed())})

	if err != nil {
		log.WithError(err).Error("command could not be run")
		return res, &eberr.CommandError{Cmd: command, Dir: o.dir, ExitCode: code, Stdout: stdout, Stderr: stderr, Err: err}
	}
	if code != 0 {
		if o.tolerate {
			log.Warn("command failed (tolerated)")
			return res, nil
		}
		log.Error("command failed")
		return res, &eberr.CommandError{Cmd: command, Dir: o.dir, ExitCode: code, Stdout: stdout, Stderr: stderr}
	}
	log.Debug("command finished")
	return res, nil
}

// Command builds a shell-safe command line from arguments.
func Command(name string, args ...string) string {
	return shellquote.Join(append([]string{name}, args...)...)
}

// Line joins pre-quoted fragments (such as easyconfig options) into one command line, skipping empties.
func Line(parts ...string) string {
	return util.JoinNonEmpty(" ", parts...)
}

// Split breaks an option string into words using shell quoting rules.
func Split(s string) ([]string, error) {
	return shellquote.Split(s)
}

// Arg quotes a single word for use in a command line built with Line.
func Arg(s string) string {
	return shellquote.Join(s)
}
