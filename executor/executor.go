package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultShell interprets command strings.
const DefaultShell = "/bin/bash"

// waitDelay bounds how long Execute waits for output pipes after the command was killed.
const waitDelay = 2 * time.Second

// Request describes one command invocation.
type Request struct {
	// Command is a shell command line, interpreted by the executor's shell.
	Command string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is the complete environment. Nil inherits the process environment.
	Env []string
	// Stdin is fed to the command when set.
	Stdin io.Reader
	// Output additionally receives combined stdout and stderr as they are produced.
	Output io.Writer
}

// Executor runs commands on the local machine.
type Executor interface {
	// Execute runs a command. A non-zero exit is reported through exitCode with a nil error;
	// err is set only when the command could not be run at all.
	Execute(ctx context.Context, req Request) (stdout string, stderr string, exitCode int, err error)
}

// localExecutor implements the Executor interface for local machine operations.
type localExecutor struct {
	shell string
}

// NewLocalExecutor creates an Executor that runs commands through shell (DefaultShell when empty).
func NewLocalExecutor(shell string) Executor {
	if shell == "" {
		shell = DefaultShell
	}
	return &localExecutor{shell: shell}
}

func (l *localExecutor) Execute(ctx context.Context, req Request) (string, string, int, error) {
	if strings.TrimSpace(req.Command) == "" {
		return "", "", 0, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, l.shell, "-c", req.Command)
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.Stdin = req.Stdin
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	if req.Output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, req.Output)
		cmd.Stderr = io.MultiWriter(&stderr, req.Output)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return stdout.String(), stderr.String(), 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode := 1
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			exitCode = status.ExitStatus()
			if status.Signaled() {
				exitCode = 128 + int(status.Signal())
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.String(), stderr.String(), exitCode, fmt.Errorf("command interrupted: %w", ctxErr)
		}
		return stdout.String(), stderr.String(), exitCode, nil
	}
	return stdout.String(), stderr.String(), -1, fmt.Errorf("failed to run command '%s': %w", req.Command, err)
}
