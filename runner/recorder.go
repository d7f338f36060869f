package runner

import (
	"context"
	"regexp"
	"sync"

	"github.com/mensylisir/xmbuild/eberr"
)

// Call is one command seen by a Recorder.
type Call struct {
	Cmd string
	Dir string
	Env []string
}

// Response scripts the outcome of commands matching a pattern.
type Response struct {
	Match    *regexp.Regexp
	Stdout   string
	Stderr   string
	ExitCode int
	// Do runs in place of the command, e.g. to create the files an install would produce.
	Do func(call Call) error
}

// Recorder is a Runner that records commands instead of executing them. Commands without a
// matching Response succeed with empty output. It backs dry runs and easyblock tests.
type Recorder struct {
	mu        sync.Mutex
	Calls     []Call
	responses []Response
}

// NewRecorder returns a Recorder with the given scripted responses, matched in order.
func NewRecorder(responses ...Response) *Recorder {
	return &Recorder{responses: responses}
}

// On adds a response for commands matching pattern.
func (r *Recorder) On(pattern string, resp Response) *Recorder {
	resp.Match = regexp.MustCompile(pattern)
	r.mu.Lock()
	r.responses = append(r.responses, resp)
	r.mu.Unlock()
	return r
}

func (r *Recorder) Run(_ context.Context, command string, opts ...Option) (*Result, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	call := Call{Cmd: command, Dir: o.dir, Env: o.env}

	r.mu.Lock()
	r.Calls = append(r.Calls, call)
	var resp *Response
	for i := range r.responses {
		if r.responses[i].Match == nil || r.responses[i].Match.MatchString(command) {
			resp = &r.responses[i]
			break
		}
	}
	r.mu.Unlock()

	res := &Result{Cmd: command, Dir: o.dir}
	if resp == nil {
		return res, nil
	}
	if resp.Do != nil {
		if err := resp.Do(call); err != nil {
			return res, &eberr.CommandError{Cmd: command, Dir: o.dir, ExitCode: -1, Err: err}
		}
	}
	res.Stdout, res.Stderr, res.ExitCode = resp.Stdout, resp.Stderr, resp.ExitCode
	if res.ExitCode != 0 && !o.tolerate {
		return res, &eberr.CommandError{Cmd: command, Dir: o.dir, ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	}
	return res, nil
}

// Commands returns the recorded command lines.
func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Cmd
	}
	return out
}
