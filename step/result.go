package step

import (
	"fmt"
	"strings"
	stdtime "time"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/time"
)

// Result holds the outcome of one step.
type Result struct {
	Name     Name
	Status   common.OperationState
	Duration stdtime.Duration
	// Reason explains a skip.
	Reason string
	// Warnings are non-fatal failures logged while the step ran.
	Warnings []error
	Err      error
}

// IsFailed reports whether the step failed.
func (r *Result) IsFailed() bool {
	return r.Status == common.StateFailed
}

// Report collects the results of a run in execution order.
type Report struct {
	Results []*Result
	// Stopped is set when the run halted early on request.
	Stopped bool
	StopAt  Name
}

func (r *Report) add(res *Result) { r.Results = append(r.Results, res) }

func (r *Report) withStatus(states ...common.OperationState) []Name {
	var out []Name
	for _, res := range r.Results {
		for _, s := range states {
			if res.Status == s {
				out = append(out, res.Name)
				break
			}
		}
	}
	return out
}

// Executed returns the steps that ran, whether they succeeded or failed.
func (r *Report) Executed() []Name {
	return r.withStatus(common.StateSuccess, common.StateFailed)
}

// Skipped returns the steps that were skipped.
func (r *Report) Skipped() []Name {
	return r.withStatus(common.StateSkipped)
}

// Failed returns the failed step, nil if none failed.
func (r *Report) Failed() *Result {
	for _, res := range r.Results {
		if res.IsFailed() {
			return res
		}
	}
	return nil
}

// Get returns the result of step n.
func (r *Report) Get(n Name) (*Result, bool) {
	for _, res := range r.Results {
		if res.Name == n {
			return res, true
		}
	}
	return nil, false
}

// Warnings returns every non-fatal failure in order.
func (r *Report) Warnings() []error {
	var out []error
	for _, res := range r.Results {
		out = append(out, res.Warnings...)
	}
	return out
}

// Duration is the total time spent in steps.
func (r *Report) Duration() stdtime.Duration {
	var d stdtime.Duration
	for _, res := range r.Results {
		d += res.Duration
	}
	return d
}

// Summary renders one line per step.
func (r *Report) Summary() string {
	var b strings.Builder
	for _, res := range r.Results {
		fmt.Fprintf(&b, "%-13s %-8s", res.Name, strings.ToUpper(res.Status.String()))
		switch {
		case res.Status == common.StateSkipped:
			if res.Reason != "" {
				fmt.Fprintf(&b, " (%s)", res.Reason)
			}
		default:
			fmt.Fprintf(&b, " %s", time.ShortDur(res.Duration))
		}
		if len(res.Warnings) > 0 {
			fmt.Fprintf(&b, " [%d warning(s)]", len(res.Warnings))
		}
		b.WriteString("\n")
	}
	if r.Stopped {
		fmt.Fprintf(&b, "stopped after %s\n", r.StopAt)
	}
	fmt.Fprintf(&b, "total %s\n", time.ShortDur(r.Duration()))
	return b.String()
}
