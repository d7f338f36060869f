package step

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/hook"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/time"
)

// Executor runs steps in canonical order.
type Executor struct {
	Log *logrus.Entry
	// Out receives one progress line per step when set.
	Out io.Writer
}

// NewExecutor returns an Executor logging to log.
func NewExecutor(log *logrus.Entry) *Executor {
	return &Executor{Log: log}
}

// Validate checks that steps are known, in canonical order and not repeated.
func Validate(steps []Step) error {
	last := -1
	for _, s := range steps {
		idx := Index(s.Name)
		if idx < 0 {
			return errors.Errorf("unknown step %q", s.Name)
		}
		if idx == last {
			return errors.Errorf("step %q is listed twice", s.Name)
		}
		if idx < last {
			return errors.Errorf("step %q is out of order (after %q)", s.Name, order[last])
		}
		last = idx
	}
	return nil
}

func validateOptions(opts Options) error {
	for _, n := range append(append([]Name{}, opts.Skip...), opts.Only...) {
		if !Valid(n) {
			return eberr.NewConfigError("skipsteps", "unknown step %q", n)
		}
	}
	if opts.StopAt != "" && !Valid(opts.StopAt) {
		return eberr.NewConfigError("stop", "unknown step %q", opts.StopAt)
	}
	return nil
}

// recoverable reports whether a failure of n leaves a complete install tree behind,
// so the run can be resumed with a sanity-check or module only run.
func recoverable(n Name) bool {
	return Index(n) > Index(Install)
}

func (e *Executor) progress(format string, args ...interface{}) {
	if e.Out != nil {
		fmt.Fprintf(e.Out, "== "+format+"\n", args...)
	}
}

// Run executes steps. It stops at the first fatal failure, which is returned as *eberr.StepError
// together with the report so far. Non-fatal failures are logged and recorded as warnings.
// Nothing done by earlier steps is rolled back.
func (e *Executor) Run(ctx context.Context, steps []Step, opts Options) (*Report, error) {
	if err := Validate(steps); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, s := range steps {
		log := logger.ForStep(e.Log, string(s.Name))

		if reason, skip := e.skipReason(s, opts, log); skip {
			log.Infof("skipping step: %s", reason)
			e.progress("%s [skipped]", s.Description)
			report.add(&Result{Name: s.Name, Status: common.StateSkipped, Reason: reason})
			if opts.StopAt == s.Name {
				stopAt(report, s.Name, log)
				break
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return report, errors.Wrapf(err, "run interrupted before step %s", s.Name)
		}

		e.progress("%s...", s.Description)
		log.Infof("starting step: %s", s.Description)
		res := e.runStep(ctx, s, log)
		report.add(res)

		if res.IsFailed() {
			log.WithError(res.Err).Errorf("step failed after %s", time.ShortDur(res.Duration))
			e.progress("%s FAILED", s.Name)
			return report, res.Err
		}
		log.Infof("step completed in %s", time.ShortDur(res.Duration))

		if opts.StopAt == s.Name {
			stopAt(report, s.Name, log)
			break
		}
	}
	return report, nil
}

func stopAt(report *Report, n Name, log *logrus.Entry) {
	log.Info("stopping as requested")
	report.Stopped = true
	report.StopAt = n
}

func (e *Executor) skipReason(s Step, opts Options, log *logrus.Entry) (string, bool) {
	if len(opts.Only) > 0 {
		if !containsName(opts.Only, s.Name) {
			return "not selected", true
		}
		return "", false
	}
	if containsName(opts.Skip, s.Name) {
		if s.Skippable {
			return "skipped on request", true
		}
		log.Warn("step cannot be skipped, running it anyway")
	}
	if len(s.Funcs) == 0 {
		return "nothing to do", true
	}
	return "", false
}

func (e *Executor) runStep(ctx context.Context, s Step, log *logrus.Entry) *Result {
	res := &Result{Name: s.Name, Status: common.StateRunning}
	sw := time.NewStopwatch()
	defer func() { res.Duration = sw.Elapsed() }()

	for i, fn := range s.Funcs {
		if fn == nil {
			continue
		}
		f := fn
		err := hook.Call(hook.Funcs{TryFn: func() error { return f(ctx) }})
		if err == nil {
			continue
		}
		if eberr.IsNonFatal(err) {
			log.WithError(err).Warnf("non-fatal failure in callable %d, continuing", i+1)
			res.Warnings = append(res.Warnings, err)
			continue
		}
		res.Status = common.StateFailed
		res.Err = &eberr.StepError{Step: string(s.Name), Err: err, Recoverable: recoverable(s.Name)}
		return res
	}
	res.Status = common.StateSuccess
	return res
}
