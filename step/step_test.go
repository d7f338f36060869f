package step

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/logger"
)

type trace struct{ ran []Name }

func (tr *trace) fn(n Name) Func {
	return func(context.Context) error {
		tr.ran = append(tr.ran, n)
		return nil
	}
}

func fullLifecycle(tr *trace) []Step {
	var steps []Step
	for _, n := range Order() {
		steps = append(steps, New(n, tr.fn(n)))
	}
	return steps
}

func newExecutor() *Executor { return NewExecutor(logger.Discard()) }

func isSubsequenceOfOrder(t *testing.T, ran []Name) {
	t.Helper()
	last := -1
	for _, n := range ran {
		idx := Index(n)
		require.GreaterOrEqual(t, idx, 0, "unknown step %s", n)
		require.Greater(t, idx, last, "step %s out of order or repeated in %v", n, ran)
		last = idx
	}
}

func TestParseNames(t *testing.T) {
	got, err := ParseNames("configure, post_install,SanityCheck,,module")
	require.NoError(t, err)
	assert.Equal(t, []Name{Configure, PostInstall, SanityCheck, Module}, got)

	_, err = ParseNames("configure,compile")
	assert.True(t, eberr.IsConfig(err))

	assert.Equal(t, 0, Index(Fetch))
	assert.Equal(t, len(Order())-1, Index(Module))
	assert.Equal(t, -1, Index("extensions"))
	assert.False(t, Skippable(Module))
	assert.True(t, Skippable(Test))
}

func TestRun_StepOrderInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	all := Order()
	for i := 0; i < 200; i++ {
		var skip []Name
		for _, n := range all {
			if rng.Intn(3) == 0 {
				skip = append(skip, n)
			}
		}
		var stop Name
		if rng.Intn(2) == 0 {
			stop = all[rng.Intn(len(all))]
		}
		tr := &trace{}
		report, err := newExecutor().Run(context.Background(), fullLifecycle(tr), Options{Skip: skip, StopAt: stop})
		require.NoError(t, err)
		isSubsequenceOfOrder(t, tr.ran)
		assert.Equal(t, tr.ran, report.Executed())
		for _, n := range report.Skipped() {
			assert.True(t, Skippable(n))
		}
	}
}

func TestRun_RejectsBadOrder(t *testing.T) {
	tr := &trace{}
	_, err := newExecutor().Run(context.Background(), []Step{New(Build, tr.fn(Build)), New(Configure, tr.fn(Configure))}, Options{})
	assert.ErrorContains(t, err, "out of order")

	_, err = newExecutor().Run(context.Background(), []Step{New(Build, tr.fn(Build)), New(Build, tr.fn(Build))}, Options{})
	assert.ErrorContains(t, err, "twice")
	assert.Empty(t, tr.ran)

	_, err = newExecutor().Run(context.Background(), fullLifecycle(tr), Options{StopAt: "deploy"})
	assert.True(t, eberr.IsConfig(err))
}

func TestRun_FailureStopsLaterSteps(t *testing.T) {
	tr := &trace{}
	steps := fullLifecycle(tr)
	cmdErr := &eberr.CommandError{Cmd: "make -j 4", ExitCode: 1, Stderr: "error: foo.c"}
	steps[Index(Build)].Funcs = []Func{func(context.Context) error { return cmdErr }}

	report, err := newExecutor().Run(context.Background(), steps, Options{})
	require.Error(t, err)
	se, ok := eberr.AsStep(err)
	require.True(t, ok)
	assert.Equal(t, "build", se.Step)
	assert.False(t, se.Recoverable)
	ce, ok := eberr.AsCommand(err)
	require.True(t, ok)
	assert.Equal(t, 1, ce.ExitCode)
	assert.Equal(t, "make -j 4", ce.Cmd)

	assert.NotContains(t, tr.ran, Install)
	assert.Equal(t, []Name{Fetch, Extract, Patch, Prepare, Configure}, tr.ran)
	require.NotNil(t, report.Failed())
	assert.Equal(t, Build, report.Failed().Name)
}

func TestRun_NonFatalContinues(t *testing.T) {
	tr := &trace{}
	steps := fullLifecycle(tr)
	steps[Index(Test)].Funcs = []Func{
		func(context.Context) error { return eberr.NonFatal(errors.New("2 tests failed")) },
		tr.fn(Test),
	}
	report, err := newExecutor().Run(context.Background(), steps, Options{})
	require.NoError(t, err)
	assert.Contains(t, tr.ran, Install)
	assert.Contains(t, tr.ran, Test)
	res, ok := report.Get(Test)
	require.True(t, ok)
	assert.Equal(t, common.StateSuccess, res.Status)
	assert.Len(t, report.Warnings(), 1)
}

func TestRun_PanicBecomesStepError(t *testing.T) {
	tr := &trace{}
	steps := fullLifecycle(tr)
	steps[Index(SanityCheck)].Funcs = []Func{func(context.Context) error { panic("boom") }}
	_, err := newExecutor().Run(context.Background(), steps, Options{})
	se, ok := eberr.AsStep(err)
	require.True(t, ok)
	assert.Equal(t, "sanity-check", se.Step)
	assert.True(t, se.Recoverable)
	assert.Contains(t, err.Error(), "boom")
	assert.NotContains(t, tr.ran, Cleanup)
}

func TestRun_OnlyAndNonSkippable(t *testing.T) {
	tr := &trace{}
	report, err := newExecutor().Run(context.Background(), fullLifecycle(tr), Options{Only: []Name{SanityCheck}})
	require.NoError(t, err)
	assert.Equal(t, []Name{SanityCheck}, tr.ran)
	assert.Len(t, report.Skipped(), len(Order())-1)

	tr = &trace{}
	_, err = newExecutor().Run(context.Background(), fullLifecycle(tr), Options{Skip: []Name{Module, Test}})
	require.NoError(t, err)
	assert.Contains(t, tr.ran, Module)
	assert.NotContains(t, tr.ran, Test)
}

func TestRun_StopAt(t *testing.T) {
	tr := &trace{}
	var out bytes.Buffer
	ex := newExecutor()
	ex.Out = &out
	report, err := ex.Run(context.Background(), fullLifecycle(tr), Options{StopAt: Configure})
	require.NoError(t, err)
	assert.Equal(t, Configure, tr.ran[len(tr.ran)-1])
	assert.True(t, report.Stopped)
	assert.Contains(t, report.Summary(), "stopped after configure")
	assert.Contains(t, out.String(), "configuring...")
}

func TestRun_StopAtStepWithNothingToDo(t *testing.T) {
	tr := &trace{}
	steps := []Step{New(Fetch, tr.fn(Fetch)), New(Configure), New(Build, tr.fn(Build)), New(Install, tr.fn(Install))}
	report, err := newExecutor().Run(context.Background(), steps, Options{StopAt: Configure})
	require.NoError(t, err)
	assert.Equal(t, []Name{Fetch}, tr.ran)
	assert.True(t, report.Stopped)
	assert.Equal(t, Configure, report.StopAt)
	assert.Equal(t, []Name{Configure}, report.Skipped())
}

func TestRun_StopAtSkippedStep(t *testing.T) {
	tr := &trace{}
	report, err := newExecutor().Run(context.Background(), fullLifecycle(tr), Options{StopAt: Test, Skip: []Name{Test}})
	require.NoError(t, err)
	assert.Equal(t, []Name{Fetch, Extract, Patch, Prepare, Configure, Build}, tr.ran)
	assert.True(t, report.Stopped)
	assert.NotContains(t, tr.ran, Install)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &trace{}
	steps := fullLifecycle(tr)
	steps[Index(Configure)].Funcs = append(steps[Index(Configure)].Funcs, func(context.Context) error {
		cancel()
		return nil
	})
	_, err := newExecutor().Run(ctx, steps, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, tr.ran, Build)
}
