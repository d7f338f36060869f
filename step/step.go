// Package step holds the fixed installation lifecycle and the executor that walks it.
package step

import "context"

// Func is one callable of a step.
type Func func(ctx context.Context) error

// Step is one named phase of an installation with the callables that implement it.
type Step struct {
	Name        Name
	Description string
	Funcs       []Func
	Skippable   bool
}

// New returns the step n running funcs, with its default description and skippable flag.
func New(n Name, funcs ...Func) Step {
	return Step{
		Name:        n,
		Description: Description(n),
		Funcs:       funcs,
		Skippable:   Skippable(n),
	}
}

// Options select which steps run.
type Options struct {
	// Skip lists steps to skip; non-skippable steps still run.
	Skip []Name
	// StopAt halts the run after this step completes.
	StopAt Name
	// Only restricts the run to these steps; everything else is recorded as skipped.
	Only []Name
}
