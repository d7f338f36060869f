package hook

import "fmt"

// Interface is a unit of work with a recovery path and an unconditional epilogue.
type Interface interface {
	Try() error
	Catch(err error) error
	Finally()
}

// Call runs Try, hands a failure to Catch and always runs Finally, even when Try panics.
func Call(hook Interface) (err error) {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}

	defer hook.Finally()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred during hook execution: %v", r)
		}
	}()

	tryErr := hook.Try()
	if tryErr != nil {
		err = hook.Catch(tryErr)
		return err
	}

	return nil
}

// Funcs adapts plain functions to Interface. Nil members are no-ops; a nil CatchFn returns the error unchanged.
type Funcs struct {
	TryFn     func() error
	CatchFn   func(err error) error
	FinallyFn func()
}

func (f Funcs) Try() error {
	if f.TryFn == nil {
		return nil
	}
	return f.TryFn()
}

func (f Funcs) Catch(err error) error {
	if f.CatchFn == nil {
		return err
	}
	return f.CatchFn(err)
}

func (f Funcs) Finally() {
	if f.FinallyFn != nil {
		f.FinallyFn()
	}
}
