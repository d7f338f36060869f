package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_NilHook(t *testing.T) {
	assert.Error(t, Call(nil))
}

func TestCall_FinallyRunsOnSuccessErrorAndPanic(t *testing.T) {
	finally := 0
	err := Call(Funcs{TryFn: func() error { return nil }, FinallyFn: func() { finally++ }})
	require.NoError(t, err)

	boom := errors.New("boom")
	caught := false
	err = Call(Funcs{
		TryFn:     func() error { return boom },
		CatchFn:   func(e error) error { caught = true; return e },
		FinallyFn: func() { finally++ },
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, caught)

	err = Call(Funcs{TryFn: func() error { panic("kaput") }, FinallyFn: func() { finally++ }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaput")
	assert.Equal(t, 3, finally)
}

func TestFuncs_DefaultCatchPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	assert.ErrorIs(t, Call(Funcs{TryFn: func() error { return boom }}), boom)
}
