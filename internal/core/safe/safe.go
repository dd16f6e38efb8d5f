// Package safe converts panics raised by engine call-outs into errors so the
// scheduler can log them and carry on with the frame.
package safe

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func recovered(r any) error {
	return &PanicError{Value: r, Stack: debug.Stack()}
}

// Call runs fn and returns its error, or a *PanicError if it panicked.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn()
}

// Call1 is Call for a one-argument function. Passing the argument separately
// keeps per-frame call sites free of closure allocations.
func Call1[A any](fn func(A) error, a A) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn(a)
}

// Call2 is Call for a two-argument function.
func Call2[A, B any](fn func(A, B) error, a A, b B) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn(a, b)
}

// Invoke runs a callback that cannot fail except by panicking.
func Invoke[T any](fn func(T), v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	fn(v)
	return nil
}
