// Package future provides the single deferred-result type used by command
// handlers and the asynchronous outbound sender.
package future

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is produced when the function behind a future panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Future is a value that becomes available at most once.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// New returns a pending future and the function that completes it.
// Only the first completion wins; later calls are ignored.
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.complete
}

// Resolved returns an already completed future holding v.
func Resolved[T any](v T) *Future[T] {
	f, complete := New[T]()
	complete(v, nil)
	return f
}

// Failed returns an already completed future holding err.
func Failed[T any](err error) *Future[T] {
	f, complete := New[T]()
	var zero T
	complete(zero, err)
	return f
}

// Go runs fn on a new goroutine. A panic inside fn completes the future with *PanicError.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, complete := New[T]()
	go func() {
		complete(Call(fn))
	}()
	return f
}

// Call runs fn on the current goroutine, converting a panic into *PanicError.
func Call[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the result is available or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then derives a future from f. fn runs only when f succeeds; errors pass through unchanged.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out, complete := New[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			complete(zero, f.err)
			return
		}
		complete(Call(func() (U, error) { return fn(f.val) }))
	}()
	return out
}
