package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/taskbot/core/future"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func newTestDispatcher(t *testing.T, retries int) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8, MaxRetries: retries, RetryBackoff: time.Millisecond})
	t.Cleanup(d.Close)
	return d
}

func await(t *testing.T, f *future.Future[struct{}]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.Await(ctx)
	if ctx.Err() != nil {
		t.Fatal("future never completed")
	}
	return err
}

func TestSubmitRetriesTransientErrors(t *testing.T) {
	d := newTestDispatcher(t, 2)
	var calls atomic.Int32
	f := d.Submit(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	})
	if err := await(t, f); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestSubmitStopsOnPermanentError(t *testing.T) {
	d := newTestDispatcher(t, 3)
	var calls atomic.Int32
	boom := errors.New("bad request (400)")
	f := d.Submit(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return boom
	})
	if err := await(t, f); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("permanent error retried: %d calls", calls.Load())
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestSubmitRecoversPanics(t *testing.T) {
	d := newTestDispatcher(t, 0)
	err := await(t, d.Submit(context.Background(), "send.text", "", func() error { panic("kaboom") }))
	var pe *future.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if err := await(t, d.Submit(context.Background(), "send.text", "", func() error { return nil })); err != nil {
		t.Fatalf("worker did not survive panic: %v", err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	d.Close()
	if err := await(t, d.Submit(context.Background(), "send.text", "", func() error { return nil })); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if err := d.Enqueue(context.Background(), "send.text", "", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("enqueue after close: %v", err)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4})
	var done atomic.Int32
	for i := 0; i < 4; i++ {
		if err := d.Enqueue(context.Background(), "send.text", "", func() error {
			done.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Close()
	if done.Load() != 4 {
		t.Fatalf("drained %d of 4", done.Load())
	}
}

func TestClassifyAndSanitize(t *testing.T) {
	if kind := ClassifyError(timeoutErr{}); kind != "timeout" {
		t.Fatalf("timeout kind = %q", kind)
	}
	if kind := ClassifyError(errors.New("telegram: internal (502)")); kind != "http_5xx" {
		t.Fatalf("5xx kind = %q", kind)
	}
	if !ShouldRetry(errors.New("telegram: bad gateway (502)")) {
		t.Fatal("5xx must be retried")
	}
	if ShouldRetry(context.Canceled) {
		t.Fatal("cancellation must not be retried")
	}
	msg := SanitizeError(errors.New(`Post "https://api.telegram.org/bot123456:ABC-def_1/sendMessage": timeout`))
	if want := `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`; msg != want {
		t.Fatalf("sanitized = %q", msg)
	}
}
