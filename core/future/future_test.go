package future

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResolvedIsImmediatelyDone(t *testing.T) {
	f := Resolved(7)
	select {
	case <-f.Done():
	default:
		t.Fatal("resolved future must be done")
	}
	v, err := f.Await(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("Await = %d, %v", v, err)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	f := Go(func() (int, error) { panic("boom") })
	_, err := f.Await(context.Background())
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Value != "boom" || len(pe.Stack) == 0 {
		t.Fatalf("unexpected panic error: %+v", pe)
	}
}

func TestCompleteOnlyOnce(t *testing.T) {
	f, complete := New[string]()
	complete("first", nil)
	complete("second", errors.New("late"))
	v, err := f.Await(context.Background())
	if v != "first" || err != nil {
		t.Fatalf("Await = %q, %v", v, err)
	}
}

func TestThenPropagatesError(t *testing.T) {
	sentinel := errors.New("send failed")
	called := false
	out := Then(Failed[struct{}](sentinel), func(struct{}) (int, error) {
		called = true
		return 1, nil
	})
	if _, err := out.Await(context.Background()); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if called {
		t.Fatal("continuation must not run on failure")
	}
}

func TestAwaitHonoursContext(t *testing.T) {
	f, _ := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
