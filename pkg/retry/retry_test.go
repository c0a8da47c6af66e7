package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fastPolicy(n int) Policy {
	return Policy{MaxAttempts: n, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 2}
}

func TestDo_DefaultPolicySingleAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), DefaultPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, Transient(errBoom)
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errBoom)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", v, calls)
	}
}

func TestDo_StopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if !errors.Is(err, errBoom) || IsTransient(err) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 0, InitialWait: time.Hour, MaxWait: time.Hour}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func(context.Context) (int, error) { return 0, Transient(errBoom) })
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	fail := func(context.Context) ([]string, error) { return nil, errBoom }
	ok := func(context.Context) ([]string, error) { return []string{"x"}, nil }

	v, used, err := Fallback(ctx, ok, fail)
	if err != nil || used || len(v) != 1 {
		t.Errorf("primary success: v=%v used=%v err=%v", v, used, err)
	}

	v, used, err = Fallback(ctx, fail, ok)
	if err != nil || !used || len(v) != 1 {
		t.Errorf("fallback success: v=%v used=%v err=%v", v, used, err)
	}

	errOther := errors.New("other")
	_, used, err = Fallback(ctx, fail, func(context.Context) ([]string, error) { return nil, errOther })
	if !used || !errors.Is(err, errOther) || !errors.Is(err, errBoom) {
		t.Errorf("both failing: used=%v err=%v", used, err)
	}
}

func TestWithAttempts(t *testing.T) {
	if got := DefaultPolicy().WithAttempts(0).MaxAttempts; got != 1 {
		t.Errorf("WithAttempts(0) = %d, want 1", got)
	}
	if got := DefaultPolicy().WithAttempts(4).MaxAttempts; got != 4 {
		t.Errorf("WithAttempts(4) = %d, want 4", got)
	}
}
