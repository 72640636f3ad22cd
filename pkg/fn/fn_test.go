package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParMap_PreservesOrder(t *testing.T) {
	items := []int{5, 3, 8, 1, 9, 2}
	out := ParMap(items, 3, func(v int) int { return v * 2 })
	for i, v := range out {
		if v != items[i]*2 {
			t.Errorf("index %d: got %d, want %d", i, v, items[i]*2)
		}
	}
}

func TestCollect_FirstError(t *testing.T) {
	boom := errors.New("boom")
	results := []Result[int]{Ok(1), Err[int](boom), Ok(3)}
	if _, err := Collect(results).Unwrap(); !errors.Is(err, boom) {
		t.Errorf("expected first error, got %v", err)
	}

	ok := []Result[int]{Ok(1), Ok(2)}
	vals, err := Collect(ok).Unwrap()
	if err != nil || len(vals) != 2 {
		t.Errorf("Collect of ok results = (%v, %v)", vals, err)
	}
}

func TestSplit(t *testing.T) {
	got := Split([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Errorf("unexpected split shape: %v", got)
	}
	if Split([]int{1}, 0) != nil {
		t.Error("n <= 0 should return nil")
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, v int) Result[int] { return Err[int](boom) }
	called := false
	second := func(_ context.Context, v int) Result[int] { called = true; return Ok(v) }

	r := Then(first, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if called {
		t.Error("second stage ran after first failed")
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Errf[int]("attempt %d", attempts)
		}
		return Ok(42)
	})
	v, err := r.Unwrap()
	if err != nil || v != 42 {
		t.Errorf("got (%d, %v), want (42, nil)", v, err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
