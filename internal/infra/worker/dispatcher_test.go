//go:build !integration

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcher(t *testing.T) {
	t.Run("should process items in order with one worker", func(t *testing.T) {
		d := NewDispatcher(0, 1)
		var got []int
		d.Run(context.Background(), 5, func(ctx context.Context, i int) {
			got = append(got, i)
		})
		for i, v := range got {
			if v != i {
				t.Fatalf("expected ordered processing, got %v", got)
			}
		}
		if len(got) != 5 {
			t.Fatalf("expected 5 items, got %d", len(got))
		}
	})

	t.Run("should space job starts by the interval", func(t *testing.T) {
		interval := 20 * time.Millisecond
		d := NewDispatcher(interval, 1)
		var starts []time.Time
		d.Run(context.Background(), 4, func(ctx context.Context, i int) {
			starts = append(starts, time.Now())
		})
		for i := 1; i < len(starts); i++ {
			// allow a little scheduler jitter
			if gap := starts[i].Sub(starts[i-1]); gap < interval-5*time.Millisecond {
				t.Errorf("gap %d too short: %v", i, gap)
			}
		}
	})

	t.Run("should keep the ceiling with several workers", func(t *testing.T) {
		interval := 10 * time.Millisecond
		d := NewDispatcher(interval, 4)
		var mu sync.Mutex
		var starts []time.Time
		begin := time.Now()
		d.Run(context.Background(), 6, func(ctx context.Context, i int) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		})
		if len(starts) != 6 {
			t.Fatalf("expected 6 calls, got %d", len(starts))
		}
		// 6 admissions with burst 1 need at least 5 intervals.
		if elapsed := time.Since(begin); elapsed < 5*interval-5*time.Millisecond {
			t.Errorf("dispatch finished too fast: %v", elapsed)
		}
	})

	t.Run("should still call every job after cancellation", func(t *testing.T) {
		d := NewDispatcher(time.Hour, 1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var calls int32
		d.Run(ctx, 3, func(ctx context.Context, i int) {
			atomic.AddInt32(&calls, 1)
		})
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("should do nothing for zero items", func(t *testing.T) {
		d := NewDispatcher(time.Millisecond, 2)
		d.Run(context.Background(), 0, func(ctx context.Context, i int) {
			t.Fatal("job must not be called")
		})
	})
}
