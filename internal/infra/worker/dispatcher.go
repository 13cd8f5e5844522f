// File: internal/infra/worker/dispatcher.go
package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Job handles the i-th item of a dispatch run.
type Job func(ctx context.Context, i int)

// Dispatcher fans work out to a small set of workers that share one rate
// limiter, so no two job starts are closer than the configured interval no
// matter how many workers run.
type Dispatcher struct {
	limiter *rate.Limiter
	workers int
}

// NewDispatcher builds a dispatcher admitting one job per interval.
// interval <= 0 disables throttling; workers <= 0 means one worker.
func NewDispatcher(interval time.Duration, workers int) *Dispatcher {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{limiter: rate.NewLimiter(limit, 1), workers: workers}
}

func (d *Dispatcher) Workers() int { return d.workers }

// Wait blocks until the limiter admits one more send. Callers retrying a job
// use it so retries count against the same ceiling.
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}

// Run invokes job for every index in [0, n) and returns when all calls have
// finished. With a single worker, indexes are processed strictly in order.
// job is always called for each index, even after ctx is done, so callers
// can account for every item.
func (d *Dispatcher) Run(ctx context.Context, n int, job Job) {
	if n <= 0 {
		return
	}
	if d.workers == 1 || n == 1 {
		for i := 0; i < n; i++ {
			_ = d.Wait(ctx)
			job(ctx, i)
		}
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := d.workers
	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				_ = d.Wait(ctx)
				job(ctx, i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
