// Package sender runs outbound Telegram API calls on a bounded worker pool
// with retries and a global send rate.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/taskbot/core/future"
	"github.com/m3rciful/taskbot/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// PerSecond caps API calls across all workers; 0 means unlimited.
	PerSecond float64
	Burst     int
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
	done     func(error)
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts    Options
	limiter *rate.Limiter
	jobs    chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	limit := rate.Inf
	if opts.PerSecond > 0 {
		limit = rate.Limit(opts.PerSecond)
		if opts.Burst <= 0 {
			opts.Burst = 1
		}
	}

	d := &Dispatcher{
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
		jobs:    make(chan job, opts.QueueSize),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue schedules run for asynchronous execution without waiting for it.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	return d.enqueue(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// Submit schedules run and returns a future completed with its final outcome.
func (d *Dispatcher) Submit(ctx context.Context, action, endpoint string, run func() error) *future.Future[struct{}] {
	f, complete := future.New[struct{}]()
	j := job{
		ctx:      ctx,
		action:   action,
		endpoint: endpoint,
		run:      run,
		done:     func(err error) { complete(struct{}{}, err) },
	}
	if err := d.enqueue(j); err != nil {
		complete(struct{}{}, err)
	}
	return f
}

func (d *Dispatcher) enqueue(j job) error {
	if j.run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for workers to drain the queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		err := d.handleJob(j)
		if j.done != nil {
			j.done(err)
		}
	}
}

// attempt runs the job once; a panic inside run is reported as an error.
func attempt(j job) error {
	_, err := future.Call(func() (struct{}, error) { return struct{}{}, j.run() })
	return err
}

func (d *Dispatcher) handleJob(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	deadlineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, component, "send.start", sendLogAttrs(ctx, j)...)

	attempts := d.opts.MaxRetries + 1
	var lastErr error

attemptLoop:
	for n := 1; n <= attempts; n++ {
		if err := d.limiter.Wait(deadlineCtx); err != nil {
			lastErr = err
			break
		}

		lastErr = attempt(j)
		if lastErr == nil {
			if n > 1 {
				logger.Info(ctx, component, "send.retry.success",
					append(sendLogAttrs(ctx, j),
						slog.Int("attempt", n),
						slog.Int("elapsed_ms", durationToMS(time.Since(start))),
					)...,
				)
			}
			logSendSuccess(ctx, j, n, time.Since(start))
			return nil
		}
		if !ShouldRetry(lastErr) || n == attempts {
			break
		}

		delay := retryDelay(lastErr, d.opts.RetryBackoff*time.Duration(n))
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = deadlineCtx.Err()
			break attemptLoop
		case <-timer.C:
		}
		logger.Debug(ctx, component, "send.retry.backoff",
			append(sendLogAttrs(ctx, j),
				slog.Int("attempt", n),
				slog.Duration("delay", delay),
			)...,
		)
	}

	d.errs.Add(1)
	logSendFailure(ctx, j, lastErr, attempts, time.Since(start))
	return lastErr
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", j.action),
	}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	return attrs
}

func logSendSuccess(ctx context.Context, j job, attempt int, elapsed time.Duration) {
	attrs := sendLogAttrs(ctx, j)
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
	}
	attrs = append(attrs, slog.Int("elapsed_ms", durationToMS(elapsed)))
	logger.Debug(ctx, component, "send.success", attrs...)
}

func logSendFailure(ctx context.Context, j job, err error, attempts int, elapsed time.Duration) {
	attrs := sendLogAttrs(ctx, j)
	attrs = append(attrs,
		slog.String("error", SanitizeError(err)),
		slog.String("error_kind", ClassifyError(err)),
		slog.Int("elapsed_ms", durationToMS(elapsed)),
		slog.Int("attempts", attempts),
	)
	logger.Error(ctx, component, "send.fail", attrs...)
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}
