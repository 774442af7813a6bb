// Package sender runs outbound Telegram calls on a small worker pool so a
// slow API does not hold up update handling.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")
)

// Options tunes a Dispatcher. Zero values take defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one job, retries included.
	MaxDuration time.Duration
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued sends with retries on transient failures.
type Dispatcher struct {
	opts Options
	jobs chan job
	wg   sync.WaitGroup
	errs atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts.defaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go d.worker()
	}
	return d
}

// Enqueue schedules run. It never blocks: a saturated queue returns
// ErrQueueFull and the caller decides whether to send inline.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// Close drains the queue and waits for the workers.
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
		d.runJob(j)
	}
}

func (d *Dispatcher) runJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			logger.Debug(ctx, "tg.sender", "send.ok", j.attrs(
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", time.Since(start)),
			)...)
			return
		}
		if attempt == attempts || !shouldRetry(err) {
			break
		}
		delay := retryDelay(err, d.opts.RetryBackoff, attempt)
		logger.Debug(ctx, "tg.sender", "send.retry", j.attrs(
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)...)
		if !sleep(deadline, delay) {
			err = deadline.Err()
			break
		}
	}

	d.errs.Add(1)
	kind := classifyError(err)
	metrics.IncSendFailure(kind)
	logger.Error(ctx, "tg.sender", "send.fail", j.attrs(
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("error_kind", kind),
		slog.Duration("elapsed", time.Since(start)),
	)...)
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// shouldRetry adds Telegram flood control to the transport check: a 429
// carries the wait time, so the job can be replayed as is.
func shouldRetry(err error) bool {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	return Transient(err)
}

func retryDelay(err error, backoff time.Duration, attempt int) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return backoff * time.Duration(attempt)
}
