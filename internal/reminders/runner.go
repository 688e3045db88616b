package reminders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPassInProgress is returned by a trigger while the same task runs.
var ErrPassInProgress = errors.New("reminders: pass already in progress")

const (
	taskDispatch = "dispatch"
	taskRollover = "rollover"
)

// DefaultInterval is the dispatch cadence.
const DefaultInterval = time.Minute

// Runner schedules dispatch and rollover passes. Each task runs at most
// once at a time; a trigger that lands on a running pass is dropped.
type Runner struct {
	dispatcher   *Dispatcher
	rollover     *Rollover
	interval     time.Duration
	rolloverHour int
	options

	dispatching atomic.Bool
	rolling     atomic.Bool
	wg          sync.WaitGroup
}

// NewRunner builds a runner. rolloverHour is clamped to [0, 23].
func NewRunner(d *Dispatcher, r *Rollover, interval time.Duration, rolloverHour int, opts ...Option) *Runner {
	if d == nil || r == nil {
		panic("reminders: runner requires a dispatcher and a rollover")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	rolloverHour = min(max(rolloverHour, 0), 23)
	return &Runner{
		dispatcher:   d,
		rollover:     r,
		interval:     interval,
		rolloverHour: rolloverHour,
		options:      buildOptions(opts),
	}
}

// NextRollover returns the first hour:00 in loc strictly after now.
func NextRollover(now time.Time, hour int, loc *time.Location) time.Time {
	n := now.In(loc)
	y, m, d := n.Date()
	next := time.Date(y, m, d, hour, 0, 0, 0, loc)
	if !next.After(n) {
		next = time.Date(y, m, d+1, hour, 0, 0, 0, loc)
	}
	return next
}

// Run blocks until ctx is cancelled, then waits for running passes.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	timer := time.NewTimer(r.untilRollover())
	defer timer.Stop()

	r.logger.Info("reminders: scheduler started",
		"interval", r.interval.String(), "rollover_hour", r.rolloverHour, "window", r.dispatcher.window.String())

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			r.logger.Info("reminders: scheduler stopped")
			return nil
		case <-ticker.C:
			r.spawn(ctx, taskDispatch, func(ctx context.Context) error {
				_, err := r.TriggerDispatch(ctx)
				return err
			})
		case <-timer.C:
			r.spawn(ctx, taskRollover, func(ctx context.Context) error {
				_, err := r.TriggerRollover(ctx)
				return err
			})
			timer.Reset(r.untilRollover())
		}
	}
}

func (r *Runner) untilRollover() time.Duration {
	now := r.now()
	return NextRollover(now, r.rolloverHour, r.loc).Sub(now)
}

func (r *Runner) spawn(ctx context.Context, task string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, ErrPassInProgress) {
			r.logger.Error("reminders: scheduled pass failed", "task", task, "error", err)
		}
	}()
}

// TriggerDispatch runs a dispatch pass now.
func (r *Runner) TriggerDispatch(ctx context.Context) (Report, error) {
	return guarded(ctx, r, &r.dispatching, taskDispatch, r.dispatcher.Dispatch)
}

// TriggerRollover runs a rollover pass now.
func (r *Runner) TriggerRollover(ctx context.Context) (RolloverReport, error) {
	return guarded(ctx, r, &r.rolling, taskRollover, r.rollover.Run)
}

func guarded[T any](ctx context.Context, r *Runner, running *atomic.Bool, task string, pass func(context.Context) (T, error)) (T, error) {
	var zero T
	if !running.CompareAndSwap(false, true) {
		r.logger.Warn("reminders: skipping overlapping pass", "task", task)
		r.metrics.ObserveSkippedPass(task)
		return zero, ErrPassInProgress
	}
	defer running.Store(false)

	start := time.Now()
	out, err := pass(ctx)
	r.metrics.ObservePass(task, time.Since(start))
	return out, err
}
