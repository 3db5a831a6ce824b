package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"booklend/service/lifecycle"

	cron "github.com/robfig/cron/v3"
)

// Driver owns the two periodic sweep timers. Each job runs inside its
// own recover and skip-if-still-running chain, so one bad or slow cycle
// never kills or piles up future cycles.
type Driver struct {
	cron         *cron.Cron
	sweeper      lifecycle.Sweeper
	log          *slog.Logger
	overdueEvery time.Duration
	dueSoonEvery time.Duration

	mu      sync.Mutex
	started bool
}

func New(sweeper lifecycle.Sweeper, log *slog.Logger, overdueEvery, dueSoonEvery time.Duration) *Driver {
	cl := cronLogger{log: log}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))
	return &Driver{
		cron:         c,
		sweeper:      sweeper,
		log:          log,
		overdueEvery: overdueEvery,
		dueSoonEvery: dueSoonEvery,
	}
}

// Start schedules both sweeps and starts the timers. Calling it again
// on a started driver does nothing.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	if _, err := d.cron.AddFunc(every(d.overdueEvery), d.overdueJob); err != nil {
		return err
	}
	if _, err := d.cron.AddFunc(every(d.dueSoonEvery), d.dueSoonJob); err != nil {
		return err
	}
	d.cron.Start()
	d.started = true
	d.log.Info("lifecycle scheduler started",
		"overdue_every", d.overdueEvery, "due_soon_every", d.dueSoonEvery)
	return nil
}

// Stop halts the timers and waits for any in-flight job to finish.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	<-d.cron.Stop().Done()
	d.started = false
	d.log.Info("lifecycle scheduler stopped")
}

// Jobs returns the number of scheduled cron entries.
func (d *Driver) Jobs() int { return len(d.cron.Entries()) }

// RunOverdueSweepOnce runs the overdue sweep outside the timer cadence.
func (d *Driver) RunOverdueSweepOnce(ctx context.Context, now time.Time) (lifecycle.Summary, error) {
	return d.sweeper.OverdueSweep(ctx, now)
}

// RunDueSoonSweepOnce runs the due-soon sweep outside the timer cadence.
func (d *Driver) RunDueSoonSweepOnce(ctx context.Context, now time.Time) (lifecycle.Summary, error) {
	return d.sweeper.DueSoonSweep(ctx, now)
}

// sweepTimeout caps how long one scheduled sweep may run before its
// store and send calls start failing with context errors.
const sweepTimeout = 10 * time.Minute

func (d *Driver) overdueJob() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	sum, err := d.sweeper.OverdueSweep(ctx, time.Now().UTC())
	d.report("overdue", sum, err)
}

func (d *Driver) dueSoonJob() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	sum, err := d.sweeper.DueSoonSweep(ctx, time.Now().UTC())
	d.report("due_soon", sum, err)
}

func (d *Driver) report(sweep string, sum lifecycle.Summary, err error) {
	if err != nil {
		// Log and carry on; the next scheduled cycle is unaffected.
		d.log.Error("sweep failed", "sweep", sweep, "code", lifecycle.Code(err), "err", err)
		return
	}
	d.log.Info("sweep done", "sweep", sweep,
		"examined", sum.Examined, "transitioned", sum.Transitioned,
		"notified", sum.Notified, "skipped", sum.Skipped, "failed", sum.Failed)
}

func every(d time.Duration) string { return "@every " + d.String() }

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Info("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
