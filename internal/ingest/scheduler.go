package ingest

import (
	"context"
	"math/rand"
	"time"
)

// Worker is one registered periodic job. Tick runs once per interval tick;
// an error is logged and does not stop the scheduler — the next tick runs
// regardless (ground: original_source main.rs's spawn(), which logs and
// continues rather than propagating a tick error).
type Worker interface {
	Name() string
	Interval() time.Duration
	Tick(ctx context.Context, wc *Context) error
}

// Spawn starts w on its own ticker goroutine. It returns immediately; the
// goroutine runs until ctx is cancelled.
//
// Missed ticks are coalesced rather than queued: time.Ticker's channel has a
// buffer of one, so a tick that fires while the previous Tick call is still
// running is silently dropped instead of backing up — the Go equivalent of
// tokio's MissedTickBehavior::Skip used by the original scheduler.
func Spawn(ctx context.Context, wc *Context, w Worker) {
	go func() {
		interval := w.Interval()

		if wc.Config.Jitter {
			fraction := 0.1 + rand.Float64()*0.9
			sleep := time.Duration(float64(interval) * fraction)
			wc.Logger.Info("worker startup jitter", "worker", w.Name(), "sleep", sleep)
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				wc.Logger.Info("worker shutting down", "worker", w.Name())
				return
			case <-ticker.C:
				runTick(ctx, wc, w)
			}
		}
	}()
}

func runTick(ctx context.Context, wc *Context, w Worker) {
	defer func() {
		if r := recover(); r != nil {
			wc.Logger.Error("worker tick panicked", "worker", w.Name(), "panic", r)
		}
	}()

	wc.Logger.Info("running", "worker", w.Name())
	if err := w.Tick(ctx, wc); err != nil {
		wc.Logger.Error("worker tick failed", "worker", w.Name(), "err", err)
	}
	wc.Logger.Info("done", "worker", w.Name())
}
