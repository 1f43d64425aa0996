package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is a backend connection that can be pinged: *pgxpool.Pool, the
// RabbitMQ channel pool, or a PingFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// PingCheck reports the backend as unavailable when p fails to answer before
// the check timeout.
func PingCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrapf(err, "%s unavailable", name)
		}
		return nil
	}
}

// GoroutineCountCheck fails when more than limit goroutines are running.
// Request handlers and session cleanup are the only sources of goroutines, so
// a steady climb means a leak.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit is %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when the most recent stop-the-world pause exceeded
// limit. Older pauses do not count so the check recovers once the heap
// settles.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		if len(stats.Pause) == 0 {
			return nil
		}
		if last := stats.Pause[0]; last > limit {
			return errors.Errorf("last GC pause %s, limit is %s", last, limit)
		}
		return nil
	}
}
