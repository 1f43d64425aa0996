// Package health serves the /livez and /readyz endpoints of the storefront
// API.
//
// Liveness checks watch the process itself. Readiness checks ping the
// backends the API cannot serve without: PostgreSQL, and Redis or RabbitMQ
// when they are configured. Every check runs on its own ticker. A check turns
// unhealthy after failureThreshold consecutive failures and healthy again
// after successThreshold consecutive passes.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1

	notReadyKey = "_readiness"
)

// CheckFunc reports the problem with a component, or nil when it is fine.
type CheckFunc func(ctx context.Context) error

// ChangeFunc is called when a check flips between healthy and unhealthy.
type ChangeFunc func(name string, healthy bool, err error)

type kind uint8

const (
	liveness kind = iota
	readiness
)

// check is one registered CheckFunc. tick is only called from the check's
// own goroutine, so the counters are unsynchronized. healthy and lastErr are
// read by handlers.
type check struct {
	name    string
	kind    kind
	timeout time.Duration
	fn      CheckFunc

	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func (c *check) err() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// tick runs the check once and reports whether its state flipped.
func (c *check) tick(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	was := c.healthy.Load()
	if err != nil {
		c.passes = 0
		c.fails++
		if c.fails >= c.failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.fails = 0
		c.passes++
		if c.passes >= c.successThreshold {
			c.healthy.Store(true)
		}
	}
	return was != c.healthy.Load()
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready    atomic.Bool
	onChange ChangeFunc

	// mu guards checks and cancel. Handlers copy checks and release it
	// before reading check state.
	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// Option configures Health.
type Option func(h *Health)

// WithChangeHook sets fn to be called on every check transition.
func WithChangeHook(fn ChangeFunc) Option {
	return func(h *Health) { h.onChange = fn }
}

// New creates a Health that is not ready until SetReady(true).
func New(opts ...Option) *Health {
	h := &Health{}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Health) add(k kind, name string, timeout time.Duration, fn CheckFunc) {
	c := &check{
		name:             name,
		kind:             k,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	c.healthy.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// AddLivenessCheck registers a check of the process itself.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(liveness, name, timeout, fn)
}

// AddReadinessCheck registers a check of a backend the API depends on.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(readiness, name, timeout, fn)
}

// AddPing registers p as a readiness check named after the backend.
func (h *Health) AddPing(name string, timeout time.Duration, p Pinger) {
	h.AddReadinessCheck(name, timeout, PingCheck(name, p))
}

func (h *Health) snapshot(k kind) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.DeleteFunc(slices.Clone(h.checks), func(c *check) bool {
		return c.kind != k
	})
}

// Start runs every registered check now and then at interval until ctx is
// done or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go h.loop(ctx, c, interval)
	}
}

func (h *Health) loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.tick(ctx) && h.onChange != nil {
			h.onChange(c.name, c.healthy.Load(), c.err())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the check goroutines. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag. The server sets it once wiring is
// done and clears it when draining before shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the flag is set and every readiness check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(failures(h.snapshot(readiness))) == 0
}

// Register mounts /livez and /readyz on mux.
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /livez", h.LiveEndpoint)
	mux.HandleFunc("GET /readyz", h.ReadyEndpoint)
}

// LiveEndpoint answers 200 {"status":"ok"} while every liveness check passes
// and 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.snapshot(liveness)))
}

// ReadyEndpoint is LiveEndpoint for readiness. Clearing the ready flag adds
// a "_readiness" failure.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(readiness))
	if !h.ready.Load() {
		failed[notReadyKey] = "service is not ready"
	}
	writeStatus(w, failed)
}

// failures maps unhealthy check names to their last error. The stored state
// is used; checks are not re-run.
func failures(checks []*check) map[string]string {
	out := make(map[string]string)
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		msg := "check is unhealthy"
		if err := c.err(); err != nil {
			msg = err.Error()
		}
		out[c.name] = msg
	}
	return out
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failed) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				names := make([]string, 0, len(failed))
				for name := range failed {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failed[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
