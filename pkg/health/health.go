// Package health implements liveness and readiness checks.
//
// Every registered check runs periodically in its own goroutine. A check
// flips to unhealthy only after failureThreshold consecutive failures and
// back to healthy after successThreshold consecutive successes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

const (
	failureThreshold = 3
	successThreshold = 1
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type checker struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	passes  int
}

func newChecker(name string, timeout time.Duration, check CheckFunc) *checker {
	return &checker{name: name, timeout: timeout, check: check, healthy: true}
}

// observe runs the check once and updates the checker state.
func (p *checker) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.check(ctx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= failureThreshold {
			p.healthy = false
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= successThreshold {
		p.healthy = true
	}
}

// failure returns the reason the check is unhealthy, or "" if it is healthy.
func (p *checker) failure() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.healthy:
		return ""
	case p.lastErr != nil:
		return p.lastErr.Error()
	default:
		return "check is unhealthy"
	}
}

// Health tracks the liveness and readiness of the service.
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*checker
	readiness []*checker
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New returns a Health that is not ready until SetReady(true) is called.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that tells whether the process works.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newChecker(name, timeout, check))
}

// AddReadinessCheck registers a check that gates incoming traffic, such as
// storage connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newChecker(name, timeout, check))
}

// Start runs every registered check immediately and then every interval
// until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)

	for _, p := range append(append([]*checker(nil), h.liveness...), h.readiness...) {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.observe(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop cancels the background checks and waits for them to exit.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// SetReady marks the service as ready or draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(failures(h.checkers(false))) == 0
}

func (h *Health) checkers(live bool) []*checker {
	h.mu.Lock()
	defer h.mu.Unlock()
	if live {
		return append([]*checker(nil), h.liveness...)
	}
	return append([]*checker(nil), h.readiness...)
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.checkers(true)))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.checkers(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

func failures(checkers []*checker) map[string]string {
	out := make(map[string]string)
	for _, p := range checkers {
		if reason := p.failure(); reason != "" {
			out[p.name] = reason
		}
	}
	return out
}

// writeStatus answers 200 {"status":"ok"} or 503 {"status":"unhealthy",
// "checks":{...}}.
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
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
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
