// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-priceguard/internal/common"
	"github.com/noah-isme/toko-priceguard/internal/resilience"
)

// Readiness statuses.
const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
	StatusDraining = "draining"

	checkOK = "ok"
)

var draining atomic.Bool

// SetReady toggles readiness. The API clears it when it starts draining connections.
func SetReady(v bool) {
	draining.Store(!v)
}

// Checker probes the backing services.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Report is the readiness payload.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
	// Breakers are reported by store name.
	Breakers map[string]*resilience.Breaker
}

// Live reports that the process is up.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports whether validations can be served. Postgres and every store breaker are
// required: without them a validation can only fail closed. Redis backs caches and rate
// limits only, so losing it degrades the service without taking it out of rotation.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: StatusDraining})
		return
	}
	report := h.check(r.Context())
	code := http.StatusOK
	if report.Status == StatusNotReady {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, report)
}

func (h Handler) check(ctx context.Context) Report {
	if h.Checker == nil {
		return Report{Status: StatusNotReady, Checks: map[string]string{"db": "not configured"}}
	}
	report := Report{Status: StatusReady, Checks: map[string]string{"db": checkOK, "redis": checkOK}}
	fail := func(status string) {
		if report.Status != StatusNotReady {
			report.Status = status
		}
	}

	if err := h.Checker.PingDB(ctx, orDefault(h.DBTimeout, 500*time.Millisecond)); err != nil {
		report.Checks["db"] = err.Error()
		fail(StatusNotReady)
	}
	if err := h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond)); err != nil {
		report.Checks["redis"] = err.Error()
		fail(StatusDegraded)
	}
	for name, breaker := range h.Breakers {
		if breaker == nil {
			continue
		}
		state := breaker.State()
		report.Checks["breaker_"+name] = state.String()
		if state == resilience.Open {
			fail(StatusNotReady)
		}
	}
	return report
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
