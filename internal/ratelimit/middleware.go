// Package ratelimit throttles validation requests per buyer or client address.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-priceguard/internal/common"
)

// Allower decides whether another event for key fits within max events per window.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config selects the bucket key and its budget.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces Config with Limiter. A limiter error lets the request through and is
// passed to OnError: an unavailable Redis must not block checkout.
type Handler struct {
	Limiter Allower
	Config  Config
	OnError func(error)
}

type decision struct {
	limit     int
	remaining int
	reset     time.Time
}

func (d decision) write(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(d.limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))
}

func (d decision) retryAfter(now time.Time) string {
	secs := math.Ceil(d.reset.Sub(now).Seconds())
	return strconv.Itoa(int(max(secs, 0)))
}

// Middleware implements chi middleware.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, reset, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		d := decision{limit: h.Config.Max, remaining: remaining, reset: reset}
		d.write(w.Header())
		if !allowed {
			w.Header().Set("Retry-After", d.retryAfter(time.Now()))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many validation requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BuyerOrIPKey buckets authenticated requests by buyer and anonymous ones by client IP.
func BuyerOrIPKey(r *http.Request) string {
	if buyer, ok := common.BuyerID(r.Context()); ok {
		return "buyer:" + buyer
	}
	return "ip:" + common.ClientIP(r)
}
