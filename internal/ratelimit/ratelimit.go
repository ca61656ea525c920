// Package ratelimit throttles write requests per client IP.
//
// Counters live in the primary store (Redis when configured). When the
// primary keeps failing, a circuit breaker moves checks to an in-process
// store until the primary has answered successfully enough times in a row.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"campusid/internal/platform/config"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/circuit"
	"campusid/pkg/platform/httputil"
)

const (
	redisPrefix   = "campusid:ratelimit"
	headerLimit   = "X-RateLimit-Limit"
	headerRemain  = "X-RateLimit-Remaining"
	headerReset   = "X-RateLimit-Reset"
	headerStatus  = "X-RateLimit-Status"
	statusDegrade = "degraded"
)

// Limiter is the write-request throttle.
type Limiter struct {
	primary  *limiter.Limiter
	fallback *limiter.Limiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type Option func(*Limiter)

// WithPrimaryStore puts counters in store; the in-process store then only
// serves while the circuit is open.
func WithPrimaryStore(store limiter.Store) Option {
	return func(l *Limiter) {
		l.primary = limiter.New(store, l.fallback.Rate)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) {
		l.breaker = b
	}
}

// New creates a limiter allowing cfg.WriteRate requests per client.
func New(cfg config.RateLimitConfig, opts ...Option) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.WriteRate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid write rate")
	}
	l := &Limiter{
		fallback: limiter.New(memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          redisPrefix,
			CleanUpInterval: time.Minute,
		}), rate),
		breaker: circuit.New("ratelimit",
			circuit.WithFailureThreshold(cfg.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.SuccessThreshold),
		),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// NewRedisStore builds the shared counter store.
func NewRedisStore(client sredis.Client) (limiter.Store, error) {
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: redisPrefix})
}

type decision struct {
	limiter.Context
	degraded bool
}

// check consults the primary store and falls back while the circuit is open.
// A primary failure before the circuit opens lets the request through.
func (l *Limiter) check(ctx context.Context, key string) (decision, bool) {
	if l.primary == nil {
		lc, err := l.fallback.Get(ctx, key)
		if err != nil {
			l.logger.ErrorContext(ctx, "rate limit check failed", "error", err)
			return decision{}, false
		}
		return decision{Context: lc}, true
	}

	lc, err := l.primary.Get(ctx, key)
	if err != nil {
		useFallback, change := l.breaker.RecordFailure()
		if change.Opened {
			l.logger.WarnContext(ctx, "rate limit store unavailable, using in-process counters", "error", err)
		}
		if !useFallback {
			l.logger.WarnContext(ctx, "rate limit check failed, allowing request", "error", err)
			return decision{}, false
		}
		return l.degraded(ctx, key)
	}

	usePrimary, change := l.breaker.RecordSuccess()
	if change.Closed {
		l.logger.InfoContext(ctx, "rate limit store recovered")
	}
	if !usePrimary {
		return l.degraded(ctx, key)
	}
	return decision{Context: lc}, true
}

func (l *Limiter) degraded(ctx context.Context, key string) (decision, bool) {
	lc, err := l.fallback.Get(ctx, key)
	if err != nil {
		l.logger.ErrorContext(ctx, "fallback rate limit check failed", "error", err)
		return decision{}, false
	}
	return decision{Context: lc, degraded: true}, true
}

// Middleware throttles unsafe methods; reads pass untouched.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		d, ok := l.check(r.Context(), clientIP(r))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set(headerLimit, strconv.FormatInt(d.Limit, 10))
		h.Set(headerRemain, strconv.FormatInt(d.Remaining, 10))
		h.Set(headerReset, strconv.FormatInt(d.Reset, 10))
		if d.degraded {
			h.Set(headerStatus, statusDegrade)
		}
		if d.Reached {
			retry := max(time.Until(time.Unix(d.Reset, 0)).Round(time.Second), time.Second)
			h.Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
			l.logger.InfoContext(r.Context(), "rate limit exceeded", "path", r.URL.Path)
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many write requests, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
