package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/idempotency"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	UserHeader        = "X-User-ID"
	minIdempotencyKey = 16
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithField("request_id", middleware.GetReqID(r.Context()))
			ctx := observability.ContextWithLogger(r.Context(), entry)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			entry.WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("status", ww.Status()).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Info("request handled")
		})
	}
}

// MetricsMiddleware counts requests by route pattern, so ids do not blow up
// label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
	})
}

type principalKey struct{}

// PrincipalMiddleware takes the caller identity set by the gateway.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get(UserHeader); user != "" {
			r = r.WithContext(context.WithValue(r.Context(), principalKey{}, user))
		}
		next.ServeHTTP(w, r)
	})
}

func PrincipalFromContext(ctx context.Context) string {
	user, _ := ctx.Value(principalKey{}).(string)
	return user
}

// IdempotencyStore replays finished responses and guards keys in flight.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (*idempotency.Response, error)
	Complete(ctx context.Context, key string, resp idempotency.Response) error
	Abort(ctx context.Context, key string) error
}

// IdempotencyMiddleware requires a key on every POST. With a store it also
// replays the first response recorded for the same caller, route and key.
func IdempotencyMiddleware(store IdempotencyStore, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing Idempotency-Key", Code: "validation"})
				return
			}
			if len(key) < minIdempotencyKey {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid Idempotency-Key", Code: "validation"})
				return
			}
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}

			scoped := PrincipalFromContext(r.Context()) + ":" + r.URL.Path + ":" + key
			prev, err := store.Begin(r.Context(), scoped)
			if err != nil {
				if errors.Is(err, idempotency.ErrInFlight) {
					writeErrorResponse(w, r, logger, err)
					return
				}
				writeErrorResponse(w, r, logger, domain.StorageError(err, "idempotency"))
				return
			}
			if prev != nil {
				if prev.ContentType != "" {
					w.Header().Set("Content-Type", prev.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(prev.Status)
				w.Write(prev.Result)
				return
			}

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)

			completed := false
			defer func() {
				if !completed {
					store.Abort(context.WithoutCancel(r.Context()), scoped)
				}
			}()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			err = store.Complete(context.WithoutCancel(r.Context()), scoped, idempotency.Response{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Result:      buf.Bytes(),
			})
			completed = true
			if err != nil {
				observability.LoggerFromContext(r.Context(), logger).WithError(err).Warn("failed to record idempotent response")
			}
		})
	}
}

// Limiter counts requests per key per period.
type Limiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error)
}

type RateLimits struct {
	PerUser int
	PerIP   int
	Period  time.Duration
}

type limitKey struct {
	key  string
	rate int
}

// RateLimitMiddleware fails open when the limiter itself is unavailable.
func RateLimitMiddleware(rl Limiter, limits RateLimits, logger observability.Logger) func(next http.Handler) http.Handler {
	if limits.Period <= 0 {
		limits.Period = time.Minute
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl == nil {
				next.ServeHTTP(w, r)
				return
			}
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			keys := []limitKey{{"ip:" + ip, limits.PerIP}}
			if user := PrincipalFromContext(r.Context()); user != "" {
				keys = append(keys, limitKey{"user:" + user, limits.PerUser})
			}
			for _, k := range keys {
				if k.rate <= 0 {
					continue
				}
				ok, err := rl.Allow(r.Context(), k.key, k.rate, limits.Period)
				if err != nil {
					observability.LoggerFromContext(r.Context(), logger).WithError(err).Warn("rate limiter unavailable")
					continue
				}
				if !ok {
					observability.RateLimitExceeded.Inc()
					writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Code: "rate_limited"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			span.SetName(r.Method + " " + rctx.RoutePattern())
		}
		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		if ww.Status() >= 500 {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}
