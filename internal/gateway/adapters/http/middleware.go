package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/teajhaney/shopstack-microservices/internal/gateway/adapters/security"
	"github.com/teajhaney/shopstack-microservices/internal/platform/cache"
	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyIdentity  ctxKey = "identity"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.ErrorContext(r.Context(), "handler panic",
					"operation", "http_request",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"panic", rec,
				)
				writeError(w, rpc.Internal(rpc.GenericInternalMessage))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		)
	})
}

// authMiddleware requires a valid bearer token and stores the identity.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := security.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, rpc.Unauthorized("Missing or invalid Authorization header"))
			return
		}
		id, err := h.verifier.Verify(raw)
		if err != nil {
			writeError(w, rpc.Unauthorized("Invalid token").WithCause(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, id)))
	})
}

func identityFromContext(ctx context.Context) (security.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(security.Identity)
	return id, ok
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFromContext(r.Context())
		if !ok {
			writeError(w, rpc.Unauthorized("Missing or invalid Authorization header"))
			return
		}
		if !id.IsAdmin() {
			writeError(w, rpc.Forbidden("Insufficient permissions to access this resource"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit bounds requests per client in a fixed window.
type RateLimit struct {
	Counter cache.Store
	Limit   int
	Window  time.Duration
}

// rateLimitMiddleware counts per client address. Counter failures let the
// request through.
func (h *Handler) rateLimitMiddleware(next http.Handler) http.Handler {
	if h.limit.Counter == nil || h.limit.Limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "gateway:ratelimit:" + clientAddr(r)
		n, err := h.limit.Counter.IncrWithTTL(r.Context(), key, h.limit.Window)
		if err != nil {
			h.logger.WarnContext(r.Context(), "rate limit counter unavailable",
				"operation", "rate_limit",
				"outcome", "degraded",
				"error", err.Error(),
			)
			next.ServeHTTP(w, r)
			return
		}
		if n > int64(h.limit.Limit) {
			w.Header().Set("Retry-After", retryAfter(h.limit.Window))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"code":    "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
