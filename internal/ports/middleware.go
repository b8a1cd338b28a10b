package ports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/ratelimiting"
)

// Suggested wait for rate limited clients. The search limiter refills a token every half second.
const retryAfterSeconds = 1

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				ctx := r.Context()
				logging.FromContext(ctx).InfoContext(ctx, "Rate limited", slog.String("key", rateLimiter.KeyFor(r)))

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

// ComposeMiddlewares applies middlewares outermost first
func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}
