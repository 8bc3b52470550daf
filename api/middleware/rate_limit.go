package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const (
	defaultRequestLimit  = 120
	defaultRequestWindow = time.Minute
)

type fixedWindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles authenticated traffic per user with a fixed window.
// Requests without a user in context fall back to a shared anonymous bucket.
func RateLimit(limiter fixedWindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scope := "user:" + UserIDFromContext(ctx)
			if scope == "user:" {
				scope = "anon:" + clientIP(r)
			}

			allowed, count, err := limiter.FixedWindowAllow(ctx, scope, defaultRequestLimit, defaultRequestWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"scope":    scope,
						"attempts": count,
						"limit":    defaultRequestLimit,
					})
					logg.Warn(logCtx, "api.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
