package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/ratelimit"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"

	resetTimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// rateLimitMiddleware throttles callers per identity (when known and enabled) or per client IP.
// A failing store admits the request.
func (s *Server) rateLimitMiddleware() echo.MiddlewareFunc {
	conf := s.deps.Conf.RateLimit
	policy := ratelimit.Policy{Max: conf.Max, Window: conf.Window}
	store := s.deps.RateStore
	logger := s.deps.Logger

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			if req.Method == http.MethodOptions || core.HasAnyPrefix(req.URL.Path, conf.ExcludePaths) {
				return next(ctx)
			}

			key, scope := rateLimitKey(ctx, conf.ByUser)
			dec, err := store.Take(req.Context(), key, policy)
			if err != nil {
				logger.Warn(fmt.Sprintf("rate limit store failed, admitting %s: %v", key, err))
				return next(ctx)
			}
			if !dec.Allowed {
				rateLimitRejections.WithLabelValues(scope).Inc()
				return &core.RateLimitError{Limit: dec.Limit, RetryAfter: dec.RetryAfter}
			}

			h := ctx.Response().Header()
			h.Set(headerRateLimitLimit, strconv.Itoa(dec.Limit))
			h.Set(headerRateLimitRemaining, strconv.Itoa(dec.Remaining))
			h.Set(headerRateLimitReset, dec.ResetAt.UTC().Format(resetTimeFormat))

			return next(ctx)
		}
	}
}

func rateLimitKey(ctx echo.Context, byUser bool) (key, scope string) {
	if byUser {
		if id := getRequestContext(ctx).Identity; id != nil {
			return ratelimit.UserKey(id.ID), "user"
		}
	}
	return "ip:" + ctx.RealIP(), "ip"
}
