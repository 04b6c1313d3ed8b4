package echoapi

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/auth"
)

const (
	HeaderTraceID = "X-Trace-Id"

	contextRequestKey = "requestContext"
	maxTraceIDLen     = 128
)

// traceMiddleware adopts the caller's X-Trace-Id (or mints one) and opens the RequestContext.
// It runs before routing so that every response, 404s included, carries the id.
func traceMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			traceID := core.CleanString(req.Header.Get(HeaderTraceID))
			if traceID == "" || len(traceID) > maxTraceIDLen {
				traceID = newTraceID()
			}
			req.Header.Set(HeaderTraceID, traceID)

			rc := &core.RequestContext{TraceID: traceID, StartTime: time.Now()}
			ctx.Set(contextRequestKey, rc)
			ctx.SetRequest(req.WithContext(core.WithRequestContext(req.Context(), rc)))
			ctx.Response().Header().Set(HeaderTraceID, traceID)

			return next(ctx)
		}
	}
}

func newTraceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// getRequestContext never returns nil.
func getRequestContext(ctx echo.Context) *core.RequestContext {
	if rc, ok := ctx.Get(contextRequestKey).(*core.RequestContext); ok {
		return rc
	}
	if rc := core.RequestContextFrom(ctx.Request().Context()); rc != nil {
		ctx.Set(contextRequestKey, rc)
		return rc
	}
	rc := &core.RequestContext{TraceID: ctx.Request().Header.Get(HeaderTraceID), StartTime: time.Now()}
	ctx.Set(contextRequestKey, rc)
	return rc
}

func getContextIdentity(ctx echo.Context) (auth.Identity, error) {
	if id := getRequestContext(ctx).Identity; id != nil {
		return *id, nil
	}
	return auth.Identity{}, errUnauthorized
}
