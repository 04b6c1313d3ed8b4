package core

import (
	"context"
	"time"

	"github.com/trezcool/masomo-bff/core/auth"
)

// RequestContext lives for one inbound request.
type RequestContext struct {
	TraceID   string
	Identity  *auth.Identity // nil when anonymous
	StartTime time.Time
}

type ctxKey int

const requestContextKey ctxKey = iota

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// RequestContextFrom returns the request context stored in ctx, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey).(*RequestContext)
	return rc
}
