package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/auth"
)

// authMiddleware verifies the bearer token and attaches the caller's identity to the RequestContext.
// Excluded paths and CORS preflights pass untouched. In optional mode a request without an Authorization header
// continues anonymously, but a malformed header or a token that fails verification is always rejected.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	conf := s.deps.Conf.Auth
	verifier := s.deps.Verifier

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			if req.Method == http.MethodOptions || core.HasAnyPrefix(req.URL.Path, conf.ExcludePaths) {
				return next(ctx)
			}

			header := core.CleanString(req.Header.Get(echo.HeaderAuthorization))
			if header == "" && conf.Optional {
				return next(ctx)
			}
			token, err := auth.ParseAuthorization(header)
			if err != nil {
				return errUnauthorized
			}

			id, err := verifier.Verify(token)
			if err != nil {
				return errors.Wrap(errInvalidToken, err.Error())
			}
			getRequestContext(ctx).Identity = &id

			return next(ctx)
		}
	}
}
