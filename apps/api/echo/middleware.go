package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// requireRole admits callers holding at least one of roles.
func requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return err
			}
			if len(roles) == 0 || id.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errForbidden
		}
	}
}

func requireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return err
			}
			if !id.IsAdmin() {
				return errAdminRequired
			}
			return next(ctx)
		}
	}
}

var errAdminRequired = echo.NewHTTPError(http.StatusForbidden, "admin privileges required")
