package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/auth"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, auth.ErrMissingToken.Error())
	errInvalidToken  = echo.NewHTTPError(http.StatusUnauthorized, auth.ErrInvalidToken.Error())
	errForbidden     = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInvalidQuery  = errors.New("Invalid query")
	errLegacyFailure = "legacy backend unavailable"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code       int               `json:"code"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"`
	RetryAfter *int              `json:"retryAfter,omitempty"`
	Stack      string            `json:"stack,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that turns any error into an errorResponse.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
// The handler may be invoked more than once for the same request; only the first call renders and logs.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if err == nil || ctx.Response().Committed {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Sprintf("error handler panicked: %v", r), errors.Errorf("%v", r))
			}
		}()

		resp := errorResponse{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			resp.Code = origErr.Code
			resp.Message = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors:
			resp.Code = http.StatusBadRequest
			resp.Message = errInvalidQuery.Error()
			resp.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Errors[vErr.Field()] = vErr.Error()
			}
		case *core.ValidationError:
			resp.Code = http.StatusBadRequest
			resp.Message = origErr.Error()
			if resp.Message == "" {
				resp.Message = http.StatusText(http.StatusBadRequest)
			}
			if origErr.Fields != nil {
				resp.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Errors[fErr.Field] = fErr.Error
				}
			}
		case *core.RateLimitError:
			secs := origErr.RetryAfterSeconds()
			resp.Code = origErr.Status()
			resp.Message = origErr.Error()
			resp.RetryAfter = &secs
			ctx.Response().Header().Set(headerRetryAfter, strconv.Itoa(secs))
		default:
			if status, ok := core.ErrorStatus(err); ok {
				resp.Code = status
				resp.Message = errors.Cause(err).Error()
			} else if status := ctx.Response().Status; status >= http.StatusBadRequest {
				resp.Code = status
				resp.Message = http.StatusText(status)
			} else {
				resp.Code = http.StatusInternalServerError
				resp.Message = http.StatusText(http.StatusInternalServerError)
				if ctx.Echo().Debug {
					resp.Message = err.Error()
				}
			}
		}
		if resp.Code < http.StatusBadRequest {
			resp.Code = http.StatusInternalServerError
		}
		if resp.Message == "" {
			resp.Message = http.StatusText(resp.Code)
		}

		req := ctx.Request()
		rc := getRequestContext(ctx)
		line := fmt.Sprintf("error: %s %s %d traceId=%s: %v", req.Method, req.URL.Path, resp.Code, rc.TraceID, err)
		if resp.Code >= http.StatusInternalServerError {
			if rc.Identity != nil {
				logger.Error(line, err, *rc.Identity)
			} else {
				logger.Error(line, err)
			}
		} else {
			logger.Warn(line)
		}

		// shutting down...
		if core.IsShutdown(err) {
			signalShutdown()
		}

		if ctx.Echo().Debug {
			resp.Stack = fmt.Sprintf("%+v", err)
		}

		// Send response
		if req.Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(resp.Code)
		} else {
			err = ctx.JSON(resp.Code, resp)
		}
		if err != nil {
			logger.Error(fmt.Sprintf("writing error response: %v", err), err)
		}
	}
}
