package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-bff/core"
)

const maxLegacyBody = 10 << 20

// only these inbound headers reach the legacy backend
var legacyForwardedHeaders = []string{
	echo.HeaderAuthorization,
	echo.HeaderAccept,
	echo.HeaderContentType,
	"Cookie",
}

// legacyProxyMiddleware forwards unmatched /api/* requests to the legacy backend and relays its answer
// as JSON with the legacy status code.
func (s *Server) legacyProxyMiddleware() echo.MiddlewareFunc {
	prefix := s.deps.Conf.Server.APIPrefix

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			err := next(ctx)
			if !isNotFound(err) || ctx.Response().Committed {
				return err
			}
			if !strings.HasPrefix(ctx.Request().URL.Path, prefix+"/") {
				return err
			}
			return s.forwardToLegacy(ctx)
		}
	}
}

func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

func isNotFound(err error) bool {
	herr, ok := errors.Cause(err).(*echo.HTTPError)
	return ok && herr.Code == http.StatusNotFound
}

func (s *Server) forwardToLegacy(ctx echo.Context) error {
	base := s.deps.Conf.Upstream.LegacyURL
	if base == "" {
		return core.NewConfigError("BE_BACKEND_URL is not configured")
	}

	req := ctx.Request()
	target, err := legacyTarget(base, s.deps.Conf.Server.APIPrefix, req.URL.Path, req.URL.RawQuery)
	if err != nil {
		return err
	}

	header := make(http.Header, len(legacyForwardedHeaders)+1)
	for _, name := range legacyForwardedHeaders {
		if v := req.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	header.Set(HeaderTraceID, getRequestContext(ctx).TraceID)

	var body io.Reader
	if req.Method != http.MethodGet && req.Method != http.MethodDelete && req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return errors.Wrap(err, "reading request body")
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			var compact bytes.Buffer
			if json.Compact(&compact, raw) == nil {
				raw = compact.Bytes()
			}
			if header.Get(echo.HeaderContentType) == "" {
				header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			}
			body = bytes.NewReader(raw)
		}
	}

	out, err := http.NewRequestWithContext(req.Context(), req.Method, target, body)
	if err != nil {
		return errors.Wrap(err, "building legacy request")
	}
	out.Header = header

	start := time.Now()
	res, err := s.deps.LegacyClient.Do(out)
	if err != nil {
		return &echo.HTTPError{Code: http.StatusBadGateway, Message: errLegacyFailure, Internal: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxLegacyBody))
	if err != nil {
		return &echo.HTTPError{Code: http.StatusBadGateway, Message: errLegacyFailure, Internal: err}
	}
	s.deps.Logger.Info(fmt.Sprintf(
		"legacy %s %s %d %dms traceId=%s",
		req.Method, out.URL.Path, res.StatusCode, time.Since(start).Milliseconds(), header.Get(HeaderTraceID),
	))

	if !bodyAllowed(res.StatusCode) {
		return ctx.NoContent(res.StatusCode)
	}
	return ctx.JSONBlob(res.StatusCode, reconcileLegacyBody(res.StatusCode, raw))
}

// legacyTarget joins the request path onto base. When base already ends with the API prefix
// the prefix is not repeated.
func legacyTarget(base, prefix, path, rawQuery string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", core.NewConfigError("BE_BACKEND_URL is invalid")
	}

	basePath := strings.TrimRight(u.Path, "/")
	if strings.HasSuffix(basePath, prefix) && strings.HasPrefix(path, prefix) {
		path = strings.TrimPrefix(path, prefix)
		if path == "" {
			path = "/"
		}
	}

	target := u.Scheme + "://" + u.Host + basePath + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target, nil
}

type legacyEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// reconcileLegacyBody turns whatever the legacy backend answered into a JSON body.
func reconcileLegacyBody(status int, raw []byte) []byte {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return mustMarshal(legacyEnvelope{Code: status, Message: "Upstream response without JSON"})
	}
	if json.Valid(text) {
		// some legacy endpoints double-encode: "{\"code\":0}"
		var inner string
		if text[0] == '"' && json.Unmarshal(text, &inner) == nil {
			if in := bytes.TrimSpace([]byte(inner)); len(in) > 0 && (in[0] == '{' || in[0] == '[') && json.Valid(in) {
				return in
			}
		}
		return text
	}
	return mustMarshal(legacyEnvelope{Code: status, Message: string(text)})
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
