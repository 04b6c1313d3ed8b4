package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-bff/core"
)

// bufferedWriter holds a handler's output until the contract check decides what to send.
type bufferedWriter struct {
	orig   http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header {
	return w.orig.Header()
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.buf.Write(b)
}

// validateResponse checks a successful JSON response (its `data` member when present) against the
// schema returned by newSchema. Conforming bodies are re-encoded from the schema, which drops unknown
// fields; anything else becomes a 500. Error responses and empty bodies pass through.
func validateResponse(validate *validator.Validate, newSchema func() interface{}) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			res := ctx.Response()
			orig := res.Writer
			bw := &bufferedWriter{orig: orig}
			res.Writer = bw
			defer func() { res.Writer = orig }() // a panic still reaches the client through orig

			err := next(ctx)
			res.Writer = orig
			if err != nil {
				resetResponse(res)
				return err
			}
			if bw.status == 0 && bw.buf.Len() == 0 {
				return nil
			}

			body := bw.buf.Bytes()
			if bw.status >= http.StatusBadRequest || len(bytes.TrimSpace(body)) == 0 {
				return flush(orig, bw.status, body)
			}

			checked, err := checkContract(validate, body, newSchema())
			if err != nil {
				resetResponse(res)
				return core.NewContractError(err)
			}
			return flush(orig, bw.status, checked)
		}
	}
}

func checkContract(validate *validator.Validate, body []byte, schema interface{}) ([]byte, error) {
	fields := core.Fields(body)
	target := json.RawMessage(body)
	data, wrapped := fields["data"]
	if wrapped {
		target = data
	}

	if err := json.Unmarshal(target, schema); err != nil {
		return nil, errors.Wrap(err, "decoding response")
	}
	if err := validate.Struct(schema); err != nil {
		return nil, errors.Wrap(err, "validating response")
	}
	clean, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "encoding response")
	}
	if !wrapped {
		return clean, nil
	}
	fields["data"] = clean
	return json.Marshal(fields)
}

func flush(w http.ResponseWriter, status int, body []byte) error {
	w.Header().Del(echo.HeaderContentLength)
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// resetResponse forgets a discarded write so the error handler can still render.
func resetResponse(res *echo.Response) {
	res.Committed = false
	res.Status = http.StatusOK
	res.Size = 0
}
