package upstream

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// UpstreamError is a non-2xx answer from an upstream service.
type UpstreamError struct {
	Method string
	Path   string
	Status int
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s %s responded %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	if ue, ok := errors.Cause(err).(*UpstreamError); ok {
		return ue.Status
	}
	return 0
}
