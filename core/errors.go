package core

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a malformed inbound query or body (400).
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ContractError is a response that does not match its declared schema.
// It is a bug in the handler that built the response, hence a 500.
type ContractError struct {
	Err error
}

func NewContractError(err error) error {
	return &ContractError{Err: err}
}

func (err ContractError) Error() string {
	return fmt.Sprintf("response contract violated: %v", err.Err)
}

func (err ContractError) Status() int {
	return http.StatusInternalServerError
}

// RateLimitError rejects a caller whose window is exhausted.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (err RateLimitError) Error() string {
	return "Too Many Requests"
}

func (err RateLimitError) Status() int {
	return http.StatusTooManyRequests
}

// RetryAfterSeconds rounds the remaining window up to whole seconds.
func (err RateLimitError) RetryAfterSeconds() int {
	secs := int(err.RetryAfter / time.Second)
	if err.RetryAfter%time.Second > 0 {
		secs++
	}
	return secs
}

// ConfigError is a missing or broken collaborator setting discovered at request time.
type ConfigError struct {
	message string
}

func NewConfigError(msg string) error {
	return &ConfigError{message: msg}
}

func (err ConfigError) Error() string {
	return err.message
}

func (err ConfigError) Status() int {
	return http.StatusInternalServerError
}

// StatusError is implemented by errors that know their HTTP status.
type StatusError interface {
	error
	Status() int
}

// ErrorStatus returns the status carried by err (or its cause), if any.
func ErrorStatus(err error) (int, bool) {
	if se, ok := errors.Cause(err).(StatusError); ok {
		return se.Status(), true
	}
	return 0, false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
