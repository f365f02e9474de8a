// Package gwerrors is the gateway-wide error taxonomy: request errors,
// operation (binding) errors, authorization denials, partial-data errors,
// and fatal internal errors (spec §7). Every internal fallible call wraps
// with github.com/samsarahq/go/oops the way the teacher's federation
// package does throughout schema.go and planner.go; gwerrors adds the
// client-presentable/internal split the teacher's graphql/errors.go drew
// between ClientError and SafeError, generalized into one Code-tagged
// GatewayError rather than two parallel unexported structs.
package gwerrors

import (
	"fmt"

	"github.com/samsarahq/go/oops"
)

// Code classifies a GatewayError for the response's extensions.code and
// for deciding the HTTP status/propagation policy spec §7 describes.
type Code string

const (
	// CodeRequest marks malformed JSON, a missing query, or an oversized
	// body -- HTTP 400, no data.
	CodeRequest Code = "REQUEST_ERROR"
	// CodeOperationValidation marks an operation-binding failure -- HTTP
	// 200, errors array with source locations.
	CodeOperationValidation Code = "OPERATION_VALIDATION_ERROR"
	// CodeUnauthorized marks an authorization policy denial.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodePartialData marks a subgraph failure, timeout, or deny-all
	// decision encountered during execution; data is still present with
	// nulls at the affected paths.
	CodePartialData Code = "PARTIAL_DATA"
	// CodeInternal marks a fatal internal error (plan materialization
	// failure, response corruption); a single generic message is
	// returned to the client and the real error is logged.
	CodeInternal Code = "INTERNAL_ERROR"
)

// Location is a source position in the operation document, attached to
// operation-validation errors so clients can point at the offending text.
type Location struct {
	Line   int
	Column int
}

// GatewayError is the error type returned across every package boundary
// that can fail in a way the HTTP layer needs to render distinctly from
// "log it and return 500". Path is the response-key path the error should
// be attached to once known (empty until the executor/response stage
// assigns it).
type GatewayError struct {
	Code       Code
	Message    string
	Path       []string
	Locations  []Location
	Extensions map[string]interface{}

	// cause is kept for logging/oops chaining but deliberately excluded
	// from Error()/the client-facing message when Code is CodeInternal --
	// internal causes are not safe to expose, matching the teacher's
	// SafeError/ClientError split.
	cause error
}

func (e *GatewayError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.cause }

// ClientMessage is what the HTTP layer should put in the response's
// errors[].message -- everything except CodeInternal causes, which are
// replaced with a generic message so internal details never leak.
func (e *GatewayError) ClientMessage() string {
	if e.Code == CodeInternal {
		return "internal server error"
	}
	return e.Message
}

// New builds a GatewayError, wrapping cause (if non-nil) with oops so the
// stack/context is preserved for logging even though ClientMessage hides
// it for CodeInternal.
func New(code Code, cause error, format string, args ...interface{}) *GatewayError {
	msg := fmt.Sprintf(format, args...)
	var wrapped error
	if cause != nil {
		wrapped = oops.Wrapf(cause, msg)
	}
	return &GatewayError{Code: code, Message: msg, cause: wrapped}
}

// Request builds a CodeRequest error for malformed-request handling.
func Request(format string, args ...interface{}) *GatewayError {
	return New(CodeRequest, nil, format, args...)
}

// Internal builds a CodeInternal error, wrapping cause with oops for the
// logs while keeping ClientMessage generic.
func Internal(cause error, format string, args ...interface{}) *GatewayError {
	return New(CodeInternal, cause, format, args...)
}

// Unauthorized builds a CodeUnauthorized error for one denied element.
func Unauthorized(path []string, format string, args ...interface{}) *GatewayError {
	e := New(CodeUnauthorized, nil, format, args...)
	e.Path = path
	return e
}

// PartialData builds a CodePartialData error for a subgraph failure or
// timeout encountered mid-execution.
func PartialData(path []string, cause error, format string, args ...interface{}) *GatewayError {
	e := New(CodePartialData, cause, format, args...)
	e.Path = path
	return e
}

// WithLocation attaches a source location (for operation-validation
// errors) and returns e for chaining.
func (e *GatewayError) WithLocation(line, column int) *GatewayError {
	e.Locations = append(e.Locations, Location{Line: line, Column: column})
	return e
}

// WithExtension attaches an arbitrary extensions.<key> value and returns
// e for chaining.
func (e *GatewayError) WithExtension(key string, value interface{}) *GatewayError {
	if e.Extensions == nil {
		e.Extensions = map[string]interface{}{}
	}
	e.Extensions[key] = value
	return e
}
