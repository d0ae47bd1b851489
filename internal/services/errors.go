// Package services provides the business logic layer between handlers and
// the statbank client: running report pipelines and shaping their output.
package services

import (
	"context"
	"errors"

	"github.com/soltixdb/statseries/internal/decoder"
	"github.com/soltixdb/statseries/internal/jsonstat"
	"github.com/soltixdb/statseries/internal/series"
	"github.com/soltixdb/statseries/internal/statbank"
)

// Error codes
const (
	CodeReportNotFound  = "REPORT_NOT_FOUND"
	CodeInvalidReport   = "INVALID_REPORT"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeDecodeError     = "DECODE_ERROR"
	CodePipelineError   = "PIPELINE_ERROR"
	CodeUnknownSelector = "UNKNOWN_SELECTOR"
	CodeTimeout         = "TIMEOUT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error, if any
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// wrapError classifies err by its sentinel and wraps it in a ServiceError.
// ServiceErrors pass through unchanged.
func wrapError(err error, details map[string]interface{}) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	code := CodeInternalError
	switch {
	case errors.Is(err, statbank.ErrUnknownSelector):
		code = CodeUnknownSelector
	case errors.Is(err, statbank.ErrUpstream):
		code = CodeUpstreamError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = CodeTimeout
	case errors.Is(err, jsonstat.ErrMalformed),
		errors.Is(err, decoder.ErrShapeMismatch),
		errors.Is(err, decoder.ErrUnknownDimension),
		errors.Is(err, decoder.ErrMissingValue),
		errors.Is(err, series.ErrDateFormat):
		code = CodeDecodeError
	case errors.Is(err, series.ErrMissingReference),
		errors.Is(err, series.ErrDegenerateGoal),
		errors.Is(err, series.ErrEmptySeries),
		errors.Is(err, series.ErrInvalidStep):
		code = CodePipelineError
	}

	return &ServiceError{Code: code, Message: err.Error(), Details: details, cause: err}
}
