package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dallosh/analysis/engine/task"
)

// Common sentinel errors
var (
	ErrInternal       = errors.New("internal server error")
	ErrInvalidAddress = errors.New("invalid address")
	ErrBindError      = errors.New("server bind error")
)

// Error codes
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrNotFoundCode           = "NOT_FOUND"
	ErrConflictCode           = "CONFLICT"
	ErrRequestTimeoutCode     = "REQUEST_TIMEOUT"
	ErrTooManyRequestsCode    = "TOO_MANY_REQUESTS"
	ErrSettingsNotFoundCode   = "SETTINGS_NOT_FOUND"
	ErrAIConfigMissingCode    = "AI_CONFIG_MISSING"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
)

const ErrMsgAppStateNotInitialized = "application state not initialized"

// RequestError represents errors that can occur during request handling
type RequestError struct {
	FileID     string
	Reason     string
	StatusCode int
	Code       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.FileID != "" {
		return fmt.Sprintf("file %s: %s", e.FileID, e.Reason)
	}
	return e.Reason
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError
func NewRequestError(statusCode int, reason string, err error) *RequestError {
	return &RequestError{
		StatusCode: statusCode,
		Reason:     reason,
		Err:        err,
	}
}

// IsRequestError checks if the given error is a RequestError
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// GetErrorInfo extracts error information for the standardized response
func (e *RequestError) GetErrorInfo() *ErrorInfo {
	var details string
	if e.Err != nil {
		details = e.Err.Error()
	}
	code := e.Code
	if code == "" {
		code = codeForStatus(e.StatusCode)
	}
	return &ErrorInfo{
		Code:    code,
		Message: e.Reason,
		Details: details,
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequestCode
	case http.StatusNotFound:
		return ErrNotFoundCode
	case http.StatusConflict:
		return ErrConflictCode
	case http.StatusRequestTimeout:
		return ErrRequestTimeoutCode
	case http.StatusTooManyRequests:
		return ErrTooManyRequestsCode
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailableCode
	default:
		return ErrInternalCode
	}
}

// TaskError classifies a task lifecycle error into an HTTP request error.
func TaskError(err error) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	switch {
	case errors.Is(err, task.ErrValidation), errors.Is(err, task.ErrMalformedEvent):
		return &RequestError{StatusCode: http.StatusBadRequest, Code: ErrBadRequestCode, Reason: "invalid request", Err: err}
	case errors.Is(err, task.ErrTaskNotFound):
		return &RequestError{StatusCode: http.StatusNotFound, Code: ErrNotFoundCode, Reason: "task not found", Err: err}
	case errors.Is(err, task.ErrTaskExists):
		return &RequestError{StatusCode: http.StatusConflict, Code: ErrConflictCode, Reason: "task already exists", Err: err}
	case errors.Is(err, task.ErrSettingsNotFound):
		return &RequestError{
			StatusCode: http.StatusPreconditionFailed,
			Code:       ErrSettingsNotFoundCode,
			Reason:     "settings not found",
			Err:        err,
		}
	case errors.Is(err, task.ErrAIConfigMissing):
		return &RequestError{
			StatusCode: http.StatusPreconditionFailed,
			Code:       ErrAIConfigMissingCode,
			Reason:     "AI settings are not configured",
			Err:        err,
		}
	case errors.Is(err, task.ErrBrokerUnavailable):
		return &RequestError{
			StatusCode: http.StatusServiceUnavailable,
			Code:       ErrServiceUnavailableCode,
			Reason:     "broker unavailable",
			Err:        err,
		}
	default:
		return &RequestError{
			StatusCode: http.StatusInternalServerError,
			Code:       ErrInternalCode,
			Reason:     "internal server error",
			Err:        err,
		}
	}
}
