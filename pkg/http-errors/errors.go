package httpErrors

import (
	"net/http"

	dErrors "storegate/pkg/domain-errors"
)

// Code enumerates typed error categories so the HTTP layer can map them cleanly.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"
	CodeUnavailable  Code = "unavailable"

	// Capability token failure reasons. All map to 403 so that a probe cannot
	// tell a foreign tenant's token from a nonexistent one by status code alone.
	CodeTokenNotFound  Code = "not_found"
	CodeTokenRevoked   Code = "revoked"
	CodeTokenExpired   Code = "expired"
	CodeTokenExhausted Code = "exhausted"
)

// GatewayError wraps domain or infrastructure failures with a stable code.
type GatewayError struct {
	Code    Code
	Message string
	Err     error
}

func (e GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e GatewayError) Unwrap() error {
	return e.Err
}

func New(code Code, msg string) GatewayError {
	return GatewayError{Code: code, Message: msg}
}

func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeTokenRevoked, CodeTokenExpired, CodeTokenExhausted:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromDomain translates a domain error code into the transport-level code and
// status. Token terminal states deliberately collapse to 403 with a reason
// code; a plain not_found stays a 404.
func FromDomain(err error) (Code, int) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		return CodeNotFound, http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return CodeInvalidInput, http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return CodeUnauthorized, http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return CodeForbidden, http.StatusForbidden
	case dErrors.CodeConflict:
		return CodeConflict, http.StatusConflict
	case dErrors.CodeUnavailable, dErrors.CodeTimeout:
		return CodeUnavailable, http.StatusServiceUnavailable
	case dErrors.CodeTokenNotFound:
		return CodeTokenNotFound, http.StatusForbidden
	case dErrors.CodeTokenRevoked:
		return CodeTokenRevoked, http.StatusForbidden
	case dErrors.CodeTokenExpired:
		return CodeTokenExpired, http.StatusForbidden
	case dErrors.CodeTokenExhausted:
		return CodeTokenExhausted, http.StatusForbidden
	default:
		return CodeInternal, http.StatusInternalServerError
	}
}
