package core

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes carried on every API error. The numeric code in the
// response envelope is derived from these.
const (
	APIErrorUnauthorized     = "API_UNAUTHORIZED"
	APIErrorBadInput         = "API_BAD_INPUT"
	APIErrorLoginRequired    = "API_LOGIN_REQUIRED"
	APIErrorNoPermission     = "API_NO_PERMISSION"
	APIErrorNotFound         = "API_NOT_FOUND"
	APIErrorLoginFailed      = "API_LOGIN_FAILED"
	APIErrorSaveFailed       = "API_SAVE_FAILED"
	APIErrorMethodNotAllowed = "API_METHOD_NOT_ALLOWED"
)

// Numeric codes surfaced in the {code, error} response envelope. These match
// the Parse-style client contract and are not HTTP statuses.
const (
	CodeOtherCause   = 1
	CodeLoginFailed  = 101
	CodeInvalidInput = 202
	CodeLoginNeeded  = 206
	CodeNoPermission = 209
)

func apiError(category goerrors.Category, textCode, message string, status int) *goerrors.Error {
	return goerrors.New(message, category).
		WithCode(status).
		WithTextCode(textCode)
}

// ErrUnauthorized rejects a request whose credential headers do not match.
// The response intentionally carries no numeric code; it is produced before
// the body is ever read.
func ErrUnauthorized() error {
	return apiError(goerrors.CategoryAuth, APIErrorUnauthorized, "unauthorized", http.StatusBadRequest)
}

func ErrInvalidJSON() error {
	return apiError(goerrors.CategoryBadInput, APIErrorBadInput, "invalid json", http.StatusBadRequest)
}

func ErrUnknownField(name string) error {
	return apiError(goerrors.CategoryValidation, APIErrorBadInput, fmt.Sprintf("Unknown field %s", name), http.StatusBadRequest)
}

func ErrInvalidType(name string) error {
	return apiError(goerrors.CategoryValidation, APIErrorBadInput, fmt.Sprintf("Invalid type for %s", name), http.StatusBadRequest)
}

func ErrDoesNotExist() error {
	return apiError(goerrors.CategoryNotFound, APIErrorNotFound, "does not exist", http.StatusBadRequest)
}

func ErrLoginRequired() error {
	return apiError(goerrors.CategoryAuth, APIErrorLoginRequired, "login required", http.StatusBadRequest)
}

func ErrNoPermission() error {
	return apiError(goerrors.CategoryAuthz, APIErrorNoPermission, "no permission", http.StatusBadRequest)
}

func ErrInvalidWhere() error {
	return apiError(goerrors.CategoryValidation, APIErrorBadInput, "invalid where", http.StatusBadRequest)
}

func ErrInvalidOrder() error {
	return apiError(goerrors.CategoryValidation, APIErrorBadInput, "invalid order", http.StatusBadRequest)
}

func ErrInvalidLimit() error {
	return apiError(goerrors.CategoryValidation, APIErrorBadInput, "invalid limit", http.StatusBadRequest)
}

// ErrSaveFailed is the generic persistence failure: the cause is logged
// server-side and never surfaced to the caller.
func ErrSaveFailed() error {
	return apiError(goerrors.CategoryInternal, APIErrorSaveFailed, "failed", http.StatusBadRequest)
}

func ErrLoginFailed() error {
	return apiError(goerrors.CategoryAuth, APIErrorLoginFailed, "invalid username/password.", http.StatusNotFound)
}

func ErrMissingField(message string) error {
	return apiError(goerrors.CategoryBadInput, APIErrorBadInput, message, http.StatusBadRequest)
}

func ErrMethodNotAllowed() error {
	return apiError(goerrors.CategoryOperation, APIErrorMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed)
}

// IsAPIError reports whether err already carries an API envelope.
func IsAPIError(err error) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode != ""
}

// IsNotFound reports whether err is the missing-object rejection.
func IsNotFound(err error) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == APIErrorNotFound
}

func parseCodeFor(textCode string) (int, bool) {
	switch textCode {
	case APIErrorBadInput, APIErrorNotFound, APIErrorSaveFailed:
		return CodeInvalidInput, true
	case APIErrorLoginRequired:
		return CodeLoginNeeded, true
	case APIErrorNoPermission:
		return CodeNoPermission, true
	case APIErrorLoginFailed:
		return CodeLoginFailed, true
	default:
		return 0, false
	}
}

// Envelope converts any error into the wire error response. Errors that did
// not originate from this package collapse into a generic internal failure
// so storage details never leak.
func Envelope(err error) (status int, body map[string]any) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		status = rich.Code
		if status == 0 {
			status = http.StatusBadRequest
		}
		body = map[string]any{"error": rich.Message}
		if code, ok := parseCodeFor(rich.TextCode); ok {
			body["code"] = code
		}
		return status, body
	}
	return http.StatusInternalServerError, map[string]any{
		"code":  CodeOtherCause,
		"error": "internal error",
	}
}
